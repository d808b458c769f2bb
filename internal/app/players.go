package app

import (
	"toohak-game-service/internal/domain"
)

const (
	nameLetters = "abcdefghijklmnopqrstuvwxyz"
	nameDigits  = "0123456789"
)

// Join registers a guest player while the game is in LOBBY. An empty
// desiredName gets an auto-generated one: five random lowercase letters
// followed by three random digits, regenerated until no character repeats and
// the name is free in this game. Player ids are sequential and never reused.
func (g *Game) Join(desiredName string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snap.Status != domain.StateLobby {
		return 0, domain.Errorf(domain.ErrIncompatibleGameState, "game is not in LOBBY state")
	}

	name := desiredName
	if name == "" {
		name = g.generateNameLocked()
	} else {
		if !validPlayerName(name) {
			return 0, domain.Errorf(domain.ErrInvalidPlayerName,
				"name may only contain letters, digits and spaces")
		}
		if g.nameTakenLocked(name) {
			return 0, domain.Errorf(domain.ErrInvalidPlayerName, "name %q is already in use", name)
		}
	}

	player := domain.Player{
		PlayerID:   len(g.snap.Players) + 1,
		PlayerName: name,
		GameID:     g.snap.GameID,
	}
	g.snap.Players = append(g.snap.Players, player)
	g.changedLocked()
	return player.PlayerID, nil
}

func (g *Game) generateNameLocked() string {
	for {
		buf := make([]byte, 0, 8)
		for i := 0; i < 5; i++ {
			buf = append(buf, nameLetters[g.rnd.Intn(len(nameLetters))])
		}
		for i := 0; i < 3; i++ {
			buf = append(buf, nameDigits[g.rnd.Intn(len(nameDigits))])
		}
		name := string(buf)
		if hasRepeatedChar(name) || g.nameTakenLocked(name) {
			continue
		}
		return name
	}
}

func (g *Game) nameTakenLocked(name string) bool {
	for _, p := range g.snap.Players {
		if p.PlayerName == name {
			return true
		}
	}
	return false
}

func validPlayerName(name string) bool {
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == ' ':
		default:
			return false
		}
	}
	return true
}

func hasRepeatedChar(s string) bool {
	seen := make(map[rune]bool, len(s))
	for _, ch := range s {
		if seen[ch] {
			return true
		}
		seen[ch] = true
	}
	return false
}
