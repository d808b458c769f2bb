package memory

import (
	"sync"

	"toohak-game-service/internal/app"
)

// GameStore is an in-memory implementation of app.GameStore. Games are never
// removed; ended games stay queryable for historical results.
type GameStore struct {
	mu    sync.RWMutex
	games map[int]*app.Game
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[int]*app.Game),
	}
}

func (s *GameStore) Add(game *app.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID()] = game
}

func (s *GameStore) Get(gameID int) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[gameID]
	return game, ok
}

func (s *GameStore) ByQuiz(quizID int) []*app.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*app.Game
	for _, game := range s.games {
		if game.QuizID() == quizID {
			out = append(out, game)
		}
	}
	return out
}

func (s *GameStore) ByPlayer(playerID int) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, game := range s.games {
		if game.HasPlayer(playerID) {
			return game, true
		}
	}
	return nil, false
}

// NextGameID allocates max existing id + 1. Ids are monotonic because games
// are never deleted.
func (s *GameStore) NextGameID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	next := 1
	for id := range s.games {
		if id >= next {
			next = id + 1
		}
	}
	return next
}
