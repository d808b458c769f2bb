package redis

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"toohak-game-service/internal/app"
	"toohak-game-service/internal/domain"
	"toohak-game-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
)

const gameKeyPrefix = "toohak:game:"

// GameStore is a redis-backed app.GameStore. Live games are served from an
// in-process map; every mutation writes the full game snapshot to redis so
// results remain queryable after a restart.
//
// Restored games come back without their pending timer: a game that was
// mid-countdown sits in that phase until the admin issues the next action
// (SKIP_COUNTDOWN and END are always available from timed phases).
type GameStore struct {
	client *redis.Client
	mem    *memory.GameStore
}

func NewGameStore(client *redis.Client) *GameStore {
	return &GameStore{
		client: client,
		mem:    memory.NewGameStore(),
	}
}

func (s *GameStore) Add(game *app.Game) {
	game.SetOnChange(s.persist)
	s.mem.Add(game)
	s.persist(game.Snapshot())
}

func (s *GameStore) Get(gameID int) (*app.Game, bool) {
	return s.mem.Get(gameID)
}

func (s *GameStore) ByQuiz(quizID int) []*app.Game {
	return s.mem.ByQuiz(quizID)
}

func (s *GameStore) ByPlayer(playerID int) (*app.Game, bool) {
	return s.mem.ByPlayer(playerID)
}

func (s *GameStore) NextGameID() int {
	return s.mem.NextGameID()
}

// Restore rehydrates every persisted game into the in-process map. Call once
// at startup before serving traffic.
func (s *GameStore) Restore(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, gameKeyPrefix+"*", 0).Iterator()
	restored := 0
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			return err
		}
		var snap domain.GameSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return err
		}
		game := app.NewGame(snap)
		game.SetOnChange(s.persist)
		s.mem.Add(game)
		restored++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if restored > 0 {
		log.Printf("restored %d games from redis", restored)
	}
	return nil
}

// persist is best-effort: a write failure must not fail the game operation
// that triggered it.
func (s *GameStore) persist(snap domain.GameSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("marshal game %d: %v", snap.GameID, err)
		return
	}
	if err := s.client.Set(context.Background(), gameKey(snap.GameID), data, 0).Err(); err != nil {
		log.Printf("persist game %d: %v", snap.GameID, err)
	}
}

func gameKey(gameID int) string {
	return gameKeyPrefix + strconv.Itoa(gameID)
}
