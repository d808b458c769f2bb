package app

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"toohak-game-service/internal/domain"
)

const (
	maxActiveGamesPerQuiz = 10
	maxAutoStartNum       = 50
)

// GameStore abstracts how live games are kept (in-memory, redis-backed, etc).
// Games are never deleted; a game that reached END stays retrievable for
// historical result queries.
type GameStore interface {
	Add(game *Game)
	Get(gameID int) (*Game, bool)
	ByQuiz(quizID int) []*Game
	ByPlayer(playerID int) (*Game, bool)
	NextGameID() int
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int) (domain.Quiz, error)
}

// AdminDirectory resolves bearer session tokens to admin user ids.
type AdminDirectory interface {
	Resolve(ctx context.Context, token string) (int, error)
}

// GameService contains the game hosting use cases: starting games, driving
// their state machines, joining guests and querying results.
type GameService struct {
	games   GameStore
	quizzes QuizRepository
	admins  AdminDirectory

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewGameService(games GameStore, quizzes QuizRepository, admins AdminDirectory) *GameService {
	return &GameService{
		games:   games,
		quizzes: quizzes,
		admins:  admins,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// StartGame creates a new game in LOBBY from an immutable snapshot of the
// quiz, so concurrent quiz edits cannot affect the running game. Returns the
// new game id.
func (s *GameService) StartGame(ctx context.Context, token string, quizID, autoStartNum int) (int, error) {
	userID, err := s.resolveAdmin(ctx, token)
	if err != nil {
		return 0, err
	}
	quiz, err := s.ownedQuiz(ctx, userID, quizID)
	if err != nil {
		return 0, err
	}
	if autoStartNum > maxAutoStartNum {
		return 0, domain.Errorf(domain.ErrInvalidGame,
			"autoStartNum must not be greater than %d", maxAutoStartNum)
	}
	if len(quiz.Questions) == 0 {
		return 0, domain.Errorf(domain.ErrQuizIsEmpty, "the quiz does not have any questions in it")
	}

	active := 0
	for _, g := range s.games.ByQuiz(quizID) {
		if g.Active() {
			active++
		}
	}
	if active >= maxActiveGamesPerQuiz {
		return 0, domain.Errorf(domain.ErrMaxActiveGames,
			"%d games that are not in END state already exist for this quiz", maxActiveGamesPerQuiz)
	}

	snapshot := domain.GameSnapshot{
		GameID:               s.games.NextGameID(),
		QuizID:               quizID,
		Status:               domain.StateLobby,
		CurrentQuestionIndex: 0,
		AutoStartNum:         autoStartNum,
		TimeStarted:          time.Now().Unix(),
		Metadata:             s.snapshotQuiz(quiz),
	}
	game := NewGame(snapshot)
	s.games.Add(game)
	return snapshot.GameID, nil
}

// ListGames returns the quiz's active and inactive (ended) game ids, each
// sorted ascending.
func (s *GameService) ListGames(ctx context.Context, token string, quizID int) (active, inactive []int, err error) {
	userID, err := s.resolveAdmin(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.ownedQuiz(ctx, userID, quizID); err != nil {
		return nil, nil, err
	}

	active, inactive = []int{}, []int{}
	for _, g := range s.games.ByQuiz(quizID) {
		if g.Active() {
			active = append(active, g.ID())
		} else {
			inactive = append(inactive, g.ID())
		}
	}
	sort.Ints(active)
	sort.Ints(inactive)
	return active, inactive, nil
}

// UpdateGameState applies one admin action to a game's state machine.
func (s *GameService) UpdateGameState(ctx context.Context, token string, quizID, gameID int, actionStr string) error {
	game, err := s.adminGame(ctx, token, quizID, gameID)
	if err != nil {
		return err
	}
	action, err := domain.ParseAction(actionStr)
	if err != nil {
		return err
	}
	return game.ApplyAction(action)
}

// GameStatus returns the admin view of a game.
func (s *GameService) GameStatus(ctx context.Context, token string, quizID, gameID int) (domain.GameStatus, error) {
	game, err := s.adminGame(ctx, token, quizID, gameID)
	if err != nil {
		return domain.GameStatus{}, err
	}
	return game.AdminStatus(), nil
}

// GameResults returns the frozen final results of a game for its admin.
func (s *GameService) GameResults(ctx context.Context, token string, quizID, gameID int) (domain.FinalResults, error) {
	game, err := s.adminGame(ctx, token, quizID, gameID)
	if err != nil {
		return domain.FinalResults{}, err
	}
	return game.FinalResults()
}

// JoinGame registers a guest player in a LOBBY game and returns the player id.
func (s *GameService) JoinGame(_ context.Context, gameID int, desiredName string) (int, error) {
	game, ok := s.games.Get(gameID)
	if !ok {
		return 0, domain.Errorf(domain.ErrInvalidGameID, "game %d does not refer to a valid game", gameID)
	}
	return game.Join(desiredName)
}

// PlayerStatus returns game progress for the game the player is in.
func (s *GameService) PlayerStatus(_ context.Context, playerID int) (domain.PlayerStatus, error) {
	game, err := s.playerGame(playerID)
	if err != nil {
		return domain.PlayerStatus{}, err
	}
	return game.PlayerStatus(), nil
}

// QuestionInfo returns the current question as shown to players.
func (s *GameService) QuestionInfo(_ context.Context, playerID, questionPosition int) (domain.QuestionInfo, error) {
	game, err := s.playerGame(playerID)
	if err != nil {
		return domain.QuestionInfo{}, err
	}
	return game.QuestionInfo(questionPosition)
}

// SubmitAnswer records a player's answer submission for the open question.
func (s *GameService) SubmitAnswer(_ context.Context, playerID, questionPosition int, answerIDs []int) error {
	game, err := s.playerGame(playerID)
	if err != nil {
		return err
	}
	return game.SubmitAnswer(playerID, questionPosition, answerIDs)
}

// QuestionResults returns the revealed stats for the current question.
func (s *GameService) QuestionResults(_ context.Context, playerID, questionPosition int) (domain.QuestionResult, error) {
	game, err := s.playerGame(playerID)
	if err != nil {
		return domain.QuestionResult{}, err
	}
	return game.QuestionResults(questionPosition)
}

// FinalResults returns the frozen end-of-game results for a player's game.
func (s *GameService) FinalResults(_ context.Context, playerID int) (domain.FinalResults, error) {
	game, err := s.playerGame(playerID)
	if err != nil {
		return domain.FinalResults{}, err
	}
	return game.FinalResults()
}

// WatchGame subscribes to a game's status feed. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *GameService) WatchGame(_ context.Context, gameID int) (<-chan domain.PlayerStatus, func(), error) {
	game, ok := s.games.Get(gameID)
	if !ok {
		return nil, nil, domain.Errorf(domain.ErrInvalidGameID, "game %d does not refer to a valid game", gameID)
	}
	ch, cancel := game.Subscribe()
	return ch, cancel, nil
}

func (s *GameService) resolveAdmin(ctx context.Context, token string) (int, error) {
	userID, err := s.admins.Resolve(ctx, token)
	if err != nil {
		return 0, domain.Errorf(domain.ErrUnauthorised, "session is empty or invalid")
	}
	return userID, nil
}

// ownedQuiz loads the quiz and enforces ownership. Existence and ownership
// failures are indistinguishable to the caller.
func (s *GameService) ownedQuiz(ctx context.Context, userID, quizID int) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil || quiz.OwnerID != userID {
		return domain.Quiz{}, domain.Errorf(domain.ErrInvalidQuizID,
			"user is not an owner of this quiz, or quiz doesn't exist")
	}
	return quiz, nil
}

// adminGame runs the identity, ownership and game-existence checks shared by
// every admin game operation, in that order.
func (s *GameService) adminGame(ctx context.Context, token string, quizID, gameID int) (*Game, error) {
	userID, err := s.resolveAdmin(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedQuiz(ctx, userID, quizID); err != nil {
		return nil, err
	}
	game, ok := s.games.Get(gameID)
	if !ok || game.QuizID() != quizID {
		return nil, domain.Errorf(domain.ErrInvalidGameID,
			"game %d does not refer to a valid game within this quiz", gameID)
	}
	return game, nil
}

func (s *GameService) playerGame(playerID int) (*Game, error) {
	game, ok := s.games.ByPlayer(playerID)
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidPlayerID, "player ID %d does not exist", playerID)
	}
	return game, nil
}

// snapshotQuiz deep-copies the quiz and assigns a display colour to any
// answer option that arrived without one.
func (s *GameService) snapshotQuiz(quiz domain.Quiz) domain.Quiz {
	copied := quiz
	copied.Questions = cloneQuestions(quiz.Questions)
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	for i := range copied.Questions {
		for j := range copied.Questions[i].AnswerOptions {
			if copied.Questions[i].AnswerOptions[j].Colour == "" {
				copied.Questions[i].AnswerOptions[j].Colour = domain.Colours[s.rnd.Intn(len(domain.Colours))]
			}
		}
	}
	return copied
}
