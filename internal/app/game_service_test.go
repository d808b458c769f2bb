package app_test

import (
	"context"
	"testing"
	"time"

	"toohak-game-service/internal/app"
	"toohak-game-service/internal/domain"
	"toohak-game-service/internal/infra/memory"
)

const adminToken = "token-admin"

func newTestService() *app.GameService {
	quizzes := map[int]domain.Quiz{
		1: {
			QuizID:  1,
			OwnerID: 1,
			Name:    "Capitals",
			Questions: []domain.Question{
				testQuestion(1, 30, 5),
				testQuestion(2, 20, 3),
			},
		},
		2: {QuizID: 2, OwnerID: 1, Name: "Empty quiz"},
		3: {QuizID: 3, OwnerID: 2, Name: "Someone else's", Questions: []domain.Question{testQuestion(1, 30, 5)}},
	}
	sessions := memory.NewSessionDirectory()
	sessions.Seed(adminToken, 1)
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(quizzes), 5*time.Minute)
	return app.NewGameService(memory.NewGameStore(), repo, sessions)
}

func TestStartGameChecks(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	cases := []struct {
		name         string
		token        string
		quizID       int
		autoStartNum int
		kind         domain.ErrorKind
	}{
		{"bad token", "bogus", 1, 0, domain.ErrUnauthorised},
		{"unknown quiz", adminToken, 99, 0, domain.ErrInvalidQuizID},
		{"not the owner", adminToken, 3, 0, domain.ErrInvalidQuizID},
		{"auto start too high", adminToken, 1, 51, domain.ErrInvalidGame},
		{"empty quiz", adminToken, 2, 0, domain.ErrQuizIsEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.StartGame(ctx, tc.token, tc.quizID, tc.autoStartNum)
			if domain.KindOf(err) != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
		})
	}

	gameID, err := service.StartGame(ctx, adminToken, 1, 50)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if gameID != 1 {
		t.Fatalf("expected first game id 1, got %d", gameID)
	}
}

func TestStartGameActiveLimit(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	ids := make([]int, 0, 10)
	for i := 0; i < 10; i++ {
		id, err := service.StartGame(ctx, adminToken, 1, 0)
		if err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	_, err := service.StartGame(ctx, adminToken, 1, 0)
	if domain.KindOf(err) != domain.ErrMaxActiveGames {
		t.Fatalf("expected MAX_ACTIVE_GAMES, got %v", err)
	}

	// Ending a game frees a slot.
	if err := service.UpdateGameState(ctx, adminToken, 1, ids[0], "END"); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if _, err := service.StartGame(ctx, adminToken, 1, 0); err != nil {
		t.Fatalf("start after end failed: %v", err)
	}
}

func TestListGamesSplitsAndSorts(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	var ids []int
	for i := 0; i < 3; i++ {
		id, err := service.StartGame(ctx, adminToken, 1, 0)
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		ids = append(ids, id)
	}
	if err := service.UpdateGameState(ctx, adminToken, 1, ids[1], "END"); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	active, inactive, err := service.ListGames(ctx, adminToken, 1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 2 || active[0] != ids[0] || active[1] != ids[2] {
		t.Fatalf("unexpected active games %v", active)
	}
	if len(inactive) != 1 || inactive[0] != ids[1] {
		t.Fatalf("unexpected inactive games %v", inactive)
	}
}

func TestUpdateGameStateChecks(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	gameID, err := service.StartGame(ctx, adminToken, 1, 0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := service.UpdateGameState(ctx, adminToken, 1, gameID, "WARP"); domain.KindOf(err) != domain.ErrInvalidAction {
		t.Fatalf("expected INVALID_ACTION, got %v", err)
	}
	if err := service.UpdateGameState(ctx, adminToken, 1, 99, "END"); domain.KindOf(err) != domain.ErrInvalidGameID {
		t.Fatalf("expected INVALID_GAME_ID, got %v", err)
	}
	// The game exists but belongs to quiz 1, not quiz 2.
	if err := service.UpdateGameState(ctx, adminToken, 2, gameID, "END"); domain.KindOf(err) != domain.ErrInvalidGameID {
		t.Fatalf("expected INVALID_GAME_ID, got %v", err)
	}
	if err := service.UpdateGameState(ctx, "bogus", 1, gameID, "END"); domain.KindOf(err) != domain.ErrUnauthorised {
		t.Fatalf("expected UNAUTHORISED, got %v", err)
	}
}

func TestPlayerFlowThroughService(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	gameID, err := service.StartGame(ctx, adminToken, 1, 0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := service.JoinGame(ctx, 99, "Alice"); domain.KindOf(err) != domain.ErrInvalidGameID {
		t.Fatalf("expected INVALID_GAME_ID, got %v", err)
	}
	playerID, err := service.JoinGame(ctx, gameID, "Alice")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}

	status, err := service.PlayerStatus(ctx, playerID)
	if err != nil {
		t.Fatalf("player status failed: %v", err)
	}
	if status.State != domain.StateLobby || status.NumQuestions != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
	if _, err := service.PlayerStatus(ctx, 99); domain.KindOf(err) != domain.ErrInvalidPlayerID {
		t.Fatalf("expected INVALID_PLAYER_ID, got %v", err)
	}

	if err := service.UpdateGameState(ctx, adminToken, 1, gameID, "NEXT_QUESTION"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if err := service.UpdateGameState(ctx, adminToken, 1, gameID, "SKIP_COUNTDOWN"); err != nil {
		t.Fatalf("skip failed: %v", err)
	}

	info, err := service.QuestionInfo(ctx, playerID, 1)
	if err != nil {
		t.Fatalf("question info failed: %v", err)
	}
	if err := service.SubmitAnswer(ctx, playerID, 1, []int{info.AnswerOptions[1].AnswerID}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := service.UpdateGameState(ctx, adminToken, 1, gameID, "GO_TO_ANSWER"); err != nil {
		t.Fatalf("reveal failed: %v", err)
	}
	result, err := service.QuestionResults(ctx, playerID, 1)
	if err != nil {
		t.Fatalf("question results failed: %v", err)
	}
	if result.PercentCorrect != 100 {
		t.Fatalf("expected 100%% correct, got %d", result.PercentCorrect)
	}

	if err := service.UpdateGameState(ctx, adminToken, 1, gameID, "GO_TO_FINAL_RESULTS"); err != nil {
		t.Fatalf("final transition failed: %v", err)
	}
	final, err := service.FinalResults(ctx, playerID)
	if err != nil {
		t.Fatalf("final results failed: %v", err)
	}
	if final.UsersRankedByScore[0].PlayerName != "Alice" || final.UsersRankedByScore[0].Score != 5 {
		t.Fatalf("unexpected leaderboard %+v", final.UsersRankedByScore)
	}

	adminResults, err := service.GameResults(ctx, adminToken, 1, gameID)
	if err != nil {
		t.Fatalf("admin results failed: %v", err)
	}
	if len(adminResults.UsersRankedByScore) != 1 {
		t.Fatalf("unexpected admin results %+v", adminResults)
	}
}

func TestOptionsGetColoursAssigned(t *testing.T) {
	ctx := context.Background()
	quizzes := map[int]domain.Quiz{
		1: {
			QuizID:  1,
			OwnerID: 1,
			Name:    "Plain",
			Questions: []domain.Question{{
				QuestionID: 1,
				Question:   "Colourless",
				TimeLimit:  10,
				Points:     1,
				AnswerOptions: []domain.AnswerOption{
					{AnswerID: 1, Answer: "A", Correct: true},
					{AnswerID: 2, Answer: "B"},
				},
			}},
		},
	}
	sessions := memory.NewSessionDirectory()
	sessions.Seed(adminToken, 1)
	store := memory.NewGameStore()
	service := app.NewGameService(store, memory.NewQuizRepository(memory.NewStaticQuizLoader(quizzes), time.Minute), sessions)

	gameID, err := service.StartGame(ctx, adminToken, 1, 0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	game, ok := store.Get(gameID)
	if !ok {
		t.Fatalf("game not stored")
	}
	for _, opt := range game.Snapshot().Questions()[0].AnswerOptions {
		found := false
		for _, c := range domain.Colours {
			if opt.Colour == c {
				found = true
			}
		}
		if !found {
			t.Fatalf("option %d has no valid colour: %q", opt.AnswerID, opt.Colour)
		}
	}
}
