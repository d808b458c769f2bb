package app_test

import (
	"testing"
	"time"

	"toohak-game-service/internal/app"
	"toohak-game-service/internal/domain"
)

// manualScheduler captures scheduled timer callbacks so tests can fire them
// deterministically instead of waiting on real timers.
type manualScheduler struct {
	fns []func()
}

func (m *manualScheduler) schedule(_ time.Duration, fn func()) func() {
	m.fns = append(m.fns, fn)
	return func() {}
}

// fire runs the most recently scheduled callback.
func (m *manualScheduler) fire(t *testing.T) {
	t.Helper()
	if len(m.fns) == 0 {
		t.Fatalf("no timer scheduled")
	}
	m.fns[len(m.fns)-1]()
}

func testQuestion(id, timeLimit, points int) domain.Question {
	return domain.Question{
		QuestionID: id,
		Question:   "Pick the right one",
		TimeLimit:  timeLimit,
		Points:     points,
		AnswerOptions: []domain.AnswerOption{
			{AnswerID: 1, Answer: "Wrong", Correct: false, Colour: "red"},
			{AnswerID: 2, Answer: "Right", Correct: true, Colour: "blue"},
		},
	}
}

func testSnapshot(questions ...domain.Question) domain.GameSnapshot {
	return domain.GameSnapshot{
		GameID: 1,
		QuizID: 7,
		Status: domain.StateLobby,
		Metadata: domain.Quiz{
			QuizID:    7,
			OwnerID:   1,
			Name:      "Capitals",
			Questions: questions,
		},
	}
}

func newTestGame(questions ...domain.Question) (*app.Game, *manualScheduler) {
	sched := &manualScheduler{}
	clock := func() time.Time { return time.Unix(1_700_000_000, 0) }
	game := app.NewGameWithHooks(testSnapshot(questions...), clock, sched.schedule)
	return game, sched
}

func TestTimerDrivenQuestionFlow(t *testing.T) {
	game, sched := newTestGame(testQuestion(1, 30, 5))

	if err := game.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("NEXT_QUESTION failed: %v", err)
	}
	if got := game.Status(); got != domain.StateQuestionCountdown {
		t.Fatalf("expected QUESTION_COUNTDOWN, got %s", got)
	}

	sched.fire(t) // countdown elapses
	if got := game.Status(); got != domain.StateQuestionOpen {
		t.Fatalf("expected QUESTION_OPEN, got %s", got)
	}

	sched.fire(t) // question duration elapses
	if got := game.Status(); got != domain.StateQuestionClose {
		t.Fatalf("expected QUESTION_CLOSE, got %s", got)
	}
}

func TestSkipCountdownOpensImmediately(t *testing.T) {
	game, sched := newTestGame(testQuestion(1, 30, 5))

	if err := game.ApplyAction(domain.ActionNextQuestion); err != nil {
		t.Fatalf("NEXT_QUESTION failed: %v", err)
	}
	if err := game.ApplyAction(domain.ActionSkipCountdown); err != nil {
		t.Fatalf("SKIP_COUNTDOWN failed: %v", err)
	}
	if got := game.Status(); got != domain.StateQuestionOpen {
		t.Fatalf("expected QUESTION_OPEN, got %s", got)
	}

	// The superseded countdown timer must not mutate anything when it fires.
	sched.fns[0]()
	if got := game.Status(); got != domain.StateQuestionOpen {
		t.Fatalf("stale countdown timer changed state to %s", got)
	}
}

func TestManualActionCancelsPendingTimer(t *testing.T) {
	game, sched := newTestGame(testQuestion(1, 30, 5))

	mustApply(t, game, domain.ActionNextQuestion)
	sched.fire(t) // open
	mustApply(t, game, domain.ActionGoToAnswer)
	if got := game.Status(); got != domain.StateAnswerShow {
		t.Fatalf("expected ANSWER_SHOW, got %s", got)
	}

	// The disarmed question-close timer fires late: state must not move.
	sched.fire(t)
	if got := game.Status(); got != domain.StateAnswerShow {
		t.Fatalf("stale close timer changed state to %s", got)
	}
}

func TestInvalidActionsPerState(t *testing.T) {
	cases := []struct {
		name    string
		drive   []domain.Action
		fires   int
		invalid []domain.Action
	}{
		{
			name:    "lobby",
			invalid: []domain.Action{domain.ActionSkipCountdown, domain.ActionGoToAnswer, domain.ActionGoToFinalResults},
		},
		{
			name:    "countdown",
			drive:   []domain.Action{domain.ActionNextQuestion},
			invalid: []domain.Action{domain.ActionNextQuestion, domain.ActionGoToAnswer, domain.ActionGoToFinalResults},
		},
		{
			name:    "open",
			drive:   []domain.Action{domain.ActionNextQuestion},
			fires:   1,
			invalid: []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToFinalResults},
		},
		{
			name:    "answer show",
			drive:   []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer},
			invalid: []domain.Action{domain.ActionSkipCountdown, domain.ActionGoToAnswer},
		},
		{
			name:    "final results",
			drive:   []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer, domain.ActionGoToFinalResults},
			invalid: []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer, domain.ActionGoToFinalResults},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			game, sched := newTestGame(testQuestion(1, 30, 5))
			for _, a := range tc.drive {
				mustApply(t, game, a)
			}
			for i := 0; i < tc.fires; i++ {
				sched.fire(t)
			}
			before := game.Status()
			for _, a := range tc.invalid {
				err := game.ApplyAction(a)
				if domain.KindOf(err) != domain.ErrIncompatibleGameState {
					t.Fatalf("%s in %s: expected INCOMPATIBLE_GAME_STATE, got %v", a, before, err)
				}
			}
			if got := game.Status(); got != before {
				t.Fatalf("rejected action moved state from %s to %s", before, got)
			}
		})
	}
}

func TestEndIsTerminal(t *testing.T) {
	game, _ := newTestGame(testQuestion(1, 30, 5))
	mustApply(t, game, domain.ActionEnd)

	for _, a := range []domain.Action{
		domain.ActionNextQuestion,
		domain.ActionSkipCountdown,
		domain.ActionGoToAnswer,
		domain.ActionGoToFinalResults,
		domain.ActionEnd,
	} {
		err := game.ApplyAction(a)
		if domain.KindOf(err) != domain.ErrIncompatibleGameState {
			t.Fatalf("%s after END: expected INCOMPATIBLE_GAME_STATE, got %v", a, err)
		}
	}
	if game.Active() {
		t.Fatalf("ended game still reports active")
	}
}

func TestEndAllowedFromEveryLiveState(t *testing.T) {
	drives := map[string]struct {
		actions []domain.Action
		fires   int
	}{
		"lobby":     {},
		"countdown": {actions: []domain.Action{domain.ActionNextQuestion}},
		"open":      {actions: []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown}},
		"close":     {actions: []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown}, fires: 1},
		"answer":    {actions: []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer}},
		"final":     {actions: []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer, domain.ActionGoToFinalResults}},
	}
	for name, drive := range drives {
		t.Run(name, func(t *testing.T) {
			game, sched := newTestGame(testQuestion(1, 30, 5))
			for _, a := range drive.actions {
				mustApply(t, game, a)
			}
			for i := 0; i < drive.fires; i++ {
				sched.fire(t)
			}
			if err := game.ApplyAction(domain.ActionEnd); err != nil {
				t.Fatalf("END failed: %v", err)
			}
			if got := game.Status(); got != domain.StateEnd {
				t.Fatalf("expected END, got %s", got)
			}
		})
	}
}

func TestNextQuestionRejectedOnLastQuestion(t *testing.T) {
	game, _ := newTestGame(testQuestion(1, 30, 5))

	mustApply(t, game, domain.ActionNextQuestion)
	mustApply(t, game, domain.ActionSkipCountdown)
	mustApply(t, game, domain.ActionGoToAnswer)

	err := game.ApplyAction(domain.ActionNextQuestion)
	if domain.KindOf(err) != domain.ErrIncompatibleGameState {
		t.Fatalf("expected INCOMPATIBLE_GAME_STATE on last question, got %v", err)
	}
	// The failed advance must not have consumed the question index.
	if got := game.Snapshot().CurrentQuestionIndex; got != 0 {
		t.Fatalf("question index moved to %d on rejected advance", got)
	}
}

func TestNextQuestionAdvancesIndex(t *testing.T) {
	game, _ := newTestGame(testQuestion(1, 30, 5), testQuestion(2, 20, 3))

	mustApply(t, game, domain.ActionNextQuestion)
	mustApply(t, game, domain.ActionSkipCountdown)
	mustApply(t, game, domain.ActionGoToAnswer)
	mustApply(t, game, domain.ActionNextQuestion)

	snap := game.Snapshot()
	if snap.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", snap.CurrentQuestionIndex)
	}
	if snap.Status != domain.StateQuestionCountdown {
		t.Fatalf("expected QUESTION_COUNTDOWN, got %s", snap.Status)
	}
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	game, _ := newTestGame(testQuestion(1, 30, 5))

	ch, cancel := game.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.State != domain.StateLobby || initial.NumQuestions != 1 {
		t.Fatalf("unexpected initial status %+v", initial)
	}

	mustApply(t, game, domain.ActionNextQuestion)
	update := <-ch
	if update.State != domain.StateQuestionCountdown {
		t.Fatalf("expected QUESTION_COUNTDOWN update, got %+v", update)
	}
}

func mustApply(t *testing.T, game *app.Game, action domain.Action) {
	t.Helper()
	if err := game.ApplyAction(action); err != nil {
		t.Fatalf("%s failed: %v", action, err)
	}
}
