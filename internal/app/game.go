package app

import (
	"math/rand"
	"sync"
	"time"

	"toohak-game-service/internal/domain"
)

// countdownDuration is the fixed QUESTION_COUNTDOWN length before a question
// opens.
const countdownDuration = 3 * time.Second

// ScheduleFunc schedules fn to run once after d and returns a cancel func.
// The production implementation wraps time.AfterFunc; tests inject a manual
// trigger to drive timer transitions deterministically.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func())

func afterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Game is one live playthrough of a quiz. All state lives behind a single
// mutex; admin actions, player submissions and timer firings each run as one
// indivisible critical section, so no partial mutation is ever observable.
//
// The game owns at most one pending phase-advance timer. Scheduling a new
// timer always cancels the previous one, and a cancelled timer's callback is
// guaranteed not to mutate state even if it already fired: every schedule or
// cancel bumps timerGen, and the callback re-checks its generation under the
// mutex before touching anything.
type Game struct {
	mu   sync.Mutex
	snap domain.GameSnapshot

	now      func() time.Time
	schedule ScheduleFunc
	rnd      *rand.Rand

	timerGen    uint64
	cancelTimer func()

	onChange    func(domain.GameSnapshot)
	subscribers map[chan domain.PlayerStatus]struct{}
}

// NewGame builds a live game from a snapshot using real timers.
func NewGame(snap domain.GameSnapshot) *Game {
	return newGame(snap, time.Now, afterFunc)
}

// NewGameWithHooks is test-only: it lets callers pin the clock and intercept
// timer scheduling.
func NewGameWithHooks(snap domain.GameSnapshot, now func() time.Time, schedule ScheduleFunc) *Game {
	return newGame(snap, now, schedule)
}

func newGame(snap domain.GameSnapshot, now func() time.Time, schedule ScheduleFunc) *Game {
	return &Game{
		snap:        snap,
		now:         now,
		schedule:    schedule,
		rnd:         rand.New(rand.NewSource(now().UnixNano() + int64(snap.GameID))),
		subscribers: make(map[chan domain.PlayerStatus]struct{}),
	}
}

// ID returns the game id, unique within the owning quiz's game set.
func (g *Game) ID() int {
	return g.snap.GameID
}

// QuizID returns the owning quiz id.
func (g *Game) QuizID() int {
	return g.snap.QuizID
}

// Status returns the current phase.
func (g *Game) Status() domain.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap.Status
}

// Active reports whether the game has not yet reached END.
func (g *Game) Active() bool {
	return g.Status() != domain.StateEnd
}

// HasPlayer reports whether playerID joined this game.
func (g *Game) HasPlayer(playerID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.snap.Players {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy of the full game state.
func (g *Game) Snapshot() domain.GameSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneSnapshot(g.snap)
}

// SetOnChange installs a hook invoked with a fresh snapshot after every state
// mutation. Stores use it to persist games; it runs synchronously under the
// game's serialization and must not call back into the game.
func (g *Game) SetOnChange(fn func(domain.GameSnapshot)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// ApplyAction advances the state machine by one admin action. The action is
// validated against the current phase before anything is mutated.
func (g *Game) ApplyAction(action domain.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.snap.Status
	if st == domain.StateEnd {
		return domain.Errorf(domain.ErrIncompatibleGameState, "game has already ended")
	}

	switch action {
	case domain.ActionNextQuestion:
		if st != domain.StateLobby && st != domain.StateQuestionClose && st != domain.StateAnswerShow {
			return domain.Errorf(domain.ErrIncompatibleGameState,
				"NEXT_QUESTION only allowed in LOBBY, QUESTION_CLOSE or ANSWER_SHOW")
		}
		if st != domain.StateLobby {
			if g.snap.CurrentQuestionIndex >= len(g.snap.Questions())-1 {
				return domain.Errorf(domain.ErrIncompatibleGameState, "no next question available")
			}
			g.snap.CurrentQuestionIndex++
		}
		g.cancelTimerLocked()
		g.snap.Status = domain.StateQuestionCountdown
		g.scheduleLocked(countdownDuration, g.openQuestionLocked)

	case domain.ActionSkipCountdown:
		if st != domain.StateQuestionCountdown {
			return domain.Errorf(domain.ErrIncompatibleGameState,
				"SKIP_COUNTDOWN only allowed in QUESTION_COUNTDOWN")
		}
		g.cancelTimerLocked()
		g.openQuestionLocked()

	case domain.ActionGoToAnswer:
		if st != domain.StateQuestionOpen && st != domain.StateQuestionClose {
			return domain.Errorf(domain.ErrIncompatibleGameState,
				"GO_TO_ANSWER only allowed in QUESTION_OPEN or QUESTION_CLOSE")
		}
		g.cancelTimerLocked()
		g.snap.Status = domain.StateAnswerShow
		g.recordQuestionResultLocked()

	case domain.ActionGoToFinalResults:
		if st != domain.StateQuestionClose && st != domain.StateAnswerShow {
			return domain.Errorf(domain.ErrIncompatibleGameState,
				"GO_TO_FINAL_RESULTS only allowed in QUESTION_CLOSE or ANSWER_SHOW")
		}
		g.cancelTimerLocked()
		g.snap.Status = domain.StateFinalResults
		g.snap.FinalResults = g.computeFinalResultsLocked()

	case domain.ActionEnd:
		g.cancelTimerLocked()
		g.snap.Status = domain.StateEnd
		g.snap.TimeEnded = g.now().Unix()

	default:
		return domain.Errorf(domain.ErrInvalidAction, "action %q is not valid", action)
	}

	g.changedLocked()
	return nil
}

// openQuestionLocked moves the game into QUESTION_OPEN and arms the
// question-duration timer.
func (g *Game) openQuestionLocked() {
	g.snap.Status = domain.StateQuestionOpen
	limit := g.snap.Questions()[g.snap.CurrentQuestionIndex].TimeLimit
	g.scheduleLocked(time.Duration(limit)*time.Second, func() {
		g.snap.Status = domain.StateQuestionClose
	})
}

// scheduleLocked arms the single timer slot. fire runs with the mutex held.
func (g *Game) scheduleLocked(d time.Duration, fire func()) {
	g.cancelTimerLocked()
	g.timerGen++
	gen := g.timerGen
	g.cancelTimer = g.schedule(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.timerGen != gen {
			// Superseded by a manual action or a newer timer.
			return
		}
		g.cancelTimer = nil
		fire()
		g.changedLocked()
	})
}

// cancelTimerLocked disarms any pending timer. Idempotent: cancelling an
// already-fired or already-cancelled timer is a no-op.
func (g *Game) cancelTimerLocked() {
	g.timerGen++
	if g.cancelTimer != nil {
		g.cancelTimer()
		g.cancelTimer = nil
	}
}

// Subscribe returns a channel receiving a status update after every state
// change, starting with the current status. The caller must invoke cancel to
// avoid leaks.
func (g *Game) Subscribe() (<-chan domain.PlayerStatus, func()) {
	ch := make(chan domain.PlayerStatus, 8)

	g.mu.Lock()
	g.subscribers[ch] = struct{}{}
	initial := g.playerStatusLocked()
	g.mu.Unlock()

	ch <- initial

	cancel := func() {
		g.mu.Lock()
		if _, ok := g.subscribers[ch]; ok {
			delete(g.subscribers, ch)
			close(ch)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

// changedLocked fans the new status out to subscribers and hands a snapshot
// to the persistence hook.
func (g *Game) changedLocked() {
	status := g.playerStatusLocked()
	for ch := range g.subscribers {
		select {
		case ch <- status:
		default:
			// Drop the oldest update so a slow reader never blocks the game.
			select {
			case <-ch:
			default:
			}
			ch <- status
		}
	}
	if g.onChange != nil {
		g.onChange(cloneSnapshot(g.snap))
	}
}

func (g *Game) playerStatusLocked() domain.PlayerStatus {
	return domain.PlayerStatus{
		State:        g.snap.Status,
		NumQuestions: len(g.snap.Questions()),
		AtQuestion:   g.snap.CurrentQuestionIndex + 1,
	}
}

func cloneSnapshot(s domain.GameSnapshot) domain.GameSnapshot {
	out := s
	out.Metadata.Questions = cloneQuestions(s.Metadata.Questions)
	out.Players = append([]domain.Player(nil), s.Players...)
	out.PlayerAnswersPerQuestion = make([]domain.QuestionAnswers, len(s.PlayerAnswersPerQuestion))
	for i, qa := range s.PlayerAnswersPerQuestion {
		c := qa
		c.Submissions = make([]domain.PlayerAnswer, len(qa.Submissions))
		for j, sub := range qa.Submissions {
			cs := sub
			cs.AnswerIDs = append([]int(nil), sub.AnswerIDs...)
			c.Submissions[j] = cs
		}
		out.PlayerAnswersPerQuestion[i] = c
	}
	out.QuestionResults = cloneQuestionResults(s.QuestionResults)
	if s.FinalResults != nil {
		fr := domain.FinalResults{
			UsersRankedByScore: append([]domain.PlayerScore(nil), s.FinalResults.UsersRankedByScore...),
			QuestionResults:    cloneQuestionResults(s.FinalResults.QuestionResults),
		}
		out.FinalResults = &fr
	}
	return out
}

func cloneQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		c := q
		c.AnswerOptions = append([]domain.AnswerOption(nil), q.AnswerOptions...)
		out[i] = c
	}
	return out
}

func cloneQuestionResults(rs []domain.QuestionResult) []domain.QuestionResult {
	out := make([]domain.QuestionResult, len(rs))
	for i, r := range rs {
		c := r
		c.PlayersCorrect = append([]string(nil), r.PlayersCorrect...)
		out[i] = c
	}
	return out
}
