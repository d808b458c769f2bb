package domain

// GameState is the current phase of a live game.
type GameState string

const (
	StateLobby             GameState = "LOBBY"
	StateQuestionCountdown GameState = "QUESTION_COUNTDOWN"
	StateQuestionOpen      GameState = "QUESTION_OPEN"
	StateQuestionClose     GameState = "QUESTION_CLOSE"
	StateAnswerShow        GameState = "ANSWER_SHOW"
	StateFinalResults      GameState = "FINAL_RESULTS"
	StateEnd               GameState = "END"
)

// Action is an admin command that advances a game's state machine.
type Action string

const (
	ActionNextQuestion     Action = "NEXT_QUESTION"
	ActionSkipCountdown    Action = "SKIP_COUNTDOWN"
	ActionGoToAnswer       Action = "GO_TO_ANSWER"
	ActionGoToFinalResults Action = "GO_TO_FINAL_RESULTS"
	ActionEnd              Action = "END"
)

// ParseAction validates an action string from the transport layer.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionNextQuestion, ActionSkipCountdown, ActionGoToAnswer, ActionGoToFinalResults, ActionEnd:
		return Action(s), nil
	}
	return "", Errorf(ErrInvalidAction, "action %q is not valid", s)
}

// Colours available for answer options. One is assigned to each option when
// the quiz snapshot is taken at game start.
var Colours = []string{"red", "blue", "green", "yellow", "purple", "pink", "orange"}

// AnswerOption is one selectable answer for a question.
type AnswerOption struct {
	AnswerID int    `json:"answerId"`
	Answer   string `json:"answer"`
	Correct  bool   `json:"correct"`
	Colour   string `json:"colour"`
}

// Question is a timed multiple-choice question. Upstream quiz validation
// guarantees 2-6 options with at least one marked correct.
type Question struct {
	QuestionID    int            `json:"questionId"`
	Question      string         `json:"question"`
	TimeLimit     int            `json:"timeLimit"` // seconds
	Points        int            `json:"points"`
	ThumbnailURL  string         `json:"thumbnailUrl"`
	AnswerOptions []AnswerOption `json:"answerOptions"`
}

// CorrectAnswerIDs returns the ids of the options flagged correct.
func (q Question) CorrectAnswerIDs() []int {
	var ids []int
	for _, opt := range q.AnswerOptions {
		if opt.Correct {
			ids = append(ids, opt.AnswerID)
		}
	}
	return ids
}

// Quiz is a quiz definition as supplied by the quiz collaborator, already
// validated for field lengths, point ranges and total time.
type Quiz struct {
	QuizID         int        `json:"quizId"`
	OwnerID        int        `json:"ownerId"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	TimeCreated    int64      `json:"timeCreated"`
	TimeLastEdited int64      `json:"timeLastEdited"`
	ThumbnailURL   string     `json:"thumbnailUrl"`
	Questions      []Question `json:"questions"`
}

// Player is an anonymous guest joined to one game. Immutable once created.
type Player struct {
	PlayerID   int    `json:"playerId"`
	PlayerName string `json:"playerName"`
	GameID     int    `json:"gameId"`
}

// PlayerAnswer is one recorded submission. At most one exists per
// (question, player) pair; resubmission while the question is open replaces
// the earlier record.
type PlayerAnswer struct {
	PlayerID      int   `json:"playerId"`
	AnswerIDs     []int `json:"answerIds"`
	SubmittedAt   int64 `json:"submittedAt"` // unix seconds
	IsCorrect     bool  `json:"isCorrect"`
	PointsAwarded int   `json:"pointsAwarded"`
}

// QuestionAnswers is the submission batch for one question in one game.
// QuestionStartTime is recorded (in unix milliseconds) when the batch is
// created on the first submission, and anchors answer-latency calculations.
type QuestionAnswers struct {
	QuestionID        int            `json:"questionId"`
	QuestionStartTime int64          `json:"questionStartTime"`
	Submissions       []PlayerAnswer `json:"submissions"`
}

// QuestionResult holds derived per-question statistics.
type QuestionResult struct {
	QuestionID        int      `json:"questionId"`
	PlayersCorrect    []string `json:"playersCorrect"`
	AverageAnswerTime int      `json:"averageAnswerTime"` // seconds, rounded
	PercentCorrect    int      `json:"percentCorrect"`    // 0-100, rounded
}

// PlayerScore is one leaderboard row.
type PlayerScore struct {
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// FinalResults is the frozen end-of-game leaderboard plus per-question stats.
// Computed once when the game enters FINAL_RESULTS and served verbatim
// afterwards so every viewer sees an identical snapshot.
type FinalResults struct {
	UsersRankedByScore []PlayerScore    `json:"usersRankedByScore"`
	QuestionResults    []QuestionResult `json:"questionResults"`
}

// GameSnapshot is the full serializable state of a game. The redis store
// round-trips it so results stay queryable across a restart.
type GameSnapshot struct {
	GameID                   int               `json:"gameId"`
	QuizID                   int               `json:"quizId"`
	Status                   GameState         `json:"status"`
	CurrentQuestionIndex     int               `json:"currentQuestionIndex"`
	AutoStartNum             int               `json:"autoStartNum"`
	TimeStarted              int64             `json:"timeStarted"`
	TimeEnded                int64             `json:"timeEnded"`
	Metadata                 Quiz              `json:"metadata"`
	Players                  []Player          `json:"players"`
	PlayerAnswersPerQuestion []QuestionAnswers `json:"playerAnswersPerQuestion"`
	QuestionResults          []QuestionResult  `json:"questionResults"`
	FinalResults             *FinalResults     `json:"finalResults,omitempty"`
}

// Questions is shorthand for the snapshot's question list.
func (s GameSnapshot) Questions() []Question {
	return s.Metadata.Questions
}

// GameStatus is the admin-facing view of a running game.
type GameStatus struct {
	State      GameState    `json:"state"`
	AtQuestion int          `json:"atQuestion"` // 1-based
	Players    []string     `json:"players"`
	Metadata   QuizMetadata `json:"metadata"`
}

// QuizMetadata is the quiz summary embedded in a game status response.
type QuizMetadata struct {
	QuizID         int        `json:"quizId"`
	Name           string     `json:"name"`
	TimeCreated    int64      `json:"timeCreated"`
	TimeLastEdited int64      `json:"timeLastEdited"`
	Description    string     `json:"description"`
	NumQuestions   int        `json:"numQuestions"`
	Questions      []Question `json:"questions"`
}

// PlayerStatus is the player-facing view of game progress. It also doubles as
// the payload on the websocket status feed.
type PlayerStatus struct {
	State        GameState `json:"state"`
	NumQuestions int       `json:"numQuestions"`
	AtQuestion   int       `json:"atQuestion"` // 1-based
}

// QuestionInfo is the current question as shown to players: the correctness
// flags are stripped.
type QuestionInfo struct {
	QuestionID    int                  `json:"questionId"`
	Question      string               `json:"question"`
	TimeLimit     int                  `json:"timeLimit"`
	ThumbnailURL  string               `json:"thumbnailUrl"`
	Points        int                  `json:"points"`
	AnswerOptions []QuestionInfoOption `json:"answerOptions"`
}

// QuestionInfoOption is an answer option without its correctness flag.
type QuestionInfoOption struct {
	AnswerID int    `json:"answerId"`
	Answer   string `json:"answer"`
	Colour   string `json:"colour"`
}
