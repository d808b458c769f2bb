package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every validation failure the game core can produce.
// All failures are deterministic given the same state and input; there is no
// transient or retryable category.
type ErrorKind string

const (
	ErrUnauthorised          ErrorKind = "UNAUTHORISED"
	ErrInvalidQuizID         ErrorKind = "INVALID_QUIZ_ID"
	ErrInvalidGameID         ErrorKind = "INVALID_GAME_ID"
	ErrInvalidPlayerID       ErrorKind = "INVALID_PLAYER_ID"
	ErrInvalidPlayerName     ErrorKind = "INVALID_PLAYER_NAME"
	ErrInvalidAction         ErrorKind = "INVALID_ACTION"
	ErrIncompatibleGameState ErrorKind = "INCOMPATIBLE_GAME_STATE"
	ErrInvalidPosition       ErrorKind = "INVALID_POSITION"
	ErrInvalidAnswerIDs      ErrorKind = "INVALID_ANSWER_IDS"
	ErrQuizIsEmpty           ErrorKind = "QUIZ_IS_EMPTY"
	ErrMaxActiveGames        ErrorKind = "MAX_ACTIVE_GAMES"
	ErrInvalidGame           ErrorKind = "INVALID_GAME"
)

// Error carries an ErrorKind alongside a human-readable message. The transport
// layer branches on Kind to pick a status code; the message is passed through
// to clients verbatim.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Errorf builds a tagged Error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a tagged Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a tagged Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
