package app

import (
	"toohak-game-service/internal/domain"
)

// SubmitAnswer records a player's answer for the question the game is
// currently on. Resubmitting while the question stays open replaces the
// earlier record in place, so the batch never holds more than one submission
// per player.
func (g *Game) SubmitAnswer(playerID, questionPosition int, answerIDs []int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	questions := g.snap.Questions()
	if questionPosition < 1 || questionPosition > len(questions) {
		return domain.Errorf(domain.ErrInvalidPosition,
			"question position %d is not valid for this game", questionPosition)
	}
	if questionPosition != g.snap.CurrentQuestionIndex+1 {
		return domain.Errorf(domain.ErrInvalidPosition, "game is not currently on this question")
	}
	if g.snap.Status != domain.StateQuestionOpen {
		return domain.Errorf(domain.ErrIncompatibleGameState, "game is not in QUESTION_OPEN state")
	}

	question := questions[g.snap.CurrentQuestionIndex]
	if err := validateAnswerIDs(question, answerIDs); err != nil {
		return err
	}

	batch := g.batchLocked(question.QuestionID)

	correct := sameIDSet(question.CorrectAnswerIDs(), answerIDs)
	points := 0
	if correct {
		points = question.Points
	}
	submission := domain.PlayerAnswer{
		PlayerID:      playerID,
		AnswerIDs:     append([]int(nil), answerIDs...),
		SubmittedAt:   g.now().Unix(),
		IsCorrect:     correct,
		PointsAwarded: points,
	}

	replaced := false
	for i := range batch.Submissions {
		if batch.Submissions[i].PlayerID == playerID {
			batch.Submissions[i] = submission
			replaced = true
			break
		}
	}
	if !replaced {
		batch.Submissions = append(batch.Submissions, submission)
	}

	g.changedLocked()
	return nil
}

// batchLocked finds or lazily creates the submission batch for a question.
// The batch's start time is stamped on creation, i.e. at the first recorded
// submission; answer latencies are measured against it.
func (g *Game) batchLocked(questionID int) *domain.QuestionAnswers {
	for i := range g.snap.PlayerAnswersPerQuestion {
		if g.snap.PlayerAnswersPerQuestion[i].QuestionID == questionID {
			return &g.snap.PlayerAnswersPerQuestion[i]
		}
	}
	g.snap.PlayerAnswersPerQuestion = append(g.snap.PlayerAnswersPerQuestion, domain.QuestionAnswers{
		QuestionID:        questionID,
		QuestionStartTime: g.now().UnixMilli(),
	})
	return &g.snap.PlayerAnswersPerQuestion[len(g.snap.PlayerAnswersPerQuestion)-1]
}

func validateAnswerIDs(question domain.Question, answerIDs []int) error {
	if len(answerIDs) == 0 {
		return domain.Errorf(domain.ErrInvalidAnswerIDs, "at least one answer ID must be submitted")
	}
	seen := make(map[int]bool, len(answerIDs))
	for _, id := range answerIDs {
		if seen[id] {
			return domain.Errorf(domain.ErrInvalidAnswerIDs, "duplicate answer IDs provided")
		}
		seen[id] = true
	}
	valid := make(map[int]bool, len(question.AnswerOptions))
	for _, opt := range question.AnswerOptions {
		valid[opt.AnswerID] = true
	}
	for _, id := range answerIDs {
		if !valid[id] {
			return domain.Errorf(domain.ErrInvalidAnswerIDs,
				"answer ID %d is not valid for this question", id)
		}
	}
	return nil
}

// sameIDSet reports whether the two id lists contain exactly the same members.
// Partial overlap scores nothing.
func sameIDSet(want, got []int) bool {
	if len(want) != len(got) {
		return false
	}
	set := make(map[int]bool, len(want))
	for _, id := range want {
		set[id] = true
	}
	for _, id := range got {
		if !set[id] {
			return false
		}
	}
	return true
}
