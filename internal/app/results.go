package app

import (
	"math"
	"sort"

	"toohak-game-service/internal/domain"
)

// AdminStatus returns the admin-facing view of the game.
func (g *Game) AdminStatus() domain.GameStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, len(g.snap.Players))
	for i, p := range g.snap.Players {
		names[i] = p.PlayerName
	}
	return domain.GameStatus{
		State:      g.snap.Status,
		AtQuestion: g.snap.CurrentQuestionIndex + 1,
		Players:    names,
		Metadata: domain.QuizMetadata{
			QuizID:         g.snap.Metadata.QuizID,
			Name:           g.snap.Metadata.Name,
			TimeCreated:    g.snap.Metadata.TimeCreated,
			TimeLastEdited: g.snap.Metadata.TimeLastEdited,
			Description:    g.snap.Metadata.Description,
			NumQuestions:   len(g.snap.Questions()),
			Questions:      cloneQuestions(g.snap.Questions()),
		},
	}
}

// PlayerStatus returns the player-facing progress view.
func (g *Game) PlayerStatus() domain.PlayerStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playerStatusLocked()
}

// QuestionInfo returns the current question with correctness flags stripped.
func (g *Game) QuestionInfo(questionPosition int) (domain.QuestionInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	questions := g.snap.Questions()
	if questionPosition < 1 || questionPosition > len(questions) {
		return domain.QuestionInfo{}, domain.Errorf(domain.ErrInvalidPosition,
			"question position %d is not valid for this game", questionPosition)
	}
	if questionPosition != g.snap.CurrentQuestionIndex+1 {
		return domain.QuestionInfo{}, domain.Errorf(domain.ErrInvalidPosition,
			"game is not currently on this question")
	}
	switch g.snap.Status {
	case domain.StateLobby, domain.StateQuestionCountdown, domain.StateFinalResults, domain.StateEnd:
		return domain.QuestionInfo{}, domain.Errorf(domain.ErrIncompatibleGameState,
			"question information is not available in %s state", g.snap.Status)
	}

	q := questions[questionPosition-1]
	options := make([]domain.QuestionInfoOption, len(q.AnswerOptions))
	for i, opt := range q.AnswerOptions {
		options[i] = domain.QuestionInfoOption{
			AnswerID: opt.AnswerID,
			Answer:   opt.Answer,
			Colour:   opt.Colour,
		}
	}
	return domain.QuestionInfo{
		QuestionID:    q.QuestionID,
		Question:      q.Question,
		TimeLimit:     q.TimeLimit,
		ThumbnailURL:  q.ThumbnailURL,
		Points:        q.Points,
		AnswerOptions: options,
	}, nil
}

// QuestionResults returns the stats for the current question. Only legal in
// ANSWER_SHOW; the result was recorded when the game entered that phase.
func (g *Game) QuestionResults(questionPosition int) (domain.QuestionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snap.Status != domain.StateAnswerShow {
		return domain.QuestionResult{}, domain.Errorf(domain.ErrIncompatibleGameState,
			"game is not in ANSWER_SHOW state")
	}
	questions := g.snap.Questions()
	if questionPosition < 1 || questionPosition > len(questions) {
		return domain.QuestionResult{}, domain.Errorf(domain.ErrInvalidPosition,
			"question position %d is not valid for this game", questionPosition)
	}
	if questionPosition != g.snap.CurrentQuestionIndex+1 {
		return domain.QuestionResult{}, domain.Errorf(domain.ErrInvalidPosition,
			"game is not currently on this question")
	}

	q := questions[questionPosition-1]
	if stored, ok := g.storedQuestionResultLocked(q.QuestionID); ok {
		return stored, nil
	}
	return emptyQuestionResult(q.QuestionID), nil
}

// FinalResults serves the frozen end-of-game results. Only legal in
// FINAL_RESULTS.
func (g *Game) FinalResults() (domain.FinalResults, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snap.Status != domain.StateFinalResults || g.snap.FinalResults == nil {
		return domain.FinalResults{}, domain.Errorf(domain.ErrIncompatibleGameState,
			"game is not in FINAL_RESULTS state")
	}
	return domain.FinalResults{
		UsersRankedByScore: append([]domain.PlayerScore(nil), g.snap.FinalResults.UsersRankedByScore...),
		QuestionResults:    cloneQuestionResults(g.snap.FinalResults.QuestionResults),
	}, nil
}

// recordQuestionResultLocked stores the stats for the current question when
// the game enters ANSWER_SHOW, if not recorded already. Results accumulate
// incrementally as questions are revealed.
func (g *Game) recordQuestionResultLocked() {
	q := g.snap.Questions()[g.snap.CurrentQuestionIndex]
	if _, ok := g.storedQuestionResultLocked(q.QuestionID); ok {
		return
	}
	g.snap.QuestionResults = append(g.snap.QuestionResults, g.questionResultLocked(q))
}

func (g *Game) storedQuestionResultLocked(questionID int) (domain.QuestionResult, bool) {
	for _, r := range g.snap.QuestionResults {
		if r.QuestionID == questionID {
			return r, true
		}
	}
	return domain.QuestionResult{}, false
}

// questionResultLocked derives the stats for one question from its submission
// batch. Questions nobody answered yield the zero/empty defaults.
func (g *Game) questionResultLocked(q domain.Question) domain.QuestionResult {
	var batch *domain.QuestionAnswers
	for i := range g.snap.PlayerAnswersPerQuestion {
		if g.snap.PlayerAnswersPerQuestion[i].QuestionID == q.QuestionID {
			batch = &g.snap.PlayerAnswersPerQuestion[i]
			break
		}
	}
	if batch == nil || len(batch.Submissions) == 0 {
		return emptyQuestionResult(q.QuestionID)
	}

	namesByID := make(map[int]string, len(g.snap.Players))
	for _, p := range g.snap.Players {
		namesByID[p.PlayerID] = p.PlayerName
	}

	correct := 0
	totalTime := int64(0)
	playersCorrect := []string{}
	startSeconds := batch.QuestionStartTime / 1000
	for _, sub := range batch.Submissions {
		if sub.IsCorrect {
			correct++
			if name, ok := namesByID[sub.PlayerID]; ok {
				playersCorrect = append(playersCorrect, name)
			}
		}
		totalTime += sub.SubmittedAt - startSeconds
	}

	total := len(batch.Submissions)
	return domain.QuestionResult{
		QuestionID:        q.QuestionID,
		PlayersCorrect:    playersCorrect,
		AverageAnswerTime: int(math.Round(float64(totalTime) / float64(total))),
		PercentCorrect:    int(math.Round(100 * float64(correct) / float64(total))),
	}
}

// computeFinalResultsLocked builds the leaderboard and the per-question stats
// for every question in the snapshot, reusing results recorded during play
// and filling zero defaults for questions that never opened.
func (g *Game) computeFinalResultsLocked() *domain.FinalResults {
	scores := make(map[int]int, len(g.snap.Players))
	for _, p := range g.snap.Players {
		scores[p.PlayerID] = 0
	}
	for _, batch := range g.snap.PlayerAnswersPerQuestion {
		for _, sub := range batch.Submissions {
			scores[sub.PlayerID] += sub.PointsAwarded
		}
	}

	ranked := make([]domain.PlayerScore, 0, len(g.snap.Players))
	for _, p := range g.snap.Players {
		ranked = append(ranked, domain.PlayerScore{PlayerName: p.PlayerName, Score: scores[p.PlayerID]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].PlayerName < ranked[j].PlayerName
	})

	results := make([]domain.QuestionResult, 0, len(g.snap.Questions()))
	for _, q := range g.snap.Questions() {
		if stored, ok := g.storedQuestionResultLocked(q.QuestionID); ok {
			results = append(results, stored)
			continue
		}
		results = append(results, g.questionResultLocked(q))
	}

	return &domain.FinalResults{
		UsersRankedByScore: ranked,
		QuestionResults:    results,
	}
}

func emptyQuestionResult(questionID int) domain.QuestionResult {
	return domain.QuestionResult{
		QuestionID:     questionID,
		PlayersCorrect: []string{},
	}
}
