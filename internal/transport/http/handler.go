package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"toohak-game-service/internal/app"
	"toohak-game-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// SessionMinter issues admin session tokens for the dev auth endpoint.
type SessionMinter interface {
	Mint(userID int) string
}

// Handler exposes the game service over REST plus a websocket status feed.
type Handler struct {
	service  *app.GameService
	sessions SessionMinter
	feed     *StatusFeedHandler
}

func NewHandler(service *app.GameService, sessions SessionMinter) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		feed:     NewStatusFeedHandler(service),
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/admin/auth/session", h.mintSession)

		r.Route("/admin/quiz/{quizID}", func(r chi.Router) {
			r.Get("/games", h.listGames)
			r.Post("/game/start", h.startGame)
			r.Route("/game/{gameID}", func(r chi.Router) {
				r.Put("/", h.updateGameState)
				r.Get("/", h.gameStatus)
				r.Get("/results", h.gameResults)
			})
		})

		r.Post("/player/join", h.joinGame)
		r.Route("/player/{playerID}", func(r chi.Router) {
			r.Get("/", h.playerStatus)
			r.Get("/results", h.finalResults)
			r.Route("/question/{questionPosition}", func(r chi.Router) {
				r.Get("/", h.questionInfo)
				r.Put("/answer", h.submitAnswer)
				r.Get("/results", h.questionResults)
			})
		})

		r.Get("/ws/game/{gameID}", h.feed.ServeStatusFeed)
	})

	return r
}

func (h *Handler) mintSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID int `json:"userId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	token := h.sessions.Mint(body.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) startGame(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathInt(w, r, "quizID")
	if !ok {
		return
	}
	var body struct {
		AutoStartNum int `json:"autoStartNum"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	gameID, err := h.service.StartGame(r.Context(), bearerToken(r), quizID, body.AutoStartNum)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"gameId": gameID})
}

func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathInt(w, r, "quizID")
	if !ok {
		return
	}
	active, inactive, err := h.service.ListGames(r.Context(), bearerToken(r), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{
		"activeGames":   active,
		"inactiveGames": inactive,
	})
}

func (h *Handler) updateGameState(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathInt(w, r, "quizID")
	if !ok {
		return
	}
	gameID, ok := pathInt(w, r, "gameID")
	if !ok {
		return
	}
	var body struct {
		Action string `json:"action"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.service.UpdateGameState(r.Context(), bearerToken(r), quizID, gameID, body.Action); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) gameStatus(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathInt(w, r, "quizID")
	if !ok {
		return
	}
	gameID, ok := pathInt(w, r, "gameID")
	if !ok {
		return
	}
	status, err := h.service.GameStatus(r.Context(), bearerToken(r), quizID, gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) gameResults(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathInt(w, r, "quizID")
	if !ok {
		return
	}
	gameID, ok := pathInt(w, r, "gameID")
	if !ok {
		return
	}
	results, err := h.service.GameResults(r.Context(), bearerToken(r), quizID, gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) joinGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GameID     int    `json:"gameId"`
		PlayerName string `json:"playerName"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	playerID, err := h.service.JoinGame(r.Context(), body.GameID, body.PlayerName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"playerId": playerID})
}

func (h *Handler) playerStatus(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt(w, r, "playerID")
	if !ok {
		return
	}
	status, err := h.service.PlayerStatus(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) questionInfo(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt(w, r, "playerID")
	if !ok {
		return
	}
	position, ok := pathInt(w, r, "questionPosition")
	if !ok {
		return
	}
	info, err := h.service.QuestionInfo(r.Context(), playerID, position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt(w, r, "playerID")
	if !ok {
		return
	}
	position, ok := pathInt(w, r, "questionPosition")
	if !ok {
		return
	}
	var body struct {
		AnswerIDs []int `json:"answerIds"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.service.SubmitAnswer(r.Context(), playerID, position, body.AnswerIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) questionResults(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt(w, r, "playerID")
	if !ok {
		return
	}
	position, ok := pathInt(w, r, "questionPosition")
	if !ok {
		return
	}
	result, err := h.service.QuestionResults(r.Context(), playerID, position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) finalResults(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt(w, r, "playerID")
	if !ok {
		return
	}
	results, err := h.service.FinalResults(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "BAD_REQUEST",
			Message: name + " must be a number",
		})
		return 0, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "BAD_REQUEST",
			Message: "request body is missing or malformed",
		})
		return false
	}
	return true
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps tagged error kinds onto status codes: UNAUTHORISED is 401,
// INVALID_QUIZ_ID (existence/ownership) is 403, every other validation
// failure is 400.
func writeError(w http.ResponseWriter, err error) {
	var domErr *domain.Error
	if !errors.As(err, &domErr) {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "INTERNAL",
			Message: err.Error(),
		})
		return
	}
	status := http.StatusBadRequest
	switch domErr.Kind {
	case domain.ErrUnauthorised:
		status = http.StatusUnauthorized
	case domain.ErrInvalidQuizID:
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorBody{Error: string(domErr.Kind), Message: domErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
