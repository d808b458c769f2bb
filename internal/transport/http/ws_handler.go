package http

import (
	"log"
	"net/http"
	"strconv"

	"toohak-game-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// StatusFeedHandler streams game state transitions to spectating clients.
type StatusFeedHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewStatusFeedHandler(service *app.GameService) *StatusFeedHandler {
	return &StatusFeedHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeStatusFeed upgrades the request and pushes a status message on every
// game transition, starting with the current state. The feed is one-way: the
// read loop only exists to notice the client hanging up.
func (h *StatusFeedHandler) ServeStatusFeed(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.Atoi(chi.URLParam(r, "gameID"))
	if err != nil {
		http.Error(w, "gameID must be a number", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.WatchGame(r.Context(), gameID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "status", Payload: status}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}
