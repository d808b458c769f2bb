package http

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"toohak-game-service/internal/domain"
	"github.com/gorilla/websocket"
)

func TestWebSocketStatusFeed(t *testing.T) {
	service, sessions := newTestService(t)
	handler := NewHandler(service, sessions)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	gameID, err := service.StartGame(context.Background(), testToken, 1, 0)
	if err != nil {
		t.Fatalf("start game: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + fmt.Sprintf("/v1/ws/game/%d", gameID)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Current state arrives first.
	status := readStatus(conn, t)
	if status.State != domain.StateLobby {
		t.Fatalf("expected LOBBY, got %s", status.State)
	}

	if err := service.UpdateGameState(context.Background(), testToken, 1, gameID, "NEXT_QUESTION"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	status = readStatus(conn, t)
	if status.State != domain.StateQuestionCountdown {
		t.Fatalf("expected QUESTION_COUNTDOWN, got %s", status.State)
	}
}

func TestWebSocketUnknownGame(t *testing.T) {
	service, sessions := newTestService(t)
	handler := NewHandler(service, sessions)
	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/v1/ws/game/99"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			Message string `json:"message"`
		} `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("expected error message, got %s", msg.Type)
	}
}

func readStatus(conn *websocket.Conn, t *testing.T) domain.PlayerStatus {
	t.Helper()
	var msg struct {
		Type    string              `json:"type"`
		Payload domain.PlayerStatus `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "status" {
		t.Fatalf("expected status message, got %s", msg.Type)
	}
	return msg.Payload
}
