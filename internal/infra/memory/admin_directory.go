package memory

import (
	"context"
	"sync"

	"toohak-game-service/internal/domain"
	"github.com/google/uuid"
)

// SessionDirectory is an in-memory app.AdminDirectory issuing uuid bearer
// tokens. It stands in for the identity collaborator that owns registration
// and login.
type SessionDirectory struct {
	mu     sync.RWMutex
	tokens map[string]int
}

func NewSessionDirectory() *SessionDirectory {
	return &SessionDirectory{
		tokens: make(map[string]int),
	}
}

// Mint creates a fresh session token for userID.
func (d *SessionDirectory) Mint(userID int) string {
	token := uuid.NewString()
	d.mu.Lock()
	d.tokens[token] = userID
	d.mu.Unlock()
	return token
}

// Seed installs a fixed token, used for config-provisioned dev sessions.
func (d *SessionDirectory) Seed(token string, userID int) {
	d.mu.Lock()
	d.tokens[token] = userID
	d.mu.Unlock()
}

func (d *SessionDirectory) Resolve(_ context.Context, token string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	userID, ok := d.tokens[token]
	if !ok {
		return 0, domain.Errorf(domain.ErrUnauthorised, "session is empty or invalid")
	}
	return userID, nil
}
