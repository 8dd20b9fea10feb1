package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no session exists for a file
var ErrNotFound = errors.New("session not found")

// Message is one conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the saved conversation about one dataset file
type Session struct {
	ID        string
	FileName  string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionInfo describes a session without its messages
type SessionInfo struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists conversations keyed by dataset file name
type Store interface {
	// Save replaces the messages of the file's session, creating it if needed
	Save(ctx context.Context, fileName string, messages []Message) error
	// Load returns ErrNotFound when the file has no session
	Load(ctx context.Context, fileName string) (*Session, error)
	// List returns every session, most recently updated first
	List(ctx context.Context) ([]SessionInfo, error)
	Clear(ctx context.Context) error
	// Prune deletes sessions not updated since before and reports how many
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
