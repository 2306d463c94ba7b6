package driven

import (
	"context"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
)

// SessionStore defines the driven port for the persisted session record.
// The session controller is its only writer.
type SessionStore interface {
	// Load returns the persisted record. A missing record is the zero value.
	Load(ctx context.Context) (model.SessionRecord, error)

	// Save replaces the persisted record. The trading flag and status label
	// are written in one unit; a false flag or empty label removes the key.
	Save(ctx context.Context, record model.SessionRecord) error

	// Clear removes every persisted session key.
	Clear(ctx context.Context) error
}
