package records

import (
	"context"
	"errors"

	"talky/internal/core"
)

// ErrMissingUser is returned when a fetch or save is not scoped to a user.
var ErrMissingUser = errors.New("user id is required")

// Ports for outbound adapters. Every call names the user whose records it
// touches; there is no ambient current user.
type (
	Source interface {
		// ListRecords returns the full snapshot of the user's expense records.
		ListRecords(ctx context.Context, userID string) ([]core.ExpenseRecord, error)
	}

	Store interface {
		SaveRecords(ctx context.Context, userID string, records []core.ExpenseRecord) error
	}

	SourceStore interface {
		Source
		Store
	}
)

// RequireUser validates userID for adapters.
func RequireUser(userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	return nil
}
