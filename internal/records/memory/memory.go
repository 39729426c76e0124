package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"talky/internal/core"
	"talky/internal/records"
)

// Store keeps records per user in process memory.
type Store struct {
	mu    sync.RWMutex
	items map[string][]core.ExpenseRecord
}

func New() *Store {
	return &Store{items: make(map[string][]core.ExpenseRecord)}
}

// NewFromFile loads a seed export (see core.DecodeExport). Items without a
// userId are assigned to defaultUser. A missing file yields an empty store.
func NewFromFile(path, defaultUser string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	items, err := core.DecodeExport(f)
	if err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for _, r := range items {
		user := r.UserID
		if user == "" {
			user = defaultUser
		}
		if user == "" {
			continue
		}
		r.UserID = user
		s.items[user] = append(s.items[user], r)
	}
	return s, nil
}

// ListRecords returns a copy of the user's records in insertion order.
func (s *Store) ListRecords(_ context.Context, userID string) ([]core.ExpenseRecord, error) {
	if err := records.RequireUser(userID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.ExpenseRecord{}, s.items[userID]...), nil
}

// SaveRecords appends records for the user.
func (s *Store) SaveRecords(_ context.Context, userID string, recs []core.ExpenseRecord) error {
	if err := records.RequireUser(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		r.UserID = userID
		s.items[userID] = append(s.items[userID], r)
	}
	return nil
}

var _ records.SourceStore = (*Store)(nil)
