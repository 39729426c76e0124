package backend

import (
	"context"

	"talky/internal/documents"
	"talky/internal/records"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result bundles what a configured backend provides. Documents is nil when
// the backend cannot keep an upload registry.
type Result struct {
	Records   records.SourceStore
	Documents documents.Registry
	Ping      func(ctx context.Context) error
	Cleanup   CleanupFunc
}

// Close runs Cleanup if present.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	SQLiteDBPath string

	GoogleSpreadsheetID string
	GoogleSheetName     string

	SeedRecordsFile string
	SeedUserID      string
}

// Type names a record backend.
type Type string

const (
	SQLite Type = "sqlite"
	Sheets Type = "sheets"
	Memory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLite, Sheets, Memory:
		return true
	default:
		return false
	}
}
