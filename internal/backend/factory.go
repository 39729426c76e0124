package backend

import (
	"context"
	"fmt"

	applog "talky/internal/log"
	gsheet "talky/internal/records/google"
	"talky/internal/records/memory"
	"talky/internal/storage"
)

// Factory builds record backends.
type Factory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// Create opens the backend named by config.Type.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLite:
		return f.createSQLite(config)
	case Sheets:
		return f.createSheets(ctx, config)
	default:
		return f.createMemory(config)
	}
}

func (f *Factory) createSQLite(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{
		Records:   repo,
		Documents: repo,
		Ping:      repo.Ping,
		Cleanup:   repo.Close,
	}, nil
}

func (f *Factory) createSheets(ctx context.Context, config Config) (*Result, error) {
	cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &Result{Records: cli}, nil
}

func (f *Factory) createMemory(config Config) (*Result, error) {
	store, err := memory.NewFromFile(config.SeedRecordsFile, config.SeedUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend",
		"seed_file", config.SeedRecordsFile,
		"seed_user", config.SeedUserID)
	return &Result{Records: store}, nil
}
