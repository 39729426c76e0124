package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"talky/internal/core"
	"talky/internal/documents"
	"talky/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores extracted invoice records and uploaded document
// metadata.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ records.SourceStore = (*SQLiteRepository)(nil)
	_ documents.Registry  = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const upsertRecord = `
INSERT INTO invoice_records (
    id, user_id, issue_date, amount_total, quantity, unit_price, unit,
    category, subcategory, provider, item_name, invoice_number, document_key
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, id) DO UPDATE SET
    issue_date = excluded.issue_date,
    amount_total = excluded.amount_total,
    quantity = excluded.quantity,
    unit_price = excluded.unit_price,
    unit = excluded.unit,
    category = excluded.category,
    subcategory = excluded.subcategory,
    provider = excluded.provider,
    item_name = excluded.item_name,
    invoice_number = excluded.invoice_number,
    document_key = excluded.document_key`

// SaveRecords upserts records by (user, id) in one transaction, so a
// redelivered batch does not duplicate rows.
func (r *SQLiteRepository) SaveRecords(ctx context.Context, userID string, recs []core.ExpenseRecord) error {
	if err := records.RequireUser(userID); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("save record: missing id")
		}
		_, err := stmt.ExecContext(ctx,
			rec.ID, userID, rec.IssueDate,
			amountColumn(rec.AmountTotal), amountColumn(rec.Quantity), amountColumn(rec.UnitPrice),
			rec.Unit, rec.Category, rec.Subcategory, rec.Provider,
			rec.ItemName, rec.InvoiceNumber, rec.DocumentKey,
		)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}

	slog.InfoContext(ctx, "Records saved to SQLite", "user_id", userID, "count", len(recs))
	return nil
}

// ListRecords returns the user's records in insertion order.
func (r *SQLiteRepository) ListRecords(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
	if err := records.RequireUser(userID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, issue_date, amount_total, quantity, unit_price, unit,
       category, subcategory, provider, item_name, invoice_number, document_key
FROM invoice_records
WHERE user_id = ?
ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := []core.ExpenseRecord{}
	for rows.Next() {
		var (
			rec                       core.ExpenseRecord
			amount, quantity, unitPri sql.NullString
		)
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.IssueDate, &amount, &quantity, &unitPri, &rec.Unit,
			&rec.Category, &rec.Subcategory, &rec.Provider, &rec.ItemName, &rec.InvoiceNumber, &rec.DocumentKey,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.AmountTotal = amountFromColumn(amount)
		rec.Quantity = amountFromColumn(quantity)
		rec.UnitPrice = amountFromColumn(unitPri)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// RegisterDocument records an uploaded invoice file.
func (r *SQLiteRepository) RegisterDocument(ctx context.Context, doc documents.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (object_key, user_id, file_name, content_type, size_bytes, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (object_key) DO NOTHING`,
		doc.Key, doc.UserID, doc.FileName, doc.ContentType, doc.Size, doc.UploadedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.Key, err)
	}
	return nil
}

// ListDocuments returns the user's uploaded documents, newest first.
func (r *SQLiteRepository) ListDocuments(ctx context.Context, userID string) ([]documents.Document, error) {
	if err := records.RequireUser(userID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT object_key, user_id, file_name, content_type, size_bytes, uploaded_at
FROM documents
WHERE user_id = ?
ORDER BY uploaded_at DESC, object_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := []documents.Document{}
	for rows.Next() {
		var (
			doc        documents.Document
			uploadedAt string
		)
		if err := rows.Scan(&doc.Key, &doc.UserID, &doc.FileName, &doc.ContentType, &doc.Size, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if t, err := time.Parse(timestampLayout, uploadedAt); err == nil {
			doc.UploadedAt = t
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Fixed width so text order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// amountColumn keeps the raw text so malformed values survive a round trip.
func amountColumn(a core.Amount) sql.NullString {
	if !a.Present() {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Raw(), Valid: true}
}

func amountFromColumn(s sql.NullString) core.Amount {
	if !s.Valid {
		return core.Amount{}
	}
	return core.ParseAmount(s.String)
}
