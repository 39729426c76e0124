package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"talky/internal/amqp"
	"talky/internal/analytics"
	"talky/internal/core"
	applog "talky/internal/log"
	"talky/internal/records"
)

// IngestWorker stores the line items the extraction pipeline reads from
// uploaded invoices.
type IngestWorker struct {
	store  records.Store
	mirror records.Store
	engine *analytics.Engine
}

type Option func(*IngestWorker)

// WithMirror also appends every stored batch to m, typically the Google
// Sheet the back office reads by hand. Mirror failures are logged only.
func WithMirror(m records.Store) Option {
	return func(w *IngestWorker) { w.mirror = m }
}

func NewIngestWorker(store records.Store, engine *analytics.Engine, opts ...Option) *IngestWorker {
	if engine == nil {
		engine = analytics.New()
	}
	w := &IngestWorker{store: store, engine: engine}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleRecordsExtracted saves one extracted batch. Items keep the amounts
// and dates exactly as extracted; data quality problems are logged, not
// rejected, so the reports can count them.
func (w *IngestWorker) HandleRecordsExtracted(ctx context.Context, msg *amqp.RecordsExtractedMessage) error {
	if msg.UserID == "" {
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, records.ErrMissingUser)
	}
	logger := slog.With(applog.FieldUserID, msg.UserID,
		applog.FieldDocumentKey, msg.DocumentKey)

	if len(msg.Items) == 0 {
		logger.InfoContext(ctx, "Extracted batch has no items")
		return nil
	}

	items := PrepareItems(msg.UserID, msg.DocumentKey, msg.Items)

	if d := w.engine.Diagnose(items); d.Skipped() {
		logger.WarnContext(ctx, "Extracted batch has unusable fields",
			applog.FieldMalformed, d.MalformedAmounts,
			applog.FieldBadDates, d.UnparseableDates)
	}

	if err := w.store.SaveRecords(ctx, msg.UserID, items); err != nil {
		return fmt.Errorf("save extracted records: %w", err)
	}
	logger.InfoContext(ctx, "Stored extracted records", applog.FieldRecords, len(items))

	if w.mirror != nil {
		if err := w.mirror.SaveRecords(ctx, msg.UserID, items); err != nil {
			logger.WarnContext(ctx, "Failed to mirror extracted records", applog.FieldError, err)
		}
	}
	return nil
}

// PrepareItems stamps owner and document on every item and assigns missing
// IDs. IDs derived from the document key are stable, so a redelivered batch
// overwrites instead of duplicating.
func PrepareItems(userID, documentKey string, items []core.ExpenseRecord) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, len(items))
	for i, it := range items {
		it.UserID = userID
		if it.DocumentKey == "" {
			it.DocumentKey = documentKey
		}
		if it.ID == "" {
			if documentKey != "" {
				it.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", documentKey, i))).String()
			} else {
				it.ID = uuid.NewString()
			}
		}
		out[i] = it
	}
	return out
}
