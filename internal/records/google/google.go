package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talky/internal/core"
	"talky/internal/records"

	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads and appends expense records in a Google Sheet whose first row
// holds the column labels.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ records.SourceStore = (*Client)(nil)

// New creates a Sheets client with credentials from the environment; see
// clientOptions.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		sheetName = "Facturas"
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	opts, err := clientOptions(ctx)
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ListRecords reads the whole sheet and returns the user's rows.
func (c *Client) ListRecords(ctx context.Context, userID string) ([]core.ExpenseRecord, error) {
	if err := records.RequireUser(userID); err != nil {
		return nil, err
	}
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:Z", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read records sheet %s: %w", c.sheetName, err)
	}
	return parseRecordRows(resp.Values, userID), nil
}

// SaveRecords appends one row per record. The header is written first when
// the sheet is empty.
func (c *Client) SaveRecords(ctx context.Context, userID string, recs []core.ExpenseRecord) error {
	if err := records.RequireUser(userID); err != nil {
		return err
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(recs) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A1:Z1", c.sheetName)
	head, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read sheet header: %w", err)
	}

	rows := make([][]interface{}, 0, len(recs)+1)
	if len(head.Values) == 0 {
		rows = append(rows, sheetColumns)
	}
	for _, r := range recs {
		r.UserID = userID
		rows = append(rows, recordRow(r))
	}

	// RAW keeps cells as written; USER_ENTERED would let the sheet locale
	// turn "2024-01-05" into a date that reads back as "1/5/2024".
	vr := &gsheet.ValueRange{Values: rows}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A:A", c.sheetName), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append records: %w", err)
	}
	return nil
}
