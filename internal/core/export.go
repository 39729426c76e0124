package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeExport reads a record export: either a bare JSON array of items or
// the list payload {"items": [...]}.
func DecodeExport(r io.Reader) ([]ExpenseRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var recs []ExpenseRecord
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode export: %w", err)
		}
		return recs, nil
	}

	var payload struct {
		Items []ExpenseRecord `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return payload.Items, nil
}
