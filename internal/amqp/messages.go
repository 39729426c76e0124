package amqp

import (
	"encoding/json"
	"time"

	"talky/internal/core"
	"talky/internal/documents"
)

// DocumentUploadedMessage tells the extraction pipeline that an invoice file
// is ready in object storage.
type DocumentUploadedMessage struct {
	UserID      string    `json:"userId"`
	ObjectKey   string    `json:"objectKey"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func NewDocumentUploadedMessage(doc documents.Document) *DocumentUploadedMessage {
	return &DocumentUploadedMessage{
		UserID:      doc.UserID,
		ObjectKey:   doc.Key,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		UploadedAt:  doc.UploadedAt,
	}
}

func (m *DocumentUploadedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordsExtractedMessage carries the line items the extraction pipeline
// read from one document. Items accept every known field spelling.
type RecordsExtractedMessage struct {
	UserID      string               `json:"userId"`
	DocumentKey string               `json:"documentKey"`
	Items       []core.ExpenseRecord `json:"items"`
	Timestamp   time.Time            `json:"timestamp"`
}

func (m *RecordsExtractedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordsExtractedMessageFromJSON(data []byte) (*RecordsExtractedMessage, error) {
	var msg RecordsExtractedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
