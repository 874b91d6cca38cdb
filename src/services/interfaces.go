package services

import (
	"errors"

	"github.com/username/finmail/backend/src/models"
)

var (
	ErrEmptyBatch   = errors.New("ingest batch contains no messages")
	ErrBatchTooBig  = errors.New("ingest batch exceeds the configured size limit")
	ErrNoExtraction = errors.New("no transaction could be extracted from the message")
)

// MessageOutcome is the per-message result of an ingest run.
type MessageOutcome struct {
	MessageID   string                        `json:"message_id"`
	Extracted   bool                          `json:"extracted"`
	Duplicate   bool                          `json:"duplicate,omitempty"`
	NeedsReview bool                          `json:"needs_review,omitempty"`
	Winner      string                        `json:"winner,omitempty"`
	Transaction *models.NormalizedTransaction `json:"transaction,omitempty"`
	Error       string                        `json:"error,omitempty"`
}

// IngestResult aggregates a whole batch.
type IngestResult struct {
	Received  int              `json:"received"`
	Extracted int              `json:"extracted"`
	Inserted  int              `json:"inserted"`
	Duplicate int              `json:"duplicate"`
	Failed    int              `json:"failed"`
	Outcomes  []MessageOutcome `json:"outcomes"`
}

// TemplateSummary is one row of the spending summary grouped by template
// and currency.
type TemplateSummary struct {
	Template string  `json:"template"`
	Currency string  `json:"currency"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
}

// IngestionService runs the extraction pipeline over inbound email bodies
// and persists the results.
type IngestionService interface {
	ProcessMessage(userID int64, msg models.RawMessage) (*MessageOutcome, error)
	ProcessBatch(userID int64, msgs []models.RawMessage) (*IngestResult, error)
	GetTransactions(userID int64) ([]models.StoredTransaction, error)
	GetSummary(userID int64) ([]TemplateSummary, error)
	DeleteAllTransactions(userID int64) error
	InvalidateUserCache(userID int64)
}
