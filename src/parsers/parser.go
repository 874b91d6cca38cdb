package parsers

import (
	"time"

	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/parsers/bcp"
)

// Parser extracts one normalized transaction from a plain-text email body.
// A parser either succeeds completely or fails with ErrAmountNotFound or
// ErrDatetimeNotFound, meaning its template does not describe the email;
// the dispatcher then tries the next template or the fallback path.
type Parser interface {
	Template() models.Template
	Parse(body string, receivedAt time.Time) (*models.NormalizedTransaction, error)
}

// Fatal extraction errors, re-exported so callers can classify failures
// with errors.Is without importing the bank package.
var (
	ErrAmountNotFound   = bcp.ErrAmountNotFound
	ErrDatetimeNotFound = bcp.ErrDatetimeNotFound
)
