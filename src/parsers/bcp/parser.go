// Template parsers for BCP notification emails. Each parser is a pure
// function of (body, receivedAt): it either returns a fully populated
// NormalizedTransaction or fails with ErrAmountNotFound/ErrDatetimeNotFound,
// meaning "this template does not describe this email". There is no partial
// success.
package bcp

import (
	"errors"
	"regexp"
	"time"

	"github.com/username/finmail/backend/src/models"
)

var (
	// ErrAmountNotFound means the template's amount labels matched nothing.
	ErrAmountNotFound = errors.New("amount_not_found")
	// ErrDatetimeNotFound means no date was found in the text and no
	// received timestamp was available to fall back to.
	ErrDatetimeNotFound = errors.New("datetime_not_found")
)

// Confidence targets: the number of matched signals that counts as full
// confidence for each template, tuned to how many signals that template's
// emails actually carry. confidence = min(1, signals/target).
const (
	transferConfidenceTarget = 6
	feeConfidenceTarget      = 5
	purchaseConfidenceTarget = 6
	serviceConfidenceTarget  = 6
)

const noteDatetimeFallback = "datetime_fallback_received_at"

// Operation id labels shared by all four templates, most specific first.
var operationPatterns = []*regexp.Regexp{
	LabelPattern(`N[uú]mero de operaci[oó]n`),
	LabelPattern(`C[oó]digo de operaci[oó]n`),
	LabelPattern(`Operaci[oó]n`),
}

var channelPatterns = []*regexp.Regexp{
	LabelPattern(`Canal`),
}

// resolveDate applies the shared date policy: text pattern first, then the
// email's received timestamp. The second return reports whether the date
// came from the text, which is what counts as a confidence signal.
func resolveDate(body string, receivedAt time.Time) (time.Time, bool, error) {
	if ts := ExtractDateTime(body); ts != nil {
		return *ts, true, nil
	}
	if !receivedAt.IsZero() {
		return receivedAt, false, nil
	}
	return time.Time{}, false, ErrDatetimeNotFound
}

func confidence(signals, target int) float64 {
	c := float64(signals) / float64(target)
	if c > 1 {
		c = 1
	}
	return c
}

// newTransaction seeds the invariant part every parser shares. The caller
// has already resolved amount and date, the two fields that must never be
// missing on an emitted transaction.
func newTransaction(template models.Template, amount models.AmountInfo, occurredAt time.Time) *models.NormalizedTransaction {
	return &models.NormalizedTransaction{
		Source:       models.SourceBCP,
		Template:     template,
		OccurredAt:   occurredAt,
		Amount:       amount,
		ExchangeRate: models.ExchangeRateInfo{Used: false},
	}
}
