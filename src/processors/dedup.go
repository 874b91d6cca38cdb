package processors

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/utils"
)

// Deduplicator collapses a batch of transactions into a unique, time-ordered
// set. Two transactions sharing a composite key are the same real-world
// event; the first occurrence in the input wins, so callers wanting
// latest-value-wins must present inputs most-recent-first. The whole batch
// must be supplied at once: "first seen" depends on full-batch ordering.
type Deduplicator struct{}

func NewDeduplicator() *Deduplicator { return &Deduplicator{} }

// NormalizedKey derives the dedup key of a pre-persistence transaction:
// occurredAt | currency (default PEN) | amountValue | operationId. A record
// lacking both a date and an amount is unkeyable and gets a random per-call
// nonce instead, so it passes through as unique rather than colliding with
// other unkeyable records.
func NormalizedKey(tx *models.NormalizedTransaction) string {
	if tx.OccurredAt.IsZero() && tx.Amount.Value == "" {
		return "nonce|" + uuid.NewString()
	}
	currency := tx.Amount.Currency
	if currency == "" {
		currency = models.CurrencyPEN
	}
	return fmt.Sprintf("%s|%s|%s|%s",
		tx.OccurredAt.Format(time.RFC3339), currency, tx.Amount.Value, tx.OperationID)
}

// StoredKey derives the dedup key of a persisted transaction. It folds the
// message identifier in on top of the normalized key parts and formats the
// amount with fixed two-decimal precision. A row with no key-bearing fields
// at all keys on the storage identifier.
func StoredKey(tx *models.StoredTransaction) string {
	if tx.Date == "" && tx.AmountValue == 0 && tx.OperationID == "" && tx.MessageID == "" {
		return fmt.Sprintf("row|%d", tx.ID)
	}
	currency := tx.Currency
	if currency == "" {
		currency = string(models.CurrencyPEN)
	}
	return fmt.Sprintf("%s|%s|%.2f|%s|%s",
		tx.Date, currency, tx.AmountValue, tx.OperationID, tx.MessageID)
}

// DedupeNormalized filters duplicates (first seen wins) and sorts the
// survivors by occurredAt descending; records without a date sort last.
// Never fails: unkeyable records pass through as unique by construction.
func (d *Deduplicator) DedupeNormalized(txs []models.NormalizedTransaction) []models.NormalizedTransaction {
	seen := make(map[string]struct{}, len(txs))
	out := make([]models.NormalizedTransaction, 0, len(txs))
	for _, tx := range txs {
		key := NormalizedKey(&tx)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

// DedupeStored is DedupeNormalized for the persisted shape.
func (d *Deduplicator) DedupeStored(txs []models.StoredTransaction) []models.StoredTransaction {
	seen := make(map[string]struct{}, len(txs))
	out := make([]models.StoredTransaction, 0, len(txs))
	for _, tx := range txs {
		key := StoredKey(&tx)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return storedDate(&out[i]).After(storedDate(&out[j]))
	})
	return out
}

// storedDate parses the persisted RFC3339 date; unparsable or empty dates
// read as time zero so those rows sort to the oldest position.
func storedDate(tx *models.StoredTransaction) time.Time {
	return utils.ParseRFC3339(tx.Date)
}
