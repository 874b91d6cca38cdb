package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

func normalizedTx(occurredAt time.Time, value, opID string) models.NormalizedTransaction {
	return models.NormalizedTransaction{
		Source:      models.SourceBCP,
		Template:    models.TemplateAccountTransfer,
		OccurredAt:  occurredAt,
		Amount:      models.AmountInfo{Value: value, Currency: models.CurrencyPEN},
		OperationID: opID,
	}
}

func storedTx(id int64, date string, amount float64, opID, messageID string) models.StoredTransaction {
	return models.StoredTransaction{
		ID:          id,
		Date:        date,
		AmountValue: amount,
		Currency:    string(models.CurrencyPEN),
		OperationID: opID,
		MessageID:   messageID,
	}
}

func TestDedupeNormalizedFirstSeenWins(t *testing.T) {
	d := NewDeduplicator()
	ts := time.Date(2025, 10, 5, 14, 30, 0, 0, time.UTC)

	first := normalizedTx(ts, "150.50", "OP123")
	first.Merchant = "FIRST"
	second := normalizedTx(ts, "150.50", "OP123")
	second.Merchant = "SECOND"

	out := d.DedupeNormalized([]models.NormalizedTransaction{first, second})
	require.Len(t, out, 1)
	assert.Equal(t, "FIRST", out[0].Merchant)
}

func TestDedupeNormalizedIdempotent(t *testing.T) {
	d := NewDeduplicator()
	ts := time.Date(2025, 10, 5, 14, 30, 0, 0, time.UTC)
	in := []models.NormalizedTransaction{
		normalizedTx(ts, "150.50", "OP123"),
		normalizedTx(ts.Add(-time.Hour), "20.00", "OP456"),
		normalizedTx(ts, "150.50", "OP123"),
	}

	once := d.DedupeNormalized(in)
	twice := d.DedupeNormalized(once)
	assert.Equal(t, once, twice)
}

func TestDedupeNormalizedDescendingOrder(t *testing.T) {
	d := NewDeduplicator()
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	in := []models.NormalizedTransaction{
		normalizedTx(base, "1.00", "A"),
		normalizedTx(base.Add(48*time.Hour), "2.00", "B"),
		normalizedTx(base.Add(24*time.Hour), "3.00", "C"),
	}

	out := d.DedupeNormalized(in)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		assert.False(t, out[i].OccurredAt.After(out[i-1].OccurredAt))
	}
}

func TestDedupeNormalizedUnkeyablePassThrough(t *testing.T) {
	d := NewDeduplicator()
	// No date and no amount: both records are unkeyable and must survive as
	// distinct rather than collapse onto a shared empty key.
	a := models.NormalizedTransaction{Source: models.SourceBCP, Notes: []string{"a"}}
	b := models.NormalizedTransaction{Source: models.SourceBCP, Notes: []string{"b"}}

	out := d.DedupeNormalized([]models.NormalizedTransaction{a, b})
	assert.Len(t, out, 2)
}

func TestDedupeNormalizedDatelessSortLast(t *testing.T) {
	d := NewDeduplicator()
	dated := normalizedTx(time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC), "5.00", "X")
	dateless := models.NormalizedTransaction{
		Source: models.SourceBCP,
		Amount: models.AmountInfo{Value: "9.00", Currency: models.CurrencyPEN},
	}

	out := d.DedupeNormalized([]models.NormalizedTransaction{dateless, dated})
	require.Len(t, out, 2)
	assert.Equal(t, "X", out[0].OperationID)
	assert.True(t, out[1].OccurredAt.IsZero())
}

func TestDedupeStoredIdenticalKeyDifferentIDs(t *testing.T) {
	d := NewDeduplicator()
	in := []models.StoredTransaction{
		storedTx(1, "2025-10-05T14:30:00-05:00", 150.50, "OP123", "msg-1"),
		storedTx(2, "2025-10-05T14:30:00-05:00", 150.50, "OP123", "msg-1"),
	}

	out := d.DedupeStored(in)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ID)
}

func TestDedupeStoredMessageIDSeparatesKeys(t *testing.T) {
	d := NewDeduplicator()
	in := []models.StoredTransaction{
		storedTx(1, "2025-10-05T14:30:00-05:00", 150.50, "OP123", "msg-1"),
		storedTx(2, "2025-10-05T14:30:00-05:00", 150.50, "OP123", "msg-2"),
	}

	out := d.DedupeStored(in)
	assert.Len(t, out, 2)
}

func TestDedupeStoredUnparsableDateSortsLast(t *testing.T) {
	d := NewDeduplicator()
	in := []models.StoredTransaction{
		storedTx(1, "not-a-date", 1.00, "A", "m1"),
		storedTx(2, "2025-10-05T14:30:00-05:00", 2.00, "B", "m2"),
	}

	out := d.DedupeStored(in)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestStoredKeyRowFallback(t *testing.T) {
	tx := models.StoredTransaction{ID: 42}
	assert.Equal(t, "row|42", StoredKey(&tx))
}

func TestNormalizedKeyDefaultsCurrency(t *testing.T) {
	ts := time.Date(2025, 10, 5, 14, 30, 0, 0, time.UTC)
	tx := models.NormalizedTransaction{
		OccurredAt: ts,
		Amount:     models.AmountInfo{Value: "150.50"},
	}
	assert.Contains(t, NormalizedKey(&tx), "|PEN|")
}
