package services

import (
	"os"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/logger"
	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/processors"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestService() *ingestionServiceImpl {
	return NewIngestionService(
		processors.NewResultMerger(),
		processors.NewDeduplicator(),
		cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	).(*ingestionServiceImpl)
}

func TestExtractTemplateEmail(t *testing.T) {
	s := newTestService()
	msg := models.RawMessage{
		MessageID:  "msg-1",
		Body:       "Monto transferido: S/ 150.50\nFecha y hora: 05/10/2025 14:30\nCuenta de destino: 00111222\nBeneficiario: MARIA LOPEZ\nCanal: Banca Movil BCP\nNumero de operacion: 04807225",
		ReceivedAt: time.Date(2025, 10, 5, 19, 35, 0, 0, time.UTC),
	}

	merged := s.extract(msg)
	require.NotNil(t, merged.Transaction)
	assert.Equal(t, models.TemplateAccountTransfer, merged.Transaction.Template)
	assert.Equal(t, "150.50", merged.Transaction.Amount.Value)
	assert.Equal(t, "04807225", merged.Transaction.OperationID)
}

func TestExtractUnparseableEmail(t *testing.T) {
	s := newTestService()
	merged := s.extract(models.RawMessage{
		MessageID:  "msg-2",
		Body:       "Estimado cliente, gracias por su preferencia.",
		ReceivedAt: time.Now(),
	})
	assert.Nil(t, merged.Transaction)
	assert.Equal(t, "none", merged.Winner)
}

func TestExtractFallbackOnlyEmail(t *testing.T) {
	s := newTestService()
	// No template amount label, but a currency token the permissive pass
	// catches. Every template parser fails, the fallback carries the message.
	merged := s.extract(models.RawMessage{
		MessageID:  "msg-3",
		Body:       "Se realizo una transferencia por S/ 45.00 el 05/10/2025",
		ReceivedAt: time.Date(2025, 10, 5, 19, 35, 0, 0, time.UTC),
	})
	require.NotNil(t, merged.Transaction)
	assert.Equal(t, "fallback", merged.Winner)
	assert.Equal(t, "45.00", merged.Transaction.Amount.Value)
}

func TestToStoredMapping(t *testing.T) {
	occurredAt := time.Date(2025, 10, 5, 14, 30, 0, 0, time.UTC)
	tx := &models.NormalizedTransaction{
		Source:      models.SourceBCP,
		Template:    models.TemplateAccountTransfer,
		OccurredAt:  occurredAt,
		Amount:      models.AmountInfo{Value: "150.50", Currency: models.CurrencyPEN},
		Channel:     "Banca Movil BCP",
		OperationID: "OP123",
		Notes:       []string{"channel_not_found", "beneficiary_not_found"},
		Confidence:  0.8,
	}
	tx.SetDetail(models.DetailBeneficiary, "MARIA LOPEZ")

	stored := toStored(7, "msg-9", tx)
	assert.Equal(t, int64(7), stored.UserID)
	assert.Equal(t, "msg-9", stored.MessageID)
	assert.Equal(t, "bcp", stored.Source)
	assert.Equal(t, "account_transfer", stored.Template)
	assert.Equal(t, occurredAt.Format(time.RFC3339), stored.Date)
	assert.Equal(t, 150.50, stored.AmountValue)
	assert.Equal(t, "PEN", stored.Currency)
	assert.Equal(t, "channel_not_found; beneficiary_not_found", stored.Notes)
	assert.Contains(t, stored.DetailsJSON, "MARIA LOPEZ")
	assert.NotEmpty(t, stored.HashID)

	// The hash is the idempotency key: same content, same hash.
	again := toStored(7, "msg-9", tx)
	assert.Equal(t, stored.HashID, again.HashID)

	// A different message id is a different idempotency key.
	other := toStored(7, "msg-10", tx)
	assert.NotEqual(t, stored.HashID, other.HashID)
}
