package bcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

var testReceivedAt = time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC)

func TestTransferParserBasicEmail(t *testing.T) {
	body := "Monto transferido: S/ 150.50\nFecha y hora: 05/10/2025 14:30\nCuenta destino: 1234\nOperacion: OP123"

	tx, err := NewTransferParser().Parse(body, testReceivedAt)
	require.NoError(t, err)

	assert.Equal(t, models.SourceBCP, tx.Source)
	assert.Equal(t, models.TemplateAccountTransfer, tx.Template)
	assert.Equal(t, "150.50", tx.Amount.Value)
	assert.Equal(t, models.CurrencyPEN, tx.Amount.Currency)
	assert.True(t, time.Date(2025, 10, 5, 14, 30, 0, 0, limaZone).Equal(tx.OccurredAt))
	assert.Equal(t, "OP123", tx.OperationID)
	assert.Equal(t, "1234", tx.Detail(models.DetailDestinationAccount))
	assert.False(t, tx.ExchangeRate.Used)

	// amount + date from text + destination + operation = 4 of 6 signals.
	assert.InDelta(t, 4.0/6.0, tx.Confidence, 1e-9)
	assert.Contains(t, tx.Notes, "origin_account_not_found")
	assert.Contains(t, tx.Notes, "beneficiary_not_found")
	assert.Contains(t, tx.Notes, "channel_not_found")
}

func TestTransferParserAmountMissing(t *testing.T) {
	tx, err := NewTransferParser().Parse("Fecha y hora: 05/10/2025 14:30", testReceivedAt)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, ErrAmountNotFound)
}

func TestTransferParserDateFallsBackToReceivedAt(t *testing.T) {
	tx, err := NewTransferParser().Parse("Monto: S/ 20.00", testReceivedAt)
	require.NoError(t, err)
	assert.True(t, testReceivedAt.Equal(tx.OccurredAt))
	assert.Contains(t, tx.Notes, noteDatetimeFallback)
}

func TestTransferParserNoDateNoReceivedAt(t *testing.T) {
	tx, err := NewTransferParser().Parse("Monto: S/ 20.00", time.Time{})
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, ErrDatetimeNotFound)
}

func TestTransferParserMaskedOriginPreferred(t *testing.T) {
	body := "Monto transferido: S/ 80.00\nFecha: 05/10/2025 10:00\nCuenta de origen: Soles **** 123\nCuenta de destino: 00111222333"

	tx, err := NewTransferParser().Parse(body, testReceivedAt)
	require.NoError(t, err)
	assert.Equal(t, "**** 123", tx.AccountRef)
	assert.Equal(t, "**** 123", tx.Detail(models.DetailOriginAccount))
	assert.Equal(t, "00111222333", tx.Detail(models.DetailDestinationAccount))
}

func TestTransferParserFullEmail(t *testing.T) {
	body := "Monto transferido: S/ 500.00\n" +
		"Fecha y hora: 05/10/2025 14:30\n" +
		"Cuenta de origen: **** 1234\n" +
		"Cuenta de destino: 00255566677\n" +
		"Beneficiario: MARIA LOPEZ\n" +
		"Banco de destino: Interbank\n" +
		"Canal: Banca Movil BCP\n" +
		"Numero de operacion: 04807225"

	tx, err := NewTransferParser().Parse(body, testReceivedAt)
	require.NoError(t, err)
	assert.Equal(t, "MARIA LOPEZ", tx.Detail(models.DetailBeneficiary))
	assert.Equal(t, "Interbank", tx.Detail(models.DetailBankDest))
	assert.Equal(t, "Banca Movil BCP", tx.Channel)
	assert.Equal(t, "04807225", tx.OperationID)
	assert.Equal(t, 1.0, tx.Confidence)
	assert.Empty(t, tx.Notes)
}

func TestTransferParserConfidenceMonotonic(t *testing.T) {
	base := "Monto transferido: S/ 150.50\nFecha y hora: 05/10/2025 14:30"
	additions := []string{
		"\nCuenta de destino: 1234",
		"\nBeneficiario: JUAN PEREZ",
		"\nCanal: Banca Movil BCP",
		"\nNumero de operacion: 04807225",
	}

	parser := NewTransferParser()
	prev := -1.0
	body := base
	for _, add := range additions {
		tx, err := parser.Parse(body, testReceivedAt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tx.Confidence, prev)
		prev = tx.Confidence
		body += add
	}
}
