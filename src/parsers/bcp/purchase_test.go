package bcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

func TestPurchaseParserBasicEmail(t *testing.T) {
	body := "Realizaste un consumo con tu tarjeta de credito que termina en 5678\n" +
		"Empresa: NETFLIX.COM\n" +
		"Monto de consumo: US$ 12.99\n" +
		"Fecha y hora: 05/10/2025 - 8:45 p.m.\n" +
		"Numero de operacion: 993211"

	tx, err := NewPurchaseParser().Parse(body, testReceivedAt)
	require.NoError(t, err)

	assert.Equal(t, models.TemplateOnlinePurchase, tx.Template)
	assert.Equal(t, "12.99", tx.Amount.Value)
	assert.Equal(t, models.CurrencyUSD, tx.Amount.Currency)
	assert.Equal(t, "NETFLIX.COM", tx.Merchant)
	assert.Equal(t, "5678", tx.CardLast4)
	assert.Equal(t, "****5678", tx.Detail(models.DetailMaskedCard))
	assert.Equal(t, "993211", tx.OperationID)
	assert.Equal(t, 20, tx.OccurredAt.Hour())

	// amount + date + merchant + card + operation = 5 of 6 signals.
	assert.InDelta(t, 5.0/6.0, tx.Confidence, 1e-9)
}

func TestPurchaseParserCardPhrasings(t *testing.T) {
	for _, phrase := range []string{
		"tarjeta terminada en 4321",
		"tarjeta de debito que termina en *4321",
	} {
		body := "Monto: S/ 10.00\nFecha: 01/02/2025 10:00\n" + phrase
		tx, err := NewPurchaseParser().Parse(body, testReceivedAt)
		require.NoError(t, err)
		assert.Equal(t, "4321", tx.CardLast4, phrase)
	}
}

func TestPurchaseParserAmountMissing(t *testing.T) {
	_, err := NewPurchaseParser().Parse("Empresa: NETFLIX.COM", testReceivedAt)
	assert.ErrorIs(t, err, ErrAmountNotFound)
}

func TestPurchaseParserLocation(t *testing.T) {
	body := "Monto de consumo: S/ 55.00\nFecha: 01/02/2025 10:00\nLugar de consumo: LIMA PE"
	tx, err := NewPurchaseParser().Parse(body, testReceivedAt)
	require.NoError(t, err)
	assert.Equal(t, "LIMA PE", tx.Location)
}
