package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

var testReceivedAt = time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC)

func TestExtractFallbackFields(t *testing.T) {
	body := "Operacion realizada\n" +
		"Monto: S/ 210.00\n" +
		"Fecha: 05/10/2025 14:30\n" +
		"Beneficiario: MARIA LOPEZ\n" +
		"Banco de destino: Interbank\n" +
		"Numero de operacion: 04807225\n" +
		"Canal: Banca Movil BCP"

	fields := ExtractFallbackFields(body)
	require.NotNil(t, fields.AmountInfo)
	assert.Equal(t, "210.00", fields.AmountInfo.Value)
	require.NotNil(t, fields.Date)
	assert.Equal(t, "MARIA LOPEZ", fields.Beneficiary)
	assert.Equal(t, "Interbank", fields.BankDest)
	assert.Equal(t, "04807225", fields.OperationNumber)
	assert.Equal(t, "Banca Movil BCP", fields.Channel)
}

func TestFallbackBareCurrencyAmount(t *testing.T) {
	// No recognizable label at all, just a currency token next to a number.
	fields := ExtractFallbackFields("Se proceso un cargo de S/ 33.10 en tu cuenta")
	require.NotNil(t, fields.AmountInfo)
	assert.Equal(t, "33.10", fields.AmountInfo.Value)
	assert.Equal(t, models.CurrencyPEN, fields.AmountInfo.Currency)
}

func TestBuildFallbackTransactionNoAmount(t *testing.T) {
	fields := ExtractFallbackFields("Gracias por su preferencia")
	assert.Nil(t, BuildFallbackTransaction(fields, testReceivedAt))
}

func TestBuildFallbackTransactionNoDateAtAll(t *testing.T) {
	fields := ExtractFallbackFields("Monto: S/ 10.00")
	assert.Nil(t, BuildFallbackTransaction(fields, time.Time{}))
}

func TestBuildFallbackTemplateInference(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		template models.Template
	}{
		{
			"service keywords",
			"Monto: S/ 50.00\nFecha: 01/10/2025 10:00\nTipo de operacion: Pago de servicio\nServicio: LUZ DEL SUR",
			models.TemplateServicePayment,
		},
		{
			"purchase keywords",
			"Monto: S/ 50.00\nFecha: 01/10/2025 10:00\nTipo de operacion: Consumo con tarjeta de credito",
			models.TemplateOnlinePurchase,
		},
		{
			"transfer keywords",
			"Monto: S/ 50.00\nFecha: 01/10/2025 10:00\nTipo de operacion: Transferencia a terceros",
			models.TemplateAccountTransfer,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := ExtractFallbackFields(tc.body)
			tx := BuildFallbackTransaction(fields, testReceivedAt)
			require.NotNil(t, tx)
			assert.Equal(t, tc.template, tx.Template)
			assert.NotContains(t, tx.Notes, "template_defaulted_account_transfer")
		})
	}
}

func TestBuildFallbackTemplateDefaulted(t *testing.T) {
	fields := ExtractFallbackFields("Monto: S/ 50.00\nFecha: 01/10/2025 10:00")
	tx := BuildFallbackTransaction(fields, testReceivedAt)
	require.NotNil(t, tx)
	assert.Equal(t, models.TemplateAccountTransfer, tx.Template)
	assert.Contains(t, tx.Notes, "template_defaulted_account_transfer")
}

func TestBuildFallbackMerchantResolution(t *testing.T) {
	// No explicit merchant: the beneficiary stands in on transfers.
	body := "Monto: S/ 50.00\nFecha: 01/10/2025 10:00\nTipo de operacion: Transferencia\nBeneficiario: MARIA LOPEZ"
	tx := BuildFallbackTransaction(ExtractFallbackFields(body), testReceivedAt)
	require.NotNil(t, tx)
	assert.Equal(t, "MARIA LOPEZ", tx.Merchant)
	assert.Contains(t, tx.Notes, "beneficiario:MARIA LOPEZ")
}

func TestFallbackConfidenceBounds(t *testing.T) {
	// Bare minimum: amount only, date from receivedAt. Clamped to the floor.
	minTx := BuildFallbackTransaction(ExtractFallbackFields("Monto: S/ 10.00"), testReceivedAt)
	require.NotNil(t, minTx)
	assert.Equal(t, fallbackMinConfidence, minTx.Confidence)

	// All three bonus signals present: base 0.6 + 3*0.1.
	rich := "Monto: S/ 10.00\nFecha: 01/10/2025 10:00\nNumero de operacion: 1122\nBeneficiario: JUAN"
	richTx := BuildFallbackTransaction(ExtractFallbackFields(rich), testReceivedAt)
	require.NotNil(t, richTx)
	assert.InDelta(t, 0.9, richTx.Confidence, 1e-9)
	assert.LessOrEqual(t, richTx.Confidence, fallbackMaxConfidence)
}
