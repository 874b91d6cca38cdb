package bcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

func TestFeeParserBasicEmail(t *testing.T) {
	body := "Monto de la comision: S/ 9.00\n" +
		"Motivo: Mantenimiento de cuenta\n" +
		"Cuenta de cargo: **** 7788\n" +
		"Fecha: 01/10/2025 08:00\n" +
		"Operacion: 112233"

	tx, err := NewFeeParser().Parse(body, testReceivedAt)
	require.NoError(t, err)

	assert.Equal(t, models.TemplateFeeCommission, tx.Template)
	assert.Equal(t, "9.00", tx.Amount.Value)
	assert.Equal(t, "Mantenimiento de cuenta", tx.Merchant)
	assert.Equal(t, "Mantenimiento de cuenta", tx.Detail(models.DetailMotive))
	assert.Contains(t, tx.Notes, "motivo:Mantenimiento de cuenta")
	assert.Equal(t, "**** 7788", tx.AccountRef)
	assert.Equal(t, "112233", tx.OperationID)

	// amount + date + motive + account + operation = 5 of 5 signals.
	assert.Equal(t, 1.0, tx.Confidence)
}

func TestFeeParserAmountLabelPriority(t *testing.T) {
	// The generic "Monto" must not shadow the fee-specific label.
	body := "Monto de la comision: S/ 3.50\nMonto: S/ 100.00\nFecha: 01/10/2025 08:00"
	tx, err := NewFeeParser().Parse(body, testReceivedAt)
	require.NoError(t, err)
	assert.Equal(t, "3.50", tx.Amount.Value)
}

func TestFeeParserAmountMissing(t *testing.T) {
	_, err := NewFeeParser().Parse("Motivo: Portes", testReceivedAt)
	assert.ErrorIs(t, err, ErrAmountNotFound)
}
