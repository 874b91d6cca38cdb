package bcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

func TestServiceParserBasicEmail(t *testing.T) {
	body := "Pago de servicio realizado\n" +
		"Empresa: LUZ DEL SUR\n" +
		"Titular del servicio: JUAN PEREZ\n" +
		"Suministro: 1234567\n" +
		"Monto pagado: S/ 85.40\n" +
		"Fecha: 03/10/2025 19:20\n" +
		"Canal: Banca por Internet\n" +
		"Numero de operacion: 556677"

	tx, err := NewServiceParser().Parse(body, testReceivedAt)
	require.NoError(t, err)

	assert.Equal(t, models.TemplateServicePayment, tx.Template)
	assert.Equal(t, "85.40", tx.Amount.Value)
	assert.Equal(t, "LUZ DEL SUR", tx.Merchant)
	assert.Equal(t, "LUZ DEL SUR", tx.Detail(models.DetailServiceName))
	assert.Equal(t, "JUAN PEREZ", tx.Detail(models.DetailServiceHolder))
	assert.Equal(t, "1234567", tx.Detail(models.DetailServiceCode))
	assert.Equal(t, "Banca por Internet", tx.Channel)
	assert.Equal(t, "556677", tx.OperationID)
	assert.Equal(t, 1.0, tx.Confidence)
}

func TestServiceCodeReliability(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"strict label with letters", "Codigo de usuario: AB123", "AB123"},
		{"strict label long numeric", "Codigo de pago: 90817261", "90817261"},
		{"strict label short numeric rejected", "Codigo: 123", ""},
		{"lenient label short numeric accepted", "Suministro: 123", "123"},
	}
	p := NewServiceParser()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.serviceCode(tc.body))
		})
	}
}

func TestServiceParserAmountMissing(t *testing.T) {
	_, err := NewServiceParser().Parse("Empresa: SEDAPAL", testReceivedAt)
	assert.ErrorIs(t, err, ErrAmountNotFound)
}
