package bcp

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

func TestExtractAmountNormalization(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		value    string
		currency models.Currency
	}{
		{"plain decimal", "Monto: S/ 150.50", "150.50", models.CurrencyPEN},
		{"no fraction", "Monto: S/ 150", "150.00", models.CurrencyPEN},
		{"single fraction digit", "Monto: S/ 150.5", "150.50", models.CurrencyPEN},
		{"us thousands", "Monto: US$ 1,234.56", "1234.56", models.CurrencyUSD},
		{"eu thousands", "Monto: S/ 1.234,56", "1234.56", models.CurrencyPEN},
		{"dot as thousands", "Monto: S/ 1.500", "1500.00", models.CurrencyPEN},
		{"comma as thousands", "Monto: S/ 1,500", "1500.00", models.CurrencyPEN},
		{"dollar sign", "Monto: $ 99.90", "99.90", models.CurrencyUSD},
		{"no currency token defaults pen", "Monto: 45.00", "45.00", models.CurrencyPEN},
		{"label without colon", "Monto S/ 12.30", "12.30", models.CurrencyPEN},
	}
	patterns := []*regexp.Regexp{AmountPattern(`Monto`)}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount := ExtractAmount(tc.body, patterns)
			require.NotNil(t, amount)
			assert.Equal(t, tc.value, amount.Value)
			assert.Equal(t, tc.currency, amount.Currency)
		})
	}
}

func TestExtractAmountMissing(t *testing.T) {
	amount := ExtractAmount("Gracias por usar nuestros servicios", []*regexp.Regexp{AmountPattern(`Monto`)})
	assert.Nil(t, amount)
}

func TestExtractAmountLabelPriority(t *testing.T) {
	body := "Monto: S/ 1.00\nMonto transferido: S/ 2.00"
	patterns := []*regexp.Regexp{
		AmountPattern(`Monto transferido`),
		AmountPattern(`Monto`),
	}
	amount := ExtractAmount(body, patterns)
	require.NotNil(t, amount)
	assert.Equal(t, "2.00", amount.Value)
}

func TestExtractDateTime(t *testing.T) {
	cases := []struct {
		name string
		body string
		want time.Time
	}{
		{
			"numeric 24h",
			"Fecha y hora: 05/10/2025 14:30",
			time.Date(2025, 10, 5, 14, 30, 0, 0, limaZone),
		},
		{
			"numeric with pm marker",
			"Fecha: 05/10/2025 - 2:30 p.m.",
			time.Date(2025, 10, 5, 14, 30, 0, 0, limaZone),
		},
		{
			"numeric with am marker",
			"Fecha: 05/10/2025, 12:15 am",
			time.Date(2025, 10, 5, 0, 15, 0, 0, limaZone),
		},
		{
			"textual spanish",
			"Realizada el 5 de octubre de 2025, 2:30 pm",
			time.Date(2025, 10, 5, 14, 30, 0, 0, limaZone),
		},
		{
			"textual peruvian spelling",
			"Realizada el 15 de setiembre del 2025",
			time.Date(2025, 9, 15, 0, 0, 0, 0, limaZone),
		},
		{
			"bare date at midnight",
			"Fecha 05/10/2025",
			time.Date(2025, 10, 5, 0, 0, 0, 0, limaZone),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractDateTime(tc.body)
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestExtractDateTimeNotFound(t *testing.T) {
	assert.Nil(t, ExtractDateTime("sin fecha alguna"))
	// Out-of-range components are "not found", not a zero date.
	assert.Nil(t, ExtractDateTime("Fecha: 45/13/2025"))
}

func TestCleanField(t *testing.T) {
	assert.Equal(t, "Banca Movil BCP", CleanField("  Banca   Movil \t BCP .,;"))
	assert.Equal(t, "", CleanField(" -.,;:| "))
}

func TestStripTrailingLabel(t *testing.T) {
	got := StripTrailingLabel("Soles **** 123 Cuenta de destino", "cuenta de destino")
	assert.Equal(t, "Soles **** 123", got)

	// Untouched when no label fragment occurs.
	assert.Equal(t, "Soles **** 123", StripTrailingLabel("Soles **** 123", "cuenta de destino"))
}

func TestLabelPatternAccentTolerance(t *testing.T) {
	patterns := []*regexp.Regexp{LabelPattern(`N[uú]mero de operaci[oó]n`)}
	assert.Equal(t, "04807225", FirstMatch("Numero de operacion: 04807225", patterns))
	assert.Equal(t, "04807225", FirstMatch("Número de operación: 04807225", patterns))
}
