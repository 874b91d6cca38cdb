package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finmail/backend/src/models"
)

func transferTx(confidence float64) *models.NormalizedTransaction {
	return &models.NormalizedTransaction{
		Source:     models.SourceBCP,
		Template:   models.TemplateAccountTransfer,
		OccurredAt: time.Date(2025, 10, 5, 14, 30, 0, 0, time.UTC),
		Amount:     models.AmountInfo{Value: "150.50", Currency: models.CurrencyPEN},
		Confidence: confidence,
	}
}

func success(tx *models.NormalizedTransaction) *models.ExtractionResult {
	return &models.ExtractionResult{Success: true, Transaction: tx}
}

func TestMergeFallbackAbsentReturnsPrimary(t *testing.T) {
	m := NewResultMerger()
	primary := transferTx(0.8)
	primary.Notes = []string{"channel_not_found"}

	result := m.Merge(success(primary), nil)
	assert.Equal(t, "primary", result.Winner)
	assert.Equal(t, "fallback_missing", result.Reason)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, primary.Confidence, result.Transaction.Confidence)
	assert.Equal(t, primary.Notes, result.Transaction.Notes)

	// The merged transaction is a copy, not an alias.
	result.Transaction.Notes[0] = "mutated"
	assert.Equal(t, "channel_not_found", primary.Notes[0])
}

func TestMergePrimaryAbsentReturnsFallback(t *testing.T) {
	m := NewResultMerger()
	fallback := transferTx(0.75)

	result := m.Merge(nil, success(fallback))
	assert.Equal(t, "fallback", result.Winner)
	assert.Equal(t, "primary_missing", result.Reason)
	require.NotNil(t, result.Transaction)

	result = m.Merge(&models.ExtractionResult{Success: false}, success(fallback))
	assert.Equal(t, "fallback", result.Winner)
}

func TestMergeNeitherPath(t *testing.T) {
	result := NewResultMerger().Merge(nil, nil)
	assert.Nil(t, result.Transaction)
	assert.Equal(t, "none", result.Winner)
}

func TestMergeTemplateMismatchKeepsPrimary(t *testing.T) {
	m := NewResultMerger()
	primary := transferTx(0.5)
	fallback := transferTx(0.95)
	fallback.Template = models.TemplateServicePayment
	fallback.Channel = "Banca Movil BCP"

	result := m.Merge(success(primary), success(fallback))
	assert.Equal(t, "primary", result.Winner)
	assert.Equal(t, "template_mismatch", result.Reason)
	assert.Empty(t, result.Transaction.Channel)
	assert.Equal(t, 0.5, result.Transaction.Confidence)
}

func TestMergeHigherFallbackConfidenceReplacesWholesale(t *testing.T) {
	m := NewResultMerger()
	primary := transferTx(0.8)
	primary.Notes = []string{"channel_not_found"}
	primary.Merchant = "PRIMARY NAME"
	fallback := transferTx(0.95)
	fallback.Notes = []string{"template_defaulted_account_transfer", "channel_not_found"}
	fallback.Merchant = "FALLBACK NAME"

	result := m.Merge(success(primary), success(fallback))
	assert.Equal(t, "fallback", result.Winner)
	assert.Equal(t, "higher_fallback_confidence", result.Reason)
	assert.Equal(t, "FALLBACK NAME", result.Transaction.Merchant)
	assert.Equal(t, 0.95, result.Transaction.Confidence)
	// Union keeps fallback order first, drops the duplicate.
	assert.Equal(t,
		[]string{"template_defaulted_account_transfer", "channel_not_found"},
		result.Transaction.Notes)
}

func TestMergeFieldBackfill(t *testing.T) {
	m := NewResultMerger()
	primary := transferTx(0.9)
	primary.Channel = "Banca Movil BCP Numero de operacion 04807225"
	primary.OperationID = ""
	fallback := transferTx(0.7)
	fallback.Channel = "Banca Movil BCP"
	fallback.OperationID = "04807225"
	fallback.SetDetail(models.DetailBeneficiary, "MARIA LOPEZ")

	result := m.Merge(success(primary), success(fallback))
	assert.Equal(t, "merged", result.Winner)
	assert.Equal(t, "field_level_backfill", result.Reason)

	// Over-capture: primary channel is >1.5x longer, fallback's replaces it.
	assert.Equal(t, "Banca Movil BCP", result.Transaction.Channel)
	// Empty primary fields are back-filled.
	assert.Equal(t, "04807225", result.Transaction.OperationID)
	assert.Equal(t, "MARIA LOPEZ", result.Transaction.Detail(models.DetailBeneficiary))
	// Primary keeps its confidence when it is the higher one.
	assert.Equal(t, 0.9, result.Transaction.Confidence)
}

func TestMergeBackfillStrictInequality(t *testing.T) {
	m := NewResultMerger()
	primary := transferTx(0.9)
	primary.Merchant = "ABCDEF" // exactly 1.5x the fallback's 4 chars
	fallback := transferTx(0.7)
	fallback.Merchant = "WXYZ"

	result := m.Merge(success(primary), success(fallback))
	assert.Equal(t, "ABCDEF", result.Transaction.Merchant)
}

func TestMergeEqualConfidencePrimaryWins(t *testing.T) {
	m := NewResultMerger()
	primary := transferTx(0.8)
	primary.Merchant = "PRIMARY"
	fallback := transferTx(0.8)
	fallback.Merchant = "FALLBACK"

	result := m.Merge(success(primary), success(fallback))
	assert.Equal(t, "merged", result.Winner)
	assert.Equal(t, "PRIMARY", result.Transaction.Merchant)
}
