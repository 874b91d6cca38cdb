package processors

import (
	"github.com/username/finmail/backend/src/models"
)

// overcaptureRatio decides when a fallback value replaces a non-empty
// primary value: a primary string more than 1.5x longer than the fallback's
// is usually regex over-capture (trailing boilerplate), while the shorter
// fallback value is more likely the clean intended one. Strict inequality:
// equal informativeness never flips ownership.
const overcaptureRatio = 1.5

// mergeField addresses one reconcilable field of a transaction by name.
// Top-level fields read/write the struct; the rest live in the details map.
type mergeField struct {
	name string
	get  func(*models.NormalizedTransaction) string
	set  func(*models.NormalizedTransaction, string)
}

func structField(name string, get func(*models.NormalizedTransaction) string, set func(*models.NormalizedTransaction, string)) mergeField {
	return mergeField{name: name, get: get, set: set}
}

func detailField(key string) mergeField {
	return mergeField{
		name: key,
		get:  func(t *models.NormalizedTransaction) string { return t.Detail(key) },
		set:  func(t *models.NormalizedTransaction, v string) { t.SetDetail(key, v) },
	}
}

// The fixed field list reconciliation runs over. Fields outside this list
// are never back-filled.
var mergeFields = []mergeField{
	structField("merchant",
		func(t *models.NormalizedTransaction) string { return t.Merchant },
		func(t *models.NormalizedTransaction, v string) { t.Merchant = v }),
	structField("account_ref",
		func(t *models.NormalizedTransaction) string { return t.AccountRef },
		func(t *models.NormalizedTransaction, v string) { t.AccountRef = v }),
	structField("card_last4",
		func(t *models.NormalizedTransaction) string { return t.CardLast4 },
		func(t *models.NormalizedTransaction, v string) { t.CardLast4 = v }),
	structField("channel",
		func(t *models.NormalizedTransaction) string { return t.Channel },
		func(t *models.NormalizedTransaction, v string) { t.Channel = v }),
	structField("operation_id",
		func(t *models.NormalizedTransaction) string { return t.OperationID },
		func(t *models.NormalizedTransaction, v string) { t.OperationID = v }),
	detailField(models.DetailBankDest),
	detailField(models.DetailBeneficiary),
	detailField(models.DetailServiceName),
	detailField(models.DetailServiceHolder),
	detailField(models.DetailServiceCode),
	detailField(models.DetailBeneficiaryAccount),
	structField("location",
		func(t *models.NormalizedTransaction) string { return t.Location },
		func(t *models.NormalizedTransaction, v string) { t.Location = v }),
}

// ResultMerger reconciles a template-parser result with a fallback result
// for the same email. Pure; primary wins ties.
type ResultMerger struct{}

func NewResultMerger() *ResultMerger { return &ResultMerger{} }

// Merge always returns a usable result; conflicts resolve deterministically
// and are never escalated as errors.
func (m *ResultMerger) Merge(primary, fallback *models.ExtractionResult) models.MergeResult {
	if primary == nil || !primary.Success || primary.Transaction == nil {
		if fallback != nil && fallback.Success && fallback.Transaction != nil {
			return models.MergeResult{
				Transaction: cloneTransaction(fallback.Transaction),
				Winner:      "fallback",
				Reason:      "primary_missing",
			}
		}
		return models.MergeResult{Winner: "none", Reason: "no_transaction_from_either_path"}
	}

	if fallback == nil || !fallback.Success || fallback.Transaction == nil {
		return models.MergeResult{
			Transaction: cloneTransaction(primary.Transaction),
			Winner:      "primary",
			Reason:      "fallback_missing",
		}
	}

	pt, ft := primary.Transaction, fallback.Transaction

	// Cross-template merging is never attempted: the field sets are not
	// semantically comparable across templates.
	if pt.Template != ft.Template {
		return models.MergeResult{
			Transaction: cloneTransaction(pt),
			Winner:      "primary",
			Reason:      "template_mismatch",
		}
	}

	if ft.Confidence > pt.Confidence {
		merged := cloneTransaction(ft)
		merged.Notes = unionNotes(ft.Notes, pt.Notes)
		return models.MergeResult{
			Transaction: merged,
			Winner:      "fallback",
			Reason:      "higher_fallback_confidence",
		}
	}

	merged := cloneTransaction(pt)
	for _, field := range mergeFields {
		pv, fv := field.get(merged), field.get(ft)
		if fv == "" {
			continue
		}
		if pv == "" || float64(len(pv)) > overcaptureRatio*float64(len(fv)) {
			field.set(merged, fv)
		}
	}
	merged.Notes = unionNotes(pt.Notes, ft.Notes)
	if ft.Confidence > merged.Confidence {
		merged.Confidence = ft.Confidence
	}
	return models.MergeResult{
		Transaction: merged,
		Winner:      "merged",
		Reason:      "field_level_backfill",
	}
}

func cloneTransaction(tx *models.NormalizedTransaction) *models.NormalizedTransaction {
	out := *tx
	if tx.Notes != nil {
		out.Notes = append([]string(nil), tx.Notes...)
	}
	if tx.Details != nil {
		out.Details = make(map[string]string, len(tx.Details))
		for k, v := range tx.Details {
			out.Details[k] = v
		}
	}
	return &out
}

// unionNotes merges both sides' notes, first side's order preserved,
// duplicates dropped.
func unionNotes(first, second []string) []string {
	seen := make(map[string]struct{}, len(first)+len(second))
	var out []string
	for _, n := range append(append([]string(nil), first...), second...) {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
