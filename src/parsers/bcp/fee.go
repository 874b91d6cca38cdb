package bcp

import (
	"regexp"
	"time"

	"github.com/username/finmail/backend/src/models"
)

var (
	feeAmountPatterns = []*regexp.Regexp{
		AmountPattern(`Monto de la comisi[oó]n`),
		AmountPattern(`Comisi[oó]n`),
		AmountPattern(`Importe`),
		AmountPattern(`Monto`),
	}
	feeMotivePatterns = []*regexp.Regexp{
		LabelPattern(`Motivo`),
	}
	feeAccountPatterns = []*regexp.Regexp{
		LabelPattern(`Cuenta de cargo`),
		LabelPattern(`Cuenta cargo`),
	}
)

// FeeParser handles fee/commission charge notifications.
type FeeParser struct{}

func NewFeeParser() *FeeParser { return &FeeParser{} }

func (p *FeeParser) Template() models.Template { return models.TemplateFeeCommission }

func (p *FeeParser) Parse(body string, receivedAt time.Time) (*models.NormalizedTransaction, error) {
	amount := ExtractAmount(body, feeAmountPatterns)
	if amount == nil {
		return nil, ErrAmountNotFound
	}
	occurredAt, dateFromText, err := resolveDate(body, receivedAt)
	if err != nil {
		return nil, err
	}

	tx := newTransaction(models.TemplateFeeCommission, *amount, occurredAt)
	signals := 1
	if dateFromText {
		signals++
	} else {
		tx.Notes = append(tx.Notes, noteDatetimeFallback)
	}

	// Fee emails have no merchant; the charge motive stands in for it, and
	// is kept in the notes as well so the original wording survives merges.
	if motive := FirstMatch(body, feeMotivePatterns); motive != "" {
		tx.Merchant = motive
		tx.SetDetail(models.DetailMotive, motive)
		tx.Notes = append(tx.Notes, "motivo:"+motive)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "motive_not_found")
	}

	if account := FirstMatch(body, feeAccountPatterns); account != "" {
		tx.AccountRef = account
		signals++
	} else {
		tx.Notes = append(tx.Notes, "account_not_found")
	}

	if channel := FirstMatch(body, channelPatterns); channel != "" {
		tx.Channel = channel
		signals++
	} else {
		tx.Notes = append(tx.Notes, "channel_not_found")
	}

	if op := FirstMatch(body, operationPatterns); op != "" {
		tx.OperationID = op
		signals++
	} else {
		tx.Notes = append(tx.Notes, "operation_not_found")
	}

	tx.Confidence = confidence(signals, feeConfidenceTarget)
	return tx, nil
}
