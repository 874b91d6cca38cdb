package bcp

import (
	"regexp"
	"time"

	"github.com/username/finmail/backend/src/models"
)

var (
	purchaseAmountPatterns = []*regexp.Regexp{
		AmountPattern(`Monto de consumo`),
		AmountPattern(`Total del consumo`),
		AmountPattern(`Monto`),
		AmountPattern(`Importe`),
	}
	purchaseMerchantPatterns = []*regexp.Regexp{
		LabelPattern(`Empresa`),
		LabelPattern(`Comercio`),
		LabelPattern(`Establecimiento`),
	}
	purchaseLocationPatterns = []*regexp.Regexp{
		LabelPattern(`Lugar de consumo`),
		LabelPattern(`Lugar`),
	}

	// The two phrasings the bank alternates between for the card suffix.
	cardSuffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)tarjeta[^\r\n]*?terminada\s+en\s*\*?\s?(\d{4})`),
		regexp.MustCompile(`(?i)tarjeta[^\r\n]*?que\s+termina\s+en\s*\*?\s?(\d{4})`),
	}
)

// PurchaseParser handles online/card purchase notifications.
type PurchaseParser struct{}

func NewPurchaseParser() *PurchaseParser { return &PurchaseParser{} }

func (p *PurchaseParser) Template() models.Template { return models.TemplateOnlinePurchase }

func (p *PurchaseParser) Parse(body string, receivedAt time.Time) (*models.NormalizedTransaction, error) {
	amount := ExtractAmount(body, purchaseAmountPatterns)
	if amount == nil {
		return nil, ErrAmountNotFound
	}
	occurredAt, dateFromText, err := resolveDate(body, receivedAt)
	if err != nil {
		return nil, err
	}

	tx := newTransaction(models.TemplateOnlinePurchase, *amount, occurredAt)
	signals := 1
	if dateFromText {
		signals++
	} else {
		tx.Notes = append(tx.Notes, noteDatetimeFallback)
	}

	if merchant := FirstMatch(body, purchaseMerchantPatterns); merchant != "" {
		tx.Merchant = merchant
		signals++
	} else {
		tx.Notes = append(tx.Notes, "merchant_not_found")
	}

	// The suffix is re-emitted in the canonical masked form; the source
	// text never carries a full card number to begin with.
	if last4 := FirstMatch(body, cardSuffixPatterns); last4 != "" {
		tx.CardLast4 = last4
		tx.SetDetail(models.DetailMaskedCard, "****"+last4)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "card_not_found")
	}

	if location := FirstMatch(body, purchaseLocationPatterns); location != "" {
		tx.Location = location
		signals++
	} else {
		tx.Notes = append(tx.Notes, "location_not_found")
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

	tx.Confidence = confidence(signals, purchaseConfidenceTarget)
	return tx, nil
}
