package bcp

import (
	"regexp"
	"time"

	"github.com/username/finmail/backend/src/models"
)

var (
	transferAmountPatterns = []*regexp.Regexp{
		AmountPattern(`Monto transferido`),
		AmountPattern(`Monto`),
		AmountPattern(`Importe`),
	}

	// The masked form ("**** 123" or "****1234") is the most reliable origin
	// account value the email carries.
	reOriginMasked = regexp.MustCompile(`(?i)cuenta\s+(?:de\s+)?origen\s*:?[^\r\n]*?(\*{2,}\s?\d{3,4})`)

	transferOriginPatterns = []*regexp.Regexp{
		LabelPattern(`Cuenta de origen`),
		LabelPattern(`Origen`),
	}
	transferDestinationPatterns = []*regexp.Regexp{
		LabelPattern(`Cuenta de destino`),
		LabelPattern(`Cuenta destino`),
	}
	transferBeneficiaryPatterns = []*regexp.Regexp{
		LabelPattern(`Beneficiario`),
	}
	transferBankPatterns = []*regexp.Regexp{
		LabelPattern(`Banco de destino`),
		LabelPattern(`Banco destino`),
	}
)

// TransferParser handles the account-to-account transfer notification.
type TransferParser struct{}

func NewTransferParser() *TransferParser { return &TransferParser{} }

func (p *TransferParser) Template() models.Template { return models.TemplateAccountTransfer }

func (p *TransferParser) Parse(body string, receivedAt time.Time) (*models.NormalizedTransaction, error) {
	amount := ExtractAmount(body, transferAmountPatterns)
	if amount == nil {
		return nil, ErrAmountNotFound
	}
	occurredAt, dateFromText, err := resolveDate(body, receivedAt)
	if err != nil {
		return nil, err
	}

	tx := newTransaction(models.TemplateAccountTransfer, *amount, occurredAt)
	signals := 1 // amount
	if dateFromText {
		signals++
	} else {
		tx.Notes = append(tx.Notes, noteDatetimeFallback)
	}

	if origin := p.originAccount(body); origin != "" {
		tx.AccountRef = origin
		tx.SetDetail(models.DetailOriginAccount, origin)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "origin_account_not_found")
	}

	if dest := FirstMatch(body, transferDestinationPatterns); dest != "" {
		tx.SetDetail(models.DetailDestinationAccount, dest)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "destination_account_not_found")
	}

	if beneficiary := FirstMatch(body, transferBeneficiaryPatterns); beneficiary != "" {
		tx.SetDetail(models.DetailBeneficiary, beneficiary)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "beneficiary_not_found")
	}

	if bank := FirstMatch(body, transferBankPatterns); bank != "" {
		tx.SetDetail(models.DetailBankDest, bank)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "bank_dest_not_found")
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

	tx.Confidence = confidence(signals, transferConfidenceTarget)
	return tx, nil
}

// originAccount picks the best available origin value: the masked account
// suffix when present, else the labeled capture with trailing boilerplate
// stripped, else the bare "Origen" capture.
func (p *TransferParser) originAccount(body string) string {
	if m := reOriginMasked.FindStringSubmatch(body); m != nil {
		return CleanField(m[1])
	}
	if v := FirstMatch(body, transferOriginPatterns[:1]); v != "" {
		return StripTrailingLabel(v, "cuenta de origen", "cuenta de destino", "cuenta destino")
	}
	return FirstMatch(body, transferOriginPatterns[1:])
}
