package bcp

import (
	"regexp"
	"time"
	"unicode"

	"github.com/username/finmail/backend/src/models"
)

var (
	serviceAmountPatterns = []*regexp.Regexp{
		AmountPattern(`Monto pagado`),
		AmountPattern(`Total pagado`),
		AmountPattern(`Monto`),
		AmountPattern(`Importe`),
	}
	serviceNamePatterns = []*regexp.Regexp{
		LabelPattern(`Empresa`),
		LabelPattern(`Servicio`),
	}
	serviceHolderPatterns = []*regexp.Regexp{
		LabelPattern(`Titular del servicio`),
		LabelPattern(`Titular`),
	}

	// Customer/contract code labels. The strict ones capture anything, so a
	// reliability check filters short numeric noise; the lenient labels
	// ("Contrato", "Suministro") are specific enough to accept any value.
	serviceCodeStrictPatterns = []*regexp.Regexp{
		LabelPattern(`C[oó]digo de usuario`),
		LabelPattern(`C[oó]digo de pago`),
		LabelPattern(`C[oó]digo`),
	}
	serviceCodeLenientPatterns = []*regexp.Regexp{
		LabelPattern(`Contrato`),
		LabelPattern(`Suministro`),
	}
)

// ServiceParser handles utility/service payment notifications.
type ServiceParser struct{}

func NewServiceParser() *ServiceParser { return &ServiceParser{} }

func (p *ServiceParser) Template() models.Template { return models.TemplateServicePayment }

func (p *ServiceParser) Parse(body string, receivedAt time.Time) (*models.NormalizedTransaction, error) {
	amount := ExtractAmount(body, serviceAmountPatterns)
	if amount == nil {
		return nil, ErrAmountNotFound
	}
	occurredAt, dateFromText, err := resolveDate(body, receivedAt)
	if err != nil {
		return nil, err
	}

	tx := newTransaction(models.TemplateServicePayment, *amount, occurredAt)
	signals := 1
	if dateFromText {
		signals++
	} else {
		tx.Notes = append(tx.Notes, noteDatetimeFallback)
	}

	if name := FirstMatch(body, serviceNamePatterns); name != "" {
		tx.Merchant = name
		tx.SetDetail(models.DetailServiceName, name)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "service_name_not_found")
	}

	if holder := FirstMatch(body, serviceHolderPatterns); holder != "" {
		tx.SetDetail(models.DetailServiceHolder, holder)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "service_holder_not_found")
	}

	if code := p.serviceCode(body); code != "" {
		tx.SetDetail(models.DetailServiceCode, code)
		signals++
	} else {
		tx.Notes = append(tx.Notes, "service_code_not_found")
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

	tx.Confidence = confidence(signals, serviceConfidenceTarget)
	return tx, nil
}

// serviceCode accepts a strict-label capture only when it looks like a real
// customer code, and a lenient-label capture as-is.
func (p *ServiceParser) serviceCode(body string) string {
	if code := FirstMatch(body, serviceCodeStrictPatterns); reliableCode(code) {
		return code
	}
	return FirstMatch(body, serviceCodeLenientPatterns)
}

// reliableCode reports whether a strict-label capture can be trusted:
// alphabetic content, or at least six digits. Short all-numeric captures are
// usually noise dragged in by the loose "Código" label.
func reliableCode(code string) bool {
	if code == "" {
		return false
	}
	digits := 0
	for _, r := range code {
		if unicode.IsLetter(r) {
			return true
		}
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 6
}
