package parsers

import (
	"regexp"
	"strings"
	"time"

	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/parsers/bcp"
)

// Fallback confidence tuning. Fallback results are deliberately capped below
// 1.0 and floored above the no-signal baseline, so they can contribute to a
// merge but rarely dominate a confident template parse.
const (
	fallbackBaseConfidence = 0.6
	fallbackSignalBonus    = 0.1
	fallbackMinConfidence  = 0.70
	fallbackMaxConfidence  = 0.95
)

const noteDatetimeFallback = "datetime_fallback_received_at"

// Loose, template-agnostic patterns for the permissive pass. These accept
// far more than the template parsers do; precision comes later, from the
// merge against the template result.
var (
	fallbackAmountPatterns = []*regexp.Regexp{
		bcp.AmountPattern(`Monto`),
		bcp.AmountPattern(`Importe`),
		bcp.AmountPattern(`Total`),
		// last resort: a currency token next to a number anywhere
		regexp.MustCompile(`(S/\.?|US\$|USD|PEN|\$)\s*([0-9][0-9.,]*)`),
	}

	fallbackMerchantPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Empresa`),
		bcp.LabelPattern(`Comercio`),
		bcp.LabelPattern(`Establecimiento`),
	}
	fallbackChannelPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Canal`),
	}
	fallbackOperationPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`N[uú]mero de operaci[oó]n`),
		bcp.LabelPattern(`C[oó]digo de operaci[oó]n`),
		bcp.LabelPattern(`Operaci[oó]n`),
	}
	fallbackOperationTypePatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Tipo de operaci[oó]n`),
	}
	fallbackBeneficiaryPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Beneficiario`),
	}
	fallbackBankPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Banco de destino`),
		bcp.LabelPattern(`Banco destino`),
	}
	fallbackServicePatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Servicio`),
	}
	fallbackHolderPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Titular del servicio`),
		bcp.LabelPattern(`Titular`),
	}
	fallbackCodePatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Contrato`),
		bcp.LabelPattern(`Suministro`),
		bcp.LabelPattern(`C[oó]digo de usuario`),
	}
	fallbackDestAccountPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Cuenta de destino`),
		bcp.LabelPattern(`Cuenta destino`),
	}
	fallbackLocationPatterns = []*regexp.Regexp{
		bcp.LabelPattern(`Lugar`),
	}
	fallbackCardPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)tarjeta[^\r\n]*?(?:terminada\s+en|que\s+termina\s+en)\s*\*?\s?(\d{4})`),
	}
)

// Keyword table for template inference, tested in order against the
// concatenation of all text-bearing fields. First match wins.
var templateKeywords = []struct {
	template models.Template
	re       *regexp.Regexp
}{
	{models.TemplateServicePayment, regexp.MustCompile(`(?i)pago de servicio|servicio|suministro|recibo|contrato`)},
	{models.TemplateOnlinePurchase, regexp.MustCompile(`(?i)consumo|compra|tarjeta|comercio`)},
	{models.TemplateFeeCommission, regexp.MustCompile(`(?i)comisi[oó]n|mantenimiento|membres[ií]a|portes`)},
	{models.TemplateAccountTransfer, regexp.MustCompile(`(?i)transferencia|transferido|env[ií]o de dinero|abono`)},
}

// ExtractFallbackFields is the permissive, template-agnostic pass over an
// email body. It never fails; whatever it could not find is simply absent
// from the returned bag.
func ExtractFallbackFields(body string) models.FallbackFields {
	fields := models.FallbackFields{
		Merchant:           bcp.FirstMatch(body, fallbackMerchantPatterns),
		Channel:            bcp.FirstMatch(body, fallbackChannelPatterns),
		Location:           bcp.FirstMatch(body, fallbackLocationPatterns),
		CardLast4:          bcp.FirstMatch(body, fallbackCardPatterns),
		OperationNumber:    bcp.FirstMatch(body, fallbackOperationPatterns),
		OperationType:      bcp.FirstMatch(body, fallbackOperationTypePatterns),
		Beneficiary:        bcp.FirstMatch(body, fallbackBeneficiaryPatterns),
		BankDest:           bcp.FirstMatch(body, fallbackBankPatterns),
		ServiceName:        bcp.FirstMatch(body, fallbackServicePatterns),
		ServiceHolder:      bcp.FirstMatch(body, fallbackHolderPatterns),
		ServiceCode:        bcp.FirstMatch(body, fallbackCodePatterns),
		BeneficiaryAccount: bcp.FirstMatch(body, fallbackDestAccountPatterns),
	}
	if amount := bcp.ExtractAmount(body, fallbackAmountPatterns); amount != nil {
		fields.AmountInfo = amount
	}
	if ts := bcp.ExtractDateTime(body); ts != nil {
		fields.Date = ts
	}
	return fields
}

// BuildFallbackTransaction assembles a lower-precision transaction from the
// permissive field bag. Returns nil when no amount was found, or when
// neither a text date nor a received timestamp is available.
func BuildFallbackTransaction(fields models.FallbackFields, receivedAt time.Time) *models.NormalizedTransaction {
	if fields.AmountInfo == nil {
		return nil
	}

	tx := &models.NormalizedTransaction{
		Source:       models.SourceBCP,
		Amount:       *fields.AmountInfo,
		ExchangeRate: models.ExchangeRateInfo{Used: false},
	}

	switch {
	case fields.Date != nil:
		tx.OccurredAt = *fields.Date
	case !receivedAt.IsZero():
		tx.OccurredAt = receivedAt
		tx.Notes = append(tx.Notes, noteDatetimeFallback)
	default:
		return nil
	}

	template, defaulted := inferTemplate(fields)
	tx.Template = template
	if defaulted {
		// Documented policy, not a derived fact: transfers are the most
		// common notification, so an unclassifiable email is assumed to
		// be one.
		tx.Notes = append(tx.Notes, "template_defaulted_account_transfer")
	}

	tx.Channel = fields.Channel
	tx.Location = fields.Location
	tx.CardLast4 = fields.CardLast4
	tx.OperationID = fields.OperationNumber
	tx.SetDetail(models.DetailBeneficiary, fields.Beneficiary)
	tx.SetDetail(models.DetailBankDest, fields.BankDest)
	tx.SetDetail(models.DetailServiceName, fields.ServiceName)
	tx.SetDetail(models.DetailServiceHolder, fields.ServiceHolder)
	tx.SetDetail(models.DetailServiceCode, fields.ServiceCode)
	tx.SetDetail(models.DetailBeneficiaryAccount, fields.BeneficiaryAccount)
	tx.Merchant = resolveMerchant(fields, template)
	tx.Notes = append(tx.Notes, composeNotes(fields)...)

	tx.Confidence = fallbackConfidence(fields)
	return tx
}

// resolveMerchant: explicit merchant field, else the beneficiary for
// transfers, else the service name for service payments.
func resolveMerchant(fields models.FallbackFields, template models.Template) string {
	if fields.Merchant != "" {
		return fields.Merchant
	}
	if template == models.TemplateAccountTransfer && fields.Beneficiary != "" {
		return fields.Beneficiary
	}
	if template == models.TemplateServicePayment && fields.ServiceName != "" {
		return fields.ServiceName
	}
	return ""
}

func inferTemplate(fields models.FallbackFields) (models.Template, bool) {
	haystack := strings.Join([]string{
		fields.Merchant, fields.Channel, fields.Location,
		fields.OperationType, fields.Beneficiary, fields.BankDest,
		fields.ServiceName, fields.ServiceHolder, fields.ServiceCode,
		fields.BeneficiaryAccount, fields.CardLast4,
	}, " ")
	for _, entry := range templateKeywords {
		if entry.re.MatchString(haystack) {
			return entry.template, false
		}
	}
	return models.TemplateAccountTransfer, true
}

func composeNotes(fields models.FallbackFields) []string {
	var notes []string
	add := func(label, value string) {
		if value != "" {
			notes = append(notes, label+":"+value)
		}
	}
	add("beneficiario", fields.Beneficiary)
	add("banco", fields.BankDest)
	add("servicio", fields.ServiceName)
	add("titular", fields.ServiceHolder)
	add("codigo", fields.ServiceCode)
	add("cuenta_destino", fields.BeneficiaryAccount)
	return notes
}

func fallbackConfidence(fields models.FallbackFields) float64 {
	conf := fallbackBaseConfidence
	if fields.Date != nil {
		conf += fallbackSignalBonus
	}
	if fields.OperationNumber != "" {
		conf += fallbackSignalBonus
	}
	if fields.OperationType != "" || fields.Merchant != "" || fields.Beneficiary != "" {
		conf += fallbackSignalBonus
	}
	if conf < fallbackMinConfidence {
		conf = fallbackMinConfidence
	}
	if conf > fallbackMaxConfidence {
		conf = fallbackMaxConfidence
	}
	return conf
}
