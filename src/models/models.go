package models

import "time"

// Currency codes the bank's notification emails carry. PEN is the default
// when no currency token appears next to an amount.
type Currency string

const (
	CurrencyPEN Currency = "PEN"
	CurrencyUSD Currency = "USD"
)

// Template identifies the notification layout an email was parsed with.
type Template string

const (
	TemplateAccountTransfer Template = "account_transfer"
	TemplateFeeCommission   Template = "fee_commission"
	TemplateOnlinePurchase  Template = "online_purchase"
	TemplateServicePayment  Template = "service_payment"
)

// SourceBCP tags every transaction extracted from a BCP notification email.
const SourceBCP = "bcp"

// RawMessage is one plain-text email body as handed over by the mail
// retrieval collaborator. The body is already HTML-stripped. ReceivedAt is
// the mailbox timestamp, used as a last-resort date fallback by the parsers.
type RawMessage struct {
	MessageID  string    `json:"message_id"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// AmountInfo is a monetary amount as extracted from an email. Value is a
// decimal string with exactly two fraction digits and is never negative.
type AmountInfo struct {
	Value    string   `json:"value"`
	Currency Currency `json:"currency"`
}

// ExchangeRateInfo is a placeholder for future multi-currency support.
// Used is always false today.
type ExchangeRateInfo struct {
	Used bool `json:"used"`
}

// NormalizedTransaction is the canonical output of the extraction pipeline.
// Amount and OccurredAt are always set on emitted values; every other field
// is best-effort. Notes carry diagnostics about missing fields and fallbacks,
// not user-facing prose. Details holds template-specific display fields and
// never contains empty values.
type NormalizedTransaction struct {
	Source       string            `json:"source"`
	Template     Template          `json:"template"`
	OccurredAt   time.Time         `json:"occurred_at"`
	Amount       AmountInfo        `json:"amount"`
	ExchangeRate ExchangeRateInfo  `json:"exchange_rate"`
	Channel      string            `json:"channel,omitempty"`
	Merchant     string            `json:"merchant,omitempty"`
	Location     string            `json:"location,omitempty"`
	CardLast4    string            `json:"card_last4,omitempty"`
	AccountRef   string            `json:"account_ref,omitempty"`
	OperationID  string            `json:"operation_id,omitempty"`
	Notes        []string          `json:"notes,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	Confidence   float64           `json:"confidence"`
}

// Detail keys shared between the template parsers, the fallback builder and
// the merger. Only these keys participate in field-level reconciliation.
const (
	DetailBankDest           = "bank_dest"
	DetailBeneficiary        = "beneficiary"
	DetailServiceName        = "service_name"
	DetailServiceHolder      = "service_holder"
	DetailServiceCode        = "service_code"
	DetailBeneficiaryAccount = "beneficiary_account"
	DetailOriginAccount      = "origin_account"
	DetailDestinationAccount = "destination_account"
	DetailMaskedCard         = "masked_card"
	DetailMotive             = "motive"
)

// Detail returns the named details entry, or "" when absent.
func (t *NormalizedTransaction) Detail(key string) string {
	if t.Details == nil {
		return ""
	}
	return t.Details[key]
}

// SetDetail stores a non-empty value under key, creating the map on first
// use. Empty values are dropped so Details never carries blank entries.
func (t *NormalizedTransaction) SetDetail(key, value string) {
	if value == "" {
		return
	}
	if t.Details == nil {
		t.Details = make(map[string]string)
	}
	t.Details[key] = value
}

// ExtractionResult is the outcome of one extraction path (a template parser
// attempt or the fallback builder) for a single email.
type ExtractionResult struct {
	Success     bool                   `json:"success"`
	Transaction *NormalizedTransaction `json:"transaction,omitempty"`
	Failure     string                 `json:"failure,omitempty"`
}

// MergeResult wraps the reconciled transaction with metadata about which
// extraction path won. Internal to the merge stage; persistence only sees
// the Transaction.
type MergeResult struct {
	Transaction *NormalizedTransaction `json:"transaction,omitempty"`
	Winner      string                 `json:"winner"`
	Reason      string                 `json:"reason,omitempty"`
}

// FallbackFields is the loosely matched field bag produced by the permissive,
// template-agnostic pass over an email body. Every field the fallback builder
// can consume is enumerated here; a nil AmountInfo means no transaction can
// be built at all.
type FallbackFields struct {
	AmountInfo         *AmountInfo
	Date               *time.Time
	Merchant           string
	Channel            string
	Location           string
	CardLast4          string
	OperationNumber    string
	OperationType      string
	Beneficiary        string
	BankDest           string
	ServiceName        string
	ServiceHolder      string
	ServiceCode        string
	BeneficiaryAccount string
}

// StoredTransaction is the persisted shape of a normalized transaction.
// Date is RFC3339 text, Notes a "; "-joined list, Details JSON.
type StoredTransaction struct {
	ID               int64   `json:"id,omitempty"`
	UserID           int64   `json:"user_id,omitempty"`
	MessageID        string  `json:"message_id,omitempty"`
	Source           string  `json:"source"`
	Template         string  `json:"template"`
	Date             string  `json:"date"`
	AmountValue      float64 `json:"amount_value"`
	Currency         string  `json:"currency"`
	ExchangeRateUsed bool    `json:"exchange_rate_used"`
	Channel          string  `json:"channel,omitempty"`
	Merchant         string  `json:"merchant,omitempty"`
	Location         string  `json:"location,omitempty"`
	CardLast4        string  `json:"card_last4,omitempty"`
	AccountRef       string  `json:"account_ref,omitempty"`
	OperationID      string  `json:"operation_id,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	DetailsJSON      string  `json:"details,omitempty"`
	Confidence       float64 `json:"confidence"`
	HashID           string  `json:"hash_id,omitempty"`
}
