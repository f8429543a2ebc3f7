package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khanhbq56/money-tracking/internal/model"
)

// envelope is the status part every endpoint may return.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e envelope) text() string {
	switch {
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	default:
		return e.Detail
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// timestamp accepts the handful of layouts the server emits.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *timestamp) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func (t *timestamp) value() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}

type bankStatusDTO struct {
	Enabled  bool       `json:"enabled"`
	LastSync *timestamp `json:"last_sync"`
}

type bankConfigDTO struct {
	BankCode      string     `json:"bank_code"`
	Name          string     `json:"name"`
	BankName      string     `json:"bank_name"`
	SenderPattern string     `json:"sender_pattern"`
	AccountSuffix *string    `json:"account_suffix"`
	IsEnabled     bool       `json:"is_enabled"`
	IsCustom      bool       `json:"is_custom"`
	LastSyncAt    *timestamp `json:"last_sync_at"`
}

func (d bankConfigDTO) model() model.BankConfig {
	name := d.Name
	if name == "" {
		name = d.BankName
	}
	var suffix string
	if d.AccountSuffix != nil {
		suffix = *d.AccountSuffix
	}
	return model.BankConfig{
		Code:          d.BankCode,
		Name:          name,
		SenderPattern: d.SenderPattern,
		AccountSuffix: suffix,
		IsEnabled:     d.IsEnabled,
		IsCustom:      d.IsCustom,
		LastSyncAt:    d.LastSyncAt.ptr(),
	}
}

type configsResponse struct {
	ConfiguredBanks []bankConfigDTO `json:"configured_banks"`
}

type toggleResponse struct {
	LastSyncAt *timestamp `json:"last_sync_at"`
}

type gmailStatusResponse struct {
	HasPermission bool `json:"has_permission"`
}

type syncSummaryDTO struct {
	BankCode            string     `json:"bank_code"`
	NewEmails           int        `json:"new_emails"`
	ParsedTransactions  int        `json:"parsed_transactions"`
	CreatedTransactions int        `json:"created_transactions"`
	LastSyncAt          *timestamp `json:"last_sync_at"`
}

func (d syncSummaryDTO) model() model.SyncSummary {
	return model.SyncSummary{
		BankCode:   d.BankCode,
		NewEmails:  d.NewEmails,
		Parsed:     d.ParsedTransactions,
		Created:    d.CreatedTransactions,
		LastSyncAt: d.LastSyncAt.ptr(),
	}
}

type syncResponse struct {
	Data json.RawMessage `json:"data"`
}

type currencyInfoDTO struct {
	ConversionApplied bool             `json:"conversion_applied"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate,omitempty"`
	OriginalCurrency  string           `json:"original_currency,omitempty"`
}

type candidateDTO struct {
	EmailSubject    string           `json:"email_subject"`
	EmailDate       *timestamp       `json:"email_date,omitempty"`
	TransactionType string           `json:"transaction_type"`
	Amount          decimal.Decimal  `json:"amount"`
	FinalAmount     *decimal.Decimal `json:"final_amount,omitempty"`
	CurrencyInfo    *currencyInfoDTO `json:"currency_info,omitempty"`
	AIConfidence    decimal.Decimal  `json:"ai_confidence"`
	Description     string           `json:"description"`
}

func decodeCandidate(raw json.RawMessage) (model.CandidateTransaction, error) {
	var d candidateDTO
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.CandidateTransaction{}, err
	}
	final := d.Amount
	if d.FinalAmount != nil {
		final = *d.FinalAmount
	}
	var cur model.CurrencyInfo
	if d.CurrencyInfo != nil {
		cur = model.CurrencyInfo{
			ConversionApplied: d.CurrencyInfo.ConversionApplied,
			ExchangeRate:      d.CurrencyInfo.ExchangeRate,
			OriginalCurrency:  d.CurrencyInfo.OriginalCurrency,
		}
	}
	return model.CandidateTransaction{
		EmailSubject: d.EmailSubject,
		EmailDate:    d.EmailDate.value(),
		Type:         model.TransactionType(d.TransactionType),
		Amount:       d.Amount,
		FinalAmount:  final,
		Currency:     cur,
		Confidence:   d.AIConfidence,
		Description:  d.Description,
		Raw:          append(json.RawMessage(nil), raw...),
	}, nil
}

// encodeCandidate returns the JSON to resubmit for c. Candidates that came
// from the server are sent back exactly as received.
func encodeCandidate(c model.CandidateTransaction) (json.RawMessage, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	d := candidateDTO{
		EmailSubject:    c.EmailSubject,
		TransactionType: string(c.Type),
		Amount:          c.Amount,
		AIConfidence:    c.Confidence,
		Description:     c.Description,
	}
	if !c.EmailDate.IsZero() {
		d.EmailDate = &timestamp{c.EmailDate}
	}
	final := c.FinalAmount
	d.FinalAmount = &final
	d.CurrencyInfo = &currencyInfoDTO{
		ConversionApplied: c.Currency.ConversionApplied,
		ExchangeRate:      c.Currency.ExchangeRate,
		OriginalCurrency:  c.Currency.OriginalCurrency,
	}
	return json.Marshal(d)
}

type exchangeRateDTO struct {
	Rate         decimal.Decimal `json:"rate"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	UpdatedAt    *timestamp      `json:"updated_at"`
}

type previewResponse struct {
	Transactions     []json.RawMessage `json:"transactions"`
	ExchangeRateInfo *exchangeRateDTO  `json:"exchange_rate_info"`
}

type importRequest struct {
	SelectedTransactions []json.RawMessage `json:"selected_transactions"`
}

type importErrorDTO struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type importResponse struct {
	ImportedCount int              `json:"imported_count"`
	Errors        []importErrorDTO `json:"errors"`
}

type createCustomRequest struct {
	BankName      string `json:"bank_name"`
	SenderPattern string `json:"sender_pattern"`
	AccountSuffix string `json:"account_suffix,omitempty"`
}

type createCustomResponse struct {
	BankCode string `json:"bank_code"`
}

type historyItemDTO struct {
	EmailSubject    string          `json:"email_subject"`
	EmailDate       *timestamp      `json:"email_date"`
	TransactionType string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Status          string          `json:"status"`
	CreatedAt       *timestamp      `json:"created_at"`
}

type historyResponse struct {
	Transactions []historyItemDTO `json:"transactions"`
}
