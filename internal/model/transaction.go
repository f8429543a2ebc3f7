package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TypeExpense    TransactionType = "expense"
	TypeSaving     TransactionType = "saving"
	TypeInvestment TransactionType = "investment"
)

// CurrencyInfo describes a conversion the server applied to Amount.
type CurrencyInfo struct {
	ConversionApplied bool
	ExchangeRate      *decimal.Decimal
	OriginalCurrency  string
}

// CandidateTransaction is a parsed but unconfirmed transaction from one email.
type CandidateTransaction struct {
	EmailSubject string
	EmailDate    time.Time
	Type         TransactionType
	Amount       decimal.Decimal
	FinalAmount  decimal.Decimal // after currency conversion
	Currency     CurrencyInfo
	Confidence   decimal.Decimal // 0..1
	Description  string

	// Raw is the server's JSON for this candidate; import resubmits it verbatim.
	Raw json.RawMessage
}

// ExchangeRateInfo is the conversion context of a preview.
type ExchangeRateInfo struct {
	Rate      decimal.Decimal
	From      string
	To        string
	UpdatedAt *time.Time
}

// PreviewResult is the candidate list returned by a preview.
type PreviewResult struct {
	BankCode     string
	Candidates   []CandidateTransaction
	ExchangeRate *ExchangeRateInfo
}

// SyncSummary reports one bank's outcome of a direct sync.
type SyncSummary struct {
	BankCode   string
	NewEmails  int
	Parsed     int
	Created    int
	LastSyncAt *time.Time
}

// SyncResult holds the per-bank summaries of a direct sync.
type SyncResult struct {
	Summaries []SyncSummary
}

// First returns the first summary, if any.
func (r *SyncResult) First() (SyncSummary, bool) {
	if r == nil || len(r.Summaries) == 0 {
		return SyncSummary{}, false
	}
	return r.Summaries[0], true
}

// ImportError is a per-candidate import failure.
type ImportError struct {
	CandidateIndex int
	Reason         string
}

// ImportResult is the outcome of importing a selection.
type ImportResult struct {
	ImportedCount int
	Errors        []ImportError
}

// HistoryItem is one transaction previously created by sync.
type HistoryItem struct {
	EmailSubject string
	EmailDate    time.Time
	Type         TransactionType
	Amount       decimal.Decimal
	Description  string
	Status       string
	CreatedAt    *time.Time
}
