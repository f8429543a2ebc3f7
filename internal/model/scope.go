package model

import "time"

// ScopeKind names the date window a sync operation considers.
type ScopeKind string

const (
	ScopeRecent        ScopeKind = "recent"
	ScopeSpecificDate  ScopeKind = "specific_date"
	ScopeSpecificMonth ScopeKind = "specific_month"
	ScopeDateRange     ScopeKind = "date_range"
	ScopeAll           ScopeKind = "all"
)

// ScopeKinds lists every kind in display order.
var ScopeKinds = []ScopeKind{ScopeRecent, ScopeSpecificDate, ScopeSpecificMonth, ScopeDateRange, ScopeAll}

// Scope is one of RecentScope, DateScope, MonthScope, RangeScope or AllScope.
type Scope interface {
	Kind() ScopeKind
	isScope()
}

// RecentScope lets the server apply its default lookback (7 days).
type RecentScope struct{}

// DateScope limits a sync to one calendar day.
type DateScope struct {
	Date time.Time
}

// MonthScope limits a sync to one calendar month.
type MonthScope struct {
	Year  int
	Month time.Month
}

// RangeScope limits a sync to [From, To], both inclusive.
type RangeScope struct {
	From time.Time
	To   time.Time
}

// AllScope asks the server not to limit by date.
type AllScope struct{}

func (RecentScope) Kind() ScopeKind { return ScopeRecent }
func (DateScope) Kind() ScopeKind   { return ScopeSpecificDate }
func (MonthScope) Kind() ScopeKind  { return ScopeSpecificMonth }
func (RangeScope) Kind() ScopeKind  { return ScopeDateRange }
func (AllScope) Kind() ScopeKind    { return ScopeAll }

func (RecentScope) isScope() {}
func (DateScope) isScope()   {}
func (MonthScope) isScope()  {}
func (RangeScope) isScope()  {}
func (AllScope) isScope()    {}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// SyncRequest is an immutable description of one sync or preview call.
type SyncRequest struct {
	BankCode     string
	Scope        Scope
	ForceRefresh bool
}

// Params returns the request body sent to the sync and sync-preview endpoints.
// A nil Scope is treated as RecentScope.
func (r SyncRequest) Params() map[string]any {
	p := map[string]any{
		"bank_code":     r.BankCode,
		"force_refresh": r.ForceRefresh,
	}
	switch s := r.Scope.(type) {
	case nil, RecentScope:
	case DateScope:
		p["sync_date"] = s.Date.Format(DateLayout)
	case MonthScope:
		p["sync_year"] = s.Year
		p["sync_month"] = int(s.Month)
	case RangeScope:
		p["from_date"] = s.From.Format(DateLayout)
		p["to_date"] = s.To.Format(DateLayout)
	case AllScope:
		p["sync_all"] = true
	}
	return p
}

// ScopeKind returns the kind of r's scope.
func (r SyncRequest) ScopeKind() ScopeKind {
	if r.Scope == nil {
		return ScopeRecent
	}
	return r.Scope.Kind()
}
