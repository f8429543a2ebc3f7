// Package scope turns a user's scope choice and raw form fields into a
// validated model.SyncRequest. It has no side effects.
package scope

import (
	"strings"
	"time"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/id"
	"github.com/khanhbq56/money-tracking/internal/model"
)

const op = "build sync request"

// Fields holds the raw form values. Only the fields the chosen kind needs are read.
type Fields struct {
	Date  string // YYYY-MM-DD, for SpecificDate
	Month string // YYYY-MM, for SpecificMonth
	From  string // YYYY-MM-DD, for DateRange
	To    string // YYYY-MM-DD, for DateRange
}

// Build validates fields for kind and returns the request.
func Build(bankCode string, kind model.ScopeKind, fields Fields, forceRefresh bool) (model.SyncRequest, error) {
	bankCode = strings.TrimSpace(bankCode)
	if bankCode == "" {
		return model.SyncRequest{}, apperr.Validation(op, "bank_code", "bank code is required")
	}

	s, err := buildScope(kind, fields)
	if err != nil {
		return model.SyncRequest{}, err
	}

	return model.SyncRequest{
		BankCode:     bankCode,
		Scope:        s,
		ForceRefresh: forceRefresh,
	}, nil
}

func buildScope(kind model.ScopeKind, f Fields) (model.Scope, error) {
	switch kind {
	case model.ScopeRecent:
		return model.RecentScope{}, nil

	case model.ScopeSpecificDate:
		d, err := requireDate("sync_date", f.Date)
		if err != nil {
			return nil, err
		}
		return model.DateScope{Date: d}, nil

	case model.ScopeSpecificMonth:
		if strings.TrimSpace(f.Month) == "" {
			return nil, apperr.Validation(op, "sync_month", "month is required")
		}
		year, month, err := id.ParseYearMonth(f.Month)
		if err != nil {
			return nil, apperr.Validation(op, "sync_month", "%v", err)
		}
		return model.MonthScope{Year: year, Month: month}, nil

	case model.ScopeDateRange:
		from, err := requireDate("from_date", f.From)
		if err != nil {
			return nil, err
		}
		to, err := requireDate("to_date", f.To)
		if err != nil {
			return nil, err
		}
		if from.After(to) {
			return nil, apperr.Validation(op, "from_date", "from date %s is after to date %s", id.FormatDate(from), id.FormatDate(to))
		}
		return model.RangeScope{From: from, To: to}, nil

	case model.ScopeAll:
		return model.AllScope{}, nil

	default:
		return nil, apperr.Validation(op, "scope", "unknown scope %q", kind)
	}
}

func requireDate(field, value string) (t time.Time, err error) {
	if strings.TrimSpace(value) == "" {
		return t, apperr.Validation(op, field, "date is required")
	}
	t, err = id.ParseDate(value)
	if err != nil {
		return t, apperr.Validation(op, field, "%v", err)
	}
	return t, nil
}

var kindAliases = map[string]model.ScopeKind{
	"recent":         model.ScopeRecent,
	"date":           model.ScopeSpecificDate,
	"specific_date":  model.ScopeSpecificDate,
	"month":          model.ScopeSpecificMonth,
	"specific_month": model.ScopeSpecificMonth,
	"range":          model.ScopeDateRange,
	"date_range":     model.ScopeDateRange,
	"all":            model.ScopeAll,
}

// ParseKind maps a user-typed scope name ("date", "month", "range", ...) to a kind.
func ParseKind(s string) (model.ScopeKind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", apperr.Validation(op, "scope", "unknown scope %q (want one of %s)", s, KindNames())
	}
	return k, nil
}

// KindNames lists the canonical scope names, comma separated.
func KindNames() string {
	names := make([]string, len(model.ScopeKinds))
	for i, k := range model.ScopeKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
