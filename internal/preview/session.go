// Package preview tracks which candidates of a preview the user selected.
package preview

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/model"
)

// CheckState is the derived state of a select-all checkbox.
type CheckState int

const (
	Unchecked CheckState = iota
	Indeterminate
	Checked
)

func (c CheckState) String() string {
	switch c {
	case Checked:
		return "checked"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unchecked"
	}
}

type status int

const (
	open status = iota
	committing
	committed
	discarded
)

// Session pairs the server's candidates with a separate selection set.
// Candidates are never mutated; every index is selected initially.
type Session struct {
	bankCode     string
	candidates   []model.CandidateTransaction
	exchangeRate *model.ExchangeRateInfo

	mu       sync.Mutex
	selected map[int]struct{}
	status   status
}

// New creates a session over a preview result.
func New(res *model.PreviewResult) *Session {
	s := &Session{
		bankCode:     res.BankCode,
		candidates:   res.Candidates,
		exchangeRate: res.ExchangeRate,
		selected:     make(map[int]struct{}, len(res.Candidates)),
	}
	for i := range s.candidates {
		s.selected[i] = struct{}{}
	}
	return s
}

// BankCode returns the bank the preview was run for.
func (s *Session) BankCode() string { return s.bankCode }

// ExchangeRate returns the conversion context, if the server sent one.
func (s *Session) ExchangeRate() *model.ExchangeRateInfo { return s.exchangeRate }

// Len returns the number of candidates.
func (s *Session) Len() int { return len(s.candidates) }

// Candidate returns candidate i.
func (s *Session) Candidate(i int) (model.CandidateTransaction, bool) {
	if i < 0 || i >= len(s.candidates) {
		return model.CandidateTransaction{}, false
	}
	return s.candidates[i], true
}

// Candidates returns every candidate in server order.
func (s *Session) Candidates() []model.CandidateTransaction {
	return append([]model.CandidateTransaction(nil), s.candidates...)
}

// Toggle flips the selection of index i.
func (s *Session) Toggle(i int) error {
	if i < 0 || i >= len(s.candidates) {
		return apperr.Validation("toggle selection", "index", "%d out of range [0,%d)", i, len(s.candidates))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[i]; ok {
		delete(s.selected, i)
	} else {
		s.selected[i] = struct{}{}
	}
	return nil
}

// SetAll selects every candidate, or none.
func (s *Session) SetAll(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[int]struct{}, len(s.candidates))
	if !on {
		return
	}
	for i := range s.candidates {
		s.selected[i] = struct{}{}
	}
}

// DeselectBelow clears candidates whose confidence is below threshold and
// returns how many were cleared.
func (s *Session) DeselectBelow(threshold decimal.Decimal) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.selected {
		if s.candidates[i].Confidence.LessThan(threshold) {
			delete(s.selected, i)
			n++
		}
	}
	return n
}

// IsSelected reports whether index i is selected.
func (s *Session) IsSelected(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[i]
	return ok
}

// SelectedCount returns the size of the selection.
func (s *Session) SelectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// SelectedIndices returns the selected indices in ascending order.
func (s *Session) SelectedIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indices()
}

func (s *Session) indices() []int {
	out := make([]int, 0, len(s.selected))
	for i := range s.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// SelectedSubset returns the selected candidates in server order.
func (s *Session) SelectedSubset() []model.CandidateTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CandidateTransaction, 0, len(s.selected))
	for _, i := range s.indices() {
		out = append(out, s.candidates[i])
	}
	return out
}

// SelectAllState derives the select-all checkbox from the selection.
func (s *Session) SelectAllState() CheckState {
	n := s.SelectedCount()
	switch {
	case n == 0:
		return Unchecked
	case n == len(s.candidates):
		return Checked
	default:
		return Indeterminate
	}
}

// TypeTotal aggregates selected candidates of one transaction type.
type TypeTotal struct {
	Count int
	Total decimal.Decimal
}

// Summary describes the current selection.
type Summary struct {
	Selected    int
	Total       int
	ByType      map[model.TransactionType]TypeTotal
	NeedsReview int // selected candidates below the review threshold
}

// Summary aggregates the selection. Candidates with confidence below
// reviewFlag are counted in NeedsReview.
func (s *Session) Summary(reviewFlag decimal.Decimal) Summary {
	sum := Summary{Total: len(s.candidates), ByType: make(map[model.TransactionType]TypeTotal)}
	for _, c := range s.SelectedSubset() {
		sum.Selected++
		tt := sum.ByType[c.Type]
		tt.Count++
		tt.Total = tt.Total.Add(c.FinalAmount)
		sum.ByType[c.Type] = tt
		if c.Confidence.LessThan(reviewFlag) {
			sum.NeedsReview++
		}
	}
	return sum
}

// Closed reports whether the session was committed or discarded.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == committed || s.status == discarded
}

// BeginCommit claims the session for one import. It fails with BUSY while
// another import of the session is in flight and with ErrAlreadyCommitted
// once the session is closed.
func (s *Session) BeginCommit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case open:
		s.status = committing
		return nil
	case committing:
		return apperr.New(apperr.KindBusy, "import selected", fmt.Sprintf("import of %s preview already in progress", s.bankCode))
	default:
		return fmt.Errorf("importing preview of %s: %w", s.bankCode, apperr.ErrAlreadyCommitted)
	}
}

// AbortCommit reopens a session whose import failed.
func (s *Session) AbortCommit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == committing {
		s.status = open
	}
}

// MarkCommitted closes the session after a successful import.
func (s *Session) MarkCommitted() error {
	return s.close(committed)
}

// Discard abandons the session without importing anything.
func (s *Session) Discard() error {
	return s.close(discarded)
}

func (s *Session) close(to status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.status == open:
	case s.status == committing && to == committed:
	case s.status == committing:
		return apperr.New(apperr.KindBusy, "discard preview", fmt.Sprintf("import of %s preview in progress", s.bankCode))
	default:
		return fmt.Errorf("closing preview of %s: %w", s.bankCode, apperr.ErrAlreadyCommitted)
	}
	s.status = to
	return nil
}
