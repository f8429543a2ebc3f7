// Package importer submits the selected part of a preview for import.
package importer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/events"
	"github.com/khanhbq56/money-tracking/internal/logging"
	"github.com/khanhbq56/money-tracking/internal/model"
	"github.com/khanhbq56/money-tracking/internal/preview"
)

// Backend creates transactions from candidates.
type Backend interface {
	ImportSelected(ctx context.Context, txns []model.CandidateTransaction) (*model.ImportResult, error)
}

// Committer turns a preview selection into ledger transactions.
type Committer struct {
	backend Backend
	emitter events.Emitter
	log     logrus.FieldLogger
}

// Option configures a Committer.
type Option func(*Committer)

// WithEmitter sets where importCompleted events go.
func WithEmitter(e events.Emitter) Option {
	return func(c *Committer) { c.emitter = e }
}

// WithLogger sets the committer logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Committer) { c.log = logging.OrDiscard(l) }
}

// NewCommitter creates a Committer.
func NewCommitter(backend Backend, opts ...Option) *Committer {
	c := &Committer{backend: backend, emitter: events.Discard, log: logging.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit imports the selected candidates of s. An empty selection fails
// before any request is made. The session is claimed before the request,
// so an overlapping Commit fails with BUSY, and closed after a successful
// import, so committing it again fails instead of resubmitting. Error
// indices in the result refer to candidate positions in s.
func (c *Committer) Commit(ctx context.Context, s *preview.Session) (*model.ImportResult, error) {
	const op = "import selected"

	if s.Closed() {
		return nil, apperr.WithOp(apperr.ErrAlreadyCommitted, op)
	}
	indices := s.SelectedIndices()
	if len(indices) == 0 {
		return nil, apperr.WithOp(apperr.ErrEmptySelection, op)
	}
	if err := s.BeginCommit(); err != nil {
		return nil, err
	}

	subset := make([]model.CandidateTransaction, 0, len(indices))
	for _, i := range indices {
		cand, _ := s.Candidate(i)
		subset = append(subset, cand)
	}

	log := c.log.WithFields(logrus.Fields{"bank_code": s.BankCode(), "count": len(subset)})
	res, err := c.backend.ImportSelected(ctx, subset)
	if err != nil {
		s.AbortCommit()
		log.WithError(err).Warn("import failed")
		return nil, err
	}

	out := &model.ImportResult{ImportedCount: res.ImportedCount}
	for _, e := range res.Errors {
		if e.CandidateIndex >= 0 && e.CandidateIndex < len(indices) {
			e.CandidateIndex = indices[e.CandidateIndex]
		}
		out.Errors = append(out.Errors, e)
	}

	if err := s.MarkCommitted(); err != nil {
		return nil, err
	}
	log.WithField("imported", out.ImportedCount).Info("import completed")
	c.emitter.Emit(events.Event{
		Type:     events.ImportCompleted,
		BankCode: s.BankCode(),
		Data:     events.ImportOutcome{ImportedCount: out.ImportedCount, Failed: len(out.Errors)},
	})
	return out, nil
}
