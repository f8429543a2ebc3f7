// Package syncer runs sync and preview operations one at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/events"
	"github.com/khanhbq56/money-tracking/internal/logging"
	"github.com/khanhbq56/money-tracking/internal/model"
)

// DefaultDeadline bounds an operation when no deadline is given.
const DefaultDeadline = 60 * time.Second

// Mode selects between creating transactions and only previewing them.
type Mode int

const (
	ModeSync Mode = iota
	ModePreview
)

func (m Mode) String() string {
	if m == ModePreview {
		return "preview"
	}
	return "sync"
}

// Backend is the sync part of the bank-integration API.
type Backend interface {
	Sync(ctx context.Context, req model.SyncRequest) (*model.SyncResult, error)
	SyncPreview(ctx context.Context, req model.SyncRequest) (*model.PreviewResult, error)
}

// SyncRecorder receives the last sync time of a completed direct sync.
type SyncRecorder interface {
	RecordSync(code string, at *time.Time) bool
}

// Result holds the outcome of Execute; exactly one field is set.
type Result struct {
	Sync    *model.SyncResult
	Preview *model.PreviewResult
}

var errDeadline = errors.New("sync deadline exceeded")

// Orchestrator allows at most one sync or preview in flight. A request made
// while another runs fails with BUSY; it is never queued.
type Orchestrator struct {
	backend  Backend
	recorder SyncRecorder
	emitter  events.Emitter
	log      logrus.FieldLogger
	deadline time.Duration

	lock *semaphore.Weighted
	busy atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets where last sync times are forwarded.
func WithRecorder(r SyncRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithEmitter sets where syncCompleted and syncFailed events go.
func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) { o.emitter = e }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Orchestrator) { o.log = logging.OrDiscard(l) }
}

// WithDeadline sets the default deadline.
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.deadline = d
		}
	}
}

// New creates an idle Orchestrator.
func New(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		emitter:  events.Discard,
		log:      logging.Discard(),
		deadline: DefaultDeadline,
		lock:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Busy reports whether an operation is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Sync runs a direct sync with the default deadline.
func (o *Orchestrator) Sync(ctx context.Context, req model.SyncRequest) (*model.SyncResult, error) {
	res, err := o.Execute(ctx, req, ModeSync, 0)
	if err != nil {
		return nil, err
	}
	return res.Sync, nil
}

// Preview runs a preview with the default deadline.
func (o *Orchestrator) Preview(ctx context.Context, req model.SyncRequest) (*model.PreviewResult, error) {
	res, err := o.Execute(ctx, req, ModePreview, 0)
	if err != nil {
		return nil, err
	}
	return res.Preview, nil
}

// Execute runs req in the given mode. The lock is released on every exit.
// A deadline of zero uses the orchestrator default; when it elapses the
// request is aborted with TIMEOUT. Cancelling ctx aborts it with CANCELED.
func (o *Orchestrator) Execute(ctx context.Context, req model.SyncRequest, mode Mode, deadline time.Duration) (*Result, error) {
	op := mode.String()
	log := o.log.WithFields(logrus.Fields{
		"bank_code": req.BankCode,
		"mode":      op,
		"scope":     req.ScopeKind(),
	})

	if !o.lock.TryAcquire(1) {
		log.Warn("rejected: another sync is in progress")
		return nil, apperr.New(apperr.KindBusy, op, "another sync or preview is in progress")
	}
	o.busy.Store(true)
	defer func() {
		o.busy.Store(false)
		o.lock.Release(1)
	}()

	if deadline <= 0 {
		deadline = o.deadline
	}
	runCtx, cancel := context.WithTimeoutCause(ctx, deadline, errDeadline)
	defer cancel()

	start := time.Now()
	res, err := o.run(runCtx, req, mode)
	log = log.WithField("duration", time.Since(start).Round(time.Millisecond))
	if err != nil {
		err = classify(op, ctx, runCtx, deadline, err)
		log.WithError(err).Warn("sync failed")
		o.emit(events.SyncFailed, req, events.SyncOutcome{Mode: op, Scope: req.ScopeKind(), Err: err})
		return nil, err
	}

	outcome := events.SyncOutcome{Mode: op, Scope: req.ScopeKind()}
	if mode == ModeSync {
		o.recordFirst(req, res.Sync)
		outcome.Summaries = res.Sync.Summaries
		log.WithField("count", len(res.Sync.Summaries)).Info("sync completed")
	} else {
		outcome.Candidates = len(res.Preview.Candidates)
		log.WithField("count", outcome.Candidates).Info("preview completed")
	}
	o.emit(events.SyncCompleted, req, outcome)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, req model.SyncRequest, mode Mode) (*Result, error) {
	if mode == ModePreview {
		p, err := o.backend.SyncPreview(ctx, req)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = &model.PreviewResult{}
		}
		if p.BankCode == "" {
			p.BankCode = req.BankCode
		}
		return &Result{Preview: p}, nil
	}
	s, err := o.backend.Sync(ctx, req)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = &model.SyncResult{}
	}
	return &Result{Sync: s}, nil
}

// recordFirst forwards the first summary's last sync time to the store.
func (o *Orchestrator) recordFirst(req model.SyncRequest, res *model.SyncResult) {
	first, ok := res.First()
	if !ok || o.recorder == nil || first.LastSyncAt == nil {
		return
	}
	code := first.BankCode
	if code == "" {
		code = req.BankCode
	}
	o.recorder.RecordSync(code, first.LastSyncAt)
}

func (o *Orchestrator) emit(t events.Type, req model.SyncRequest, outcome events.SyncOutcome) {
	o.emitter.Emit(events.Event{Type: t, BankCode: req.BankCode, Data: outcome})
}

// classify tells the caller's cancellation apart from the orchestrator's
// own deadline. Other failures keep the kind the backend gave them.
func classify(op string, caller, run context.Context, deadline time.Duration, err error) error {
	ctxErr := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, apperr.ErrTimeout) || errors.Is(err, apperr.ErrCanceled)
	if !ctxErr {
		return err
	}
	switch {
	case errors.Is(caller.Err(), context.Canceled):
		return &apperr.Error{Kind: apperr.KindCanceled, Op: op, Message: "canceled by caller", Err: err}
	case errors.Is(context.Cause(run), errDeadline), errors.Is(caller.Err(), context.DeadlineExceeded):
		return &apperr.Error{Kind: apperr.KindTimeout, Op: op, Message: fmt.Sprintf("no response within %s", deadline), Err: err}
	default:
		return err
	}
}
