// Package banks holds the client-side view of bank integrations: the
// enable/disable state store and the custom bank registry.
package banks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/events"
	"github.com/khanhbq56/money-tracking/internal/logging"
	"github.com/khanhbq56/money-tracking/internal/model"
)

// Backend is the part of the bank-integration API the store and registry use.
type Backend interface {
	Configs(ctx context.Context) ([]model.BankConfig, error)
	Status(ctx context.Context) (map[string]model.BankStatus, error)
	Enable(ctx context.Context, bankCode string) (model.ToggleAck, error)
	Disable(ctx context.Context, bankCode string, deleteCustom bool) (model.ToggleAck, error)
	CreateCustom(ctx context.Context, in model.CustomBankInput) (string, error)
}

// PermissionChecker is consulted before any bank is enabled.
type PermissionChecker interface {
	HasPermission(ctx context.Context, bankCode string) (bool, error)
}

// Store owns the BankConfig collection. Enabled flags may differ from the
// server only while a toggle is in flight.
type Store struct {
	backend Backend
	gate    PermissionChecker
	emitter events.Emitter
	log     logrus.FieldLogger

	mu      sync.Mutex
	banks   []model.BankConfig
	index   map[string]int
	pending map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithEmitter sets where bankStatusChanged events go.
func WithEmitter(e events.Emitter) Option {
	return func(s *Store) { s.emitter = e }
}

// WithLogger sets the store logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = logging.OrDiscard(l) }
}

// NewStore creates an empty Store. Call Refresh or Seed to populate it.
func NewStore(backend Backend, gate PermissionChecker, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		gate:    gate,
		emitter: events.Discard,
		log:     logging.Discard(),
		index:   make(map[string]int),
		pending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed replaces the collection, keeping the given order. Banks with a toggle
// in flight keep their applied enabled flag.
func (s *Store) Seed(configs []model.BankConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := make(map[string]bool, len(s.pending))
	for code := range s.pending {
		if i, ok := s.index[code]; ok {
			applied[code] = s.banks[i].IsEnabled
		}
	}
	s.banks = make([]model.BankConfig, 0, len(configs))
	for _, c := range configs {
		b := c.Clone()
		if enabled, ok := applied[b.Code]; ok {
			b.IsEnabled = enabled
		}
		s.banks = append(s.banks, b)
	}
	s.reindex()
}

// ApplyStatus overlays server status onto known banks.
func (s *Store) ApplyStatus(statuses map[string]model.BankStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, st := range statuses {
		i, ok := s.index[code]
		if !ok || s.pending[code] {
			continue
		}
		s.banks[i].IsEnabled = st.Enabled
		if st.LastSync != nil {
			t := *st.LastSync
			s.banks[i].LastSyncAt = &t
		}
	}
}

// Refresh reloads configurations and status from the backend.
func (s *Store) Refresh(ctx context.Context) error {
	configs, err := s.backend.Configs(ctx)
	if err != nil {
		return fmt.Errorf("loading bank configs: %w", err)
	}
	statuses, err := s.backend.Status(ctx)
	if err != nil {
		return fmt.Errorf("loading bank status: %w", err)
	}
	s.Seed(configs)
	s.ApplyStatus(statuses)
	s.log.WithField("count", len(configs)).Debug("bank configs refreshed")
	return nil
}

// All returns copies of every bank in server order.
func (s *Store) All() []model.BankConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BankConfig, len(s.banks))
	for i, b := range s.banks {
		out[i] = b.Clone()
	}
	return out
}

// Get returns a bank by code.
func (s *Store) Get(code string) (model.BankConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[code]
	if !ok {
		return model.BankConfig{}, false
	}
	return s.banks[i].Clone(), true
}

// Pending reports whether a toggle of code is in flight.
func (s *Store) Pending(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[code]
}

// RecordSync stores the last sync time reported by a direct sync. It
// returns false for unknown banks.
func (s *Store) RecordSync(code string, at *time.Time) bool {
	if at == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[code]
	if !ok {
		return false
	}
	t := *at
	s.banks[i].LastSyncAt = &t
	return true
}

// Add inserts cfg, or replaces the bank with the same code.
func (s *Store) Add(cfg model.BankConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[cfg.Code]; ok {
		s.banks[i] = cfg.Clone()
		return
	}
	s.banks = append(s.banks, cfg.Clone())
	s.reindex()
}

// Remove drops a bank from the collection.
func (s *Store) Remove(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[code]
	if !ok {
		return false
	}
	s.banks = append(s.banks[:i], s.banks[i+1:]...)
	s.reindex()
	return true
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.banks))
	for i, b := range s.banks {
		s.index[b.Code] = i
	}
}

// toggleTx is an applied but unconfirmed enable/disable.
type toggleTx struct {
	code    string
	prior   bool
	desired bool
}

// Toggle enables or disables a bank. The desired state is applied at once;
// it is kept when the backend confirms and restored otherwise. Enabling
// without mailbox permission fails with PERMISSION_REQUIRED and sends no
// enable request.
func (s *Store) Toggle(ctx context.Context, code string, desired bool) (model.ToggleAck, error) {
	const op = "toggle bank"

	tx, err := s.begin(op, code, desired)
	if err != nil {
		return model.ToggleAck{}, err
	}

	if desired {
		ok, err := s.gate.HasPermission(ctx, code)
		if err != nil {
			s.rollback(tx, err)
			return model.ToggleAck{}, err
		}
		if !ok {
			err := apperr.New(apperr.KindPermissionRequired, op, "mailbox read permission required")
			s.rollback(tx, err)
			return model.ToggleAck{}, err
		}
	}

	var ack model.ToggleAck
	if desired {
		ack, err = s.backend.Enable(ctx, code)
	} else {
		ack, err = s.backend.Disable(ctx, code, false)
	}
	if err != nil {
		s.rollback(tx, err)
		return model.ToggleAck{}, err
	}
	s.commit(tx, ack)
	return ack, nil
}

func (s *Store) begin(op, code string, desired bool) (toggleTx, error) {
	s.mu.Lock()
	i, ok := s.index[code]
	if !ok {
		s.mu.Unlock()
		return toggleTx{}, apperr.Validation(op, "bank_code", "unknown bank %q", code)
	}
	if s.pending[code] {
		s.mu.Unlock()
		return toggleTx{}, apperr.New(apperr.KindBusy, op, fmt.Sprintf("toggle of %s already in progress", code))
	}
	tx := toggleTx{code: code, prior: s.banks[i].IsEnabled, desired: desired}
	s.banks[i].IsEnabled = desired
	s.pending[code] = true
	lastSync := s.banks[i].Clone().LastSyncAt
	s.mu.Unlock()

	s.emit(code, events.BankStatus{Enabled: desired, Pending: true, LastSyncAt: lastSync})
	return tx, nil
}

func (s *Store) commit(tx toggleTx, ack model.ToggleAck) {
	s.mu.Lock()
	delete(s.pending, tx.code)
	var lastSync *time.Time
	if i, ok := s.index[tx.code]; ok {
		s.banks[i].IsEnabled = tx.desired
		if ack.LastSyncAt != nil {
			t := *ack.LastSyncAt
			s.banks[i].LastSyncAt = &t
		}
		lastSync = s.banks[i].Clone().LastSyncAt
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"bank_code": tx.code, "enabled": tx.desired}).Info("bank toggled")
	s.emit(tx.code, events.BankStatus{Enabled: tx.desired, LastSyncAt: lastSync})
}

func (s *Store) rollback(tx toggleTx, cause error) {
	s.mu.Lock()
	delete(s.pending, tx.code)
	var lastSync *time.Time
	if i, ok := s.index[tx.code]; ok {
		s.banks[i].IsEnabled = tx.prior
		lastSync = s.banks[i].Clone().LastSyncAt
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"bank_code": tx.code, "enabled": tx.prior}).WithError(cause).Warn("bank toggle rolled back")
	s.emit(tx.code, events.BankStatus{Enabled: tx.prior, RolledBack: true, LastSyncAt: lastSync})
}

func (s *Store) emit(code string, st events.BankStatus) {
	s.emitter.Emit(events.Event{Type: events.BankStatusChanged, BankCode: code, Data: st})
}
