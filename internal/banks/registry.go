package banks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/model"
)

// Registry manages user-defined banks on top of a Store.
type Registry struct {
	backend Backend
	store   *Store
}

// NewRegistry creates a Registry that keeps store in step with the backend.
func NewRegistry(backend Backend, store *Store) *Registry {
	return &Registry{backend: backend, store: store}
}

// Create registers a custom bank. Name and sender pattern are required.
func (r *Registry) Create(ctx context.Context, in model.CustomBankInput) (model.BankConfig, error) {
	const op = "create custom bank"

	in = model.CustomBankInput{
		Name:          strings.TrimSpace(in.Name),
		SenderPattern: strings.TrimSpace(in.SenderPattern),
		AccountSuffix: strings.TrimSpace(in.AccountSuffix),
	}
	if in.Name == "" {
		return model.BankConfig{}, apperr.Validation(op, "bank_name", "must not be empty")
	}
	if in.SenderPattern == "" {
		return model.BankConfig{}, apperr.Validation(op, "sender_pattern", "must not be empty")
	}

	code, err := r.backend.CreateCustom(ctx, in)
	if err != nil {
		return model.BankConfig{}, err
	}

	if err := r.store.Refresh(ctx); err != nil {
		r.store.log.WithError(err).Warn("refresh after custom bank creation failed")
	} else if cfg, ok := r.find(code, in); ok {
		return cfg, nil
	}

	if code == "" {
		return model.BankConfig{}, apperr.Server(op, "server did not return a bank code")
	}
	cfg := model.BankConfig{
		Code:          code,
		Name:          in.Name,
		SenderPattern: in.SenderPattern,
		AccountSuffix: in.AccountSuffix,
		IsCustom:      true,
	}
	r.store.Add(cfg)
	return cfg, nil
}

// find locates the bank just created, by code when the server returned one.
func (r *Registry) find(code string, in model.CustomBankInput) (model.BankConfig, bool) {
	if code != "" {
		return r.store.Get(code)
	}
	for _, b := range r.store.All() {
		if b.IsCustom && b.Name == in.Name && b.SenderPattern == in.SenderPattern {
			return b, true
		}
	}
	return model.BankConfig{}, false
}

// List returns custom banks first, then predefined ones, each group in
// server order.
func (r *Registry) List() []model.BankConfig {
	all := r.store.All()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].IsCustom && !all[j].IsCustom
	})
	return all
}

// Delete removes a custom bank. The removal cannot be undone; callers
// confirm with the user first.
func (r *Registry) Delete(ctx context.Context, code string) error {
	const op = "delete custom bank"

	cfg, ok := r.store.Get(code)
	if !ok {
		return apperr.Validation(op, "bank_code", "unknown bank %q", code)
	}
	if !cfg.IsCustom {
		return apperr.Validation(op, "bank_code", "%s is a predefined bank and cannot be deleted", code)
	}
	if r.store.Pending(code) {
		return apperr.New(apperr.KindBusy, op, fmt.Sprintf("toggle of %s in progress", code))
	}
	if _, err := r.backend.Disable(ctx, code, true); err != nil {
		return err
	}
	r.store.Remove(code)
	r.store.log.WithFields(logrus.Fields{"bank_code": code, "name": cfg.Name}).Info("custom bank deleted")
	return nil
}
