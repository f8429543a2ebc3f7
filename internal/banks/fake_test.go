package banks

import (
	"context"
	"sync"

	"github.com/khanhbq56/money-tracking/internal/model"
)

type toggleCall struct {
	code         string
	enable       bool
	deleteCustom bool
}

type fakeBackend struct {
	mu       sync.Mutex
	configs  []model.BankConfig
	statuses map[string]model.BankStatus

	toggleErr  error
	toggleAck  model.ToggleAck
	configsErr error
	createCode string
	createErr  error

	// block, when set, holds Enable/Disable until closed.
	block chan struct{}

	toggles []toggleCall
	created []model.CustomBankInput
}

func (f *fakeBackend) Configs(context.Context) ([]model.BankConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configsErr != nil {
		return nil, f.configsErr
	}
	return append([]model.BankConfig(nil), f.configs...), nil
}

func (f *fakeBackend) Status(context.Context) (map[string]model.BankStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses, nil
}

func (f *fakeBackend) Enable(ctx context.Context, code string) (model.ToggleAck, error) {
	return f.toggle(ctx, toggleCall{code: code, enable: true})
}

func (f *fakeBackend) Disable(ctx context.Context, code string, deleteCustom bool) (model.ToggleAck, error) {
	return f.toggle(ctx, toggleCall{code: code, deleteCustom: deleteCustom})
}

func (f *fakeBackend) toggle(ctx context.Context, call toggleCall) (model.ToggleAck, error) {
	f.mu.Lock()
	f.toggles = append(f.toggles, call)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return model.ToggleAck{}, ctx.Err()
		}
	}
	if f.toggleErr != nil {
		return model.ToggleAck{}, f.toggleErr
	}
	return f.toggleAck, nil
}

func (f *fakeBackend) CreateCustom(_ context.Context, in model.CustomBankInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createCode, nil
}

func (f *fakeBackend) toggleCalls() []toggleCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toggleCall(nil), f.toggles...)
}

type fakeGate struct {
	granted bool
	err     error
	calls   int
}

func (g *fakeGate) HasPermission(context.Context, string) (bool, error) {
	g.calls++
	return g.granted, g.err
}
