// Package permission guards bank enablement behind mailbox read access.
package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/khanhbq56/money-tracking/internal/logging"
)

// Decision is the outcome of a permission check.
type Decision int

const (
	Unknown Decision = iota
	Granted
	Denied
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Checker queries the mailbox permission at the backend.
type Checker interface {
	GmailStatus(ctx context.Context) (bool, error)
}

// Gate checks the permission precondition and remembers the last answer
// for display. It never disables banks on its own.
type Gate struct {
	checker Checker
	log     logrus.FieldLogger

	mu    sync.Mutex
	badge Decision
}

// NewGate creates a Gate backed by checker.
func NewGate(checker Checker, log logrus.FieldLogger) *Gate {
	return &Gate{checker: checker, log: logging.OrDiscard(log)}
}

// HasPermission asks the backend whether mail for bankCode can be read.
// The permission is account-wide; bankCode only annotates logs.
func (g *Gate) HasPermission(ctx context.Context, bankCode string) (bool, error) {
	ok, err := g.checker.GmailStatus(ctx)
	if err != nil {
		return false, fmt.Errorf("checking mailbox permission: %w", err)
	}

	d := Denied
	if ok {
		d = Granted
	}
	g.mu.Lock()
	prev := g.badge
	g.badge = d
	g.mu.Unlock()

	if prev != d {
		g.log.WithFields(logrus.Fields{"bank_code": bankCode, "permission": d}).Info("mailbox permission changed")
	}
	return ok, nil
}

// EnsurePermission reports whether the precondition currently holds.
func (g *Gate) EnsurePermission(ctx context.Context) (Decision, error) {
	ok, err := g.HasPermission(ctx, "")
	if err != nil {
		return Unknown, err
	}
	if ok {
		return Granted, nil
	}
	return Denied, nil
}

// Badge returns the last observed decision without a network call.
func (g *Gate) Badge() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.badge
}
