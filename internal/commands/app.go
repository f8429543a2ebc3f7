package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/khanhbq56/money-tracking/internal/activity"
	"github.com/khanhbq56/money-tracking/internal/backend"
	"github.com/khanhbq56/money-tracking/internal/banks"
	"github.com/khanhbq56/money-tracking/internal/config"
	"github.com/khanhbq56/money-tracking/internal/events"
	"github.com/khanhbq56/money-tracking/internal/i18n"
	"github.com/khanhbq56/money-tracking/internal/importer"
	"github.com/khanhbq56/money-tracking/internal/logging"
	"github.com/khanhbq56/money-tracking/internal/permission"
	"github.com/khanhbq56/money-tracking/internal/syncer"
)

// app wires the sync core for one command invocation.
type app struct {
	cfg *config.Config
	log *logrus.Logger
	tr  *i18n.Catalog
	out io.Writer

	client    *backend.Client
	bus       *events.Bus
	gate      *permission.Gate
	store     *banks.Store
	registry  *banks.Registry
	orch      *syncer.Orchestrator
	committer *importer.Committer

	closers []func()
}

func newApp(ctx context.Context, opts *rootOptions, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.LoadOrDefault(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.locale != "" {
		cfg.Locale = opts.locale
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", opts.configPath, err)
	}

	log, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return nil, err
	}
	tr, err := i18n.Load(cfg.Locale)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, tr: tr, out: stdout}

	a.client = backend.New(cfg.Backend.BaseURL,
		backend.WithTokenSource(backend.StaticToken(cfg.Auth.Token)),
		backend.WithRequestTimeout(cfg.Backend.RequestTimeout),
		backend.WithLogger(log),
	)
	a.bus = events.NewBus()
	a.closers = append(a.closers, activity.NewRecorder(cfg.Activity.Dir, log).Attach(a.bus))

	a.gate = permission.NewGate(a.client, log)
	a.store = banks.NewStore(a.client, a.gate, banks.WithEmitter(a.bus), banks.WithLogger(log))
	a.registry = banks.NewRegistry(a.client, a.store)
	a.orch = syncer.New(a.client,
		syncer.WithRecorder(a.store),
		syncer.WithEmitter(a.bus),
		syncer.WithLogger(log),
		syncer.WithDeadline(cfg.Sync.Deadline),
	)
	a.committer = importer.NewCommitter(a.client, importer.WithEmitter(a.bus), importer.WithLogger(log))
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
}

func (a *app) printf(key string, params map[string]any) {
	fmt.Fprintln(a.out, a.tr.T(key, params))
}

func (a *app) reviewFlag() decimal.Decimal {
	return decimal.NewFromFloat(a.cfg.Thresholds.ReviewFlag)
}

func (a *app) autoConfirm() decimal.Decimal {
	return decimal.NewFromFloat(a.cfg.Thresholds.AutoConfirm)
}

// withApp builds the app and renders a failure through the translator.
func withApp(opts *rootOptions, fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.close()

		if err := fn(cmd.Context(), a, args); err != nil {
			a.log.WithError(err).WithField("command", cmd.CommandPath()).Debug("command failed")
			fmt.Fprintln(cmd.ErrOrStderr(), i18n.ErrorMessage(a.tr, err))
			return reportedError{err}
		}
		return nil
	}
}
