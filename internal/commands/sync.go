package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/khanhbq56/money-tracking/internal/model"
	"github.com/khanhbq56/money-tracking/internal/preview"
	"github.com/khanhbq56/money-tracking/internal/scope"
	"github.com/khanhbq56/money-tracking/internal/syncer"
)

// scopeFlags are shared by sync and preview.
type scopeFlags struct {
	scope   string
	date    string
	month   string
	from    string
	to      string
	force   bool
	timeout time.Duration
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scope, "scope", "", "one of "+scope.KindNames()+"; date, month and range are accepted too (default from config)")
	cmd.Flags().StringVar(&f.date, "date", "", "day to sync, YYYY-MM-DD (scope date)")
	cmd.Flags().StringVar(&f.month, "month", "", "month to sync, YYYY-MM (scope month)")
	cmd.Flags().StringVar(&f.from, "from", "", "first day, YYYY-MM-DD (scope range)")
	cmd.Flags().StringVar(&f.to, "to", "", "last day, YYYY-MM-DD (scope range)")
	cmd.Flags().BoolVar(&f.force, "force", false, "re-read emails that were already processed")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "deadline for the operation (default from config)")
}

func (f *scopeFlags) request(bankCode, defaultScope string) (model.SyncRequest, error) {
	name := f.scope
	if name == "" {
		name = defaultScope
	}
	kind, err := scope.ParseKind(name)
	if err != nil {
		return model.SyncRequest{}, err
	}
	fields := scope.Fields{Date: f.date, Month: f.month, From: f.from, To: f.to}
	return scope.Build(bankCode, kind, fields, f.force)
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var flags scopeFlags

	cmd := &cobra.Command{
		Use:   "sync <bank_code>",
		Short: "Sync emails and create transactions directly",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			req, err := flags.request(args[0], a.cfg.Sync.DefaultScope)
			if err != nil {
				return err
			}
			if err := a.store.Refresh(ctx); err != nil {
				return err
			}
			res, err := a.orch.Execute(ctx, req, syncer.ModeSync, flags.timeout)
			if err != nil {
				return err
			}
			if len(res.Sync.Summaries) == 0 {
				a.printf("sync.none", nil)
				return nil
			}
			for _, s := range res.Sync.Summaries {
				code := s.BankCode
				if code == "" {
					code = req.BankCode
				}
				a.printf("sync.summary", map[string]any{
					"bank": code, "new": s.NewEmails, "parsed": s.Parsed, "created": s.Created,
				})
			}
			return nil
		}),
	}

	flags.register(cmd)
	return cmd
}

func newPreviewCommand(opts *rootOptions) *cobra.Command {
	var flags scopeFlags
	var exclude []int
	var minConfidence float64
	var doImport bool

	cmd := &cobra.Command{
		Use:   "preview <bank_code>",
		Short: "Preview parsed transactions and import a selection",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			req, err := flags.request(args[0], a.cfg.Sync.DefaultScope)
			if err != nil {
				return err
			}
			res, err := a.orch.Execute(ctx, req, syncer.ModePreview, flags.timeout)
			if err != nil {
				return err
			}

			s := preview.New(res.Preview)
			if s.Len() == 0 {
				a.printf("preview.empty", map[string]any{"bank": req.BankCode})
				return nil
			}
			for _, n := range exclude {
				if err := s.Toggle(n - 1); err != nil {
					return err
				}
			}
			if minConfidence > 0 {
				s.DeselectBelow(decimal.NewFromFloat(minConfidence))
			}
			a.printPreview(s)

			if !doImport {
				a.printf("preview.not_imported", nil)
				return s.Discard()
			}
			return a.commit(ctx, s)
		}),
	}

	flags.register(cmd)
	cmd.Flags().IntSliceVar(&exclude, "exclude", nil, "row numbers to leave out, e.g. 1,3")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "leave out rows below this confidence (0-1)")
	cmd.Flags().BoolVar(&doImport, "import", false, "import the selected rows")
	return cmd
}

func (a *app) printPreview(s *preview.Session) {
	review, auto := a.reviewFlag(), a.autoConfirm()

	t := newTable(a.out, "#", "Sel", "Date", "Type", "Amount", "Conf", "Description", "")
	for i, c := range s.Candidates() {
		sel := "[ ]"
		if s.IsSelected(i) {
			sel = "[x]"
		}
		flag := ""
		switch {
		case c.Confidence.LessThan(review):
			flag = "review"
		case c.Confidence.GreaterThanOrEqual(auto):
			flag = "auto"
		}
		t.Append([]string{
			strconv.Itoa(i + 1), sel, formatDate(c.EmailDate), string(c.Type),
			formatAmount(c.FinalAmount), formatPercent(c.Confidence), c.Description, flag,
		})
	}
	t.Render()

	sum := s.Summary(review)
	a.printf("preview.selection", map[string]any{"selected": sum.Selected, "total": sum.Total})
	if sum.NeedsReview > 0 {
		a.printf("preview.needs_review", map[string]any{"count": sum.NeedsReview})
	}
	if r := s.ExchangeRate(); r != nil {
		a.printf("preview.exchange_rate", map[string]any{"from": r.From, "to": r.To, "rate": r.Rate.String()})
	}
}

func (a *app) commit(ctx context.Context, s *preview.Session) error {
	res, err := a.committer.Commit(ctx, s)
	if err != nil {
		return err
	}
	a.printf("import.done", map[string]any{"count": res.ImportedCount})
	for _, e := range res.Errors {
		a.printf("import.item_failed", map[string]any{"index": e.CandidateIndex + 1, "reason": e.Reason})
	}
	return nil
}
