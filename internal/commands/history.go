package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/khanhbq56/money-tracking/internal/activity"
	"github.com/khanhbq56/money-tracking/internal/apperr"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "history [bank_code]",
		Short: "Show transactions created by sync, or the local activity log",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			if local {
				bankCode := ""
				if len(args) == 1 {
					bankCode = args[0]
				}
				return a.printActivity(bankCode)
			}
			if len(args) == 0 {
				return apperr.Validation("sync history", "bank_code", "required unless --local is given")
			}
			items, err := a.client.SyncHistory(ctx, args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				a.printf("history.empty", nil)
				return nil
			}
			t := newTable(a.out, "Date", "Type", "Amount", "Status", "Subject", "Description")
			for _, it := range items {
				t.Append([]string{formatDate(it.EmailDate), string(it.Type), formatAmount(it.Amount), it.Status, it.EmailSubject, it.Description})
			}
			t.Render()
			return nil
		}),
	}

	cmd.Flags().BoolVar(&local, "local", false, "show the local activity log instead, optionally for one bank")
	return cmd
}

func (a *app) printActivity(bankCode string) error {
	entries, err := activity.Read(a.cfg.Activity.Dir, bankCode)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.printf("history.empty", nil)
		return nil
	}
	t := newTable(a.out, "Time", "Event", "Bank", "Count", "Details")
	for _, e := range entries {
		ts := e.Timestamp
		t.Append([]string{formatTime(&ts, "-"), e.Event, e.BankCode, strconv.Itoa(e.Count), e.Details})
	}
	t.Render()
	return nil
}
