package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/khanhbq56/money-tracking/internal/model"
	"github.com/khanhbq56/money-tracking/internal/permission"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show mailbox permission and bank integration state",
		Args:  cobra.NoArgs,
		RunE:  withApp(opts, runStatus),
	}
}

func runStatus(ctx context.Context, a *app, _ []string) error {
	if err := a.store.Refresh(ctx); err != nil {
		return err
	}
	d, err := a.gate.EnsurePermission(ctx)
	if err != nil {
		return err
	}
	a.printf(permissionKey(d), nil)
	a.printBanks(a.registry.List())
	return nil
}

func newPermissionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permission",
		Short: "Check Gmail read permission",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, _ []string) error {
			d, err := a.gate.EnsurePermission(ctx)
			if err != nil {
				return err
			}
			a.printf(permissionKey(d), nil)
			return nil
		}),
	}
}

func permissionKey(d permission.Decision) string {
	return "permission." + d.String()
}

func (a *app) printBanks(list []model.BankConfig) {
	never := a.tr.T("bank.never_synced", nil)
	t := newTable(a.out, "Code", "Name", "Enabled", "Custom", "Sender", "Last sync")
	for _, b := range list {
		t.Append([]string{b.Code, b.Name, yesNo(b.IsEnabled), yesNo(b.IsCustom), b.SenderPattern, formatTime(b.LastSyncAt, never)})
	}
	t.Render()
}
