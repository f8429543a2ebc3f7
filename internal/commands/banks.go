package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanhbq56/money-tracking/internal/apperr"
	"github.com/khanhbq56/money-tracking/internal/banks"
	"github.com/khanhbq56/money-tracking/internal/model"
)

func newBanksCommand(opts *rootOptions) *cobra.Command {
	banksCmd := &cobra.Command{
		Use:   "banks",
		Short: "Manage bank integrations",
	}
	banksCmd.AddCommand(
		newBanksListCommand(opts),
		newBanksToggleCommand(opts, "enable", true),
		newBanksToggleCommand(opts, "disable", false),
		newBanksAddCommand(opts),
		newBanksDeleteCommand(opts),
	)
	return banksCmd
}

func newBanksListCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List banks, custom banks first",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, _ []string) error {
			if format != "table" && format != "csv" {
				return apperr.Validation("list banks", "format", "must be table or csv, got %q", format)
			}
			if err := a.store.Refresh(ctx); err != nil {
				return err
			}
			list := a.registry.List()
			if format == "csv" {
				return banks.WriteBanks(a.out, list)
			}
			a.printBanks(list)
			return nil
		}),
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or csv")
	return cmd
}

func newBanksToggleCommand(opts *rootOptions, use string, enable bool) *cobra.Command {
	key, short := "bank.disabled", "Turn off email sync for a bank"
	if enable {
		key, short = "bank.enabled", "Turn on email sync for a bank"
	}
	return &cobra.Command{
		Use:   use + " <bank_code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			if err := a.store.Refresh(ctx); err != nil {
				return err
			}
			if _, err := a.store.Toggle(ctx, args[0], enable); err != nil {
				return err
			}
			b, _ := a.store.Get(args[0])
			a.printf(key, map[string]any{"bank": b.Name})
			return nil
		}),
	}
}

func newBanksAddCommand(opts *rootOptions) *cobra.Command {
	var in model.CustomBankInput
	var fromCSV string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a custom bank by sender pattern",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(ctx context.Context, a *app, _ []string) error {
			inputs := []model.CustomBankInput{in}
			if fromCSV != "" {
				var err error
				if inputs, err = readCustomInputs(fromCSV); err != nil {
					return err
				}
			}
			if err := a.store.Refresh(ctx); err != nil {
				return err
			}
			for _, input := range inputs {
				cfg, err := a.registry.Create(ctx, input)
				if err != nil {
					return err
				}
				a.printf("bank.created", map[string]any{"bank": cfg.Name, "code": cfg.Code})
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "bank name")
	cmd.Flags().StringVar(&in.SenderPattern, "pattern", "", "sender address or domain to match")
	cmd.Flags().StringVar(&in.AccountSuffix, "suffix", "", "account number suffix filter")
	cmd.Flags().StringVar(&fromCSV, "from-csv", "", "CSV file with name,sender_pattern,account_suffix rows, or a banks list --format csv export")
	cmd.MarkFlagsMutuallyExclusive("from-csv", "name")

	return cmd
}

func readCustomInputs(path string) ([]model.CustomBankInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	inputs, err := banks.ReadCustomInputs(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "add custom banks", err)
	}
	return inputs, nil
}

func newBanksDeleteCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <bank_code>",
		Short: "Delete a custom bank (cannot be undone)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(ctx context.Context, a *app, args []string) error {
			if !yes {
				a.printf("bank.delete_confirm", nil)
				return apperr.Validation("delete custom bank", "yes", "confirmation required")
			}
			if err := a.store.Refresh(ctx); err != nil {
				return err
			}
			if err := a.registry.Delete(ctx, args[0]); err != nil {
				return err
			}
			a.printf("bank.deleted", map[string]any{"code": args[0]})
			return nil
		}),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
