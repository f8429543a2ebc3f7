package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/khanhbq56/money-tracking/internal/buildinfo"
	"github.com/khanhbq56/money-tracking/internal/config"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	logLevel   string
	locale     string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "banksync",
		Short:   "Sync bank notification emails into the expense ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.locale, "locale", "", "message locale, en or vi (overrides config)")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newStatusCommand(opts),
		newPermissionCommand(opts),
		newBanksCommand(opts),
		newSyncCommand(opts),
		newPreviewCommand(opts),
		newHistoryCommand(opts),
	)

	return rootCmd
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// reportedError is a failure already rendered for the user.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }
