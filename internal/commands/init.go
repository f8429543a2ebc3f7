package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanhbq56/money-tracking/internal/config"
	"github.com/khanhbq56/money-tracking/internal/i18n"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	var baseURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default banksync.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts, baseURL, force)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "bank-integration API base URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")

	return cmd
}

func runInit(cmd *cobra.Command, opts *rootOptions, baseURL string, force bool) error {
	path := opts.configPath
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if opts.locale != "" {
		cfg.Locale = opts.locale
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	tr, err := i18n.Load(cfg.Locale)
	if err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), tr.T("init.created", map[string]any{"path": path}))
	return nil
}
