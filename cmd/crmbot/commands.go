package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/crmbot/core/buildinfo"
	corecmd "github.com/m3rciful/crmbot/core/cmd"
	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/internal/app"
	"github.com/m3rciful/crmbot/internal/journal"
)

const defaultConfigPath = "config.yaml"

func runnerOptions() corecmd.Options {
	return corecmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
	}
}

func runBot() error {
	return corecmd.Run(runnerOptions())
}

func loadConfig() (*app.Config, string, error) {
	path, err := corecmd.ResolveConfigPath(runnerOptions())
	if err != nil {
		return nil, "", err
	}
	cfg, err := app.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the action journal schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("database.driver is empty; the journal is disabled")
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			if err := journal.Migrate(cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "journal schema is up to date")
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:   %s\n", path)
			fmt.Fprintf(out, "run mode: %s\n", cfg.Telegram.RunMode)
			fmt.Fprintf(out, "crm:      %s (timeout %s)\n", cfg.CRM.BaseURL, cfg.CRM.Timeout())
			fmt.Fprintf(out, "sessions: ttl %s, sweep %s\n", cfg.Session.TTL(), cfg.Session.SweepInterval())
			journalState := "disabled"
			if cfg.Database.Enabled() {
				journalState = cfg.Database.Driver
			}
			fmt.Fprintf(out, "journal:  %s\n", journalState)
			fmt.Fprintf(out, "options:  %d sectors, %d transaction types, %d inbound sources\n",
				len(cfg.LeadOptions.Sectors), len(cfg.LeadOptions.TransactionTypes), len(cfg.LeadOptions.InboundSources))
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crmbot %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		},
	}
}
