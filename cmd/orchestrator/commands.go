// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AleutianAI/AleutianDebate/pkg/logging"
	"github.com/AleutianAI/AleutianDebate/services/orchestrator"
	"github.com/AleutianAI/AleutianDebate/services/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
	logDir     string

	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Debate bot orchestrator",
		Long:          "Runs the debate bot HTTP API and its maintenance tasks.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			jsonLogs := opts.logJSON
			if !cmd.Flags().Changed("log-json") {
				jsonLogs = !logging.IsTerminal(cmd.ErrOrStderr())
			}
			opts.logger = logging.New(logging.Config{
				Level:   level,
				LogDir:  opts.logDir,
				Service: "debate-orchestrator",
				JSON:    jsonLogs,
				Output:  cmd.ErrOrStderr(),
			})
			slog.SetDefault(opts.logger.Slog())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logger == nil {
				return nil
			}
			return opts.logger.Close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error; overrides log_level from the config")
	flags.BoolVar(&opts.logJSON, "log-json", false, "write console logs as JSON (default when stderr is not a terminal)")
	flags.StringVar(&opts.logDir, "log-dir", "", "also write JSON logs to this directory")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversation API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := orchestrator.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			levelPinned := cmd.Flags().Changed("log-level")
			if !levelPinned {
				opts.applyLogLevel(cfg.LogLevel)
			}

			logger := opts.logger.Slog()
			svc, err := orchestrator.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create orchestrator: %w", err)
			}
			defer func() {
				if err := svc.Close(); err != nil {
					logger.Error("orchestrator close failed", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if opts.configPath != "" && !levelPinned {
				go func() {
					err := orchestrator.WatchConfig(ctx, opts.configPath, 0, func(c orchestrator.Config) {
						opts.applyLogLevel(c.LogLevel)
					}, logger)
					if err != nil {
						logger.Warn("Config file not watched, log_level changes need a restart", "error", err)
					}
				}()
			}
			return svc.Run(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured HTTP port")
	return cmd
}

// =============================================================================
// migrate
// =============================================================================

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := orchestrator.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			cfg = cfg.Effective()
			if !strings.EqualFold(cfg.Storage.Backend, "sqlite") {
				return fmt.Errorf("migrate needs the sqlite backend, configured backend is %q", cfg.Storage.Backend)
			}
			if cfg.Storage.Path == "" {
				return fmt.Errorf("storage.path is required for the sqlite backend")
			}

			applied, err := storage.MigratePath(commandContext(cmd), cfg.Storage.Path)
			if err != nil {
				return err
			}
			opts.logger.Slog().Info("Migrations applied", "path", cfg.Storage.Path, "versions", applied)
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
}

// =============================================================================
// config
// =============================================================================

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := orchestrator.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Effective().Redacted())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// applyLogLevel sets the logger level from a config value. Invalid values
// are logged and ignored.
func (o *rootOptions) applyLogLevel(value string) {
	level, err := logging.ParseLevel(value)
	if err != nil {
		o.logger.Slog().Warn("Ignoring log_level", "error", err)
		return
	}
	o.logger.SetLevel(level)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
