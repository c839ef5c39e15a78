// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/research-buddy/internal/config"
	"github.com/jeranaias/research-buddy/internal/research"
	"github.com/jeranaias/research-buddy/internal/ui/styles"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, locate, create and check the configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				var err error
				if path, err = config.PathTOML(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as TOML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(opts, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := opts.configPath
				if path == "" {
					var err error
					if path, err = config.ActivePath(); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		initCmd,
		&cobra.Command{
			Use:   "check",
			Short: "Validate the configuration and probe the backend",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return checkConfig(cmd.Context(), cmd, opts)
			},
		},
	)
	return cmd
}

// checkConfig reports config validity and backend health.
func checkConfig(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(opts, cmd.ErrOrStderr())
	if err != nil {
		fmt.Fprintln(out, styles.RenderError("config: "+err.Error()))
		return err
	}
	source := cfg.Source
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintln(out, styles.RenderSuccess("config: "+source))

	client := research.NewClientWithConfig(&research.ClientConfig{
		BaseURL:       cfg.Backend.URL,
		Timeout:       cfg.HealthTimeout(),
		StreamTimeout: cfg.StreamTimeout(),
	})
	if err := client.Health(ctx); err != nil {
		fmt.Fprintln(out, styles.RenderError("backend "+cfg.Backend.URL+": "+err.Error()))
		return fmt.Errorf("backend check failed: %w", err)
	}
	fmt.Fprintln(out, styles.RenderSuccess("backend "+cfg.Backend.URL))
	return nil
}
