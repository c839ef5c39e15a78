// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/research-buddy/internal/config"
	"github.com/jeranaias/research-buddy/internal/controller"
	"github.com/jeranaias/research-buddy/internal/logging"
	"github.com/jeranaias/research-buddy/internal/research"
	"github.com/jeranaias/research-buddy/internal/session"
	"github.com/jeranaias/research-buddy/internal/storage"
)

// Version information, overridden by main at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	backendURL string
	storage    string
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "buddy",
		Short: "Research Buddy - streaming research assistant for the terminal",
		Long: `Research Buddy sends research questions to a research backend and renders
the streamed answer (articles, a summary and cited sources) as it arrives.

Run without arguments to start the interactive terminal UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.research-buddy/config.toml)")
	flags.StringVar(&opts.backendURL, "backend", "", "research backend URL")
	flags.StringVar(&opts.storage, "storage", "", "session storage backend: file or sqlite")

	root.AddCommand(
		newTUICommand(opts),
		newAskCommand(opts),
		newChatCommand(opts),
		newSessionsCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "research-buddy %s\n", Version)
			fmt.Fprintf(out, "%s%s\n", labelStyle.Render("commit"), GitCommit)
			fmt.Fprintf(out, "%s%s\n", labelStyle.Render("built"), BuildDate)
		},
	}
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// loadConfig reads the config file and applies flag overrides. A broken
// default config file is reported on warn and replaced by defaults; an
// explicit --config file must load.
func loadConfig(opts *rootOptions, warn io.Writer) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			if cfg == nil {
				return nil, err
			}
			fmt.Fprintln(warn, warningStyle.Render("[!] "+err.Error()+"; using defaults"))
		}
	}

	if opts.backendURL != "" {
		cfg.Backend.URL = opts.backendURL
	}
	if opts.storage != "" {
		cfg.Storage.Backend = opts.storage
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app is the wired set of components one command run uses.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	flush  func()

	cache storage.Cache
	repo  *storage.SessionRepository

	// Set only by openApp with a store
	store  *session.Store
	client *research.Client
	ctrl   *controller.Controller
}

// openStorage wires config, logging and the session repository.
func openStorage(opts *rootOptions, warn io.Writer) (*app, error) {
	cfg, err := loadConfig(opts, warn)
	if err != nil {
		return nil, err
	}

	logger, flush, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	path := cfg.Storage.Path
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			flush()
			return nil, err
		}
		path = storage.DefaultPath(dir, cfg.Storage.Backend)
	}

	cache, err := storage.Open(cfg.Storage.Backend, path)
	if err != nil {
		flush()
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	logger.Info("storage opened",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("path", path),
		zap.String("namespace", cfg.Storage.Namespace))

	return &app{
		cfg:    cfg,
		logger: logger,
		flush:  flush,
		cache:  cache,
		repo:   storage.NewSessionRepository(cache, cfg.Storage.Namespace),
	}, nil
}

// openApp wires everything a research request needs: the restored store,
// the backend client and the controller.
func openApp(opts *rootOptions, warn io.Writer) (*app, error) {
	a, err := openStorage(opts, warn)
	if err != nil {
		return nil, err
	}

	a.store = session.NewStore(
		session.WithPersister(a.repo),
		session.WithLogger(a.logger.Named("session")),
	)
	a.store.Bootstrap(a.repo)

	a.client = research.NewClientWithConfig(&research.ClientConfig{
		BaseURL:       a.cfg.Backend.URL,
		Timeout:       a.cfg.HealthTimeout(),
		StreamTimeout: a.cfg.StreamTimeout(),
	})
	a.ctrl = controller.New(a.store, a.client, controller.WithLogger(a.logger.Named("controller")))
	return a, nil
}

// Close waits for in-flight requests and releases storage.
func (a *app) Close() {
	if a.ctrl != nil {
		a.ctrl.Wait()
	}
	if a.store != nil {
		a.store.Close()
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	a.flush()
}
