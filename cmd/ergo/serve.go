// ABOUTME: The serve subcommand: loads config, sets up logging and runs the gateway
// ABOUTME: Picks the chat transport by name and prints the startup banner

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/config"
	"github.com/2389/ergo/internal/gateway"
	"github.com/2389/ergo/internal/logging"
	"github.com/2389/ergo/internal/transport/console"
)

// transportFactory builds a dialer for cfg. The returned stop channel, when
// non-nil, is closed once the transport has no more input.
type transportFactory func(cfg *config.Config, logger *slog.Logger) (chat.Dialer, <-chan struct{}, error)

var transports = map[string]transportFactory{
	"console": newConsoleTransport,
}

func transportNames() []string {
	names := lo.Keys(transports)
	slices.Sort(names)
	return names
}

// newConsoleTransport serves the first configured account from stdin.
func newConsoleTransport(cfg *config.Config, logger *slog.Logger) (chat.Dialer, <-chan struct{}, error) {
	if len(cfg.AO.Accounts) > 1 {
		logger.Warn("console transport runs only the first account",
			"account", cfg.AO.Accounts[0].SessionName(),
			"skipped", len(cfg.AO.Accounts)-1,
		)
		cfg.AO.Accounts = cfg.AO.Accounts[:1]
	}
	d := console.NewDialer(os.Stdin, os.Stdout, cfg.AO.Accounts[0].Character, logger.With("component", "console"))
	return d, d.Done(), nil
}

type serveOptions struct {
	transport string
}

func (o *serveOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.transport, "transport", "t", "console",
		fmt.Sprintf("chat transport (%v)", transportNames()))
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), flags, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

// loadConfig loads the configured file. Without an explicit path a missing
// file falls back to the built-in defaults.
func loadConfig(flags *globalFlags) (*config.Config, string, error) {
	path := config.Path(flags.configPath)
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	explicit := flags.configPath != "" || os.Getenv(config.EnvConfigPath) != ""
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}

	cfg, err = config.Default()
	if err != nil {
		return nil, "", fmt.Errorf("loading default config: %w", err)
	}
	return cfg, "(built-in defaults)", nil
}

func runServe(ctx context.Context, out io.Writer, flags *globalFlags, opts *serveOptions) error {
	cfg, configPath, err := loadConfig(flags)
	if err != nil {
		return err
	}

	factory, ok := transports[opts.transport]
	if !ok {
		return fmt.Errorf("unknown transport %q (available: %v)", opts.transport, transportNames())
	}

	level := cfg.General.LogLevel
	if flags.debug {
		level = "debug"
	}
	logger, closer, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.General.LogFormat,
		File:   cfg.General.LogFilename,
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closer.Close()

	printBanner(out, cfg, configPath, opts.transport)

	dialer, inputDone, err := factory(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating %s transport: %w", opts.transport, err)
	}

	logger.Info("starting ergo",
		"version", version,
		"config", configPath,
		"transport", opts.transport,
		"accounts", len(cfg.AO.Accounts),
	)

	gw, err := gateway.New(cfg, dialer, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	if inputDone != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-inputDone:
				logger.Info("transport input closed, shutting down")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return gw.Run(ctx)
}

func printBanner(out io.Writer, cfg *config.Config, configPath, transport string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Transport: %s\n", transport)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s\n", cfg.Database.Path)
	if cfg.Server.HTTPAddr != "" {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	for _, acc := range cfg.AO.Accounts {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "Session:   %s ", acc.SessionName())
		gray.Fprintf(out, "(%s:%d)\n", acc.Host, acc.Port)
	}
	fmt.Fprintln(out)
}
