package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docshelf/docshelf/internal/app"
	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/logging"
)

// cli carries the flags shared by every command and the app built from them.
type cli struct {
	format   string
	apiURL   string
	logLevel string

	app *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "docshelf",
		Short:         "docshelf - command-line client for PDF document collections",
		Long:          "docshelf lists, uploads and shares PDF documents and collections, and chats with documents.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.format, "format", "table", "Output format: table or json")
	root.PersistentFlags().StringVar(&c.apiURL, "api-url", "", "Backend API URL (overrides DOCSHELF_API_URL)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newDocsCmd(c),
		newCollectionsCmd(c),
		newMembersCmd(c),
		newShareCmd(c),
		newStatsCmd(c),
		newChatCmd(c),
		newDashboardCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	if c.format != "table" && c.format != "json" {
		return fmt.Errorf("invalid format: %s (valid values: table, json)", c.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.APIURL = c.apiURL
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func (c *cli) signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// requireSession checks the stored session and turns the sentinel errors
// into something a user can act on.
func (c *cli) requireSession(ctx context.Context) error {
	_, err := c.app.RequireSession(ctx)
	return sessionError(err)
}
