package main

import (
	"time"

	"github.com/spf13/cobra"

	wabridge "github.com/goliatone/go-wabridge"
)

type rootOptions struct {
	addr              string
	sessionName       string
	webhookURL        string
	dataDir           string
	storeDriver       string
	storeDSN          string
	logLevel          string
	subscriptionTTL   time.Duration
	shutdownTimeout   time.Duration
	disableTerminalQR bool
}

// runtimeConfig returns the flag values as the highest config layer. Unset
// flags stay zero so env and defaults show through.
func (o rootOptions) runtimeConfig() wabridge.Config {
	var cfg wabridge.Config
	cfg.DefaultSession = o.sessionName
	cfg.HTTP.Addr = o.addr
	cfg.Webhook.URL = o.webhookURL
	cfg.Session.DataDir = o.dataDir
	cfg.Store.Driver = o.storeDriver
	cfg.Store.DSN = o.storeDSN
	return cfg
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "wabridge",
		Short: "Bridge WhatsApp sessions to HTTP and webhooks",
		Long: `wabridge links WhatsApp accounts through the multi device protocol,
exposes send and lookup operations over HTTP and relays session events
to registered webhook URLs.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *opts)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.addr, "addr", "a", "", `http listen address | example: --addr=":3000"`)
	flags.StringVarP(&opts.sessionName, "session", "s", "", "default session created at startup")
	flags.StringVar(&opts.webhookURL, "webhook-url", "", "webhook registered for message events at startup")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the per session device stores")
	flags.StringVar(&opts.storeDriver, "store-driver", "", "subscription store driver: sqlite3 or postgres (empty keeps subscriptions in memory)")
	flags.StringVar(&opts.storeDSN, "store-dsn", "", `subscription store dsn | example: --store-dsn="file:wabridge.db?_foreign_keys=on"`)
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.DurationVar(&opts.subscriptionTTL, "subscription-cache-ttl", 30*time.Second, "cache ttl for stored subscription lookups, 0 disables the cache")
	flags.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in flight requests and deliveries")
	flags.BoolVar(&opts.disableTerminalQR, "no-terminal-qr", false, "do not render QR codes on stdout")

	root.AddCommand(newMigrateCommand(opts))
	return root
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply subscription store migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), *opts)
		},
	}
}
