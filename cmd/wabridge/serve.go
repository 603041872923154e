package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	wabridge "github.com/goliatone/go-wabridge"
	"github.com/goliatone/go-wabridge/adapters/gocommand"
	"github.com/goliatone/go-wabridge/adapters/gologger"
	"github.com/goliatone/go-wabridge/adapters/whatsmeow"
	"github.com/goliatone/go-wabridge/core"
	"github.com/goliatone/go-wabridge/httpapi"
	"github.com/goliatone/go-wabridge/ratelimit"
)

func runServe(parent context.Context, opts rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := wabridge.LoadConfig(ctx, opts.runtimeConfig())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := gologger.ParseLevel(opts.logLevel)
	provider := gologger.NewSlogProvider(os.Stderr, level)
	logger := provider.GetLogger(cfg.ServiceName)

	stores, closeStore, err := openStores(ctx, cfg.Store, opts.subscriptionTTL, level <= gologger.LevelTrace)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	bridge, err := wabridge.New(cfg, bridgeOptions(cfg, opts, provider, stores)...)
	if err != nil {
		return fmt.Errorf("build bridge: %w", err)
	}
	facade, err := wabridge.NewFacade(bridge)
	if err != nil {
		return err
	}
	subs, err := facade.Register(gocommand.NewRegistryAdapter(nil))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	defer subs.Unsubscribe()

	server, err := httpapi.New(facade, httpapi.WithLoggerProvider(provider))
	if err != nil {
		return err
	}

	if err := bridge.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.shutdownTimeout)
		defer cancel()
		_ = bridge.Close(shutdownCtx)
		return fmt.Errorf("start bridge: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Listen(cfg.HTTP.Addr)
	}()
	logger.Info("wabridge running",
		"addr", cfg.HTTP.Addr,
		"session", cfg.DefaultSession,
		"webhook_url", cfg.Webhook.URL,
		"store", core.NormalizeStoreDriver(cfg.Store.Driver),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case runErr = <-serveErr:
		if runErr != nil {
			runErr = fmt.Errorf("http server: %w", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, server.Shutdown(shutdownCtx), bridge.Close(shutdownCtx))
}

func bridgeOptions(cfg core.Config, opts rootOptions, provider core.LoggerProvider, stores bridgeStores) []wabridge.Option {
	factory := whatsmeow.NewFactory(whatsmeow.ConfigFromCore(cfg.Session), whatsmeow.WithLoggerProvider(provider))
	out := []wabridge.Option{
		wabridge.WithAdapterFactory(factory),
		wabridge.WithLoggerProvider(provider),
	}
	if stores.subscriptions != nil {
		out = append(out, wabridge.WithSubscriptionStore(stores.subscriptions))
	}
	if stores.throttles != nil {
		out = append(out, wabridge.WithReceiverThrottle(ratelimit.NewAdaptivePolicy(stores.throttles)))
	}
	if !opts.disableTerminalQR {
		out = append(out, wabridge.WithEventHandler(whatsmeow.TerminalQRHandler(os.Stdout), core.EventQR))
	}
	return out
}

func runMigrate(parent context.Context, opts rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := wabridge.LoadConfig(parent, opts.runtimeConfig())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := openPersistence(parent, cfg.Store, false)
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("migrate: --store-driver (or STORE_DRIVER) is required")
	}
	return client.Close()
}
