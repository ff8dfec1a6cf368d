package app

import (
	"context"
	"fmt"

	"hyperfeed/internal/config"
	"hyperfeed/internal/gateway/hyperliquid"
	"hyperfeed/internal/ingest"
	"hyperfeed/internal/logger"
	"hyperfeed/internal/store/gormstore"
	statushttp "hyperfeed/internal/transport/http/status"

	"golang.org/x/sync/errgroup"
)

// App wires configuration, storage, the ingestion service and the
// status HTTP server, and owns their lifecycle.
type App struct {
	cfg     *config.Config
	store   *gormstore.Store
	service *ingest.Service
	http    *statushttp.Server
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	store, err := gormstore.Open(cfg.App.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := hyperliquid.NewClient(cfg.Exchange.RESTBaseURL, cfg.Exchange.HTTPTimeout())
	dialer := hyperliquid.WSDialer{URL: cfg.Exchange.WSURL}
	service := ingest.NewService(cfg, store, client, dialer)

	httpSrv, err := statushttp.NewServer(statushttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Service: service,
		Store:   store,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build status server: %w", err)
	}

	return &App{cfg: cfg, store: store, service: service, http: httpSrv}, nil
}

// Run starts the HTTP server and the ingestion service and blocks
// until ctx ends or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			logger.Warnf("app: closing store: %v", err)
		}
	}()

	logger.Infof("app: starting, http=%s db=%s", a.http.Addr(), a.cfg.App.DBPath)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("status http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return a.service.Run(ctx)
	})
	return group.Wait()
}

// Service exposes the ingestion service for test harnesses.
func (a *App) Service() *ingest.Service {
	if a == nil {
		return nil
	}
	return a.service
}
