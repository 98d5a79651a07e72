package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"copytrader/config"
	"copytrader/internal/copier"
	"copytrader/internal/exchange"
	"copytrader/internal/gateway"
	"copytrader/internal/memorystore"
	"copytrader/internal/pricefeed"
	"copytrader/internal/publisher"
	"copytrader/internal/symbolmeta"
	"copytrader/pkg/coindcx"
	"copytrader/pkg/storage/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	fillBuffer     = 1024
	statusInterval = 30 * time.Second
)

// App wires the exchange client, price stream, copy engine, storage and the
// HTTP gateway.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	postgres  *postgres.PostgresClient
	publisher *publisher.FillPublisher
	recorder  *publisher.FillRecorder

	prices  *memorystore.MemoryPriceStore
	logs    *memorystore.MemoryOrderLogStore
	manager *copier.Manager
	ws      *coindcx.WSClient
}

// New builds an App. Postgres and Kafka are only touched when enabled.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		prices: memorystore.NewPriceStore(),
		logs:   memorystore.NewOrderLogStore(),
	}

	// Initialize PostgreSQL Client
	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrate(cfg.Postgres, true, cfg.Log.Environment)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		a.postgres = client
		a.warmPrices()
	}

	// REST client and rate-limited exchange adapter
	restClient := coindcx.NewRESTClient(cfg.Exchange.REST.BaseURL, cfg.Exchange.REST.Timeout)
	adapter := exchange.NewAdapter(restClient, cfg.Copy.RateLimit, cfg.Copy.RateBurst, logger)

	// Copy engine
	a.manager = copier.NewManager(adapter, a.prices, a.logs, leadTraders(cfg.Leads), copier.Options{
		PollInterval:   cfg.Copy.PollInterval,
		NoiseThreshold: cfg.Copy.NoiseThreshold,
		Leverage:       cfg.Copy.Leverage,
		CallTimeout:    cfg.Copy.CallTimeout,
	}, logger)

	// Fill journal and Kafka events (nil sinks stay untyped nil)
	if a.postgres != nil || cfg.Kafka.Enabled {
		var journal publisher.FillJournal
		if a.postgres != nil {
			journal = a.postgres
		}
		var pub publisher.Publisher
		if cfg.Kafka.Enabled {
			a.publisher = publisher.NewFillPublisher(cfg.Kafka)
			pub = a.publisher
		}
		a.recorder = publisher.NewFillRecorder(journal, pub, fillBuffer, cfg.Copy.CallTimeout, logger)
		a.manager.SetFillSink(a.recorder)
	}

	// Price stream
	a.ws = coindcx.NewWSClient(cfg.Exchange.WS.URL, []string{cfg.Exchange.WS.Channel}, logger)
	a.ws.SetClientPing(cfg.Exchange.WS.ClientPing, cfg.Exchange.WS.PingInterval)
	a.ws.SetMessageHandler(pricefeed.MakeMessageHandler(logger, a.prices))

	return a, nil
}

func leadTraders(leads []config.LeadConfig) []copier.LeadTrader {
	out := make([]copier.LeadTrader, 0, len(leads))
	for _, l := range leads {
		out = append(out, copier.LeadTrader{
			ID:          l.ID,
			Name:        l.Name,
			Credentials: copier.Credentials{Key: l.APIKey, Secret: l.APISecret},
		})
	}
	return out
}

// warmPrices streams persisted prices into the price store.
func (a *App) warmPrices() {
	loader := &pricefeed.PriceLoader{Storage: a.postgres, Timeout: a.cfg.Copy.CallTimeout, Logger: a.logger}
	priceCh := make(chan memorystore.PriceTick, 100)
	a.prices.StartWorker(priceCh)
	go func() {
		if err := loader.LoadPrices(priceCh); err != nil {
			a.logger.Warn("starting with an empty price map", zap.Error(err))
		}
	}()
}

// Run starts every background service and blocks until ctx is cancelled or
// one of them fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	// The recorder outlives gctx so fills from sessions still shutting down are delivered.
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout+a.cfg.Copy.CallTimeout)
		defer cancel()
		err := a.manager.Shutdown(shutdownCtx)
		stopRecorder()
		if err != nil {
			a.logger.Warn("copy sessions did not stop in time", zap.Error(err))
		}
		return nil
	})

	if a.recorder != nil {
		g.Go(func() error {
			return a.recorder.Run(recorderCtx)
		})
	}

	// Run WebSocket client
	g.Go(func() error {
		if err := a.ws.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("price stream: %w", err)
		}
		return nil
	})

	// Periodically persist latest prices
	if a.postgres != nil {
		flusher := &pricefeed.Flusher{
			Store:    a.prices,
			Storage:  a.postgres,
			Interval: a.cfg.Postgres.FlushInterval,
			Timeout:  a.cfg.Copy.CallTimeout,
			Logger:   a.logger,
		}
		g.Go(func() error {
			return flusher.Run(gctx)
		})
	}

	// Schedule daily step-cache reset
	if a.cfg.Copy.ResetStepsDaily {
		scheduler := &symbolmeta.MidnightScheduler{
			Task: symbolmeta.StepCacheReset(a.manager.Rounder(), a.logger),
		}
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	// Periodically log status
	g.Go(func() error {
		a.logStatus(gctx)
		return nil
	})

	// Serve HTTP API
	g.Go(func() error {
		return a.runHTTPServer(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (a *App) runHTTPServer(ctx context.Context) error {
	r, srv := gateway.NewServer(a.cfg.HTTP, a.logger)
	gateway.NewCopyController(a.manager).RegisterCopyRoutes(r.Group("/api"))

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server started", zap.String("addr", srv.Addr))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		err := <-serverErr
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// logStatus periodically reports session, price and order counts.
func (a *App) logStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.logger.Info("status",
				zap.Int("active_sessions", a.manager.ActiveCount()),
				zap.Int("prices", a.prices.Count()),
				zap.Int("orders", a.logs.CountAll()),
				zap.Int("cached_steps", a.manager.Rounder().Cached()),
			)
		}
	}
}

func (a *App) cleanup() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("error closing Kafka publisher", zap.Error(err))
		}
	}
	if a.postgres != nil {
		if err := a.postgres.Close(); err != nil {
			a.logger.Warn("error closing Postgres client", zap.Error(err))
		}
	}
}
