package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/config"
	"github.com/Lixing-Zhang/ebook-landing/internal/discount"
	"github.com/Lixing-Zhang/ebook-landing/internal/dispatch"
	"github.com/Lixing-Zhang/ebook-landing/internal/handlers"
	"github.com/Lixing-Zhang/ebook-landing/internal/metrics"
	"github.com/Lixing-Zhang/ebook-landing/internal/repository"
	"github.com/Lixing-Zhang/ebook-landing/internal/service"
	"github.com/Lixing-Zhang/ebook-landing/internal/showcase"
	"github.com/Lixing-Zhang/ebook-landing/internal/telemetry"
	"github.com/Lixing-Zhang/ebook-landing/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

func run(ctx context.Context, configPath, logLevel string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting ebook landing server",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"log_level", cfg.LogLevel,
		"transport", cfg.Order.Transport,
	)

	tel, err := telemetry.Init(cfg.Telemetry.TracingEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Error("failed to flush traces", "error", err)
		}
	}()

	catalog, err := loadCatalog(ctx, cfg.Pricing, log)
	if err != nil {
		return err
	}
	pricer := discount.NewPricer(catalog, cfg.Pricing.BasePrice, cfg.Pricing.Currency)
	offers := service.NewOfferService(cfg.Pricing.ProductTitle, pricer, catalog)

	dispatcher, closeDispatcher, err := newDispatcher(cfg.Order, log)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	m := metrics.New()
	orders := service.NewOrderService(
		service.NewDataURLReader(cfg.Order.MaxAttachmentBytes()),
		dispatcher,
		log,
		service.WithOptimisticDelay(cfg.Order.OptimisticDelay()),
		service.WithDispatchTimeout(time.Duration(cfg.Order.DispatchTimeout)*time.Second),
		service.WithCurrency(pricer.Currency()),
		service.WithRecorder(m),
	)
	sessions := repository.NewInMemorySessionRepository()

	board := showcase.NewBoard(showcase.Intervals{
		Counter:         time.Duration(cfg.Showcase.CounterInterval) * time.Second,
		Stock:           time.Duration(cfg.Showcase.StockInterval) * time.Second,
		Purchase:        time.Duration(cfg.Showcase.PurchaseInterval) * time.Second,
		PurchaseVisible: time.Duration(cfg.Showcase.PurchaseVisible) * time.Second,
		CountdownFrom:   time.Duration(cfg.Showcase.CountdownHours) * time.Hour,
	}, log)

	rt := &handlers.Router{
		Config:   cfg,
		Logger:   log,
		Health:   handlers.NewHealthHandler(Version, log),
		Offer:    handlers.NewOfferHandler(offers, log),
		Order:    handlers.NewOrderHandler(orders, sessions, offers, cfg.Order.MaxAttachmentBytes(), log),
		Showcase: handlers.NewShowcaseHandler(board, log),
		Sample:   handlers.NewSampleHandler(cfg.Pricing.SampleCode, log),
		Metrics:  m.Handler(),
		Recorder: m,
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      rt.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return board.Run(gctx)
	})

	g.Go(func() error {
		sweepSessions(gctx, sessions, time.Duration(cfg.Order.SessionIdleMins)*time.Minute, log)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := orders.Drain(shutdownCtx); err != nil {
			log.Warn("pending order dispatches abandoned", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadCatalog builds the discount catalog and loads any extra code sources
func loadCatalog(ctx context.Context, cfg config.PricingConfig, log *slog.Logger) (*discount.Catalog, error) {
	catalog := discount.NewCatalog(cfg.DiscountCodes)

	if len(cfg.DiscountFiles) > 0 {
		log.Info("loading discount files...", "count", len(cfg.DiscountFiles))
		if err := catalog.LoadFromFiles(ctx, cfg.DiscountFiles); err != nil {
			return nil, fmt.Errorf("failed to load discount files: %w", err)
		}
	}
	if len(cfg.DiscountURLs) > 0 {
		log.Info("loading discount URLs...", "count", len(cfg.DiscountURLs))
		if err := catalog.LoadFromURLs(ctx, cfg.DiscountURLs); err != nil {
			return nil, fmt.Errorf("failed to load discount URLs: %w", err)
		}
	}

	stats := catalog.GetStats()
	log.Info("discount codes loaded",
		"total_sources", stats["total_sources"],
		"total_codes", stats["total_codes"],
	)
	return catalog, nil
}

// newDispatcher picks the outbound transport
func newDispatcher(cfg config.OrderConfig, log *slog.Logger) (service.Dispatcher, func(), error) {
	switch cfg.Transport {
	case "amqp":
		client, err := dispatch.DialAMQP(cfg.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		d, err := dispatch.NewAMQPDispatcher(client, cfg.AMQPQueue)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return d, func() {
			if err := client.Close(); err != nil {
				log.Error("failed to close RabbitMQ connection", "error", err)
			}
		}, nil
	default:
		client := &http.Client{Timeout: time.Duration(cfg.DispatchTimeout) * time.Second}
		return dispatch.NewHTTPDispatcher(cfg.EndpointURL, client, log), func() {}, nil
	}
}

// sweepSessions drops idle form sessions until ctx ends
func sweepSessions(ctx context.Context, sessions repository.SessionRepository, idle time.Duration, log *slog.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Sweep(ctx, now.Add(-idle)); n > 0 {
				log.Debug("idle form sessions removed", "count", n)
			}
		}
	}
}
