package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "storefront/docs"
	"storefront/pkg/catalog"
	"storefront/pkg/commerce"
	"storefront/pkg/commerce/memory"
	pg "storefront/pkg/commerce/postgres"
	"storefront/pkg/commerce/remote"
	"storefront/pkg/config"
	"storefront/pkg/logger"
	"storefront/pkg/otel"
	"storefront/pkg/session"
	"storefront/pkg/storefront"
)

// @title Storefront API
// @version 1.0
// @description Cart and checkout API with optimistic updates
// @host localhost:8080
// @BasePath /
func main() {
	cfg := config.Load()

	log, err := logger.New("storefront", cfg.Env)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, cfg); err != nil {
		log.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := otel.InitTracing(log, otel.Config{
		ServiceName: "storefront",
		Host:        cfg.OtelHost,
		Probability: 1.0,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())
	tracer := tp.Tracer("storefront")

	cat := catalog.NewMemory(seedProducts()...)

	var backend commerce.Backend
	switch {
	case cfg.CommerceURL != "":
		backend = remote.New(cfg.CommerceURL, remote.WithToken(cfg.CommerceToken))
		log.Info("using remote commerce backend", zap.String("url", cfg.CommerceURL))
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.ExecContext(ctx, pg.Schema); err != nil {
			return err
		}
		backend = pg.New(db, cat,
			pg.WithTaxRate(cfg.TaxRate),
			pg.WithCheckoutBase(cfg.CheckoutBase))
		log.Info("using postgres commerce backend")
	default:
		backend = memory.New(cat,
			memory.WithTaxRate(cfg.TaxRate),
			memory.WithCheckoutBase(cfg.CheckoutBase))
		log.Info("using in-memory commerce backend")
	}

	opts := []storefront.ServerOption{storefront.WithTracer(tracer)}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, storefront.WithStoreFactory(func(visitorID string) session.Store {
			return session.NewRedisStore(rdb, visitorID, cfg.SessionTTL)
		}))
		log.Info("session handles in redis", zap.String("addr", cfg.RedisAddr))
	}

	srv := storefront.NewServer(log, backend, cat, opts...)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errs <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// seedProducts is the demo catalog used when no remote platform supplies
// one.
func seedProducts() []catalog.Product {
	usd := func(units int64) commerce.Money { return commerce.NewMoney(units, "USD") }
	return []catalog.Product{
		{
			ID:     "prod-dress",
			Handle: "summer-dress",
			Title:  "Summer Dress",
			Variants: []commerce.Merchandise{
				{
					ID: "var-dress-s", Title: "S",
					ProductID: "prod-dress", ProductTitle: "Summer Dress", ProductHandle: "summer-dress",
					Price:           usd(4000),
					SelectedOptions: []commerce.SelectedOption{{Name: "Size", Value: "S"}},
					Image:           commerce.Image{URL: "/images/dress.jpg", AltText: "Summer Dress"},
				},
				{
					ID: "var-dress-m", Title: "M",
					ProductID: "prod-dress", ProductTitle: "Summer Dress", ProductHandle: "summer-dress",
					Price:           usd(4000),
					SelectedOptions: []commerce.SelectedOption{{Name: "Size", Value: "M"}},
					Image:           commerce.Image{URL: "/images/dress.jpg", AltText: "Summer Dress"},
				},
			},
		},
		{
			ID:     "prod-tote",
			Handle: "canvas-tote",
			Title:  "Canvas Tote",
			Variants: []commerce.Merchandise{
				{
					ID: "var-tote", Title: commerce.DefaultOptionValue,
					ProductID: "prod-tote", ProductTitle: "Canvas Tote", ProductHandle: "canvas-tote",
					Price:           usd(1850),
					SelectedOptions: []commerce.SelectedOption{{Name: "Title", Value: commerce.DefaultOptionValue}},
					Image:           commerce.Image{URL: "/images/tote.jpg", AltText: "Canvas Tote"},
				},
			},
		},
	}
}
