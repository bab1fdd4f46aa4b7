package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-unique-checkout/internal/config"
	"github.com/ariefcatur/go-unique-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-unique-checkout/internal/kafka"
	"github.com/ariefcatur/go-unique-checkout/internal/logx"
	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/ariefcatur/go-unique-checkout/internal/postgres"
	"github.com/ariefcatur/go-unique-checkout/internal/redisx"
	"github.com/ariefcatur/go-unique-checkout/internal/reservation"
	"github.com/ariefcatur/go-unique-checkout/internal/sweeper"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		l := logx.Setup("checkout-api", "info", false)
		l.Fatal().Err(err).Msg("load config")
	}
	log := logx.Setup(cfg.ServiceName, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer closeStore()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one writer for every order.* topic
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.With().Str("component", "producer").Logger())
	prod.Start(ctx)

	svc := &reservation.Service{
		Store:    store,
		Events:   prod,
		Cache:    redisx.NewStatusCache(rdb),
		Hold:     cfg.HoldDuration,
		Producer: cfg.ServiceName,
		Log:      log.With().Str("component", "reservation").Logger(),
	}

	host, _ := os.Hostname()
	sw := &sweeper.Sweeper{
		Expirer:  svc,
		Lease:    &redisx.Lease{RDB: rdb, Key: redisx.KeySweeperLease, Owner: host + "-" + uuid.NewString()},
		Interval: cfg.SweepInterval,
		Batch:    cfg.SweepBatch,
		Log:      log.With().Str("component", "sweeper").Logger(),
	}

	// Router & handlers
	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{
		Svc:     svc,
		Limiter: &redisx.RateLimiter{RDB: rdb, Limit: cfg.ReserveRateLimit, Window: time.Minute},
		Log:     log,
	}).Register(router)
	(&httpx.AvailabilityHandler{Svc: svc, Log: log}).Register(router)
	(&httpx.AdminHandler{Svc: svc, Sweeper: sw, Token: cfg.OperatorToken, Log: log}).Register(router)
	if cfg.OperatorToken == "" {
		log.Warn().Msg("OPERATOR_TOKEN not set, admin api disabled")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.SweeperEnabled {
		g.Go(func() error {
			sw.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited")
	}

	prod.Close()      // close inbox -> flush & close writer
	prod.WaitClosed() // drain
}

// openStore picks the order store. memory is for local runs and demos: it
// forgets everything on restart.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (orders.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("using in-memory store")
		return orders.NewMemoryStore(), func() {}, nil
	}

	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return nil, nil, err
		}
		log.Info().Msg("migrations applied")
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresConns)
	if err != nil {
		return nil, nil, err
	}
	return &orders.Repo{DB: db}, db.Close, nil
}
