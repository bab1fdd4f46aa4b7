package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-unique-checkout/internal/catalog"
	"github.com/ariefcatur/go-unique-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-unique-checkout/internal/kafka"
	"github.com/ariefcatur/go-unique-checkout/internal/logx"
	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/ariefcatur/go-unique-checkout/internal/postgres"
	"github.com/ariefcatur/go-unique-checkout/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(".")
	if err != nil {
		l := logx.Setup("catalog-delister", "info", false)
		l.Fatal().Err(err).Msg("load config")
	}
	log := logx.Setup(cfg.ServiceName+"-delister", cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresConns)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	d := &catalog.Delister{
		Products:    &orders.Repo{DB: db},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-delister",
		Log:         log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.DelisterGroup, orders.TopicOrderSettled, cfg.DelisterWorkers, log)
	log.Info().Str("group", cfg.DelisterGroup).Str("topic", orders.TopicOrderSettled).
		Int("workers", cfg.DelisterWorkers).Msg("delister consumer started")

	if err := cons.Start(ctx, d.HandleOrderSettled); err != nil {
		log.Error().Err(err).Msg("consumer exit")
	}
	log.Info().Msg("delister stopped")
}
