package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/merchkart/storefront/internal/config"
	kafkax "github.com/merchkart/storefront/internal/kafka"
	"github.com/merchkart/storefront/internal/orders"
	"github.com/merchkart/storefront/internal/postgres"
	"github.com/merchkart/storefront/internal/qikink"
	"github.com/merchkart/storefront/internal/redisx"
	"github.com/merchkart/storefront/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	tokens := qikink.NewTokenManager(cfg.QikinkBaseURL, cfg.QikinkClientID, cfg.QikinkClientSecret,
		&qikink.RedisTokenStore{Client: rdb}, cfg.ExternalCallTimeout)
	if err := tokens.Initialize(ctx); err != nil {
		log.Fatalf("qikink token init: %v", err)
	}

	svc := &tracker.Service{
		Orders:      &orders.Repo{DB: db},
		Qikink:      qikink.NewClient(cfg.QikinkBaseURL, cfg.QikinkClientID, tokens, cfg.ExternalCallTimeout),
		Redis:       rdb,
		ServiceName: cfg.ServiceName,
	}

	c := kafkax.NewConsumer(cfg.KafkaBrokers, "tracker", orders.TopicOrderPlaced, 4)
	log.Printf("tracker consuming %s", orders.TopicOrderPlaced)
	if err := c.Start(ctx, svc.HandleOrderPlaced); err != nil {
		log.Fatalf("consumer: %v", err)
	}
	log.Println("tracker stopped")
}
