package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/merchkart/storefront/internal/auth"
	"github.com/merchkart/storefront/internal/checkout"
	"github.com/merchkart/storefront/internal/config"
	"github.com/merchkart/storefront/internal/httpx"
	kafkax "github.com/merchkart/storefront/internal/kafka"
	"github.com/merchkart/storefront/internal/orders"
	"github.com/merchkart/storefront/internal/postgres"
	"github.com/merchkart/storefront/internal/qikink"
	"github.com/merchkart/storefront/internal/razorpay"
	"github.com/merchkart/storefront/internal/redisx"
	"github.com/merchkart/storefront/internal/users"
	"github.com/merchkart/storefront/internal/wishlist"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Qikink credential cache: load the persisted token before serving
	tokens := qikink.NewTokenManager(cfg.QikinkBaseURL, cfg.QikinkClientID, cfg.QikinkClientSecret,
		&qikink.RedisTokenStore{Client: rdb}, cfg.ExternalCallTimeout)
	if err := tokens.Initialize(ctx); err != nil {
		log.Fatalf("qikink token init: %v", err)
	}

	qk := qikink.NewClient(cfg.QikinkBaseURL, cfg.QikinkClientID, tokens, cfg.ExternalCallTimeout)
	rzp := razorpay.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.ExternalCallTimeout)

	// Kafka producers
	placedProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	placedProd.Start(ctx)
	paymentProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentCompleted, 256)
	paymentProd.Start(ctx)

	// Services & handlers
	orderRepo := &orders.Repo{DB: db}
	co := &checkout.Service{
		Store:       &checkout.PostgresStore{DB: db},
		Fulfillment: qk,
		Payments:    rzp,
		Producer:    placedProd,
		ServiceName: cfg.ServiceName,
		CallTimeout: cfg.ExternalCallTimeout,
	}
	jwtMgr := auth.NewManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)

	oh := &httpx.OrdersHandler{
		Checkout: co,
		Orders:   orderRepo,
		Qikink:   qk,
		Razorpay: rzp,
		Redis:    rdb,
		Producer: paymentProd,
		Service:  cfg.ServiceName,
	}
	uh := &httpx.UsersHandler{Users: &users.Repo{DB: db}, Auth: jwtMgr}
	ch := &httpx.CatalogHandler{Products: orderRepo}
	wh := &httpx.WishlistHandler{Wishlist: &wishlist.Repo{DB: db}}

	router := httpx.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		uh.Register(r)
		ch.Register(r)
		oh.RegisterWebhooks(r)
		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(jwtMgr))
			uh.RegisterProtected(pr)
			wh.Register(pr)
			oh.Register(pr)
		})
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
		case <-gctx.Done():
		}
		log.Println("shutting down...")

		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	placedProd.Close()
	paymentProd.Close()
	cancel()
	placedProd.WaitClosed()
	paymentProd.WaitClosed()
}
