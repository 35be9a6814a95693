package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-jewelry-storefront/internal/cart"
	"github.com/ariefcatur/go-jewelry-storefront/internal/catalog"
	"github.com/ariefcatur/go-jewelry-storefront/internal/config"
	"github.com/ariefcatur/go-jewelry-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-jewelry-storefront/internal/kafka"
	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/payment"
	"github.com/ariefcatur/go-jewelry-storefront/internal/postgres"
	"github.com/ariefcatur/go-jewelry-storefront/internal/redisx"
	"github.com/ariefcatur/go-jewelry-storefront/internal/reviews"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.PostgresDSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCompleted := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCompleted, 1024)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	producers := []*kafkax.Producer{pCreated, pCompleted, pCancelled}
	for _, p := range producers {
		p.Start()
	}

	h := &httpx.Handlers{
		Products:      &catalog.Repo{DB: db},
		Carts:         &cart.Service{Store: &cart.Repo{DB: db}},
		Orders:        &orders.Repo{DB: db},
		Reviews:       &reviews.Repo{DB: db},
		Webhooks:      payment.Verifier{Secret: cfg.StripeWebhookSecret},
		Events:        httpx.Events{Created: pCreated, Completed: pCompleted, Cancelled: pCancelled},
		Redis:         rdb,
		Service:       cfg.ServiceName,
		RootURL:       cfg.RootURL,
		SecureCookies: cfg.Production(),
	}
	if cfg.StripeSecretKey != "" {
		h.Payments = payment.NewStripe(cfg.StripeSecretKey, cfg.ShippingCountries)
	} else {
		log.Printf("STRIPE_SECRET_KEY not set, checkout disabled")
	}

	router := httpx.NewRouter()
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // close inbox -> flush & close writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
