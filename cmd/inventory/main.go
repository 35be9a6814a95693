package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ariefcatur/go-jewelry-storefront/internal/config"
	"github.com/ariefcatur/go-jewelry-storefront/internal/inventory"
	kafkax "github.com/ariefcatur/go-jewelry-storefront/internal/kafka"
	"github.com/ariefcatur/go-jewelry-storefront/internal/orders"
	"github.com/ariefcatur/go-jewelry-storefront/internal/postgres"
	"github.com/ariefcatur/go-jewelry-storefront/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: reserved & rejected go to separate topics
	pOK := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockReserved, 1024)
	pOK.Start()
	pRJ := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockRejected, 1024)
	pRJ.Start()

	svc := &inventory.Service{
		Repo:           &orders.ReservationRepo{DB: db},
		Redis:          rdb,
		ProducerOK:     pOK,
		ProducerReject: pRJ,
		ServiceName:    cfg.ServiceName + "-inventory",
	}

	consumers := []struct {
		topic   string
		handler kafkax.Handler
	}{
		{orders.TopicOrderCreated, svc.HandleOrderCreated},
		{orders.TopicOrderCancelled, svc.HandleOrderCancelled},
	}

	var wg sync.WaitGroup
	for _, c := range consumers {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, c.topic, cfg.InventoryWorkers)
		wg.Add(1)
		go func(topic string, h kafkax.Handler) {
			defer wg.Done()
			log.Printf("inventory consumer started: group=%s topic=%s workers=%d", cfg.InventoryGroup, topic, cfg.InventoryWorkers)
			if err := cons.Start(ctx, h); err != nil {
				log.Printf("consumer %s exit: %v", topic, err)
				cancel()
			}
		}(c.topic, c.handler)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	wg.Wait()
	pOK.Close()
	pRJ.Close()
	pOK.WaitClosed()
	pRJ.WaitClosed()
}
