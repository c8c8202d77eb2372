package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cother-2020/ProjectM/internal/config"
	"github.com/Cother-2020/ProjectM/internal/httpx"
	kafkax "github.com/Cother-2020/ProjectM/internal/kafka"
	"github.com/Cother-2020/ProjectM/internal/metrics"
	"github.com/Cother-2020/ProjectM/internal/orders"
	"github.com/Cother-2020/ProjectM/internal/postgres"
	"github.com/Cother-2020/ProjectM/internal/redisx"
	"github.com/Cother-2020/ProjectM/internal/ws"
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
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pUpdated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderUpdated, 1024)
	pUpdated.Start(ctx)

	// Push channel
	hub := ws.NewHub()
	defer hub.Close()

	// Service wiring
	repo := &orders.Repo{DB: db}
	pub := &orders.Publisher{
		Hub:         hub,
		Created:     pCreated,
		Updated:     pUpdated,
		Redis:       rdb,
		ServiceName: cfg.ServiceName,
	}
	svc := orders.NewService(repo, pub)

	srvMetrics := metrics.NewServerMetrics("api")
	router := httpx.NewRouter(srvMetrics)
	(&httpx.OrdersHandler{Service: svc, Redis: rdb}).Register(router)
	(&httpx.CatalogHandler{Repo: repo}).Register(router)
	(&httpx.StatsHandler{Service: svc}).Register(router)
	router.Get("/ws", hub.ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	hub.Close()
	pCreated.Close() // close inbox -> flush & close writer
	pUpdated.Close()
	pCreated.WaitClosed()
	pUpdated.WaitClosed()
}
