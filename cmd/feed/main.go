// feed consumes the order event stream and turns it into back-office
// notification logs (kitchen printers, ops dashboards tail these). It is a
// separate process so a stalled consumer never touches API latency.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Cother-2020/ProjectM/internal/config"
	kafkax "github.com/Cother-2020/ProjectM/internal/kafka"
	"github.com/Cother-2020/ProjectM/internal/orders"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group := getenv("FEED_GROUP", "order-feed")
	workers := mustAtoi(os.Getenv("FEED_WORKERS"), "4")
	topics := []string{orders.TopicOrderCreated, orders.TopicOrderUpdated}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topics, workers)

	go func() {
		log.Printf("feed consumer started: group=%s topics=%v workers=%d", group, topics, workers)
		if err := cons.Start(ctx, handle); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	o, err := kafkax.UnwrapPayload[orders.Order](env.Payload)
	if err != nil {
		return err
	}

	switch env.EventType {
	case orders.EventOrderNew:
		log.Printf("new order #%d: %d item(s), total %s", o.ID, len(o.Items), o.TotalAmount.StringFixed(2))
	case orders.EventOrderUpdate:
		if o.Status == orders.StatusCanceled && o.CancelReason != nil {
			log.Printf("order #%d canceled: %s", o.ID, *o.CancelReason)
		} else {
			log.Printf("order #%d -> %s", o.ID, o.Status)
		}
	default:
		// unknown event versions pass through silently
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
