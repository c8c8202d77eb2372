package orders

import (
	"context"
	"fmt"
	"log"
	"time"

	kafkax "github.com/Cother-2020/ProjectM/internal/kafka"
	"github.com/Cother-2020/ProjectM/internal/redisx"
	"github.com/Cother-2020/ProjectM/internal/ws"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher fans a committed order out to every delivery surface: the websocket
// hub for connected viewers, Kafka for back-office consumers, and the Redis
// snapshot cache backing the tracking poll fast path. Every leg is best-effort;
// the mutation is durable before Publisher ever sees the order.
type Publisher struct {
	Hub         *ws.Hub
	Created     *kafkax.Producer // orders.created
	Updated     *kafkax.Producer // orders.updated
	Redis       *redis.Client
	ServiceName string
}

func (p *Publisher) OrderNew(o *Order)    { p.publish(EventOrderNew, p.Created, o) }
func (p *Publisher) OrderUpdate(o *Order) { p.publish(EventOrderUpdate, p.Updated, o) }

func (p *Publisher) publish(event string, prod *kafkax.Producer, o *Order) {
	if p.Hub != nil {
		p.Hub.Broadcast(event, o)
	}
	if p.Redis != nil {
		// Invalidate rather than write: a SET here could race another
		// transition and pin a pre-transition snapshot for the whole TTL.
		// The read path repopulates from the database.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		key := fmt.Sprintf(redisx.KeyOrder, o.ID)
		if err := p.Redis.Del(ctx, key).Err(); err != nil {
			log.Printf("order cache invalidate: %v", err)
		}
		cancel()
	}
	if prod != nil {
		env := Envelope{
			EventID:       uuid.NewString(),
			EventType:     event,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      p.ServiceName,
			CorrelationID: fmt.Sprintf("%d", o.ID),
			Payload:       kafkax.MustMarshal(o),
		}
		prod.Publish(PartitionKey(o.ID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(event)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}
