// Package publish delivers validation outcomes to interested subscribers
// over an opaque pub/sub channel. Delivery is best-effort: a slow or absent
// subscriber must never block or fail the validation path.
package publish

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Vishal-43/smart-attendece-system/internal/metrics"
)

// Channel carries validation outcome events. The real-time notification
// layer subscribes here.
const Channel = "attendance-validated"

// Publisher is the one-way outbound port for validation results.
type Publisher interface {
	Publish(studentID string, valid bool)
}

type event struct {
	EventID     string `json:"eventId"`
	StudentID   string `json:"studentId"`
	IsValid     bool   `json:"isValid"`
	PublishedAt int64  `json:"publishedAt"`
}

type RedisPublisher struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisPublisher(client *redis.Client, timeout time.Duration) *RedisPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisPublisher{client: client, timeout: timeout}
}

// Publish fires the event from its own goroutine with its own deadline so a
// stalled broker cannot hold up the request that produced the result.
// Failures are logged and counted, never returned.
func (p *RedisPublisher) Publish(studentID string, valid bool) {
	payload, err := json.Marshal(event{
		EventID:     uuid.NewString(),
		StudentID:   studentID,
		IsValid:     valid,
		PublishedAt: time.Now().UTC().Unix(),
	})
	if err != nil {
		metrics.PublishFailuresTotal.Inc()
		log.Printf("validation publish marshal error: %v", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.client.Publish(ctx, Channel, payload).Err(); err != nil {
			metrics.PublishFailuresTotal.Inc()
			log.Printf("validation publish error: %v", err)
		}
	}()
}
