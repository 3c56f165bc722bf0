package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	sn_metrics "tweetapp/pkg/metrics"
	"tweetapp/pkg/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DEFAULT_EXCHANGE = "tweets"

// Sink is anything that accepts tweet notifications.
type Sink interface {
	Publish(ctx context.Context, event model.Event) error
}

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher writes events to a rabbitmq topic exchange, using the event type
// as routing key.
type Publisher struct {
	mu       sync.Mutex
	ch       amqpPublisher
	exchange string
}

// NewPublisher declares exchange on ch and returns a publisher for it.
func NewPublisher(ch *amqp.Channel, exchange string) (*Publisher, error) {
	err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, event model.Event) error {
	label := sn_metrics.EventLabel{Type: string(event.Type)}
	msgJSON, err := json.Marshal(event)
	if err != nil {
		sn_metrics.FailedNotifications.Get(label).Inc()
		return err
	}

	trace.SpanFromContext(ctx).AddEvent("publishing message to rabbitmq",
		trace.WithAttributes(
			attribute.String("type", string(event.Type)),
			attribute.String("tweet_id", event.Tweet.TweetID),
		))

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.UnixMilli(event.SentAtMs),
		Body:         msgJSON,
	}

	// channels are not safe for concurrent publishing
	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
	p.mu.Unlock()
	if err != nil {
		sn_metrics.FailedNotifications.Get(label).Inc()
		return err
	}
	sn_metrics.PublishedNotifications.Get(label).Inc()
	return nil
}

// LogSink only logs events. It stands in for rabbitmq in local mode.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, event model.Event) error {
	s.Logger.Info("tweet notification", "type", event.Type, "tweet_id", event.Tweet.TweetID,
		"username", event.Tweet.Username, "comments", len(event.Tweet.Comments))
	sn_metrics.PublishedNotifications.Get(sn_metrics.EventLabel{Type: string(event.Type)}).Inc()
	return nil
}
