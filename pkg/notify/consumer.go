package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	sn_metrics "tweetapp/pkg/metrics"
	"tweetapp/pkg/model"
	sn_trace "tweetapp/pkg/trace"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Lookup tells whether a tweet is in the store.
type Lookup interface {
	ExistsByID(ctx context.Context, tweetID string) (bool, error)
}

// Consumer reads tweet notifications and checks each one against the store.
// Notifications are published before the tweet is written, so a consumer
// can observe an event for a tweet that is not stored yet; these are
// counted as inconsistencies.
type Consumer struct {
	lookup Lookup
	logger *slog.Logger
}

func NewConsumer(lookup Lookup, logger *slog.Logger) *Consumer {
	return &Consumer{lookup: lookup, logger: logger}
}

// Handle processes one message body and reports whether its tweet was found.
func (c *Consumer) Handle(ctx context.Context, body []byte) (bool, error) {
	var event model.Event
	err := json.Unmarshal(body, &event)
	if err != nil {
		c.logger.Error("error parsing json message", "msg", err.Error())
		return false, err
	}

	ctx = sn_trace.WithRemote(ctx, event.SpanContext)
	sn_metrics.ReceivedNotifications.Get(sn_metrics.EventLabel{Type: string(event.Type)}).Inc()
	if event.SentAtMs > 0 {
		sn_metrics.NotificationLatencyMs.Put(float64(time.Now().UnixMilli() - event.SentAtMs))
	}

	c.logger.Debug("received rabbitmq message", "type", event.Type, "tweet_id", event.Tweet.TweetID)

	trace.SpanFromContext(ctx).AddEvent("reading rabbitmq message",
		trace.WithAttributes(
			attribute.Int64("queue_end_ms", time.Now().UnixMilli()),
		))

	exists, err := c.lookup.ExistsByID(ctx, event.Tweet.TweetID)
	if err != nil {
		c.logger.Error("error reading tweet from store", "tweet_id", event.Tweet.TweetID, "msg", err.Error())
		return false, err
	}
	if !exists {
		c.logger.Debug("inconsistency!", "type", event.Type, "tweet_id", event.Tweet.TweetID)
		sn_metrics.Inconsistencies.Inc()
	}
	return exists, nil
}

// Run binds queue to exchange on ch and handles deliveries until ctx is done
// or the channel is closed.
func (c *Consumer) Run(ctx context.Context, ch *amqp.Channel, exchange string, queue string) error {
	err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		c.logger.Error("error declaring exchange for rabbitmq", "msg", err.Error())
		return err
	}
	_, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		c.logger.Error("error declaring queue for rabbitmq", "msg", err.Error())
		return err
	}
	err = ch.QueueBind(queue, "tweet.#", exchange, false, nil)
	if err != nil {
		c.logger.Error("error binding queue for rabbitmq", "msg", err.Error())
		return err
	}
	msgs, err := ch.Consume(queue, "", true, false, false, false, nil)
	if err != nil {
		c.logger.Error("error consuming queue", "msg", err.Error())
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			if _, err := c.Handle(ctx, msg.Body); err != nil {
				c.logger.Warn("error in worker thread", "msg", err.Error())
			}
		}
	}
}
