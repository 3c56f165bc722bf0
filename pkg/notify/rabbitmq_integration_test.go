//go:build integration

package notify

import (
	"context"
	"testing"
	"time"

	"tweetapp/pkg/model"
	"tweetapp/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type recordingLookup struct {
	seen chan string
}

func (l recordingLookup) ExistsByID(ctx context.Context, tweetID string) (bool, error) {
	l.seen <- tweetID
	return false, nil
}

func TestPublishAndConsume(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-management",
			ExposedPorts: []string{"5672/tcp"},
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": "admin",
				"RABBITMQ_DEFAULT_PASS": "admin",
			},
			WaitingFor: wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	consumerCh, consumerConn, err := storage.RabbitMQClient(ctx, "admin", "admin", host, port.Int())
	require.NoError(t, err)
	defer consumerConn.Close()

	lookup := recordingLookup{seen: make(chan string, 4)}
	consumer := NewConsumer(lookup, discardLogger())
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go consumer.Run(runCtx, consumerCh, DEFAULT_EXCHANGE, "tweets-test")

	publisherCh, publisherConn, err := storage.RabbitMQClient(ctx, "admin", "admin", host, port.Int())
	require.NoError(t, err)
	defer publisherConn.Close()
	publisher, err := NewPublisher(publisherCh, DEFAULT_EXCHANGE)
	require.NoError(t, err)

	// the queue is declared by the consumer, so publish until it is bound
	deadline := time.After(30 * time.Second)
	for {
		require.NoError(t, publisher.Publish(ctx, testEvent(model.EVENT_TWEET_CREATED, "t1")))
		select {
		case id := <-lookup.seen:
			assert.Equal(t, "t1", id)
			return
		case <-time.After(500 * time.Millisecond):
		case <-deadline:
			t.Fatal("no notification consumed")
		}
	}
}
