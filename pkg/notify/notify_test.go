package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tweetapp/pkg/model"
	sn_trace "tweetapp/pkg/trace"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type publishedMsg struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	msgs []publishedMsg
	err  error
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, publishedMsg{exchange: exchange, key: key, msg: msg})
	return nil
}

func testEvent(eventType model.EventType, tweetID string) model.Event {
	return model.Event{
		Type: eventType,
		Tweet: model.Tweet{
			TweetID:   tweetID,
			Username:  "alice",
			TweetText: "hello",
			Comments:  []model.Comment{{Username: "bob", Text: "hi"}},
		},
		SentAtMs: time.Now().UnixMilli(),
	}
}

func TestPublisherRoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: DEFAULT_EXCHANGE}

	require.NoError(t, p.Publish(context.Background(), testEvent(model.EVENT_TWEET_COMMENTED, "t1")))

	require.Len(t, ch.msgs, 1)
	assert.Equal(t, "tweets", ch.msgs[0].exchange)
	assert.Equal(t, "tweet.commented", ch.msgs[0].key)
	assert.Equal(t, "application/json", ch.msgs[0].msg.ContentType)

	var event model.Event
	require.NoError(t, json.Unmarshal(ch.msgs[0].msg.Body, &event))
	assert.Equal(t, "t1", event.Tweet.TweetID)
	assert.Equal(t, "hi", event.Tweet.Comments[0].Text)
}

func TestPublisherReturnsChannelError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := &Publisher{ch: ch, exchange: DEFAULT_EXCHANGE}
	err := p.Publish(context.Background(), testEvent(model.EVENT_TWEET_CREATED, "t1"))
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

type blockingSink struct {
	mu      sync.Mutex
	release chan struct{}
	events  []model.Event
	ctxErrs []error
	err     error
}

func (s *blockingSink) Publish(ctx context.Context, event model.Event) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.err
}

func TestDispatcherDeliversAfterRequestContextIsCanceled(t *testing.T) {
	sink := &blockingSink{}
	d := NewDispatcher(sink, discardLogger(), 8, 2, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Publish(ctx, testEvent(model.EVENT_TWEET_CREATED, "t1")))
	require.NoError(t, d.Publish(ctx, testEvent(model.EVENT_TWEET_CREATED, "t2")))
	cancel()
	d.Close()

	require.Len(t, sink.events, 2)
	for _, err := range sink.ctxErrs {
		assert.NoError(t, err)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(sink, discardLogger(), 1, 1, 0)

	// the worker takes the first event and blocks, the second fills the queue
	require.NoError(t, d.Publish(context.Background(), testEvent(model.EVENT_TWEET_CREATED, "t1")))
	assert.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Publish(context.Background(), testEvent(model.EVENT_TWEET_CREATED, "t2")))

	err := d.Publish(context.Background(), testEvent(model.EVENT_TWEET_CREATED, "t3"))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(sink.release)
	d.Close()
	assert.Len(t, sink.events, 2)

	err = d.Publish(context.Background(), testEvent(model.EVENT_TWEET_CREATED, "t4"))
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	d.Close()
}

func TestDispatcherSurvivesSinkErrors(t *testing.T) {
	sink := &blockingSink{err: errors.New("broker unreachable")}
	d := NewDispatcher(sink, discardLogger(), 4, 1, time.Second)
	require.NoError(t, d.Publish(context.Background(), testEvent(model.EVENT_TWEET_CREATED, "t1")))
	require.NoError(t, d.Publish(context.Background(), testEvent(model.EVENT_TWEET_COMMENTED, "t1")))
	d.Close()
	assert.Len(t, sink.events, 2)
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{Logger: discardLogger()}.Publish(context.Background(), testEvent(model.EVENT_TWEET_CREATED, "t1")))
}

type setLookup struct {
	ids map[string]bool
	err error
}

func (l setLookup) ExistsByID(ctx context.Context, tweetID string) (bool, error) {
	return l.ids[tweetID], l.err
}

func TestConsumerHandle(t *testing.T) {
	c := NewConsumer(setLookup{ids: map[string]bool{"t1": true}}, discardLogger())

	body, err := json.Marshal(testEvent(model.EVENT_TWEET_CREATED, "t1"))
	require.NoError(t, err)
	found, err := c.Handle(context.Background(), body)
	require.NoError(t, err)
	assert.True(t, found)

	event := testEvent(model.EVENT_TWEET_COMMENTED, "t2")
	event.SpanContext = sn_trace.FromContext(context.Background())
	body, err = json.Marshal(event)
	require.NoError(t, err)
	found, err = c.Handle(context.Background(), body)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConsumerHandleErrors(t *testing.T) {
	c := NewConsumer(setLookup{err: errors.New("mongo down")}, discardLogger())

	_, err := c.Handle(context.Background(), []byte("{not json"))
	assert.Error(t, err)

	body, _ := json.Marshal(testEvent(model.EVENT_TWEET_CREATED, "t1"))
	_, err = c.Handle(context.Background(), body)
	assert.Error(t, err)
}
