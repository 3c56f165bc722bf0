package services

import (
	"context"
	"fmt"
	"time"

	"tweetapp/pkg/model"
	"tweetapp/pkg/notify"
	"tweetapp/pkg/storage"
	"tweetapp/pkg/tweets"
	"tweetapp/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
)

type TweetService interface {
	ListAll(ctx context.Context, viewer string) ([]model.TweetResponse, error)
	ListByAuthor(ctx context.Context, author string, viewer string) ([]model.TweetResponse, error)
	Post(ctx context.Context, author string, tweet model.Tweet) (model.Tweet, error)
	Get(ctx context.Context, tweetID string, viewer string) (model.TweetResponse, error)
	Update(ctx context.Context, author string, tweetID string, text string) (model.Tweet, error)
	Delete(ctx context.Context, tweetID string) (bool, error)
	Like(ctx context.Context, username string, tweetID string) (model.Tweet, error)
	Dislike(ctx context.Context, username string, tweetID string) (model.Tweet, error)
	Reply(ctx context.Context, username string, tweetID string, text string) (model.Tweet, error)
}

type tweetServiceOptions struct {
	mongoOptions
	rabbitMQOptions
	Store             string `toml:"store"`
	Notify            string `toml:"notify"`
	RedisAddr         string `toml:"redis_address"`
	RedisPort         int    `toml:"redis_port"`
	RedisPassword     string `toml:"redis_password"`
	CacheTTLSeconds   int    `toml:"cache_ttl_seconds"`
	DedupeLikes       bool   `toml:"dedupe_likes"`
	DispatchQueueSize int    `toml:"dispatch_queue_size"`
	DispatchWorkers   int    `toml:"dispatch_workers"`
	PublishTimeoutMs  int    `toml:"publish_timeout_ms"`
}

func (o *tweetServiceOptions) resolveEnv() {
	o.mongoOptions.resolveEnv()
	o.rabbitMQOptions.resolveEnv()
	utils.EnvString(&o.Store, "STORE")
	utils.EnvString(&o.Notify, "NOTIFY")
	utils.EnvString(&o.RedisAddr, "REDIS_ADDRESS")
	utils.EnvInt(&o.RedisPort, "REDIS_PORT")
	utils.EnvString(&o.RedisPassword, "REDIS_PASSWORD")
	utils.EnvInt(&o.CacheTTLSeconds, "CACHE_TTL_SECONDS")
	utils.EnvBool(&o.DedupeLikes, "DEDUPE_LIKES")
	utils.EnvInt(&o.DispatchQueueSize, "DISPATCH_QUEUE_SIZE")
	utils.EnvInt(&o.DispatchWorkers, "DISPATCH_WORKERS")
	utils.EnvInt(&o.PublishTimeoutMs, "PUBLISH_TIMEOUT_MS")
	if o.Store == "" {
		o.Store = STORE_MONGO
	}
	if o.Notify == "" {
		o.Notify = NOTIFY_RABBITMQ
	}
	if o.Exchange == "" {
		o.Exchange = notify.DEFAULT_EXCHANGE
	}
	if o.DispatchQueueSize <= 0 {
		o.DispatchQueueSize = 1024
	}
	if o.DispatchWorkers <= 0 {
		o.DispatchWorkers = 4
	}
	if o.PublishTimeoutMs <= 0 {
		o.PublishTimeoutMs = 2000
	}
}

type tweetService struct {
	weaver.Implements[TweetService]
	weaver.WithConfig[tweetServiceOptions]
	engine      *tweets.Engine
	dispatcher  *notify.Dispatcher
	mongoClient *mongo.Client
	amqpConn    *amqp.Connection
}

func (t *tweetService) Init(ctx context.Context) error {
	logger := t.Logger(ctx)
	opts := *t.Config()
	opts.resolveEnv()
	logger.Info("initializing tweet service", "store", opts.Store, "notify", opts.Notify, "dedupe_likes", opts.DedupeLikes)

	store, err := t.openStore(ctx, opts)
	if err != nil {
		logger.Error("error opening tweet store", "msg", err.Error())
		return err
	}
	sink, err := t.openSink(ctx, opts)
	if err != nil {
		logger.Error("error opening notification sink", "msg", err.Error())
		return err
	}

	t.engine = tweets.NewEngine(store, sink, logger, tweets.Options{
		DedupeLikes: opts.DedupeLikes,
	})
	return nil
}

func (t *tweetService) openStore(ctx context.Context, opts tweetServiceOptions) (tweets.Store, error) {
	switch opts.Store {
	case STORE_MEMORY:
		return storage.NewMemoryTweetStore(), nil
	case STORE_MONGO:
		var err error
		t.mongoClient, err = opts.connect(ctx)
		if err != nil {
			return nil, err
		}
		mongoStore := storage.NewMongoTweetStore(t.mongoClient, opts.Database)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		if opts.RedisAddr == "" {
			return mongoStore, nil
		}
		ttl := time.Duration(opts.CacheTTLSeconds) * time.Second
		redisClient := storage.RedisClient(opts.RedisAddr, opts.RedisPort, opts.RedisPassword)
		return storage.NewCachedTweetStore(mongoStore, redisClient, ttl, t.Logger(ctx)), nil
	default:
		return nil, fmt.Errorf("unknown tweet store %q", opts.Store)
	}
}

// openSink returns nil when notifications are disabled.
func (t *tweetService) openSink(ctx context.Context, opts tweetServiceOptions) (tweets.Sink, error) {
	var sink notify.Sink
	switch opts.Notify {
	case NOTIFY_NONE:
		return nil, nil
	case NOTIFY_LOG:
		sink = notify.LogSink{Logger: t.Logger(ctx)}
	case NOTIFY_RABBITMQ:
		ch, conn, err := storage.RabbitMQClient(ctx, opts.RabbitMQUsername, opts.RabbitMQPassword, opts.RabbitMQAddr, opts.RabbitMQPort)
		if err != nil {
			return nil, err
		}
		publisher, err := notify.NewPublisher(ch, opts.Exchange)
		if err != nil {
			conn.Close()
			return nil, err
		}
		t.amqpConn = conn
		sink = publisher
	default:
		return nil, fmt.Errorf("unknown notification sink %q", opts.Notify)
	}
	timeout := time.Duration(opts.PublishTimeoutMs) * time.Millisecond
	t.dispatcher = notify.NewDispatcher(sink, t.Logger(ctx), opts.DispatchQueueSize, opts.DispatchWorkers, timeout)
	return t.dispatcher, nil
}

func (t *tweetService) Shutdown(ctx context.Context) error {
	if t.dispatcher != nil {
		t.dispatcher.Close()
	}
	if t.amqpConn != nil {
		t.amqpConn.Close()
	}
	if t.mongoClient != nil {
		return t.mongoClient.Disconnect(ctx)
	}
	return nil
}

func (t *tweetService) ListAll(ctx context.Context, viewer string) ([]model.TweetResponse, error) {
	return t.engine.ListAll(ctx, viewer)
}

func (t *tweetService) ListByAuthor(ctx context.Context, author string, viewer string) ([]model.TweetResponse, error) {
	return t.engine.ListByAuthor(ctx, author, viewer)
}

func (t *tweetService) Post(ctx context.Context, author string, tweet model.Tweet) (model.Tweet, error) {
	t.Logger(ctx).Debug("entering Post", "author", author)
	return t.engine.Post(ctx, author, tweet)
}

func (t *tweetService) Get(ctx context.Context, tweetID string, viewer string) (model.TweetResponse, error) {
	return t.engine.Get(ctx, tweetID, viewer)
}

func (t *tweetService) Update(ctx context.Context, author string, tweetID string, text string) (model.Tweet, error) {
	return t.engine.Update(ctx, author, tweetID, text)
}

func (t *tweetService) Delete(ctx context.Context, tweetID string) (bool, error) {
	return t.engine.Delete(ctx, tweetID)
}

func (t *tweetService) Like(ctx context.Context, username string, tweetID string) (model.Tweet, error) {
	t.Logger(ctx).Debug("entering Like", "username", username, "tweet_id", tweetID)
	return t.engine.Like(ctx, username, tweetID)
}

func (t *tweetService) Dislike(ctx context.Context, username string, tweetID string) (model.Tweet, error) {
	t.Logger(ctx).Debug("entering Dislike", "username", username, "tweet_id", tweetID)
	return t.engine.Dislike(ctx, username, tweetID)
}

func (t *tweetService) Reply(ctx context.Context, username string, tweetID string, text string) (model.Tweet, error) {
	return t.engine.Reply(ctx, username, tweetID, text)
}
