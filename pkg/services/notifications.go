package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tweetapp/pkg/notify"
	"tweetapp/pkg/storage"
	"tweetapp/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/mongo"
)

type NotificationConsumer interface {
	// NotificationConsumer does not expose any rpc methods
}

type notificationConsumerOptions struct {
	mongoOptions
	rabbitMQOptions
	Notify     string `toml:"notify"`
	NumWorkers int    `toml:"num_workers"`
	Region     string `toml:"region"`
}

func (o *notificationConsumerOptions) resolveEnv() {
	o.mongoOptions.resolveEnv()
	o.rabbitMQOptions.resolveEnv()
	utils.EnvString(&o.Notify, "NOTIFY")
	utils.EnvInt(&o.NumWorkers, "NUM_WORKERS")
	utils.EnvString(&o.Region, "REGION")
	if o.Notify == "" {
		o.Notify = NOTIFY_RABBITMQ
	}
	if o.Exchange == "" {
		o.Exchange = notify.DEFAULT_EXCHANGE
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = 1
	}
}

// notificationConsumer reads the tweets exchange and counts notifications
// whose tweet is not in mongodb yet.
type notificationConsumer struct {
	weaver.Implements[NotificationConsumer]
	weaver.WithConfig[notificationConsumerOptions]
	mongoClient *mongo.Client
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func (n *notificationConsumer) Init(ctx context.Context) error {
	logger := n.Logger(ctx)
	opts := *n.Config()
	opts.resolveEnv()

	if opts.Notify != NOTIFY_RABBITMQ {
		logger.Info("notification consumer disabled", "notify", opts.Notify)
		return nil
	}
	if opts.Region == "" {
		region, err := utils.Region(ctx)
		if err != nil {
			logger.Warn("error resolving region", "msg", err.Error())
			region = utils.DEFAULT_REGION
		}
		opts.Region = region
	}

	var err error
	n.mongoClient, err = opts.connect(ctx)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	consumer := notify.NewConsumer(storage.NewMongoTweetStore(n.mongoClient, opts.Database), logger)
	queue := fmt.Sprintf("tweets-%s", opts.Region)

	logger.Info("initializing workers for notification consumer", "region", opts.Region, "nworkers", opts.NumWorkers, "rabbitmq_addr", opts.RabbitMQAddr, "rabbitmq_port", opts.RabbitMQPort)
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n.cancel = cancel
	n.wg.Add(opts.NumWorkers)
	for i := 1; i <= opts.NumWorkers; i++ {
		go func() {
			defer n.wg.Done()
			n.workerThread(workerCtx, consumer, opts, queue)
		}()
	}
	return nil
}

// workerThread consumes until ctx is done, reconnecting to rabbitmq after
// failures.
func (n *notificationConsumer) workerThread(ctx context.Context, consumer *notify.Consumer, opts notificationConsumerOptions, queue string) {
	logger := n.Logger(ctx)
	backoff := time.Second
	for ctx.Err() == nil {
		ch, conn, err := storage.RabbitMQClient(ctx, opts.RabbitMQUsername, opts.RabbitMQPassword, opts.RabbitMQAddr, opts.RabbitMQPort)
		if err == nil {
			backoff = time.Second
			err = consumer.Run(ctx, ch, opts.Exchange, queue)
			ch.Close()
			conn.Close()
		}
		if ctx.Err() != nil {
			return
		}
		logger.Error("error in worker thread", "msg", err.Error(), "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, 30*time.Second)
	}
}

func (n *notificationConsumer) Shutdown(ctx context.Context) error {
	if n.cancel != nil {
		n.cancel()
		n.wg.Wait()
	}
	if n.mongoClient != nil {
		return n.mongoClient.Disconnect(ctx)
	}
	return nil
}
