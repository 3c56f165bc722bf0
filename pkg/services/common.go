package services

import (
	"context"
	"fmt"

	"tweetapp/pkg/storage"
	"tweetapp/pkg/utils"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	STORE_MONGO  = "mongo"
	STORE_MEMORY = "memory"

	NOTIFY_RABBITMQ = "rabbitmq"
	NOTIFY_LOG      = "log"
	NOTIFY_NONE     = "none"

	DEFAULT_DATABASE = "tweetapp"
)

// mongoOptions is embedded in the options of every component that talks to
// mongodb. A non-empty uri wins over address and port.
type mongoOptions struct {
	MongoDBURI  string `toml:"mongodb_uri"`
	MongoDBAddr string `toml:"mongodb_address"`
	MongoDBPort int    `toml:"mongodb_port"`
	Database    string `toml:"database"`
}

func (o *mongoOptions) resolveEnv() {
	utils.EnvString(&o.MongoDBURI, "MONGODB_URI")
	utils.EnvString(&o.MongoDBAddr, "MONGODB_ADDRESS")
	utils.EnvInt(&o.MongoDBPort, "MONGODB_PORT")
	utils.EnvString(&o.Database, "DATABASE")
	if o.Database == "" {
		o.Database = DEFAULT_DATABASE
	}
}

func (o *mongoOptions) connect(ctx context.Context) (*mongo.Client, error) {
	if o.MongoDBURI != "" {
		return storage.MongoDBClientURI(ctx, o.MongoDBURI)
	}
	if o.MongoDBAddr == "" {
		return nil, fmt.Errorf("missing mongodb_address or mongodb_uri")
	}
	return storage.MongoDBClient(ctx, o.MongoDBAddr, o.MongoDBPort)
}

type rabbitMQOptions struct {
	RabbitMQAddr     string `toml:"rabbitmq_address"`
	RabbitMQPort     int    `toml:"rabbitmq_port"`
	RabbitMQUsername string `toml:"rabbitmq_username"`
	RabbitMQPassword string `toml:"rabbitmq_password"`
	Exchange         string `toml:"exchange"`
}

func (o *rabbitMQOptions) resolveEnv() {
	utils.EnvString(&o.RabbitMQAddr, "RABBITMQ_ADDRESS")
	utils.EnvInt(&o.RabbitMQPort, "RABBITMQ_PORT")
	utils.EnvString(&o.RabbitMQUsername, "RABBITMQ_USERNAME")
	utils.EnvString(&o.RabbitMQPassword, "RABBITMQ_PASSWORD")
	utils.EnvString(&o.Exchange, "EXCHANGE")
}
