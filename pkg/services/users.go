package services

import (
	"context"
	"fmt"

	"tweetapp/pkg/model"
	"tweetapp/pkg/storage"
	"tweetapp/pkg/users"
	"tweetapp/pkg/utils"

	"github.com/ServiceWeaver/weaver"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserService interface {
	Register(ctx context.Context, user model.User) (model.User, error)
	Login(ctx context.Context, username string, password string) (model.User, error)
	Profile(ctx context.Context, username string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SearchUsers(ctx context.Context, query string) ([]model.User, error)
	ChangePassword(ctx context.Context, username string, newPassword string, contact string) (model.User, error)
}

type userServiceOptions struct {
	mongoOptions
	Store             string `toml:"store"`
	MemCachedAddr     string `toml:"memcached_address"`
	MemCachedPort     int    `toml:"memcached_port"`
	ProfileTTLSeconds int    `toml:"profile_ttl_seconds"`
}

func (o *userServiceOptions) resolveEnv() {
	o.mongoOptions.resolveEnv()
	utils.EnvString(&o.Store, "STORE")
	utils.EnvString(&o.MemCachedAddr, "MEMCACHED_ADDRESS")
	utils.EnvInt(&o.MemCachedPort, "MEMCACHED_PORT")
	utils.EnvInt(&o.ProfileTTLSeconds, "PROFILE_TTL_SECONDS")
	if o.Store == "" {
		o.Store = STORE_MONGO
	}
}

type userService struct {
	weaver.Implements[UserService]
	weaver.WithConfig[userServiceOptions]
	directory   *users.Directory
	mongoClient *mongo.Client
}

func (u *userService) Init(ctx context.Context) error {
	logger := u.Logger(ctx)
	opts := *u.Config()
	opts.resolveEnv()
	logger.Info("initializing user service", "store", opts.Store, "memcached_addr", opts.MemCachedAddr)

	var store users.Store
	switch opts.Store {
	case STORE_MEMORY:
		store = storage.NewMemoryUserStore()
	case STORE_MONGO:
		var err error
		u.mongoClient, err = opts.connect(ctx)
		if err != nil {
			logger.Error(err.Error())
			return err
		}
		store = storage.NewMongoUserStore(u.mongoClient, opts.Database)
	default:
		return fmt.Errorf("unknown user store %q", opts.Store)
	}

	var cache users.Cache
	if opts.MemCachedAddr != "" {
		client := storage.MemCachedClient(opts.MemCachedAddr, opts.MemCachedPort)
		cache = storage.NewMemcachedUserCache(client, int32(opts.ProfileTTLSeconds))
	}
	u.directory = users.NewDirectory(store, cache, logger)
	return nil
}

func (u *userService) Shutdown(ctx context.Context) error {
	if u.mongoClient != nil {
		return u.mongoClient.Disconnect(ctx)
	}
	return nil
}

func (u *userService) Register(ctx context.Context, user model.User) (model.User, error) {
	return u.directory.Register(ctx, user)
}

func (u *userService) Login(ctx context.Context, username string, password string) (model.User, error) {
	u.Logger(ctx).Debug("entering Login", "username", username)
	return u.directory.Login(ctx, username, password)
}

func (u *userService) Profile(ctx context.Context, username string) (model.User, error) {
	return u.directory.Profile(ctx, username)
}

func (u *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return u.directory.ListUsers(ctx)
}

func (u *userService) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	return u.directory.SearchUsers(ctx, query)
}

func (u *userService) ChangePassword(ctx context.Context, username string, newPassword string, contact string) (model.User, error) {
	return u.directory.ChangePassword(ctx, username, newPassword, contact)
}
