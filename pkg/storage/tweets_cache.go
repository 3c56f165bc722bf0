package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tweetapp/pkg/model"

	"github.com/redis/go-redis/v9"
)

type TweetStore interface {
	Insert(ctx context.Context, tweet model.Tweet) (model.Tweet, error)
	FindByID(ctx context.Context, tweetID string) (model.Tweet, bool, error)
	FindAll(ctx context.Context) ([]model.Tweet, error)
	FindByUsername(ctx context.Context, username string) ([]model.Tweet, error)
	Save(ctx context.Context, tweet model.Tweet) (model.Tweet, error)
	ExistsByID(ctx context.Context, tweetID string) (bool, error)
	DeleteByID(ctx context.Context, tweetID string) error
}

// CachedTweetStore serves FindByID from redis and falls back to the wrapped
// store on a miss. Save and DeleteByID write the wrapped store and then evict
// the cached copy and bump the tweet's version key. A miss only fills the
// cache when the version it saw before reading the store is still current, so
// a read that overlaps a write never caches the state the write replaced.
// Redis failures are logged and never fail a call.
type CachedTweetStore struct {
	store       TweetStore
	redisClient *redis.Client
	ttl         time.Duration
	logger      *slog.Logger
}

// versions must outlive any read that observed them
const minVersionTTL = time.Hour

// fillScript sets KEYS[2] to ARGV[2] only if the version in KEYS[1] still
// equals ARGV[1]. ARGV[3] is the ttl in milliseconds, 0 for none.
var fillScript = redis.NewScript(`
local version = redis.call("GET", KEYS[1]) or "0"
if version ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

func NewCachedTweetStore(store TweetStore, redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedTweetStore {
	return &CachedTweetStore{
		store:       store,
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

func tweetKey(tweetID string) string {
	return "tweet:" + tweetID
}

func versionKey(tweetID string) string {
	return "tweet:" + tweetID + ":version"
}

func (c *CachedTweetStore) FindByID(ctx context.Context, tweetID string) (model.Tweet, bool, error) {
	result, err := c.redisClient.Get(ctx, tweetKey(tweetID)).Bytes()
	if err == nil {
		var tweet model.Tweet
		if err := json.Unmarshal(result, &tweet); err == nil {
			return tweet, true, nil
		}
		c.logger.Warn("error parsing tweet from redis", "tweet_id", tweetID, "msg", err.Error())
	} else if err != redis.Nil {
		c.logger.Warn("error reading tweet from redis", "tweet_id", tweetID, "msg", err.Error())
	}

	// the version is read before the store so that a write landing in
	// between makes the fill below a no-op
	version, versionErr := c.version(ctx, tweetID)

	tweet, found, err := c.store.FindByID(ctx, tweetID)
	if err != nil || !found {
		return tweet, found, err
	}
	if versionErr == nil {
		c.fill(ctx, tweet, version)
	}
	return tweet, true, nil
}

func (c *CachedTweetStore) Insert(ctx context.Context, tweet model.Tweet) (model.Tweet, error) {
	stored, err := c.store.Insert(ctx, tweet)
	if err != nil {
		return stored, err
	}
	c.set(ctx, stored)
	return stored, nil
}

func (c *CachedTweetStore) Save(ctx context.Context, tweet model.Tweet) (model.Tweet, error) {
	saved, err := c.store.Save(ctx, tweet)
	// a failed save may still have reached the store
	c.invalidate(ctx, tweet.TweetID)
	return saved, err
}

func (c *CachedTweetStore) DeleteByID(ctx context.Context, tweetID string) error {
	err := c.store.DeleteByID(ctx, tweetID)
	c.invalidate(ctx, tweetID)
	return err
}

func (c *CachedTweetStore) FindAll(ctx context.Context) ([]model.Tweet, error) {
	return c.store.FindAll(ctx)
}

func (c *CachedTweetStore) FindByUsername(ctx context.Context, username string) ([]model.Tweet, error) {
	return c.store.FindByUsername(ctx, username)
}

// ExistsByID always asks the wrapped store, which is authoritative.
func (c *CachedTweetStore) ExistsByID(ctx context.Context, tweetID string) (bool, error) {
	return c.store.ExistsByID(ctx, tweetID)
}

func (c *CachedTweetStore) version(ctx context.Context, tweetID string) (string, error) {
	version, err := c.redisClient.Get(ctx, versionKey(tweetID)).Result()
	if err == redis.Nil {
		return "0", nil
	}
	if err != nil {
		c.logger.Warn("error reading tweet version from redis", "tweet_id", tweetID, "msg", err.Error())
		return "", err
	}
	return version, nil
}

func (c *CachedTweetStore) fill(ctx context.Context, tweet model.Tweet, version string) {
	tweetJSON, err := json.Marshal(tweet)
	if err != nil {
		c.logger.Error("error converting tweet to json", "tweet_id", tweet.TweetID, "msg", err.Error())
		return
	}
	keys := []string{versionKey(tweet.TweetID), tweetKey(tweet.TweetID)}
	filled, err := fillScript.Run(ctx, c.redisClient, keys, version, tweetJSON, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("error writing tweet to redis", "tweet_id", tweet.TweetID, "msg", err.Error())
		return
	}
	if filled == 0 {
		c.logger.Debug("tweet changed while reading, not caching", "tweet_id", tweet.TweetID)
	}
}

func (c *CachedTweetStore) set(ctx context.Context, tweet model.Tweet) {
	tweetJSON, err := json.Marshal(tweet)
	if err != nil {
		c.logger.Error("error converting tweet to json", "tweet_id", tweet.TweetID, "msg", err.Error())
		return
	}
	if err := c.redisClient.Set(ctx, tweetKey(tweet.TweetID), tweetJSON, c.ttl).Err(); err != nil {
		c.logger.Warn("error writing tweet to redis", "tweet_id", tweet.TweetID, "msg", err.Error())
	}
}

// invalidate evicts the cached tweet and bumps its version in one transaction.
func (c *CachedTweetStore) invalidate(ctx context.Context, tweetID string) {
	_, err := c.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(tweetID))
		pipe.Expire(ctx, versionKey(tweetID), max(minVersionTTL, 2*c.ttl))
		pipe.Del(ctx, tweetKey(tweetID))
		return nil
	})
	if err != nil {
		c.logger.Warn("error evicting tweet from redis", "tweet_id", tweetID, "msg", err.Error())
	}
}
