//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tweetapp/pkg/model"

	"github.com/docker/go-connections/nat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer starts image and returns the host and mapped port of port.
func startContainer(t *testing.T, image string, port string, waitFor wait.Strategy) (string, int) {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{port},
			WaitingFor:   waitFor,
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start %s", image)
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host, mapped.Int()
}

func TestMongoTweetStore(t *testing.T) {
	ctx := context.Background()
	host, port := startContainer(t, "mongo:7", "27017/tcp",
		wait.ForLog("Waiting for connections").WithStartupTimeout(60*time.Second))

	client, err := MongoDBClient(ctx, host, port)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	s := NewMongoTweetStore(client, "tweetapp_test")
	require.NoError(t, s.EnsureIndexes(ctx))

	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err = s.Insert(ctx, model.Tweet{TweetID: "t1", Username: "alice", TweetText: "hi", TweetDate: date, Likes: []string{}, Comments: []model.Comment{}})
	require.NoError(t, err)
	_, err = s.Insert(ctx, model.Tweet{TweetID: "t2", Username: "bob", TweetText: "yo", Likes: []string{}, Comments: []model.Comment{}})
	require.NoError(t, err)

	found, ok, err := s.FindByID(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", found.TweetText)
	assert.True(t, date.Equal(found.TweetDate))

	found.Likes = append(found.Likes, "bob", "bob")
	found.Comments = append(found.Comments, model.Comment{Username: "bob", Text: "nice"})
	_, err = s.Save(ctx, found)
	require.NoError(t, err)
	found, _, _ = s.FindByID(ctx, "t1")
	assert.Equal(t, []string{"bob", "bob"}, found.Likes)
	assert.Equal(t, "nice", found.Comments[0].Text)

	byAlice, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, byAlice, 1)
	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeleteByID(ctx, "t1"))
	exists, err := s.ExistsByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, exists)
	_, ok, err = s.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMongoUserStore(t *testing.T) {
	ctx := context.Background()
	host, port := startContainer(t, "mongo:7", "27017/tcp",
		wait.ForLog("Waiting for connections").WithStartupTimeout(60*time.Second))

	client, err := MongoDBClient(ctx, host, port)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	s := NewMongoUserStore(client, "tweetapp_test")
	require.NoError(t, s.Insert(ctx, model.User{Username: "alice", Password: "rabbit"}))
	assert.Error(t, s.Insert(ctx, model.User{Username: "alice"}))

	user, ok, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rabbit", user.Password)

	user.Password = "queen"
	require.NoError(t, s.Save(ctx, user))
	user, _, _ = s.FindByUsername(ctx, "alice")
	assert.Equal(t, "queen", user.Password)

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCachedTweetStore(t *testing.T) {
	ctx := context.Background()
	host, port := startContainer(t, "redis:7", "6379/tcp",
		wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second))

	redisClient := RedisClient(host, port, "")
	defer redisClient.Close()

	backing := NewMemoryTweetStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewCachedTweetStore(backing, redisClient, time.Minute, logger)

	_, err := s.Insert(ctx, model.Tweet{TweetID: "t1", Username: "alice", TweetText: "hi"})
	require.NoError(t, err)

	cached, err := redisClient.Exists(ctx, tweetKey("t1")).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, cached)

	// the cached copy is served even when the backing store changed underneath
	_, err = backing.Save(ctx, model.Tweet{TweetID: "t1", Username: "alice", TweetText: "changed"})
	require.NoError(t, err)
	found, ok, err := s.FindByID(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", found.TweetText)

	_, err = s.Save(ctx, model.Tweet{TweetID: "t1", Username: "alice", TweetText: "saved"})
	require.NoError(t, err)
	found, _, _ = s.FindByID(ctx, "t1")
	assert.Equal(t, "saved", found.TweetText)

	require.NoError(t, s.DeleteByID(ctx, "t1"))
	_, ok, err = s.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// pausingStore holds its first FindByID after the read until release is closed.
type pausingStore struct {
	TweetStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore(store TweetStore) *pausingStore {
	return &pausingStore{TweetStore: store, read: make(chan struct{}), release: make(chan struct{})}
}

func (s *pausingStore) FindByID(ctx context.Context, tweetID string) (model.Tweet, bool, error) {
	tweet, found, err := s.TweetStore.FindByID(ctx, tweetID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return tweet, found, err
}

func TestCachedTweetStoreReadOverlappingWrite(t *testing.T) {
	ctx := context.Background()
	host, port := startContainer(t, "redis:7", "6379/tcp",
		wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second))

	redisClient := RedisClient(host, port, "")
	defer redisClient.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// overlap starts a cache miss on tweetID, runs write while the miss is
	// holding the value it read, and then lets the miss finish
	overlap := func(t *testing.T, s *CachedTweetStore, paused *pausingStore, tweetID string, write func()) {
		t.Helper()
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.FindByID(ctx, tweetID)
		}()
		<-paused.read
		write()
		close(paused.release)
		<-done
	}

	t.Run("delete", func(t *testing.T) {
		backing := NewMemoryTweetStore()
		_, err := backing.Insert(ctx, model.Tweet{TweetID: "d1", Username: "alice", TweetText: "hi"})
		require.NoError(t, err)
		paused := newPausingStore(backing)
		s := NewCachedTweetStore(paused, redisClient, time.Minute, logger)

		overlap(t, s, paused, "d1", func() {
			require.NoError(t, s.DeleteByID(ctx, "d1"))
		})

		_, ok, err := s.FindByID(ctx, "d1")
		require.NoError(t, err)
		assert.False(t, ok, "deleted tweet must not be served from redis")
		cached, err := redisClient.Exists(ctx, tweetKey("d1")).Result()
		require.NoError(t, err)
		assert.EqualValues(t, 0, cached)
		exists, _ := backing.ExistsByID(ctx, "d1")
		assert.False(t, exists)
	})

	t.Run("save", func(t *testing.T) {
		backing := NewMemoryTweetStore()
		_, err := backing.Insert(ctx, model.Tweet{TweetID: "s1", Username: "alice", TweetText: "old"})
		require.NoError(t, err)
		paused := newPausingStore(backing)
		s := NewCachedTweetStore(paused, redisClient, time.Minute, logger)

		overlap(t, s, paused, "s1", func() {
			_, err := s.Save(ctx, model.Tweet{TweetID: "s1", Username: "alice", TweetText: "new", Likes: []string{"bob"}})
			require.NoError(t, err)
		})

		found, ok, err := s.FindByID(ctx, "s1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "new", found.TweetText)
		assert.Equal(t, []string{"bob"}, found.Likes)
	})

	t.Run("no overlap fills the cache", func(t *testing.T) {
		backing := NewMemoryTweetStore()
		_, err := backing.Insert(ctx, model.Tweet{TweetID: "f1", Username: "alice", TweetText: "hi"})
		require.NoError(t, err)
		s := NewCachedTweetStore(backing, redisClient, 0, logger)

		_, ok, err := s.FindByID(ctx, "f1")
		require.NoError(t, err)
		require.True(t, ok)
		cached, err := redisClient.Exists(ctx, tweetKey("f1")).Result()
		require.NoError(t, err)
		assert.EqualValues(t, 1, cached)
	})
}

func TestMemcachedUserCache(t *testing.T) {
	ctx := context.Background()
	host, port := startContainer(t, "memcached:1.6", "11211/tcp",
		wait.ForListeningPort("11211/tcp").WithStartupTimeout(60*time.Second))

	c := NewMemcachedUserCache(MemCachedClient(host, port), 60)

	_, ok, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, model.User{Username: "alice", FirstName: "Alice"}))
	user, ok, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alice", user.FirstName)

	require.NoError(t, c.Delete(ctx, "alice"))
	require.NoError(t, c.Delete(ctx, "alice"))
	_, ok, _ = c.Get(ctx, "alice")
	assert.False(t, ok)
}
