package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"tweetapp/pkg/model"

	"github.com/bradfitz/gomemcache/memcache"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(client *mongo.Client, database string) *MongoUserStore {
	return &MongoUserStore{
		collection: client.Database(database).Collection("users"),
	}
}

func (s *MongoUserStore) FindByUsername(ctx context.Context, username string) (model.User, bool, error) {
	var user model.User
	filter := bson.D{{Key: "_id", Value: username}}
	err := s.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}
	return user, true, nil
}

func (s *MongoUserStore) FindAll(ctx context.Context) ([]model.User, error) {
	cur, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoUserStore) Insert(ctx context.Context, user model.User) error {
	_, err := s.collection.InsertOne(ctx, user)
	return err
}

func (s *MongoUserStore) Save(ctx context.Context, user model.User) error {
	filter := bson.D{{Key: "_id", Value: user.Username}}
	_, err := s.collection.ReplaceOne(ctx, filter, user, options.Replace().SetUpsert(true))
	return err
}

// MemoryUserStore is an in-process user store ordered by username.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]model.User)}
}

func (s *MemoryUserStore) FindByUsername(ctx context.Context, username string) (model.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	return user, ok, nil
}

func (s *MemoryUserStore) FindAll(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *MemoryUserStore) Insert(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("duplicate key: user %s already exists", user.Username)
	}
	s.users[user.Username] = user
	return nil
}

func (s *MemoryUserStore) Save(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
	return nil
}

// MemcachedUserCache caches user profiles as json under "<username>:profile".
type MemcachedUserCache struct {
	client     *memcache.Client
	expiration int32
}

func NewMemcachedUserCache(client *memcache.Client, expirationSeconds int32) *MemcachedUserCache {
	return &MemcachedUserCache{client: client, expiration: expirationSeconds}
}

func profileKey(username string) string {
	return username + ":profile"
}

func (c *MemcachedUserCache) Get(ctx context.Context, username string) (model.User, bool, error) {
	item, err := c.client.Get(profileKey(username))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}
	var user model.User
	if err := json.Unmarshal(item.Value, &user); err != nil {
		return model.User{}, false, err
	}
	return user, true, nil
}

func (c *MemcachedUserCache) Set(ctx context.Context, user model.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        profileKey(user.Username),
		Value:      userJSON,
		Expiration: c.expiration,
	})
}

func (c *MemcachedUserCache) Delete(ctx context.Context, username string) error {
	err := c.client.Delete(profileKey(username))
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}
