package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tweetapp/pkg/model"
)

// MemoryTweetStore is an in-process tweet store. Reads return copies, and
// FindAll returns tweets in insertion order.
type MemoryTweetStore struct {
	mu     sync.RWMutex
	tweets map[string]model.Tweet
	order  []string
}

func NewMemoryTweetStore() *MemoryTweetStore {
	return &MemoryTweetStore{
		tweets: make(map[string]model.Tweet),
	}
}

func (s *MemoryTweetStore) Insert(ctx context.Context, tweet model.Tweet) (model.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tweets[tweet.TweetID]; ok {
		return model.Tweet{}, fmt.Errorf("duplicate key: tweet %s already exists", tweet.TweetID)
	}
	s.tweets[tweet.TweetID] = cloneTweet(tweet)
	s.order = append(s.order, tweet.TweetID)
	return cloneTweet(tweet), nil
}

func (s *MemoryTweetStore) FindByID(ctx context.Context, tweetID string) (model.Tweet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tweet, ok := s.tweets[tweetID]
	if !ok {
		return model.Tweet{}, false, nil
	}
	return cloneTweet(tweet), true, nil
}

func (s *MemoryTweetStore) FindAll(ctx context.Context) ([]model.Tweet, error) {
	return s.filter(func(model.Tweet) bool { return true }), nil
}

func (s *MemoryTweetStore) FindByUsername(ctx context.Context, username string) ([]model.Tweet, error) {
	return s.filter(func(t model.Tweet) bool { return t.Username == username }), nil
}

func (s *MemoryTweetStore) filter(keep func(model.Tweet) bool) []model.Tweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tweets := []model.Tweet{}
	for _, id := range s.order {
		if t := s.tweets[id]; keep(t) {
			tweets = append(tweets, cloneTweet(t))
		}
	}
	return tweets
}

func (s *MemoryTweetStore) Save(ctx context.Context, tweet model.Tweet) (model.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tweets[tweet.TweetID]; !ok {
		s.order = append(s.order, tweet.TweetID)
	}
	s.tweets[tweet.TweetID] = cloneTweet(tweet)
	return cloneTweet(tweet), nil
}

func (s *MemoryTweetStore) ExistsByID(ctx context.Context, tweetID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tweets[tweetID]
	return ok, nil
}

func (s *MemoryTweetStore) DeleteByID(ctx context.Context, tweetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tweets[tweetID]; !ok {
		return nil
	}
	delete(s.tweets, tweetID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == tweetID })
	return nil
}

func cloneTweet(tweet model.Tweet) model.Tweet {
	tweet.Likes = slices.Clone(tweet.Likes)
	tweet.Comments = slices.Clone(tweet.Comments)
	return tweet
}
