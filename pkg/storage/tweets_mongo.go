package storage

import (
	"context"

	"tweetapp/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTweetStore keeps one document per tweet, keyed by tweet id.
type MongoTweetStore struct {
	collection *mongo.Collection
}

func NewMongoTweetStore(client *mongo.Client, database string) *MongoTweetStore {
	return &MongoTweetStore{
		collection: client.Database(database).Collection("tweets"),
	}
}

// EnsureIndexes creates the username index used by FindByUsername.
func (s *MongoTweetStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}},
	})
	return err
}

func (s *MongoTweetStore) Insert(ctx context.Context, tweet model.Tweet) (model.Tweet, error) {
	_, err := s.collection.InsertOne(ctx, tweet)
	if err != nil {
		return model.Tweet{}, err
	}
	return tweet, nil
}

func (s *MongoTweetStore) FindByID(ctx context.Context, tweetID string) (model.Tweet, bool, error) {
	var tweet model.Tweet
	filter := bson.D{{Key: "_id", Value: tweetID}}
	err := s.collection.FindOne(ctx, filter).Decode(&tweet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.Tweet{}, false, nil
		}
		return model.Tweet{}, false, err
	}
	return tweet, true, nil
}

func (s *MongoTweetStore) FindAll(ctx context.Context) ([]model.Tweet, error) {
	return s.find(ctx, bson.D{})
}

func (s *MongoTweetStore) FindByUsername(ctx context.Context, username string) ([]model.Tweet, error) {
	return s.find(ctx, bson.D{{Key: "username", Value: username}})
}

func (s *MongoTweetStore) find(ctx context.Context, filter bson.D) ([]model.Tweet, error) {
	cur, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	tweets := []model.Tweet{}
	if err := cur.All(ctx, &tweets); err != nil {
		return nil, err
	}
	return tweets, nil
}

// Save replaces the whole document, inserting it when missing.
func (s *MongoTweetStore) Save(ctx context.Context, tweet model.Tweet) (model.Tweet, error) {
	filter := bson.D{{Key: "_id", Value: tweet.TweetID}}
	_, err := s.collection.ReplaceOne(ctx, filter, tweet, options.Replace().SetUpsert(true))
	if err != nil {
		return model.Tweet{}, err
	}
	return tweet, nil
}

func (s *MongoTweetStore) ExistsByID(ctx context.Context, tweetID string) (bool, error) {
	filter := bson.D{{Key: "_id", Value: tweetID}}
	n, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MongoTweetStore) DeleteByID(ctx context.Context, tweetID string) error {
	filter := bson.D{{Key: "_id", Value: tweetID}}
	_, err := s.collection.DeleteOne(ctx, filter)
	return err
}
