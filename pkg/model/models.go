package model

import (
	"time"

	"tweetapp/pkg/trace"

	"github.com/ServiceWeaver/weaver"
)

type Comment struct {
	weaver.AutoMarshal `bson:"-"`
	Username string `bson:"username" json:"username"`
	Text     string `bson:"text" json:"text"`
}

type Tweet struct {
	// make tweet serializable
	// by default, struct literal types are not serializable
	weaver.AutoMarshal `bson:"-"`
	TweetID   string    `bson:"_id" json:"tweetId"`
	Username  string    `bson:"username" json:"username"`
	TweetText string    `bson:"tweet_text" json:"tweetText"`
	FirstName string    `bson:"first_name" json:"firstName"`
	LastName  string    `bson:"last_name" json:"lastName"`
	TweetDate time.Time `bson:"tweet_date" json:"tweetDate"`
	Likes     []string  `bson:"likes" json:"likes"`
	Comments  []Comment `bson:"comments" json:"comments"`
}

// TweetResponse is the per-viewer projection of a tweet. It is computed on
// every read and never stored.
type TweetResponse struct {
	weaver.AutoMarshal
	TweetID       string    `json:"tweetId"`
	Username      string    `json:"username"`
	TweetText     string    `json:"tweetText"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	TweetDate     time.Time `json:"tweetDate"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	LikedByViewer bool      `json:"likeStatus"`
	Comments      []Comment `json:"comments"`
}

type User struct {
	weaver.AutoMarshal `bson:"-"`
	Username   string `bson:"_id" json:"username"`
	FirstName  string `bson:"first_name" json:"firstName"`
	LastName   string `bson:"last_name" json:"lastName"`
	Email      string `bson:"email" json:"email"`
	Password   string `bson:"password" json:"password"`
	ContactNum string `bson:"contact_num" json:"contactNum"`
}

type EventType string

const (
	EVENT_TWEET_CREATED   EventType = "tweet.created"
	EVENT_TWEET_COMMENTED EventType = "tweet.commented"
)

// Event is the notification published to the tweets exchange.
type Event struct {
	Type  EventType `json:"type"`
	Tweet Tweet     `json:"tweet"`
	// tracing
	SpanContext trace.SpanContext `json:"span_context"`
	// evaluation metrics
	SentAtMs int64 `json:"sent_ts"`
}
