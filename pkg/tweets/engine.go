package tweets

import (
	"context"
	"log/slog"
	"slices"
	"time"

	sn_metrics "tweetapp/pkg/metrics"
	"tweetapp/pkg/model"
	sn_trace "tweetapp/pkg/trace"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store is the persistence gateway for tweets. Implementations return raw
// driver errors; the engine wraps them as storage errors.
type Store interface {
	Insert(ctx context.Context, tweet model.Tweet) (model.Tweet, error)
	FindByID(ctx context.Context, tweetID string) (model.Tweet, bool, error)
	FindAll(ctx context.Context) ([]model.Tweet, error)
	FindByUsername(ctx context.Context, username string) ([]model.Tweet, error)
	Save(ctx context.Context, tweet model.Tweet) (model.Tweet, error)
	ExistsByID(ctx context.Context, tweetID string) (bool, error)
	DeleteByID(ctx context.Context, tweetID string) error
}

// Sink receives tweet notifications. Publish must not block for long; its
// errors are logged and never fail the operation that triggered them.
type Sink interface {
	Publish(ctx context.Context, event model.Event) error
}

type Options struct {
	// DedupeLikes makes Like a no-op when the user already likes the tweet.
	// When false, repeated likes append the username again.
	DedupeLikes bool
	Now         func() time.Time
	NewID       func() string
}

// Engine owns the tweet lifecycle: it reads tweets through the Store,
// applies a transition and writes the whole document back. There is no
// concurrency control between the read and the write; the last write wins.
type Engine struct {
	store  Store
	sink   Sink
	logger *slog.Logger
	opts   Options
}

// NewEngine returns an engine over store. A nil sink disables notifications.
func NewEngine(store Store, sink Sink, logger *slog.Logger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Engine{
		store:  store,
		sink:   sink,
		logger: logger,
		opts:   opts,
	}
}

func (e *Engine) ListAll(ctx context.Context, viewer string) (resp []model.TweetResponse, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("list_all", start, err) }(time.Now())
	e.logger.Debug("entering ListAll", "viewer", viewer)

	tweets, err := e.store.FindAll(ctx)
	if err != nil {
		e.logger.Error("error reading tweets", "msg", err.Error())
		return nil, model.StorageError("list_all", err)
	}
	resp = make([]model.TweetResponse, 0, len(tweets))
	for _, tweet := range tweets {
		resp = append(resp, Project(tweet, viewer))
	}
	return resp, nil
}

// ListByAuthor returns the tweets of author. Every response carries author as
// its username, whatever username the stored tweet holds.
func (e *Engine) ListByAuthor(ctx context.Context, author string, viewer string) (resp []model.TweetResponse, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("list_by_author", start, err) }(time.Now())
	e.logger.Debug("entering ListByAuthor", "author", author, "viewer", viewer)

	if !ValidUsername(author) {
		return nil, model.ErrInvalidUsername
	}
	tweets, err := e.store.FindByUsername(ctx, author)
	if err != nil {
		e.logger.Error("error reading tweets by username", "username", author, "msg", err.Error())
		return nil, model.StorageError("list_by_author", err)
	}
	resp = make([]model.TweetResponse, 0, len(tweets))
	for _, tweet := range tweets {
		resp = append(resp, ProjectAs(tweet, viewer, author))
	}
	return resp, nil
}

// Post stores tweet as a new tweet by author. Any client supplied id,
// likes or comments are discarded. The creation notification is issued
// before the insert.
func (e *Engine) Post(ctx context.Context, author string, tweet model.Tweet) (stored model.Tweet, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("post", start, err) }(time.Now())

	tweet.TweetID = e.opts.NewID()
	tweet.Username = author
	if tweet.TweetDate.IsZero() {
		tweet.TweetDate = e.opts.Now().UTC()
	}
	tweet.Likes = []string{}
	tweet.Comments = []model.Comment{}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("tweet_id", tweet.TweetID),
	)

	e.notify(ctx, model.EVENT_TWEET_CREATED, tweet)

	stored, err = e.store.Insert(ctx, tweet)
	if err != nil {
		e.logger.Error("error inserting tweet", "tweet_id", tweet.TweetID, "msg", err.Error())
		return model.Tweet{}, model.StorageError("post", err)
	}
	sn_metrics.PostedTweets.Inc()
	e.logger.Info("posted new tweet", "tweet_id", stored.TweetID, "username", author)
	return stored, nil
}

func (e *Engine) Get(ctx context.Context, tweetID string, viewer string) (resp model.TweetResponse, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("get", start, err) }(time.Now())
	e.logger.Debug("entering Get", "tweet_id", tweetID, "viewer", viewer)

	tweet, err := e.load(ctx, "get", tweetID)
	if err != nil {
		return model.TweetResponse{}, err
	}
	return Project(tweet, viewer), nil
}

// Update replaces the text of a tweet. author is not checked against the
// stored author.
func (e *Engine) Update(ctx context.Context, author string, tweetID string, text string) (updated model.Tweet, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("update", start, err) }(time.Now())
	e.logger.Debug("entering Update", "author", author, "tweet_id", tweetID)

	tweet, err := e.load(ctx, "update", tweetID)
	if err != nil {
		return model.Tweet{}, err
	}
	tweet.TweetText = text
	return e.save(ctx, "update", tweet)
}

func (e *Engine) Delete(ctx context.Context, tweetID string) (deleted bool, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("delete", start, err) }(time.Now())
	e.logger.Debug("entering Delete", "tweet_id", tweetID)

	if isBlank(tweetID) {
		e.logger.Error("cannot delete tweet with a blank id")
		return false, model.ErrTweetNotFound
	}
	exists, err := e.store.ExistsByID(ctx, tweetID)
	if err != nil {
		e.logger.Error("error checking tweet existence", "tweet_id", tweetID, "msg", err.Error())
		return false, model.StorageError("delete", err)
	}
	if !exists {
		e.logger.Error("cannot delete tweet since this tweet does not exist anymore", "tweet_id", tweetID)
		return false, model.ErrTweetNotFound
	}
	if err := e.store.DeleteByID(ctx, tweetID); err != nil {
		e.logger.Error("error deleting tweet", "tweet_id", tweetID, "msg", err.Error())
		return false, model.StorageError("delete", err)
	}
	sn_metrics.DeletedTweets.Inc()
	return true, nil
}

func (e *Engine) Like(ctx context.Context, username string, tweetID string) (updated model.Tweet, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("like", start, err) }(time.Now())

	trace.SpanFromContext(ctx).AddEvent("liking tweet",
		trace.WithAttributes(
			attribute.String("tweet_id", tweetID),
			attribute.String("username", username),
		))

	tweet, err := e.load(ctx, "like", tweetID)
	if err != nil {
		return model.Tweet{}, err
	}
	if e.opts.DedupeLikes && slices.Contains(tweet.Likes, username) {
		e.logger.Debug("tweet already liked", "tweet_id", tweetID, "username", username)
		return tweet, nil
	}
	tweet.Likes = append(tweet.Likes, username)
	updated, err = e.save(ctx, "like", tweet)
	if err != nil {
		return model.Tweet{}, err
	}
	sn_metrics.Likes.Inc()
	return updated, nil
}

// Dislike removes every like of username. Removing a like that is not there
// still rewrites the tweet.
func (e *Engine) Dislike(ctx context.Context, username string, tweetID string) (updated model.Tweet, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("dislike", start, err) }(time.Now())

	trace.SpanFromContext(ctx).AddEvent("disliking tweet",
		trace.WithAttributes(
			attribute.String("tweet_id", tweetID),
			attribute.String("username", username),
		))

	tweet, err := e.load(ctx, "dislike", tweetID)
	if err != nil {
		return model.Tweet{}, err
	}
	tweet.Likes = slices.DeleteFunc(tweet.Likes, func(liker string) bool {
		return liker == username
	})
	updated, err = e.save(ctx, "dislike", tweet)
	if err != nil {
		return model.Tweet{}, err
	}
	sn_metrics.Dislikes.Inc()
	return updated, nil
}

// Reply appends a comment by username. The comment notification carries the
// updated tweet and is issued before the tweet is saved.
func (e *Engine) Reply(ctx context.Context, username string, tweetID string, text string) (updated model.Tweet, err error) {
	defer func(start time.Time) { sn_metrics.ObserveOp("reply", start, err) }(time.Now())
	e.logger.Debug("entering Reply", "username", username, "tweet_id", tweetID)

	tweet, err := e.load(ctx, "reply", tweetID)
	if err != nil {
		return model.Tweet{}, err
	}
	tweet.Comments = append(tweet.Comments, model.Comment{
		Username: username,
		Text:     text,
	})

	e.notify(ctx, model.EVENT_TWEET_COMMENTED, tweet)

	updated, err = e.save(ctx, "reply", tweet)
	if err != nil {
		return model.Tweet{}, err
	}
	sn_metrics.Comments.Inc()
	return updated, nil
}

func (e *Engine) load(ctx context.Context, op string, tweetID string) (model.Tweet, error) {
	tweet, found, err := e.store.FindByID(ctx, tweetID)
	if err != nil {
		e.logger.Error("error reading tweet", "op", op, "tweet_id", tweetID, "msg", err.Error())
		return model.Tweet{}, model.StorageError(op, err)
	}
	if !found {
		e.logger.Error("tweet does not exist anymore", "op", op, "tweet_id", tweetID)
		return model.Tweet{}, model.ErrTweetNotFound
	}
	return tweet, nil
}

func (e *Engine) save(ctx context.Context, op string, tweet model.Tweet) (model.Tweet, error) {
	saved, err := e.store.Save(ctx, tweet)
	if err != nil {
		e.logger.Error("error saving tweet", "op", op, "tweet_id", tweet.TweetID, "msg", err.Error())
		return model.Tweet{}, model.StorageError(op, err)
	}
	return saved, nil
}

func (e *Engine) notify(ctx context.Context, eventType model.EventType, tweet model.Tweet) {
	if e.sink == nil {
		return
	}
	event := model.Event{
		Type:        eventType,
		Tweet:       Clone(tweet),
		SpanContext: sn_trace.FromContext(ctx),
		SentAtMs:    time.Now().UnixMilli(),
	}
	if err := e.sink.Publish(ctx, event); err != nil {
		e.logger.Warn("error publishing notification", "type", eventType, "tweet_id", tweet.TweetID, "msg", err.Error())
	}
}

// Clone returns a copy of tweet that shares no slices with it.
func Clone(tweet model.Tweet) model.Tweet {
	tweet.Likes = slices.Clone(tweet.Likes)
	tweet.Comments = slices.Clone(tweet.Comments)
	return tweet
}
