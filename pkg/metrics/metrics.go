package metrics

import (
	"time"

	"github.com/ServiceWeaver/weaver/metrics"
)

type OpLabel struct {
	Op string
}

type EventLabel struct {
	Type string
}

var (
	// tweet service
	OpDurationMs = metrics.NewHistogramMap[OpLabel](
		"tweetapp_op_duration_ms",
		"Duration of tweet engine operations in milliseconds",
		metrics.NonNegativeBuckets,
	)
	OpErrors = metrics.NewCounterMap[OpLabel](
		"tweetapp_op_errors",
		"The number of tweet engine operations that returned an error",
	)
	PostedTweets = metrics.NewCounter(
		"tweetapp_posted_tweets",
		"The number of posted tweets",
	)
	DeletedTweets = metrics.NewCounter(
		"tweetapp_deleted_tweets",
		"The number of deleted tweets",
	)
	Likes = metrics.NewCounter(
		"tweetapp_likes",
		"The number of like operations applied",
	)
	Dislikes = metrics.NewCounter(
		"tweetapp_dislikes",
		"The number of dislike operations applied",
	)
	Comments = metrics.NewCounter(
		"tweetapp_comments",
		"The number of comments appended to tweets",
	)
	// notifications
	PublishedNotifications = metrics.NewCounterMap[EventLabel](
		"tweetapp_published_notifications",
		"The number of notifications handed to the message broker",
	)
	FailedNotifications = metrics.NewCounterMap[EventLabel](
		"tweetapp_failed_notifications",
		"The number of notifications that could not be published",
	)
	DroppedNotifications = metrics.NewCounterMap[EventLabel](
		"tweetapp_dropped_notifications",
		"The number of notifications dropped because the dispatch queue was full",
	)
	ReceivedNotifications = metrics.NewCounterMap[EventLabel](
		"tweetapp_received_notifications",
		"The number of notifications received by the consumer",
	)
	NotificationLatencyMs = metrics.NewHistogram(
		"tweetapp_notification_latency_ms",
		"Time between publishing and consuming a notification in milliseconds",
		metrics.NonNegativeBuckets,
	)
	Inconsistencies = metrics.NewCounter(
		"tweetapp_inconsistencies",
		"The number of notifications whose tweet was not in the store when consumed",
	)
	// user directory
	UserCacheHits = metrics.NewCounter(
		"tweetapp_user_cache_hits",
		"The number of user profile reads served from the cache",
	)
	UserCacheMisses = metrics.NewCounter(
		"tweetapp_user_cache_misses",
		"The number of user profile reads that fell through to the store",
	)
)

// ObserveOp records the duration of op since start and counts it as failed
// when err is non-nil.
func ObserveOp(op string, start time.Time, err error) {
	OpDurationMs.Get(OpLabel{Op: op}).Put(float64(time.Since(start).Milliseconds()))
	if err != nil {
		OpErrors.Get(OpLabel{Op: op}).Inc()
	}
}
