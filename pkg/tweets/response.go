package tweets

import (
	"slices"

	"tweetapp/pkg/model"
)

// Project builds the viewer-specific response for tweet.
func Project(tweet model.Tweet, viewer string) model.TweetResponse {
	return ProjectAs(tweet, viewer, tweet.Username)
}

// ProjectAs is Project with the response username replaced by username.
func ProjectAs(tweet model.Tweet, viewer string, username string) model.TweetResponse {
	comments := tweet.Comments
	if comments == nil {
		comments = []model.Comment{}
	}
	return model.TweetResponse{
		TweetID:       tweet.TweetID,
		Username:      username,
		TweetText:     tweet.TweetText,
		FirstName:     tweet.FirstName,
		LastName:      tweet.LastName,
		TweetDate:     tweet.TweetDate,
		LikesCount:    len(tweet.Likes),
		CommentsCount: len(tweet.Comments),
		LikedByViewer: slices.Contains(tweet.Likes, viewer),
		Comments:      comments,
	}
}
