package tweets

import (
	"testing"
	"time"

	"tweetapp/pkg/model"

	"github.com/stretchr/testify/assert"
)

func TestProject(t *testing.T) {
	date := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	tweet := model.Tweet{
		TweetID:   "t1",
		Username:  "alice",
		TweetText: "hello",
		FirstName: "Alice",
		LastName:  "Liddell",
		TweetDate: date,
		Likes:     []string{"bob", "carol", "bob"},
		Comments:  []model.Comment{{Username: "bob", Text: "nice"}},
	}

	resp := Project(tweet, "carol")
	assert.Equal(t, model.TweetResponse{
		TweetID:       "t1",
		Username:      "alice",
		TweetText:     "hello",
		FirstName:     "Alice",
		LastName:      "Liddell",
		TweetDate:     date,
		LikesCount:    3,
		CommentsCount: 1,
		LikedByViewer: true,
		Comments:      []model.Comment{{Username: "bob", Text: "nice"}},
	}, resp)

	assert.False(t, Project(tweet, "dave").LikedByViewer)
	assert.False(t, Project(tweet, "").LikedByViewer)
}

func TestProjectAsOverridesUsername(t *testing.T) {
	tweet := model.Tweet{TweetID: "t1", Username: "alice"}
	resp := ProjectAs(tweet, "bob", "ALICE")
	assert.Equal(t, "ALICE", resp.Username)
	assert.Equal(t, 0, resp.LikesCount)
	assert.NotNil(t, resp.Comments)
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("alice"))
	assert.True(t, ValidUsername(" a "))
	assert.False(t, ValidUsername(""))
	assert.False(t, ValidUsername(" \t\r\n"))
	assert.False(t, ValidUsername("  "))
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	tweet := model.Tweet{Likes: []string{"a"}, Comments: []model.Comment{{Text: "c"}}}
	clone := Clone(tweet)
	clone.Likes[0] = "b"
	clone.Comments[0].Text = "d"
	assert.Equal(t, "a", tweet.Likes[0])
	assert.Equal(t, "c", tweet.Comments[0].Text)
}
