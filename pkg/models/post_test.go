package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagement_ToggleLike(t *testing.T) {
	var e Engagement

	assert.True(t, e.ToggleLike("u1"))
	assert.True(t, e.ToggleLike("u2"))
	assert.Equal(t, 2, e.Likes)

	assert.False(t, e.ToggleLike("u1"))
	assert.Equal(t, 1, e.Likes)
	assert.Equal(t, []string{"u2"}, e.LikedBy)

	e.View("u2")
	assert.True(t, e.Liked)
	e.View("u1")
	assert.False(t, e.Liked)
	e.View("")
	assert.False(t, e.Liked)
}

func TestEngagement_ToggleRetweetIsOwnInverse(t *testing.T) {
	e := Engagement{RetweetedBy: []string{"a"}, Retweets: 1}

	e.ToggleRetweet("b")
	e.ToggleRetweet("b")

	assert.Equal(t, 1, e.Retweets)
	assert.Equal(t, []string{"a"}, e.RetweetedBy)
}

func TestEngagement_Normalize(t *testing.T) {
	e := Engagement{Likes: 7, Liked: true, LikedBy: []string{"a", "b"}}
	e.Normalize()
	assert.Equal(t, Engagement{Likes: 2, LikedBy: []string{"a", "b"}}, e)
}

func TestPost_CloneIsDeep(t *testing.T) {
	quoted := Post{ID: 1, Content: "orig"}
	p := Post{
		ID:         2,
		Engagement: Engagement{LikedBy: []string{"a"}, Likes: 1},
		QuotedPost: &quoted,
		Replies:    []Reply{{ID: 3, Engagement: Engagement{LikedBy: []string{"b"}}}},
	}

	c := p.Clone()
	c.LikedBy[0] = "z"
	c.QuotedPost.Content = "changed"
	c.Replies[0].LikedBy[0] = "y"

	assert.Equal(t, "a", p.LikedBy[0])
	assert.Equal(t, "orig", p.QuotedPost.Content)
	assert.Equal(t, "b", p.Replies[0].LikedBy[0])
}

func TestPost_ViewAs(t *testing.T) {
	p := Post{
		Engagement: Engagement{LikedBy: []string{"me"}, Likes: 1},
		Replies:    []Reply{{Engagement: Engagement{RetweetedBy: []string{"me"}, Retweets: 1}}},
		QuotedPost: &Post{Engagement: Engagement{LikedBy: []string{"me"}, Likes: 1}},
	}

	v := p.ViewAs("me")
	assert.True(t, v.Liked)
	assert.True(t, v.Replies[0].Retweeted)
	assert.True(t, v.QuotedPost.Liked)
	assert.False(t, p.Liked)
}

func TestPost_JSONShape(t *testing.T) {
	p := Post{ID: 10, Content: "hi", Engagement: Engagement{Likes: 1, LikedBy: []string{"u"}}}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.EqualValues(t, 1, m["likes"])
	assert.Equal(t, false, m["liked"])
	assert.Contains(t, m, "replyCount")
	assert.NotContains(t, m, "quotedPost")
	assert.NotContains(t, m, "image")
	assert.NotContains(t, m, "likedBy")
	assert.NotContains(t, m, "retweetedBy")
	assert.NotContains(t, string(raw), `"u"`)
}

func TestUser_PublicDropsHash(t *testing.T) {
	u := User{ID: "1", Username: "bob", PasswordHash: "$2a$..."}
	assert.Empty(t, u.Public().PasswordHash)
	assert.Equal(t, Author{ID: "1", Username: "bob"}, u.Snapshot())
}
