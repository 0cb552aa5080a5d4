package models

import (
	"slices"
	"time"
)

// Author is the snapshot of a user taken when content is created.
type Author struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// Engagement holds like/retweet state shared by posts and replies.
// Likes and Retweets always equal the size of the matching membership set;
// Liked and Retweeted are derived for one viewer on read and never stored.
// The sets themselves never leave the server; only the repository
// serializes them.
type Engagement struct {
	Likes       int      `json:"likes"`
	Retweets    int      `json:"retweets"`
	Liked       bool     `json:"liked"`
	Retweeted   bool     `json:"retweeted"`
	LikedBy     []string `json:"-"`
	RetweetedBy []string `json:"-"`
}

// ToggleLike flips viewer membership in the like set and returns the new state.
func (e *Engagement) ToggleLike(viewerID string) bool {
	var on bool
	e.LikedBy, on = toggle(e.LikedBy, viewerID)
	e.Likes = len(e.LikedBy)
	return on
}

// ToggleRetweet flips viewer membership in the retweet set and returns the new state.
func (e *Engagement) ToggleRetweet(viewerID string) bool {
	var on bool
	e.RetweetedBy, on = toggle(e.RetweetedBy, viewerID)
	e.Retweets = len(e.RetweetedBy)
	return on
}

// View fills the viewer-relative flags.
func (e *Engagement) View(viewerID string) {
	e.Liked = viewerID != "" && slices.Contains(e.LikedBy, viewerID)
	e.Retweeted = viewerID != "" && slices.Contains(e.RetweetedBy, viewerID)
}

// Normalize recomputes counters from the membership sets and clears view flags.
func (e *Engagement) Normalize() {
	e.Likes = len(e.LikedBy)
	e.Retweets = len(e.RetweetedBy)
	e.Liked = false
	e.Retweeted = false
}

func (e Engagement) clone() Engagement {
	e.LikedBy = slices.Clone(e.LikedBy)
	e.RetweetedBy = slices.Clone(e.RetweetedBy)
	return e
}

func toggle(set []string, id string) ([]string, bool) {
	if i := slices.Index(set, id); i >= 0 {
		return slices.Delete(set, i, i+1), false
	}
	return append(set, id), true
}

// Post is a top-level post; quote-tweets carry QuotedPost.
type Post struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	Author    Author    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Engagement
	Quotes     int     `json:"quotes"`
	QuotedPost *Post   `json:"quotedPost,omitempty"`
	Replies    []Reply `json:"replies,omitempty"`
	ReplyCount int     `json:"replyCount"`
}

func (p Post) IsQuote() bool {
	return p.QuotedPost != nil
}

// Clone returns a deep copy.
func (p Post) Clone() Post {
	p.Engagement = p.Engagement.clone()
	if p.QuotedPost != nil {
		q := p.QuotedPost.Clone()
		p.QuotedPost = &q
	}
	if p.Replies != nil {
		replies := make([]Reply, len(p.Replies))
		for i, r := range p.Replies {
			replies[i] = r.Clone()
		}
		p.Replies = replies
	}
	return p
}

// ViewAs returns a deep copy with viewer flags filled for post, replies and
// the quoted snapshot.
func (p Post) ViewAs(viewerID string) Post {
	v := p.Clone()
	v.View(viewerID)
	for i := range v.Replies {
		v.Replies[i].View(viewerID)
	}
	if v.QuotedPost != nil {
		v.QuotedPost.View(viewerID)
	}
	return v
}

// Reply is a post attached under another post. It has no quote state.
type Reply struct {
	ID        int64     `json:"id"`
	ParentID  int64     `json:"parentId"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Engagement
}

func (r Reply) Clone() Reply {
	r.Engagement = r.Engagement.clone()
	return r
}
