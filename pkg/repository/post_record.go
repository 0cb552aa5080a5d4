package repository

import (
	"time"

	"chirp/pkg/models"
)

// The stored document keeps the like/retweet membership sets, which the API
// representation of models.Post hides. Viewer flags are never stored.

type engagementRecord struct {
	Likes       int      `json:"likes"`
	Retweets    int      `json:"retweets"`
	LikedBy     []string `json:"likedBy,omitempty"`
	RetweetedBy []string `json:"retweetedBy,omitempty"`
}

type replyRecord struct {
	ID        int64         `json:"id"`
	ParentID  int64         `json:"parentId"`
	Content   string        `json:"content"`
	Author    models.Author `json:"author"`
	Timestamp time.Time     `json:"timestamp"`
	engagementRecord
}

type postRecord struct {
	ID        int64         `json:"id"`
	Content   string        `json:"content"`
	Image     string        `json:"image,omitempty"`
	Author    models.Author `json:"author"`
	Timestamp time.Time     `json:"timestamp"`
	engagementRecord
	Quotes     int           `json:"quotes"`
	QuotedPost *postRecord   `json:"quotedPost,omitempty"`
	Replies    []replyRecord `json:"replies,omitempty"`
	ReplyCount int           `json:"replyCount"`
}

func toEngagementRecord(e models.Engagement) engagementRecord {
	return engagementRecord{
		Likes:       e.Likes,
		Retweets:    e.Retweets,
		LikedBy:     e.LikedBy,
		RetweetedBy: e.RetweetedBy,
	}
}

func (r engagementRecord) model() models.Engagement {
	return models.Engagement{
		Likes:       r.Likes,
		Retweets:    r.Retweets,
		LikedBy:     r.LikedBy,
		RetweetedBy: r.RetweetedBy,
	}
}

func toPostRecord(p models.Post) postRecord {
	rec := postRecord{
		ID:               p.ID,
		Content:          p.Content,
		Image:            p.Image,
		Author:           p.Author,
		Timestamp:        p.Timestamp,
		engagementRecord: toEngagementRecord(p.Engagement),
		Quotes:           p.Quotes,
		ReplyCount:       p.ReplyCount,
	}
	if p.QuotedPost != nil {
		q := toPostRecord(*p.QuotedPost)
		rec.QuotedPost = &q
	}
	if p.Replies != nil {
		rec.Replies = make([]replyRecord, len(p.Replies))
		for i, r := range p.Replies {
			rec.Replies[i] = replyRecord{
				ID:               r.ID,
				ParentID:         r.ParentID,
				Content:          r.Content,
				Author:           r.Author,
				Timestamp:        r.Timestamp,
				engagementRecord: toEngagementRecord(r.Engagement),
			}
		}
	}
	return rec
}

func (rec postRecord) model() models.Post {
	p := models.Post{
		ID:         rec.ID,
		Content:    rec.Content,
		Image:      rec.Image,
		Author:     rec.Author,
		Timestamp:  rec.Timestamp,
		Engagement: rec.engagementRecord.model(),
		Quotes:     rec.Quotes,
		ReplyCount: rec.ReplyCount,
	}
	if rec.QuotedPost != nil {
		q := rec.QuotedPost.model()
		p.QuotedPost = &q
	}
	if rec.Replies != nil {
		p.Replies = make([]models.Reply, len(rec.Replies))
		for i, r := range rec.Replies {
			p.Replies[i] = models.Reply{
				ID:         r.ID,
				ParentID:   r.ParentID,
				Content:    r.Content,
				Author:     r.Author,
				Timestamp:  r.Timestamp,
				Engagement: r.engagementRecord.model(),
			}
		}
	}
	return p
}
