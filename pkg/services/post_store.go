package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"chirp/pkg/models"
	"chirp/pkg/repository"

	log "github.com/sirupsen/logrus"
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrNotPersisted   = errors.New("change applied in memory but not persisted")
	ErrViewerRequired = errors.New("viewer id required")
)

// PostStore owns the post collection and is the only writer of engagement
// counters. Every mutation is read-modify-persist under one lock, and the
// whole collection is written after each one.
type PostStore interface {
	Load(ctx context.Context) error
	Feed(viewerID string) []models.Post
	Get(id int64, viewerID string) (models.Post, error)
	CreatePost(ctx context.Context, content, image string, author models.Author) (models.Post, error)
	ToggleLike(ctx context.Context, id int64, viewerID string) (models.Engagement, error)
	ToggleRetweet(ctx context.Context, id int64, viewerID string) (models.Engagement, error)
	AddQuoteTweet(ctx context.Context, content, image string, original models.Post, author models.Author) (models.Post, error)
	AddReply(ctx context.Context, content string, originalID int64, author models.Author) (models.Reply, error)
	Delete(ctx context.Context, id int64, authorID string) error
}

type postStore struct {
	mu     sync.Mutex
	repo   repository.PostRepository
	posts  []models.Post
	lastID int64
	now    func() time.Time
}

func NewPostStore(repo repository.PostRepository) PostStore {
	return &postStore{
		repo:  repo,
		posts: []models.Post{},
		now:   time.Now,
	}
}

// Load replaces the in-memory collection with the persisted one. On a read
// or decode failure the store starts empty and the error is returned for
// logging.
func (s *postStore) Load(ctx context.Context) error {
	posts, err := s.repo.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.posts = []models.Post{}
		return err
	}

	s.lastID = 0
	for i := range posts {
		normalizePost(&posts[i])
		s.seenID(posts[i].ID)
		for _, r := range posts[i].Replies {
			s.seenID(r.ID)
		}
	}
	s.posts = posts

	log.Infof("[POSTS] loaded %d posts", len(posts))
	return nil
}

func normalizePost(p *models.Post) {
	p.Normalize()
	for i := range p.Replies {
		p.Replies[i].Normalize()
		p.Replies[i].ParentID = p.ID
	}
	p.ReplyCount = len(p.Replies)
	if p.QuotedPost != nil {
		normalizePost(p.QuotedPost)
	}
}

func (s *postStore) seenID(id int64) {
	if id > s.lastID {
		s.lastID = id
	}
}

// nextID derives ids from the creation time in milliseconds and bumps past
// the last issued id when two posts land in the same millisecond.
func (s *postStore) nextID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *postStore) Feed(viewerID string) []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		feed[i] = p.ViewAs(viewerID)
	}
	return feed
}

func (s *postStore) Get(id int64, viewerID string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Post{}, ErrPostNotFound
	}
	return s.posts[i].ViewAs(viewerID), nil
}

func (s *postStore) CreatePost(ctx context.Context, content, image string, author models.Author) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Post{
		ID:        s.nextID(),
		Content:   content,
		Image:     image,
		Author:    author,
		Timestamp: s.now().UTC(),
	}
	s.posts = slices.Insert(s.posts, 0, p)

	log.Infof("[POSTS] post created id=%d author=%s", p.ID, author.Username)
	return p, s.persist(ctx)
}

func (s *postStore) ToggleLike(ctx context.Context, id int64, viewerID string) (models.Engagement, error) {
	return s.toggle(ctx, id, viewerID, func(e *models.Engagement) { e.ToggleLike(viewerID) })
}

func (s *postStore) ToggleRetweet(ctx context.Context, id int64, viewerID string) (models.Engagement, error) {
	return s.toggle(ctx, id, viewerID, func(e *models.Engagement) { e.ToggleRetweet(viewerID) })
}

// toggle is a no-op returning ErrPostNotFound when id names neither a post
// nor a reply.
func (s *postStore) toggle(ctx context.Context, id int64, viewerID string, flip func(*models.Engagement)) (models.Engagement, error) {
	if viewerID == "" {
		return models.Engagement{}, ErrViewerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.engagement(id)
	if e == nil {
		return models.Engagement{}, ErrPostNotFound
	}
	flip(e)

	out := models.Engagement{
		Likes:    e.Likes,
		Retweets: e.Retweets,
	}
	out.LikedBy = slices.Clone(e.LikedBy)
	out.RetweetedBy = slices.Clone(e.RetweetedBy)
	out.View(viewerID)

	return out, s.persist(ctx)
}

// AddQuoteTweet prepends a quote-tweet embedding a snapshot of original and
// bumps the original's quote counter in the same persisted write. The store
// does not refuse quoting a quote-tweet; composers enforce that.
func (s *postStore) AddQuoteTweet(ctx context.Context, content, image string, original models.Post, author models.Author) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := original.Clone()
	if i := s.indexOf(original.ID); i >= 0 {
		snapshot = s.posts[i].Clone()
		s.posts[i].Quotes++
	} else {
		log.Debugf("[POSTS] quoted post id=%d not in collection, embedding caller snapshot", original.ID)
	}
	normalizePost(&snapshot)

	q := models.Post{
		ID:         s.nextID(),
		Content:    content,
		Image:      image,
		Author:     author,
		Timestamp:  s.now().UTC(),
		QuotedPost: &snapshot,
	}
	s.posts = slices.Insert(s.posts, 0, q)

	log.Infof("[POSTS] quote created id=%d quoted=%d author=%s", q.ID, original.ID, author.Username)
	return q.Clone(), s.persist(ctx)
}

// AddReply appends a reply under a top-level post; replyCount tracks
// len(replies) exactly.
func (s *postStore) AddReply(ctx context.Context, content string, originalID int64, author models.Author) (models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(originalID)
	if i < 0 {
		return models.Reply{}, ErrPostNotFound
	}

	r := models.Reply{
		ID:        s.nextID(),
		ParentID:  originalID,
		Content:   content,
		Author:    author,
		Timestamp: s.now().UTC(),
	}
	s.posts[i].Replies = append(s.posts[i].Replies, r)
	s.posts[i].ReplyCount = len(s.posts[i].Replies)

	log.Infof("[POSTS] reply created id=%d parent=%d author=%s", r.ID, originalID, author.Username)
	return r, s.persist(ctx)
}

// Delete removes a top-level post owned by authorID. Quote-tweets keep their
// embedded snapshot of it.
func (s *postStore) Delete(ctx context.Context, id int64, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 || s.posts[i].Author.ID != authorID {
		return ErrPostNotFound
	}
	s.posts = slices.Delete(s.posts, i, i+1)

	log.Infof("[POSTS] post deleted id=%d", id)
	return s.persist(ctx)
}

func (s *postStore) indexOf(id int64) int {
	return slices.IndexFunc(s.posts, func(p models.Post) bool { return p.ID == id })
}

func (s *postStore) engagement(id int64) *models.Engagement {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return &s.posts[i].Engagement
		}
	}
	for i := range s.posts {
		for j := range s.posts[i].Replies {
			if s.posts[i].Replies[j].ID == id {
				return &s.posts[i].Replies[j].Engagement
			}
		}
	}
	return nil
}

// persist writes the collection. A failed write leaves the in-memory change
// in place and is reported as ErrNotPersisted.
func (s *postStore) persist(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.posts); err != nil {
		log.Warnf("[POSTS] persist failed, keeping in-memory state: %v", err)
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}
