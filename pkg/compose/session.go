// Package compose holds the transient state of one open editor: the draft,
// its attached image and live mention detection.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"chirp/pkg/media"
	"chirp/pkg/mention"
	"chirp/pkg/models"
	"chirp/pkg/services"

	log "github.com/sirupsen/logrus"
)

const MaxLength = 280

type Kind string

const (
	KindPost  Kind = "post"
	KindQuote Kind = "quote"
	KindReply Kind = "reply"
)

var (
	ErrEmptyDraft      = errors.New("draft is empty")
	ErrTooLong         = fmt.Errorf("draft exceeds %d characters", MaxLength)
	ErrQuoteOfQuote    = errors.New("cannot quote a quote-tweet")
	ErrImagePending    = errors.New("image still loading")
	ErrImageNotAllowed = errors.New("replies cannot carry images")
	ErrNoMention       = errors.New("no active mention")
	ErrUnknownKind     = errors.New("unknown composer kind")
)

// Poster receives finished drafts. services.PostStore satisfies it.
type Poster interface {
	CreatePost(ctx context.Context, content, image string, author models.Author) (models.Post, error)
	AddQuoteTweet(ctx context.Context, content, image string, original models.Post, author models.Author) (models.Post, error)
	AddReply(ctx context.Context, content string, originalID int64, author models.Author) (models.Reply, error)
}

// Directory supplies mention candidates. services.AuthService satisfies it.
type Directory interface {
	Candidates() []mention.Candidate
}

type Deps struct {
	Poster        Poster
	Directory     Directory
	MaxImageBytes int64
}

type MentionState struct {
	Active      bool                `json:"active"`
	Query       string              `json:"query"`
	Suggestions []mention.Candidate `json:"suggestions"`
}

// Draft is a read-only snapshot of a session.
type Draft struct {
	Kind         Kind              `json:"kind"`
	Text         string            `json:"text"`
	Cursor       int               `json:"cursor"`
	Image        string            `json:"image,omitempty"`
	ImagePending bool              `json:"imagePending"`
	Mention      MentionState      `json:"mention"`
	Mentions     []mention.Mention `json:"mentions"`
	Remaining    int               `json:"remaining"`
	Segments     []mention.Segment `json:"segments"`
}

// Submission is what a successful Submit handed to the Poster.
type Submission struct {
	Kind  Kind          `json:"kind"`
	Post  *models.Post  `json:"post,omitempty"`
	Reply *models.Reply `json:"reply,omitempty"`
}

type Session struct {
	deps     Deps
	kind     Kind
	author   models.Author
	original models.Post
	parentID int64

	mu      sync.Mutex
	text    string
	cursor  int
	token   mention.Token
	active  bool
	image   string
	gen     uint64
	pending chan struct{}
}

func NewPost(d Deps, author models.Author) *Session {
	return &Session{deps: d, kind: KindPost, author: author}
}

// NewQuote refuses originals that are themselves quote-tweets.
func NewQuote(d Deps, author models.Author, original models.Post) (*Session, error) {
	if original.IsQuote() {
		return nil, ErrQuoteOfQuote
	}
	return &Session{deps: d, kind: KindQuote, author: author, original: original}, nil
}

func NewReply(d Deps, author models.Author, parentID int64) *Session {
	return &Session{deps: d, kind: KindReply, author: author, parentID: parentID}
}

func (s *Session) Kind() Kind {
	return s.kind
}

// SetText replaces the draft and re-runs mention detection at cursor.
func (s *Session) SetText(text string, cursor int) MentionState {
	cursor = max(0, min(cursor, len(text)))

	s.mu.Lock()
	s.text = text
	s.cursor = cursor
	s.token, s.active = mention.FindAtCursor(text, cursor)
	token, active := s.token, s.active
	s.mu.Unlock()

	if !active {
		return MentionState{Suggestions: []mention.Candidate{}}
	}
	return MentionState{
		Active:      true,
		Query:       token.Query,
		Suggestions: s.suggest(token.Query),
	}
}

func (s *Session) suggest(query string) []mention.Candidate {
	var candidates []mention.Candidate
	if s.deps.Directory != nil {
		candidates = s.deps.Directory.Candidates()
	}
	if len(candidates) == 0 {
		candidates = mention.DefaultCandidates
	}
	return mention.Match(query, candidates)
}

// SelectMention replaces the active token with "@username " and moves the
// cursor just past the trailing space.
func (s *Session) SelectMention(username string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return s.text, s.cursor, ErrNoMention
	}

	insert := "@" + username + " "
	s.text = s.text[:s.token.Start] + insert + s.text[s.token.End:]
	s.cursor = s.token.Start + len(insert)
	s.active = false
	s.token = mention.Token{}

	return s.text, s.cursor, nil
}

func (s *Session) CloseMention() {
	s.mu.Lock()
	s.active = false
	s.token = mention.Token{}
	s.mu.Unlock()
}

// Mentions lists completed mentions, leaving out the one still being typed.
func (s *Session) Mentions() []mention.Mention {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mentionsLocked()
}

func (s *Session) mentionsLocked() []mention.Mention {
	if s.active {
		return mention.ExtractExcept(s.text, s.token)
	}
	return mention.Extract(s.text)
}

func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MaxLength - utf8.RuneCountInString(s.text)
}

// AttachImage starts reading f and replaces any previous attachment. The
// returned channel yields the outcome once; if the attach is superseded by a
// later AttachImage, RemoveImage or Discard, it closes without a value and
// the result is dropped.
func (s *Session) AttachImage(f media.File) (<-chan media.Result, error) {
	if s.kind == KindReply {
		return nil, ErrImageNotAllowed
	}

	s.mu.Lock()
	s.supersedeLocked()
	s.image = ""
	gen := s.gen
	done := make(chan struct{})
	s.pending = done
	s.mu.Unlock()

	src := media.Ingest(f, s.deps.MaxImageBytes)
	out := make(chan media.Result, 1)

	go func() {
		defer close(out)
		res := <-src

		s.mu.Lock()
		current := s.gen == gen
		if current {
			if res.Err == nil {
				s.image = res.DataURI
			}
			s.pending = nil
			close(done)
		}
		s.mu.Unlock()

		if !current {
			log.Debugf("[COMPOSE] discarded superseded image %s", f.Name)
			return
		}
		if res.Err != nil {
			log.Infof("[COMPOSE] image rejected %s: %v", f.Name, res.Err)
		}
		out <- res
	}()

	return out, nil
}

func (s *Session) RemoveImage() {
	s.mu.Lock()
	s.supersedeLocked()
	s.image = ""
	s.mu.Unlock()
}

// supersedeLocked invalidates any in-flight attach and releases its waiters.
func (s *Session) supersedeLocked() {
	s.gen++
	if s.pending != nil {
		close(s.pending)
		s.pending = nil
	}
}

// Submit waits for a pending image, validates the draft and hands it to the
// Poster. On success, including a result that was not persisted, the draft
// resets. If ctx ends first the draft is kept and ErrImagePending returned.
func (s *Session) Submit(ctx context.Context) (Submission, error) {
	s.mu.Lock()
	for s.pending != nil {
		wait := s.pending
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return Submission{}, fmt.Errorf("%w: %w", ErrImagePending, ctx.Err())
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	content := strings.TrimSpace(s.text)
	if content == "" && s.image == "" {
		return Submission{}, ErrEmptyDraft
	}
	if utf8.RuneCountInString(s.text) > MaxLength {
		return Submission{}, ErrTooLong
	}

	sub := Submission{Kind: s.kind}
	var err error
	switch s.kind {
	case KindPost:
		var p models.Post
		p, err = s.deps.Poster.CreatePost(ctx, content, s.image, s.author)
		sub.Post = &p
	case KindQuote:
		var p models.Post
		p, err = s.deps.Poster.AddQuoteTweet(ctx, content, s.image, s.original, s.author)
		sub.Post = &p
	case KindReply:
		var r models.Reply
		r, err = s.deps.Poster.AddReply(ctx, content, s.parentID, s.author)
		sub.Reply = &r
	default:
		return Submission{}, ErrUnknownKind
	}
	if err != nil && !errors.Is(err, services.ErrNotPersisted) {
		return Submission{}, err
	}

	s.resetLocked()
	return sub, err
}

// Discard drops the draft, as when the editor is closed.
func (s *Session) Discard() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *Session) resetLocked() {
	s.supersedeLocked()
	s.text = ""
	s.cursor = 0
	s.image = ""
	s.active = false
	s.token = mention.Token{}
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Draft{
		Kind:         s.kind,
		Text:         s.text,
		Cursor:       s.cursor,
		Image:        s.image,
		ImagePending: s.pending != nil,
		Mentions:     s.mentionsLocked(),
		Remaining:    MaxLength - utf8.RuneCountInString(s.text),
		Segments:     mention.Render(s.text),
	}
	d.Mention = MentionState{Suggestions: []mention.Candidate{}}
	if s.active {
		d.Mention = MentionState{Active: true, Query: s.token.Query, Suggestions: s.suggest(s.token.Query)}
	}
	return d
}
