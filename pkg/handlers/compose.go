package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"time"

	"chirp/pkg/compose"
	"chirp/pkg/envelope"
	"chirp/pkg/hub"
	"chirp/pkg/media"
	"chirp/pkg/mention"
	"chirp/pkg/services"

	log "github.com/sirupsen/logrus"
)

// ComposeHandler serves live composer sessions over the hub socket. Each
// connection owns its sessions; nothing is broadcast.
type ComposeHandler struct {
	hub           *hub.Hub
	posts         services.PostStore
	auth          services.AuthService
	maxImageBytes int64
	submitTimeout time.Duration
}

func NewCompose(h *hub.Hub, posts services.PostStore, auth services.AuthService, maxImageBytes int64) *ComposeHandler {
	return &ComposeHandler{
		hub:           h,
		posts:         posts,
		auth:          auth,
		maxImageBytes: maxImageBytes,
		submitTimeout: submitTimeout,
	}
}

func (ch *ComposeHandler) RegisterActions() {
	ch.hub.On("compose.open", ch.open)
	ch.hub.On("compose.input", ch.input)
	ch.hub.On("compose.select", ch.selectMention)
	ch.hub.On("compose.mention.close", ch.closeMention)
	ch.hub.On("compose.image", ch.attachImage)
	ch.hub.On("compose.image.remove", ch.removeImage)
	ch.hub.On("compose.submit", ch.submit)
	ch.hub.On("compose.close", ch.close)
}

type composerRef struct {
	ComposerID string `json:"composerId"`
}

func (ch *ComposeHandler) open(c *hub.Client, env envelope.Envelope) {
	if !c.Authenticated() {
		c.ReplyError(env, 401, "login required")
		return
	}
	type openReq struct {
		Kind     compose.Kind `json:"kind"`
		TargetID int64        `json:"targetId"`
	}
	req, err := envelope.ParseData[openReq](env)
	if err != nil {
		c.ReplyError(env, 400, "invalid data")
		return
	}

	deps := compose.Deps{Poster: ch.posts, Directory: ch.auth, MaxImageBytes: ch.maxImageBytes}
	var s *compose.Session
	switch req.Kind {
	case compose.KindPost, "":
		s = compose.NewPost(deps, c.User())
	case compose.KindQuote:
		original, err := ch.posts.Get(req.TargetID, c.User().ID)
		if err == nil {
			s, err = compose.NewQuote(deps, c.User(), original)
		}
		if err != nil {
			c.ReplyError(env, statusFor(err), err.Error())
			return
		}
	case compose.KindReply:
		if _, err := ch.posts.Get(req.TargetID, c.User().ID); err != nil {
			c.ReplyError(env, statusFor(err), err.Error())
			return
		}
		s = compose.NewReply(deps, c.User(), req.TargetID)
	default:
		c.ReplyError(env, 400, compose.ErrUnknownKind.Error())
		return
	}

	id := c.Open(s)
	log.Debugf("[COMPOSE] opened %s kind=%s user=%s", id, s.Kind(), c.User().Username)
	c.Reply(env, map[string]interface{}{"composerId": id, "draft": s.Draft()})
}

// session resolves the composer named in env, replying with an error when
// it does not exist.
func session[T any](c *hub.Client, env envelope.Envelope) (*compose.Session, T, string, bool) {
	var zero T
	ref, err := envelope.ParseData[composerRef](env)
	if err != nil {
		c.ReplyError(env, 400, "invalid data")
		return nil, zero, "", false
	}
	data, err := envelope.ParseData[T](env)
	if err != nil {
		c.ReplyError(env, 400, "invalid data")
		return nil, zero, "", false
	}
	s, ok := c.Session(ref.ComposerID)
	if !ok {
		c.ReplyError(env, 404, "composer not found")
		return nil, zero, "", false
	}
	return s, data, ref.ComposerID, true
}

func (ch *ComposeHandler) input(c *hub.Client, env envelope.Envelope) {
	type inputReq struct {
		Text   string `json:"text"`
		Cursor int    `json:"cursor"`
	}
	s, req, id, ok := session[inputReq](c, env)
	if !ok {
		return
	}

	// Cursors and mention offsets cross the socket as UTF-16 code units.
	state := s.SetText(req.Text, mention.ByteOffset(req.Text, req.Cursor))
	c.Reply(env, map[string]interface{}{
		"composerId": id,
		"mention":    state,
		"mentions":   mention.UTF16Mentions(req.Text, s.Mentions()),
		"remaining":  s.Remaining(),
	})
}

func (ch *ComposeHandler) selectMention(c *hub.Client, env envelope.Envelope) {
	type selectReq struct {
		Username string `json:"username"`
	}
	s, req, id, ok := session[selectReq](c, env)
	if !ok {
		return
	}

	text, cursor, err := s.SelectMention(req.Username)
	if err != nil {
		c.ReplyError(env, statusFor(err), err.Error())
		return
	}
	c.Reply(env, map[string]interface{}{"composerId": id, "text": text, "cursor": mention.UTF16Offset(text, cursor)})
}

func (ch *ComposeHandler) closeMention(c *hub.Client, env envelope.Envelope) {
	s, _, id, ok := session[struct{}](c, env)
	if !ok {
		return
	}
	s.CloseMention()
	c.Reply(env, composerRef{ComposerID: id})
}

func (ch *ComposeHandler) attachImage(c *hub.Client, env envelope.Envelope) {
	type imageReq struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
		Data        string `json:"data"`
	}
	s, req, id, ok := session[imageReq](c, env)
	if !ok {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.ReplyError(env, 400, "image data must be base64")
		return
	}
	results, err := s.AttachImage(media.File{Name: req.Name, ContentType: req.ContentType, Reader: bytes.NewReader(raw)})
	if err != nil {
		c.ReplyError(env, statusFor(err), err.Error())
		return
	}
	c.Reply(env, map[string]interface{}{"composerId": id, "pending": true})

	go func() {
		res, ok := <-results
		if !ok {
			return
		}
		event := map[string]interface{}{"composerId": id, "ok": res.Err == nil}
		if res.Err != nil {
			event["error"] = res.Err.Error()
		}
		c.Push("compose.image.done", event)
	}()
}

func (ch *ComposeHandler) removeImage(c *hub.Client, env envelope.Envelope) {
	s, _, id, ok := session[struct{}](c, env)
	if !ok {
		return
	}
	s.RemoveImage()
	c.Reply(env, composerRef{ComposerID: id})
}

func (ch *ComposeHandler) submit(c *hub.Client, env envelope.Envelope) {
	s, _, id, ok := session[struct{}](c, env)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ch.submitTimeout)
	defer cancel()

	sub, err := s.Submit(ctx)
	if err != nil && !errors.Is(err, services.ErrNotPersisted) {
		c.ReplyError(env, statusFor(err), err.Error())
		return
	}
	c.Reply(env, map[string]interface{}{
		"composerId": id,
		"submission": sub,
		"persisted":  err == nil,
	})
}

func (ch *ComposeHandler) close(c *hub.Client, env envelope.Envelope) {
	ref, err := envelope.ParseData[composerRef](env)
	if err != nil {
		c.ReplyError(env, 400, "invalid data")
		return
	}
	c.Reply(env, map[string]interface{}{"composerId": ref.ComposerID, "closed": c.Close(ref.ComposerID)})
}
