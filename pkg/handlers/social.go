package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"chirp/pkg/compose"
	"chirp/pkg/media"
	"chirp/pkg/middleware"
	"chirp/pkg/models"
	"chirp/pkg/services"

	"github.com/gofiber/fiber/v2"
)

const submitTimeout = 10 * time.Second

type SocialHandler struct {
	posts         services.PostStore
	auth          services.AuthService
	maxImageBytes int64
}

func NewSocial(posts services.PostStore, auth services.AuthService, maxImageBytes int64) *SocialHandler {
	return &SocialHandler{posts: posts, auth: auth, maxImageBytes: maxImageBytes}
}

func (s *SocialHandler) deps() compose.Deps {
	return compose.Deps{Poster: s.posts, Directory: s.auth, MaxImageBytes: s.maxImageBytes}
}

func (s *SocialHandler) author(c *fiber.Ctx) (models.Author, bool) {
	user, ok := s.auth.User(middleware.UserID(c))
	if !ok {
		return models.Author{}, false
	}
	return user.Snapshot(), true
}

func postID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *SocialHandler) Feed(c *fiber.Ctx) error {
	return c.JSON(s.posts.Feed(middleware.UserID(c)))
}

func (s *SocialHandler) Get(c *fiber.Ctx) error {
	id, ok := postID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid id"})
	}
	p, err := s.posts.Get(id, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

type draftBody struct {
	Content string `json:"content" form:"content"`
}

// fillDraft reads content, and for multipart bodies the "image" file, into
// session. Images are read to completion by Submit.
func (s *SocialHandler) fillDraft(c *fiber.Ctx, session *compose.Session) (bool, error) {
	var body draftBody
	if err := c.BodyParser(&body); err != nil {
		return false, fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	session.SetText(body.Content, len(body.Content))

	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return false, nil
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return false, nil
	}
	if s.maxImageBytes > 0 && fh.Size > s.maxImageBytes {
		return false, media.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return false, err
	}

	ch, err := session.AttachImage(media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	})
	if err != nil {
		f.Close()
		return false, err
	}
	go func() {
		<-ch
		f.Close()
	}()
	return true, nil
}

func (s *SocialHandler) submit(c *fiber.Ctx, session *compose.Session) error {
	defer session.Discard()

	imageSent, err := s.fillDraft(c, session)
	if err != nil {
		return fail(c, err)
	}

	// Submit waits for the attached image, so a rejected file surfaces here
	// as an empty image slot.
	ctx, cancel := context.WithTimeout(c.UserContext(), submitTimeout)
	defer cancel()

	sub, err := session.Submit(ctx)
	if !kept(c, err) {
		return fail(c, err)
	}
	if imageSent && sub.Post != nil && sub.Post.Image == "" {
		c.Set(middleware.HeaderImageRejected, "true")
	}

	if sub.Reply != nil {
		return c.Status(fiber.StatusCreated).JSON(sub.Reply)
	}
	return c.Status(fiber.StatusCreated).JSON(sub.Post)
}

func (s *SocialHandler) Create(c *fiber.Ctx) error {
	author, ok := s.author(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"erro": "user not found"})
	}
	return s.submit(c, compose.NewPost(s.deps(), author))
}

func (s *SocialHandler) Quote(c *fiber.Ctx) error {
	author, ok := s.author(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"erro": "user not found"})
	}
	id, ok := postID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid id"})
	}
	original, err := s.posts.Get(id, author.ID)
	if err != nil {
		return fail(c, err)
	}

	session, err := compose.NewQuote(s.deps(), author, original)
	if err != nil {
		return fail(c, err)
	}
	return s.submit(c, session)
}

func (s *SocialHandler) Reply(c *fiber.Ctx) error {
	author, ok := s.author(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"erro": "user not found"})
	}
	id, ok := postID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid id"})
	}
	return s.submit(c, compose.NewReply(s.deps(), author, id))
}

func (s *SocialHandler) Like(c *fiber.Ctx) error {
	return s.toggle(c, s.posts.ToggleLike)
}

func (s *SocialHandler) Retweet(c *fiber.Ctx) error {
	return s.toggle(c, s.posts.ToggleRetweet)
}

func (s *SocialHandler) toggle(c *fiber.Ctx, fn func(context.Context, int64, string) (models.Engagement, error)) error {
	id, ok := postID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid id"})
	}

	e, err := fn(c.UserContext(), id, middleware.UserID(c))
	if !kept(c, err) {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"id":        id,
		"likes":     e.Likes,
		"liked":     e.Liked,
		"retweets":  e.Retweets,
		"retweeted": e.Retweeted,
	})
}

func (s *SocialHandler) Delete(c *fiber.Ctx) error {
	id, ok := postID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid id"})
	}
	if err := s.posts.Delete(c.UserContext(), id, middleware.UserID(c)); !kept(c, err) {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
