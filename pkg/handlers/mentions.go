package handlers

import (
	"chirp/pkg/mention"
	"chirp/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type MentionHandler struct {
	auth services.AuthService
}

func NewMentions(auth services.AuthService) *MentionHandler {
	return &MentionHandler{auth: auth}
}

// Suggest serves GET /mentions/suggest?q=.
func (mh *MentionHandler) Suggest(c *fiber.Ctx) error {
	return c.JSON(mention.Match(c.Query("q"), mh.auth.Candidates()))
}

// Render serves POST /mentions/render, giving the segments and mentions of
// arbitrary text. Mention offsets are UTF-16 code units.
func (mh *MentionHandler) Render(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid JSON"})
	}

	segments := mention.Render(req.Text)
	if segments == nil {
		segments = []mention.Segment{}
	}
	return c.JSON(fiber.Map{
		"segments": segments,
		"mentions": mention.UTF16Mentions(req.Text, mention.Extract(req.Text)),
	})
}
