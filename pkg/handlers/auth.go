package handlers

import (
	"strings"

	"chirp/pkg/media"
	"chirp/pkg/middleware"
	"chirp/pkg/models"
	"chirp/pkg/services"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

type AuthHandler struct {
	auth          services.AuthService
	maxImageBytes int64
}

func NewAuth(auth services.AuthService, maxImageBytes int64) *AuthHandler {
	return &AuthHandler{auth: auth, maxImageBytes: maxImageBytes}
}

func (ah *AuthHandler) Signup(c *fiber.Ctx) error {
	var req models.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid JSON"})
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	resp, err := ah.auth.Signup(c.UserContext(), req)
	if !kept(c, err) {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (ah *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid JSON"})
	}
	req.Email = strings.TrimSpace(req.Email)

	resp, err := ah.auth.Login(c.UserContext(), req)
	if !kept(c, err) {
		if statusFor(err) == fiber.StatusUnauthorized {
			log.Infof("[AUTH] failed login email=%s ip=%s", req.Email, c.IP())
		}
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (ah *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := ah.auth.Logout(c.UserContext()); !kept(c, err) {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

func (ah *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := ah.auth.User(middleware.UserID(c))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"erro": "user not found"})
	}
	return c.JSON(user)
}

func (ah *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var upd models.ProfileUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"erro": "invalid JSON"})
	}
	if err := ah.readAvatar(c, &upd); err != nil {
		return fail(c, err)
	}

	user, err := ah.auth.UpdateProfile(c.UserContext(), middleware.UserID(c), upd)
	if !kept(c, err) {
		return fail(c, err)
	}
	return c.JSON(user)
}

// readAvatar replaces upd.Avatar with the multipart "avatar" file, when one
// was sent, encoded as a data URI.
func (ah *AuthHandler) readAvatar(c *fiber.Ctx, upd *models.ProfileUpdate) error {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		return nil
	}
	if ah.maxImageBytes > 0 && fh.Size > ah.maxImageBytes {
		return services.ValidationErrors{"avatar": services.AvatarMessage(media.ErrTooLarge, ah.maxImageBytes)}
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	uri, err := media.ReadAsDataURI(media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	}, ah.maxImageBytes)
	if err != nil {
		return services.ValidationErrors{"avatar": services.AvatarMessage(err, ah.maxImageBytes)}
	}
	upd.Avatar = uri
	return nil
}
