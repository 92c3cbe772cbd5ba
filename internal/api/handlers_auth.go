package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sable-im/sable/internal/apperr"
)

func (h *Handlers) signUp(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	if req.Email == "" || req.Password == "" {
		return respondErr(c, apperr.ErrBadRequest)
	}
	sess, err := h.Identity.SignUp(c.Context(), req.Email, req.Password)
	if err != nil {
		return respondErr(c, err)
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = req.Email
	}
	profile, err := h.Profiles.Upsert(c.Context(), sess.User.ID, sess.User.Email, name)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"session": sess, "profile": profile})
}

func (h *Handlers) signIn(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	sess, err := h.Identity.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		return respondErr(c, err)
	}
	profile, err := h.Profiles.Upsert(c.Context(), sess.User.ID, sess.User.Email, sess.User.Email)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"session": sess, "profile": profile})
}

func (h *Handlers) signOut(c *fiber.Ctx) error {
	hdr := c.Get("Authorization")
	const pref = "Bearer "
	if !strings.HasPrefix(hdr, pref) {
		return respondErr(c, apperr.ErrUnauthorized)
	}
	if err := h.Identity.SignOut(c.Context(), hdr[len(pref):]); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}
