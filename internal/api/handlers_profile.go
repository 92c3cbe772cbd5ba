package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sable-im/sable/internal/apperr"
)

func (h *Handlers) me(c *fiber.Ctx) error {
	p, err := h.Profile.Get(c.Context(), callerID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, p)
}

func (h *Handlers) updateMe(c *fiber.Ctx) error {
	var req struct {
		DisplayName string `json:"display_name"`
		Bio         string `json:"bio"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	p, err := h.Profile.Update(c.Context(), callerID(c), req.DisplayName, req.Bio)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, p)
}

func (h *Handlers) setAvatar(c *fiber.Ctx) error {
	var req struct {
		MediaID string `json:"media_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.MediaID == "" {
		return respondErr(c, apperr.ErrBadRequest)
	}
	p, err := h.Profile.SetAvatar(c.Context(), callerID(c), req.MediaID)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, p)
}

func (h *Handlers) getProfile(c *fiber.Ctx) error {
	p, err := h.Profile.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, p)
}
