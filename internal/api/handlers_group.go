package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sable-im/sable/internal/apperr"
)

func (h *Handlers) createGroup(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	g, err := h.Groups.Create(c.Context(), callerID(c), req.Name, req.Description)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusCreated, g)
}

func (h *Handlers) getGroup(c *fiber.Ctx) error {
	g, members, err := h.Groups.Get(c.Context(), callerID(c), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"group": g, "members": members})
}

func (h *Handlers) updateGroup(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	g, err := h.Groups.Update(c.Context(), callerID(c), c.Params("id"), req.Name, req.Description, req.AvatarURL)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, g)
}

func (h *Handlers) deleteGroup(c *fiber.Ctx) error {
	if err := h.Groups.Delete(c.Context(), callerID(c), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}

func (h *Handlers) addMember(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return respondErr(c, apperr.ErrBadRequest)
	}
	if err := h.Groups.AddMember(c.Context(), callerID(c), c.Params("id"), req.UserID, req.Role); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusCreated, nil)
}

func (h *Handlers) removeMember(c *fiber.Ctx) error {
	if err := h.Groups.RemoveMember(c.Context(), callerID(c), c.Params("id"), c.Params("user_id")); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}

func (h *Handlers) setRole(c *fiber.Ctx) error {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	if err := h.Groups.SetRole(c.Context(), callerID(c), c.Params("id"), c.Params("user_id"), req.Role); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}

func (h *Handlers) leaveGroup(c *fiber.Ctx) error {
	if err := h.Groups.Leave(c.Context(), callerID(c), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}
