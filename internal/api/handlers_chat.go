package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sable-im/sable/internal/apperr"
)

func (h *Handlers) listContacts(c *fiber.Ctx) error {
	rows, err := h.Roster.Contacts(c.Context(), callerID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, rows)
}

func (h *Handlers) listGroups(c *fiber.Ctx) error {
	rows, err := h.Roster.Groups(c.Context(), callerID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, rows)
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
		MediaID    string `json:"media_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	msg, err := h.Chat.SendDirect(c.Context(), callerID(c), req.ReceiverID, req.Content, req.MediaID)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusCreated, msg)
}

func (h *Handlers) directHistory(c *fiber.Ctx) error {
	before := parseBefore(c)
	limit := int64(c.QueryInt("limit", 50))
	msgs, err := h.Chat.DirectHistory(c.Context(), callerID(c), c.Params("peer_id"), before, limit)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, msgs)
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	if err := h.Chat.MarkRead(c.Context(), callerID(c), c.Params("msg_id")); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}

func (h *Handlers) sendGroupMessage(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
		MediaID string `json:"media_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	msg, err := h.Chat.SendGroup(c.Context(), callerID(c), c.Params("id"), req.Content, req.MediaID)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusCreated, msg)
}

func (h *Handlers) groupHistory(c *fiber.Ctx) error {
	before := parseBefore(c)
	limit := int64(c.QueryInt("limit", 50))
	msgs, err := h.Chat.GroupHistory(c.Context(), callerID(c), c.Params("id"), before, limit)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, msgs)
}

func (h *Handlers) markGroupRead(c *fiber.Ctx) error {
	var req struct {
		At time.Time `json:"at"`
	}
	_ = c.BodyParser(&req)
	if err := h.Chat.MarkGroupRead(c.Context(), callerID(c), c.Params("id"), req.At); err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, nil)
}

func parseBefore(c *fiber.Ctx) time.Time {
	if v := c.Query("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
