package api

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/sable-im/sable/internal/apperr"
)

// uploadMedia accepts a multipart form with a single "file" part.
func (h *Handlers) uploadMedia(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	f, err := fileHeader.Open()
	if err != nil {
		return respondErr(c, apperr.ErrBadRequest)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return respondErr(c, err)
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	m, err := h.Media.Upload(c.Context(), callerID(c), fileHeader.Filename, contentType, data)
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusCreated, m)
}

func (h *Handlers) mediaURL(c *fiber.Ctx) error {
	url, err := h.Media.DownloadURL(c.Context(), callerID(c), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{"url": url})
}
