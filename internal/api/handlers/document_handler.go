package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/storage/sqlite"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

type DocumentHandler struct {
	archive *sqlite.Client
}

func NewDocumentHandler(archive *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{archive: archive}
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document id is required",
		})
	}

	doc, err := h.archive.GetDocument(id)
	if err != nil {
		logger.Error("Failed to load document", zap.String("doc_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}
	if doc == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	return c.JSON(doc)
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	docs, err := h.archive.ListDocuments(limit)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}
