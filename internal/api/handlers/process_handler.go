package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/pipeline"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

// ProcessHandler exposes the pipeline over HTTP. Every successful call,
// including degraded and failed conversions, returns the resulting Document;
// only structural problems with the request itself are errors.
type ProcessHandler struct {
	pipeline *pipeline.Pipeline
}

func NewProcessHandler(p *pipeline.Pipeline) *ProcessHandler {
	return &ProcessHandler{pipeline: p}
}

func (h *ProcessHandler) ProcessText(c *fiber.Ctx) error {
	var req struct {
		Text         string `json:"text"`
		Instructions string `json:"instructions"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	doc, err := h.pipeline.ProcessText(c.Context(), req.Text, req.Instructions)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Text is required",
			})
		}
		logger.Error("Failed to process text", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process text",
		})
	}

	return c.JSON(doc)
}

func (h *ProcessHandler) ProcessFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A file upload is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not read uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read uploaded file", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Could not read uploaded file",
		})
	}

	doc, err := h.pipeline.ProcessFile(
		c.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
		c.FormValue("instructions"),
	)
	if err != nil {
		logger.Error("Failed to process file",
			zap.String("file_name", fileHeader.Filename),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process file",
		})
	}

	return c.JSON(doc)
}
