package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

func (c *Converter) convertImage(ctx context.Context, data []byte) Result {
	if err := ctx.Err(); err != nil {
		return failed(models.ContentTypeImage, "ocr aborted: "+err.Error())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return failed(models.ContentTypeImage, "could not decode image: "+err.Error())
	}

	text, confidence, err := c.runOCR(preprocessForOCR(img))
	if err != nil {
		return failed(models.ContentTypeImage, "ocr failed: "+err.Error())
	}
	text = normalizeNewlines(strings.TrimSpace(text))
	if text == "" {
		return failed(models.ContentTypeImage, "ocr produced no text")
	}
	if confidence < c.cfg.OCRConfidenceThreshold {
		logger.Debug("Low-confidence OCR result",
			zap.Float64("confidence", confidence),
			zap.Float64("threshold", c.cfg.OCRConfidenceThreshold),
		)
		return partial(text, models.ContentTypeImage,
			fmt.Sprintf("ocr confidence %.1f below threshold %.1f", confidence, c.cfg.OCRConfidenceThreshold))
	}
	return converted(text, models.ContentTypeImage)
}

// preprocessForOCR flattens the image to grayscale and boosts contrast, which
// helps tesseract on photographed or scanned pages.
func preprocessForOCR(img image.Image) image.Image {
	return imaging.AdjustContrast(imaging.Grayscale(img), 20)
}

// runOCR returns the recognized text and the mean per-word confidence.
// A tesseract client is not safe for concurrent use, so each call gets its own.
func (c *Converter) runOCR(img image.Image) (string, float64, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Join(c.cfg.OCRLanguages, "+")); err != nil {
		return "", 0, fmt.Errorf("set language: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 100}); err != nil {
		return "", 0, fmt.Errorf("encode image: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("recognize: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil || len(boxes) == 0 {
		// Text without per-word confidence still counts, confidence 0 lets
		// the threshold downgrade it to partial.
		return text, 0, nil
	}

	var total float64
	for _, box := range boxes {
		total += box.Confidence
	}
	return text, total / float64(len(boxes)), nil
}
