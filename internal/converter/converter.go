package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
)

// Input is one raw document to convert: bytes plus whatever naming or MIME
// hints the caller has.
type Input struct {
	FileName     string
	Data         []byte
	DeclaredMIME string
}

// Result is the conversion outcome. Message carries the human-readable cause
// whenever Status is not ConversionConverted; the orchestrator attaches it to
// the document's error message.
type Result struct {
	Text        string
	ContentType models.ContentType
	Status      models.ConversionStatus
	Message     string
}

type Config struct {
	OCRLanguages           []string
	OCRConfidenceThreshold float64
	MaxPDFPages            int
}

// Converter maps raw input to plain text. It only reads the given bytes;
// errors never escape its boundary, they become a failed Result.
type Converter struct {
	cfg Config
}

func New(cfg Config) *Converter {
	if len(cfg.OCRLanguages) == 0 {
		cfg.OCRLanguages = []string{"eng"}
	}
	if cfg.OCRConfidenceThreshold == 0 {
		cfg.OCRConfidenceThreshold = 60
	}
	if cfg.MaxPDFPages == 0 {
		cfg.MaxPDFPages = 500
	}
	return &Converter{cfg: cfg}
}

func (c *Converter) Convert(ctx context.Context, input Input) (result Result) {
	// Some format parsers panic on malformed files; the contract is that
	// nothing raises past this boundary.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Conversion panicked",
				zap.String("file_name", input.FileName),
				zap.Any("panic", r),
			)
			contentType := result.ContentType
			if contentType == "" {
				contentType = models.ContentTypeUnknown
			}
			result = failed(contentType, fmt.Sprintf("conversion panicked: %v", r))
		}
	}()

	if len(input.Data) == 0 {
		return failed(models.ContentTypeUnknown, "empty input")
	}

	contentType := c.classify(input)
	result.ContentType = contentType

	logger.Debug("Converting input",
		zap.String("file_name", input.FileName),
		zap.String("content_type", string(contentType)),
		zap.Int("bytes", len(input.Data)),
	)

	switch contentType {
	case models.ContentTypeText, models.ContentTypeMarkdown:
		return c.convertText(input.Data, contentType)
	case models.ContentTypePDF:
		return c.convertPDF(ctx, input.Data)
	case models.ContentTypeWord:
		return c.convertWord(input.Data)
	case models.ContentTypeImage:
		return c.convertImage(ctx, input.Data)
	case models.ContentTypeRichText:
		return c.convertRichText(input.Data)
	default:
		return c.convertUnknown(input.Data)
	}
}

// classify picks the content type from the file extension first, then the
// declared MIME, then content sniffing.
func (c *Converter) classify(input Input) models.ContentType {
	ext := strings.ToLower(filepath.Ext(input.FileName))
	switch ext {
	case ".txt", ".text", ".log":
		return models.ContentTypeText
	case ".md", ".markdown":
		return models.ContentTypeMarkdown
	case ".pdf":
		return models.ContentTypePDF
	case ".doc", ".docx":
		return models.ContentTypeWord
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return models.ContentTypeImage
	case ".rtf":
		return models.ContentTypeRichText
	}

	if t := mimeToContentType(input.DeclaredMIME); t != models.ContentTypeUnknown {
		return t
	}

	return mimeToContentType(mimetype.Detect(input.Data).String())
}

func mimeToContentType(mime string) models.ContentType {
	if mime == "" {
		return models.ContentTypeUnknown
	}
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))

	switch {
	case mime == "application/pdf":
		return models.ContentTypePDF
	case mime == "text/markdown":
		return models.ContentTypeMarkdown
	case mime == "text/rtf", mime == "application/rtf":
		return models.ContentTypeRichText
	case mime == "application/msword",
		mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return models.ContentTypeWord
	case strings.HasPrefix(mime, "image/"):
		return models.ContentTypeImage
	case mime == "text/plain":
		return models.ContentTypeText
	default:
		return models.ContentTypeUnknown
	}
}

func converted(text string, contentType models.ContentType) Result {
	return Result{Text: text, ContentType: contentType, Status: models.ConversionConverted}
}

func partial(text string, contentType models.ContentType, message string) Result {
	return Result{Text: text, ContentType: contentType, Status: models.ConversionPartial, Message: message}
}

func failed(contentType models.ContentType, message string) Result {
	return Result{ContentType: contentType, Status: models.ConversionFailed, Message: message}
}
