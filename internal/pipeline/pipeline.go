package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fraga/KnowledgeNexus/internal/converter"
	"github.com/fraga/KnowledgeNexus/internal/extractor"
	"github.com/fraga/KnowledgeNexus/internal/metrics"
	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/internal/resolver"
	"github.com/fraga/KnowledgeNexus/pkg/logger"
	"github.com/fraga/KnowledgeNexus/pkg/utils"
)

// ErrEmptyInput is the one structural precondition: callers must hand over
// something to process. Everything past this point degrades instead of
// failing.
var ErrEmptyInput = errors.New("empty input")

// ExtractionCache lets identical text skip the extraction stage. Implemented
// by the redis client; nil disables caching.
type ExtractionCache interface {
	GetExtraction(ctx context.Context, textHash string) (*extractor.Extraction, bool, error)
	SetExtraction(ctx context.Context, textHash string, ext *extractor.Extraction) error
}

// Archive persists finished documents for later retrieval. Implemented by the
// sqlite client; nil disables archiving.
type Archive interface {
	InsertDocument(doc *models.Document) error
}

type Config struct {
	StageTimeoutSec int
	// ExtractorProvider namespaces cache keys so different extraction
	// backends never share cached results.
	ExtractorProvider string
}

// Pipeline drives one document through conversion, extraction and resolution.
// Each call produces exactly one Document; downstream stage failures downgrade
// the document rather than aborting the run.
type Pipeline struct {
	converter    *converter.Converter
	extractor    extractor.Extractor
	resolver     *resolver.Resolver
	cache        ExtractionCache
	archive      Archive
	stageTimeout time.Duration
	provider     string
}

func New(conv *converter.Converter, ext extractor.Extractor, res *resolver.Resolver, cfg Config) *Pipeline {
	timeout := time.Duration(cfg.StageTimeoutSec) * time.Second
	return &Pipeline{
		converter:    conv,
		extractor:    ext,
		resolver:     res,
		stageTimeout: timeout,
		provider:     cfg.ExtractorProvider,
	}
}

func (p *Pipeline) WithCache(cache ExtractionCache) *Pipeline {
	p.cache = cache
	return p
}

func (p *Pipeline) WithArchive(archive Archive) *Pipeline {
	p.archive = archive
	return p
}

// ProcessText runs pre-converted plain text through the pipeline. The
// conversion stage is skipped; the document starts out converted.
func (p *Pipeline) ProcessText(ctx context.Context, text, instructions string) (*models.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	doc := newDocument("")
	doc.ContentType = models.ContentTypeText
	doc.ConversionStatus = models.ConversionConverted
	doc.RawText = text

	degraded := p.runKnowledgeStages(ctx, doc, instructions)
	return p.finish(doc, degraded), nil
}

// ProcessFile converts raw bytes first and only moves on when conversion
// produced usable text. Conversion failure is a terminal, well-formed
// document, not an error.
func (p *Pipeline) ProcessFile(ctx context.Context, fileName, declaredMIME string, data []byte, instructions string) (*models.Document, error) {
	doc := newDocument(fileName)

	convCtx, cancel := p.stageContext(ctx)
	start := time.Now()
	result := p.converter.Convert(convCtx, converter.Input{
		FileName:     fileName,
		Data:         data,
		DeclaredMIME: declaredMIME,
	})
	cancel()
	metrics.StageDuration.WithLabelValues("convert").Observe(time.Since(start).Seconds())
	metrics.Conversions.WithLabelValues(string(result.ContentType), string(result.Status)).Inc()

	doc.ContentType = result.ContentType
	doc.ConversionStatus = result.Status

	if result.Status == models.ConversionFailed {
		doc.ErrorMessage = result.Message
		logger.Warn("Conversion failed",
			zap.String("doc_id", doc.ID),
			zap.String("file_name", fileName),
			zap.String("reason", result.Message),
		)
		return p.finish(doc, false), nil
	}

	doc.RawText = result.Text
	if result.Status == models.ConversionPartial {
		doc.ErrorMessage = result.Message
	}

	degraded := p.runKnowledgeStages(ctx, doc, instructions)
	return p.finish(doc, degraded), nil
}

// ProcessPath reads a file from disk and processes it. An unreadable path is
// a structural failure, the same class as empty text.
func (p *Pipeline) ProcessPath(ctx context.Context, path, instructions string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.ProcessFile(ctx, filepath.Base(path), "", data, instructions)
}

// runKnowledgeStages extracts candidates from the document's text and
// resolves them into the graph. Failures here leave the document degraded
// with whatever partial results still hold.
func (p *Pipeline) runKnowledgeStages(ctx context.Context, doc *models.Document, instructions string) bool {
	ext, err := p.extract(ctx, doc.RawText, instructions)
	if err != nil {
		appendError(doc, "extraction failed: "+err.Error())
		logger.Warn("Extraction failed, document degraded",
			zap.String("doc_id", doc.ID),
			zap.Error(err),
		)
		return true
	}

	doc.Description = ext.Description
	doc.Summary = ext.Summary

	if len(ext.Entities) == 0 {
		return false
	}

	for i := range ext.Entities {
		ext.Entities[i].SourceDocumentID = doc.ID
	}

	resCtx, cancel := p.stageContext(ctx)
	defer cancel()
	start := time.Now()
	result, err := p.resolver.Resolve(resCtx, doc.ID, ext.Entities, ext.Relationships)
	metrics.StageDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	if err != nil {
		// The transaction rolled back; no partial graph state exists for
		// this document.
		appendError(doc, "resolution failed: "+err.Error())
		logger.Warn("Resolution failed, document degraded",
			zap.String("doc_id", doc.ID),
			zap.Error(err),
		)
		return true
	}

	for i := range result.Entities {
		doc.Entities = append(doc.Entities, result.Entities[i].Ref())
	}
	return false
}

func (p *Pipeline) extract(ctx context.Context, text, instructions string) (*extractor.Extraction, error) {
	cacheKey := utils.HashString(p.provider + "\x00" + text + "\x00" + instructions)

	if p.cache != nil {
		cached, hit, err := p.cache.GetExtraction(ctx, cacheKey)
		if err != nil {
			logger.Warn("Extraction cache read failed", zap.Error(err))
		}
		if hit {
			metrics.ExtractionCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.ExtractionCache.WithLabelValues("miss").Inc()
	}

	extCtx, cancel := p.stageContext(ctx)
	defer cancel()
	start := time.Now()
	ext, err := p.extractor.Extract(extCtx, text, instructions)
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetExtraction(ctx, cacheKey, ext); err != nil {
			logger.Warn("Extraction cache write failed", zap.Error(err))
		}
	}
	return ext, nil
}

// finish archives the document and records its final outcome.
func (p *Pipeline) finish(doc *models.Document, degraded bool) *models.Document {
	if p.archive != nil {
		if err := p.archive.InsertDocument(doc); err != nil {
			logger.Error("Failed to archive document",
				zap.String("doc_id", doc.ID),
				zap.Error(err),
			)
		}
	}

	metrics.DocumentsProcessed.WithLabelValues(outcome(doc, degraded)).Inc()
	logger.Info("Document processed",
		zap.String("doc_id", doc.ID),
		zap.String("content_type", string(doc.ContentType)),
		zap.String("status", string(doc.ConversionStatus)),
		zap.Int("entities", len(doc.Entities)),
	)
	return doc
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout > 0 {
		return context.WithTimeout(ctx, p.stageTimeout)
	}
	return context.WithCancel(ctx)
}

func newDocument(fileName string) *models.Document {
	return &models.Document{
		ID:        uuid.NewString(),
		FileName:  fileName,
		Entities:  []models.EntityRef{},
		CreatedAt: time.Now().UTC(),
	}
}

func appendError(doc *models.Document, msg string) {
	if doc.ErrorMessage != "" {
		doc.ErrorMessage += "; " + msg
		return
	}
	doc.ErrorMessage = msg
}

func outcome(doc *models.Document, degraded bool) string {
	if doc.ConversionStatus == models.ConversionFailed {
		return "failed"
	}
	if degraded {
		return "degraded"
	}
	if doc.ConversionStatus == models.ConversionPartial {
		return "partially_converted"
	}
	return "processed"
}
