package models

import "time"

type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypePDF      ContentType = "pdf"
	ContentTypeImage    ContentType = "image"
	ContentTypeWord     ContentType = "word"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeRichText ContentType = "richtext"
	ContentTypeUnknown  ContentType = "unknown"
)

type ConversionStatus string

const (
	ConversionConverted ConversionStatus = "converted"
	ConversionPartial   ConversionStatus = "partially_converted"
	ConversionFailed    ConversionStatus = "failed"
)

// Document is the artifact produced by one pipeline run. It is created by the
// orchestrator, mutated in place as stages complete, and immutable once
// returned to the caller.
type Document struct {
	ID               string           `json:"id"`
	FileName         string           `json:"file_name"`
	ContentType      ContentType      `json:"content_type"`
	ConversionStatus ConversionStatus `json:"conversion_status"`
	RawText          string           `json:"raw_text,omitempty"`
	Description      string           `json:"description,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	Entities         []EntityRef      `json:"entities"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// EntityRef is the reference a Document keeps to a resolved entity that
// exists in the graph at the time the Document is returned.
type EntityRef struct {
	EntityID string     `json:"entity_id"`
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
}
