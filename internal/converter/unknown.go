package converter

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

// convertUnknown is the best-effort path for inputs no other branch claimed.
// HTML gets its visible text pulled out, other text-like content is decoded
// as-is; both come back partially converted since structure may be lost.
func (c *Converter) convertUnknown(data []byte) Result {
	detected := mimetype.Detect(data)

	if detected.Is("text/html") || detected.Is("text/xml") {
		text, err := extractHTMLText(data)
		if err == nil && strings.TrimSpace(text) != "" {
			return partial(text, models.ContentTypeUnknown, "treated unrecognized input as html")
		}
	}

	if strings.HasPrefix(detected.String(), "text/") {
		text, err := decodeText(data)
		if err == nil && strings.TrimSpace(text) != "" {
			return partial(text, models.ContentTypeUnknown, "treated unrecognized input as plain text")
		}
	}

	return failed(models.ContentTypeUnknown, "unsupported content type "+detected.String())
}

func extractHTMLText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("title, h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(parts, "\n"), nil
}
