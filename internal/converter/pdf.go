package converter

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

const pdfPageWorkers = 4

func (c *Converter) convertPDF(ctx context.Context, data []byte) Result {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return failed(models.ContentTypePDF, "could not open pdf: "+err.Error())
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return failed(models.ContentTypePDF, "pdf has no pages")
	}
	truncated := false
	if numPages > c.cfg.MaxPDFPages {
		numPages = c.cfg.MaxPDFPages
		truncated = true
	}

	// Pages land in their own slot so the output keeps document order
	// regardless of which worker finishes first.
	pages := make([]string, numPages)
	failedPages := make([]bool, numPages)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pdfPageWorkers)
	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			page := pdfReader.Page(pageNum)
			if page.V.IsNull() {
				failedPages[pageNum-1] = true
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				failedPages[pageNum-1] = true
				return nil
			}
			pages[pageNum-1] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failed(models.ContentTypePDF, "pdf extraction aborted: "+err.Error())
	}

	var (
		out       strings.Builder
		badPages  int
		extracted int
	)
	for i, text := range pages {
		if failedPages[i] {
			badPages++
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(strings.TrimSpace(text))
		extracted++
	}

	text := normalizeNewlines(out.String())
	if strings.TrimSpace(text) == "" {
		return failed(models.ContentTypePDF, "no extractable text in pdf")
	}
	if badPages > 0 {
		return partial(text, models.ContentTypePDF,
			fmt.Sprintf("extracted %d pages, %d pages unreadable", extracted, badPages))
	}
	if truncated {
		return partial(text, models.ContentTypePDF,
			fmt.Sprintf("pdf truncated to first %d pages", c.cfg.MaxPDFPages))
	}
	return converted(text, models.ContentTypePDF)
}
