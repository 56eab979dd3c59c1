package converter

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

// word/document.xml larger than this is treated as malformed.
const wordXMLMax = 64 << 20

var excessNewlines = regexp.MustCompile(`\n{3,}`)

func (c *Converter) convertWord(data []byte) Result {
	text, err := extractDocx(data)
	if err != nil {
		return failed(models.ContentTypeWord, "could not parse word document: "+err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return failed(models.ContentTypeWord, "word document contains no text")
	}
	return converted(text, models.ContentTypeWord)
}

// extractDocx walks word/document.xml and keeps only text runs. Tracked
// deletions are skipped, table cells become tab-separated lines.
func extractDocx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("document.xml not found")
	}
	if docFile.UncompressedSize64 > wordXMLMax {
		return "", fmt.Errorf("document.xml too large: %d bytes", docFile.UncompressedSize64)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(io.LimitReader(rc, wordXMLMax))

	var (
		sb       strings.Builder
		inText   bool
		delDepth int
		inTable  bool
		cellIdx  int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "del":
				delDepth++
			case "t":
				inText = true
			case "tab":
				if delDepth == 0 {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if delDepth == 0 {
					sb.WriteByte('\n')
				}
			case "tbl":
				inTable = true
				cellIdx = 0
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteByte('\n')
				}
			case "tr":
				cellIdx = 0
			case "tc":
				if inTable && delDepth == 0 {
					if cellIdx > 0 {
						sb.WriteByte('\t')
					}
					cellIdx++
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "tr":
				if delDepth == 0 {
					sb.WriteByte('\n')
				}
			case "tbl":
				inTable = false
				if delDepth == 0 {
					sb.WriteByte('\n')
				}
			case "del":
				if delDepth > 0 {
					delDepth--
				}
			}

		case xml.CharData:
			if delDepth == 0 && inText {
				sb.Write(t)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	return excessNewlines.ReplaceAllString(text, "\n\n"), nil
}
