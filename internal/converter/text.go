package converter

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

func (c *Converter) convertText(data []byte, contentType models.ContentType) Result {
	text, err := decodeText(data)
	if err != nil {
		return failed(contentType, "could not decode text: "+err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return failed(contentType, "input contains no text")
	}
	return converted(text, contentType)
}

// decodeText normalizes bytes to UTF-8. UTF-16 inputs are recognized by BOM,
// anything that is not valid UTF-8 is read as Latin-1, which cannot fail.
func decodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", err
		}
		return normalizeNewlines(string(out)), nil
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if !utf8.Valid(data) {
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return normalizeNewlines(string(out)), nil
	}
	return normalizeNewlines(string(data)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
