package converter

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

func (c *Converter) convertRichText(data []byte) Result {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte(`{\rtf`)) {
		return failed(models.ContentTypeRichText, "not an rtf document")
	}
	text := stripRTF(data)
	if strings.TrimSpace(text) == "" {
		return failed(models.ContentTypeRichText, "rtf document contains no text")
	}
	return converted(text, models.ContentTypeRichText)
}

// Destination groups whose contents are metadata, not body text.
var rtfSkipGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
	"field":      false,
}

// stripRTF walks the control stream and keeps plain text runs. It handles
// nested groups, \'hh hex escapes, \uN unicode escapes and the common
// paragraph and tab controls; everything else is dropped.
func stripRTF(data []byte) string {
	var (
		sb        strings.Builder
		skipDepth int
		depth     int
	)

	i := 0
	for i < len(data) {
		ch := data[i]
		switch ch {
		case '{':
			depth++
			i++
		case '}':
			if skipDepth > 0 && depth == skipDepth {
				skipDepth = 0
			}
			depth--
			i++
		case '\\':
			word, param, consumed := readControl(data[i:])
			i += consumed
			if skipDepth > 0 {
				continue
			}
			switch word {
			case "par", "line":
				sb.WriteByte('\n')
			case "tab", "cell":
				sb.WriteByte('\t')
			case "'":
				// Hex escapes carry the document's ANSI code page, assumed
				// to be 1252; the raw byte is not valid UTF-8.
				if b, err := strconv.ParseUint(param, 16, 8); err == nil {
					sb.WriteRune(charmap.Windows1252.DecodeByte(byte(b)))
				}
			case "u":
				if n, err := strconv.ParseInt(param, 10, 32); err == nil {
					if n < 0 {
						n += 65536
					}
					sb.WriteRune(rune(n))
					// The replacement character following \uN is for
					// readers without unicode support.
					if i < len(data) && data[i] != '\\' && data[i] != '{' && data[i] != '}' {
						i++
					}
				}
			case "\\", "{", "}":
				sb.WriteString(word)
			default:
				if rtfSkipGroups[word] {
					skipDepth = depth
				}
			}
		case '\r', '\n':
			i++
		default:
			if skipDepth == 0 {
				sb.WriteByte(ch)
			}
			i++
		}
	}

	return normalizeNewlines(strings.TrimSpace(sb.String()))
}

// readControl parses one control word or symbol starting at the backslash and
// returns the word, its parameter text and the total bytes consumed.
func readControl(data []byte) (string, string, int) {
	if len(data) < 2 {
		return "", "", len(data)
	}
	i := 1
	ch := data[i]

	// Control symbols are a single non-letter character.
	if !isASCIILetter(ch) {
		if ch == '\'' && len(data) >= 4 {
			return "'", string(data[2:4]), 4
		}
		return string(ch), "", 2
	}

	start := i
	for i < len(data) && isASCIILetter(data[i]) {
		i++
	}
	word := string(data[start:i])

	paramStart := i
	if i < len(data) && (data[i] == '-' || isASCIIDigit(data[i])) {
		i++
		for i < len(data) && isASCIIDigit(data[i]) {
			i++
		}
	}
	param := string(data[paramStart:i])

	// A single space terminates the control word and belongs to it.
	if i < len(data) && data[i] == ' ' {
		i++
	}
	return word, param, i
}

func isASCIILetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func isASCIIDigit(b byte) bool { return b >= '0' && b <= '9' }
