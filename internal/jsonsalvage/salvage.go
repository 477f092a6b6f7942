// Package jsonsalvage recovers a syntactically valid JSON document from
// text an LLM produced, tolerating the ways models commonly break strict
// JSON: literal newlines inside string bodies, embedded Markdown, and
// chatter surrounding the JSON payload.
//
// The algorithm is a fixed, deterministic sequence of increasingly
// aggressive repairs, each attempted in order; it returns on the first
// one that parses.
package jsonsalvage

import (
	"encoding/json"
	"strings"
)

// Salvage attempts to recover a valid JSON document from raw. It returns
// the parsed value's canonical re-encoding and true on success.
func Salvage(raw string) (json.RawMessage, bool) {
	if v, ok := tryParse(raw); ok {
		return v, true
	}

	content := outermostStructure(raw)

	if v, ok := tryParse(escapeControlCharsInStrings(content)); ok {
		return v, true
	}

	if hasLongFormattedStrings(content) {
		globally := globalEscape(content)
		if v, ok := tryParse(globally); ok {
			return v, true
		}
	}

	withoutNewlines := strings.NewReplacer("\n", " ", "\r", " ").Replace(content)
	if v, ok := tryParse(withoutNewlines); ok {
		return v, true
	}

	if v, ok := tryParse(escapeControlCharsInStrings(withoutNewlines)); ok {
		return v, true
	}

	if v, ok := tryParse(globalEscape(content)); ok {
		return v, true
	}

	return nil, false
}

func tryParse(s string) (json.RawMessage, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	// Re-encode so the returned bytes are always strictly valid JSON,
	// independent of which repair step produced them.
	out, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return out, true
}

// outermostStructure returns the substring spanning the earliest opening
// brace/bracket to the latest closing brace/bracket, inclusive. Falls back
// to the original content if no delimiters are found.
func outermostStructure(content string) string {
	firstBrace := strings.IndexByte(content, '{')
	firstBracket := strings.IndexByte(content, '[')
	lastBrace := strings.LastIndexByte(content, '}')
	lastBracket := strings.LastIndexByte(content, ']')

	var start, end int
	switch {
	case firstBrace >= 0 && firstBracket >= 0 && lastBrace >= 0 && lastBracket >= 0:
		start = min(firstBrace, firstBracket)
		end = max(lastBrace, lastBracket) + 1
	case firstBrace >= 0 && lastBrace >= 0:
		start, end = firstBrace, lastBrace+1
	case firstBracket >= 0 && lastBracket >= 0:
		start, end = firstBracket, lastBracket+1
	default:
		return content
	}
	if start < 0 || end > len(content) || start >= end {
		return content
	}
	return content[start:end]
}

// hasLongFormattedStrings flags content that looks like it embeds
// Markdown or other long free-form text inside a JSON string body.
func hasLongFormattedStrings(content string) bool {
	if strings.Contains(content, "### ") ||
		strings.Contains(content, "**") ||
		strings.Contains(content, "\n\n-") ||
		strings.Contains(content, "\n\n*") {
		return true
	}
	return strings.Count(content, "\n") > 50
}

func globalEscape(content string) string {
	r := strings.NewReplacer("\r\n", "\\n", "\n", "\\n", "\r", "\\r", "\t", "\\t")
	return r.Replace(content)
}

// escapeControlCharsInStrings escapes raw newline/carriage-return/tab
// bytes found inside string literals, leaving already-valid escape
// sequences untouched. Quote boundaries are tracked by counting
// consecutive preceding backslashes: an even count (including zero) means
// the quote is unescaped and toggles string state.
func escapeControlCharsInStrings(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + len(s)/10)

	runes := []rune(s)
	inString := false

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && inString:
			sb.WriteRune(c)
			if i+1 < len(runes) {
				next := runes[i+1]
				switch next {
				case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
					sb.WriteRune(next)
					i++
				}
			}
		case c == '\\' && !inString:
			sb.WriteRune(c)
		case c == '"':
			backslashes := 0
			built := sb.String()
			for j := len(built) - 1; j >= 0 && built[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				inString = !inString
			}
			sb.WriteRune(c)
		case c == '\n' && inString:
			sb.WriteString("\\n")
		case c == '\r' && inString:
			sb.WriteString("\\r")
		case c == '\t' && inString:
			sb.WriteString("\\t")
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}
