package sibila

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"
)

// unicodeEscapePattern matches a literal "\uXXXX" escape sequence, the kind
// a provider leaves behind when it double-encodes non-ASCII output (JSON
// text that was itself serialised, then wrapped in another layer of
// escaping before reaching us).
var unicodeEscapePattern = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)

// decodeUnicodeEscapes decodes literal "\uXXXX" sequences in text, merging
// adjacent UTF-16 surrogate pairs back into a single rune. Text without a
// "\u" substring is returned unchanged, so well-formed JSON (which already
// carries real escapes only inside quoted strings, handled fine by
// json.Unmarshal on its own) pays no cost.
func decodeUnicodeEscapes(text string) string {
	if !strings.Contains(text, `\u`) {
		return text
	}

	matches := unicodeEscapePattern.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text
	}

	var out strings.Builder
	last := 0
	for i := 0; i < len(matches); i++ {
		start, end := matches[i][0], matches[i][1]
		hexStart, hexEnd := matches[i][2], matches[i][3]
		out.WriteString(text[last:start])

		code, err := strconv.ParseUint(text[hexStart:hexEnd], 16, 32)
		if err != nil {
			out.WriteString(text[start:end])
			last = end
			continue
		}
		r := rune(code)

		if utf16.IsSurrogate(r) && i+1 < len(matches) && matches[i+1][0] == end {
			nextHexStart, nextHexEnd := matches[i+1][2], matches[i+1][3]
			if nextCode, err := strconv.ParseUint(text[nextHexStart:nextHexEnd], 16, 32); err == nil {
				if combined := utf16.DecodeRune(r, rune(nextCode)); combined != utf8.RuneError {
					out.WriteRune(combined)
					last = matches[i+1][1]
					i++
					continue
				}
			}
		}

		out.WriteRune(r)
		last = end
	}
	out.WriteString(text[last:])
	return out.String()
}

// trimChitChat strips a fenced code block and any leading/trailing prose a
// model wraps its JSON in, keeping only the outermost {...} or [...] span.
func trimChitChat(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	open, close := text[start], byte('}')
	if open == '[' {
		close = ']'
	}
	end := strings.LastIndexByte(text, close)
	if end < start {
		return text
	}
	return text[start : end+1]
}

// parseJSON decodes a model's raw text into a generic JSON value, repairing
// common malformations (truncated output, trailing commas, unescaped
// quotes) before giving up.
func parseJSON(text string) (any, error) {
	cleaned := trimChitChat(decodeUnicodeEscapes(text))

	var decoded any
	if err := json.Unmarshal([]byte(cleaned), &decoded); err == nil {
		return decoded, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(cleaned)
	if repairErr != nil {
		return nil, fmt.Errorf("sibila: parse JSON: %w (repair also failed: %v)", jsonUnmarshalErr(cleaned), repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
		return nil, fmt.Errorf("sibila: parse repaired JSON: %w", err)
	}
	return decoded, nil
}

func jsonUnmarshalErr(text string) error {
	var v any
	return json.Unmarshal([]byte(text), &v)
}
