package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON extracts the first complete JSON object from model output that
// may be wrapped in markdown fences or surrounded by prose, which smaller local
// models emit even in JSON mode.
func ExtractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no object; let the decoder fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text
}

// DecodeJSON extracts the JSON object from text and decodes it into v.
func DecodeJSON(text string, v any) error {
	cleaned := ExtractJSON(text)
	if cleaned == "" {
		return fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return nil
}
