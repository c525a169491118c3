package stage2

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseJSON parses a schema's raw LLM response into a field bag, with
// the same best-effort structure-closing repair stage1.parseWithRepair
// uses for truncated responses (spec.md §4.6). Stage 2 does not retry
// adaptively on truncation (spec.md §4.7 "no adaptive retry"), so this
// is a simpler one-shot version kept local to this package rather than
// shared with stage1's retry-aware call path.
func parseJSON(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err == nil {
		return data, nil
	}

	repaired := closeOpenStructures(trimmed)
	if err := json.Unmarshal([]byte(repaired), &data); err == nil {
		return data, nil
	}

	return nil, fmt.Errorf("parsing stage2 response as JSON")
}

// closeOpenStructures appends closing brackets/braces for every
// unmatched opener, in reverse order of opening, ignoring characters
// inside string literals. Mirrors stage1.closeOpenStructures.
func closeOpenStructures(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var closer strings.Builder
	closer.WriteString(s)
	if inString {
		closer.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closer.WriteByte('}')
		} else {
			closer.WriteByte(']')
		}
	}
	return closer.String()
}
