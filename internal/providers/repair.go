package providers

import (
	"encoding/json"
	"strings"
)

// RepairJSON attempts to fix a truncated JSON object string as streamed by
// an LLM. Valid input is returned unchanged. Fixes are applied in order:
// close an unpaired string quote, then append one "]" per unmatched "[",
// then one "}" per unmatched "{", and the result is re-parsed once.
// The second return value reports whether the output parses as JSON.
func RepairJSON(s string) (string, bool) {
	if parsesAsJSON(s) {
		return s, true
	}

	repaired := s

	// Walk the string tracking structural state outside string literals.
	inString := false
	escaped := false
	openBraces := 0
	openBrackets := 0
	for _, r := range repaired {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				openBraces++
			}
		case '}':
			if !inString {
				openBraces--
			}
		case '[':
			if !inString {
				openBrackets++
			}
		case ']':
			if !inString {
				openBrackets--
			}
		}
	}

	if inString {
		repaired += `"`
	}
	if openBrackets > 0 {
		repaired += strings.Repeat("]", openBrackets)
	}
	if openBraces > 0 {
		repaired += strings.Repeat("}", openBraces)
	}

	return repaired, parsesAsJSON(repaired)
}

// ParseToolArguments parses a streamed tool-call argument string, applying
// one repair attempt when the raw string does not parse. A nil map with
// ok=false means the call should be dropped.
func ParseToolArguments(raw string) (map[string]interface{}, bool) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, true
	}

	args := make(map[string]interface{})
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, true
	}

	repaired, ok := RepairJSON(raw)
	if !ok {
		return nil, false
	}
	args = make(map[string]interface{})
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, false
	}
	return args, true
}

func parsesAsJSON(s string) bool {
	var v interface{}
	return json.Unmarshal([]byte(s), &v) == nil
}
