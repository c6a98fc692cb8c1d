package textproc

import (
	"errors"
	"strings"
)

// ErrNoJSON indicates no complete JSON object was found in the text.
var ErrNoJSON = errors.New("no JSON object found")

// ExtractJSONObject returns the first balanced {...} object in s.
// JSON-mode models still occasionally wrap their payload in prose or
// fences, so callers re-extract defensively before unmarshalling.
func ExtractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}
