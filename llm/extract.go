package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON object can be extracted from
// a model reply.
var ErrNoJSON = errors.New("llm: no JSON object found in response")

// fenceRe matches a markdown code fence block with an optional language tag
// and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line; used to strip orphaned
// opening fences from truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// invalidJSONEscapeRe matches a backslash followed by any character that is
// not a valid JSON string escape. Models sometimes emit regex-style escapes
// (\d, \w) unescaped inside JSON strings.
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

// StripFences removes leading/trailing markdown code fences that models wrap
// around JSON output. If only an opening fence is present, that line alone
// is stripped so truncated replies can still be parsed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// FirstJSONObject returns the first balanced top-level JSON object in s,
// found by bracket matching that is aware of string literals and escapes.
func FirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// fixInvalidEscapes double-escapes invalid JSON escape sequences.
func fixInvalidEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

// ExtractJSON unmarshals the first JSON object found in a free-text model
// reply into v. It tries an ordered chain of extractions: the raw text, the
// fence-stripped text, then a brace-matched substring, each with a second
// attempt after repairing invalid escape sequences. The first success wins;
// if every attempt fails, ErrNoJSON is returned.
func ExtractJSON(raw string, v any) error {
	candidates := []string{raw, StripFences(raw)}
	if obj, ok := FirstJSONObject(StripFences(raw)); ok {
		candidates = append(candidates, obj)
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
		if err := json.Unmarshal([]byte(fixInvalidEscapes(candidate)), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}
