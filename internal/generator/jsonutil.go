package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches an object inside a markdown code fence.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern is the greedy fallback for an unfenced object.
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches a comma directly before } or ].
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of free text. It understands markdown
// fences, // line comments, and trailing commas. It returns "" when no
// object-looking span exists; the result is not guaranteed to be valid.
func ExtractJSON(content string) string {
	raw := ""
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else if m := jsonObjectPattern.FindString(content); m != "" {
		raw = m
	}
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// Object returns content as a JSON object, cleaning it up first when it is
// not one already. It fails with ErrNoJSON.
func Object(content []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(content)
	if isObject(trimmed) {
		return trimmed, nil
	}
	cleaned := []byte(ExtractJSON(string(content)))
	if isObject(cleaned) {
		return cleaned, nil
	}
	preview := string(trimmed)
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return nil, fmt.Errorf("%w: %q", ErrNoJSON, preview)
}

func isObject(b []byte) bool {
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}

// stripLineComment removes a // comment that sits outside any string.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
