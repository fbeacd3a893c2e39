package commands

import (
	"strconv"
	"strings"
	"unicode"
)

// Fields splits raw arguments on whitespace. Text in double quotes stays one
// field, so role names with spaces can be passed as "Movie Night".
func Fields(raw string) []string {
	var fields []string
	for {
		field, rest, ok := nextField(raw)
		if !ok {
			return fields
		}
		fields = append(fields, field)
		raw = rest
	}
}

// SplitN returns at most n fields. The last field is the unparsed remainder
// of the text, so free-form text such as a description survives intact.
// Fewer than n fields are returned if the text runs out.
func SplitN(raw string, n int) []string {
	var fields []string
	for len(fields) < n-1 {
		field, rest, ok := nextField(raw)
		if !ok {
			return fields
		}
		fields = append(fields, field)
		raw = rest
	}
	if rest := strings.TrimSpace(raw); rest != "" {
		fields = append(fields, rest)
	}
	return fields
}

func nextField(s string) (field, rest string, ok bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return "", "", false
	}
	if s[0] == '"' {
		if end := strings.IndexByte(s[1:], '"'); end >= 0 {
			return s[1 : end+1], s[end+2:], true
		}
	}
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, "", true
	}
	return s[:end], s[end:], true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
