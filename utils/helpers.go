package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSnowflake parses a Discord id. Ids are unsigned 64-bit on the wire
// but never exceed the int64 range in practice.
func ParseSnowflake(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid snowflake %q", s)
	}
	return id, nil
}

// FormatSnowflake is the inverse of ParseSnowflake. Zero becomes "".
func FormatSnowflake(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// ParseUserMention extracts the user id from <@id> or <@!id>.
func ParseUserMention(mention string) (int64, error) {
	if !strings.HasPrefix(mention, "<@") || !strings.HasSuffix(mention, ">") || strings.HasPrefix(mention, "<@&") {
		return 0, fmt.Errorf("invalid mention format")
	}
	id := strings.TrimPrefix(strings.TrimSuffix(mention, ">"), "<@")
	id = strings.TrimPrefix(id, "!")
	return parseMentionID(id)
}

// ParseRoleMention extracts the role id from <@&id>.
func ParseRoleMention(mention string) (int64, error) {
	if !strings.HasPrefix(mention, "<@&") || !strings.HasSuffix(mention, ">") {
		return 0, fmt.Errorf("invalid role mention format")
	}
	return parseMentionID(mention[3 : len(mention)-1])
}

func parseMentionID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id in mention")
	}
	return id, nil
}
