package utils

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleMention(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"<@&123>", 123, false},
		{"<@123>", 0, true},
		{"<@&abc>", 0, true},
		{"123", 0, true},
		{"<@&>", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRoleMention(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseUserMention(t *testing.T) {
	id, err := ParseUserMention("<@!55>")
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)

	id, err = ParseUserMention("<@55>")
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)

	_, err = ParseUserMention("<@&55>")
	assert.Error(t, err)
}

func TestSnowflakeRoundTrip(t *testing.T) {
	id, err := ParseSnowflake("1152921504606846977")
	require.NoError(t, err)
	assert.Equal(t, "1152921504606846977", FormatSnowflake(id))

	id, err = ParseSnowflake("")
	require.NoError(t, err)
	assert.Zero(t, id)

	_, err = ParseSnowflake("-4")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(""))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
}
