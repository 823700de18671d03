package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{-5, "0:00"},
		{59, "0:59"},
		{1380, "23:00"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestRenderHeader(t *testing.T) {
	h := RenderHeader("Verbal 1", "12:00", 80)
	assert.Contains(t, h, "adaptest")
	assert.Contains(t, h, "Verbal 1")
	assert.Contains(t, h, "12:00")
}

func TestIsTooSmall(t *testing.T) {
	assert.True(t, IsTooSmall(79, 24))
	assert.True(t, IsTooSmall(80, 23))
	assert.False(t, IsTooSmall(80, 24))
}

func TestRenderFooter(t *testing.T) {
	f := RenderFooter([]KeyHint{{Key: "f", Description: "Flag"}}, 80)
	assert.True(t, strings.Contains(f, "Flag"))
}
