package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lower-cases", "N95 Masks", "n95 masks"},
		{"collapses whitespace", "  surgical \t gloves\n", "surgical gloves"},
		{"non-breaking space", "gauze\u00a0pads", "gauze pads"},
		{"full-width compatibility", "ＩＶ bags", "iv bags"},
		{"strips control chars", "sy\u0007ringes", "syringes"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.in))
		})
	}
}

func TestTitles(t *testing.T) {
	assert.Equal(t, []string{"a b", "c"}, Titles([]string{"A  B", " C"}))
	assert.Empty(t, Titles(nil))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Exam Gloves", "exam  gloves"))
	assert.False(t, Equal("exam gloves", "exam glove"))
}
