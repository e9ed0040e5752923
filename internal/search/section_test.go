package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSectionID(t *testing.T) {
	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"302", "302", true},
		{"302 murder", "302", true},
		{"Section 302", "302", true},
		{"section302", "302", true},
		{"sec 420", "420", true},
		{"SEC 420 cheating", "420", true},
		{"IPC 498a", "498A", true},
		{"ipc section 376", "376", true},
		{"what is section 498A about", "498A", true},
		{"  379 theft", "379", true},
		{"he stole 2 bikes", "", false},
		{"murder", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := ExtractSectionID(tt.query)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNumericQuery(t *testing.T) {
	assert.True(t, IsNumericQuery("9999"))
	assert.True(t, IsNumericQuery(" 302 "))
	assert.False(t, IsNumericQuery("302A"))
	assert.False(t, IsNumericQuery("section 302"))
	assert.False(t, IsNumericQuery(""))
}
