package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilters(t *testing.T) {
	categories := []string{"trail", "electric", "kids", "city"}

	tests := []struct {
		name  string
		query string
		want  Filters
	}{
		{
			name:  "price ceiling with under",
			query: "cheap bike for trail riding under 1600",
			want:  Filters{Category: "trail", MaxPrice: 1600},
		},
		{
			name:  "budget phrasing",
			query: "my budget is 2000",
			want:  Filters{MaxPrice: 2000},
		},
		{
			name:  "currency symbol amount",
			query: "something around €1,499",
			want:  Filters{MaxPrice: 1499},
		},
		{
			name:  "category only",
			query: "do you sell electric bikes",
			want:  Filters{Category: "electric"},
		},
		{
			name:  "no filters",
			query: "what do you recommend",
			want:  Filters{},
		},
		{
			name:  "category must match whole word",
			query: "I like electricity jokes",
			want:  Filters{},
		},
		{
			name:  "up to phrasing",
			query: "kids bike up to €500",
			want:  Filters{Category: "kids", MaxPrice: 500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFilters(tt.query, categories)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilters_Matches(t *testing.T) {
	f := Filters{Category: "trail", MaxPrice: 1600}

	assert.True(t, f.Matches("trail", 1499))
	assert.True(t, f.Matches("Trail", 1600))
	assert.False(t, f.Matches("trail", 1601))
	assert.False(t, f.Matches("electric", 1000))

	assert.True(t, Filters{}.Matches("anything", 99999))
	assert.True(t, Filters{}.Empty())
	assert.False(t, f.Empty())
}
