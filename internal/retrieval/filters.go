package retrieval

import (
	"regexp"
	"strconv"
	"strings"
)

// Filters are hard constraints applied to retrieval candidates.
type Filters struct {
	Category string  `json:"category,omitempty"`
	MaxPrice float64 `json:"maxPrice,omitempty"`
}

func (f Filters) Empty() bool {
	return f.Category == "" && f.MaxPrice == 0
}

// Matches applies the hard filters. Filtering before or after scoring is
// equivalent because it never changes relative ranking.
func (f Filters) Matches(category string, price float64) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, category) {
		return false
	}
	if f.MaxPrice > 0 && price > f.MaxPrice {
		return false
	}
	return true
}

var (
	priceCeilingRe = regexp.MustCompile(`(?i)(?:under|below|less than|max(?:imum)?|up to|budget(?: of| is)?)\s*[€$]?\s*(\d+(?:[.,]\d{3})*(?:\.\d+)?)`)
	bareAmountRe   = regexp.MustCompile(`[€$]\s*(\d+(?:[.,]\d{3})*(?:\.\d+)?)`)
)

// ParseFilters derives hard filters from free query text: a price ceiling
// ("under 1600", "budget of 2000", "€1499") and a category from the catalog
// vocabulary.
func ParseFilters(query string, categories []string) Filters {
	var f Filters
	lower := strings.ToLower(query)

	if m := priceCeilingRe.FindStringSubmatch(query); m != nil {
		f.MaxPrice = parseAmount(m[1])
	} else if m := bareAmountRe.FindStringSubmatch(query); m != nil {
		f.MaxPrice = parseAmount(m[1])
	}

	for _, cat := range categories {
		if containsWord(lower, strings.ToLower(cat)) {
			f.Category = cat
			break
		}
	}

	return f
}

func parseAmount(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	for idx >= 0 {
		before := idx == 0 || !isWordChar(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isWordChar(text[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(text[idx+1:], word)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
