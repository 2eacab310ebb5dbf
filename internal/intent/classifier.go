// Package intent classifies a conversation turn into a set of detected
// intents. A single turn can carry several intents at once ("I'm interested,
// my email is x@y.com" is both a buying signal and a contact disclosure) and
// downstream components react to every member of the set.
package intent

import (
	"regexp"
	"strings"
)

// Intent is a fixed enumerated tag, never an open-ended label.
type Intent string

const (
	ProductQuery      Intent = "PRODUCT_QUERY"
	BuyingSignal      Intent = "BUYING_SIGNAL"
	ContactDisclosure Intent = "CONTACT_DISCLOSURE"
	FAQ               Intent = "FAQ"
	Other             Intent = "OTHER"
)

// Set is a multi-membership intent set.
type Set map[Intent]bool

func (s Set) Has(i Intent) bool { return s[i] }

func (s Set) Values() []string {
	ordered := []Intent{ProductQuery, BuyingSignal, ContactDisclosure, FAQ, Other}
	var out []string
	for _, i := range ordered {
		if s[i] {
			out = append(out, string(i))
		}
	}
	return out
}

func FromValues(values []string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[Intent(v)] = true
	}
	return s
}

var (
	// EmailRe matches an RFC-shaped email address.
	EmailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	// PhoneRe matches a digit sequence of plausible length, optionally
	// prefixed with + and tolerant of spaces, dashes, and dots.
	PhoneRe = regexp.MustCompile(`\+?\d[\d\s\-.]{6,18}\d`)

	punctRe = regexp.MustCompile(`[^\w\s€$]`)
)

var productWords = []string{
	"bike", "bicycle", "ride", "riding", "looking for", "recommend", "show me", "something for",
}

type Classifier struct {
	buyingPhrases []string
	faqKeywords   []string
	categories    func() []string
}

// NewClassifier builds a classifier. buyingPhrases and faqKeywords are
// configuration, not correctness constants; categories is read live so a
// catalog reload extends the vocabulary.
func NewClassifier(buyingPhrases, faqKeywords []string, categories func() []string) *Classifier {
	return &Classifier{
		buyingPhrases: lowerAll(buyingPhrases),
		faqKeywords:   lowerAll(faqKeywords),
		categories:    categories,
	}
}

// Classify inspects one turn plus the previous turn's intents. Contact
// detectors run on the raw text (normalization strips the characters they
// need); everything else runs on normalized text.
func (c *Classifier) Classify(text string, prev Set) Set {
	out := make(Set)
	norm := Normalize(text)

	if EmailRe.MatchString(text) || matchesPhone(text) {
		out[ContactDisclosure] = true
	}

	for _, phrase := range c.buyingPhrases {
		if strings.Contains(norm, phrase) {
			out[BuyingSignal] = true
			break
		}
	}

	for _, kw := range c.faqKeywords {
		if strings.Contains(norm, kw) {
			out[FAQ] = true
			break
		}
	}

	if c.looksLikeProductQuery(norm) {
		out[ProductQuery] = true
	}

	// A buying signal alongside product wording still triggers retrieval.
	if out[BuyingSignal] && !out[ProductQuery] && c.mentionsCategory(norm) {
		out[ProductQuery] = true
	}

	// A bare answer after a contact prompt is a disclosure even without a
	// matching pattern (e.g. the customer replies with just their name).
	if len(out) == 0 && prev.Has(ContactDisclosure) {
		out[ContactDisclosure] = true
	}

	if len(out) == 0 {
		out[Other] = true
	}

	return out
}

func (c *Classifier) looksLikeProductQuery(norm string) bool {
	for _, w := range productWords {
		if strings.Contains(norm, w) {
			return true
		}
	}
	return c.mentionsCategory(norm)
}

func (c *Classifier) mentionsCategory(norm string) bool {
	if c.categories == nil {
		return false
	}
	for _, cat := range c.categories() {
		if cat != "" && strings.Contains(norm, strings.ToLower(cat)) {
			return true
		}
	}
	return false
}

// Normalize lower-cases and strips punctuation for lexical matching.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	stripped := punctRe.ReplaceAllString(lower, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

// matchesPhone requires a plausible digit count so prices and years do not
// pass as phone numbers.
func matchesPhone(text string) bool {
	for _, m := range PhoneRe.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 8 && digits <= 15 {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
