// Package slots extracts structured customer fields from free text.
package slots

import (
	"regexp"
	"strconv"
	"strings"

	"bikeshop-agent/internal/intent"
)

// Extracted is a partial slot set; empty fields mean "not found this turn".
type Extracted struct {
	Name      string
	Email     string
	Phone     string
	BudgetMax float64
	Category  string
	// Ambiguities records slots where more than one distinct candidate
	// appeared; the kept value is the first match per slot contract.
	Ambiguities []Ambiguity
}

// Ambiguity surfaces competing candidate values instead of dropping them.
type Ambiguity struct {
	Slot       string
	Kept       string
	Candidates []string
}

var (
	budgetRe = regexp.MustCompile(`(?i)(?:budget(?: of| is)?|under|below|less than|up to|max(?:imum)?)\s*[€$]?\s*(\d+(?:[.,]\d{3})*(?:\.\d+)?)`)
	amountRe = regexp.MustCompile(`[€$]\s*(\d+(?:[.,]\d{3})*(?:\.\d+)?)`)
	nameIsRe = regexp.MustCompile(`(?i)(?:my name is|i am|i'm|this is)\s+([A-Za-zÀ-ÿ'-]+(?:\s+[A-Za-zÀ-ÿ'-]+)?)`)
)

type Extractor struct {
	categories func() []string
}

func NewExtractor(categories func() []string) *Extractor {
	return &Extractor{categories: categories}
}

// Extract pulls slots out of one turn. namePrompted must be true only when
// the previous assistant turn explicitly asked for the customer's name;
// names are never inferred opportunistically from arbitrary text.
func (e *Extractor) Extract(text string, namePrompted bool) Extracted {
	var out Extracted

	emails := dedupe(intent.EmailRe.FindAllString(text, -1))
	if len(emails) > 0 {
		out.Email = emails[0] // first valid match wins
		if len(emails) > 1 {
			out.Ambiguities = append(out.Ambiguities, Ambiguity{
				Slot: "email", Kept: out.Email, Candidates: emails,
			})
		}
	}

	phones := plausiblePhones(text)
	if len(phones) > 0 {
		out.Phone = phones[0]
		if len(phones) > 1 {
			out.Ambiguities = append(out.Ambiguities, Ambiguity{
				Slot: "phone", Kept: out.Phone, Candidates: phones,
			})
		}
	}

	if namePrompted {
		out.Name = extractName(text)
	}

	if m := budgetRe.FindStringSubmatch(text); m != nil {
		out.BudgetMax = parseAmount(m[1])
	} else if m := amountRe.FindStringSubmatch(text); m != nil {
		out.BudgetMax = parseAmount(m[1])
	}

	if e.categories != nil {
		norm := intent.Normalize(text)
		for _, cat := range e.categories() {
			if cat != "" && strings.Contains(norm, strings.ToLower(cat)) {
				out.Category = strings.ToLower(cat)
				break
			}
		}
	}

	return out
}

// extractName handles both "my name is John Smith" and a bare "John Smith"
// reply to a name prompt.
func extractName(text string) string {
	if m := nameIsRe.FindStringSubmatch(text); m != nil {
		return title(m[1])
	}

	// Bare answer: accept one or two words without digits or an email.
	trimmed := strings.TrimRight(strings.TrimSpace(text), ".,!?")
	if trimmed == "" || strings.ContainsAny(trimmed, "@0123456789") {
		return ""
	}
	words := strings.Fields(trimmed)
	if len(words) > 2 {
		return ""
	}
	return title(trimmed)
}

func plausiblePhones(text string) []string {
	var out []string
	for _, m := range intent.PhoneRe.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 8 && digits <= 15 {
			out = append(out, normalizePhone(m))
		}
	}
	return dedupe(out)
}

// normalizePhone strips separators but keeps a leading +.
func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseAmount(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func title(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
