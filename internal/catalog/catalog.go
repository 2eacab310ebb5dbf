// Package catalog owns the product catalog: loading, validation, and the
// content fingerprint used to detect staleness.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Item is a single catalog product. Identifiers are stable across rebuilds;
// an item is re-embedded only when its embeddable fields change.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	PriceEUR    float64 `json:"price_eur"`
	Description string  `json:"description"`
}

// Validate reports why an item cannot be embedded.
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("item %s: missing name", i.ID)
	}
	if i.PriceEUR <= 0 {
		return fmt.Errorf("item %s: non-positive price", i.ID)
	}
	if strings.TrimSpace(i.Description) == "" {
		return fmt.Errorf("item %s: missing description", i.ID)
	}
	return nil
}

// SearchText renders the text representation that gets embedded.
func (i Item) SearchText() string {
	return strings.Join([]string{
		i.Name,
		i.Category,
		fmt.Sprintf("€%s", strconv.FormatFloat(i.PriceEUR, 'f', -1, 64)),
		i.Description,
	}, " ")
}

// Fingerprint hashes the fields that affect the item's embedding.
func (i Item) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		i.ID, i.Name, i.Category,
		strconv.FormatFloat(i.PriceEUR, 'f', -1, 64), i.Description)
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot is an ordered view of the catalog plus a content fingerprint.
// Item order is catalog insertion order and is the ranking tie-breaker.
type Snapshot struct {
	Items       []Item
	Fingerprint string
	// Skipped counts items dropped by validation so callers can surface
	// a partial-index warning.
	Skipped int
}

// Categories returns the distinct category vocabulary in catalog order.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range s.Items {
		c := strings.ToLower(item.Category)
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// ItemByID returns the item and its insertion position.
func (s *Snapshot) ItemByID(id string) (Item, int, bool) {
	for pos, item := range s.Items {
		if item.ID == id {
			return item, pos, true
		}
	}
	return Item{}, -1, false
}

// NewSnapshot validates items, drops invalid ones, and fingerprints the
// survivors over all fields in catalog order.
func NewSnapshot(items []Item) *Snapshot {
	valid := make([]Item, 0, len(items))
	skipped := 0
	for _, item := range items {
		if err := item.Validate(); err != nil {
			skipped++
			continue
		}
		valid = append(valid, item)
	}

	h := sha256.New()
	for _, item := range valid {
		fmt.Fprintf(h, "%s\n", item.Fingerprint())
	}

	return &Snapshot{
		Items:       valid,
		Fingerprint: hex.EncodeToString(h.Sum(nil)),
		Skipped:     skipped,
	}
}

// LoadFile reads the catalog source (a JSON array of items) and builds a
// validated snapshot. The source is re-read on every call.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	return NewSnapshot(items), nil
}
