// Package conversation holds per-conversation state: turn history, extracted
// slots, and the lead lifecycle state machine.
package conversation

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"bikeshop-agent/internal/slots"
)

// State is the lead lifecycle position. ENGAGED is the steady state
// re-entered after every turn; LEAD_CREATED is terminal and never regressed
// out of, which is what makes lead creation idempotent across restarts.
type State string

const (
	StateNew         State = "NEW"
	StateEngaged     State = "ENGAGED"
	StateQualified   State = "QUALIFIED"
	StateLeadPending State = "LEAD_PENDING"
	StateLeadCreated State = "LEAD_CREATED"
)

type Speaker string

const (
	SpeakerCustomer  Speaker = "customer"
	SpeakerAssistant Speaker = "assistant"
)

type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Slots are the known customer fields; empty string / zero means unset.
type Slots struct {
	Name              string  `json:"name,omitempty"`
	Email             string  `json:"email,omitempty"`
	Phone             string  `json:"phone,omitempty"`
	BudgetMax         float64 `json:"budgetMax,omitempty"`
	PreferredCategory string  `json:"preferredCategory,omitempty"`
}

// HasContact reports whether at least one contact slot is filled.
func (s Slots) HasContact() bool {
	return s.Email != "" || s.Phone != ""
}

// Correction records an overwrite of an already-filled slot. The old value
// is kept, never silently dropped.
type Correction struct {
	Slot     string    `json:"slot"`
	OldValue string    `json:"oldValue"`
	NewValue string    `json:"newValue"`
	Turn     int       `json:"turn"`
	At       time.Time `json:"at"`
}

// Conversation is the state mutated by every turn. It serializes to JSON
// and round-trips through the store without loss.
type Conversation struct {
	ID               string       `json:"id"`
	Turns            []Turn       `json:"turns"`
	Slots            Slots        `json:"slots"`
	Corrections      []Correction `json:"corrections,omitempty"`
	State            State        `json:"state"`
	BuyingSignalSeen bool         `json:"buyingSignalSeen"`
	LeadCreated      bool         `json:"leadCreated"`
	LeadID           string       `json:"leadId,omitempty"`
	LastIntents      []string     `json:"lastIntents,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// New creates a conversation with an opaque identifier. Callers must not
// rely on the identifier's internal structure.
func New() *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.NewString(),
		State:     StateNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewWithID starts a conversation under a caller-chosen identifier.
func NewWithID(id string) *Conversation {
	conv := New()
	conv.ID = id
	return conv
}

func (c *Conversation) AddTurn(speaker Speaker, text string) {
	c.Turns = append(c.Turns, Turn{
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	c.UpdatedAt = time.Now().UTC()
}

// LastAssistantText returns the most recent assistant turn, used to decide
// whether a name prompt is pending.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Speaker == SpeakerAssistant {
			return c.Turns[i].Text
		}
	}
	return ""
}

// ApplyExtracted merges a turn's extracted slots. Filling an empty slot is
// silent; overwriting a filled slot with a different value records a
// Correction. Extraction is monotonic: a slot never becomes empty again.
func (c *Conversation) ApplyExtracted(ex slots.Extracted) []Correction {
	var applied []Correction
	turn := len(c.Turns)
	now := time.Now().UTC()

	set := func(slot, old, new_ string) string {
		if new_ == "" || new_ == old {
			return old
		}
		if old != "" {
			corr := Correction{Slot: slot, OldValue: old, NewValue: new_, Turn: turn, At: now}
			c.Corrections = append(c.Corrections, corr)
			applied = append(applied, corr)
		}
		return new_
	}

	c.Slots.Name = set("name", c.Slots.Name, ex.Name)
	c.Slots.Email = set("email", c.Slots.Email, ex.Email)
	c.Slots.Phone = set("phone", c.Slots.Phone, ex.Phone)
	c.Slots.PreferredCategory = set("preferred_category", c.Slots.PreferredCategory, ex.Category)

	if ex.BudgetMax > 0 && ex.BudgetMax != c.Slots.BudgetMax {
		if c.Slots.BudgetMax > 0 {
			corr := Correction{
				Slot:     "budget_max",
				OldValue: formatBudget(c.Slots.BudgetMax),
				NewValue: formatBudget(ex.BudgetMax),
				Turn:     turn,
				At:       now,
			}
			c.Corrections = append(c.Corrections, corr)
			applied = append(applied, corr)
		}
		c.Slots.BudgetMax = ex.BudgetMax
	}

	c.UpdatedAt = now
	return applied
}

// Advance moves the state machine after intents and slots for the current
// turn have been applied. It never regresses out of LEAD_CREATED.
func (c *Conversation) Advance(buyingSignal bool) {
	if buyingSignal {
		c.BuyingSignalSeen = true
	}

	switch c.State {
	case StateNew:
		c.State = StateEngaged
		fallthrough
	case StateEngaged:
		if c.BuyingSignalSeen && c.Slots.HasContact() {
			c.State = StateQualified
		}
	case StateLeadPending:
		// stays pending until the lead pipeline resolves it
	case StateQualified, StateLeadCreated:
		// QUALIFIED is advanced by the lead pipeline; LEAD_CREATED is terminal
	}
	c.UpdatedAt = time.Now().UTC()
}

// MarkLeadPending is called by the lead pipeline immediately before the CRM
// call so a crash mid-call leaves a retryable state behind.
func (c *Conversation) MarkLeadPending() {
	if c.State == StateQualified {
		c.State = StateLeadPending
		c.UpdatedAt = time.Now().UTC()
	}
}

// MarkLeadCreated commits the terminal state after the CRM call succeeded.
func (c *Conversation) MarkLeadCreated(leadID string) {
	c.State = StateLeadCreated
	c.LeadCreated = true
	c.LeadID = leadID
	c.UpdatedAt = time.Now().UTC()
}

func formatBudget(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
