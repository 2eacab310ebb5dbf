package respond

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"bikeshop-agent/internal/catalog"
	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/conversation"
	"bikeshop-agent/internal/retrieval"
)

type fakeGenerator struct {
	reply      string
	fail       bool
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.fail {
		return "", agenterrors.NewGenerationUnavailableError(fmt.Errorf("model down"))
	}
	return f.reply, nil
}

func testResults() *retrieval.Response {
	return &retrieval.Response{
		Fresh: true,
		Results: []retrieval.Result{
			{Item: catalog.Item{Name: "Trailblazer 500", Category: "trail", PriceEUR: 1499, Description: "Hardtail trail bike"}, Score: 0.9, Rank: 1},
			{Item: catalog.Item{Name: "Gravel Explorer Pro", Category: "gravel", PriceEUR: 1899, Description: "Carbon gravel bike"}, Score: 0.7, Rank: 2},
			{Item: catalog.Item{Name: "Urban Commuter 8", Category: "city", PriceEUR: 899, Description: "City bike"}, Score: 0.5, Rank: 3},
		},
	}
}

func TestRespond_UsesGeneratedReply(t *testing.T) {
	gen := &fakeGenerator{reply: "The Trailblazer 500 would be perfect for you!"}
	p := NewPlanner(gen, logger.NewTestLogger(t))

	conv := conversation.New()
	plan := p.Respond(context.Background(), Input{
		Conversation: conv,
		Message:      "looking for a trail bike",
		Retrieval:    testResults(),
	})

	assert.Equal(t, "The Trailblazer 500 would be perfect for you!", plan.Reply)
	assert.False(t, plan.Degraded)
}

func TestRespond_GenerationFailureFallsBackToProducts(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	p := NewPlanner(gen, logger.NewTestLogger(t))

	plan := p.Respond(context.Background(), Input{
		Conversation: conversation.New(),
		Message:      "looking for a trail bike",
		Retrieval:    testResults(),
	})

	assert.True(t, plan.Degraded)
	assert.Contains(t, plan.DegradedBy, "generation")
	assert.Contains(t, plan.Reply, "Trailblazer 500")
	assert.Contains(t, plan.Reply, "Gravel Explorer Pro")
	// Bounded to the top products.
	assert.NotContains(t, plan.Reply, "Urban Commuter 8")
}

func TestRespond_GenerationFailureFallsBackToFAQ(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	p := NewPlanner(gen, logger.NewTestLogger(t))

	plan := p.Respond(context.Background(), Input{
		Conversation: conversation.New(),
		Message:      "what about warranty?",
		FAQAnswer:    "All bikes come with a 2-year warranty.",
	})

	assert.True(t, plan.Degraded)
	assert.Contains(t, plan.Reply, "2-year warranty")
}

func TestRespond_GenerationFailureGenericFallback(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	p := NewPlanner(gen, logger.NewTestLogger(t))

	plan := p.Respond(context.Background(), Input{
		Conversation: conversation.New(),
		Message:      "hello",
	})

	assert.True(t, plan.Degraded)
	assert.NotEmpty(t, plan.Reply)
}

func TestRespond_ContactRequestTakesPriorityOverGeneration(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	p := NewPlanner(gen, logger.NewTestLogger(t))

	plan := p.Respond(context.Background(), Input{
		Conversation: conversation.New(),
		Message:      "I'm interested!",
		Retrieval:    testResults(),
		NeedContact:  true,
	})

	assert.NotEqual(t, "should not be used", plan.Reply)
	assert.Contains(t, strings.ToLower(plan.Reply), "your name")
	assert.Contains(t, strings.ToLower(plan.Reply), "email or phone")
	assert.Empty(t, gen.lastPrompt)
}

func TestRespond_LeadConfirmationUsesName(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewPlanner(gen, logger.NewTestLogger(t))

	conv := conversation.New()
	conv.Slots.Name = "Anna Schmidt"

	plan := p.Respond(context.Background(), Input{
		Conversation:   conv,
		Message:        "anna@example.com",
		LeadCreatedNow: true,
	})

	assert.Contains(t, plan.Reply, "Anna Schmidt")
	assert.Contains(t, plan.Reply, "sales team")
}

func TestRespond_DegradedRetrievalIsFlagged(t *testing.T) {
	gen := &fakeGenerator{reply: "here are some bikes"}
	p := NewPlanner(gen, logger.NewTestLogger(t))

	stale := testResults()
	stale.Fresh = false

	plan := p.Respond(context.Background(), Input{
		Conversation: conversation.New(),
		Message:      "trail bike",
		Retrieval:    stale,
	})

	assert.True(t, plan.Degraded)
	assert.Contains(t, plan.DegradedBy, "retrieval")
}

func TestBuildPrompt_IsBounded(t *testing.T) {
	conv := conversation.New()
	conv.Slots.Name = "Anna"
	for i := 0; i < 20; i++ {
		conv.AddTurn(conversation.SpeakerCustomer, fmt.Sprintf("message %d", i))
		conv.AddTurn(conversation.SpeakerAssistant, fmt.Sprintf("reply %d", i))
	}

	prompt := buildPrompt(Input{
		Conversation: conv,
		Message:      "current question",
		Retrieval:    testResults(),
	})

	// Only the most recent turns appear.
	assert.NotContains(t, prompt, "message 0")
	assert.Contains(t, prompt, "reply 19")
	assert.Contains(t, prompt, "current question")

	// Only the top products appear.
	assert.Contains(t, prompt, "Trailblazer 500")
	assert.NotContains(t, prompt, "Urban Commuter 8")

	assert.Contains(t, prompt, "Name=Anna")
}
