package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshop-agent/internal/catalog"
	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/conversation"
	"bikeshop-agent/internal/crm"
	"bikeshop-agent/internal/index"
	"bikeshop-agent/internal/intent"
	"bikeshop-agent/internal/lead"
	"bikeshop-agent/internal/respond"
	"bikeshop-agent/internal/retrieval"
	"bikeshop-agent/internal/slots"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch {
	case strings.Contains(text, "Trailblazer") || strings.Contains(text, "trail"):
		return []float32{1, 0.1, 0}, nil
	case strings.Contains(text, "Kids"):
		return []float32{0.2, 1, 0}, nil
	default:
		return []float32{0, 0.2, 1}, nil
	}
}

func (f *fakeEmbedder) Model() string { return "fake-model" }

type fakeGenerator struct {
	fail bool
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	if f.fail {
		return "", agenterrors.NewGenerationUnavailableError(fmt.Errorf("model down"))
	}
	return "Happy to help with that!", nil
}

type fakeCRM struct {
	calls int
	fail  bool
}

func (f *fakeCRM) CreateLead(_ context.Context, _ *crm.Lead) (string, error) {
	f.calls++
	if f.fail {
		return "", agenterrors.NewCRMUnavailableError(fmt.Errorf("crm down"))
	}
	return fmt.Sprintf("crm-%d", f.calls), nil
}

type fakeFAQ struct {
	answer string
	err    error
}

func (f *fakeFAQ) Lookup(_ context.Context, _ string) (string, error) {
	return f.answer, f.err
}

type fixture struct {
	engine   *Engine
	store    *conversation.Store
	crm      *fakeCRM
	embedder *fakeEmbedder
	gen      *fakeGenerator
	faq      *fakeFAQ
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := conversation.NewStore(client, time.Hour, log)

	embedder := &fakeEmbedder{}
	idx := index.NewCatalogIndex(embedder, t.TempDir(), log)
	snap := catalog.NewSnapshot([]catalog.Item{
		{ID: "bike-001", Name: "Trailblazer 500", Category: "trail", PriceEUR: 1499, Description: "Hardtail trail bike"},
		{ID: "bike-002", Name: "Kids Rider 20", Category: "kids", PriceEUR: 399, Description: "First bike for kids"},
		{ID: "bike-003", Name: "EcoRide E-City", Category: "electric", PriceEUR: 2399, Description: "Electric city bike"},
	})
	_, err := idx.EnsureFresh(context.Background(), snap)
	require.NoError(t, err)

	retriever := retrieval.NewRetriever(idx, embedder, retrieval.Config{TopK: 3, MinScore: 0.35}, log)

	buyingPhrases := []string{"interested", "want to buy", "buy", "purchase", "sign me up", "i need", "i want"}
	faqKeywords := []string{"warranty", "delivery", "repair", "return", "payment", "test ride"}
	classifier := intent.NewClassifier(buyingPhrases, faqKeywords, retriever.Categories)
	extractor := slots.NewExtractor(retriever.Categories)

	gen := &fakeGenerator{}
	planner := respond.NewPlanner(gen, log)

	crmClient := &fakeCRM{}
	pipeline := lead.NewPipeline(crmClient, nil, nil, log)

	faqSource := &fakeFAQ{answer: "All bikes come with a 2-year warranty."}

	eng := New(store, classifier, extractor, retriever, faqSource, planner, pipeline, log)
	return &fixture{engine: eng, store: store, crm: crmClient, embedder: embedder, gen: gen, faq: faqSource}
}

func TestProcessTurn_FullJourneyToLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Turn 1: product query.
	turn1, err := f.engine.ProcessTurn(ctx, "", "I'm looking for a trail bike under 1600")
	require.NoError(t, err)
	assert.NotEmpty(t, turn1.ConversationID)
	assert.Contains(t, turn1.Intents, "PRODUCT_QUERY")
	assert.Equal(t, conversation.StateEngaged, turn1.State)
	require.NotEmpty(t, turn1.Products)
	assert.Equal(t, "Trailblazer 500", turn1.Products[0].Item.Name)
	assert.False(t, turn1.LeadCreated)

	convID := turn1.ConversationID

	// Turn 2: buying signal without contact prompts for it.
	turn2, err := f.engine.ProcessTurn(ctx, convID, "I'm interested!")
	require.NoError(t, err)
	assert.Contains(t, turn2.Intents, "BUYING_SIGNAL")
	assert.Equal(t, conversation.StateEngaged, turn2.State)
	assert.Contains(t, strings.ToLower(turn2.Reply), "your name")
	assert.Zero(t, f.crm.calls)

	// Turn 3: name and email arrive; lead is created exactly once.
	turn3, err := f.engine.ProcessTurn(ctx, convID, "My name is Anna Schmidt, email anna@example.com")
	require.NoError(t, err)
	assert.Contains(t, turn3.Intents, "CONTACT_DISCLOSURE")
	assert.Equal(t, conversation.StateLeadCreated, turn3.State)
	assert.True(t, turn3.LeadCreated)
	assert.Equal(t, "crm-1", turn3.LeadID)
	assert.Contains(t, turn3.Reply, "Anna Schmidt")
	assert.Equal(t, 1, f.crm.calls)

	// Turn 4: another buying signal and a new email never re-create the
	// lead; the new value is recorded as a correction.
	turn4, err := f.engine.ProcessTurn(ctx, convID, "I want to buy! Use anna.new@example.com")
	require.NoError(t, err)
	assert.True(t, turn4.LeadCreated)
	assert.Equal(t, 1, f.crm.calls)

	conv, err := f.store.Load(ctx, convID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "anna.new@example.com", conv.Slots.Email)
	require.Len(t, conv.Corrections, 1)
	assert.Equal(t, "email", conv.Corrections[0].Slot)
	assert.Equal(t, "anna@example.com", conv.Corrections[0].OldValue)
	assert.Equal(t, "Anna Schmidt", conv.Slots.Name)
}

func TestProcessTurn_CRMFailureStaysPendingThenRecovers(t *testing.T) {
	f := newFixture(t)
	f.crm.fail = true
	ctx := context.Background()

	turn1, err := f.engine.ProcessTurn(ctx, "", "I'm interested! anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateLeadPending, turn1.State)
	assert.False(t, turn1.LeadCreated)
	assert.True(t, turn1.Degraded)
	assert.Contains(t, turn1.DegradedBy, "crm")
	assert.Equal(t, 1, f.crm.calls)

	// CRM recovers; the next turn retries and completes the lead.
	f.crm.fail = false
	turn2, err := f.engine.ProcessTurn(ctx, turn1.ConversationID, "any news?")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateLeadCreated, turn2.State)
	assert.True(t, turn2.LeadCreated)
	assert.Equal(t, 2, f.crm.calls)
}

func TestProcessTurn_RetrievalFailureDegradesButAnswers(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = fmt.Errorf("embedding backend down")
	ctx := context.Background()

	turn, err := f.engine.ProcessTurn(ctx, "", "show me a trail bike")
	require.NoError(t, err)
	assert.True(t, turn.Degraded)
	assert.Contains(t, turn.DegradedBy, "retrieval")
	assert.NotEmpty(t, turn.Reply)
	assert.Empty(t, turn.Products)
}

func TestProcessTurn_FAQIntentUsesSource(t *testing.T) {
	f := newFixture(t)
	f.gen.fail = true // force the fallback so the FAQ text is visible
	ctx := context.Background()

	turn, err := f.engine.ProcessTurn(ctx, "", "what is the warranty?")
	require.NoError(t, err)
	assert.Contains(t, turn.Intents, "FAQ")
	assert.Contains(t, turn.Reply, "2-year warranty")
}

func TestProcessTurn_FAQLookupFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.faq.err = agenterrors.NewFAQLookupFailedError(fmt.Errorf("index down"))
	ctx := context.Background()

	turn, err := f.engine.ProcessTurn(ctx, "", "what is the warranty?")
	require.NoError(t, err)
	assert.True(t, turn.Degraded)
	assert.Contains(t, turn.DegradedBy, "faq")
	assert.NotEmpty(t, turn.Reply)
}

func TestProcessTurn_EmptyMessageRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ProcessTurn(context.Background(), "", "   ")
	require.Error(t, err)
	assert.True(t, agenterrors.IsCode(err, agenterrors.ErrCodeValidationFailed))
}

func TestProcessTurn_UnknownIDStartsFreshConversation(t *testing.T) {
	f := newFixture(t)

	turn, err := f.engine.ProcessTurn(context.Background(), "client-chosen-id", "hello")
	require.NoError(t, err)
	assert.Equal(t, "client-chosen-id", turn.ConversationID)
	assert.Equal(t, conversation.StateEngaged, turn.State)

	conv, err := f.store.Load(context.Background(), "client-chosen-id")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Len(t, conv.Turns, 2) // customer turn plus assistant reply
}

func TestProcessTurn_StatePersistsAcrossTurns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn1, err := f.engine.ProcessTurn(ctx, "", "my budget is 1600 and I like trail riding")
	require.NoError(t, err)

	conv, err := f.store.Load(ctx, turn1.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, float64(1600), conv.Slots.BudgetMax)
	assert.Equal(t, "trail", conv.Slots.PreferredCategory)
}
