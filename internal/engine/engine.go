// Package engine orchestrates one conversation turn: classify, extract,
// retrieve, qualify, reply, persist.
package engine

import (
	"context"
	"strings"
	"time"

	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/common/metrics"
	"bikeshop-agent/internal/conversation"
	"bikeshop-agent/internal/faq"
	"bikeshop-agent/internal/intent"
	"bikeshop-agent/internal/lead"
	"bikeshop-agent/internal/respond"
	"bikeshop-agent/internal/retrieval"
	"bikeshop-agent/internal/slots"
)

// TurnResult is the outcome of one processed customer message.
type TurnResult struct {
	ConversationID string             `json:"conversationId"`
	Reply          string             `json:"reply"`
	Intents        []string           `json:"intents"`
	State          conversation.State `json:"state"`
	LeadCreated    bool               `json:"leadCreated"`
	LeadID         string             `json:"leadId,omitempty"`
	Products       []retrieval.Result `json:"products,omitempty"`
	Degraded       bool               `json:"degraded"`
	DegradedBy     []string           `json:"degradedBy,omitempty"`
}

type Engine struct {
	store      *conversation.Store
	locks      *conversation.Locks
	classifier *intent.Classifier
	extractor  *slots.Extractor
	retriever  *retrieval.Retriever
	faqSource  faq.Source
	planner    *respond.Planner
	leads      *lead.Pipeline
	logger     logger.Logger
}

func New(
	store *conversation.Store,
	classifier *intent.Classifier,
	extractor *slots.Extractor,
	retriever *retrieval.Retriever,
	faqSource faq.Source,
	planner *respond.Planner,
	leads *lead.Pipeline,
	log logger.Logger,
) *Engine {
	return &Engine{
		store:      store,
		locks:      conversation.NewLocks(),
		classifier: classifier,
		extractor:  extractor,
		retriever:  retriever,
		faqSource:  faqSource,
		planner:    planner,
		leads:      leads,
		logger:     log.WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// ProcessTurn handles one customer message. Turns for the same conversation
// are serialized; the conversation is saved exactly once, after all
// mutations for the turn.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, message string) (*TurnResult, error) {
	start := time.Now()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, agenterrors.NewValidationFailedError("message must not be empty")
	}

	conv, release, err := e.loadOrCreate(ctx, conversationID)
	if err != nil {
		metrics.TurnsProcessed.WithLabelValues("error").Inc()
		return nil, err
	}
	defer release()

	namePrompted := asksForName(conv.LastAssistantText())
	prevIntents := intent.FromValues(conv.LastIntents)

	conv.AddTurn(conversation.SpeakerCustomer, message)

	intents := e.classifier.Classify(message, prevIntents)
	for _, i := range intents.Values() {
		metrics.IntentsDetected.WithLabelValues(i).Inc()
	}

	extracted := e.extractor.Extract(message, namePrompted)
	for _, amb := range extracted.Ambiguities {
		e.logger.Warn("ambiguous slot extraction, first match kept", map[string]interface{}{
			"conversation_id": conv.ID,
			"slot":            amb.Slot,
			"kept":            amb.Kept,
			"candidates":      amb.Candidates,
		})
	}
	if corrections := conv.ApplyExtracted(extracted); len(corrections) > 0 {
		for _, c := range corrections {
			e.logger.Info("slot corrected", map[string]interface{}{
				"conversation_id": conv.ID,
				"slot":            c.Slot,
				"old":             c.OldValue,
				"new":             c.NewValue,
			})
		}
	}

	result := &TurnResult{ConversationID: conv.ID}

	var retrievalResp *retrieval.Response
	if intents.Has(intent.ProductQuery) {
		retrievalResp = e.searchProducts(ctx, conv, message, result)
	}

	var faqAnswer string
	if intents.Has(intent.FAQ) && e.faqSource != nil {
		answer, err := e.faqSource.Lookup(ctx, message)
		if err != nil {
			e.logger.Warn("faq lookup failed", map[string]interface{}{
				"conversation_id": conv.ID,
				"error":           err.Error(),
			})
			e.markDegraded(result, "faq")
		} else {
			faqAnswer = answer
		}
	}

	conv.Advance(intents.Has(intent.BuyingSignal))

	leadCreatedNow := false
	leadPendingRetry := false
	if e.leads != nil {
		created, err := e.leads.MaybeCreateLead(ctx, conv)
		switch {
		case err != nil:
			leadPendingRetry = true
			e.markDegraded(result, "crm")
		case created:
			leadCreatedNow = true
		}
	}

	needContact := conv.BuyingSignalSeen && !conv.Slots.HasContact() && !conv.LeadCreated

	plan := e.planner.Respond(ctx, respond.Input{
		Conversation:     conv,
		Message:          message,
		Retrieval:        retrievalResp,
		FAQAnswer:        faqAnswer,
		LeadCreatedNow:   leadCreatedNow,
		LeadPendingRetry: leadPendingRetry,
		NeedContact:      needContact,
	})
	if plan.Degraded {
		result.Degraded = true
		result.DegradedBy = append(result.DegradedBy, plan.DegradedBy...)
	}

	conv.AddTurn(conversation.SpeakerAssistant, plan.Reply)
	conv.LastIntents = intents.Values()

	if err := e.store.Save(ctx, conv); err != nil {
		metrics.TurnsProcessed.WithLabelValues("error").Inc()
		return nil, err
	}

	result.Reply = plan.Reply
	result.Intents = intents.Values()
	result.State = conv.State
	result.LeadCreated = conv.LeadCreated
	result.LeadID = conv.LeadID

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	metrics.TurnsProcessed.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())

	return result, nil
}

// loadOrCreate resolves the conversation and takes its lock. A blank id
// starts a new conversation; an unknown id resumes as a new conversation
// under that id so clients can pick their own identifiers.
func (e *Engine) loadOrCreate(ctx context.Context, id string) (*conversation.Conversation, func(), error) {
	if id == "" {
		conv := conversation.New()
		return conv, e.locks.Acquire(conv.ID), nil
	}

	release := e.locks.Acquire(id)
	conv, err := e.store.Load(ctx, id)
	if err != nil {
		release()
		return nil, nil, err
	}
	if conv == nil {
		conv = conversation.NewWithID(id)
	}
	return conv, release, nil
}

// searchProducts runs retrieval with filters parsed from the message and
// keeps only results at or above the match threshold.
func (e *Engine) searchProducts(ctx context.Context, conv *conversation.Conversation, message string, result *TurnResult) *retrieval.Response {
	filters := retrieval.ParseFilters(message, e.retriever.Categories())
	if filters.MaxPrice == 0 && conv.Slots.BudgetMax > 0 {
		filters.MaxPrice = conv.Slots.BudgetMax
	}
	if filters.Category == "" && conv.Slots.PreferredCategory != "" {
		filters.Category = conv.Slots.PreferredCategory
	}

	resp, err := e.retriever.Search(ctx, message, filters, 0)
	if err != nil {
		e.logger.Warn("retrieval failed", map[string]interface{}{
			"conversation_id": conv.ID,
			"error":           err.Error(),
		})
		e.markDegraded(result, "retrieval")
		return nil
	}

	kept := resp.Results[:0]
	for _, r := range resp.Results {
		if r.Score >= e.retriever.MinScore() {
			kept = append(kept, r)
		}
	}
	resp.Results = kept
	result.Products = kept
	return resp
}

func (e *Engine) markDegraded(result *TurnResult, collaborator string) {
	result.Degraded = true
	result.DegradedBy = append(result.DegradedBy, collaborator)
	metrics.DegradedResponses.WithLabelValues(collaborator).Inc()
}

// asksForName detects whether the previous assistant turn asked for the
// customer's name, which gates name extraction on the next turn.
func asksForName(assistantText string) bool {
	return strings.Contains(strings.ToLower(assistantText), "your name")
}
