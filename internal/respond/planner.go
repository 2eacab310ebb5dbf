// Package respond turns one processed turn into reply text. It prefers the
// language model and falls back to templated replies when generation is
// unavailable, so the assistant always answers.
package respond

import (
	"context"
	"fmt"
	"strings"

	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/common/metrics"
	"bikeshop-agent/internal/conversation"
	"bikeshop-agent/internal/generation"
	"bikeshop-agent/internal/retrieval"
)

const (
	maxHistoryTurns   = 4
	maxPromptProducts = 2
)

// Input is everything gathered for the turn before replying.
type Input struct {
	Conversation *conversation.Conversation
	Message      string
	Retrieval    *retrieval.Response
	FAQAnswer    string
	// LeadCreatedNow is set on the single turn the lead came into being.
	LeadCreatedNow bool
	// LeadPendingRetry is set when lead creation was attempted and failed.
	LeadPendingRetry bool
	// NeedContact is set when a buying signal was seen but no contact slot
	// is filled yet.
	NeedContact bool
}

// Plan is the reply plus degradation facts for the transport layer.
type Plan struct {
	Reply      string
	Degraded   bool
	DegradedBy []string
}

type Planner struct {
	generator generation.Generator
	logger    logger.Logger
}

func NewPlanner(gen generation.Generator, log logger.Logger) *Planner {
	return &Planner{
		generator: gen,
		logger:    log.WithFields(map[string]interface{}{"component": "planner"}),
	}
}

// Respond builds the reply for one turn. A contact request and a lead
// confirmation take priority over generated prose so the conversation always
// moves toward qualification.
func (p *Planner) Respond(ctx context.Context, in Input) Plan {
	var plan Plan

	if in.Retrieval != nil && !in.Retrieval.Fresh {
		plan.Degraded = true
		plan.DegradedBy = append(plan.DegradedBy, "retrieval")
		metrics.DegradedResponses.WithLabelValues("retrieval").Inc()
	}

	switch {
	case in.LeadCreatedNow:
		plan.Reply = leadConfirmation(in.Conversation)
		return plan
	case in.LeadPendingRetry:
		plan.Reply = "Thanks! I've got your details and I'm passing them to our sales team. They'll be in touch shortly."
		return plan
	case in.NeedContact:
		plan.Reply = contactRequest(in)
		return plan
	}

	prompt := buildPrompt(in)
	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.logger.Warn("generation failed, using fallback reply", map[string]interface{}{
			"conversation_id": in.Conversation.ID,
			"error":           err.Error(),
		})
		plan.Degraded = true
		plan.DegradedBy = append(plan.DegradedBy, "generation")
		metrics.DegradedResponses.WithLabelValues("generation").Inc()
		plan.Reply = fallbackReply(in)
		return plan
	}

	plan.Reply = reply
	return plan
}

// buildPrompt assembles a bounded prompt: system context, top products, FAQ
// snippet, and the last few history turns. It never grows with conversation
// length.
func buildPrompt(in Input) string {
	conv := in.Conversation

	var b strings.Builder
	b.WriteString("You are a friendly bike shop sales assistant. Help customers find the perfect bike.\n\n")
	fmt.Fprintf(&b, "Customer Info: Name=%s, Email=%s\n",
		orUnknown(conv.Slots.Name), orNotProvided(conv.Slots.Email))

	if in.Retrieval != nil && len(in.Retrieval.Results) > 0 {
		b.WriteString("\nAvailable Products:\n")
		for i, res := range in.Retrieval.Results {
			if i >= maxPromptProducts {
				break
			}
			fmt.Fprintf(&b, "- %s (%s) - €%.0f - %s\n",
				res.Item.Name, res.Item.Category, res.Item.PriceEUR, res.Item.Description)
		}
	}

	if in.FAQAnswer != "" {
		fmt.Fprintf(&b, "\nFAQ Info: %s\n", in.FAQAnswer)
	}

	b.WriteString("\nBe helpful, enthusiastic but not pushy. Ask for contact info if the customer shows interest.\n\n")

	turns := conv.Turns
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	for _, t := range turns {
		role := "Customer"
		if t.Speaker == conversation.SpeakerAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Text)
	}
	fmt.Fprintf(&b, "Customer: %s\nAssistant:", in.Message)

	return b.String()
}

// fallbackReply mirrors the priority order of the prompt: products first,
// then FAQ, then a generic nudge.
func fallbackReply(in Input) string {
	if in.Retrieval != nil && len(in.Retrieval.Results) > 0 {
		names := make([]string, 0, maxPromptProducts)
		for i, res := range in.Retrieval.Results {
			if i >= maxPromptProducts {
				break
			}
			names = append(names, res.Item.Name)
		}
		return fmt.Sprintf("I found some great bikes for you: %s. Would you like more details?",
			strings.Join(names, ", "))
	}

	if in.FAQAnswer != "" {
		answer := in.FAQAnswer
		if len(answer) > 200 {
			answer = answer[:200] + "..."
		}
		return fmt.Sprintf("Here's what I found: %s Would you like more information?", answer)
	}

	return "I'm here to help you find the perfect bike! What are you looking for?"
}

func contactRequest(in Input) string {
	var lead string
	if in.Retrieval != nil && len(in.Retrieval.Results) > 0 {
		lead = fmt.Sprintf("Great choice! The %s is a customer favorite. ", in.Retrieval.Results[0].Item.Name)
	} else {
		lead = "That's great to hear! "
	}
	if in.Conversation.Slots.Name == "" {
		return lead + "Could I get your name and an email or phone number so our team can follow up?"
	}
	return lead + "Could you share an email or phone number so our team can follow up?"
}

func leadConfirmation(conv *conversation.Conversation) string {
	if conv.Slots.Name != "" {
		return fmt.Sprintf("Thanks, %s! I've passed your details to our sales team and they'll reach out soon to get you riding.", conv.Slots.Name)
	}
	return "Perfect, I've passed your details to our sales team and they'll reach out soon to get you riding."
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orNotProvided(s string) string {
	if s == "" {
		return "Not provided"
	}
	return s
}
