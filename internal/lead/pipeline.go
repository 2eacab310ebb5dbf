package lead

import (
	"context"
	"strings"

	agenterrors "bikeshop-agent/internal/common/errors"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/common/metrics"
	"bikeshop-agent/internal/conversation"
	"bikeshop-agent/internal/crm"
)

// Pipeline turns a qualified conversation into a CRM lead exactly once.
//
// Ordering is the whole point: the conversation is marked LEAD_PENDING and
// persisted by the caller before the CRM call, so a crash mid-call leaves a
// retryable state rather than a silent duplicate or a lost lead.
type Pipeline struct {
	crm      crm.Client
	store    *Store
	notifier *Notifier
	logger   logger.Logger
}

func NewPipeline(crmClient crm.Client, store *Store, notifier *Notifier, log logger.Logger) *Pipeline {
	return &Pipeline{
		crm:      crmClient,
		store:    store,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "lead_pipeline"}),
	}
}

// MaybeCreateLead attempts lead creation if the conversation qualifies. It
// returns created=true only on the turn the lead actually came into being;
// repeated calls after LEAD_CREATED are no-ops. On CRM failure the
// conversation stays LEAD_PENDING and the error is returned for the caller
// to degrade the response.
func (p *Pipeline) MaybeCreateLead(ctx context.Context, conv *conversation.Conversation) (bool, error) {
	if conv.LeadCreated || conv.State == conversation.StateLeadCreated {
		return false, nil
	}
	if conv.State != conversation.StateQualified && conv.State != conversation.StateLeadPending {
		return false, nil
	}
	if !conv.Slots.HasContact() {
		return false, nil
	}

	conv.MarkLeadPending()

	first, last := splitName(conv.Slots.Name)
	crmLead := &crm.Lead{
		FirstName:      first,
		LastName:       last,
		Email:          conv.Slots.Email,
		Phone:          conv.Slots.Phone,
		Company:        "Walk-in",
		Source:         "Sales Assistant",
		ConversationID: conv.ID,
	}

	crmID, err := p.crm.CreateLead(ctx, crmLead)
	if err != nil {
		metrics.LeadAttemptsFailed.WithLabelValues(string(agenterrors.CodeOf(err))).Inc()
		p.logger.Error("lead creation failed, conversation stays pending", map[string]interface{}{
			"conversation_id": conv.ID,
			"error":           err.Error(),
		})
		return false, err
	}

	conv.MarkLeadCreated(crmID)
	metrics.LeadsCreated.Inc()

	rec := &Record{
		ConversationID:    conv.ID,
		CRMLeadID:         crmID,
		Name:              conv.Slots.Name,
		Email:             conv.Slots.Email,
		Phone:             conv.Slots.Phone,
		BudgetMax:         conv.Slots.BudgetMax,
		PreferredCategory: conv.Slots.PreferredCategory,
	}

	// The CRM is the source of truth once CreateLead succeeded. A local
	// store failure is logged, not surfaced, so the customer still gets a
	// confirmation and the state machine stays terminal.
	if p.store != nil {
		if dup, err := p.store.Insert(ctx, rec); err != nil {
			p.logger.Error("lead record persistence failed", map[string]interface{}{
				"conversation_id": conv.ID,
				"crm_lead_id":     crmID,
				"error":           err.Error(),
			})
		} else if dup {
			p.logger.Warn("lead record already existed", map[string]interface{}{
				"conversation_id": conv.ID,
			})
		}
	}

	if p.notifier != nil {
		p.notifier.Notify(ctx, rec)
	}

	p.logger.Info("lead created", map[string]interface{}{
		"conversation_id": conv.ID,
		"crm_lead_id":     crmID,
	})
	return true, nil
}

// splitName maps a free-form name onto Zoho's first/last fields. Zoho
// requires a last name, so a single word becomes the last name.
func splitName(name string) (first, last string) {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return "", words[0]
	default:
		return strings.Join(words[:len(words)-1], " "), words[len(words)-1]
	}
}
