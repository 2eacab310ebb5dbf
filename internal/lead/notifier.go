package lead

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	awsclient "bikeshop-agent/internal/common/aws"
	"bikeshop-agent/internal/common/logger"
)

// Notifier emails the sales team when a lead is created. Notification is
// best effort: a delivery failure is logged and never fails the turn.
type Notifier struct {
	ses    *awsclient.SESClient
	from   string
	to     []string
	logger logger.Logger
}

func NewNotifier(sesClient *awsclient.SESClient, from string, to []string, log logger.Logger) *Notifier {
	return &Notifier{
		ses:    sesClient,
		from:   from,
		to:     to,
		logger: log.WithFields(map[string]interface{}{"component": "lead_notifier"}),
	}
}

func (n *Notifier) Notify(ctx context.Context, rec *Record) {
	if n.ses == nil || n.from == "" || len(n.to) == 0 {
		return
	}

	subject := fmt.Sprintf("New lead: %s", displayName(rec))
	body := fmt.Sprintf(
		"A new lead was created.\n\nName: %s\nEmail: %s\nPhone: %s\nBudget: %.0f\nCategory: %s\nCRM lead: %s\nConversation: %s\n",
		rec.Name, rec.Email, rec.Phone, rec.BudgetMax, rec.PreferredCategory, rec.CRMLeadID, rec.ConversationID)

	input := &ses.SendEmailInput{
		Source: aws.String(n.from),
		Destination: &types.Destination{
			ToAddresses: n.to,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	}

	if _, err := n.ses.SendEmail(ctx, input); err != nil {
		n.logger.Warn("lead notification email failed", map[string]interface{}{
			"conversation_id": rec.ConversationID,
			"error":           err.Error(),
		})
	}
}

func displayName(rec *Record) string {
	if rec.Name != "" {
		return rec.Name
	}
	if rec.Email != "" {
		return rec.Email
	}
	return rec.Phone
}
