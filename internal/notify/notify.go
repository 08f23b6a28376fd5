// Package notify turns domain events into outbound email jobs.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/pkg/queue"
)

// LeadCreatedSubject is the subject of the operator notification for a new lead.
const LeadCreatedSubject = "New lead created!"

// Enqueuer accepts email jobs. *queue.Queue implements it.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Notifier queues notification emails. Delivery happens in the worker.
type Notifier struct {
	enq       Enqueuer
	operators []string
	siteURL   string
	logger    *zap.Logger
}

// NewNotifier creates a notifier sending operator mail to operators.
func NewNotifier(enq Enqueuer, operators []string, siteURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{enq: enq, operators: operators, siteURL: strings.TrimRight(siteURL, "/"), logger: logger}
}

// LeadCreated queues exactly one message to the operator addresses.
func (n *Notifier) LeadCreated(ctx context.Context, lead *models.Lead) error {
	if len(n.operators) == 0 {
		return fmt.Errorf("no operator address configured")
	}
	org, id := lead.OrganizationID, lead.ID
	payload := queue.EmailPayload{
		EmailType:      models.EmailTypeLeadCreated,
		OrganizationID: &org,
		LeadID:         &id,
		Recipients:     n.operators,
		Subject:        LeadCreatedSubject,
		Body: fmt.Sprintf("Please visit the site to view the new lead.\n\n%s\n%s/leads/%s\n",
			lead.FullName(), n.siteURL, lead.ID),
	}
	if err := n.enq.EnqueueEmail(ctx, payload); err != nil {
		return fmt.Errorf("enqueue lead notification: %w", err)
	}
	n.logger.Debug("lead notification queued", zap.String("lead_id", lead.ID.String()))
	return nil
}

// AgentInvited queues the sign-in details for a new agent.
func (n *Notifier) AgentInvited(ctx context.Context, agent *models.Agent, tempPassword string) error {
	org := agent.OrganizationID
	payload := queue.EmailPayload{
		EmailType:      models.EmailTypeAgentInvite,
		OrganizationID: &org,
		Recipients:     []string{agent.Email},
		Subject:        "You have been added as an agent",
		Body: fmt.Sprintf("Sign in at %s/login\n\nUsername: %s\nTemporary password: %s\n\nPlease change your password after signing in.\n",
			n.siteURL, agent.Username, tempPassword),
	}
	if err := n.enq.EnqueueEmail(ctx, payload); err != nil {
		return fmt.Errorf("enqueue agent invite: %w", err)
	}
	return nil
}
