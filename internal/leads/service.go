// Package leads implements the lead workflows: listing, editing, agent assignment,
// category reassignment and creation with an operator notification.
package leads

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
)

// Filter narrows List beyond the scope predicate.
type Filter struct {
	AssignedOnly bool
}

// Store is lead persistence. *Repository implements it.
type Store interface {
	List(ctx context.Context, p scope.Predicate, f Filter) ([]*models.Lead, error)
	Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Lead, error)
	Create(ctx context.Context, l *models.Lead) (*models.Lead, error)
	Update(ctx context.Context, p scope.Predicate, id uuid.UUID, l *models.Lead) (*models.Lead, error)
	SetAgent(ctx context.Context, p scope.Predicate, id uuid.UUID, agentID *uuid.UUID) (*models.Lead, error)
	SetCategory(ctx context.Context, p scope.Predicate, id uuid.UUID, categoryID *uuid.UUID) (*models.Lead, error)
	Delete(ctx context.Context, p scope.Predicate, id uuid.UUID) error
}

// AgentStore looks up agents. agents.Repository implements it.
type AgentStore interface {
	List(ctx context.Context, p scope.Predicate) ([]*models.Agent, error)
	Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Agent, error)
}

// CategoryStore looks up categories. categories.Repository implements it.
type CategoryStore interface {
	Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Category, error)
}

// Notifier is told about every persisted lead.
type Notifier interface {
	LeadCreated(ctx context.Context, lead *models.Lead) error
}

// Input is the editable part of a lead. Age defaults to 0.
type Input struct {
	FirstName   string     `json:"first_name" validate:"required,max=20"`
	LastName    string     `json:"last_name" validate:"required,max=20"`
	Age         int        `json:"age" validate:"gte=0"`
	AgentID     *uuid.UUID `json:"agent_id"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Description string     `json:"description"`
	PhoneNumber string     `json:"phone_number" validate:"required,max=20"`
	Email       string     `json:"email" validate:"required,email,max=254"`
}

func (in *Input) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// Board is the lead list view.
type Board struct {
	Leads           []*models.Lead `json:"leads"`
	UnassignedLeads []*models.Lead `json:"unassigned_leads"`
}

// Service implements lead workflows.
type Service struct {
	store      Store
	agents     AgentStore
	categories CategoryStore
	notifier   Notifier
	logger     *zap.Logger
}

// NewService creates a leads service. notifier may be nil.
func NewService(store Store, agents AgentStore, categories CategoryStore, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, agents: agents, categories: categories, notifier: notifier, logger: logger}
}

// List returns the leads the actor works. Organizers get their organization's assigned leads
// plus its unassigned pool; agents get their own leads and no pool.
func (s *Service) List(ctx context.Context, actor scope.Actor) (*Board, error) {
	p, err := scope.Resolve(actor, scope.Leads)
	if err != nil {
		return nil, err
	}
	board := &Board{Leads: []*models.Lead{}, UnassignedLeads: []*models.Lead{}}
	_, organizer := actor.(scope.Organizer)
	list, err := s.store.List(ctx, p, Filter{AssignedOnly: organizer})
	if err != nil {
		return nil, err
	}
	if list != nil {
		board.Leads = list
	}
	if !organizer {
		return board, nil
	}
	up, err := scope.Unassigned(actor)
	if err != nil {
		return nil, err
	}
	pool, err := s.store.List(ctx, up, Filter{})
	if err != nil {
		return nil, err
	}
	if pool != nil {
		board.UnassignedLeads = pool
	}
	return board, nil
}

// Get returns one lead visible to the actor.
func (s *Service) Get(ctx context.Context, actor scope.Actor, id uuid.UUID) (*models.Lead, error) {
	p, err := scope.Resolve(actor, scope.Leads)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, p, id)
}

func (s *Service) mutable(actor scope.Actor) (scope.Predicate, error) {
	if !scope.CanMutate(actor, scope.Leads) {
		return scope.Predicate{}, apperr.ErrForbidden
	}
	return scope.Resolve(actor, scope.Leads)
}

// validate checks in and confirms any referenced agent and category belong to the
// actor's organization. All field problems are reported together.
func (s *Service) validate(ctx context.Context, actor scope.Actor, in *Input) error {
	in.normalize()
	ve := apperr.NewValidation()
	if err := apperr.Struct(*in); err != nil {
		fe, ok := apperr.AsValidation(err)
		if !ok {
			return err
		}
		for k, v := range fe.Fields {
			ve.Add(k, v)
		}
	}
	if in.AgentID != nil {
		if _, err := s.agentInScope(ctx, actor, actor.OrganizationID(), *in.AgentID); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			ve.Add("agent_id", invalidChoice)
		}
	}
	if in.CategoryID != nil {
		if err := s.categoryInScope(ctx, actor, *in.CategoryID); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
			ve.Add("category_id", invalidChoice)
		}
	}
	return ve.OrNil()
}

const invalidChoice = "select a valid choice; that choice is not one of the available choices"

// agentInScope loads the agent if the actor can see it and it belongs to organizationID.
func (s *Service) agentInScope(ctx context.Context, actor scope.Actor, organizationID, agentID uuid.UUID) (*models.Agent, error) {
	p, err := scope.Resolve(actor, scope.Agents)
	if err != nil {
		return nil, err
	}
	agent, err := s.agents.Get(ctx, p, agentID)
	if err != nil {
		return nil, err
	}
	if agent.OrganizationID != organizationID {
		return nil, apperr.ErrNotFound
	}
	return agent, nil
}

func (s *Service) categoryInScope(ctx context.Context, actor scope.Actor, categoryID uuid.UUID) error {
	p, err := scope.Resolve(actor, scope.Categories)
	if err != nil {
		return err
	}
	_, err = s.categories.Get(ctx, p, categoryID)
	return err
}

// Create persists a lead in the organizer's organization, then notifies the operator.
// A failed notification is logged and never undoes the lead.
func (s *Service) Create(ctx context.Context, actor scope.Actor, in Input) (*models.Lead, error) {
	if _, err := s.mutable(actor); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, actor, &in); err != nil {
		return nil, err
	}
	lead, err := s.store.Create(ctx, &models.Lead{
		OrganizationID: actor.OrganizationID(),
		AgentID:        in.AgentID,
		CategoryID:     in.CategoryID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Age:            in.Age,
		Description:    in.Description,
		PhoneNumber:    in.PhoneNumber,
		Email:          in.Email,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.String("organization_id", lead.OrganizationID.String()),
	)
	if s.notifier != nil {
		if err := s.notifier.LeadCreated(ctx, lead); err != nil {
			s.logger.Error("lead notification failed", zap.Error(err), zap.String("lead_id", lead.ID.String()))
		}
	}
	return lead, nil
}

// Update replaces a lead's editable fields.
func (s *Service) Update(ctx context.Context, actor scope.Actor, id uuid.UUID, in Input) (*models.Lead, error) {
	p, err := s.mutable(actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, p, id); err != nil {
		return nil, err
	}
	if err := s.validate(ctx, actor, &in); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, p, id, &models.Lead{
		AgentID:     in.AgentID,
		CategoryID:  in.CategoryID,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Age:         in.Age,
		Description: in.Description,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
	})
}

// Delete removes a lead.
func (s *Service) Delete(ctx context.Context, actor scope.Actor, id uuid.UUID) error {
	p, err := s.mutable(actor)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, p, id); err != nil {
		return err
	}
	s.logger.Info("lead deleted", zap.String("lead_id", id.String()))
	return nil
}

// AssignCandidates returns the agents the lead may be assigned to: those of the lead's own organization.
func (s *Service) AssignCandidates(ctx context.Context, actor scope.Actor, id uuid.UUID) ([]*models.Agent, error) {
	p, err := s.mutable(actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, p, id); err != nil {
		return nil, err
	}
	// The lead is in the actor's organization, so the agent predicate is the lead's organization too.
	ap, err := scope.Resolve(actor, scope.Agents)
	if err != nil {
		return nil, err
	}
	list, err := s.agents.List(ctx, ap)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Agent{}
	}
	return list, nil
}

// Assign sets the lead's agent. The agent must belong to the lead's organization;
// anything else is a validation failure on agent_id. No other field changes.
func (s *Service) Assign(ctx context.Context, actor scope.Actor, id, agentID uuid.UUID) (*models.Lead, error) {
	p, err := s.mutable(actor)
	if err != nil {
		return nil, err
	}
	lead, err := s.store.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	agent, err := s.agentInScope(ctx, actor, lead.OrganizationID, agentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			ve := apperr.NewValidation()
			ve.Add("agent_id", invalidChoice)
			return nil, ve
		}
		return nil, err
	}
	updated, err := s.store.SetAgent(ctx, p, id, &agent.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("lead assigned", zap.String("lead_id", id.String()), zap.String("agent_id", agent.ID.String()))
	return updated, nil
}

// UpdateCategory files the lead under categoryID, or clears its category when nil.
// Agents may do this for their own leads.
func (s *Service) UpdateCategory(ctx context.Context, actor scope.Actor, id uuid.UUID, categoryID *uuid.UUID) (*models.Lead, error) {
	p, err := scope.Resolve(actor, scope.Leads)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, p, id); err != nil {
		return nil, err
	}
	if categoryID != nil {
		if err := s.categoryInScope(ctx, actor, *categoryID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				ve := apperr.NewValidation()
				ve.Add("category_id", invalidChoice)
				return nil, ve
			}
			return nil, err
		}
	}
	return s.store.SetCategory(ctx, p, id, categoryID)
}
