package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/auth"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/utils"
)

// Store is agent persistence. *Repository implements it.
type Store interface {
	List(ctx context.Context, p scope.Predicate) ([]*models.Agent, error)
	Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Agent, error)
	Create(ctx context.Context, organizationID uuid.UUID, identity auth.NewIdentity) (*models.Agent, error)
	Update(ctx context.Context, p scope.Predicate, id uuid.UUID, in Input) (*models.Agent, error)
	Delete(ctx context.Context, p scope.Predicate, id uuid.UUID) error
}

// Notifier tells a new agent how to sign in.
type Notifier interface {
	AgentInvited(ctx context.Context, agent *models.Agent, tempPassword string) error
}

// Input is the editable part of an agent.
type Input struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

func (in *Input) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

// Service implements the organizer's agent management.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates an agents service.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

func (s *Service) mutable(actor scope.Actor) (scope.Predicate, error) {
	if !scope.CanMutate(actor, scope.Agents) {
		return scope.Predicate{}, apperr.ErrForbidden
	}
	return scope.Resolve(actor, scope.Agents)
}

// List returns the agents of the actor's organization.
func (s *Service) List(ctx context.Context, actor scope.Actor) ([]*models.Agent, error) {
	p, err := scope.Resolve(actor, scope.Agents)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, p)
}

// Get returns one agent of the actor's organization.
func (s *Service) Get(ctx context.Context, actor scope.Actor, id uuid.UUID) (*models.Agent, error) {
	p, err := scope.Resolve(actor, scope.Agents)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, p, id)
}

// Create makes a new agent login in the organizer's organization and sends the invitation.
// The organization always comes from the actor.
func (s *Service) Create(ctx context.Context, actor scope.Actor, in Input) (*models.Agent, error) {
	if _, err := s.mutable(actor); err != nil {
		return nil, err
	}
	in.normalize()
	if err := apperr.Struct(in); err != nil {
		return nil, err
	}
	password, err := utils.RandomPassword(12)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	agent, err := s.store.Create(ctx, actor.OrganizationID(), auth.NewIdentity{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         models.RoleAgent,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, conflictValidation(err)
		}
		return nil, err
	}
	s.logger.Info("agent created",
		zap.String("agent_id", agent.ID.String()),
		zap.String("organization_id", agent.OrganizationID.String()),
	)
	if s.notifier != nil {
		if err := s.notifier.AgentInvited(ctx, agent, password); err != nil {
			s.logger.Warn("agent invitation not queued", zap.Error(err), zap.String("agent_id", agent.ID.String()))
		}
	}
	return agent, nil
}

// Update edits an agent's login details.
func (s *Service) Update(ctx context.Context, actor scope.Actor, id uuid.UUID, in Input) (*models.Agent, error) {
	p, err := s.mutable(actor)
	if err != nil {
		return nil, err
	}
	in.normalize()
	if err := apperr.Struct(in); err != nil {
		return nil, err
	}
	agent, err := s.store.Update(ctx, p, id, in)
	if errors.Is(err, apperr.ErrConflict) {
		return nil, conflictValidation(err)
	}
	return agent, err
}

// Delete removes an agent. Their leads stay in the organization, unassigned.
func (s *Service) Delete(ctx context.Context, actor scope.Actor, id uuid.UUID) error {
	p, err := s.mutable(actor)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, p, id); err != nil {
		return err
	}
	s.logger.Info("agent deleted", zap.String("agent_id", id.String()))
	return nil
}

func conflictValidation(err error) error {
	field := "username"
	var ce *apperr.ConflictError
	if errors.As(err, &ce) && ce.Field != "" {
		field = ce.Field
	}
	ve := apperr.NewValidation()
	ve.Add(field, "a user with that "+field+" already exists")
	return ve
}
