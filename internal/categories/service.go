// Package categories groups an organization's leads under named buckets.
package categories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
)

// Store is category persistence. *Repository implements it.
type Store interface {
	List(ctx context.Context, p scope.Predicate) ([]*models.Category, error)
	Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, organizationID uuid.UUID, name string) (*models.Category, error)
	Rename(ctx context.Context, p scope.Predicate, id uuid.UUID, name string) (*models.Category, error)
	Delete(ctx context.Context, p scope.Predicate, id uuid.UUID) error
}

// LeadReader is the lead lookup the category views need. leads.Repository implements it.
type LeadReader interface {
	ListByCategory(ctx context.Context, p scope.Predicate, categoryID uuid.UUID) ([]*models.Lead, error)
	CountUncategorized(ctx context.Context, p scope.Predicate) (int, error)
}

// Input is the editable part of a category.
type Input struct {
	Name string `json:"name" validate:"required,max=30"`
}

// Overview is the category list view.
type Overview struct {
	Categories          []*models.Category `json:"categories"`
	UnassignedLeadCount int                `json:"unassigned_lead_count"`
}

// Detail is one category with the leads the actor can see in it.
type Detail struct {
	Category *models.Category `json:"category"`
	Leads    []*models.Lead   `json:"leads"`
}

// Service implements category workflows.
type Service struct {
	store  Store
	leads  LeadReader
	logger *zap.Logger
}

// NewService creates a categories service.
func NewService(store Store, leads LeadReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, leads: leads, logger: logger}
}

// List returns the organization's categories and how many visible leads have none.
func (s *Service) List(ctx context.Context, actor scope.Actor) (*Overview, error) {
	p, err := scope.Resolve(actor, scope.Categories)
	if err != nil {
		return nil, err
	}
	list, err := s.store.List(ctx, p)
	if err != nil {
		return nil, err
	}
	lp, err := scope.Resolve(actor, scope.Leads)
	if err != nil {
		return nil, err
	}
	n, err := s.leads.CountUncategorized(ctx, lp)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Category{}
	}
	return &Overview{Categories: list, UnassignedLeadCount: n}, nil
}

// Get returns a category and its leads, each filtered by the actor's own scope.
func (s *Service) Get(ctx context.Context, actor scope.Actor, id uuid.UUID) (*Detail, error) {
	p, err := scope.Resolve(actor, scope.Categories)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	lp, err := scope.Resolve(actor, scope.Leads)
	if err != nil {
		return nil, err
	}
	leads, err := s.leads.ListByCategory(ctx, lp, c.ID)
	if err != nil {
		return nil, err
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	return &Detail{Category: c, Leads: leads}, nil
}

func (s *Service) mutable(actor scope.Actor) (scope.Predicate, error) {
	if !scope.CanMutate(actor, scope.Categories) {
		return scope.Predicate{}, apperr.ErrForbidden
	}
	return scope.Resolve(actor, scope.Categories)
}

// Create adds a category to the organizer's organization.
func (s *Service) Create(ctx context.Context, actor scope.Actor, in Input) (*models.Category, error) {
	if _, err := s.mutable(actor); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := apperr.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.store.Create(ctx, actor.OrganizationID(), in.Name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("category created", zap.String("category_id", c.ID.String()), zap.String("organization_id", c.OrganizationID.String()))
	return c, nil
}

// Rename changes a category's name.
func (s *Service) Rename(ctx context.Context, actor scope.Actor, id uuid.UUID, in Input) (*models.Category, error) {
	p, err := s.mutable(actor)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := apperr.Struct(in); err != nil {
		return nil, err
	}
	return s.store.Rename(ctx, p, id, in.Name)
}

// Delete removes a category. Leads in it become uncategorized.
func (s *Service) Delete(ctx context.Context, actor scope.Actor, id uuid.UUID) error {
	p, err := s.mutable(actor)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, p, id)
}
