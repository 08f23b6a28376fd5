// Package scope decides which agents, categories and leads an identity may see or change.
//
// Every repository read and write takes a Predicate produced here; client input never
// contributes to one.
package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/models"
)

// Actor is the resolved identity behind a request: either an Organizer or an AgentActor.
type Actor interface {
	UserID() uuid.UUID
	OrganizationID() uuid.UUID
	Role() models.Role
	sealed()
}

// Organizer owns the organization profile it acts on.
type Organizer struct {
	User    uuid.UUID
	Profile uuid.UUID
}

func (o Organizer) UserID() uuid.UUID         { return o.User }
func (o Organizer) OrganizationID() uuid.UUID { return o.Profile }
func (Organizer) Role() models.Role           { return models.RoleOrganizer }
func (Organizer) sealed()                     {}

// AgentActor works the leads assigned to Agent inside Organization.
type AgentActor struct {
	User         uuid.UUID
	Agent        uuid.UUID
	Organization uuid.UUID
}

func (a AgentActor) UserID() uuid.UUID         { return a.User }
func (a AgentActor) OrganizationID() uuid.UUID { return a.Organization }
func (AgentActor) Role() models.Role           { return models.RoleAgent }
func (AgentActor) sealed()                     {}

// Facts is what storage knows about an identity.
type Facts struct {
	UserID              uuid.UUID
	Role                models.Role
	ProfileID           *uuid.UUID
	AgentID             *uuid.UUID
	AgentOrganizationID *uuid.UUID
}

// FactSource loads Facts for a user id. It returns apperr.ErrNotFound for unknown users.
type FactSource interface {
	ActorFacts(ctx context.Context, userID uuid.UUID) (Facts, error)
}

// FromFacts builds the Actor for f. Identities missing the record their role needs get ErrNoScope.
func FromFacts(f Facts) (Actor, error) {
	switch f.Role {
	case models.RoleOrganizer:
		if f.ProfileID == nil {
			return nil, apperr.ErrNoScope
		}
		return Organizer{User: f.UserID, Profile: *f.ProfileID}, nil
	case models.RoleAgent:
		if f.AgentID == nil || f.AgentOrganizationID == nil {
			return nil, apperr.ErrNoScope
		}
		return AgentActor{User: f.UserID, Agent: *f.AgentID, Organization: *f.AgentOrganizationID}, nil
	default:
		return nil, apperr.ErrNoScope
	}
}

// Load resolves the Actor for userID from src.
func Load(ctx context.Context, src FactSource, userID uuid.UUID) (Actor, error) {
	facts, err := src.ActorFacts(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNoScope
		}
		return nil, fmt.Errorf("load actor facts: %w", err)
	}
	return FromFacts(facts)
}
