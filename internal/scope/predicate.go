package scope

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/leadflow/crm/internal/apperr"
)

// Kind names an organization-scoped entity set.
type Kind int

const (
	Agents Kind = iota
	Categories
	Leads
)

func (k Kind) String() string {
	switch k {
	case Agents:
		return "agents"
	case Categories:
		return "categories"
	case Leads:
		return "leads"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Predicate restricts rows to one organization and, for leads, optionally to one agent
// or to unassigned rows.
type Predicate struct {
	OrganizationID uuid.UUID
	AgentID        *uuid.UUID
	Unassigned     bool
}

// Resolve returns the visibility predicate for actor over kind.
func Resolve(actor Actor, kind Kind) (Predicate, error) {
	switch a := actor.(type) {
	case Organizer:
		return Predicate{OrganizationID: a.Profile}, nil
	case AgentActor:
		p := Predicate{OrganizationID: a.Organization}
		if kind == Leads {
			agent := a.Agent
			p.AgentID = &agent
		}
		return p, nil
	default:
		return Predicate{}, apperr.ErrNoScope
	}
}

// Unassigned returns the predicate for leads with no agent in the organizer's own organization.
// Agents never see the unassigned pool.
func Unassigned(actor Actor) (Predicate, error) {
	o, ok := actor.(Organizer)
	if !ok {
		return Predicate{}, apperr.ErrForbidden
	}
	return Predicate{OrganizationID: o.Profile, Unassigned: true}, nil
}

// CanMutate reports whether actor may create, update or delete rows of kind.
// Lead category reassignment is the one agent-permitted change and is checked separately.
func CanMutate(actor Actor, _ Kind) bool {
	_, ok := actor.(Organizer)
	return ok
}

// SQL renders p as a WHERE fragment over alias with placeholders starting at $next.
// Agent narrowing only applies to tables with an agent_id column (leads).
func (p Predicate) SQL(alias string, next int) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	clauses := []string{fmt.Sprintf("%s = $%d", col("organization_id"), next)}
	args := []any{p.OrganizationID}
	switch {
	case p.Unassigned:
		clauses = append(clauses, col("agent_id")+" IS NULL")
	case p.AgentID != nil:
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col("agent_id"), next+len(args)))
		args = append(args, *p.AgentID)
	}
	return strings.Join(clauses, " AND "), args
}

// Matches evaluates p against a row's organization and agent.
func (p Predicate) Matches(organizationID uuid.UUID, agentID *uuid.UUID) bool {
	if organizationID != p.OrganizationID {
		return false
	}
	switch {
	case p.Unassigned:
		return agentID == nil
	case p.AgentID != nil:
		return agentID != nil && *agentID == *p.AgentID
	default:
		return true
	}
}
