package leads

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
)

// world is an in-memory organization store covering leads, agents and categories.
type world struct {
	mu         sync.Mutex
	leads      map[uuid.UUID]*models.Lead
	agents     map[uuid.UUID]*models.Agent
	categories map[uuid.UUID]*models.Category
	seq        int
}

func newWorld() *world {
	return &world{
		leads:      map[uuid.UUID]*models.Lead{},
		agents:     map[uuid.UUID]*models.Agent{},
		categories: map[uuid.UUID]*models.Category{},
	}
}

func (w *world) addAgent(org uuid.UUID, username string) *models.Agent {
	a := &models.Agent{ID: uuid.New(), UserID: uuid.New(), OrganizationID: org, Username: username}
	w.agents[a.ID] = a
	return a
}

func (w *world) addCategory(org uuid.UUID, name string) *models.Category {
	c := &models.Category{ID: uuid.New(), OrganizationID: org, Name: name}
	w.categories[c.ID] = c
	return c
}

func (w *world) addLead(org uuid.UUID, agent *uuid.UUID, name string) *models.Lead {
	l, _ := w.Create(context.Background(), &models.Lead{OrganizationID: org, AgentID: agent, FirstName: name, LastName: "Doe"})
	return l
}

// deleteAgent mirrors ON DELETE SET NULL on leads.agent_id.
func (w *world) deleteAgent(id uuid.UUID) {
	delete(w.agents, id)
	for _, l := range w.leads {
		if l.AgentID != nil && *l.AgentID == id {
			l.AgentID = nil
		}
	}
}

func (w *world) sorted(keep func(*models.Lead) bool) []*models.Lead {
	var out []*models.Lead
	for _, l := range w.leads {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (w *world) List(_ context.Context, p scope.Predicate, f Filter) ([]*models.Lead, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sorted(func(l *models.Lead) bool {
		return p.Matches(l.OrganizationID, l.AgentID) && (!f.AssignedOnly || l.AgentID != nil)
	}), nil
}

func (w *world) Get(_ context.Context, p scope.Predicate, id uuid.UUID) (*models.Lead, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.leads[id]
	if !ok || !p.Matches(l.OrganizationID, l.AgentID) {
		return nil, apperr.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (w *world) Create(_ context.Context, l *models.Lead) (*models.Lead, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l.Age < 0 {
		return nil, errors.New("age check constraint")
	}
	w.seq++
	cp := *l
	cp.ID = uuid.New()
	cp.CreatedAt = time.Unix(int64(w.seq), 0)
	cp.UpdatedAt = cp.CreatedAt
	w.leads[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (w *world) mutate(p scope.Predicate, id uuid.UUID, fn func(*models.Lead)) (*models.Lead, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.leads[id]
	if !ok || !p.Matches(l.OrganizationID, l.AgentID) {
		return nil, apperr.ErrNotFound
	}
	fn(l)
	cp := *l
	return &cp, nil
}

func (w *world) Update(_ context.Context, p scope.Predicate, id uuid.UUID, in *models.Lead) (*models.Lead, error) {
	return w.mutate(p, id, func(l *models.Lead) {
		l.AgentID, l.CategoryID = in.AgentID, in.CategoryID
		l.FirstName, l.LastName, l.Age = in.FirstName, in.LastName, in.Age
		l.Description, l.PhoneNumber, l.Email = in.Description, in.PhoneNumber, in.Email
	})
}

func (w *world) SetAgent(_ context.Context, p scope.Predicate, id uuid.UUID, agentID *uuid.UUID) (*models.Lead, error) {
	return w.mutate(p, id, func(l *models.Lead) { l.AgentID = agentID })
}

func (w *world) SetCategory(_ context.Context, p scope.Predicate, id uuid.UUID, categoryID *uuid.UUID) (*models.Lead, error) {
	return w.mutate(p, id, func(l *models.Lead) { l.CategoryID = categoryID })
}

func (w *world) Delete(_ context.Context, p scope.Predicate, id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.leads[id]
	if !ok || !p.Matches(l.OrganizationID, l.AgentID) {
		return apperr.ErrNotFound
	}
	delete(w.leads, id)
	return nil
}

type worldAgents struct{ w *world }

func (a worldAgents) List(_ context.Context, p scope.Predicate) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, ag := range a.w.agents {
		if p.Matches(ag.OrganizationID, nil) {
			out = append(out, ag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (a worldAgents) Get(_ context.Context, p scope.Predicate, id uuid.UUID) (*models.Agent, error) {
	ag, ok := a.w.agents[id]
	if !ok || !p.Matches(ag.OrganizationID, nil) {
		return nil, apperr.ErrNotFound
	}
	return ag, nil
}

type worldCategories struct{ w *world }

func (c worldCategories) Get(_ context.Context, p scope.Predicate, id uuid.UUID) (*models.Category, error) {
	cat, ok := c.w.categories[id]
	if !ok || !p.Matches(cat.OrganizationID, nil) {
		return nil, apperr.ErrNotFound
	}
	return cat, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	leads []*models.Lead
	err   error
}

func (r *recordingNotifier) LeadCreated(_ context.Context, l *models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, l)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leads)
}
