package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/auth"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/utils"
)

type memoryStore struct {
	agents    map[uuid.UUID]*models.Agent
	passwords map[uuid.UUID]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{agents: map[uuid.UUID]*models.Agent{}, passwords: map[uuid.UUID]string{}}
}

func (m *memoryStore) List(_ context.Context, p scope.Predicate) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, a := range m.agents {
		if p.Matches(a.OrganizationID, nil) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, p scope.Predicate, id uuid.UUID) (*models.Agent, error) {
	a, ok := m.agents[id]
	if !ok || !p.Matches(a.OrganizationID, nil) {
		return nil, apperr.ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) Create(_ context.Context, org uuid.UUID, id auth.NewIdentity) (*models.Agent, error) {
	for _, a := range m.agents {
		if a.Username == id.Username {
			return nil, &apperr.ConflictError{Field: "username"}
		}
		if a.Email == id.Email {
			return nil, &apperr.ConflictError{Field: "email"}
		}
	}
	if id.Role != models.RoleAgent {
		return nil, errors.New("agents must get the agent role")
	}
	a := &models.Agent{ID: uuid.New(), UserID: uuid.New(), OrganizationID: org, Username: id.Username, Email: id.Email, FirstName: id.FirstName, LastName: id.LastName, CreatedAt: time.Now()}
	m.agents[a.ID] = a
	m.passwords[a.ID] = id.PasswordHash
	return a, nil
}

func (m *memoryStore) Update(ctx context.Context, p scope.Predicate, id uuid.UUID, in Input) (*models.Agent, error) {
	a, err := m.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	a.Username, a.Email, a.FirstName, a.LastName = in.Username, in.Email, in.FirstName, in.LastName
	return a, nil
}

func (m *memoryStore) Delete(ctx context.Context, p scope.Predicate, id uuid.UUID) error {
	if _, err := m.Get(ctx, p, id); err != nil {
		return err
	}
	delete(m.agents, id)
	return nil
}

type recordingNotifier struct {
	invited  []*models.Agent
	password string
	err      error
}

func (r *recordingNotifier) AgentInvited(_ context.Context, a *models.Agent, pw string) error {
	r.invited = append(r.invited, a)
	r.password = pw
	return r.err
}

func TestCreateBindsAgentToOrganizerOrganization(t *testing.T) {
	store, notifier := newMemoryStore(), &recordingNotifier{}
	svc := NewService(store, notifier, zap.NewNop())
	org1 := scope.Organizer{User: uuid.New(), Profile: uuid.New()}

	agent, err := svc.Create(context.Background(), org1, Input{Username: " a1 ", Email: "A1@Example.com"})
	require.NoError(t, err)
	require.Equal(t, org1.Profile, agent.OrganizationID)
	require.Equal(t, "a1", agent.Username)
	require.Equal(t, "a1@example.com", agent.Email)

	require.Len(t, notifier.invited, 1)
	require.True(t, utils.CheckPassword(notifier.password, store.passwords[agent.ID]), "invite carries the password that was hashed")
}

func TestCreateValidationAndConflict(t *testing.T) {
	svc := NewService(newMemoryStore(), nil, zap.NewNop())
	org1 := scope.Organizer{User: uuid.New(), Profile: uuid.New()}

	_, err := svc.Create(context.Background(), org1, Input{Username: "a1", Email: "nope"})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "email")

	_, err = svc.Create(context.Background(), org1, Input{Username: "a1", Email: "a1@example.com"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), org1, Input{Username: "a1", Email: "other@example.com"})
	ve, ok = apperr.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "username")

	_, err = svc.Create(context.Background(), org1, Input{Username: "a2", Email: "a1@example.com"})
	ve, ok = apperr.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "email")
	require.NotContains(t, ve.Fields, "username")
}

func TestInviteFailureDoesNotFailCreate(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, &recordingNotifier{err: errors.New("redis down")}, zap.NewNop())
	_, err := svc.Create(context.Background(), scope.Organizer{User: uuid.New(), Profile: uuid.New()}, Input{Username: "a1", Email: "a1@example.com"})
	require.NoError(t, err)
	require.Len(t, store.agents, 1)
}

func TestAgentsCannotManageAgents(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, zap.NewNop())
	org := uuid.New()
	existing, err := svc.Create(context.Background(), scope.Organizer{User: uuid.New(), Profile: org}, Input{Username: "a1", Email: "a1@example.com"})
	require.NoError(t, err)
	actor := scope.AgentActor{User: existing.UserID, Agent: existing.ID, Organization: org}

	_, err = svc.Create(context.Background(), actor, Input{Username: "a2", Email: "a2@example.com"})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Update(context.Background(), actor, existing.ID, Input{Username: "x", Email: "x@example.com"})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), actor, existing.ID), apperr.ErrForbidden)
}

func TestOtherOrganizationsAgentsAreNotFound(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, zap.NewNop())
	org1 := scope.Organizer{User: uuid.New(), Profile: uuid.New()}
	org2 := scope.Organizer{User: uuid.New(), Profile: uuid.New()}

	a1, err := svc.Create(context.Background(), org1, Input{Username: "a1", Email: "a1@example.com"})
	require.NoError(t, err)

	list, err := svc.List(context.Background(), org2)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = svc.Get(context.Background(), org2, a1.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Update(context.Background(), org2, a1.ID, Input{Username: "hijack", Email: "h@example.com"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), org2, a1.ID), apperr.ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), org1, a1.ID))
	require.Empty(t, store.agents)
}
