package leads

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/scope"
)

type fixture struct {
	w        *world
	notifier *recordingNotifier
	svc      *Service
	org1     scope.Organizer
	org2     scope.Organizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		w:        newWorld(),
		notifier: &recordingNotifier{},
		org1:     scope.Organizer{User: uuid.New(), Profile: uuid.New()},
		org2:     scope.Organizer{User: uuid.New(), Profile: uuid.New()},
	}
	f.svc = NewService(f.w, worldAgents{f.w}, worldCategories{f.w}, f.notifier, zap.NewNop())
	return f
}

func (f *fixture) agentActor(org uuid.UUID, username string) scope.AgentActor {
	a := f.w.addAgent(org, username)
	return scope.AgentActor{User: a.UserID, Agent: a.ID, Organization: org}
}

func validInput() Input {
	return Input{FirstName: "Jane", LastName: "Doe", Age: 30, PhoneNumber: "555-0100", Email: "jane@example.com"}
}

func TestJaneDoeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.agentActor(f.org1.Profile, "a1")

	jane, err := f.svc.Create(ctx, f.org1, validInput())
	require.NoError(t, err)
	require.Equal(t, f.org1.Profile, jane.OrganizationID)
	require.Nil(t, jane.AgentID)
	require.Equal(t, 1, f.notifier.count())

	board, err := f.svc.List(ctx, f.org1)
	require.NoError(t, err)
	require.Empty(t, board.Leads)
	require.Len(t, board.UnassignedLeads, 1)

	assigned, err := f.svc.Assign(ctx, f.org1, jane.ID, a1.Agent)
	require.NoError(t, err)
	require.Equal(t, a1.Agent, *assigned.AgentID)
	require.Equal(t, jane.FirstName, assigned.FirstName, "assignment changes nothing else")

	board, err = f.svc.List(ctx, a1)
	require.NoError(t, err)
	require.Len(t, board.Leads, 1)
	require.Equal(t, jane.ID, board.Leads[0].ID)
	require.Empty(t, board.UnassignedLeads)

	board, err = f.svc.List(ctx, f.org1)
	require.NoError(t, err)
	require.Len(t, board.Leads, 1)
	require.Empty(t, board.UnassignedLeads)

	board, err = f.svc.List(ctx, f.org2)
	require.NoError(t, err)
	require.Empty(t, board.Leads)
	require.Empty(t, board.UnassignedLeads)
	_, err = f.svc.Get(ctx, f.org2, jane.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateRejectsNegativeAgeWithoutNotifying(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Age = -1

	_, err := f.svc.Create(context.Background(), f.org1, in)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "ensure this value is greater than or equal to 0", ve.Fields["age"])
	require.Empty(t, f.w.leads)
	require.Zero(t, f.notifier.count())
}

func TestCreateReportsAllFieldErrors(t *testing.T) {
	f := newFixture(t)
	foreign := f.w.addAgent(f.org2.Profile, "b1")
	in := Input{FirstName: "ThisFirstNameIsTooLong", Age: 3, Email: "nope", AgentID: &foreign.ID}

	_, err := f.svc.Create(context.Background(), f.org1, in)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "first_name")
	require.Contains(t, ve.Fields, "last_name")
	require.Contains(t, ve.Fields, "phone_number")
	require.Contains(t, ve.Fields, "email")
	require.Contains(t, ve.Fields, "agent_id")
	require.Empty(t, f.w.leads)
}

func TestCreateIsOrganizerOnly(t *testing.T) {
	f := newFixture(t)
	a1 := f.agentActor(f.org1.Profile, "a1")
	_, err := f.svc.Create(context.Background(), a1, validInput())
	require.ErrorIs(t, err, apperr.ErrForbidden)
	require.Empty(t, f.w.leads)
}

func TestNotificationFailureKeepsLead(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.ErrorLevel)
	f.notifier.err = errors.New("smtp unreachable")
	f.svc = NewService(f.w, worldAgents{f.w}, worldCategories{f.w}, f.notifier, zap.New(core))

	lead, err := f.svc.Create(context.Background(), f.org1, validInput())
	require.NoError(t, err)
	require.Contains(t, f.w.leads, lead.ID)
	require.Equal(t, 1, logs.FilterMessage("lead notification failed").Len())
}

func TestCreateWithReferencesInOwnOrganization(t *testing.T) {
	f := newFixture(t)
	agent := f.w.addAgent(f.org1.Profile, "a1")
	cat := f.w.addCategory(f.org1.Profile, "New")
	in := validInput()
	in.AgentID, in.CategoryID = &agent.ID, &cat.ID

	lead, err := f.svc.Create(context.Background(), f.org1, in)
	require.NoError(t, err)
	require.Equal(t, agent.ID, *lead.AgentID)
	require.Equal(t, cat.ID, *lead.CategoryID)

	foreignCat := f.w.addCategory(f.org2.Profile, "New")
	in.CategoryID = &foreignCat.ID
	_, err = f.svc.Create(context.Background(), f.org1, in)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "category_id")
}

func TestAssignAcrossOrganizationsFailsValidation(t *testing.T) {
	f := newFixture(t)
	lead := f.w.addLead(f.org1.Profile, nil, "Jane")
	b1 := f.w.addAgent(f.org2.Profile, "b1")

	_, err := f.svc.Assign(context.Background(), f.org1, lead.ID, b1.ID)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "agent_id")
	require.Nil(t, f.w.leads[lead.ID].AgentID)

	_, err = f.svc.Assign(context.Background(), f.org2, lead.ID, b1.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAssignCandidatesAreSameOrganization(t *testing.T) {
	f := newFixture(t)
	lead := f.w.addLead(f.org1.Profile, nil, "Jane")
	f.w.addAgent(f.org1.Profile, "a1")
	f.w.addAgent(f.org1.Profile, "a2")
	f.w.addAgent(f.org2.Profile, "b1")

	list, err := f.svc.AssignCandidates(context.Background(), f.org1, lead.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		require.Equal(t, f.org1.Profile, a.OrganizationID)
	}

	a1 := f.agentActor(f.org1.Profile, "a3")
	_, err = f.svc.AssignCandidates(context.Background(), a1, lead.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDeletedAgentLeadsReturnToUnassignedPool(t *testing.T) {
	f := newFixture(t)
	a1 := f.agentActor(f.org1.Profile, "a1")
	lead := f.w.addLead(f.org1.Profile, &a1.Agent, "Jane")

	f.w.deleteAgent(a1.Agent)

	board, err := f.svc.List(context.Background(), f.org1)
	require.NoError(t, err)
	require.Empty(t, board.Leads)
	require.Len(t, board.UnassignedLeads, 1)
	require.Equal(t, lead.ID, board.UnassignedLeads[0].ID)
}

func TestUnassignedPoolIsTenantFiltered(t *testing.T) {
	f := newFixture(t)
	f.w.addLead(f.org1.Profile, nil, "Mine")
	f.w.addLead(f.org2.Profile, nil, "Theirs")

	board, err := f.svc.List(context.Background(), f.org1)
	require.NoError(t, err)
	require.Len(t, board.UnassignedLeads, 1)
	require.Equal(t, "Mine", board.UnassignedLeads[0].FirstName)
}

func TestAgentSeesOnlyOwnLeads(t *testing.T) {
	f := newFixture(t)
	a1 := f.agentActor(f.org1.Profile, "a1")
	a2 := f.agentActor(f.org1.Profile, "a2")
	mine := f.w.addLead(f.org1.Profile, &a1.Agent, "Mine")
	theirs := f.w.addLead(f.org1.Profile, &a2.Agent, "Theirs")
	f.w.addLead(f.org1.Profile, nil, "Nobody")

	board, err := f.svc.List(context.Background(), a1)
	require.NoError(t, err)
	require.Len(t, board.Leads, 1)
	require.Equal(t, mine.ID, board.Leads[0].ID)

	_, err = f.svc.Get(context.Background(), a1, theirs.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.agentActor(f.org1.Profile, "a1")
	a2 := f.agentActor(f.org1.Profile, "a2")
	mine := f.w.addLead(f.org1.Profile, &a1.Agent, "Mine")
	theirs := f.w.addLead(f.org1.Profile, &a2.Agent, "Theirs")
	newCat := f.w.addCategory(f.org1.Profile, "New")
	foreign := f.w.addCategory(f.org2.Profile, "New")

	updated, err := f.svc.UpdateCategory(ctx, a1, mine.ID, &newCat.ID)
	require.NoError(t, err)
	require.Equal(t, mine.ID, updated.ID)
	require.Equal(t, newCat.ID, *updated.CategoryID)

	_, err = f.svc.UpdateCategory(ctx, a1, theirs.ID, &newCat.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.UpdateCategory(ctx, f.org1, theirs.ID, &foreign.ID)
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, ve.Fields, "category_id")

	cleared, err := f.svc.UpdateCategory(ctx, f.org1, mine.ID, nil)
	require.NoError(t, err)
	require.Nil(t, cleared.CategoryID)
}

func TestUpdateAndDeleteAreOrganizerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.agentActor(f.org1.Profile, "a1")
	lead := f.w.addLead(f.org1.Profile, &a1.Agent, "Jane")

	_, err := f.svc.Update(ctx, a1, lead.ID, validInput())
	require.ErrorIs(t, err, apperr.ErrForbidden)
	require.ErrorIs(t, f.svc.Delete(ctx, a1, lead.ID), apperr.ErrForbidden)

	_, err = f.svc.Update(ctx, f.org2, lead.ID, validInput())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, f.org2, lead.ID), apperr.ErrNotFound)

	in := validInput()
	in.FirstName = "Janet"
	updated, err := f.svc.Update(ctx, f.org1, lead.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Janet", updated.FirstName)
	require.Equal(t, f.org1.Profile, updated.OrganizationID)

	require.NoError(t, f.svc.Delete(ctx, f.org1, lead.ID))
	require.Empty(t, f.w.leads)
}
