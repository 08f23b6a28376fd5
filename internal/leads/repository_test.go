package leads

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
)

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewRepository(mock), mock
}

func sqlFragment(s string) string {
	return regexp.QuoteMeta(s)
}

var leadRowColumns = []string{"id", "organization_id", "agent_id", "category_id", "first_name", "last_name", "age",
	"description", "phone_number", "email", "created_at", "updated_at"}

func TestRepositoryListScopes(t *testing.T) {
	org, agent := uuid.New(), uuid.New()
	tests := []struct {
		name   string
		p      scope.Predicate
		filter Filter
		where  string
		args   []any
	}{
		{
			name:   "organizer sees assigned leads of own organization",
			p:      scope.Predicate{OrganizationID: org},
			filter: Filter{AssignedOnly: true},
			where:  "FROM leads l WHERE l.organization_id = $1 AND l.agent_id IS NOT NULL ORDER BY",
			args:   []any{org},
		},
		{
			name:  "agent sees own leads",
			p:     scope.Predicate{OrganizationID: org, AgentID: &agent},
			where: "FROM leads l WHERE l.organization_id = $1 AND l.agent_id = $2 ORDER BY",
			args:  []any{org, agent},
		},
		{
			name:  "unassigned pool",
			p:     scope.Predicate{OrganizationID: org, Unassigned: true},
			where: "FROM leads l WHERE l.organization_id = $1 AND l.agent_id IS NULL ORDER BY",
			args:  []any{org},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			mock.ExpectQuery(sqlFragment(tt.where)).
				WithArgs(tt.args...).
				WillReturnRows(pgxmock.NewRows(leadRowColumns))

			list, err := repo.List(context.Background(), tt.p, tt.filter)
			require.NoError(t, err)
			require.Empty(t, list)
		})
	}
}

func TestRepositoryGetScansScopedRow(t *testing.T) {
	repo, mock := newMockRepository(t)
	org, agent, id := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery(sqlFragment("FROM leads l WHERE l.id = $1 AND l.organization_id = $2 AND l.agent_id = $3")).
		WithArgs(id, org, agent).
		WillReturnRows(pgxmock.NewRows(leadRowColumns).
			AddRow(id, org, &agent, (*uuid.UUID)(nil), "Jane", "Doe", 30, "", "555-0100", "jane@example.com", now, now))

	l, err := repo.Get(context.Background(), scope.Predicate{OrganizationID: org, AgentID: &agent}, id)
	require.NoError(t, err)
	require.Equal(t, id, l.ID)
	require.Equal(t, org, l.OrganizationID)
	require.Equal(t, &agent, l.AgentID)
	require.Equal(t, "Jane Doe", l.FullName())
}

func TestRepositoryGetOutsideScopeIsNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	org, id := uuid.New(), uuid.New()
	mock.ExpectQuery(sqlFragment("WHERE l.id = $1 AND l.organization_id = $2")).
		WithArgs(id, org).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), scope.Predicate{OrganizationID: org}, id)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepositoryListByCategoryAndCount(t *testing.T) {
	repo, mock := newMockRepository(t)
	org, agent, category := uuid.New(), uuid.New(), uuid.New()
	p := scope.Predicate{OrganizationID: org, AgentID: &agent}

	mock.ExpectQuery(sqlFragment("WHERE l.category_id = $1 AND l.organization_id = $2 AND l.agent_id = $3 ORDER BY")).
		WithArgs(category, org, agent).
		WillReturnRows(pgxmock.NewRows(leadRowColumns))
	list, err := repo.ListByCategory(context.Background(), p, category)
	require.NoError(t, err)
	require.Empty(t, list)

	mock.ExpectQuery(sqlFragment("SELECT COUNT(*) FROM leads l WHERE l.category_id IS NULL AND l.organization_id = $1 AND l.agent_id = $2")).
		WithArgs(org, agent).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	n, err := repo.CountUncategorized(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestRepositoryUpdatePlaceholdersFollowFields(t *testing.T) {
	repo, mock := newMockRepository(t)
	org, agent, category, id := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	in := &models.Lead{AgentID: &agent, CategoryID: &category, FirstName: "Jane", LastName: "Doe", Age: 30,
		Description: "warm", PhoneNumber: "555-0100", Email: "jane@example.com"}

	mock.ExpectQuery(sqlFragment("WHERE l.id = $1 AND l.organization_id = $10 RETURNING l.id")).
		WithArgs(id, &agent, &category, "Jane", "Doe", 30, "warm", "555-0100", "jane@example.com", org).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Update(context.Background(), scope.Predicate{OrganizationID: org}, id, in)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepositorySetCategoryAgentScope(t *testing.T) {
	repo, mock := newMockRepository(t)
	org, agent, category, id := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(sqlFragment("SET category_id = $2, updated_at = NOW() WHERE l.id = $1 AND l.organization_id = $3 AND l.agent_id = $4")).
		WithArgs(id, &category, org, agent).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.SetCategory(context.Background(), scope.Predicate{OrganizationID: org, AgentID: &agent}, id, &category)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepositoryVanishedReferenceIsValidation(t *testing.T) {
	org, agent, id := uuid.New(), uuid.New(), uuid.New()

	t.Run("assign to deleted agent", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(sqlFragment("SET agent_id = $2, updated_at = NOW() WHERE l.id = $1 AND l.organization_id = $3")).
			WithArgs(id, &agent, org).
			WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "leads_agent_id_fkey"})

		_, err := repo.SetAgent(context.Background(), scope.Predicate{OrganizationID: org}, id, &agent)
		ve, ok := apperr.AsValidation(err)
		require.True(t, ok)
		require.Equal(t, invalidChoice, ve.Fields["agent_id"])
	})

	t.Run("create with deleted category", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		category := uuid.New()
		mock.ExpectQuery(sqlFragment("INSERT INTO leads")).
			WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "leads_category_id_fkey"})

		_, err := repo.Create(context.Background(), &models.Lead{OrganizationID: org, CategoryID: &category, FirstName: "Jane", LastName: "Doe"})
		ve, ok := apperr.AsValidation(err)
		require.True(t, ok)
		require.Contains(t, ve.Fields, "category_id")
	})

	t.Run("other failures stay internal", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(sqlFragment("INSERT INTO leads")).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Create(context.Background(), &models.Lead{OrganizationID: org})
		_, ok := apperr.AsValidation(err)
		require.False(t, ok)
		require.ErrorContains(t, err, "insert lead")
	})
}

func TestRepositoryDeleteScoped(t *testing.T) {
	repo, mock := newMockRepository(t)
	org, agent, id := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectExec(sqlFragment("DELETE FROM leads l WHERE l.id = $1 AND l.organization_id = $2 AND l.agent_id = $3")).
		WithArgs(id, org, agent).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err := repo.Delete(context.Background(), scope.Predicate{OrganizationID: org, AgentID: &agent}, id)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	mock.ExpectExec(sqlFragment("DELETE FROM leads l WHERE l.id = $1 AND l.organization_id = $2")).
		WithArgs(id, org).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), scope.Predicate{OrganizationID: org}, id))
}
