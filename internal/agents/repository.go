package agents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/auth"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/database"
)

// Repository handles agent persistence. Agent rows are always read joined to their user.
type Repository struct {
	db database.DB
}

// NewRepository creates an agents repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const selectAgent = `SELECT a.id, a.user_id, a.organization_id, u.username, u.email, u.first_name, u.last_name, a.created_at
	FROM agents a
	INNER JOIN users u ON u.id = a.user_id`

func scanAgent(row pgx.Row) (*models.Agent, error) {
	var a models.Agent
	if err := row.Scan(&a.ID, &a.UserID, &a.OrganizationID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns agents matching p, ordered by username.
func (r *Repository) List(ctx context.Context, p scope.Predicate) ([]*models.Agent, error) {
	where, args := p.SQL("a", 1)
	rows, err := r.db.Query(ctx, selectAgent+` WHERE `+where+` ORDER BY u.username`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Get returns the agent with id if it matches p.
func (r *Repository) Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Agent, error) {
	where, args := p.SQL("a", 2)
	a, err := scanAgent(r.db.QueryRow(ctx, selectAgent+` WHERE a.id = $1 AND `+where, append([]any{id}, args...)...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// Create inserts the agent's identity, its profile and the agent row bound to organizationID
// in one transaction.
func (r *Repository) Create(ctx context.Context, organizationID uuid.UUID, identity auth.NewIdentity) (*models.Agent, error) {
	var agent *models.Agent
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		user, _, err := auth.CreateIdentityTx(ctx, tx, identity)
		if err != nil {
			return err
		}
		agent = &models.Agent{
			UserID:         user.ID,
			OrganizationID: organizationID,
			Username:       user.Username,
			Email:          user.Email,
			FirstName:      user.FirstName,
			LastName:       user.LastName,
		}
		const q = `INSERT INTO agents (user_id, organization_id) VALUES ($1, $2) RETURNING id, created_at`
		if err := tx.QueryRow(ctx, q, user.ID, organizationID).Scan(&agent.ID, &agent.CreatedAt); err != nil {
			return fmt.Errorf("insert agent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// Update changes the agent user's contact fields when the agent matches p.
func (r *Repository) Update(ctx context.Context, p scope.Predicate, id uuid.UUID, in Input) (*models.Agent, error) {
	where, args := p.SQL("a", 6)
	q := `UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, updated_at = NOW()
		FROM agents a
		WHERE users.id = a.user_id AND a.id = $1 AND ` + where
	tag, err := r.db.Exec(ctx, q, append([]any{id, in.Username, in.Email, in.FirstName, in.LastName}, args...)...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, auth.UserConflict(err)
		}
		return nil, fmt.Errorf("update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.ErrNotFound
	}
	return r.Get(ctx, p, id)
}

// Delete removes the agent's identity when the agent matches p. The agent row cascades and
// the agent's leads become unassigned.
func (r *Repository) Delete(ctx context.Context, p scope.Predicate, id uuid.UUID) error {
	where, args := p.SQL("a", 2)
	q := `DELETE FROM users WHERE id = (SELECT a.user_id FROM agents a WHERE a.id = $1 AND ` + where + `)`
	tag, err := r.db.Exec(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
