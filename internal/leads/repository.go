package leads

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/database"
)

// Repository handles lead persistence. Every statement is filtered by a scope.Predicate.
type Repository struct {
	db database.DB
}

// NewRepository creates a leads repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const leadColumns = `l.id, l.organization_id, l.agent_id, l.category_id, l.first_name, l.last_name, l.age,
	l.description, l.phone_number, l.email, l.created_at, l.updated_at`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.OrganizationID, &l.AgentID, &l.CategoryID, &l.FirstName, &l.LastName, &l.Age,
		&l.Description, &l.PhoneNumber, &l.Email, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]*models.Lead, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// List returns leads matching p, newest first.
func (r *Repository) List(ctx context.Context, p scope.Predicate, f Filter) ([]*models.Lead, error) {
	where, args := p.SQL("l", 1)
	if f.AssignedOnly {
		where += " AND l.agent_id IS NOT NULL"
	}
	return r.query(ctx, `SELECT `+leadColumns+` FROM leads l WHERE `+where+` ORDER BY l.created_at DESC`, args...)
}

// ListByCategory returns leads in categoryID matching p.
func (r *Repository) ListByCategory(ctx context.Context, p scope.Predicate, categoryID uuid.UUID) ([]*models.Lead, error) {
	where, args := p.SQL("l", 2)
	return r.query(ctx, `SELECT `+leadColumns+` FROM leads l WHERE l.category_id = $1 AND `+where+` ORDER BY l.created_at DESC`,
		append([]any{categoryID}, args...)...)
}

// CountUncategorized counts leads matching p that have no category.
func (r *Repository) CountUncategorized(ctx context.Context, p scope.Predicate) (int, error) {
	where, args := p.SQL("l", 1)
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads l WHERE l.category_id IS NULL AND `+where, args...).Scan(&n)
	return n, err
}

// Get returns the lead with id if it matches p.
func (r *Repository) Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Lead, error) {
	where, args := p.SQL("l", 2)
	l, err := scanLead(r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads l WHERE l.id = $1 AND `+where, append([]any{id}, args...)...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// Create inserts l. The caller sets OrganizationID.
func (r *Repository) Create(ctx context.Context, l *models.Lead) (*models.Lead, error) {
	const q = `INSERT INTO leads (organization_id, agent_id, category_id, first_name, last_name, age, description, phone_number, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	out := *l
	err := r.db.QueryRow(ctx, q, l.OrganizationID, l.AgentID, l.CategoryID, l.FirstName, l.LastName, l.Age,
		l.Description, l.PhoneNumber, l.Email).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if ve := refViolation(err); ve != nil {
			return nil, ve
		}
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return &out, nil
}

// Update overwrites the editable fields of the lead with id if it matches p.
// Organization and creation time never change.
func (r *Repository) Update(ctx context.Context, p scope.Predicate, id uuid.UUID, l *models.Lead) (*models.Lead, error) {
	where, args := p.SQL("l", 10)
	q := `UPDATE leads l SET agent_id = $2, category_id = $3, first_name = $4, last_name = $5, age = $6,
		description = $7, phone_number = $8, email = $9, updated_at = NOW()
		WHERE l.id = $1 AND ` + where + ` RETURNING ` + leadColumns
	return r.returning(ctx, "update lead", q, append([]any{id, l.AgentID, l.CategoryID, l.FirstName, l.LastName, l.Age,
		l.Description, l.PhoneNumber, l.Email}, args...)...)
}

// SetAgent changes only agent_id on the lead with id if it matches p.
func (r *Repository) SetAgent(ctx context.Context, p scope.Predicate, id uuid.UUID, agentID *uuid.UUID) (*models.Lead, error) {
	where, args := p.SQL("l", 3)
	q := `UPDATE leads l SET agent_id = $2, updated_at = NOW() WHERE l.id = $1 AND ` + where + ` RETURNING ` + leadColumns
	return r.returning(ctx, "assign lead", q, append([]any{id, agentID}, args...)...)
}

// SetCategory changes only category_id on the lead with id if it matches p.
func (r *Repository) SetCategory(ctx context.Context, p scope.Predicate, id uuid.UUID, categoryID *uuid.UUID) (*models.Lead, error) {
	where, args := p.SQL("l", 3)
	q := `UPDATE leads l SET category_id = $2, updated_at = NOW() WHERE l.id = $1 AND ` + where + ` RETURNING ` + leadColumns
	return r.returning(ctx, "categorize lead", q, append([]any{id, categoryID}, args...)...)
}

// Delete removes the lead with id if it matches p.
func (r *Repository) Delete(ctx context.Context, p scope.Predicate, id uuid.UUID) error {
	where, args := p.SQL("l", 2)
	tag, err := r.db.Exec(ctx, `DELETE FROM leads l WHERE l.id = $1 AND `+where, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Repository) returning(ctx context.Context, op, q string, args ...any) (*models.Lead, error) {
	l, err := scanLead(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		if ve := refViolation(err); ve != nil {
			return nil, ve
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

// refViolation reports a lead pointing at an agent or category deleted since validation.
func refViolation(err error) error {
	if !database.IsForeignKeyViolation(err) {
		return nil
	}
	var field string
	switch database.ConstraintName(err) {
	case "leads_agent_id_fkey":
		field = "agent_id"
	case "leads_category_id_fkey":
		field = "category_id"
	default:
		return nil
	}
	ve := apperr.NewValidation()
	ve.Add(field, invalidChoice)
	return ve
}
