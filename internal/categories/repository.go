package categories

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

// Repository handles category persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a categories repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const selectCategory = `SELECT c.id, c.organization_id, c.name, c.created_at FROM categories c`

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns categories matching p, ordered by name.
func (r *Repository) List(ctx context.Context, p scope.Predicate) ([]*models.Category, error) {
	where, args := p.SQL("c", 1)
	rows, err := r.db.Query(ctx, selectCategory+` WHERE `+where+` ORDER BY c.name, c.created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Get returns the category with id if it matches p.
func (r *Repository) Get(ctx context.Context, p scope.Predicate, id uuid.UUID) (*models.Category, error) {
	where, args := p.SQL("c", 2)
	c, err := scanCategory(r.db.QueryRow(ctx, selectCategory+` WHERE c.id = $1 AND `+where, append([]any{id}, args...)...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Create inserts a category in organizationID.
func (r *Repository) Create(ctx context.Context, organizationID uuid.UUID, name string) (*models.Category, error) {
	c := &models.Category{OrganizationID: organizationID, Name: name}
	const q = `INSERT INTO categories (organization_id, name) VALUES ($1, $2) RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, organizationID, name).Scan(&c.ID, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// Rename changes the name of the category with id if it matches p.
func (r *Repository) Rename(ctx context.Context, p scope.Predicate, id uuid.UUID, name string) (*models.Category, error) {
	where, args := p.SQL("c", 3)
	q := `UPDATE categories c SET name = $2 WHERE c.id = $1 AND ` + where + `
		RETURNING c.id, c.organization_id, c.name, c.created_at`
	c, err := scanCategory(r.db.QueryRow(ctx, q, append([]any{id, name}, args...)...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("rename category: %w", err)
	}
	return c, nil
}

// Delete removes the category with id if it matches p. Its leads keep existing without a category.
func (r *Repository) Delete(ctx context.Context, p scope.Predicate, id uuid.UUID) error {
	where, args := p.SQL("c", 2)
	tag, err := r.db.Exec(ctx, `DELETE FROM categories c WHERE c.id = $1 AND `+where, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
