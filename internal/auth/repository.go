package auth

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

// NewIdentity holds the fields for a new login.
type NewIdentity struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         models.Role
}

// Repository handles user and organization profile persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an auth repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// CreateIdentity inserts the user and its organization profile in one transaction.
func (r *Repository) CreateIdentity(ctx context.Context, p NewIdentity) (*models.User, *models.Profile, error) {
	var (
		user    *models.User
		profile *models.Profile
	)
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		user, profile, err = CreateIdentityTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return user, profile, nil
}

// CreateIdentityTx inserts a user and provisions its profile using q, which must be a transaction
// so that a failed profile insert also discards the user.
func CreateIdentityTx(ctx context.Context, q database.DBTX, p NewIdentity) (*models.User, *models.Profile, error) {
	if !p.Role.Valid() {
		return nil, nil, fmt.Errorf("create identity: invalid role %q", p.Role)
	}
	const insertUser = `INSERT INTO users (username, email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	u := &models.User{
		Username:  p.Username,
		Email:     p.Email,
		Password:  p.PasswordHash,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
	}
	err := q.QueryRow(ctx, insertUser, p.Username, p.Email, p.PasswordHash, p.FirstName, p.LastName, string(p.Role)).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, nil, UserConflict(err)
		}
		return nil, nil, fmt.Errorf("insert user: %w", err)
	}
	profile, err := provisionProfile(ctx, q, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, profile, nil
}

// UserConflict turns a unique violation on users into a ConflictError naming the colliding field.
func UserConflict(err error) error {
	if database.ConstraintName(err) == "users_email_key" {
		return &apperr.ConflictError{Field: "email"}
	}
	return &apperr.ConflictError{Field: "username"}
}

// provisionProfile creates the one organization profile owned by userID.
func provisionProfile(ctx context.Context, q database.DBTX, userID uuid.UUID) (*models.Profile, error) {
	const insertProfile = `INSERT INTO organization_profiles (user_id) VALUES ($1) RETURNING id, created_at`
	p := &models.Profile{UserID: userID}
	if err := q.QueryRow(ctx, insertProfile, userID).Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("provision profile: %w", err)
	}
	return p, nil
}

const userColumns = `id, username, email, password_hash, first_name, last_name, role, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FirstName, &u.LastName, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByUsername returns a user by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// Delete removes a user. Profile, agent row and everything the profile owns cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetPassword replaces a user's password hash.
func (r *Repository) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ActorFacts implements scope.FactSource.
func (r *Repository) ActorFacts(ctx context.Context, userID uuid.UUID) (scope.Facts, error) {
	const q = `SELECT u.role, p.id, a.id, a.organization_id
		FROM users u
		LEFT JOIN organization_profiles p ON p.user_id = u.id
		LEFT JOIN agents a ON a.user_id = u.id
		WHERE u.id = $1`
	f := scope.Facts{UserID: userID}
	var role string
	err := r.db.QueryRow(ctx, q, userID).Scan(&role, &f.ProfileID, &f.AgentID, &f.AgentOrganizationID)
	if err != nil {
		if database.IsNoRows(err) {
			return scope.Facts{}, apperr.ErrNotFound
		}
		return scope.Facts{}, err
	}
	f.Role = models.Role(role)
	return f, nil
}
