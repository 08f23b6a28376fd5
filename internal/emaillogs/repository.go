package emaillogs

import (
	"context"
	"fmt"


	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/database"
)

// Repository handles email_logs persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an email logs repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one delivery outcome and fills in its id and creation time.
func (r *Repository) Record(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (organization_id, lead_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, el.OrganizationID, el.LeadID, el.EmailType, el.RecipientEmail,
		el.Subject, el.Status, el.SentAt, el.ErrorMessage).Scan(&el.ID, &el.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// List returns email logs matching p, newest first, at most limit rows.
func (r *Repository) List(ctx context.Context, p scope.Predicate, limit int) ([]*models.EmailLog, error) {
	where, args := p.SQL("e", 1)
	q := `SELECT e.id, e.organization_id, e.lead_id, e.email_type, e.recipient_email, e.subject, e.status, e.sent_at, e.error_message, e.created_at
		FROM email_logs e
		WHERE ` + where + fmt.Sprintf(`
		ORDER BY e.created_at DESC
		LIMIT $%d`, len(args)+1)
	rows, err := r.db.Query(ctx, q, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.OrganizationID, &el.LeadID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
