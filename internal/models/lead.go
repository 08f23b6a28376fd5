package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead is a sales prospect tracked by an organization.
type Lead struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	AgentID        *uuid.UUID `json:"agent_id"`
	CategoryID     *uuid.UUID `json:"category_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Age            int        `json:"age"`
	Description    string     `json:"description"`
	PhoneNumber    string     `json:"phone_number"`
	Email          string     `json:"email"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FullName returns "First Last".
func (l *Lead) FullName() string {
	return l.FirstName + " " + l.LastName
}
