package models

import (
	"github.com/google/uuid"
)

// IdentityRevealAudit records one row per reveal call on a quote after the
// reveal point. Exactly one record is appended per call.
type IdentityRevealAudit struct {
	Model
	ProjectID uuid.UUID `json:"projectId" gorm:"type:uuid;not null;index"`
	QuoteID   uuid.UUID `json:"quoteId" gorm:"type:uuid;not null;index"`
	ActorID   string    `json:"actorId" gorm:"type:text;not null"`
}

func (IdentityRevealAudit) TableName() string {
	return "identity_reveal_audit"
}

func (m IdentityRevealAudit) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *IdentityRevealAudit) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}
