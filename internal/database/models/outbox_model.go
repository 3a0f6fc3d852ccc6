package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutboxEvent is the transactional outbox row for a domain event. It is
// written inside the same transaction as the workflow transition it
// belongs to and relayed to the broker after commit. CorrelationID makes
// redelivery idempotent for consumers.
type OutboxEvent struct {
	Model
	ProjectID     uuid.UUID      `json:"projectId" gorm:"type:uuid;not null;index"`
	EventType     string         `json:"eventType" gorm:"type:text;not null"`
	CorrelationID uuid.UUID      `json:"correlationId" gorm:"type:uuid;not null;uniqueIndex"`
	Payload       datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	PublishedAt *time.Time `json:"publishedAt" gorm:"index"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

func (m OutboxEvent) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *OutboxEvent) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}
