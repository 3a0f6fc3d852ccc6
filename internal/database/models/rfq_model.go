package models

import (
	"time"

	"github.com/google/uuid"
)

type RFQStatus string

const (
	RFQStatusDraft        RFQStatus = "draft"
	RFQStatusPublished    RFQStatus = "published"
	RFQStatusBidding      RFQStatus = "bidding"
	RFQStatusSecondChance RFQStatus = "second_chance"
	RFQStatusAwarded      RFQStatus = "awarded"
	RFQStatusClosed       RFQStatus = "closed"
	RFQStatusCancelled    RFQStatus = "cancelled"
)

// RFQ is the tender request suppliers bid against. It is never hard
// deleted - terminal lifecycle states are cancelled and closed.
type RFQ struct {
	Model
	ProjectID   uuid.UUID `json:"projectId" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      RFQStatus `json:"status" gorm:"type:text;not null;default:'draft'"`
	ExpiresAt   *time.Time `json:"expiresAt"`

	// SecondChanceUsed flips exactly once per RFQ. A second trigger fails
	// with INVALID_STATE_TRANSITION.
	SecondChanceUsed     bool       `json:"secondChanceUsed" gorm:"not null;default:false"`
	SecondChanceDeadline *time.Time `json:"secondChanceDeadline"`

	Suppliers []RFQSupplier `json:"suppliers" gorm:"foreignKey:RFQID;constraint:OnDelete:CASCADE;"`
}

func (RFQ) TableName() string {
	return "rfqs"
}

func (m RFQ) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *RFQ) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}

func (m RFQ) IsTerminal() bool {
	return m.Status == RFQStatusClosed || m.Status == RFQStatusCancelled
}

// RFQSupplier resolves one target supplier organization for an RFQ.
type RFQSupplier struct {
	Model
	ProjectID     uuid.UUID `json:"projectId" gorm:"type:uuid;not null;index"`
	RFQID         uuid.UUID `json:"rfqId" gorm:"type:uuid;not null;uniqueIndex:idx_rfq_supplier"`
	SupplierOrgID uuid.UUID `json:"supplierOrgId" gorm:"type:uuid;not null;uniqueIndex:idx_rfq_supplier"`
}

func (RFQSupplier) TableName() string {
	return "rfq_suppliers"
}

func (m RFQSupplier) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *RFQSupplier) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}
