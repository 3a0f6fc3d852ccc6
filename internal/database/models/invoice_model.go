package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice feeds the actual spend side of the budget ledger. Invoices are
// soft deletable so a mistaken booking can be voided without losing the
// audit trail.
type Invoice struct {
	SoftDeleteModel
	ProjectID   uuid.UUID       `json:"projectId" gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID       `json:"orderId" gorm:"type:uuid;not null;index"`
	TotalAmount decimal.Decimal `json:"totalAmount" gorm:"type:numeric(20,4);not null"`
	Paid        bool            `json:"paid" gorm:"not null;default:false"`
	PaidAt      *time.Time      `json:"paidAt"`
}

func (Invoice) TableName() string {
	return "invoices"
}

func (m Invoice) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *Invoice) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}
