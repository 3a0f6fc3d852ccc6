package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BudgetExceptionStatus string

const (
	BudgetExceptionStatusPending  BudgetExceptionStatus = "pending"
	BudgetExceptionStatusApproved BudgetExceptionStatus = "approved"
	BudgetExceptionStatusRejected BudgetExceptionStatus = "rejected"
)

// BudgetException is a request to exceed the remaining planned budget of a
// project. It is created by a manager and decided exactly once by an
// approver - there is no revision of a decision.
type BudgetException struct {
	Model
	ProjectID uuid.UUID             `json:"projectId" gorm:"type:uuid;not null;index"`
	OrderID   *uuid.UUID            `json:"orderId" gorm:"type:uuid;index"`
	Status    BudgetExceptionStatus `json:"status" gorm:"type:text;not null;default:'pending'"`

	RequestedAmount decimal.Decimal `json:"requestedAmount" gorm:"type:numeric(20,4);not null"`
	ApprovedAmount  decimal.Decimal `json:"approvedAmount" gorm:"type:numeric(20,4);not null;default:0"`

	Reason      string  `json:"reason" gorm:"type:text"`
	RequestedBy string  `json:"requestedBy" gorm:"type:text;not null"`
	DecidedBy   *string `json:"decidedBy" gorm:"type:text"`
}

func (BudgetException) TableName() string {
	return "budget_exceptions"
}

func (m BudgetException) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *BudgetException) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}
