package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project is the operational tenant boundary. Every workflow entity below
// references exactly one project; the reference is immutable once set.
type Project struct {
	Model
	Name           string          `json:"name" gorm:"type:text"`
	Slug           string          `json:"slug" gorm:"type:text;uniqueIndex:idx_project_org_slug;not null"`
	CustomerOrgID  uuid.UUID       `json:"customerOrgId" gorm:"uniqueIndex:idx_project_org_slug;not null;type:uuid"`
	PlannedBudget  decimal.Decimal `json:"plannedBudget" gorm:"type:numeric(20,4);not null;default:0"`
	Currency       string          `json:"currency" gorm:"type:text;size:3;not null;default:'EUR'"`
	BudgetEnforced bool            `json:"budgetEnforced" gorm:"not null;default:true"`
	Active         bool            `json:"active" gorm:"not null;default:true"`
}

func (Project) TableName() string {
	return "projects"
}
