package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Model struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Model) GetID() uuid.UUID {
	return m.ID
}

// SoftDeleteModel opts a model into the soft delete capability of the
// scoped repository. Rows are marked instead of removed and filtered from
// every query unless explicitly included.
type SoftDeleteModel struct {
	Model
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (SoftDeleteModel) SupportsSoftDelete() {}
