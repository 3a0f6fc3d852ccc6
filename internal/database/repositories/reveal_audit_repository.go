package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
)

type revealAuditRepository struct {
	db core.DB
	*database.ScopedRepository[models.IdentityRevealAudit, *models.IdentityRevealAudit]
}

func NewRevealAuditRepository(db core.DB) *revealAuditRepository {
	return &revealAuditRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.IdentityRevealAudit, *models.IdentityRevealAudit](db),
	}
}

func (r *revealAuditRepository) CountForQuote(tx core.DB, scope core.Scope, quoteID uuid.UUID) (int64, error) {
	var count int64
	err := r.ScopedQuery(tx, scope).
		Where("quote_id = ?", quoteID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "could not count reveal audit records")
	}
	return count, nil
}
