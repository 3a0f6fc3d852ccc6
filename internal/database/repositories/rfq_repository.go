package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
)

type rfqRepository struct {
	db core.DB
	*database.ScopedRepository[models.RFQ, *models.RFQ]
}

func NewRFQRepository(db core.DB) *rfqRepository {
	return &rfqRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.RFQ, *models.RFQ](db),
	}
}

// Create injects the scope project into the supplier rows before the
// association create runs, so child rows cannot end up in another project.
func (r *rfqRepository) Create(tx core.DB, scope core.Scope, rfq *models.RFQ) error {
	for i := range rfq.Suppliers {
		rfq.Suppliers[i].ProjectID = scope.ProjectID
	}
	return r.ScopedRepository.Create(tx, scope, rfq)
}

func (r *rfqRepository) CountSuppliers(tx core.DB, scope core.Scope, rfqID uuid.UUID) (int64, error) {
	var count int64
	err := r.GetDB(tx).Model(&models.RFQSupplier{}).
		Where("project_id = ? AND rfq_id = ?", scope.ProjectID, rfqID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "could not count rfq suppliers")
	}
	return count, nil
}

func (r *rfqRepository) IsTargetedSupplier(tx core.DB, scope core.Scope, rfqID, supplierOrgID uuid.UUID) (bool, error) {
	var count int64
	err := r.GetDB(tx).Model(&models.RFQSupplier{}).
		Where("project_id = ? AND rfq_id = ? AND supplier_org_id = ?", scope.ProjectID, rfqID, supplierOrgID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "could not check rfq supplier")
	}
	return count > 0, nil
}
