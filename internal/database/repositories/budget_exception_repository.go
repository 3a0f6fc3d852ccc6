package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type budgetExceptionRepository struct {
	db core.DB
	*database.ScopedRepository[models.BudgetException, *models.BudgetException]
}

func NewBudgetExceptionRepository(db core.DB) *budgetExceptionRepository {
	return &budgetExceptionRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.BudgetException, *models.BudgetException](db),
	}
}

// FindApprovedCovering returns an approved exception whose approved amount
// covers the shortfall, either bound to the given order or unbound.
func (r *budgetExceptionRepository) FindApprovedCovering(tx core.DB, scope core.Scope, orderID uuid.UUID, shortfall decimal.Decimal) (models.BudgetException, error) {
	var exception models.BudgetException
	err := r.ScopedQuery(tx, scope).
		Where("status = ? AND approved_amount >= ? AND (order_id IS NULL OR order_id = ?)",
			models.BudgetExceptionStatusApproved, shortfall, orderID).
		Order("approved_amount asc").
		First(&exception).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return exception, core.NewNotFound("budget_exceptions")
	}
	if err != nil {
		return exception, errors.Wrap(err, "could not look up budget exception")
	}
	return exception, nil
}
