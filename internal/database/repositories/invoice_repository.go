package repositories

import (
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type invoiceRepository struct {
	db core.DB
	*database.ScopedRepository[models.Invoice, *models.Invoice]
}

func NewInvoiceRepository(db core.DB) *invoiceRepository {
	return &invoiceRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.Invoice, *models.Invoice](db),
	}
}

// SumPaid returns the actual spend of the project: the sum over paid,
// non-voided invoices.
func (r *invoiceRepository) SumPaid(tx core.DB, scope core.Scope) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.ScopedQuery(tx, scope).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("paid = ?", true).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "could not sum paid invoices")
	}
	return sum, nil
}
