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

type orderRepository struct {
	db core.DB
	*database.ScopedRepository[models.Order, *models.Order]
}

func NewOrderRepository(db core.DB) *orderRepository {
	return &orderRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.Order, *models.Order](db),
	}
}

// Create injects the scope project into the item rows before the
// association create runs.
func (r *orderRepository) Create(tx core.DB, scope core.Scope, order *models.Order) error {
	for i := range order.Items {
		order.Items[i].ProjectID = scope.ProjectID
	}
	return r.ScopedRepository.Create(tx, scope, order)
}

// GetByRFQ returns the order created from the RFQ's accepted quote.
func (r *orderRepository) GetByRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) (models.Order, error) {
	var order models.Order
	err := r.ScopedQuery(tx, scope).
		Where("rfq_id = ? AND status <> ?", rfqID, models.OrderStatusCancelled).
		Order("created_at desc").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return order, core.NewNotFound("orders")
	}
	if err != nil {
		return order, errors.Wrap(err, "could not read order")
	}
	return order, nil
}

// SumCommitted returns the committed amount of the project: the sum of
// total_amount over all orders not in a cancelled state. The candidate
// order of a running validation is excluded via excludeOrderID so it is
// not counted against itself.
func (r *orderRepository) SumCommitted(tx core.DB, scope core.Scope, excludeOrderID *uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	q := r.ScopedQuery(tx, scope).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("status <> ?", models.OrderStatusCancelled)
	if excludeOrderID != nil {
		q = q.Where("id <> ?", *excludeOrderID)
	}
	if err := q.Scan(&sum).Error; err != nil {
		return decimal.Zero, errors.Wrap(err, "could not sum committed amount")
	}
	return sum, nil
}

// HasReleasedForRFQ reports whether any order of the RFQ reached released
// or a later state. Such an RFQ can no longer be cancelled.
func (r *orderRepository) HasReleasedForRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) (bool, error) {
	var count int64
	err := r.ScopedQuery(tx, scope).
		Where("rfq_id = ? AND status IN ?", rfqID, []models.OrderStatus{
			models.OrderStatusReleased,
			models.OrderStatusInDelivery,
			models.OrderStatusDelivered,
			models.OrderStatusCompleted,
		}).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "could not check released orders")
	}
	return count > 0, nil
}
