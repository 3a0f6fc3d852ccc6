package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
)

type deliveryEventRepository struct {
	db core.DB
	*database.ScopedRepository[models.DeliveryEvent, *models.DeliveryEvent]
}

func NewDeliveryEventRepository(db core.DB) *deliveryEventRepository {
	return &deliveryEventRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.DeliveryEvent, *models.DeliveryEvent](db),
	}
}

func (r *deliveryEventRepository) HasEvent(tx core.DB, scope core.Scope, orderID uuid.UUID, kind models.DeliveryEventKind) (bool, error) {
	var count int64
	err := r.ScopedQuery(tx, scope).
		Where("order_id = ? AND kind = ?", orderID, kind).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "could not check delivery events")
	}
	return count > 0, nil
}
