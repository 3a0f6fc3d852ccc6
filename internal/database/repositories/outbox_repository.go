package repositories

import (
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db core.DB
	*database.ScopedRepository[models.OutboxEvent, *models.OutboxEvent]
}

func NewOutboxRepository(db core.DB) *outboxRepository {
	return &outboxRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.OutboxEvent, *models.OutboxEvent](db),
	}
}

// ListUnpublished reads pending outbox rows across all projects. The
// dispatcher is a system level job, not a tenant request, so this is the
// one read that legitimately crosses project boundaries.
func (r *outboxRepository) ListUnpublished(tx core.DB, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := r.GetDB(tx).Model(&models.OutboxEvent{}).
		Where("published_at IS NULL").
		Order("created_at asc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not list unpublished events")
	}
	return events, nil
}

func (r *outboxRepository) MarkPublished(tx core.DB, id uuid.UUID) error {
	now := time.Now()
	err := r.GetDB(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": now,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
	return errors.Wrap(err, "could not mark event as published")
}

// MarkPublishedByCorrelation is the post-commit fast path: the recorder
// only knows the correlation id of the event it just flushed.
func (r *outboxRepository) MarkPublishedByCorrelation(tx core.DB, correlationID uuid.UUID) error {
	now := time.Now()
	err := r.GetDB(tx).Model(&models.OutboxEvent{}).
		Where("correlation_id = ? AND published_at IS NULL", correlationID).
		Updates(map[string]any{
			"published_at": now,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
	return errors.Wrap(err, "could not mark event as published")
}

func (r *outboxRepository) IncrementAttempts(tx core.DB, id uuid.UUID) error {
	err := r.GetDB(tx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
	return errors.Wrap(err, "could not increment event attempts")
}
