package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type quoteRepository struct {
	db core.DB
	*database.ScopedRepository[models.Quote, *models.Quote]
}

func NewQuoteRepository(db core.DB) *quoteRepository {
	return &quoteRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.Quote, *models.Quote](db),
	}
}

// Create injects the scope project into the item rows before the
// association create runs.
func (r *quoteRepository) Create(tx core.DB, scope core.Scope, quote *models.Quote) error {
	for i := range quote.Items {
		quote.Items[i].ProjectID = scope.ProjectID
	}
	return r.ScopedRepository.Create(tx, scope, quote)
}

func (r *quoteRepository) GetByIDWithItems(tx core.DB, scope core.Scope, id uuid.UUID) (models.Quote, error) {
	var quote models.Quote
	err := r.ScopedQuery(tx, scope).
		Preload("Items").
		Where("id = ?", id).
		First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quote, core.NewNotFound("quotes")
	}
	if err != nil {
		return quote, errors.Wrap(err, "could not read quote")
	}
	return quote, nil
}

// LatestRevision returns the highest revision a supplier has submitted for
// an RFQ, 0 if none.
func (r *quoteRepository) LatestRevision(tx core.DB, scope core.Scope, rfqID, supplierOrgID uuid.UUID) (int, error) {
	var revision int
	err := r.ScopedQuery(tx, scope).
		Select("COALESCE(MAX(revision_no), 0)").
		Where("rfq_id = ? AND supplier_org_id = ?", rfqID, supplierOrgID).
		Scan(&revision).Error
	if err != nil {
		return 0, errors.Wrap(err, "could not read latest quote revision")
	}
	return revision, nil
}

func (r *quoteRepository) ListByRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) ([]models.Quote, error) {
	var quotes []models.Quote
	err := r.ScopedQuery(tx, scope).
		Where("rfq_id = ?", rfqID).
		Order("supplier_org_id asc, revision_no asc").
		Find(&quotes).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not list quotes")
	}
	return quotes, nil
}

// SuppliersWithValidQuote returns the distinct suppliers holding at least
// one submitted quote - the set that receives an extra revision slot when
// the second chance window opens.
func (r *quoteRepository) SuppliersWithValidQuote(tx core.DB, scope core.Scope, rfqID uuid.UUID) ([]uuid.UUID, error) {
	var supplierIDs []uuid.UUID
	err := r.ScopedQuery(tx, scope).
		Distinct("supplier_org_id").
		Where("rfq_id = ? AND status = ?", rfqID, models.QuoteStatusSubmitted).
		Pluck("supplier_org_id", &supplierIDs).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not list bidding suppliers")
	}
	return supplierIDs, nil
}

// RejectOpenExcept marks every still submitted quote of an RFQ as rejected
// except the accepted one. Runs inside the award transaction.
func (r *quoteRepository) RejectOpenExcept(tx core.DB, scope core.Scope, rfqID, acceptedQuoteID uuid.UUID) error {
	err := r.ScopedQuery(tx, scope).
		Where("rfq_id = ? AND id <> ? AND status = ?", rfqID, acceptedQuoteID, models.QuoteStatusSubmitted).
		Update("status", models.QuoteStatusRejected).Error
	return errors.Wrap(err, "could not reject open quotes")
}
