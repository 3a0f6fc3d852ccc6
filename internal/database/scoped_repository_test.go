package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/stretchr/testify/assert"
)

// The guards below reject before any query is issued, so a nil DB is
// enough to pin them.

func TestCreateRejectsForeignProject(t *testing.T) {
	repo := NewScopedRepository[models.RFQ, *models.RFQ](nil)
	scope := core.NewScope(uuid.New(), uuid.New(), "buyer-1", core.RoleBuyer)

	rfq := &models.RFQ{}
	rfq.SetProjectID(uuid.New())

	err := repo.Create(nil, scope, rfq)
	assert.True(t, core.HasErrorCode(err, core.ErrorCodeScopeViolation))
}

func TestUpdateKeepsProjectIDImmutable(t *testing.T) {
	repo := NewScopedRepository[models.RFQ, *models.RFQ](nil)
	scope := core.NewScope(uuid.New(), uuid.New(), "buyer-1", core.RoleBuyer)

	rfq := &models.RFQ{}
	rfq.ID = uuid.New()
	rfq.SetProjectID(uuid.New())

	err := repo.Update(nil, scope, rfq)
	assert.True(t, core.HasErrorCode(err, core.ErrorCodeScopeViolation))
}

func TestSoftDeleteRequiresCapability(t *testing.T) {
	scope := core.NewScope(uuid.New(), uuid.New(), "buyer-1", core.RoleBuyer)

	err := NewScopedRepository[models.RFQ, *models.RFQ](nil).SoftDelete(nil, scope, uuid.New())
	assert.True(t, core.HasErrorCode(err, core.ErrorCodeUnsupportedOperation))

	// invoices embed SoftDeleteModel and therefore pass the capability check
	assert.True(t, NewScopedRepository[models.Invoice, *models.Invoice](nil).supportsSoftDelete())
	assert.False(t, NewScopedRepository[models.RFQ, *models.RFQ](nil).supportsSoftDelete())
}
