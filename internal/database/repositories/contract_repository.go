package repositories

import (
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/database/models"
)

type contractRepository struct {
	db core.DB
	*database.ScopedRepository[models.Contract, *models.Contract]
}

func NewContractRepository(db core.DB) *contractRepository {
	return &contractRepository{
		db:               db,
		ScopedRepository: database.NewScopedRepository[models.Contract, *models.Contract](db),
	}
}
