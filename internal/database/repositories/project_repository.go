package repositories

import (
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// projectRepository is deliberately not project scoped: the project row is
// the tenant boundary itself. Reads outside the caller's own project are
// still rejected.
type projectRepository struct {
	db core.DB
}

func NewProjectRepository(db core.DB) *projectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) GetDB(tx core.DB) core.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *projectRepository) Transaction(f func(tx core.DB) error) error {
	tx := r.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (r *projectRepository) Create(tx core.DB, project *models.Project) error {
	if project.Slug == "" {
		project.Slug = slug.Make(project.Name)
	}
	return r.GetDB(tx).Create(project).Error
}

func (r *projectRepository) Read(tx core.DB, scope core.Scope) (models.Project, error) {
	var project models.Project
	err := r.GetDB(tx).Where("id = ?", scope.ProjectID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project, core.NewNotFound("projects")
	}
	return project, err
}

// ReadForUpdate locks the project row. Budget validation reads its totals
// after this lock, so two concurrent releases cannot both pass against the
// same stale remaining budget figure.
func (r *projectRepository) ReadForUpdate(tx core.DB, scope core.Scope) (models.Project, error) {
	var project models.Project
	err := r.GetDB(tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", scope.ProjectID).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project, core.NewNotFound("projects")
	}
	if err != nil {
		return project, errors.Wrap(err, "could not lock project row")
	}
	return project, nil
}

func (r *projectRepository) GetByID(tx core.DB, id uuid.UUID) (models.Project, error) {
	var project models.Project
	err := r.GetDB(tx).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return project, core.NewNotFound("projects")
	}
	return project, err
}
