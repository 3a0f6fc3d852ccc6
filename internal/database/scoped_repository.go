// Copyright (C) 2023 Tim Bastin, l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package database

import (
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Tabler interface {
	TableName() string
}

// ProjectScoped is the capability every workflow entity declares: it lives
// inside exactly one project and exposes that project id to the repository
// layer. The repository never issues a query for such an entity without a
// project_id predicate.
type ProjectScoped interface {
	Tabler
	GetID() uuid.UUID
	GetProjectID() uuid.UUID
}

type scopedPtr[T any] interface {
	*T
	ProjectScoped
	SetProjectID(uuid.UUID)
}

// SoftDeletable is a declared capability. Models embed SoftDeleteModel to
// opt in; everything else fails SoftDelete with UNSUPPORTED_OPERATION.
type SoftDeletable interface {
	SupportsSoftDelete()
}

// AdminAccessAudit records every single repository call that was widened
// beyond a project boundary via scope.AdminOverride.
type AdminAccessAudit struct {
	ID            uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	ActorID       string    `gorm:"type:text" json:"actorId"`
	Resource      string    `gorm:"type:text" json:"resource"`
	ProjectID     uuid.UUID `gorm:"type:uuid" json:"projectId"`
	Justification string    `gorm:"type:text" json:"justification"`
}

func (AdminAccessAudit) TableName() string {
	return "admin_access_audit"
}

// ScopedRepository is the generic project-scoped data access layer. Every
// read, write and delete is parameterized by a core.Scope; the project
// filter is a structural part of query construction, not an optional one.
// The only widening path is scope.AdminOverride, and each widened call is
// audited individually.
type ScopedRepository[T ProjectScoped, PT scopedPtr[T]] struct {
	db core.DB
}

func NewScopedRepository[T ProjectScoped, PT scopedPtr[T]](db core.DB) *ScopedRepository[T, PT] {
	return &ScopedRepository[T, PT]{db: db}
}

func (r *ScopedRepository[T, PT]) GetDB(tx core.DB) core.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ScopedRepository[T, PT]) Transaction(f func(tx core.DB) error) error {
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

func (r *ScopedRepository[T, PT]) supportsSoftDelete() bool {
	var t T
	_, ok := any(t).(SoftDeletable)
	return ok
}

// scoped is the single place a query for T is born. There is deliberately
// no other constructor, so no code path can produce an unscoped query.
func (r *ScopedRepository[T, PT]) scoped(tx core.DB, scope core.Scope) core.DB {
	var t T
	q := r.GetDB(tx).Model(new(T))
	if scope.AdminOverride {
		r.auditOverride(tx, scope, t.TableName())
		return q
	}
	return q.Where("project_id = ?", scope.ProjectID)
}

func (r *ScopedRepository[T, PT]) auditOverride(tx core.DB, scope core.Scope, resource string) {
	slog.Warn("admin override access", "actorID", scope.UserID, "resource", resource, "projectID", scope.ProjectID, "justification", scope.OverrideJustification)
	if err := r.GetDB(tx).Create(&AdminAccessAudit{
		ActorID:       scope.UserID,
		Resource:      resource,
		ProjectID:     scope.ProjectID,
		Justification: scope.OverrideJustification,
	}).Error; err != nil {
		slog.Error("could not write admin access audit record", "err", err)
	}
}

// ScopedQuery exposes the scoped builder to domain repositories so their
// custom queries start from the same project predicate. It is the only
// sanctioned way to build a query outside the generic operations.
func (r *ScopedRepository[T, PT]) ScopedQuery(tx core.DB, scope core.Scope) core.DB {
	return r.scoped(tx, scope)
}

func (r *ScopedRepository[T, PT]) GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (T, error) {
	return r.getByID(tx, scope, id, false)
}

func (r *ScopedRepository[T, PT]) GetByIDIncludeDeleted(tx core.DB, scope core.Scope, id uuid.UUID) (T, error) {
	return r.getByID(tx, scope, id, true)
}

func (r *ScopedRepository[T, PT]) getByID(tx core.DB, scope core.Scope, id uuid.UUID, includeDeleted bool) (T, error) {
	var t T
	q := r.scoped(tx, scope)
	if includeDeleted {
		// Unscoped drops the gorm soft delete scope only; the project
		// predicate added by scoped() is a regular where clause and
		// survives.
		q = q.Unscoped()
	}
	err := q.Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return t, core.NewNotFound(t.TableName())
	}
	if err != nil {
		return t, errors.Wrap(err, "could not read "+t.TableName())
	}
	return t, nil
}

// GetByIDForUpdate acquires a row level lock before returning the entity.
// NOWAIT is used so a concurrent transition surfaces as a retriable
// RFQ_LOCKED failure instead of blocking the worker.
func (r *ScopedRepository[T, PT]) GetByIDForUpdate(tx core.DB, scope core.Scope, id uuid.UUID) (T, error) {
	var t T
	err := r.scoped(tx, scope).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		Where("id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return t, core.NewNotFound(t.TableName())
	}
	if IsLockContentionError(err) {
		return t, core.NewError(core.ErrorCodeLocked, "a concurrent transition is in progress").WithInternal(err)
	}
	if err != nil {
		return t, errors.Wrap(err, "could not lock "+t.TableName())
	}
	return t, nil
}

var orderByPattern = regexp.MustCompile(`^[a-z_]+( (asc|desc))?$`)

func (r *ScopedRepository[T, PT]) List(tx core.DB, scope core.Scope, pagination Pagination, orderBy string, filters map[string]any) ([]T, error) {
	var ts []T
	q := r.scoped(tx, scope)
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	if orderBy != "" && orderByPattern.MatchString(orderBy) {
		q = q.Order(orderBy)
	}
	var t T
	err := pagination.ApplyOnDB(q).Find(&ts).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not list "+t.TableName())
	}
	return ts, nil
}

func (r *ScopedRepository[T, PT]) Create(tx core.DB, scope core.Scope, t PT) error {
	if projectID := t.GetProjectID(); projectID != uuid.Nil && projectID != scope.ProjectID {
		return core.NewScopeViolation("cannot create " + t.TableName() + " in a foreign project")
	}
	t.SetProjectID(scope.ProjectID)
	if err := r.GetDB(tx).Create(t).Error; err != nil {
		return errors.Wrap(err, "could not create "+t.TableName())
	}
	return nil
}

func (r *ScopedRepository[T, PT]) Update(tx core.DB, scope core.Scope, t PT) error {
	if projectID := t.GetProjectID(); projectID != uuid.Nil && !scope.AdminOverride && projectID != scope.ProjectID {
		return core.NewScopeViolation("project_id is immutable")
	}
	current, err := r.getByID(tx, scope, t.GetID(), false)
	if err != nil {
		return err
	}
	if projectID := t.GetProjectID(); projectID != uuid.Nil && projectID != current.GetProjectID() {
		return core.NewScopeViolation("project_id is immutable")
	}
	t.SetProjectID(current.GetProjectID())
	if err := r.GetDB(tx).Save(t).Error; err != nil {
		return errors.Wrap(err, "could not update "+t.TableName())
	}
	return nil
}

func (r *ScopedRepository[T, PT]) SoftDelete(tx core.DB, scope core.Scope, id uuid.UUID) error {
	var t T
	if !r.supportsSoftDelete() {
		return core.NewError(core.ErrorCodeUnsupportedOperation, t.TableName()+" does not support soft deletion")
	}
	res := r.scoped(tx, scope).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return errors.Wrap(res.Error, "could not soft delete "+t.TableName())
	}
	if res.RowsAffected == 0 {
		return core.NewNotFound(t.TableName())
	}
	return nil
}

func (r *ScopedRepository[T, PT]) Delete(tx core.DB, scope core.Scope, id uuid.UUID) error {
	var t T
	res := r.scoped(tx, scope).Unscoped().Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return errors.Wrap(res.Error, "could not delete "+t.TableName())
	}
	if res.RowsAffected == 0 {
		return core.NewNotFound(t.TableName())
	}
	return nil
}

func (r *ScopedRepository[T, PT]) Count(tx core.DB, scope core.Scope, filters map[string]any) (int64, error) {
	var count int64
	q := r.scoped(tx, scope)
	if len(filters) > 0 {
		q = q.Where(filters)
	}
	var t T
	if err := q.Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "could not count "+t.TableName())
	}
	return count, nil
}

func (r *ScopedRepository[T, PT]) Exists(tx core.DB, scope core.Scope, id uuid.UUID) (bool, error) {
	count, err := r.Count(tx, scope, map[string]any{"id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
