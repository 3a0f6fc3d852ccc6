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
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

func NewConnection(host, user, password, dbname, port string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname),
	}), &gorm.Config{
		Logger: logger.Default,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	return db, nil
}

func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// the error may arrive wrapped by a repository layer
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// IsLockContentionError reports whether the error comes from a row lock we
// could not acquire (SELECT ... FOR UPDATE NOWAIT) or a serialization
// failure. Both mean a concurrent transition is in progress.
func IsLockContentionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "55P03") || // lock_not_available
		strings.Contains(msg, "40001") || // serialization_failure
		strings.Contains(msg, "could not obtain lock on row")
}

type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func (p Pagination) ApplyOnDB(db *gorm.DB) *gorm.DB {
	pageSize := p.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 25
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return db.Limit(pageSize).Offset((page - 1) * pageSize)
}
