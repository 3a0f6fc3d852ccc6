package database

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateKeyError(t *testing.T) {
	raw := errors.New(`ERROR: duplicate key value violates unique constraint "idx_quote_revision" (SQLSTATE 23505)`)

	assert.True(t, IsDuplicateKeyError(raw))
	// repositories wrap before the error reaches the caller
	assert.True(t, IsDuplicateKeyError(errors.Wrap(raw, "could not create quotes")))
	assert.False(t, IsDuplicateKeyError(errors.New("ERROR: null value in column")))
	assert.False(t, IsDuplicateKeyError(nil))
}

func TestIsLockContentionError(t *testing.T) {
	assert.True(t, IsLockContentionError(errors.New("ERROR: could not obtain lock on row in relation \"rfqs\" (SQLSTATE 55P03)")))
	assert.True(t, IsLockContentionError(errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")))
	assert.False(t, IsLockContentionError(errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")))
	assert.False(t, IsLockContentionError(nil))
}
