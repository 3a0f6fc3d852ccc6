package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestScope(t *testing.T) {
	scope := NewScope(uuid.New(), uuid.New(), "user-1", RoleBuyer)

	t.Run("should not carry an override by default", func(t *testing.T) {
		assert.False(t, scope.AdminOverride)
		assert.Empty(t, scope.OverrideJustification)
	})

	t.Run("should leave the receiver untouched when deriving an override scope", func(t *testing.T) {
		widened := scope.WithAdminOverride("incident-4711")

		assert.True(t, widened.AdminOverride)
		assert.Equal(t, "incident-4711", widened.OverrideJustification)
		assert.False(t, scope.AdminOverride)
		assert.Equal(t, scope.ProjectID, widened.ProjectID)
	})
}
