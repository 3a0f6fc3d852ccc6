package accesscontrol

import (
	"testing"

	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCasbinRBAC(t *testing.T) {
	rbac, err := NewCasbinRBAC()
	require.NoError(t, err)

	check := func(role core.Role, action Action) bool {
		allowed, err := rbac.IsAllowed(role, action)
		require.NoError(t, err)
		return allowed
	}

	t.Run("buyer can run the rfq lifecycle but not award", func(t *testing.T) {
		assert.True(t, check(core.RoleBuyer, ActionCreateRFQ))
		assert.True(t, check(core.RoleBuyer, ActionPublishRFQ))
		assert.True(t, check(core.RoleBuyer, ActionCancelRFQ))
		assert.False(t, check(core.RoleBuyer, ActionAwardRFQ))
		assert.False(t, check(core.RoleBuyer, ActionTriggerSecondChance))
	})

	t.Run("supplier can only submit quotes", func(t *testing.T) {
		assert.True(t, check(core.RoleSupplier, ActionSubmitQuote))
		assert.False(t, check(core.RoleSupplier, ActionCreateRFQ))
		assert.False(t, check(core.RoleSupplier, ActionRevealIdentity))
		assert.False(t, check(core.RoleSupplier, ActionReleaseOrder))
	})

	t.Run("manager runs the order lifecycle but cannot decide exceptions", func(t *testing.T) {
		assert.True(t, check(core.RoleProcurementManager, ActionAwardRFQ))
		assert.True(t, check(core.RoleProcurementManager, ActionReleaseOrder))
		assert.True(t, check(core.RoleProcurementManager, ActionRequestBudgetException))
		assert.False(t, check(core.RoleProcurementManager, ActionDecideBudgetException))
	})

	t.Run("approver only decides exceptions", func(t *testing.T) {
		assert.True(t, check(core.RoleApprover, ActionDecideBudgetException))
		assert.False(t, check(core.RoleApprover, ActionAwardRFQ))
		assert.False(t, check(core.RoleApprover, ActionSubmitQuote))
	})

	t.Run("admin inherits every grant", func(t *testing.T) {
		for _, action := range []Action{
			ActionCreateRFQ, ActionSubmitQuote, ActionAwardRFQ,
			ActionDecideBudgetException, ActionReleaseOrder, ActionRevealIdentity,
		} {
			assert.True(t, check(core.RoleAdmin, action), string(action))
		}
	})
}
