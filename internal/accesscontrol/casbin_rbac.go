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
package accesscontrol

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/l3montree-dev/procurio/internal/core"
)

var _ AccessControl = &CasbinRBAC{}

const rbacModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act
`

type CasbinRBAC struct {
	enforcer *casbin.Enforcer
}

// NewCasbinRBAC builds the in-memory enforcer carrying the static role
// grants of the workflow. Policies are code, not data: the role set is
// fixed and versioned with the transitions it guards.
func NewCasbinRBAC() (*CasbinRBAC, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	grants := map[core.Role][]Action{
		core.RoleBuyer: {
			ActionCreateRFQ,
			ActionPublishRFQ,
			ActionCancelRFQ,
			ActionRevealIdentity,
		},
		core.RoleSupplier: {
			ActionSubmitQuote,
		},
		core.RoleProcurementManager: {
			ActionCreateRFQ,
			ActionPublishRFQ,
			ActionTriggerSecondChance,
			ActionAwardRFQ,
			ActionCancelRFQ,
			ActionSignOrder,
			ActionReleaseOrder,
			ActionStartDelivery,
			ActionRecordDelivery,
			ActionCompleteOrder,
			ActionCancelOrder,
			ActionRequestBudgetException,
			ActionRevealIdentity,
		},
		core.RoleApprover: {
			ActionDecideBudgetException,
		},
	}

	policies := make([][]string, 0)
	for role, actions := range grants {
		for _, action := range actions {
			policies = append(policies, []string{"role::" + string(role), "act::" + string(action)})
		}
	}
	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, err
	}

	// the admin role inherits every other role
	for _, role := range []core.Role{core.RoleBuyer, core.RoleSupplier, core.RoleProcurementManager, core.RoleApprover} {
		if _, err := enforcer.AddGroupingPolicy("role::"+string(core.RoleAdmin), "role::"+string(role)); err != nil {
			return nil, err
		}
	}

	return &CasbinRBAC{enforcer: enforcer}, nil
}

func (c *CasbinRBAC) IsAllowed(role core.Role, action Action) (bool, error) {
	return c.enforcer.Enforce("role::"+string(role), "act::"+string(action))
}
