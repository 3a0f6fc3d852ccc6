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
	"github.com/l3montree-dev/procurio/internal/core"
)

type Action string

const (
	ActionCreateRFQ             Action = "create_rfq"
	ActionPublishRFQ            Action = "publish_rfq"
	ActionSubmitQuote           Action = "submit_quote"
	ActionTriggerSecondChance   Action = "trigger_second_chance"
	ActionAwardRFQ              Action = "award_rfq"
	ActionCancelRFQ             Action = "cancel_rfq"
	ActionSignOrder             Action = "sign_order"
	ActionReleaseOrder          Action = "release_order"
	ActionStartDelivery         Action = "start_delivery"
	ActionRecordDelivery        Action = "record_delivery"
	ActionCompleteOrder         Action = "complete_order"
	ActionCancelOrder           Action = "cancel_order"
	ActionRequestBudgetException Action = "request_budget_exception"
	ActionDecideBudgetException  Action = "decide_budget_exception"
	ActionRevealIdentity         Action = "reveal_identity"
)

// AccessControl decides whether a scope role may trigger a workflow
// action. Membership and identity are already checked upstream - this is
// purely the role gate the state machines rely on.
type AccessControl interface {
	IsAllowed(role core.Role, action Action) (bool, error)
}
