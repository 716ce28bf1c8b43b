package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the kind of a tooling event.
type Action string

const (
	ActionCreate        Action = "CREATE"
	ActionInstall       Action = "INSTALL"
	ActionRemove        Action = "REMOVE"
	ActionWash          Action = "WASH"
	ActionPolish        Action = "POLISH"
	ActionInspect       Action = "INSPECT"
	ActionRepair        Action = "REPAIR"
	ActionRegrind       Action = "REGRIND"
	ActionMarkReady     Action = "MARK_READY"
	ActionMarkDefective Action = "MARK_DEFECTIVE"
	ActionScrap         Action = "SCRAP"
)

// Actions lists every recognised action kind in logbook order.
var Actions = []Action{
	ActionCreate, ActionInstall, ActionRemove, ActionWash, ActionPolish,
	ActionInspect, ActionRepair, ActionRegrind, ActionMarkReady,
	ActionMarkDefective, ActionScrap,
}

// ParseAction normalises s and reports whether it is a known action.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, true
		}
	}
	return a, false
}

// IsService reports whether the action is shop-floor service work.
func (a Action) IsService() bool {
	switch a {
	case ActionWash, ActionPolish, ActionInspect, ActionRepair:
		return true
	}
	return false
}

// Status is the derived state of a tool.  It only ever appears as the
// from/to labels of an event.
type Status string

const (
	StatusStock       Status = "STOCK"
	StatusInstalled   Status = "INSTALLED"
	StatusNeedService Status = "NEED_SERVICE"
	StatusReady       Status = "READY"
	StatusDefective   Status = "DEFECTIVE"
	StatusScrapped    Status = "SCRAPPED"
)

// Event is one immutable logbook entry for one tool.  Rows in
// tooling_events are only ever inserted.
//
// Fields:
//
//	ID           – primary key; breaks ties between equal timestamps.
//	ToolID       – tool the entry belongs to.
//	BatchNo      – snapshot of the tool code at the time of writing.
//	UserName     – acting user as free text ("system" when unknown).
//	MachineID    – equipment reference, when the action is slot-scoped.
//	MachineName  – BM# label of that equipment.
//	Shift        – shift label (A, B, ...).
//	HappenedAt   – when the action happened.
//	Action       – action kind.
//	Reason       – reason text.
//	Note         – free-form note.
//	Role         – tool role for slot-scoped actions.
//	Position     – slot position for slot-scoped actions.
//	SlotID       – slot reference (nullable).
//	Dimension    – dimension before the action (DIM).
//	NewDimension – dimension after the action (NEW DIM).
//	FromStatus   – status before the action.
//	ToStatus     – status after the action; the source of the derived status.
type Event struct {
	ID           uint64              // tooling_events.id
	ToolID       uint64              // tooling_events.tool_id
	BatchNo      string              // tooling_events.batch_no
	UserName     string              // tooling_events.user_name
	MachineID    *uint64             // tooling_events.machine_id
	MachineName  string              // tooling_events.machine_name
	Shift        string              // tooling_events.shift
	HappenedAt   time.Time           // tooling_events.happened_at
	Action       Action              // tooling_events.action
	Reason       *string             // tooling_events.reason
	Note         string              // tooling_events.note
	Role         string              // tooling_events.role
	Position     string              // tooling_events.position
	SlotID       *uint64             // tooling_events.slot_id
	Dimension    decimal.NullDecimal // tooling_events.dimension
	NewDimension decimal.NullDecimal // tooling_events.new_dimension
	FromStatus   Status              // tooling_events.from_status
	ToStatus     Status              // tooling_events.to_status
}

// ReasonText returns the reason or an empty string.
func (e Event) ReasonText() string {
	if e.Reason == nil {
		return ""
	}
	return *e.Reason
}
