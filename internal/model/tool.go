package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tool is one physically tracked piece of tooling (a "batch").  The
// tool_code is the BATCH # printed on the tool and never changes after
// creation.  Status is not stored here: it is always the to_status of the
// tool's latest event.  CurrentDiameter, RegrindCount and IsActive are a
// cache of what the latest relevant events imply and are rewritten by the
// lifecycle operations only.
//
// Fields:
//
//	ID              – primary key identifier.
//	ToolCode        – unique BATCH # (immutable).
//	ToolTypeID      – reference into tool_types (nullable).
//	SerialNumber    – optional manufacturer serial.
//	IntendedRole    – advisory role (IRONING, PUNCH, ...).
//	CurrentDiameter – last measured diameter, 3 decimal places.
//	MinDiameter     – wear threshold; installs are refused below it.
//	RegrindCount    – number of regrinds performed.
//	Notes           – free text.
//	IsActive        – false once the tool has been scrapped.
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last update timestamp.
type Tool struct {
	ID              uint64              // tooling.id
	ToolCode        string              // tooling.tool_code
	ToolTypeID      *uint64             // tooling.tool_type_id (nullable)
	SerialNumber    string              // tooling.serial_number
	IntendedRole    string              // tooling.intended_role
	CurrentDiameter decimal.NullDecimal // tooling.current_diameter
	MinDiameter     decimal.NullDecimal // tooling.min_diameter
	RegrindCount    uint32              // tooling.regrind_count
	Notes           string              // tooling.notes
	IsActive        bool                // tooling.is_active
	CreatedAt       time.Time           // tooling.created_at
	UpdatedAt       time.Time           // tooling.updated_at
}

// BelowMinimum reports whether the persisted current diameter is under the
// recorded wear threshold.  Both values must be present.
func (t Tool) BelowMinimum() bool {
	if !t.CurrentDiameter.Valid || !t.MinDiameter.Valid {
		return false
	}
	return t.CurrentDiameter.Decimal.LessThan(t.MinDiameter.Decimal)
}

// ToolType groups tools by a short code such as "IRON-63".
type ToolType struct {
	ID        uint64    // tool_types.id
	Code      string    // tool_types.code
	Name      string    // tool_types.name
	CreatedAt time.Time // tool_types.created_at
}

// DefaultToolTypeCode is used when a tool is created without a type.
const DefaultToolTypeCode = "GENERIC"
