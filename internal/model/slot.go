package model

import (
	"fmt"
	"time"
)

// EquipmentSlot is a named mounting position on a machine.  A slot is
// unique per (equipment, role, position) and is created lazily the first
// time an install or remove refers to it.
//
// Fields:
//
//	ID          – primary key identifier.
//	EquipmentID – machine the slot belongs to.
//	Role        – tool role mounted here (IRONING, PUNCH, ...).
//	Position    – position label within the role ("#1", "#2", or empty).
//	Code        – display code "<equipment>:<role>:<position>".
//	IsActive    – slots are never deleted, only deactivated.
type EquipmentSlot struct {
	ID          uint64    // equipment_slots.id
	EquipmentID uint64    // equipment_slots.equipment_id
	Role        string    // equipment_slots.role
	Position    string    // equipment_slots.position
	Code        string    // equipment_slots.code
	IsActive    bool      // equipment_slots.is_active
	CreatedAt   time.Time // equipment_slots.created_at
}

// SlotCode builds the display code of a slot.
func SlotCode(eq Equipment, role, position string) string {
	return fmt.Sprintf("%s:%s:%s", eq.SlotPrefix(), role, position)
}
