package model

import "time"

// Mount records that a tool occupied a slot for an interval.  EndedAt is
// nil while the tool is still installed.  At most one open mount may exist
// per slot; the install operation enforces this under a slot row lock.
type Mount struct {
	ID          uint64     // tooling_mounts.id
	ToolID      uint64     // tooling_mounts.tool_id
	SlotID      uint64     // tooling_mounts.slot_id
	StartedAt   time.Time  // tooling_mounts.started_at
	EndedAt     *time.Time // tooling_mounts.ended_at (nullable)
	CreatedByID *uint64    // tooling_mounts.created_by_id (nullable for the system actor)
}

// Open reports whether the mount has not been closed yet.
func (m Mount) Open() bool { return m.EndedAt == nil }
