package ports

import (
	"context"
	"time"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

// Repositories run inside the transaction carried by ctx when there is one.
// Methods named ...ForUpdate take a row lock and must be called inside
// UnitOfWork.WithTx.

type ToolRepository interface {
	Create(ctx context.Context, t *model.Tool) error
	GetByID(ctx context.Context, id uint64) (model.Tool, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (model.Tool, error)
	GetByCode(ctx context.Context, code string) (model.Tool, error)
	// UpdateState rewrites the cached attributes: current_diameter,
	// regrind_count and is_active.
	UpdateState(ctx context.Context, t model.Tool) error
	ListActive(ctx context.Context, search string) ([]model.Tool, error)
	// Neighbours returns the ids of the closest active tools below and
	// above id (0 when there is none).
	Neighbours(ctx context.Context, id uint64) (prev, next uint64, err error)
}

type ToolTypeRepository interface {
	// Ensure returns the id of the type with code, creating it if needed.
	Ensure(ctx context.Context, code string) (uint64, error)
}

type EquipmentRepository interface {
	GetByID(ctx context.Context, id uint64) (model.Equipment, error)
}

type SlotRepository interface {
	// FindForUpdate locks and returns the slot for the triple, or
	// repository.ErrSlotNotFound.
	FindForUpdate(ctx context.Context, equipmentID uint64, role, position string) (model.EquipmentSlot, error)
	// Create inserts a slot; a racing insert of the same triple yields
	// repository.ErrDuplicate.
	Create(ctx context.Context, s *model.EquipmentSlot) error
	GetByID(ctx context.Context, id uint64) (model.EquipmentSlot, error)
}

type MountRepository interface {
	ActiveInSlot(ctx context.Context, slotID uint64) (*model.Mount, error)
	ActiveForTool(ctx context.Context, toolID uint64) ([]model.Mount, error)
	Open(ctx context.Context, m *model.Mount) error
	// Close sets ended_at on an open mount.  Closing a closed mount is a no-op.
	Close(ctx context.Context, mountID uint64, at time.Time) error
}

type EventRepository interface {
	Append(ctx context.Context, e *model.Event) error
	Last(ctx context.Context, toolID uint64) (*model.Event, error)
	// LastForTools returns the latest event of each tool that has one.
	LastForTools(ctx context.Context, toolIDs []uint64) (map[uint64]model.Event, error)
	// ListByTool returns the tool's events newest first, or oldest first
	// when ascending is set.
	ListByTool(ctx context.Context, toolID uint64, ascending bool) ([]model.Event, error)
}

// EventPublisher fans committed events out to other systems.  Failures
// never affect the operation that produced the events.
type EventPublisher interface {
	Publish(ctx context.Context, events []model.Event) error
}
