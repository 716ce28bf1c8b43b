package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/repository"
)

// ensureSlot returns the slot for (equipment, role, position), creating it
// on first use.  The slot row stays locked until the transaction ends, so
// two installs into the same slot run one after the other.
func (s *ToolingService) ensureSlot(ctx context.Context, eq model.Equipment, role, position string) (model.EquipmentSlot, error) {
	sl, err := s.st.Slots.FindForUpdate(ctx, eq.ID, role, position)
	if err == nil {
		return sl, nil
	}
	if !errors.Is(err, repository.ErrSlotNotFound) {
		return model.EquipmentSlot{}, err
	}
	sl = model.EquipmentSlot{
		EquipmentID: eq.ID,
		Role:        role,
		Position:    position,
		Code:        model.SlotCode(eq, role, position),
	}
	err = s.st.Slots.Create(ctx, &sl)
	if err == nil {
		return sl, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return model.EquipmentSlot{}, err
	}
	// another transaction inserted the same triple first
	return s.st.Slots.FindForUpdate(ctx, eq.ID, role, position)
}

// autoUninstall ends the open mount m and writes the REMOVE event for the
// tool it held.
func (s *ToolingService) autoUninstall(ctx context.Context, rec *recorder, actor Actor, m model.Mount,
	eq model.Equipment, sl model.EquipmentSlot, shift string, reason string, at time.Time) error {
	if err := s.st.Mounts.Close(ctx, m.ID, at); err != nil {
		return err
	}
	prev, err := s.st.Tools.GetByIDForUpdate(ctx, m.ToolID)
	if err != nil {
		return err
	}
	r := reason
	return rec.append(ctx, &model.Event{
		ToolID:      prev.ID,
		BatchNo:     prev.ToolCode,
		UserName:    actor.userName(),
		MachineID:   &eq.ID,
		MachineName: eq.Label(),
		Shift:       shift,
		HappenedAt:  at,
		Action:      model.ActionRemove,
		Reason:      &r,
		Role:        sl.Role,
		Position:    sl.Position,
		SlotID:      &sl.ID,
		Dimension:   prev.CurrentDiameter,
		FromStatus:  model.StatusInstalled,
		ToStatus:    model.StatusNeedService,
	})
}
