package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/repository"
)

// CreateToolInput describes a new batch.  Dimensions are raw text as typed
// on the floor ("63,750" and "63.750" are both accepted).
type CreateToolInput struct {
	ToolCode     string
	TypeCode     string
	IntendedRole string
	SerialNumber string
	Notes        string
	Dimension    string
	MinDimension string
}

// InstallInput places a tool into the slot (equipment, role, position).
type InstallInput struct {
	ToolID      uint64
	EquipmentID uint64
	Role        string
	Position    string
	Shift       string
	Reason      string
	Dimension   string
}

// RemoveInput takes a tool out of the slot (equipment, role, position).
type RemoveInput struct {
	ToolID      uint64
	EquipmentID uint64
	Role        string
	Position    string
	Reason      string
	Shift       string
	Note        string
}

// RegrindInput records a regrind.  Both dimensions are optional.
type RegrindInput struct {
	ToolID          uint64
	DimensionBefore string
	DimensionAfter  string
	Reason          string
	Shift           string
	Note            string
}

// ActionInput records a service or status action.  EquipmentID is zero
// when the action is not tied to a machine.
type ActionInput struct {
	ToolID       uint64
	Action       string
	EquipmentID  uint64
	Role         string
	Position     string
	Shift        string
	Reason       string
	Note         string
	Dimension    string
	NewDimension string
}

// CreateTool registers a new batch and writes its CREATE event.
func (s *ToolingService) CreateTool(ctx context.Context, actor Actor, in CreateToolInput) (model.Tool, error) {
	code := strings.TrimSpace(in.ToolCode)
	if code == "" {
		return model.Tool{}, invalid("tool_code", "is required")
	}
	dim, err := parseDimensionField("dimension", in.Dimension, false)
	if err != nil {
		return model.Tool{}, err
	}
	minDim, err := parseDimensionField("min_dimension", in.MinDimension, false)
	if err != nil {
		return model.Tool{}, err
	}
	typeCode := strings.TrimSpace(in.TypeCode)
	if typeCode == "" {
		typeCode = model.DefaultToolTypeCode
	}
	role := s.vocab.Role(in.IntendedRole)

	var tool model.Tool
	err = s.run(ctx, "create tool", func(ctx context.Context, rec *recorder) error {
		_, err := s.st.Tools.GetByCode(ctx, code)
		if err == nil {
			return &ConflictError{Msg: fmt.Sprintf("tool %s already exists", code)}
		}
		if !errors.Is(err, repository.ErrToolNotFound) {
			return err
		}
		typeID, err := s.st.ToolTypes.Ensure(ctx, typeCode)
		if err != nil {
			return err
		}
		tool = model.Tool{
			ToolCode:        code,
			ToolTypeID:      &typeID,
			SerialNumber:    strings.TrimSpace(in.SerialNumber),
			IntendedRole:    role,
			CurrentDiameter: dim,
			MinDiameter:     minDim,
			Notes:           strings.TrimSpace(in.Notes),
			IsActive:        true,
		}
		if err := s.st.Tools.Create(ctx, &tool); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return &ConflictError{Msg: fmt.Sprintf("tool %s already exists", code), Err: err}
			}
			return err
		}
		return rec.append(ctx, &model.Event{
			ToolID:     tool.ID,
			BatchNo:    tool.ToolCode,
			UserName:   actor.userName(),
			HappenedAt: s.clock(),
			Action:     model.ActionCreate,
			Role:       role,
			Dimension:  dim,
			ToStatus:   model.StatusStock,
		})
	})
	if err != nil {
		return model.Tool{}, err
	}
	return tool, nil
}

// Install mounts a tool into a slot.  A tool already in the slot is
// removed first, and any mount the incoming tool still holds elsewhere is
// closed.  When the install reason belongs to the new/trial family
// it stays on the INSTALL event and the outgoing tool gets
// AutoUninstallReason; any other reason explains why the outgoing tool
// came out and is written on its REMOVE event instead.
func (s *ToolingService) Install(ctx context.Context, actor Actor, in InstallInput) (model.Event, error) {
	role := s.vocab.Role(in.Role)
	position := strings.TrimSpace(in.Position)
	if role == "" {
		return model.Event{}, invalid("role", "is required")
	}
	if s.vocab.RequiresPosition(role) && position == "" {
		return model.Event{}, invalid("position", "is required for "+role)
	}
	if in.EquipmentID == 0 {
		return model.Event{}, invalid("equipment_id", "is required")
	}
	shift, ok := s.vocab.Shift(in.Shift)
	if !ok {
		return model.Event{}, invalid("shift", "must be one of "+strings.Join(s.vocab.Shifts, ", "))
	}
	dim, err := parseDimensionField("dimension", in.Dimension, true)
	if err != nil {
		return model.Event{}, err
	}
	reason, ok := s.vocab.InstallReason(in.Reason)
	if !ok {
		return model.Event{}, invalid("reason", "must be one of the install reasons")
	}

	var ev model.Event
	err = s.run(ctx, "install", func(ctx context.Context, rec *recorder) error {
		tool, err := s.lockActiveTool(ctx, in.ToolID)
		if err != nil {
			return err
		}
		if tool.BelowMinimum() {
			return &DomainError{Msg: fmt.Sprintf("tool %s is below minimum dimension (%s < %s)",
				tool.ToolCode, FormatDimension(tool.CurrentDiameter), FormatDimension(tool.MinDiameter))}
		}
		eq, err := s.equipment(ctx, in.EquipmentID)
		if err != nil {
			return err
		}
		sl, err := s.ensureSlot(ctx, eq, role, position)
		if err != nil {
			return err
		}

		now := s.clock()
		newOrTrial := s.vocab.IsNewOrTrial(reason)
		current, err := s.st.Mounts.ActiveInSlot(ctx, sl.ID)
		if err != nil {
			return err
		}
		if current != nil {
			removeReason := reason
			if newOrTrial {
				removeReason = AutoUninstallReason
			}
			if err := s.autoUninstall(ctx, rec, actor, *current, eq, sl, shift, removeReason, now); err != nil {
				return err
			}
		}

		// A tool holds one slot at a time.
		held, err := s.st.Mounts.ActiveForTool(ctx, tool.ID)
		if err != nil {
			return err
		}
		for _, m := range held {
			if err := s.st.Mounts.Close(ctx, m.ID, now); err != nil {
				return err
			}
		}

		if err := s.st.Mounts.Open(ctx, &model.Mount{
			ToolID:      tool.ID,
			SlotID:      sl.ID,
			StartedAt:   now,
			CreatedByID: actor.UserID,
		}); err != nil {
			return err
		}

		var installReason *string
		if newOrTrial {
			installReason = &reason
		}
		ev = model.Event{
			ToolID:      tool.ID,
			BatchNo:     tool.ToolCode,
			UserName:    actor.userName(),
			MachineID:   &eq.ID,
			MachineName: eq.Label(),
			Shift:       shift,
			HappenedAt:  now,
			Action:      model.ActionInstall,
			Reason:      installReason,
			Role:        role,
			Position:    position,
			SlotID:      &sl.ID,
			Dimension:   dim,
			FromStatus:  model.StatusReady,
			ToStatus:    model.StatusInstalled,
		}
		if err := rec.append(ctx, &ev); err != nil {
			return err
		}
		tool.CurrentDiameter = dim
		return s.st.Tools.UpdateState(ctx, tool)
	})
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// Remove takes a tool out of a slot.  The REMOVE event is written even
// when the tool is not tracked as mounted there, so the logbook can be
// corrected by hand; only a mount held by this tool is closed.
func (s *ToolingService) Remove(ctx context.Context, actor Actor, in RemoveInput) (model.Event, error) {
	role := s.vocab.Role(in.Role)
	position := strings.TrimSpace(in.Position)
	if in.EquipmentID == 0 {
		return model.Event{}, invalid("equipment_id", "is required")
	}
	if role == "" {
		return model.Event{}, invalid("role", "is required")
	}
	if s.vocab.RequiresPosition(role) && position == "" {
		return model.Event{}, invalid("position", "is required for "+role)
	}
	shift, err := s.optionalShift(in.Shift)
	if err != nil {
		return model.Event{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = DefaultRemoveReason
	}

	var ev model.Event
	err = s.run(ctx, "remove", func(ctx context.Context, rec *recorder) error {
		tool, err := s.lockActiveTool(ctx, in.ToolID)
		if err != nil {
			return err
		}
		eq, err := s.equipment(ctx, in.EquipmentID)
		if err != nil {
			return err
		}
		sl, err := s.ensureSlot(ctx, eq, role, position)
		if err != nil {
			return err
		}
		now := s.clock()
		current, err := s.st.Mounts.ActiveInSlot(ctx, sl.ID)
		if err != nil {
			return err
		}
		if current != nil && current.ToolID == tool.ID {
			if err := s.st.Mounts.Close(ctx, current.ID, now); err != nil {
				return err
			}
		} else {
			s.log.Info("remove without matching mount", "tool_id", tool.ID, "slot", sl.Code)
		}
		ev = model.Event{
			ToolID:      tool.ID,
			BatchNo:     tool.ToolCode,
			UserName:    actor.userName(),
			MachineID:   &eq.ID,
			MachineName: eq.Label(),
			Shift:       shift,
			HappenedAt:  now,
			Action:      model.ActionRemove,
			Reason:      &reason,
			Note:        strings.TrimSpace(in.Note),
			Role:        role,
			Position:    position,
			SlotID:      &sl.ID,
			Dimension:   tool.CurrentDiameter,
			FromStatus:  model.StatusInstalled,
			ToStatus:    model.StatusNeedService,
		}
		return rec.append(ctx, &ev)
	})
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// Regrind counts a regrind and returns the tool to stock.  The persisted
// diameter changes only when DimensionAfter is given.
func (s *ToolingService) Regrind(ctx context.Context, actor Actor, in RegrindInput) (model.Event, error) {
	before, err := parseDimensionField("dimension", in.DimensionBefore, false)
	if err != nil {
		return model.Event{}, err
	}
	after, err := parseDimensionField("new_dimension", in.DimensionAfter, false)
	if err != nil {
		return model.Event{}, err
	}
	shift, err := s.optionalShift(in.Shift)
	if err != nil {
		return model.Event{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = DefaultRegrindReason
	}

	var ev model.Event
	err = s.run(ctx, "regrind", func(ctx context.Context, rec *recorder) error {
		tool, err := s.lockActiveTool(ctx, in.ToolID)
		if err != nil {
			return err
		}
		if !before.Valid {
			before = tool.CurrentDiameter
		}
		tool.RegrindCount++
		if after.Valid {
			tool.CurrentDiameter = after
		}
		ev = model.Event{
			ToolID:       tool.ID,
			BatchNo:      tool.ToolCode,
			UserName:     actor.userName(),
			Shift:        shift,
			HappenedAt:   s.clock(),
			Action:       model.ActionRegrind,
			Reason:       &reason,
			Note:         strings.TrimSpace(in.Note),
			Dimension:    before,
			NewDimension: after,
			FromStatus:   model.StatusNeedService,
			ToStatus:     model.StatusStock,
		}
		if err := rec.append(ctx, &ev); err != nil {
			return err
		}
		return s.st.Tools.UpdateState(ctx, tool)
	})
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// RecordAction writes a service or status event.  INSTALL, REMOVE,
// REGRIND and CREATE have their own operations and are refused here.
// SCRAP deactivates the tool and ends any mount it still holds.
func (s *ToolingService) RecordAction(ctx context.Context, actor Actor, in ActionInput) (model.Event, error) {
	action, ok := model.ParseAction(in.Action)
	if !ok {
		return model.Event{}, invalid("action", fmt.Sprintf("unknown action %q", in.Action))
	}
	switch action {
	case model.ActionCreate, model.ActionInstall, model.ActionRemove, model.ActionRegrind:
		return model.Event{}, invalid("action", string(action)+" has its own operation")
	}
	dim, err := parseDimensionField("dimension", in.Dimension, false)
	if err != nil {
		return model.Event{}, err
	}
	newDim, err := parseDimensionField("new_dimension", in.NewDimension, false)
	if err != nil {
		return model.Event{}, err
	}
	shift, err := s.optionalShift(in.Shift)
	if err != nil {
		return model.Event{}, err
	}
	var reason *string
	if r := strings.TrimSpace(in.Reason); r != "" {
		reason = &r
	}

	var ev model.Event
	err = s.run(ctx, strings.ToLower(string(action)), func(ctx context.Context, rec *recorder) error {
		tool, err := s.lockActiveTool(ctx, in.ToolID)
		if err != nil {
			return err
		}
		ev = model.Event{
			ToolID:       tool.ID,
			BatchNo:      tool.ToolCode,
			UserName:     actor.userName(),
			Shift:        shift,
			HappenedAt:   s.clock(),
			Action:       action,
			Reason:       reason,
			Note:         strings.TrimSpace(in.Note),
			Role:         s.vocab.Role(in.Role),
			Position:     strings.TrimSpace(in.Position),
			Dimension:    dim,
			NewDimension: newDim,
		}
		if in.EquipmentID != 0 {
			eq, err := s.equipment(ctx, in.EquipmentID)
			if err != nil {
				return err
			}
			ev.MachineID = &eq.ID
			ev.MachineName = eq.Label()
		}
		last, err := s.st.Events.Last(ctx, tool.ID)
		if err != nil {
			return err
		}
		ev.FromStatus = statusOf(last)
		ev.ToStatus = nextStatus(action, ev.FromStatus)
		if err := rec.append(ctx, &ev); err != nil {
			return err
		}
		if action != model.ActionScrap {
			return nil
		}
		mounts, err := s.st.Mounts.ActiveForTool(ctx, tool.ID)
		if err != nil {
			return err
		}
		for _, m := range mounts {
			if err := s.st.Mounts.Close(ctx, m.ID, ev.HappenedAt); err != nil {
				return err
			}
		}
		tool.IsActive = false
		return s.st.Tools.UpdateState(ctx, tool)
	})
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// ServiceInput is the shop-floor shortcut for finishing service work.
type ServiceInput struct {
	ToolID       uint64
	Action       string
	Shift        string
	Note         string
	NewDimension string
}

// Service records WASH, POLISH, INSPECT or REPAIR through RecordAction,
// or a REGRIND, which then requires the new dimension.
func (s *ToolingService) Service(ctx context.Context, actor Actor, in ServiceInput) (model.Event, error) {
	action, _ := model.ParseAction(in.Action)
	switch {
	case action == model.ActionRegrind:
		if strings.TrimSpace(in.NewDimension) == "" {
			return model.Event{}, invalid("new_dimension", "is required for REGRIND")
		}
		return s.Regrind(ctx, actor, RegrindInput{
			ToolID:         in.ToolID,
			DimensionAfter: in.NewDimension,
			Shift:          in.Shift,
			Note:           in.Note,
		})
	case action.IsService():
		return s.RecordAction(ctx, actor, ActionInput{
			ToolID: in.ToolID,
			Action: string(action),
			Shift:  in.Shift,
			Note:   in.Note,
		})
	}
	return model.Event{}, invalid("action", "must be WASH, POLISH, INSPECT, REPAIR or REGRIND")
}

func (s *ToolingService) lockActiveTool(ctx context.Context, id uint64) (model.Tool, error) {
	tool, err := s.st.Tools.GetByIDForUpdate(ctx, id)
	if errors.Is(err, repository.ErrToolNotFound) {
		return model.Tool{}, &NotFoundError{Entity: "tool", Key: id}
	}
	if err != nil {
		return model.Tool{}, err
	}
	if !tool.IsActive {
		return model.Tool{}, &DomainError{Msg: fmt.Sprintf("tool %s is scrapped", tool.ToolCode)}
	}
	return tool, nil
}

func (s *ToolingService) equipment(ctx context.Context, id uint64) (model.Equipment, error) {
	eq, err := s.st.Equipment.GetByID(ctx, id)
	if errors.Is(err, repository.ErrEquipmentNotFound) {
		return model.Equipment{}, &NotFoundError{Entity: "equipment", Key: id}
	}
	return eq, err
}

func (s *ToolingService) optionalShift(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	shift, ok := s.vocab.Shift(raw)
	if !ok {
		return "", invalid("shift", "must be one of "+strings.Join(s.vocab.Shifts, ", "))
	}
	return shift, nil
}

func statusOf(last *model.Event) model.Status {
	if last == nil || last.ToStatus == "" {
		return model.StatusStock
	}
	return last.ToStatus
}

// nextStatus maps an action onto the status it leaves the tool in.
// Service work finishes a pending service or repairs a defect; on a tool
// in any other state it changes nothing.
func nextStatus(a model.Action, current model.Status) model.Status {
	switch a {
	case model.ActionMarkReady:
		return model.StatusReady
	case model.ActionMarkDefective:
		return model.StatusDefective
	case model.ActionScrap:
		return model.StatusScrapped
	}
	if a.IsService() && (current == model.StatusNeedService || current == model.StatusDefective) {
		return model.StatusStock
	}
	return current
}
