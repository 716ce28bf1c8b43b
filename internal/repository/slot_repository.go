package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

const slotColumns = `id, equipment_id, role, position, code, is_active, created_at`

// SlotRepo provides access to equipment_slots.  Slots are unique on
// (equipment_id, role, position) through uq_slot_equipment_role_pos.
type SlotRepo struct{ db *sql.DB }

func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

func scanSlot(s rowScanner) (model.EquipmentSlot, error) {
	var sl model.EquipmentSlot
	err := s.Scan(&sl.ID, &sl.EquipmentID, &sl.Role, &sl.Position, &sl.Code, &sl.IsActive, &sl.CreatedAt)
	return sl, err
}

// FindForUpdate locks the slot row for the triple until the surrounding
// transaction ends.  Concurrent installs into the same slot queue up here.
func (r *SlotRepo) FindForUpdate(ctx context.Context, equipmentID uint64, role, position string) (model.EquipmentSlot, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return model.EquipmentSlot{}, err
	}
	sl, err := scanSlot(db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM equipment_slots
		 WHERE equipment_id = ? AND role = ? AND position = ?
		 FOR UPDATE`,
		equipmentID, role, position))
	if errors.Is(err, sql.ErrNoRows) {
		return model.EquipmentSlot{}, ErrSlotNotFound
	}
	if err != nil {
		return model.EquipmentSlot{}, classify(err)
	}
	return sl, nil
}

// Create inserts s and sets its id.  The insert is visible to the rest of
// the transaction immediately.
func (r *SlotRepo) Create(ctx context.Context, s *model.EquipmentSlot) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO equipment_slots (equipment_id, role, position, code, is_active) VALUES (?,?,?,?,?)`,
		s.EquipmentID, s.Role, s.Position, s.Code, true)
	if err != nil {
		return fmt.Errorf("insert slot: %w", classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.IsActive = true
	return nil
}

// GetByID returns the slot with id or ErrSlotNotFound.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.EquipmentSlot, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return model.EquipmentSlot{}, err
	}
	sl, err := scanSlot(db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM equipment_slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.EquipmentSlot{}, ErrSlotNotFound
	}
	return sl, err
}
