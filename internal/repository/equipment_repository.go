package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

// EquipmentRepo reads machines from the equipment table.
type EquipmentRepo struct{ db *sql.DB }

func NewEquipmentRepo(db *sql.DB) *EquipmentRepo { return &EquipmentRepo{db: db} }

// GetByID returns the machine with id or ErrEquipmentNotFound.
func (r *EquipmentRepo) GetByID(ctx context.Context, id uint64) (model.Equipment, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return model.Equipment{}, err
	}
	var (
		eq   model.Equipment
		code sql.NullString
		name sql.NullString
	)
	err = db.QueryRowContext(ctx, `SELECT id, code, name FROM equipment WHERE id = ?`, id).
		Scan(&eq.ID, &code, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Equipment{}, ErrEquipmentNotFound
	}
	if err != nil {
		return model.Equipment{}, err
	}
	eq.Code = code.String
	eq.Name = name.String
	return eq, nil
}
