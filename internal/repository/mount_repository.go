package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

const mountColumns = `id, tool_id, slot_id, started_at, ended_at, created_by_id`

// MountRepo tracks tool occupancy intervals in tooling_mounts.
type MountRepo struct{ db *sql.DB }

func NewMountRepo(db *sql.DB) *MountRepo { return &MountRepo{db: db} }

func scanMount(s rowScanner) (model.Mount, error) {
	var (
		m       model.Mount
		ended   sql.NullTime
		creator sql.NullInt64
	)
	if err := s.Scan(&m.ID, &m.ToolID, &m.SlotID, &m.StartedAt, &ended, &creator); err != nil {
		return model.Mount{}, err
	}
	if ended.Valid {
		t := ended.Time
		m.EndedAt = &t
	}
	m.CreatedByID = idPtr(creator)
	return m, nil
}

// ActiveInSlot returns the open mount of a slot, or nil.  If stale data
// ever left more than one open row the newest wins.
func (r *MountRepo) ActiveInSlot(ctx context.Context, slotID uint64) (*model.Mount, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	m, err := scanMount(db.QueryRowContext(ctx,
		`SELECT `+mountColumns+` FROM tooling_mounts
		 WHERE slot_id = ? AND ended_at IS NULL
		 ORDER BY started_at DESC, id DESC LIMIT 1`, slotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ActiveForTool returns every open mount held by a tool.
func (r *MountRepo) ActiveForTool(ctx context.Context, toolID uint64) ([]model.Mount, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+mountColumns+` FROM tooling_mounts WHERE tool_id = ? AND ended_at IS NULL ORDER BY id`, toolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Mount
	for rows.Next() {
		m, err := scanMount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Open inserts a new open mount and sets its id.
func (r *MountRepo) Open(ctx context.Context, m *model.Mount) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO tooling_mounts (tool_id, slot_id, started_at, created_by_id) VALUES (?,?,?,?)`,
		m.ToolID, m.SlotID, m.StartedAt, nullID(m.CreatedByID))
	if err != nil {
		return fmt.Errorf("open mount: %w", classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	m.EndedAt = nil
	return nil
}

// Close ends an open mount at the given time.  Already-closed mounts are
// left untouched.
func (r *MountRepo) Close(ctx context.Context, mountID uint64, at time.Time) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE tooling_mounts SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, at, mountID); err != nil {
		return fmt.Errorf("close mount: %w", classify(err))
	}
	return nil
}
