package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

const eventColumns = `id, tool_id, batch_no, user_name, machine_id, machine_name, shift, happened_at,
	action, reason, note, role, position, slot_id, dimension, new_dimension, from_status, to_status`

// EventRepo is the append-only tooling_events log.  It has no update or
// delete methods.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func scanEvent(s rowScanner) (model.Event, error) {
	var (
		e                            model.Event
		batch, user, machine, shift  sql.NullString
		reason, note, role, position sql.NullString
		fromStatus, toStatus         sql.NullString
		machineID, slotID            sql.NullInt64
		action                       string
	)
	err := s.Scan(&e.ID, &e.ToolID, &batch, &user, &machineID, &machine, &shift, &e.HappenedAt,
		&action, &reason, &note, &role, &position, &slotID, &e.Dimension, &e.NewDimension,
		&fromStatus, &toStatus)
	if err != nil {
		return model.Event{}, err
	}
	e.BatchNo = batch.String
	e.UserName = user.String
	e.MachineID = idPtr(machineID)
	e.MachineName = machine.String
	e.Shift = shift.String
	e.Action = model.Action(action)
	e.Reason = strPtr(reason)
	e.Note = note.String
	e.Role = role.String
	e.Position = position.String
	e.SlotID = idPtr(slotID)
	e.FromStatus = model.Status(fromStatus.String)
	e.ToStatus = model.Status(toStatus.String)
	return e, nil
}

// Append inserts e and sets its id.
func (r *EventRepo) Append(ctx context.Context, e *model.Event) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO tooling_events (tool_id, batch_no, user_name, machine_id, machine_name, shift, happened_at,
			action, reason, note, role, position, slot_id, dimension, new_dimension, from_status, to_status)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ToolID, nullString(e.BatchNo), nullString(e.UserName), nullID(e.MachineID), nullString(e.MachineName),
		nullString(e.Shift), e.HappenedAt, string(e.Action), nullStringPtr(e.Reason), nullString(e.Note),
		nullString(e.Role), nullString(e.Position), nullID(e.SlotID), e.Dimension, e.NewDimension,
		nullString(string(e.FromStatus)), nullString(string(e.ToStatus)))
	if err != nil {
		return fmt.Errorf("append event: %w", classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// Last returns the newest event of a tool, or nil when it has none.
// Equal timestamps are ordered by id.
func (r *EventRepo) Last(ctx context.Context, toolID uint64) (*model.Event, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	e, err := scanEvent(db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM tooling_events WHERE tool_id = ?
		 ORDER BY happened_at DESC, id DESC LIMIT 1`, toolID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LastForTools returns the newest event of every listed tool that has one.
func (r *EventRepo) LastForTools(ctx context.Context, toolIDs []uint64) (map[uint64]model.Event, error) {
	out := make(map[uint64]model.Event, len(toolIDs))
	if len(toolIDs) == 0 {
		return out, nil
	}
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	placeholders := make([]string, len(toolIDs))
	args := make([]any, len(toolIDs))
	for i, id := range toolIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT ` + eventColumns + ` FROM (
			SELECT e.*, ROW_NUMBER() OVER (PARTITION BY tool_id ORDER BY happened_at DESC, id DESC) AS rn
			FROM tooling_events e WHERE tool_id IN (` + strings.Join(placeholders, ",") + `)
		) latest WHERE rn = 1`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out[e.ToolID] = e
	}
	return out, rows.Err()
}

// ListByTool returns all events of a tool, newest first unless ascending.
func (r *EventRepo) ListByTool(ctx context.Context, toolID uint64, ascending bool) ([]model.Event, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	order := `happened_at DESC, id DESC`
	if ascending {
		order = `happened_at ASC, id ASC`
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM tooling_events WHERE tool_id = ? ORDER BY `+order, toolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
