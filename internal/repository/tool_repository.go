package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/tooling-tracker/internal/model"
)

const toolColumns = `id, tool_code, tool_type_id, serial_number, intended_role, current_diameter,
	min_diameter, regrind_count, notes, is_active, created_at, updated_at`

// ToolRepo provides access to the tooling table.
type ToolRepo struct{ db *sql.DB }

func NewToolRepo(db *sql.DB) *ToolRepo { return &ToolRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTool(s rowScanner) (model.Tool, error) {
	var (
		t        model.Tool
		typeID   sql.NullInt64
		serial   sql.NullString
		role     sql.NullString
		notes    sql.NullString
		regrinds sql.NullInt64
	)
	err := s.Scan(&t.ID, &t.ToolCode, &typeID, &serial, &role, &t.CurrentDiameter,
		&t.MinDiameter, &regrinds, &notes, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Tool{}, err
	}
	t.ToolTypeID = idPtr(typeID)
	t.SerialNumber = serial.String
	t.IntendedRole = role.String
	t.Notes = notes.String
	t.RegrindCount = uint32(regrinds.Int64)
	return t, nil
}

// Create inserts t and fills in its id and timestamps.  A duplicate
// tool_code yields ErrDuplicate.
func (r *ToolRepo) Create(ctx context.Context, t *model.Tool) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO tooling (tool_code, tool_type_id, serial_number, intended_role, current_diameter,
			min_diameter, regrind_count, notes, is_active)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ToolCode, nullID(t.ToolTypeID), nullString(t.SerialNumber), nullString(t.IntendedRole),
		t.CurrentDiameter, t.MinDiameter, t.RegrindCount, nullString(t.Notes), t.IsActive)
	if err != nil {
		return fmt.Errorf("insert tool: %w", classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = created
	return nil
}

// GetByID returns the tool with id or ErrToolNotFound.
func (r *ToolRepo) GetByID(ctx context.Context, id uint64) (model.Tool, error) {
	return r.getOne(ctx, `SELECT `+toolColumns+` FROM tooling WHERE id = ?`, id)
}

// GetByIDForUpdate is GetByID with a row lock held until the transaction ends.
func (r *ToolRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Tool, error) {
	return r.getOne(ctx, `SELECT `+toolColumns+` FROM tooling WHERE id = ? FOR UPDATE`, id)
}

// GetByCode looks a tool up by its BATCH #.
func (r *ToolRepo) GetByCode(ctx context.Context, code string) (model.Tool, error) {
	return r.getOne(ctx, `SELECT `+toolColumns+` FROM tooling WHERE tool_code = ? LIMIT 1`, strings.TrimSpace(code))
}

func (r *ToolRepo) getOne(ctx context.Context, query string, args ...any) (model.Tool, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return model.Tool{}, err
	}
	t, err := scanTool(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tool{}, ErrToolNotFound
	}
	if err != nil {
		return model.Tool{}, classify(err)
	}
	return t, nil
}

// UpdateState writes the cached attributes of t.
func (r *ToolRepo) UpdateState(ctx context.Context, t model.Tool) error {
	db, err := conn(ctx, r.db)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE tooling SET current_diameter = ?, regrind_count = ?, is_active = ?, updated_at = UTC_TIMESTAMP(6)
		 WHERE id = ?`,
		t.CurrentDiameter, t.RegrindCount, t.IsActive, t.ID)
	if err != nil {
		return fmt.Errorf("update tool: %w", classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrToolNotFound
	}
	return nil
}

// ListActive returns active tools, most recently touched first.  A
// non-empty search keeps only tools whose code contains it, ordered by
// code; the column collation makes the match case-insensitive.
func (r *ToolRepo) ListActive(ctx context.Context, search string) ([]model.Tool, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + toolColumns + ` FROM tooling WHERE is_active = 1`
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		query += ` AND tool_code LIKE ? ORDER BY tool_code ASC`
		args = append(args, "%"+escapeLike(s)+"%")
	} else {
		query += ` ORDER BY updated_at DESC, id DESC`
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Neighbours returns the ids of the closest active tools below and above
// id, or zero when there is none.
func (r *ToolRepo) Neighbours(ctx context.Context, id uint64) (uint64, uint64, error) {
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, 0, err
	}
	var prev, next sql.NullInt64
	err = db.QueryRowContext(ctx,
		`SELECT
			(SELECT MAX(id) FROM tooling WHERE is_active = 1 AND id < ?),
			(SELECT MIN(id) FROM tooling WHERE is_active = 1 AND id > ?)`,
		id, id).Scan(&prev, &next)
	if err != nil {
		return 0, 0, err
	}
	return uint64(prev.Int64), uint64(next.Int64), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
