package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ToolTypeRepo provides access to the tool_types table.
type ToolTypeRepo struct{ db *sql.DB }

func NewToolTypeRepo(db *sql.DB) *ToolTypeRepo { return &ToolTypeRepo{db: db} }

// Ensure returns the id of the tool type with code, inserting it first when
// it does not exist.  A concurrent insert of the same code is resolved by
// reading the winner's row.
func (r *ToolTypeRepo) Ensure(ctx context.Context, code string) (uint64, error) {
	code = strings.TrimSpace(code)
	db, err := conn(ctx, r.db)
	if err != nil {
		return 0, err
	}
	id, err := r.find(ctx, db, code)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `INSERT INTO tool_types (code, name) VALUES (?, ?)`, code, code)
	if err != nil {
		if errors.Is(classify(err), ErrDuplicate) {
			return r.find(ctx, db, code)
		}
		return 0, fmt.Errorf("insert tool type: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(newID), nil
}

func (r *ToolTypeRepo) find(ctx context.Context, db DBTX, code string) (uint64, error) {
	var id uint64
	err := db.QueryRowContext(ctx, `SELECT id FROM tool_types WHERE code = ? LIMIT 1`, code).Scan(&id)
	return id, err
}
