// Package repository implements the tooling stores on MySQL with
// database/sql.  The sentinel values below let the service layer tell
// failure scenarios apart without looking at driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrEquipmentNotFound = errors.New("equipment not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrUserNotFound      = errors.New("user not found")

	// ErrDuplicate is returned when an insert hits a unique index
	// (MySQL error 1062).
	ErrDuplicate = errors.New("duplicate entry")

	// ErrLockConflict is returned when a row lock could not be taken
	// because of a deadlock (1213) or a lock wait timeout (1205).
	// The whole transaction has been rolled back by the server.
	ErrLockConflict = errors.New("lock conflict")
)

const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlockDetected = 1213
)

// classify maps MySQL error numbers onto the sentinels above and returns
// any other error unchanged.
func classify(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry:
		return errors.Join(ErrDuplicate, err)
	case mysqlLockWaitTimeout, mysqlDeadlockDetected:
		return errors.Join(ErrLockConflict, err)
	}
	return err
}
