// Package repository implements MySQL persistence for rooms, schedules,
// slots and reservations.  Sentinel values let higher layers distinguish
// failure scenarios; driver errors are classified by MySQL error number.
package repository

import (
    "github.com/cockroachdb/errors"
    "github.com/go-sql-driver/mysql"
)

var (
    ErrRoomNotFound        = errors.New("room not found")
    ErrScheduleNotFound    = errors.New("schedule not found")
    ErrSlotNotFound        = errors.New("slot not found")
    ErrReservationNotFound = errors.New("reservation not found")

    // ErrDuplicate is returned when an insert hits a unique key, e.g. a
    // room number that already exists.  Handlers translate it into 409.
    ErrDuplicate = errors.New("duplicate entry")
)

// MySQL server error numbers the repositories react to.
const (
    errDupEntry        = 1062
    errNoReferencedRow = 1452
    errLockWaitTimeout = 1205
    errDeadlock        = 1213
)

func mysqlNumber(err error) (uint16, bool) {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number, true
    }
    return 0, false
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool {
    n, ok := mysqlNumber(err)
    return ok && n == errDupEntry
}

// IsForeignKeyViolation reports an insert referencing a missing parent row.
func IsForeignKeyViolation(err error) bool {
    n, ok := mysqlNumber(err)
    return ok && n == errNoReferencedRow
}

// IsRetryable reports errors after which InnoDB rolled the transaction back
// and re-running it may succeed.
func IsRetryable(err error) bool {
    n, ok := mysqlNumber(err)
    return ok && (n == errDeadlock || n == errLockWaitTimeout)
}
