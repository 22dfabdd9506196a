package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error codes the backup and restore paths run into
const (
	mysqlAccessDenied    = 1045
	mysqlUnknownDatabase = 1049
	mysqlDuplicateEntry  = 1062
	mysqlNoSuchTable     = 1146
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlCannotConnect   = 2003
	mysqlServerGoneAway  = 2006
)

// ErrorClassifier turns driver, network, context and filesystem errors
// into typed AppErrors so callers can decide between retrying and failing.
type ErrorClassifier struct{}

// NewErrorClassifier creates an error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError maps err onto the application taxonomy. AppErrors pass
// through unchanged.
func (c *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	for _, classify := range []func(error) *AppError{
		c.classifyMySQLError,
		c.classifySQLSentinel,
		c.classifyNetworkError,
		c.classifyContextError,
		c.classifyStorageError,
	} {
		if classified := classify(err); classified != nil {
			return classified
		}
	}

	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

func (c *ErrorClassifier) classifyMySQLError(err error) *AppError {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return nil
	}

	classified := func(appErr *AppError) *AppError {
		return appErr.WithContext("mysql_error_code", mysqlErr.Number)
	}

	switch mysqlErr.Number {
	case mysqlAccessDenied:
		return classified(NewAppError(ErrorTypePermission,
			"Database credentials rejected - check username and password", err))
	case mysqlUnknownDatabase:
		return classified(NewAppError(ErrorTypeValidation,
			"Database schema does not exist", err))
	case mysqlNoSuchTable:
		return classified(NewAppError(ErrorTypeValidation,
			"Expected table is missing", err))
	case mysqlDuplicateEntry:
		return classified(NewAppError(ErrorTypeValidation,
			"Duplicate key in written data", err))
	case mysqlLockWaitTimeout:
		return classified(NewRecoverableError(ErrorTypeSQL,
			"Lock wait timed out - the statement can be retried", err))
	case mysqlDeadlock:
		return classified(NewRecoverableError(ErrorTypeSQL,
			"Transaction deadlocked and was rolled back - safe to retry", err))
	case mysqlCannotConnect:
		return classified(NewRecoverableError(ErrorTypeConnection,
			"Cannot reach the database server", err))
	case mysqlServerGoneAway:
		return classified(NewRecoverableError(ErrorTypeConnection,
			"Database connection lost", err))
	default:
		return classified(NewAppError(ErrorTypeSQL,
			fmt.Sprintf("MySQL error: %s", mysqlErr.Message), err))
	}
}

func (c *ErrorClassifier) classifySQLSentinel(err error) *AppError {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return NewAppError(ErrorTypeValidation, "Query returned no rows", err)
	case errors.Is(err, sql.ErrTxDone):
		return NewAppError(ErrorTypeSQL, "Transaction already committed or rolled back", err)
	case errors.Is(err, sql.ErrConnDone):
		return NewRecoverableError(ErrorTypeConnection, "Database connection is closed", err)
	}
	return nil
}

func (c *ErrorClassifier) classifyNetworkError(err error) *AppError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewRecoverableError(ErrorTypeTimeout, "Network operation timed out", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return NewRecoverableError(ErrorTypeConnection,
				"Failed to establish network connection", err)
		case "read", "write":
			return NewRecoverableError(ErrorTypeConnection,
				"Network I/O error", err)
		}
	}

	return nil
}

func (c *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverableError(ErrorTypeTimeout, "Operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption, "Operation was canceled", err)
	}
	return nil
}

func (c *ErrorClassifier) classifyStorageError(err error) *AppError {
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		return nil
	}

	switch {
	case errors.Is(pathErr.Err, syscall.ENOENT):
		return NewAppError(ErrorTypeStorage,
			fmt.Sprintf("Path does not exist: %s", pathErr.Path), err)
	case errors.Is(pathErr.Err, syscall.EACCES):
		return NewAppError(ErrorTypePermission,
			fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
	case errors.Is(pathErr.Err, syscall.ENOSPC):
		return NewAppError(ErrorTypeStorage,
			"No space left on the storage device", err)
	}

	return nil
}
