package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Transient SQLSTATE classes: serialization failure, deadlock, lock
// timeout, connection-slot exhaustion, admin shutdown, server starting up,
// and the 08 connection-exception family.
var retryableSQLStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"53300": true,
	"57P01": true,
	"57P03": true,
	"08000": true,
	"08003": true,
	"08006": true,
}

// IsRetryable reports whether err is a transient storage fault worth another
// attempt on a fresh connection. Cancellation is never retryable; it must
// propagate so the run transitions to Cancelled.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLStates[pgErr.Code]
	}

	// pgconn marks errors that died before the server saw the statement.
	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Faults the driver surfaces only as text.
	msg := strings.ToLower(err.Error())
	for _, frag := range []string{
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"server closed the connection",
		"connection refused",
		"conn closed",
		"i/o timeout",
	} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
