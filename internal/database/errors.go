package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
)

// ErrUnknownStrategy is returned by Open for a strategy other than connection or pool.
var ErrUnknownStrategy = errors.New("unknown database strategy")

// Kind classifies why a connection attempt failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnreachable
	KindAccessDenied
	KindUnknownDatabase
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindAccessDenied:
		return "access_denied"
	case KindUnknownDatabase:
		return "unknown_database"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ConnectError is returned when the eager connection strategy cannot reach
// a usable server. The handle returned alongside it is still valid to hold.
type ConnectError struct {
	Kind Kind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("database connect %s (%s): %v", e.Addr, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Classify maps a driver, network or context error to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1044, 1045, 1698:
			return KindAccessDenied
		case 1049:
			return KindUnknownDatabase
		default:
			return KindUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnreachable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}

	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return KindUnreachable
	}

	return KindUnknown
}
