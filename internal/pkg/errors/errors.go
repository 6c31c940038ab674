package errors

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoEmbedding is returned when the embedding backend yields no vector for an input.
	ErrNoEmbedding = errors.New("no embedding returned")
)

// Postgres SQLSTATEs worth retrying on a later run.
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57P01": true, // admin_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// IsTransient reports whether err looks like a store-level hiccup (connection loss,
// lock contention, timeouts) rather than a data or programming fault.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientPgCodes[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08")
	}
	if pgconn.Timeout(err) {
		return true
	}
	if neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Kind labels err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsTransient(err):
		return "transient"
	default:
		return "fatal"
	}
}
