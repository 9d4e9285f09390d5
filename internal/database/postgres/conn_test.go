package postgres

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type retryableErr struct{}

func (retryableErr) Error() string { return "write failed before sending" }

func (retryableErr) SafeToRetry() bool { return true }

func TestConnectionLost(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		closed bool
		want   bool
	}{
		{"syntax error", &pgconn.PgError{Code: "42601"}, false, false},
		{"unique violation", fmt.Errorf("statement 1: %w", &pgconn.PgError{Code: "23505"}), false, false},
		{"plain error", errors.New("boom"), false, false},
		{"closed connection", errors.New("boom"), true, true},
		{"terminated by admin", &pgconn.PgError{Code: "57P01"}, false, true},
		{"safe to retry", retryableErr{}, false, true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), false, true},
		{"network", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, connectionLost(tt.err, tt.closed))
		})
	}
}
