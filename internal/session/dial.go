package session

import (
	"context"
	"net"
	"time"
)

// Dialer opens a client connection to a named pipe path. The monitor injects
// the platform dialer; tests inject fakes.
type Dialer interface {
	Dial(ctx context.Context, path string, timeout time.Duration) (net.Conn, error)
}
