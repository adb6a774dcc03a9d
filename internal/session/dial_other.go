//go:build !windows

package session

import (
	"context"
	"errors"
	"net"
	"time"
)

// PipeDialer connects to named pipes through the OS client API. Only the
// windows build can actually dial; this stub keeps the package portable so
// the engine and its tests build everywhere.
type PipeDialer struct{}

func (PipeDialer) Dial(context.Context, string, time.Duration) (net.Conn, error) {
	return nil, errors.New("named pipe dialing requires windows")
}
