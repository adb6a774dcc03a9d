//go:build windows

package session

import (
	"context"
	"net"
	"time"

	"gopkg.in/natefinch/npipe.v2"
)

// PipeDialer connects to named pipes through the OS client API.
type PipeDialer struct{}

// Dial wraps the timed pipe connect so cancellation during the wait is
// honored. If the connect completes after cancellation the late handle is
// closed rather than leaked.
func (PipeDialer) Dial(ctx context.Context, path string, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn *npipe.PipeConn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := npipe.DialTimeout(path, timeout)
		ch <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.conn, nil
	}
}
