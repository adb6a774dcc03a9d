// Package enumerate lists the pipes present in the \\.\pipe\ namespace.
// Three interchangeable strategies exist: a fast directory listing, a native
// NT query that also reports instance counts, and an external listing tool
// whose output is parsed. The monitor only sees the Enumerator interface.
package enumerate

import (
	"context"
	"fmt"

	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/pipes"
)

// Method names accepted by New.
const (
	MethodFast     = "fast"
	MethodNative   = "native"
	MethodExternal = "external"
)

// Enumerator produces one snapshot of the pipe namespace per call. A failed
// call stands for "this tick produced no usable snapshot"; implementations
// never return a partial listing alongside an error.
type Enumerator interface {
	// Name identifies the strategy for logs and diagnostics.
	Name() string

	// Pipes lists the namespace. Order is not significant and duplicates
	// may occur; the filter layer dedupes.
	Pipes(ctx context.Context) ([]pipes.Info, error)
}

// New selects a strategy by method name. An empty method means fast. The
// fast and native strategies are only available on Windows; selecting them
// elsewhere fails at construction, not at first use.
func New(method, tool string, log *logging.Logger) (Enumerator, error) {
	if log == nil {
		log = logging.NewNop()
	}
	switch method {
	case "", MethodFast:
		return newFast(log)
	case MethodNative:
		return newNative(log)
	case MethodExternal:
		return NewExternal(tool, log), nil
	default:
		return nil, fmt.Errorf("unknown enumeration method %q (want %s, %s or %s)", method, MethodFast, MethodNative, MethodExternal)
	}
}
