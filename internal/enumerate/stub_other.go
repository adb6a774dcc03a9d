//go:build !windows

package enumerate

import (
	"fmt"
	"runtime"

	"github.com/pipewatch/pipewatch/internal/logging"
)

// The fast and native strategies read the \\.\pipe\ namespace directly and
// exist only on Windows. The external strategy still works anywhere the
// listing tool runs.

func newFast(*logging.Logger) (Enumerator, error) {
	return nil, fmt.Errorf("fast enumeration requires windows, running on %s", runtime.GOOS)
}

func newNative(*logging.Logger) (Enumerator, error) {
	return nil, fmt.Errorf("native enumeration requires windows, running on %s", runtime.GOOS)
}
