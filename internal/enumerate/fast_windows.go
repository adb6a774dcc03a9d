//go:build windows

package enumerate

import (
	"context"
	"fmt"
	"os"

	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/pipes"
)

// fast lists the pipe namespace like a directory. Cheapest call, names only;
// instance counts stay unknown.
type fast struct {
	log *logging.Logger
}

func newFast(log *logging.Logger) (Enumerator, error) {
	return &fast{log: log.Named("fast")}, nil
}

func (f *fast) Name() string { return MethodFast }

func (f *fast) Pipes(ctx context.Context) ([]pipes.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(pipes.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list pipe namespace: %w", err)
	}

	infos := make([]pipes.Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if name == "" {
			continue
		}
		infos = append(infos, pipes.New(name))
	}
	return infos, nil
}
