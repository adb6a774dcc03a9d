package enumerate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/pipes"
)

// DefaultTool is the listing utility used when none is configured.
const DefaultTool = "pipelist"

// ErrToolNotFound reports that the external listing tool is not installed.
// Callers can distinguish this from the tool running and failing.
var ErrToolNotFound = errors.New("listing tool not found")

// columnGap splits listing rows on runs of two or more spaces or tabs, so
// pipe names containing a single space survive intact.
var columnGap = regexp.MustCompile(`[ \t]{2,}`)

// External shells out to a pipe listing tool and parses its tabular output.
// It works on any platform where the tool runs, which makes it the fallback
// when the namespace cannot be read directly.
type External struct {
	tool string
	log  *logging.Logger
}

func NewExternal(tool string, log *logging.Logger) *External {
	if tool == "" {
		tool = DefaultTool
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &External{tool: tool, log: log.Named("external")}
}

func (e *External) Name() string { return MethodExternal }

// Pipes runs the tool once and parses whatever it printed. The banner is
// suppressed so the header detection has less to skip.
func (e *External) Pipes(ctx context.Context) ([]pipes.Info, error) {
	cmd := exec.CommandContext(ctx, e.tool, "-nobanner")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, e.tool)
		}
		return nil, fmt.Errorf("run %s: %w", e.tool, err)
	}

	infos := parseListing(stdout.String())
	e.log.Debug("parsed tool output", zap.Int("pipes", len(infos)))
	return infos, nil
}

// parseListing extracts pipe rows from tool output. Everything up to and
// including the dashed header rule is ignored; after it, each non-empty line
// is a row of columns separated by 2+ whitespace: name, instances, max.
// Missing or non-numeric counts become the unknown sentinel.
func parseListing(out string) []pipes.Info {
	var infos []pipes.Info
	body := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if !body {
			if isRule(line) {
				body = true
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := columnGap.Split(strings.TrimSpace(line), -1)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		info := pipes.New(cols[0])
		if len(cols) > 1 {
			info.CurrentInstances = parseCount(cols[1])
		}
		if len(cols) > 2 {
			info.MaxInstances = parseCount(cols[2])
		}
		infos = append(infos, info)
	}
	return infos
}

// isRule matches the separator line tools print between header and rows:
// dashes, optionally broken by column gaps.
func isRule(line string) bool {
	line = strings.TrimSpace(line)
	dashes := 0
	for _, r := range line {
		switch r {
		case '-':
			dashes++
		case ' ', '\t':
		default:
			return false
		}
	}
	return dashes >= 3
}

func parseCount(col string) int64 {
	v, err := strconv.ParseInt(col, 10, 64)
	if err != nil {
		return pipes.UnknownInstances
	}
	return pipes.ClampInstances(v)
}
