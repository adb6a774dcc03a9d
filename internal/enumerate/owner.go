package enumerate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/pipewatch/pipewatch/internal/logging"
)

// Pipe names frequently embed the creating PID (mojo.6524.1656.12345,
// crashpad_6524_...). Each run of digits is a candidate.
var digitRun = regexp.MustCompile(`[0-9]+`)

// maxCachedPIDs caps the lookup cache; PIDs recycle, so the cache is a
// throughput optimization, not a source of truth.
const maxCachedPIDs = 4096

// OwnerResolver guesses the owning process of a pipe from PID-like digit
// runs in its name. Not safe for concurrent use; the monitor calls it from
// the tick goroutine only.
type OwnerResolver struct {
	cache map[int32]string
	log   *logging.Logger
}

func NewOwnerResolver(log *logging.Logger) *OwnerResolver {
	if log == nil {
		log = logging.NewNop()
	}
	return &OwnerResolver{
		cache: make(map[int32]string),
		log:   log.Named("owner"),
	}
}

// Resolve returns "name.exe (pid N)" for the first digit run that matches a
// live process, or "" when nothing matches. Misses are cached too.
func (r *OwnerResolver) Resolve(pipe string) string {
	for _, run := range digitRun.FindAllString(pipe, -1) {
		pid, ok := parsePID(run)
		if !ok {
			continue
		}
		owner, cached := r.cache[pid]
		if !cached {
			owner = lookupProcess(pid)
			if len(r.cache) >= maxCachedPIDs {
				r.cache = make(map[int32]string)
			}
			r.cache[pid] = owner
		}
		if owner != "" {
			return owner
		}
	}
	return ""
}

func parsePID(run string) (int32, bool) {
	v, err := strconv.ParseInt(run, 10, 64)
	if err != nil || v <= 0 || v > math.MaxInt32 {
		return 0, false
	}
	return int32(v), true
}

func lookupProcess(pid int32) string {
	exists, err := process.PidExists(pid)
	if err != nil || !exists {
		return ""
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return ""
	}
	name, err := proc.Name()
	if err != nil || name == "" {
		return ""
	}
	return fmt.Sprintf("%s (pid %d)", name, pid)
}
