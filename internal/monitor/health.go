package monitor

import "time"

// degradedAfter is the consecutive-failure count at which the enumerator is
// considered degraded rather than transiently unlucky.
const degradedAfter = 3

// enumHealth tracks consecutive enumeration failures so the loop logs status
// transitions once instead of on every failing tick. Only the loop goroutine
// touches it, so no lock is needed.
type enumHealth struct {
	failures int
	lastErr  string
	lastFail time.Time
	degraded bool
}

// recordFailure counts a failed tick and reports whether this failure
// crossed the degraded threshold.
func (h *enumHealth) recordFailure(err error) bool {
	h.failures++
	h.lastErr = err.Error()
	h.lastFail = time.Now()
	if !h.degraded && h.failures >= degradedAfter {
		h.degraded = true
		return true
	}
	return false
}

// recordSuccess resets the counters and reports whether the enumerator just
// recovered from a degraded stretch.
func (h *enumHealth) recordSuccess() bool {
	recovered := h.degraded
	h.failures = 0
	h.lastErr = ""
	h.degraded = false
	return recovered
}
