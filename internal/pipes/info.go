// Package pipes defines the snapshot record for one named pipe as produced by
// the enumeration strategies and consumed by the filter, diff, and output
// layers.
package pipes

import "math"

// Prefix is the client-side namespace prefix for named pipes.
const Prefix = `\\.\pipe\`

// UnknownInstances is the sentinel for instance counts the active enumerator
// could not determine (or that the pipe reports as unlimited).
const UnknownInstances int64 = -1

// Info describes one named pipe at the moment of a single enumeration tick.
// Records are built fresh every tick, never mutated afterwards, and are
// superseded wholesale by the next tick's snapshot.
type Info struct {
	// Name is the pipe name without the namespace prefix. It is the identity
	// key used for diffing and must be non-empty; enumerators drop entries
	// with empty or unparseable names before they reach the filter stage.
	Name string `json:"name"`

	// Path is the fully qualified client path (\\.\pipe\<name>). Derived
	// from Name, not authoritative.
	Path string `json:"path"`

	// CurrentInstances and MaxInstances hold the pipe's instance counts when
	// the active enumerator can see them, UnknownInstances otherwise.
	CurrentInstances int64 `json:"currentInstances"`
	MaxInstances     int64 `json:"maxInstances"`

	// SecurityDescriptor is the SDDL form of the pipe's security descriptor.
	// Only the native enumerator fills it, and only when the per-pipe query
	// succeeds; empty is normal, not an error.
	SecurityDescriptor string `json:"securityDescriptor,omitempty"`

	// Metadata carries enumerator- or monitor-specific extras (for example
	// the resolved owner hint). The core never interprets it.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New builds a minimal Info for a bare name with both instance counts at the
// unknown sentinel.
func New(name string) Info {
	return Info{
		Name:             name,
		Path:             FullPath(name),
		CurrentInstances: UnknownInstances,
		MaxInstances:     UnknownInstances,
	}
}

// FullPath derives the client path for a pipe name.
func FullPath(name string) string {
	return Prefix + name
}

// ClampInstances maps a raw 64-bit count onto the instance-count domain.
// Counts come out of directory-record fields that are repurposed by the pipe
// file system; anything negative or beyond the signed 32-bit range is not a
// real count and collapses to UnknownInstances.
func ClampInstances(v int64) int64 {
	if v < 0 || v > math.MaxInt32 {
		return UnknownInstances
	}
	return v
}

// Clone returns a copy whose Metadata map can be mutated independently of
// the original.
func (i Info) Clone() Info {
	c := i
	if len(i.Metadata) > 0 {
		c.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// HasCounts reports whether either instance count carries a real value.
func (i Info) HasCounts() bool {
	return i.CurrentInstances != UnknownInstances || i.MaxInstances != UnknownInstances
}
