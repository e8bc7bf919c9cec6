// Package label hands out exclusivity labels. A label binds exactly one
// worker to exactly one queued job, so two labels handed out by the same
// process never compare equal.
package label

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

const DefaultPrefix = "jeeves"

// NewRandom returns the random part of a label. Tests replace it to get
// predictable labels.
var NewRandom = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

type Allocator struct {
	prefix string
	seq    atomic.Uint64
}

func NewAllocator(prefix string) *Allocator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Allocator{prefix: prefix}
}

func (a *Allocator) Prefix() string {
	return a.prefix
}

// Allocate returns a label of the form <prefix>-<seq>-<random>. The sequence
// number alone keeps labels distinct within the process, the random suffix
// keeps them apart across restarts.
func (a *Allocator) Allocate() string {
	return fmt.Sprintf("%s-%d-%s", a.prefix, a.seq.Add(1), NewRandom())
}
