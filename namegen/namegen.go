package namegen

import (
	"fmt"
	"sync"

	vendor "github.com/anandvarma/namegen"
)

var (
	mu  sync.Mutex
	gen = vendor.New()
)

type ID string

// Get returns a random human-readable name. Names are not guaranteed to be
// unique; use them for display, never for exclusivity.
func Get() ID {
	mu.Lock()
	defer mu.Unlock()
	return ID(gen.Get())
}

// Prefixed scopes id by prefix, e.g. "jeeves-brave-otter".
func (id ID) Prefixed(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, id)
}

func (id ID) String() string {
	return string(id)
}
