package montage

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/dudk/montage/log"
)

// FactoryFunc creates a node for the resource part of a uri.
type FactoryFunc func(resource string) (Node, error)

var registry = struct {
	sync.RWMutex
	m map[string]FactoryFunc
}{
	m: make(map[string]FactoryFunc),
}

// Register a node type, identified by its tag. Nodes for uris of the form
// "tag:resource" are created with the given function.
func Register(tag string, fn FactoryFunc) {
	registry.Lock()
	defer registry.Unlock()
	registry.m[tag] = fn
}

// Factories returns registered tags in sorted order.
func Factories() []string {
	registry.RLock()
	defer registry.RUnlock()
	tags := make([]string, 0, len(registry.m))
	for t := range registry.m {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Open creates the node for uri. Filters are returned unconnected, so
// initialization is left to the caller.
func Open(uri string) (Node, error) {
	parts := strings.SplitN(uri, ":", 2)
	tag, resource := parts[0], ""
	if len(parts) == 2 {
		resource = parts[1]
	}

	registry.RLock()
	fn, ok := registry.m[tag]
	registry.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFactory, "node type '%s'", tag)
	}
	n, err := fn(resource)
	if err != nil {
		return nil, errors.Wrapf(err, "create '%s'", uri)
	}
	return n, nil
}

// Create is Open that logs failures and returns nil instead.
func Create(uri string) Node {
	n, err := Open(uri)
	if err != nil {
		log.GetLogger().WithField("uri", uri).Warn(err)
		return nil
	}
	return n
}
