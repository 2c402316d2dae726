package publishers

import (
	"context"
	"fmt"
	"sort"
)

// Publisher hands a built subscription to an external destination. config
// holds the publisher's params; keys starting with '_' are set by the
// caller, not the user.
type Publisher interface {
	Publish(ctx context.Context, doc *Document, config map[string]interface{}) error
}

type Factory func() Publisher

var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string) (Publisher, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("publisher plugin '%s' not found", name)
	}
	return factory(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
