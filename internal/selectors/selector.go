package selectors

import (
	"fmt"
	"math/rand/v2"

	"subforge/internal/model"
)

// Selector picks the node a dynamic chain hop resolves to.
type Selector interface {
	// Name returns the select mode identifier
	Name() string

	// Select chooses one of candidates, which is never empty and is in pool
	// order. rng belongs to the current pipeline run and must be the only
	// source of randomness.
	Select(candidates []model.Node, rng *rand.Rand) model.Node
}

type Factory func() Selector

var registry = make(map[string]Factory)

// Register is meant to be called from init functions only.
func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string) (Selector, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("select mode '%s' not found", name)
	}
	return factory(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
