package strategies

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subforge/internal/model"
	"subforge/internal/selectors"
)

func candidates() []model.Node {
	return []model.Node{
		{ID: "a", DelayMs: 300, DelayStatus: model.StatusSuccess},
		{ID: "b", DelayMs: 90, DelayStatus: model.StatusSuccess},
		{ID: "c", DelayMs: 50, DelayStatus: model.StatusTimeout},
		{ID: "d", DelayMs: 90, DelayStatus: model.StatusSuccess},
		{ID: "e", DelayMs: 0, DelayStatus: model.StatusUntested},
	}
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{"first", "random", "fastest"} {
		s, err := selectors.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := selectors.Get("slowest")
	require.Error(t, err)
}

func TestFirst(t *testing.T) {
	assert.Equal(t, "a", (&FirstStrategy{}).Select(candidates(), nil).ID)
}

func TestFastestTieBreaksByPoolOrder(t *testing.T) {
	assert.Equal(t, "b", (&FastestStrategy{}).Select(candidates(), nil).ID)
}

func TestFastestWithoutDelayDataFallsBackToFirst(t *testing.T) {
	nodes := []model.Node{
		{ID: "x", DelayStatus: model.StatusUntested},
		{ID: "y", DelayMs: 10, DelayStatus: model.StatusError},
	}
	assert.Equal(t, "x", (&FastestStrategy{}).Select(nodes, nil).ID)
}

func TestRandomIsReproducibleForSeed(t *testing.T) {
	s := &RandomStrategy{}
	pick := func(seed uint64) []string {
		rng := rand.New(rand.NewPCG(seed, seed))
		var out []string
		for i := 0; i < 20; i++ {
			out = append(out, s.Select(candidates(), rng).ID)
		}
		return out
	}
	assert.Equal(t, pick(42), pick(42))

	seen := make(map[string]bool)
	for _, id := range pick(7) {
		seen[id] = true
	}
	assert.Greater(t, len(seen), 1)
}
