package strategies

import (
	"math/rand/v2"

	"subforge/internal/model"
	"subforge/internal/selectors"
)

type RandomStrategy struct{}

func (s *RandomStrategy) Name() string {
	return "random"
}

// Select draws uniformly from candidates. A nil rng yields the first one.
func (s *RandomStrategy) Select(candidates []model.Node, rng *rand.Rand) model.Node {
	if rng == nil {
		return candidates[0]
	}
	return candidates[rng.IntN(len(candidates))]
}

func init() {
	selectors.Register("random", func() selectors.Selector { return &RandomStrategy{} })
}
