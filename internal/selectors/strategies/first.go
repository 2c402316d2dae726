package strategies

import (
	"math/rand/v2"

	"subforge/internal/model"
	"subforge/internal/selectors"
)

type FirstStrategy struct{}

func (s *FirstStrategy) Name() string {
	return "first"
}

func (s *FirstStrategy) Select(candidates []model.Node, _ *rand.Rand) model.Node {
	return candidates[0]
}

func init() {
	selectors.Register("first", func() selectors.Selector { return &FirstStrategy{} })
}
