package strategies

import (
	"math/rand/v2"

	"subforge/internal/model"
	"subforge/internal/selectors"
)

type FastestStrategy struct{}

func (s *FastestStrategy) Name() string {
	return "fastest"
}

// Select returns the candidate with the lowest measured delay, earliest in
// pool order on ties. When no candidate has a usable measurement it behaves
// like "first".
func (s *FastestStrategy) Select(candidates []model.Node, _ *rand.Rand) model.Node {
	best := -1
	for i, n := range candidates {
		if !hasDelay(n) {
			continue
		}
		if best < 0 || n.DelayMs < candidates[best].DelayMs {
			best = i
		}
	}
	if best < 0 {
		return candidates[0]
	}
	return candidates[best]
}

func hasDelay(n model.Node) bool {
	if n.DelayMs <= 0 {
		return false
	}
	return n.DelayStatus != model.StatusTimeout && n.DelayStatus != model.StatusError
}

func init() {
	selectors.Register("fastest", func() selectors.Selector { return &FastestStrategy{} })
}
