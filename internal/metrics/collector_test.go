package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"subforge/internal/chain"
	"subforge/internal/filter"
	"subforge/internal/pipeline"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, "Chain: empty hop", Classify(&chain.ResolveError{Hop: 1, Kind: chain.ErrEmptyHop}))
	assert.Equal(t, "Chain: dangling node", Classify(fmt.Errorf("build: %w", &chain.ResolveError{Hop: chain.TargetHop, Kind: chain.ErrDanglingNode})))
	assert.Equal(t, "Chain: other", Classify(&chain.ResolveError{Kind: errors.New("odd")}))
	assert.Equal(t, "Config / Storage", Classify(errors.New("disk full")))
}

func TestReport(t *testing.T) {
	c := New()
	c.RecordBuild(&pipeline.Result{
		Nodes: make([]pipeline.Output, 3),
		Stats: pipeline.Stats{
			Pool:     10,
			Filters:  []filter.StageStat{{Stage: filter.StageCountry, In: 10, Out: 6}},
			Filtered: 6,
			Deduped:  3,
			Groups:   1,
			Duration: 2 * time.Millisecond,
		},
	})
	c.RecordFailure(&chain.ResolveError{Hop: 0, Kind: chain.ErrTooManyHops})

	assert.Equal(t, 1, c.Builds())
	assert.Equal(t, map[string]int{"Chain: too many hops": 1}, c.Failures())

	var buf bytes.Buffer
	c.PrintReport(&buf)
	out := buf.String()
	assert.Contains(t, out, "BUILD REPORT")
	assert.Contains(t, out, "10 / 3")
	assert.Contains(t, out, "Filter country:")
	assert.Contains(t, out, "Chain: too many hops:")
	assert.Contains(t, out, "not published")
}
