// Package pipeline runs a subscription's plan over a node pool: filtering,
// deduplication, renaming and chain wiring, in that order.
package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"subforge/internal/chain"
	"subforge/internal/dedupe"
	"subforge/internal/filter"
	"subforge/internal/logger"
	"subforge/internal/model"
	"subforge/internal/rename"
)

// Plan is everything a subscription asks of the pipeline.
type Plan struct {
	Name string
	// Sources restricts the pool to nodes from these sources. Empty means
	// every node.
	Sources []string
	Filter  filter.Rules
	Dedup   dedupe.Config
	Rename  rename.Options
	Chain   chain.Chain
}

type Options struct {
	TemplateGroups []string
	// Rand drives random selection. When nil a source seeded with Seed is
	// created for the run.
	Rand *rand.Rand
	Seed uint64
}

// Output is a published node.
type Output struct {
	Node        model.Node `json:"-" yaml:"-"`
	LinkName    string     `json:"linkName" yaml:"link_name"`
	DisplayName string     `json:"name" yaml:"name"`
	Index       int        `json:"index" yaml:"index"`
	DialerProxy string     `json:"dialerProxy,omitempty" yaml:"dialer-proxy,omitempty"`
}

type Stats struct {
	Pool     int
	Filters  []filter.StageStat
	Filtered int
	Deduped  int
	Groups   int
	Duration time.Duration
}

type Result struct {
	Plan   string
	Nodes  []Output
	Groups []chain.ProxyGroup
	Stats  Stats
}

// Run executes plan over pool. pool is never modified. When the chain cannot
// be resolved Run still returns the renamed nodes, without any wiring,
// together with the *chain.ResolveError.
func Run(ctx context.Context, pool []model.Node, plan Plan, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{Plan: plan.Name, Nodes: []Output{}}
	res.Stats.Pool = len(pool)

	nodes := pool
	if len(plan.Sources) > 0 {
		nodes = bySource(pool, plan.Sources)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, res.Stats.Filters = filter.Run(nodes, plan.Filter)
	res.Stats.Filtered = len(nodes)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes = dedupe.Dedupe(nodes, plan.Dedup)
	res.Stats.Deduped = len(nodes)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	named := rename.Apply(nodes, plan.Rename)
	candidates := make([]chain.Candidate, len(named))
	for i, nn := range named {
		res.Nodes = append(res.Nodes, Output{Node: nn.Node, LinkName: nn.LinkName, DisplayName: nn.DisplayName, Index: nn.Index})
		candidates[i] = chain.Candidate{Node: nn.Node, Name: nn.DisplayName}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	}
	wiring, err := chain.Resolve(plan.Chain, candidates, chain.Options{TemplateGroups: opts.TemplateGroups, Rand: rng})
	res.Stats.Duration = time.Since(start)
	if err != nil {
		var re *chain.ResolveError
		if errors.As(err, &re) {
			logger.Log.Warnf("⚠️  Chain for '%s' not applied: %v", plan.Name, err)
		}
		return res, err
	}

	for i := range res.Nodes {
		if up, ok := wiring.Upstream(res.Nodes[i].Node.ID); ok {
			res.Nodes[i].DialerProxy = up
		}
	}
	res.Groups = wiring.Groups
	res.Stats.Groups = len(wiring.Groups)

	logger.Log.Debugf("Pipeline '%s': %d -> %d filtered -> %d unique, %d chain groups",
		plan.Name, res.Stats.Pool, res.Stats.Filtered, res.Stats.Deduped, res.Stats.Groups)
	return res, nil
}

func bySource(pool []model.Node, sources []string) []model.Node {
	allowed := make(map[string]bool, len(sources))
	for _, s := range sources {
		allowed[s] = true
	}
	out := make([]model.Node, 0, len(pool))
	for _, n := range pool {
		if allowed[n.Source] {
			out = append(out, n)
		}
	}
	return out
}
