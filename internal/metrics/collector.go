package metrics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"subforge/internal/chain"
	"subforge/internal/pipeline"
)

type Collector struct {
	mu sync.Mutex

	durations []time.Duration

	builds    int
	poolIn    int
	published int
	groups    int

	// nodes dropped per filter stage, summed over builds
	dropped map[string]int
	deduped int

	errorCounts map[string]int
	totalErrors int
}

func New() *Collector {
	return &Collector{
		dropped:     make(map[string]int),
		errorCounts: make(map[string]int),
	}
}

func (c *Collector) RecordBuild(res *pipeline.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.builds++
	c.durations = append(c.durations, res.Stats.Duration)
	c.poolIn += res.Stats.Pool
	c.published += len(res.Nodes)
	c.groups += res.Stats.Groups
	c.deduped += res.Stats.Filtered - res.Stats.Deduped
	for _, st := range res.Stats.Filters {
		c.dropped[string(st.Stage)] += st.In - st.Out
	}
}

func (c *Collector) RecordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalErrors++
	c.errorCounts[Classify(err)]++
}

// Classify buckets a build error for the report.
func Classify(err error) string {
	switch {
	case errors.Is(err, chain.ErrDanglingNode):
		return "Chain: dangling node"
	case errors.Is(err, chain.ErrEmptyHop):
		return "Chain: empty hop"
	case errors.Is(err, chain.ErrUndefinedTemplateGroup):
		return "Chain: undefined template group"
	case errors.Is(err, chain.ErrTooManyHops):
		return "Chain: too many hops"
	case errors.Is(err, chain.ErrNodeReused):
		return "Chain: node reused"
	case errors.Is(err, chain.ErrTargetInChain):
		return "Chain: target inside chain"
	case errors.Is(err, chain.ErrNameConflict):
		return "Chain: group name conflict"
	case errors.Is(err, chain.ErrUnknownSelectMode):
		return "Chain: unknown select mode"
	}
	var re *chain.ResolveError
	if errors.As(err, &re) {
		return "Chain: other"
	}
	return "Config / Storage"
}

func (c *Collector) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

func (c *Collector) Failures() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.errorCounts))
	for k, v := range c.errorCounts {
		out[k] = v
	}
	return out
}

func (c *Collector) PrintReport(out io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(out, "\n📊 \033[1mBUILD REPORT\033[0m")
	fmt.Fprintln(out, "────────────────────────────────────────")

	fmt.Fprintln(w, "\033[1;36m[ THROUGHPUT ]\033[0m")
	fmt.Fprintf(w, "  Subscriptions Built:\t%d\n", c.builds)
	if len(c.durations) > 0 {
		sorted := append([]time.Duration(nil), c.durations...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		fmt.Fprintf(w, "  Avg Duration:\t%v\n", average(sorted))
		fmt.Fprintf(w, "  Slowest:\t%v\n", sorted[len(sorted)-1])
	}
	fmt.Fprintf(w, "  Nodes In / Published:\t%d / %d\n", c.poolIn, c.published)
	fmt.Fprintf(w, "  Chain Groups:\t%d\n", c.groups)
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "\033[1;36m[ DROPPED NODES ]\033[0m")
	stages := make([]string, 0, len(c.dropped))
	for k := range c.dropped {
		stages = append(stages, k)
	}
	sort.Strings(stages)
	for _, k := range stages {
		fmt.Fprintf(w, "  Filter %s:\t%d\n", k, c.dropped[k])
	}
	fmt.Fprintf(w, "  Duplicates:\t%d\n", c.deduped)
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "\033[1;36m[ FAILURES ]\033[0m")
	fmt.Fprintf(w, "  Total Failures:\t%d\n", c.totalErrors)
	kinds := make([]string, 0, len(c.errorCounts))
	for k := range c.errorCounts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s:\t%d\n", k, c.errorCounts[k])
	}
	if c.totalErrors > 0 {
		fmt.Fprintln(w, "  ⚠️  Failed subscriptions were not published.")
	} else {
		fmt.Fprintln(w, "  ✅ All subscriptions built cleanly.")
	}

	w.Flush()
	fmt.Fprintln(out, "")
}

func average(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return time.Duration(int64(sum) / int64(len(d)))
}
