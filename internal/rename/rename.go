package rename

import (
	"strconv"

	"subforge/internal/model"
)

type Options struct {
	Template   string
	Preprocess []PreprocessRule
	// UniqueNames suffixes " 2", " 3"... onto repeated display names. The
	// first occurrence keeps its name.
	UniqueNames bool
}

// Named is a node with its derived names. Index is the 1-based position in
// the list handed to Apply.
type Named struct {
	Node        model.Node
	LinkName    string
	DisplayName string
	Index       int
}

// Apply renames nodes in order. It must run after filtering and
// deduplication so that $Index reflects the final list.
func Apply(nodes []model.Node, opts Options) []Named {
	pre := NewPreprocessor(opts.Preprocess)
	used := make(map[string]int, len(nodes))
	out := make([]Named, 0, len(nodes))
	for i, n := range nodes {
		link := pre.Apply(n.OriginalName)
		display := Render(opts.Template, NewContext(n, link, i+1))
		if opts.UniqueNames {
			display = uniquify(display, used)
		}
		out = append(out, Named{Node: n, LinkName: link, DisplayName: display, Index: i + 1})
	}
	return out
}

func uniquify(name string, used map[string]int) string {
	if _, taken := used[name]; !taken {
		used[name] = 1
		return name
	}
	for k := used[name] + 1; ; k++ {
		candidate := name + " " + strconv.Itoa(k)
		if _, taken := used[candidate]; taken {
			continue
		}
		used[name] = k
		used[candidate] = 1
		return candidate
	}
}
