// Package chain resolves multi-hop proxy chains into synthesised proxy groups
// and per-node dialer-proxy wiring.
package chain

import (
	"fmt"
	"math/rand/v2"

	"subforge/internal/logger"
	"subforge/internal/model"
	"subforge/internal/selectors"
)

const (
	DefaultGroupType = "select"
	DefaultTestURL   = "https://www.gstatic.com/generate_204"
	DefaultInterval  = 300
)

// Candidate is a pool node together with the name it is published under.
// Conditions are evaluated on Node; wiring refers to Name.
type Candidate struct {
	Node model.Node
	Name string
}

type Options struct {
	// TemplateGroups lists the group names the output template defines. When
	// nil only non-emptiness of a template_group reference is checked.
	TemplateGroups []string
	// Rand is the per-run random source used by the "random" select mode.
	Rand *rand.Rand
}

type IdentityKind string

const (
	IdentityGroup IdentityKind = "group"
	IdentityNode  IdentityKind = "node"
)

// Identity is what a hop resolved to and what the next hop dials through.
type Identity struct {
	Kind   IdentityKind
	Name   string
	NodeID string
}

type ProxyGroup struct {
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type" yaml:"type"`
	Proxies  []string `json:"proxies" yaml:"proxies"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	Interval int      `json:"interval,omitempty" yaml:"interval,omitempty"`
}

type Resolution struct {
	Hops   []Identity
	Groups []ProxyGroup
	// DialerProxy maps a node ID to the identity name it must dial through.
	// Nodes absent from the map egress directly.
	DialerProxy map[string]string
}

func (r *Resolution) Upstream(nodeID string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.DialerProxy[nodeID]
	return v, ok
}

type resolver struct {
	pool     []Candidate
	byID     map[string]int
	names    map[string]bool
	opts     Options
	res      *Resolution
	memberOf map[string]int
}

// Resolve wires c over pool. pool is the final, renamed node list and is
// not modified. Any structural problem returns a *ResolveError and no
// resolution.
func Resolve(c Chain, pool []Candidate, opts Options) (*Resolution, error) {
	res := &Resolution{DialerProxy: make(map[string]string)}
	if len(c.Hops) == 0 {
		return res, nil
	}
	if len(c.Hops) > MaxHops {
		return nil, &ResolveError{Hop: MaxHops, Kind: ErrTooManyHops, Detail: fmt.Sprintf("%d > %d", len(c.Hops), MaxHops)}
	}

	r := &resolver{
		pool:     pool,
		byID:     make(map[string]int, len(pool)),
		names:    make(map[string]bool, len(pool)),
		opts:     opts,
		res:      res,
		memberOf: make(map[string]int),
	}
	for i, cand := range pool {
		r.byID[cand.Node.ID] = i
		r.names[cand.Name] = true
	}

	var prev *Identity
	for i, hop := range c.Hops {
		hop = hop.normalized(i)
		id, err := r.hop(i, hop, prev)
		if err != nil {
			return nil, err
		}
		res.Hops = append(res.Hops, id)
		prev = &id
		logger.Log.Debugf("chain hop %d (%s) -> %s %q", i+1, hop.Kind(), id.Kind, id.Name)
	}

	if err := r.target(c.Target, *prev); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *resolver) hop(i int, hop Hop, prev *Identity) (Identity, error) {
	switch p := hop.Payload.(type) {
	case TemplateGroup:
		return r.templateGroup(i, p)
	case CustomGroup:
		return r.customGroup(i, p, prev)
	case DynamicNode:
		return r.dynamicNode(i, p, prev)
	case SpecifiedNode:
		return r.specifiedNode(i, p, prev)
	default:
		return Identity{}, &ResolveError{Hop: i, Kind: fmt.Errorf("hop has no payload")}
	}
}

func (r *resolver) templateGroup(i int, p TemplateGroup) (Identity, error) {
	if p.GroupName == "" {
		return Identity{}, &ResolveError{Hop: i, Kind: ErrUndefinedTemplateGroup, Detail: "empty group name"}
	}
	if r.opts.TemplateGroups != nil && !contains(r.opts.TemplateGroups, p.GroupName) {
		return Identity{}, &ResolveError{Hop: i, Kind: ErrUndefinedTemplateGroup, Group: p.GroupName}
	}
	return Identity{Kind: IdentityGroup, Name: p.GroupName}, nil
}

func (r *resolver) customGroup(i int, p CustomGroup, prev *Identity) (Identity, error) {
	name := p.GroupName
	if name == "" {
		name = fmt.Sprintf("Chain-%d", i+1)
	}
	if r.names[name] || contains(r.opts.TemplateGroups, name) {
		return Identity{}, &ResolveError{Hop: i, Kind: ErrNameConflict, Group: name}
	}

	m := p.NodeConditions.Compile()
	var members []Candidate
	for _, cand := range r.pool {
		if m.Match(cand.Node) {
			members = append(members, cand)
		}
	}
	if len(members) == 0 {
		return Identity{}, &ResolveError{Hop: i, Kind: ErrEmptyHop, Group: name}
	}

	group := ProxyGroup{Name: name, Type: p.GroupType}
	if group.Type == "" {
		group.Type = DefaultGroupType
	}
	switch group.Type {
	case "url-test", "fallback", "load-balance":
		group.URL, group.Interval = p.URL, p.Interval
		if group.URL == "" {
			group.URL = DefaultTestURL
		}
		if group.Interval <= 0 {
			group.Interval = DefaultInterval
		}
	}
	for _, cand := range members {
		if err := r.claim(i, cand, prev); err != nil {
			return Identity{}, err
		}
		group.Proxies = append(group.Proxies, cand.Name)
	}
	r.res.Groups = append(r.res.Groups, group)
	r.names[name] = true
	return Identity{Kind: IdentityGroup, Name: name}, nil
}

func (r *resolver) dynamicNode(i int, p DynamicNode, prev *Identity) (Identity, error) {
	mode := p.SelectMode
	if mode == "" {
		mode = "first"
	}
	sel, err := selectors.Get(mode)
	if err != nil {
		return Identity{}, &ResolveError{Hop: i, Kind: ErrUnknownSelectMode, Detail: mode}
	}

	m := p.NodeConditions.Compile()
	var matches []model.Node
	for _, cand := range r.pool {
		if m.Match(cand.Node) {
			matches = append(matches, cand.Node)
		}
	}
	if len(matches) == 0 {
		return Identity{}, &ResolveError{Hop: i, Kind: ErrEmptyHop}
	}

	chosen := r.pool[r.byID[sel.Select(matches, r.opts.Rand).ID]]
	if err := r.claim(i, chosen, prev); err != nil {
		return Identity{}, err
	}
	return Identity{Kind: IdentityNode, Name: chosen.Name, NodeID: chosen.Node.ID}, nil
}

func (r *resolver) specifiedNode(i int, p SpecifiedNode, prev *Identity) (Identity, error) {
	idx, ok := r.byID[p.NodeID]
	if !ok || p.NodeID == "" {
		return Identity{}, &ResolveError{Hop: i, Kind: ErrDanglingNode, NodeID: p.NodeID}
	}
	cand := r.pool[idx]
	if err := r.claim(i, cand, prev); err != nil {
		return Identity{}, err
	}
	return Identity{Kind: IdentityNode, Name: cand.Name, NodeID: cand.Node.ID}, nil
}

// claim records cand as part of hop i and, past the entry hop, wires it to
// dial through prev.
func (r *resolver) claim(i int, cand Candidate, prev *Identity) error {
	if other, taken := r.memberOf[cand.Node.ID]; taken {
		return &ResolveError{Hop: i, Kind: ErrNodeReused, NodeID: cand.Node.ID, Detail: fmt.Sprintf("also in hop %d", other+1)}
	}
	r.memberOf[cand.Node.ID] = i
	if prev != nil {
		r.res.DialerProxy[cand.Node.ID] = prev.Name
	}
	return nil
}

// target wires the sink nodes to the last hop. Nodes that are themselves
// part of the chain keep the wiring the hops gave them.
func (r *resolver) target(t Target, last Identity) error {
	switch t.Kind {
	case TargetSpecifiedNode:
		idx, ok := r.byID[t.NodeID]
		if !ok || t.NodeID == "" {
			return &ResolveError{Hop: TargetHop, Kind: ErrDanglingNode, NodeID: t.NodeID}
		}
		if _, inChain := r.memberOf[t.NodeID]; inChain {
			return &ResolveError{Hop: TargetHop, Kind: ErrTargetInChain, NodeID: t.NodeID}
		}
		r.res.DialerProxy[r.pool[idx].Node.ID] = last.Name
	case TargetConditions:
		m := t.Conditions.Compile()
		for _, cand := range r.pool {
			if _, inChain := r.memberOf[cand.Node.ID]; inChain {
				continue
			}
			if m.Match(cand.Node) {
				r.res.DialerProxy[cand.Node.ID] = last.Name
			}
		}
	case TargetAll, "":
		for _, cand := range r.pool {
			if _, inChain := r.memberOf[cand.Node.ID]; inChain {
				continue
			}
			r.res.DialerProxy[cand.Node.ID] = last.Name
		}
	default:
		return &ResolveError{Hop: TargetHop, Kind: fmt.Errorf("unknown target type %q", t.Kind)}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
