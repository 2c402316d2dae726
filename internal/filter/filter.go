// Package filter narrows the node pool with ordered whitelist, blacklist and
// threshold stages.
package filter

import (
	"strings"

	"subforge/internal/logger"
	"subforge/internal/model"
	"subforge/internal/pattern"
)

// StageStat records how many nodes a stage received and kept.
type StageStat struct {
	Stage Stage
	In    int
	Out   int
}

type stage struct {
	name Stage
	keep func(n model.Node) bool
}

// Apply runs every configured stage over pool and returns the survivors in
// input order. pool is not modified.
func Apply(pool []model.Node, rules Rules) []model.Node {
	out, _ := Run(pool, rules)
	return out
}

// Run is Apply that also reports per-stage counts. Unconfigured stages are
// skipped and do not appear in the stats.
func Run(pool []model.Node, rules Rules) ([]model.Node, []StageStat) {
	order := rules.Order
	if len(order) == 0 {
		order = DefaultOrder
	}

	current := pool
	var stats []StageStat
	for _, name := range order {
		st, ok := build(name, rules)
		if !ok {
			continue
		}
		next := make([]model.Node, 0, len(current))
		for _, n := range current {
			if st.keep(n) {
				next = append(next, n)
			}
		}
		stats = append(stats, StageStat{Stage: name, In: len(current), Out: len(next)})
		current = next
	}
	if current == nil {
		current = []model.Node{}
	}
	return current, stats
}

func build(name Stage, rules Rules) (stage, bool) {
	switch name {
	case StageCountry:
		if !rules.Country.configured() {
			return stage{}, false
		}
		set := newSet(rules.Country, normalizeCountry)
		return stage{name, func(n model.Node) bool { return set.allows(normalizeCountry(n.CountryCode)) }}, true
	case StageTag:
		if !rules.Tag.configured() {
			return stage{}, false
		}
		set := newSet(rules.Tag, strings.TrimSpace)
		return stage{name, func(n model.Node) bool { return set.allowsAny(n.Tags) }}, true
	case StageProtocol:
		if !rules.Protocol.configured() {
			return stage{}, false
		}
		set := newSet(rules.Protocol, normalizeProtocol)
		return stage{name, func(n model.Node) bool { return set.allows(normalizeProtocol(string(n.Protocol))) }}, true
	case StageName:
		nm := compileNames(rules.Name)
		if !nm.configured() {
			return stage{}, false
		}
		return stage{name, nm.allows}, true
	case StageConditions:
		if rules.Conditions.IsEmpty() {
			return stage{}, false
		}
		m := rules.Conditions.Compile()
		return stage{name, m.Match}, true
	case StagePerformance:
		if rules.DelayTimeMax <= 0 && rules.MinSpeed <= 0 {
			return stage{}, false
		}
		maxDelay, minSpeed := rules.DelayTimeMax, rules.MinSpeed
		return stage{name, func(n model.Node) bool {
			if maxDelay > 0 && n.DelayMs > maxDelay {
				return false
			}
			if minSpeed > 0 && n.SpeedMBs < minSpeed {
				return false
			}
			return true
		}}, true
	}
	return stage{}, false
}

func normalizeCountry(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeProtocol(s string) string {
	return string(model.ParseProtocol(s))
}

type set struct {
	white map[string]struct{}
	black map[string]struct{}
}

func newSet(r SetRule, norm func(string) string) set {
	s := set{white: make(map[string]struct{}), black: make(map[string]struct{})}
	for _, v := range r.Whitelist {
		if v = norm(v); v != "" {
			s.white[v] = struct{}{}
		}
	}
	for _, v := range r.Blacklist {
		if v = norm(v); v != "" {
			s.black[v] = struct{}{}
		}
	}
	return s
}

func (s set) allows(v string) bool {
	if _, ok := s.black[v]; ok {
		return false
	}
	if len(s.white) == 0 {
		return true
	}
	_, ok := s.white[v]
	return ok
}

func (s set) allowsAny(values []string) bool {
	for _, v := range values {
		if _, ok := s.black[v]; ok {
			return false
		}
	}
	if len(s.white) == 0 {
		return true
	}
	for _, v := range values {
		if _, ok := s.white[v]; ok {
			return true
		}
	}
	return false
}

type nameMatcher struct {
	text  string
	regex *pattern.Regex
}

func (m nameMatcher) match(name string) bool {
	if m.regex != nil {
		return m.regex.MatchString(name)
	}
	return strings.Contains(name, m.text)
}

type compiledNames struct {
	white []nameMatcher
	black []nameMatcher
}

// compileNames drops disabled rules and inert ones (empty pattern, invalid
// regex). A whitelist made only of inert rules counts as no whitelist.
func compileNames(r NameRules) compiledNames {
	return compiledNames{white: compileNameList(r.Whitelist), black: compileNameList(r.Blacklist)}
}

func compileNameList(rules []NameRule) []nameMatcher {
	var out []nameMatcher
	for _, r := range rules {
		if !r.Enabled || r.Pattern == "" {
			continue
		}
		if r.MatchMode == MatchRegex {
			re, err := pattern.Compile(r.Pattern)
			if err != nil {
				logger.Log.Debugf("name rule ignored: %v", err)
				continue
			}
			out = append(out, nameMatcher{regex: re})
			continue
		}
		out = append(out, nameMatcher{text: r.Pattern})
	}
	return out
}

func (c compiledNames) configured() bool {
	return len(c.white) > 0 || len(c.black) > 0
}

func (c compiledNames) allows(n model.Node) bool {
	for _, m := range c.black {
		if m.match(n.OriginalName) {
			return false
		}
	}
	if len(c.white) == 0 {
		return true
	}
	for _, m := range c.white {
		if m.match(n.OriginalName) {
			return true
		}
	}
	return false
}
