package condition

import (
	"strconv"
	"strings"

	"subforge/internal/logger"
	"subforge/internal/model"
	"subforge/internal/pattern"
)

// Matcher is a compiled Group. It holds no mutable state and is safe for
// concurrent use.
type Matcher struct {
	logic Logic
	preds []predicate
}

type predicate interface {
	match(n model.Node) bool
}

func (g Group) Compile() *Matcher {
	m := &Matcher{logic: g.Logic, preds: make([]predicate, 0, len(g.Conditions))}
	if m.logic == "" {
		m.logic = LogicAnd
	}
	for _, c := range g.Conditions {
		m.preds = append(m.preds, compile(c))
	}
	return m
}

func (m *Matcher) Match(n model.Node) bool {
	if m == nil || len(m.preds) == 0 {
		return true
	}
	switch m.logic {
	case LogicOr:
		for _, p := range m.preds {
			if p.match(n) {
				return true
			}
		}
		return false
	default:
		for _, p := range m.preds {
			if !p.match(n) {
				return false
			}
		}
		return true
	}
}

// Filter returns the nodes matching m, in input order.
func (m *Matcher) Filter(nodes []model.Node) []model.Node {
	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		if m.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

func compile(c Condition) predicate {
	class := ClassOf(c.Field)
	if !class.Allows(c.Operator) {
		logger.Log.Debugf("condition %s %s: operator not allowed, evaluates false", c.Field, c.Operator)
		return never{}
	}
	switch class {
	case ClassStatus:
		st, ok := model.ParseStatus(string(c.Value))
		if !ok {
			return never{}
		}
		return statusPredicate{field: c.Field, negate: c.Operator == OpNotEquals, value: st}
	case ClassNumeric:
		v, err := strconv.ParseFloat(strings.TrimSpace(string(c.Value)), 64)
		if err != nil {
			return never{}
		}
		return numericPredicate{field: c.Field, op: c.Operator, value: v}
	case ClassText:
		p := textPredicate{field: c.Field, op: c.Operator, value: normalizeText(c.Field, string(c.Value), c.Operator)}
		if c.Operator == OpRegex {
			re, err := pattern.Compile(string(c.Value))
			if err != nil {
				logger.Log.Debugf("condition %s: %v", c.Field, err)
				return never{}
			}
			p.re = re
		}
		return p
	}
	return never{}
}

type never struct{}

func (never) match(model.Node) bool { return false }

type statusPredicate struct {
	field  string
	negate bool
	value  model.Status
}

func (p statusPredicate) match(n model.Node) bool {
	got := n.DelayStatus
	if p.field == "speed_status" {
		got = n.SpeedStatus
	}
	if got == "" {
		got = model.StatusUntested
	}
	return (got == p.value) != p.negate
}

type numericPredicate struct {
	field string
	op    Operator
	value float64
}

func (p numericPredicate) match(n model.Node) bool {
	got := n.SpeedMBs
	if p.field == "delay_time" {
		got = float64(n.DelayMs)
	}
	switch p.op {
	case OpEquals:
		return got == p.value
	case OpNotEquals:
		return got != p.value
	case OpGreaterThan:
		return got > p.value
	case OpLessThan:
		return got < p.value
	case OpGreaterOrEqual:
		return got >= p.value
	case OpLessOrEqual:
		return got <= p.value
	}
	return false
}

type textPredicate struct {
	field string
	op    Operator
	value string
	re    *pattern.Regex
}

func (p textPredicate) match(n model.Node) bool {
	// tag is multi-valued: positive operators need one tag to match,
	// negative operators need every tag to not match.
	if p.field == "tag" {
		switch p.op {
		case OpNotEquals, OpNotContains:
			inverse := p
			inverse.op = positive(p.op)
			for _, t := range n.Tags {
				if inverse.test(t) {
					return false
				}
			}
			return true
		default:
			for _, t := range n.Tags {
				if p.test(t) {
					return true
				}
			}
			return false
		}
	}
	got, ok := n.Field(p.field)
	if !ok {
		return false
	}
	return p.test(normalizeText(p.field, got, p.op))
}

func (p textPredicate) test(s string) bool {
	switch p.op {
	case OpEquals:
		return s == p.value
	case OpNotEquals:
		return s != p.value
	case OpContains:
		return strings.Contains(s, p.value)
	case OpNotContains:
		return !strings.Contains(s, p.value)
	case OpRegex:
		return p.re.MatchString(s)
	}
	return false
}

func positive(op Operator) Operator {
	if op == OpNotEquals {
		return OpEquals
	}
	return OpContains
}

// normalizeText canonicalises enum-like fields for equality operators so that
// "vmess" matches VMess and "hk" matches HK.
func normalizeText(field, s string, op Operator) string {
	if op != OpEquals && op != OpNotEquals {
		return s
	}
	switch field {
	case "protocol", "type":
		return string(model.ParseProtocol(s))
	case "country", "country_code":
		return strings.ToUpper(strings.TrimSpace(s))
	}
	return s
}
