package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"subforge/internal/condition"
)

type Stage string

const (
	StageCountry     Stage = "country"
	StageTag         Stage = "tag"
	StageProtocol    Stage = "protocol"
	StageName        Stage = "name"
	StageConditions  Stage = "conditions"
	StagePerformance Stage = "performance"
)

// DefaultOrder mirrors the order the rule editor presents the filters in.
var DefaultOrder = []Stage{StageCountry, StageTag, StageProtocol, StageName, StageConditions, StagePerformance}

// ParseOrder turns a configured stage list into a full order. Listed stages
// run first, in the given order; stages not listed follow in DefaultOrder.
func ParseOrder(names []string) ([]Stage, error) {
	seen := make(map[Stage]bool, len(DefaultOrder))
	order := make([]Stage, 0, len(DefaultOrder))
	for _, name := range names {
		st := Stage(strings.ToLower(strings.TrimSpace(name)))
		if st == "" {
			continue
		}
		if !st.valid() {
			return nil, fmt.Errorf("unknown filter stage %q", name)
		}
		if seen[st] {
			return nil, fmt.Errorf("filter stage %q listed twice", name)
		}
		seen[st] = true
		order = append(order, st)
	}
	for _, st := range DefaultOrder {
		if !seen[st] {
			order = append(order, st)
		}
	}
	return order, nil
}

func (s Stage) valid() bool {
	for _, st := range DefaultOrder {
		if s == st {
			return true
		}
	}
	return false
}

// SetRule is a whitelist/blacklist over a single-valued or set-valued
// attribute. Blacklist always wins.
type SetRule struct {
	Whitelist []string
	Blacklist []string
}

func (r SetRule) configured() bool {
	return len(r.Whitelist) > 0 || len(r.Blacklist) > 0
}

type MatchMode string

const (
	MatchText  MatchMode = "text"
	MatchRegex MatchMode = "regex"
)

type NameRule struct {
	MatchMode MatchMode `json:"matchMode"`
	Pattern   string    `json:"pattern"`
	Enabled   bool      `json:"enabled"`
}

// UnmarshalJSON defaults Enabled to true and MatchMode to text, matching
// rules saved before those fields existed.
func (r *NameRule) UnmarshalJSON(data []byte) error {
	type plain NameRule
	p := plain{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch MatchMode(strings.ToLower(string(p.MatchMode))) {
	case "", MatchText:
		p.MatchMode = MatchText
	case MatchRegex:
		p.MatchMode = MatchRegex
	default:
		return fmt.Errorf("unknown name rule match mode %q", p.MatchMode)
	}
	*r = NameRule(p)
	return nil
}

type NameRules struct {
	Whitelist []NameRule
	Blacklist []NameRule
}

type Rules struct {
	Country  SetRule
	Tag      SetRule
	Protocol SetRule
	Name     NameRules

	// Conditions is an additional condition tree every node must satisfy.
	Conditions condition.Group

	// DelayTimeMax in milliseconds; 0 disables the check.
	DelayTimeMax int
	// MinSpeed in MB/s; 0 disables the check.
	MinSpeed float64

	// Order overrides DefaultOrder when non-empty.
	Order []Stage
}
