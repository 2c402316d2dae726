// Package subscription decodes persisted subscription records into
// pipeline plans.
package subscription

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"subforge/internal/chain"
	"subforge/internal/condition"
	"subforge/internal/dedupe"
	"subforge/internal/filter"
	"subforge/internal/logger"
	"subforge/internal/model"
	"subforge/internal/pipeline"
	"subforge/internal/rename"
)

// DecodeError names the column that could not be decoded.
type DecodeError struct {
	Subscription string
	Column       string
	Err          error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("subscription '%s': column %s: %v", e.Subscription, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Defaults are the instance-wide settings a record does not carry itself.
type Defaults struct {
	// FilterOrder applies when the record has no filter_order of its own.
	FilterOrder []string
	UniqueNames bool
}

// SplitList parses a comma-joined column: items are trimmed, empties and
// repeats dropped, order kept.
func SplitList(s string) []string {
	items := lo.Map(strings.Split(s, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	return lo.Uniq(lo.Compact(items))
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(lo.Uniq(lo.Compact(items)), ",")
}

// Decode builds the plan for sub. Empty columns leave their stage
// unconfigured.
func Decode(sub model.Subscription, def Defaults) (*pipeline.Plan, error) {
	d := decoder{name: sub.Name}
	plan := &pipeline.Plan{
		Name:    sub.Name,
		Sources: SplitList(sub.Sources),
		Filter: filter.Rules{
			Country:      filter.SetRule{Whitelist: SplitList(sub.CountryWhitelist), Blacklist: SplitList(sub.CountryBlacklist)},
			Tag:          filter.SetRule{Whitelist: SplitList(sub.TagWhitelist), Blacklist: SplitList(sub.TagBlacklist)},
			Protocol:     filter.SetRule{Whitelist: SplitList(sub.ProtocolWhitelist), Blacklist: SplitList(sub.ProtocolBlacklist)},
			DelayTimeMax: max(sub.DelayTimeMax, 0),
			MinSpeed:     max(sub.MinSpeed, 0),
		},
		Rename: rename.Options{Template: sub.NameTemplate, UniqueNames: def.UniqueNames},
		Dedup:  dedupe.Config{Mode: dedupe.ModeNone},
	}

	d.json("name_whitelist", sub.NameWhitelist, &plan.Filter.Name.Whitelist)
	d.json("name_blacklist", sub.NameBlacklist, &plan.Filter.Name.Blacklist)
	d.json("node_conditions", sub.NodeConditions, &plan.Filter.Conditions)
	d.json("dedup_config", sub.DedupConfig, &plan.Dedup)
	d.json("preprocess_rules", sub.PreprocessRules, &plan.Rename.Preprocess)
	d.json("proxy_chain", sub.ProxyChain, &plan.Chain)
	if d.err != nil {
		return nil, d.err
	}

	// Invalid conditions still decode; they simply never match.
	if err := plan.Filter.Conditions.Validate(); err != nil {
		logger.Log.Warnf("⚠️  Subscription '%s' node_conditions: %v", sub.Name, err)
	}

	order := SplitList(sub.FilterOrder)
	if len(order) == 0 {
		order = def.FilterOrder
	}
	stages, err := filter.ParseOrder(order)
	if err != nil {
		return nil, &DecodeError{Subscription: sub.Name, Column: "filter_order", Err: err}
	}
	plan.Filter.Order = stages

	if plan.Filter.Conditions.Logic == "" {
		plan.Filter.Conditions.Logic = condition.LogicAnd
	}
	if plan.Chain.Target.Kind == "" {
		plan.Chain.Target.Kind = chain.TargetAll
	}
	return plan, nil
}

type decoder struct {
	name string
	err  error
}

// json unmarshals a JSON column into dst, keeping the first error only.
func (d *decoder) json(column, raw string, dst any) {
	if d.err != nil || strings.TrimSpace(raw) == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		d.err = &DecodeError{Subscription: d.name, Column: column, Err: err}
	}
}
