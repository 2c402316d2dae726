// Package rename turns upstream node names into display names: a preprocess
// pass over the raw name, then template rendering.
package rename

import (
	"encoding/json"
	"fmt"
	"strings"

	"subforge/internal/logger"
	"subforge/internal/pattern"
)

type MatchMode string

const (
	MatchText  MatchMode = "text"
	MatchRegex MatchMode = "regex"
)

type PreprocessRule struct {
	MatchMode   MatchMode `json:"matchMode"`
	Pattern     string    `json:"pattern"`
	Replacement string    `json:"replacement"`
	Enabled     bool      `json:"enabled"`
}

func (r *PreprocessRule) UnmarshalJSON(data []byte) error {
	type plain PreprocessRule
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
		return fmt.Errorf("unknown preprocess match mode %q", p.MatchMode)
	}
	*r = PreprocessRule(p)
	return nil
}

// Preprocessor is a compiled rule list, safe for concurrent use.
type Preprocessor struct {
	steps []func(string) string
}

func NewPreprocessor(rules []PreprocessRule) *Preprocessor {
	p := &Preprocessor{}
	for _, r := range rules {
		if !r.Enabled || r.Pattern == "" {
			continue
		}
		switch r.MatchMode {
		case MatchRegex:
			re, err := pattern.Compile(r.Pattern)
			if err != nil {
				logger.Log.Debugf("preprocess rule skipped: %v", err)
				continue
			}
			repl := r.Replacement
			p.steps = append(p.steps, func(s string) string {
				out, _ := re.ReplaceAll(s, repl)
				return out
			})
		default:
			old, repl := r.Pattern, r.Replacement
			p.steps = append(p.steps, func(s string) string {
				return strings.ReplaceAll(s, old, repl)
			})
		}
	}
	return p
}

func (p *Preprocessor) Apply(name string) string {
	if p == nil {
		return name
	}
	for _, step := range p.steps {
		name = step(name)
	}
	return name
}

// Preprocess applies the enabled rules to name in order.
func Preprocess(name string, rules []PreprocessRule) string {
	return NewPreprocessor(rules).Apply(name)
}
