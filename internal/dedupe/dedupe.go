// Package dedupe collapses nodes that share a configurable key.
package dedupe

import (
	"encoding/json"
	"fmt"
	"strings"

	"subforge/internal/model"
)

type Mode string

const (
	ModeNone     Mode = "none"
	ModeCommon   Mode = "common"
	ModeProtocol Mode = "protocol"
)

type Config struct {
	Mode          Mode                `json:"mode"`
	CommonFields  []string            `json:"commonFields"`
	ProtocolRules map[string][]string `json:"protocolRules"`
}

func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch Mode(strings.ToLower(string(p.Mode))) {
	case "", ModeNone:
		p.Mode = ModeNone
	case ModeCommon:
		p.Mode = ModeCommon
	case ModeProtocol:
		p.Mode = ModeProtocol
	default:
		return fmt.Errorf("unknown dedup mode %q", p.Mode)
	}
	*c = Config(p)
	return nil
}

// Dedupe keeps the first node per key and drops later duplicates. Survivors
// keep their relative order. nodes is not modified.
func Dedupe(nodes []model.Node, cfg Config) []model.Node {
	switch cfg.Mode {
	case ModeCommon:
		if len(cfg.CommonFields) == 0 {
			return clone(nodes)
		}
		return dedupeBy(nodes, func(n model.Node) (string, bool) {
			return Key(n, cfg.CommonFields), true
		})
	case ModeProtocol:
		rules := make(map[model.Protocol][]string, len(cfg.ProtocolRules))
		for proto, fields := range cfg.ProtocolRules {
			if len(fields) > 0 {
				rules[model.ParseProtocol(proto)] = fields
			}
		}
		if len(rules) == 0 {
			return clone(nodes)
		}
		return dedupeBy(nodes, func(n model.Node) (string, bool) {
			proto := model.ParseProtocol(string(n.Protocol))
			fields, ok := rules[proto]
			if !ok {
				return "", false
			}
			// each protocol is its own key space
			return string(proto) + "\x00" + Key(n, fields), true
		})
	default:
		return clone(nodes)
	}
}

// dedupeBy applies first-wins per key. Nodes without a key pass through.
func dedupeBy(nodes []model.Node, key func(model.Node) (string, bool)) []model.Node {
	seen := make(map[string]struct{}, len(nodes))
	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		k, ok := key(n)
		if !ok {
			out = append(out, n)
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Key builds the composite dedup key from the named fields. A missing value
// contributes an empty string; field names are part of the key so an empty
// value never lines up with a different field.
func Key(n model.Node, fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(f)
		b.WriteByte('=')
		v, _ := n.Field(f)
		b.WriteString(v)
	}
	return b.String()
}

func clone(nodes []model.Node) []model.Node {
	out := make([]model.Node, len(nodes))
	copy(out, nodes)
	return out
}
