// Package dataset reads the YAML files the import command loads into the
// node pool.
package dataset

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"subforge/internal/model"
)

type Dataset struct {
	Nodes         []model.Node         `yaml:"nodes"`
	Subscriptions []model.Subscription `yaml:"subscriptions"`
}

// CountryLookup resolves a server address to an ISO country code.
type CountryLookup func(host string) (string, bool)

func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset yaml: %w", err)
	}
	for i, sub := range ds.Subscriptions {
		if strings.TrimSpace(sub.Name) == "" {
			return nil, fmt.Errorf("subscription %d has no name", i+1)
		}
	}
	return &ds, nil
}

// Prepare normalises the nodes for storage: ids are generated where
// missing, protocols and statuses canonicalised, and Sort assigned from
// firstSort in file order. lookup may be nil.
func (ds *Dataset) Prepare(firstSort int, lookup CountryLookup) ([]model.Node, error) {
	out := make([]model.Node, 0, len(ds.Nodes))
	seen := make(map[string]bool, len(ds.Nodes))
	for i, n := range ds.Nodes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("node %d: duplicate id '%s'", i+1, n.ID)
		}
		seen[n.ID] = true

		if n.OriginalName == "" {
			n.OriginalName = n.Name
		}
		n.Protocol = model.ParseProtocol(string(n.Protocol))
		n.CountryCode = strings.ToUpper(strings.TrimSpace(n.CountryCode))
		if n.CountryCode == "" && lookup != nil {
			if code, ok := lookup(n.Server); ok {
				n.CountryCode = code
			}
		}

		var ok bool
		if n.DelayStatus, ok = model.ParseStatus(string(n.DelayStatus)); !ok {
			return nil, fmt.Errorf("node '%s': invalid delay_status", n.ID)
		}
		if n.SpeedStatus, ok = model.ParseStatus(string(n.SpeedStatus)); !ok {
			return nil, fmt.Errorf("node '%s': invalid speed_status", n.ID)
		}

		n.Sort = firstSort + i
		out = append(out, n)
	}
	return out, nil
}
