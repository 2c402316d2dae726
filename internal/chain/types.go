package chain

import (
	"encoding/json"
	"fmt"
	"strings"

	"subforge/internal/condition"
)

// MaxHops is the longest chain the editor can build.
const MaxHops = 4

type HopKind string

const (
	KindTemplateGroup HopKind = "template_group"
	KindCustomGroup   HopKind = "custom_group"
	KindDynamicNode   HopKind = "dynamic_node"
	KindSpecifiedNode HopKind = "specified_node"
)

// Payload is implemented by exactly the four hop kinds below.
type Payload interface {
	Kind() HopKind
	sealed()
}

// TemplateGroup references a group defined by the output template. Only the
// entry hop may be one.
type TemplateGroup struct {
	GroupName string
}

// CustomGroup synthesises a proxy group from the nodes matching
// NodeConditions.
type CustomGroup struct {
	GroupName      string
	GroupType      string
	NodeConditions condition.Group
	URL            string
	Interval       int
}

// DynamicNode resolves to a single node picked among the matches.
type DynamicNode struct {
	NodeConditions condition.Group
	SelectMode     string
}

type SpecifiedNode struct {
	NodeID string
}

func (TemplateGroup) Kind() HopKind { return KindTemplateGroup }
func (CustomGroup) Kind() HopKind   { return KindCustomGroup }
func (DynamicNode) Kind() HopKind   { return KindDynamicNode }
func (SpecifiedNode) Kind() HopKind { return KindSpecifiedNode }

func (TemplateGroup) sealed() {}
func (CustomGroup) sealed()   {}
func (DynamicNode) sealed()   {}
func (SpecifiedNode) sealed() {}

// Hop is one stage of a chain. Position is editor canvas data; it is kept
// and written back but never read.
type Hop struct {
	Payload  Payload
	Position json.RawMessage

	wire *hopWire
}

func (h Hop) Kind() HopKind {
	if h.Payload == nil {
		return ""
	}
	return h.Payload.Kind()
}

type hopWire struct {
	Type           HopKind          `json:"type"`
	GroupName      string           `json:"groupName,omitempty"`
	GroupType      string           `json:"groupType,omitempty"`
	NodeConditions *condition.Group `json:"nodeConditions,omitempty"`
	SelectMode     string           `json:"selectMode,omitempty"`
	NodeID         string           `json:"nodeId,omitempty"`
	URL            string           `json:"url,omitempty"`
	Interval       int              `json:"interval,omitempty"`
	Position       json.RawMessage  `json:"position,omitempty"`
}

func (w hopWire) conditions() condition.Group {
	if w.NodeConditions == nil {
		return condition.Group{Logic: condition.LogicAnd}
	}
	return *w.NodeConditions
}

func (w hopWire) payload(kind HopKind) (Payload, error) {
	switch kind {
	case KindTemplateGroup:
		return TemplateGroup{GroupName: w.GroupName}, nil
	case KindCustomGroup:
		return CustomGroup{
			GroupName:      w.GroupName,
			GroupType:      w.GroupType,
			NodeConditions: w.conditions(),
			URL:            w.URL,
			Interval:       w.Interval,
		}, nil
	case KindDynamicNode:
		return DynamicNode{NodeConditions: w.conditions(), SelectMode: w.SelectMode}, nil
	case KindSpecifiedNode:
		return SpecifiedNode{NodeID: w.NodeID}, nil
	}
	return nil, fmt.Errorf("unknown hop type %q", kind)
}

func (h *Hop) UnmarshalJSON(data []byte) error {
	var w hopWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	w.Type = HopKind(strings.ToLower(string(w.Type)))
	p, err := w.payload(w.Type)
	if err != nil {
		return err
	}
	*h = Hop{Payload: p, Position: w.Position, wire: &w}
	return nil
}

func (h Hop) MarshalJSON() ([]byte, error) {
	w := hopWire{Type: h.Kind(), Position: h.Position}
	switch p := h.Payload.(type) {
	case TemplateGroup:
		w.GroupName = p.GroupName
	case CustomGroup:
		w.GroupName, w.GroupType, w.URL, w.Interval = p.GroupName, p.GroupType, p.URL, p.Interval
		g := p.NodeConditions
		w.NodeConditions = &g
	case DynamicNode:
		w.SelectMode = p.SelectMode
		g := p.NodeConditions
		w.NodeConditions = &g
	case SpecifiedNode:
		w.NodeID = p.NodeID
	case nil:
		return nil, fmt.Errorf("hop has no payload")
	}
	return json.Marshal(w)
}

// normalized returns h as it must be treated at position index: a template
// group past the entry becomes a custom group built from the same fields.
func (h Hop) normalized(index int) Hop {
	tg, ok := h.Payload.(TemplateGroup)
	if !ok || index == 0 {
		return h
	}
	if h.wire != nil {
		p, _ := h.wire.payload(KindCustomGroup)
		h.Payload = p
		return h
	}
	h.Payload = CustomGroup{GroupName: tg.GroupName, NodeConditions: condition.Group{Logic: condition.LogicAnd}}
	return h
}

type TargetKind string

const (
	TargetAll           TargetKind = "all"
	TargetSpecifiedNode TargetKind = "specified_node"
	TargetConditions    TargetKind = "conditions"
)

// Target selects the nodes that egress through the last hop.
type Target struct {
	Kind       TargetKind      `json:"type"`
	NodeID     string          `json:"nodeId,omitempty"`
	Conditions condition.Group `json:"conditions"`
}

func (t *Target) UnmarshalJSON(data []byte) error {
	type plain Target
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch TargetKind(strings.ToLower(string(p.Kind))) {
	case "", TargetAll:
		p.Kind = TargetAll
	case TargetSpecifiedNode:
		p.Kind = TargetSpecifiedNode
	case TargetConditions:
		p.Kind = TargetConditions
	default:
		return fmt.Errorf("unknown chain target type %q", p.Kind)
	}
	if p.Conditions.Logic == "" {
		p.Conditions.Logic = condition.LogicAnd
	}
	*t = Target(p)
	return nil
}

type Chain struct {
	Hops   []Hop  `json:"hops"`
	Target Target `json:"target"`
}

// UnmarshalJSON decodes and normalises the hops: a template_group past the
// entry position is read as a custom_group.
func (c *Chain) UnmarshalJSON(data []byte) error {
	type plain Chain
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Target.Kind == "" {
		p.Target.Kind = TargetAll
	}
	for i := range p.Hops {
		p.Hops[i] = p.Hops[i].normalized(i)
	}
	*c = Chain(p)
	return nil
}

func (c Chain) IsEmpty() bool {
	return len(c.Hops) == 0
}
