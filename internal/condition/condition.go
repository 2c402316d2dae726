// Package condition evaluates boolean condition trees against a single node.
package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"subforge/internal/model"
)

type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpRegex          Operator = "regex"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
)

// FieldClass decides which operators and values a field accepts.
type FieldClass int

const (
	ClassText FieldClass = iota
	ClassNumeric
	ClassStatus
)

func (c FieldClass) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassNumeric:
		return "numeric"
	case ClassStatus:
		return "status"
	}
	return "unknown"
}

func ClassOf(field string) FieldClass {
	switch field {
	case "delay_status", "speed_status":
		return ClassStatus
	case "speed", "delay_time":
		return ClassNumeric
	default:
		return ClassText
	}
}

// Allows reports whether op is valid for the class.
func (c FieldClass) Allows(op Operator) bool {
	switch c {
	case ClassStatus:
		return op == OpEquals || op == OpNotEquals
	case ClassNumeric:
		switch op {
		case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
			return true
		}
	case ClassText:
		switch op {
		case OpEquals, OpNotEquals, OpContains, OpNotContains, OpRegex:
			return true
		}
	}
	return false
}

// Value is the right-hand side of a condition. The UI stores numbers either as
// JSON numbers or strings, so both are accepted.
type Value string

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	*v = Value(data)
	return nil
}

type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

// Validate reports configuration mistakes. Evaluation never fails; an invalid
// condition simply evaluates to false.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition has no field")
	}
	class := ClassOf(c.Field)
	if !class.Allows(c.Operator) {
		return fmt.Errorf("operator %q not allowed for %s field %q", c.Operator, class, c.Field)
	}
	switch class {
	case ClassStatus:
		if _, ok := model.ParseStatus(string(c.Value)); !ok {
			return fmt.Errorf("invalid status %q for field %q", c.Value, c.Field)
		}
	case ClassNumeric:
		if _, err := strconv.ParseFloat(strings.TrimSpace(string(c.Value)), 64); err != nil {
			return fmt.Errorf("invalid number %q for field %q", c.Value, c.Field)
		}
	case ClassText:
	}
	return nil
}

// Group combines conditions with a single logic. An empty group is true.
type Group struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

func (g *Group) UnmarshalJSON(data []byte) error {
	type plain Group
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch Logic(strings.ToLower(string(p.Logic))) {
	case "", LogicAnd:
		p.Logic = LogicAnd
	case LogicOr:
		p.Logic = LogicOr
	default:
		return fmt.Errorf("unknown condition logic %q", p.Logic)
	}
	*g = Group(p)
	return nil
}

func (g Group) IsEmpty() bool {
	return len(g.Conditions) == 0
}

func (g Group) Validate() error {
	for i, c := range g.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

// Evaluate compiles g and tests n. Callers evaluating many nodes should
// Compile once instead.
func (g Group) Evaluate(n model.Node) bool {
	return g.Compile().Match(n)
}
