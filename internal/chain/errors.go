package chain

import (
	"errors"
	"fmt"
)

var (
	ErrTooManyHops            = errors.New("chain has too many hops")
	ErrUndefinedTemplateGroup = errors.New("template group not defined")
	ErrEmptyHop               = errors.New("hop matches no nodes")
	ErrDanglingNode           = errors.New("node not in pool")
	ErrUnknownSelectMode      = errors.New("unknown select mode")
	ErrNodeReused             = errors.New("node used by more than one hop")
	ErrTargetInChain          = errors.New("target node is part of the chain")
	ErrNameConflict           = errors.New("group name already in use")
)

// TargetHop is the Hop value of errors raised while resolving the target.
const TargetHop = -1

// ResolveError reports why a chain cannot be wired. The whole chain is
// invalid; callers must not fall back to a partial result.
type ResolveError struct {
	Hop    int
	Kind   error
	NodeID string
	Group  string
	Detail string
}

func (e *ResolveError) Error() string {
	where := fmt.Sprintf("hop %d", e.Hop+1)
	if e.Hop == TargetHop {
		where = "target"
	}
	msg := fmt.Sprintf("chain %s: %v", where, e.Kind)
	if e.NodeID != "" {
		msg += fmt.Sprintf(" (node %s)", e.NodeID)
	}
	if e.Group != "" {
		msg += fmt.Sprintf(" (group %q)", e.Group)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ResolveError) Unwrap() error { return e.Kind }
