package model

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/timewinder-dev/onelane/bridge"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var exprOptions = &syntax.FileOptions{}

// ExprProperty is a Starlark boolean expression evaluated against each
// snapshot. See snapshotGlobals for the names it can use.
type ExprProperty struct {
	name   string
	source string
}

func NewExprProperty(name, source string) (*ExprProperty, error) {
	if _, err := exprOptions.ParseExpr(name, source, 0); err != nil {
		return nil, err
	}
	return &ExprProperty{name: name, source: source}, nil
}

func (p *ExprProperty) Name() string {
	return p.name
}

func (p *ExprProperty) Source() string {
	return p.source
}

func (p *ExprProperty) Check(s *bridge.Snapshot) (PropertyResult, error) {
	// Resolving annotates the syntax tree, so every check works on its own
	// parse; check workers run concurrently.
	expr, err := exprOptions.ParseExpr(p.name, p.source, 0)
	if err != nil {
		return PropertyResult{}, err
	}
	thread := &starlark.Thread{Name: p.name}
	val, err := starlark.EvalExprOptions(exprOptions, thread, expr, snapshotGlobals(s))
	if err != nil {
		return PropertyResult{}, err
	}
	b, ok := val.(starlark.Bool)
	if !ok {
		return PropertyResult{}, fmt.Errorf("Property %s: expression returned %s, not bool", p.name, val.Type())
	}
	if !b {
		return violated(p.name, "%s returned False", p.source), nil
	}
	return satisfied(p.name), nil
}

func snapshotGlobals(s *bridge.Snapshot) starlark.StringDict {
	a, b := bridge.TowardA, bridge.TowardB
	return starlark.StringDict{
		"on_bridge_a":   starlark.MakeInt(s.OnBridgeCount[a]),
		"on_bridge_b":   starlark.MakeInt(s.OnBridgeCount[b]),
		"waiting_a":     starlark.MakeInt(s.WaitingCount[a]),
		"waiting_b":     starlark.MakeInt(s.WaitingCount[b]),
		"consecutive_a": starlark.MakeInt(s.Consecutive[a]),
		"consecutive_b": starlark.MakeInt(s.Consecutive[b]),
		"max_load":      starlark.MakeInt(s.MaxLoad),
		"event":         starlark.String(s.Event.Kind.String()),
		"vehicle":       starlark.MakeInt(s.Event.Vehicle),
		"direction":     starlark.String(s.Event.Direction.Short()),
		"signaled":      starlark.String(s.Signaled.Short()),
		"bridge_ids_a":  idList(s.OnBridge[a]),
		"bridge_ids_b":  idList(s.OnBridge[b]),
		"waiting_ids_a": idList(s.Waiting[a]),
		"waiting_ids_b": idList(s.Waiting[b]),
	}
}

func idList(ids []int) *starlark.List {
	return starlark.NewList(lo.Map(ids, func(id int, _ int) starlark.Value {
		return starlark.MakeInt(id)
	}))
}

// BuildProperties returns the built-in invariants followed by the
// scenario's expressions in name order.
func (s *Spec) BuildProperties() ([]Property, error) {
	props := BuiltinProperties()
	names := lo.Keys(s.Properties)
	slices.Sort(names)
	for _, name := range names {
		p, err := NewExprProperty(name, s.Properties[name].Always)
		if err != nil {
			return nil, fmt.Errorf("%w: property %s: %v", ErrInvalidSpec, name, err)
		}
		props = append(props, p)
	}
	return props, nil
}
