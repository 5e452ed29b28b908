// Package slir defines the typed intermediate representation that
// sits between the IR generator (internal/slgen) and the optimizer
// (internal/sloptimize): a typed tree of stack blocks and input
// expressions with per-edge type information.
//
// Nodes are plain mutable structs rather than an Accept-style visitor
// tree: the optimizer rewrites nodes in place (cast elimination,
// constant folding, dead-branch elimination), which a closed struct
// shape makes direct. One lowering function per opcode family, matched
// by an exhaustive switch, takes the place of one method per concrete
// node type.
package slir

import "scratchlove/internal/svalue"

// Opcode identifiers for input nodes that are not Scratch block
// opcodes themselves: literals, argument references, and casts.
const (
	OpConstant        = "CONSTANT"
	OpArgRef          = "ARG_REF"
	OpCastBoolean     = "CAST_BOOLEAN"
	OpCastNumber      = "CAST_NUMBER"
	OpCastNumberOrNaN = "CAST_NUMBER_OR_NAN"
	OpCastString      = "CAST_STRING"
)

// Input is a node in an input expression tree. Inputs never share
// structure: every input has exactly one parent.
type Input struct {
	Opcode string
	Type   svalue.Type
	Inputs map[string]*Input
	Yields bool

	// Fields carries a reporter's dropdown-selected field (e.g.
	// operator_mathop's OPERATOR, naming sqrt/sin/floor/...); most
	// reporters have none.
	Fields map[string]string

	// NumericCompare is set by the optimizer's comparison rewrite: true
	// once both operands of a comparison are statically NUMBER,
	// licensing the emitter to use the target's native comparison
	// instead of the Scratch comparator helper.
	NumericCompare bool

	// SourceID is the originating block id, used for diagnostics.
	SourceID string

	// Value holds the literal's runtime value iff Opcode == OpConstant.
	Value interface{}

	// Scope/Name/VarID apply to variable/list reader nodes
	// (data_variable and data_listcontents); Scope is "target" or
	// "stage".
	Scope string
	Name  string
	VarID string
}

// IsConstant reports whether e is a CONSTANT node, optionally also
// checking its value against want.
func (e *Input) IsConstant(want interface{}) bool {
	if e == nil || e.Opcode != OpConstant {
		return false
	}
	if want == nil {
		return true
	}
	return e.Value == want
}

// IsAlwaysType reports whether e's type is a subset of t.
func (e *Input) IsAlwaysType(t svalue.Type) bool {
	return svalue.AlwaysType(e.Type, t)
}

// IsSometimesType reports whether e's type intersects t.
func (e *Input) IsSometimesType(t svalue.Type) bool {
	return svalue.SometimesType(e.Type, t)
}

// NewConstant builds a CONSTANT input node, classifying its type.
func NewConstant(value interface{}, sourceID string) *Input {
	return &Input{
		Opcode:   OpConstant,
		Type:     svalue.ClassifyValue(value),
		Value:    value,
		SourceID: sourceID,
	}
}

// CastOpcodeFor returns the cast opcode that targets t, or "" if t is
// not one of the four cast targets the generator/optimizer know about.
// The generator calls this before ToType so it can raise a
// slerr.CastTargetUnknown diagnostic instead of letting an invalid
// cast silently enter the IR.
func CastOpcodeFor(t svalue.Type) string {
	switch t {
	case svalue.Boolean:
		return OpCastBoolean
	case svalue.Number:
		return OpCastNumber
	case svalue.NumberOrNaN:
		return OpCastNumberOrNaN
	case svalue.String:
		return OpCastString
	default:
		return ""
	}
}

// ToType wraps e in a cast targeting t: a no-op if e is already of
// type t, a fold if e is constant, otherwise a cast node. fold is the
// constant-folding callback (provided by the caller to avoid an
// import cycle with internal/sloptimize's value semantics).
func ToType(e *Input, t svalue.Type, fold func(value interface{}, target svalue.Type) interface{}) *Input {
	if e == nil {
		return e
	}
	if e.IsAlwaysType(t) {
		return e
	}
	op := CastOpcodeFor(t)
	if op == "" {
		// Unknown cast target: the generator must check CastOpcodeFor
		// itself and raise slerr.CastTargetUnknown before reaching
		// here. ToType has nothing sane to return.
		return e
	}
	if e.Opcode == OpConstant && fold != nil {
		folded := fold(e.Value, t)
		return NewConstant(folded, e.SourceID)
	}
	return &Input{
		Opcode:   op,
		Type:     t,
		Inputs:   map[string]*Input{"value": e},
		Yields:   e.Yields,
		SourceID: e.SourceID,
	}
}

// StackBlock is a node in a script's stack. Control-flow blocks carry
// sub-stacks as named entries in Subs (whenTrue, whenFalse, do;
// condition is an Input, not a Sub) rather than via next-links.
type StackBlock struct {
	Opcode   string
	Inputs   map[string]*Input
	Fields   map[string]string
	Subs     map[string][]*StackBlock
	Yields   bool
	SourceID string

	EntryState StateMap
	ExitState  StateMap
}

// StateKey identifies an observable slot in the type-state map.
type StateKey string

// StateMap is a flat associative map from state keys to types.
type StateMap map[StateKey]svalue.Type

// Clone returns a shallow copy of m, safe to mutate independently.
func (m StateMap) Clone() StateMap {
	out := make(StateMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Join computes the union (OR of bitmasks) of two state maps, the
// control-flow-merge operation. A key missing from one side is
// treated as Any (the conservative top element), matching the join of
// "any path that never touched this slot" with "a path that narrowed
// it."
func Join(a, b StateMap) StateMap {
	out := make(StateMap, len(a)+len(b))
	for k, v := range a {
		if w, ok := b[k]; ok {
			out[k] = v | w
		} else {
			out[k] = svalue.Any
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			out[k] = svalue.Any
		}
	}
	return out
}

// ProcVariant is the (procedure code, warp-at-call-site) compile-time
// specialization key: a struct, never a string-concatenation hack.
type ProcVariant struct {
	Code string
	Warp bool
}

// Script is a compiled unit: either a hat-rooted top-level script or a
// procedure-definition body.
type Script struct {
	Stack         []*StackBlock
	ProcedureCode string // empty for top-level (non-procedure) scripts
	ArgNames      []string
	ArgDefaults   []interface{}

	Yields          bool
	Warp            bool
	WarpTimer       bool
	HasHat          bool
	HatIsExecutable bool
	HatOpcode       string
	IsProcedure     bool

	// DependedProcedures is the set of procedure variants this script
	// transitively calls.
	DependedProcedures map[ProcVariant]bool

	// CachedVariables/CachedLists are the generator's variable-caching
	// hints: every distinct (id, scope) referenced by the IR as
	// generated, in first-reference order so the emitter's positional
	// slot assignment is deterministic. They are collected before
	// optimization, so a reference the optimizer later removes still
	// keeps its slot.
	CachedVariables []VarRef
	CachedLists     []VarRef
}

// VarRef names one variable or list the emitter must bind a cache slot
// for.
type VarRef struct {
	ID    string
	Name  string
	Scope string // "target" or "stage"
}

// IR is the whole compiled unit for one entry point: the entry script
// plus every procedure variant it transitively depends on, keyed by
// variant so recursion terminates.
type IR struct {
	Entry      *Script
	Procedures map[ProcVariant]*Script
}

// NewIR creates an empty IR rooted at entry.
func NewIR(entry *Script) *IR {
	return &IR{
		Entry:      entry,
		Procedures: make(map[ProcVariant]*Script),
	}
}

// Walk invokes visit for every stack block in order, including those
// nested in control-flow sub-stacks, depth-first. Sub-stack order is
// Subs' declaration order as recorded by the generator (whenTrue
// before whenFalse, etc. — see subOrder).
func Walk(stack []*StackBlock, visit func(*StackBlock)) {
	for _, b := range stack {
		visit(b)
		for _, name := range subOrder(b) {
			Walk(b.Subs[name], visit)
		}
	}
}

// subOrder returns a deterministic iteration order over a block's
// named sub-stacks so walks (and therefore emitted output) are
// reproducible for identical input.
func subOrder(b *StackBlock) []string {
	switch b.Opcode {
	case "control_if":
		return []string{"whenTrue"}
	case "control_if_else":
		return []string{"whenTrue", "whenFalse"}
	case "control_repeat", "control_forever", "control_repeat_until":
		return []string{"do"}
	default:
		return nil
	}
}
