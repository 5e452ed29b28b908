// Package sloptimize implements the type-directed optimizer: it
// propagates a type-state map over a script's IR and rewrites nodes
// using algebraic identities — cast elimination, constant folding,
// dead-branch elimination, loop simplification and comparison
// rewriting — without ever weakening a type. Variable-caching hints
// are recorded by the generator (slgen), not here.
package sloptimize

import (
	"scratchlove/internal/slir"
	"scratchlove/internal/svalue"
)

// State keys for the sprite's own observable slots. Keys for
// variables and lists are built with VarKey/ListKey instead, since
// there are as many of those as the project declares.
const (
	SpriteX         slir.StateKey = "sprite:x"
	SpriteY         slir.StateKey = "sprite:y"
	SpriteDirection slir.StateKey = "sprite:direction"
	SpriteSize      slir.StateKey = "sprite:size"
	SpriteCostume   slir.StateKey = "sprite:costume"
	SpriteVisible   slir.StateKey = "sprite:visible"
)

// VarKey builds the state key for a variable slot, scoped by id alone
// (this module does not distinguish sprite-local instances of the
// same variable id across targets; the generator's data_setvariableto
// fields carry VARIABLE_ID, not scope, so the key is built from that).
func VarKey(id string) slir.StateKey { return slir.StateKey("var:" + id) }

// ListKey builds the state key for a list slot.
func ListKey(id string) slir.StateKey { return slir.StateKey("list:" + id) }

// clobber returns a copy of state with every known slot widened to
// ANY — the worst-case transfer function applied across a procedure
// call whose callee has not been summarized: every slot the callee
// might mutate has to become ANY.
func clobber(state slir.StateMap) slir.StateMap {
	out := make(slir.StateMap, len(state))
	for k := range state {
		out[k] = svalue.Any
	}
	return out
}

// get reads a slot, defaulting to ANY (the top element) when absent —
// matching slir.Join's treatment of a key missing from one side.
func get(state slir.StateMap, key slir.StateKey) svalue.Type {
	if t, ok := state[key]; ok {
		return t
	}
	return svalue.Any
}
