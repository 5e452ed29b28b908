package sloptimize

import (
	"scratchlove/internal/slir"
	"scratchlove/internal/svalue"
)

// maxFixPointPasses bounds the rewrite loop. Each pass can only ever
// shrink the IR (fold, eliminate) or leave it unchanged, so
// convergence is reached in practice after two or three passes; this
// is a backstop against a rewrite bug turning the loop infinite, not a
// semantic limit.
const maxFixPointPasses = 8

// Optimize rewrites every script in ir — the entry script and every
// procedure variant it depends on — in place, running each to a
// fix-point. Running the optimizer a second time over an
// already-converged script is a no-op.
func Optimize(ir *slir.IR) {
	optimizeScript(ir.Entry)
	for _, script := range ir.Procedures {
		optimizeScript(script)
	}
}

func optimizeScript(script *slir.Script) {
	for pass := 0; pass < maxFixPointPasses; pass++ {
		r := &rewriter{}
		script.Stack, _ = r.rewriteStack(script.Stack, slir.StateMap{})
		if !r.changed {
			return
		}
	}
}

// rewriter tracks whether a pass changed anything, so optimizeScript
// knows when it has reached a fix-point.
type rewriter struct {
	changed bool
}

// rewriteStack rewrites a sequence of stack blocks in order, threading
// the type-state map through as each block's entry/exit contract
// requires. A block may rewrite to zero blocks (folded to
// a no-op), to itself, or to another stack spliced in place (a folded
// if/if-else's taken branch).
func (r *rewriter) rewriteStack(blocks []*slir.StackBlock, entry slir.StateMap) ([]*slir.StackBlock, slir.StateMap) {
	var out []*slir.StackBlock
	state := entry
	for _, b := range blocks {
		b.EntryState = state.Clone()
		replacement, exit := r.rewriteBlock(b, state)
		out = append(out, replacement...)
		state = exit
	}
	return out, state
}

// rewriteBlock rewrites one stack block's inputs and sub-stacks, then
// applies this block's own rewrite/transfer rule.
func (r *rewriter) rewriteBlock(b *slir.StackBlock, entry slir.StateMap) ([]*slir.StackBlock, slir.StateMap) {
	for name, in := range b.Inputs {
		b.Inputs[name] = r.rewriteInput(in, entry)
	}

	switch b.Opcode {
	case "control_if":
		return r.rewriteIf(b, entry, false)
	case "control_if_else":
		return r.rewriteIf(b, entry, true)
	case "control_repeat":
		return r.rewriteRepeat(b, entry)
	case "control_repeat_until":
		return r.rewriteRepeatUntil(b, entry)
	case "control_forever":
		return r.rewriteForever(b, entry)
	case "procedures_call":
		exit := clobber(entry)
		b.ExitState = exit
		return []*slir.StackBlock{b}, exit
	case "data_setvariableto":
		return r.rewriteSetVariable(b, entry)
	case "data_changevariableby":
		return r.rewriteChangeVariable(b, entry)
	case "motion_setx":
		return r.narrowSpriteSlot(b, entry, SpriteX, svalue.Number)
	case "motion_sety":
		return r.narrowSpriteSlot(b, entry, SpriteY, svalue.Number)
	case "motion_setdirection":
		return r.narrowSpriteSlot(b, entry, SpriteDirection, svalue.Number)
	case "motion_gotoxy":
		exit := entry.Clone()
		exit[SpriteX] = svalue.Number
		exit[SpriteY] = svalue.Number
		b.ExitState = exit
		return []*slir.StackBlock{b}, exit
	case "motion_changexby":
		exit := entry.Clone()
		exit[SpriteX] = svalue.Number
		b.ExitState = exit
		return []*slir.StackBlock{b}, exit
	case "motion_changeyby":
		exit := entry.Clone()
		exit[SpriteY] = svalue.Number
		b.ExitState = exit
		return []*slir.StackBlock{b}, exit
	default:
		b.ExitState = entry
		return []*slir.StackBlock{b}, entry
	}
}

// narrowSpriteSlot implements the motion_setx/sety/setdirection
// transfer function: the corresponding sprite slot becomes NUMBER.
func (r *rewriter) narrowSpriteSlot(b *slir.StackBlock, entry slir.StateMap, key slir.StateKey, t svalue.Type) ([]*slir.StackBlock, slir.StateMap) {
	exit := entry.Clone()
	exit[key] = t
	b.ExitState = exit
	return []*slir.StackBlock{b}, exit
}

// rewriteSetVariable implements data_setvariableto's transfer
// function: `var:v` rebinds to the assigned value's exact type.
func (r *rewriter) rewriteSetVariable(b *slir.StackBlock, entry slir.StateMap) ([]*slir.StackBlock, slir.StateMap) {
	exit := entry.Clone()
	id := b.Fields["VARIABLE_ID"]
	valType := svalue.Any
	if v := b.Inputs["VALUE"]; v != nil {
		valType = v.Type
	}
	exit[VarKey(id)] = valType
	b.ExitState = exit
	return []*slir.StackBlock{b}, exit
}

// rewriteChangeVariable implements data_changevariableby's transfer
// function: `var:v` joins with NUMBER_OR_NAN, since the variable's
// prior value might not have been a number.
func (r *rewriter) rewriteChangeVariable(b *slir.StackBlock, entry slir.StateMap) ([]*slir.StackBlock, slir.StateMap) {
	exit := entry.Clone()
	id := b.Fields["VARIABLE_ID"]
	key := VarKey(id)
	exit[key] = get(entry, key) | svalue.NumberOrNaN
	b.ExitState = exit
	return []*slir.StackBlock{b}, exit
}

// rewriteIf implements dead-branch elimination: a constant CONDITION
// folds the whole control_if(_else) to its taken branch, spliced
// directly into the enclosing stack.
func (r *rewriter) rewriteIf(b *slir.StackBlock, entry slir.StateMap, hasElse bool) ([]*slir.StackBlock, slir.StateMap) {
	cond := b.Inputs["CONDITION"]
	thenStack, thenExit := r.rewriteStack(b.Subs["whenTrue"], entry)

	if hasElse {
		elseStack, elseExit := r.rewriteStack(b.Subs["whenFalse"], entry)
		if cond.IsConstant(true) {
			r.changed = true
			return thenStack, thenExit
		}
		if cond.IsConstant(false) {
			r.changed = true
			return elseStack, elseExit
		}
		b.Subs["whenTrue"] = thenStack
		b.Subs["whenFalse"] = elseStack
		exit := slir.Join(thenExit, elseExit)
		b.ExitState = exit
		return []*slir.StackBlock{b}, exit
	}

	if cond.IsConstant(true) {
		r.changed = true
		return thenStack, thenExit
	}
	if cond.IsConstant(false) {
		r.changed = true
		return nil, entry
	}
	b.Subs["whenTrue"] = thenStack
	exit := slir.Join(entry, thenExit)
	b.ExitState = exit
	return []*slir.StackBlock{b}, exit
}

// rewriteRepeat implements `repeat N ≤ 0` folding to a no-op, and the
// loop-carried fix-point transfer otherwise: two full passes over the
// body, joins being idempotent once the lattice has saturated.
func (r *rewriter) rewriteRepeat(b *slir.StackBlock, entry slir.StateMap) ([]*slir.StackBlock, slir.StateMap) {
	times := b.Inputs["TIMES"]
	if times != nil && times.Opcode == slir.OpConstant {
		if n, ok := times.Value.(float64); ok && n <= 0 {
			r.changed = true
			return nil, entry
		}
	}
	exit := r.loopFixPoint(b, entry)
	return []*slir.StackBlock{b}, exit
}

// rewriteRepeatUntil implements loop simplification: a constant-true
// condition means the loop body never
// runs (folds to no-op); a constant-false condition means the loop
// never exits (rewrite to control_forever).
func (r *rewriter) rewriteRepeatUntil(b *slir.StackBlock, entry slir.StateMap) ([]*slir.StackBlock, slir.StateMap) {
	cond := b.Inputs["CONDITION"]
	if cond.IsConstant(true) {
		r.changed = true
		return nil, entry
	}
	if cond.IsConstant(false) {
		r.changed = true
		b.Opcode = "control_forever"
		delete(b.Inputs, "CONDITION")
		return r.rewriteForever(b, entry)
	}
	exit := r.loopFixPoint(b, entry)
	return []*slir.StackBlock{b}, exit
}

// rewriteForever never exits in practice, but the optimizer still
// needs a conservative exit state for any (dead) code after it and
// for the script-level join; it gets the same two-pass fix-point
// treatment as a bounded loop.
func (r *rewriter) rewriteForever(b *slir.StackBlock, entry slir.StateMap) ([]*slir.StackBlock, slir.StateMap) {
	exit := r.loopFixPoint(b, entry)
	return []*slir.StackBlock{b}, exit
}

// loopFixPoint rewrites a loop body over two passes and joins the
// entry state with both iterations' exit states: a loop-carried
// fix-point to a bounded depth, since one re-iteration is enough once
// the lattice's joins have saturated.
func (r *rewriter) loopFixPoint(b *slir.StackBlock, entry slir.StateMap) slir.StateMap {
	firstBody, firstExit := r.rewriteStack(b.Subs["do"], entry)
	merged := slir.Join(entry, firstExit)
	secondBody, secondExit := r.rewriteStack(firstBody, merged)
	exit := slir.Join(merged, secondExit)
	b.Subs["do"] = secondBody
	b.EntryState = entry.Clone()
	b.ExitState = exit
	return exit
}
