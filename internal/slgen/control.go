package slgen

import (
	"scratchlove/internal/slir"
	"scratchlove/internal/slproject"
)

// lowerControl lowers control-flow stack blocks, which carry their
// sub-stacks as named inputs (whenTrue/whenFalse/do) rather than via
// next-links.
func (g *Generator) lowerControl(target *slproject.Target, script *slir.Script, raw *slproject.RawBlock) (*slir.StackBlock, error) {
	switch raw.Opcode {
	case "control_if":
		return g.lowerIfLike(target, script, raw, false)
	case "control_if_else":
		return g.lowerIfLike(target, script, raw, true)
	case "control_repeat":
		return g.lowerLoop(target, script, raw, "TIMES", "")
	case "control_repeat_until":
		return g.lowerLoop(target, script, raw, "", "CONDITION")
	case "control_forever":
		return g.lowerLoop(target, script, raw, "", "")
	case "control_wait", "control_wait_until":
		return g.newSimpleBlock(target, raw, true)
	case "control_stop":
		return g.newSimpleBlock(target, raw, raw.Fields["STOP_OPTION"] == "this script")
	default:
		return g.newSimpleBlock(target, raw, false)
	}
}

func (g *Generator) lowerIfLike(target *slproject.Target, script *slir.Script, raw *slproject.RawBlock, hasElse bool) (*slir.StackBlock, error) {
	cond, err := g.lowerInputCast(target, raw, "CONDITION", inputTypes[raw.Opcode])
	if err != nil {
		return nil, err
	}
	thenRef, _ := raw.Inputs["SUBSTACK"]
	thenStack, thenYields, err := g.lowerStack(target, script, thenRef.BlockID)
	if err != nil {
		return nil, err
	}
	subs := map[string][]*slir.StackBlock{"whenTrue": thenStack}
	yields := cond.Yields || thenYields
	if hasElse {
		elseRef := raw.Inputs["SUBSTACK2"]
		elseStack, elseYields, err := g.lowerStack(target, script, elseRef.BlockID)
		if err != nil {
			return nil, err
		}
		subs["whenFalse"] = elseStack
		yields = yields || elseYields
	}
	return &slir.StackBlock{
		Opcode:   raw.Opcode,
		Inputs:   map[string]*slir.Input{"CONDITION": cond},
		Subs:     subs,
		Yields:   yields,
		SourceID: raw.ID,
	}, nil
}

// lowerLoop lowers repeat/repeat-until/forever. At most one of
// timesInput/condInput is non-empty, selecting which expected-type
// input (if any) the loop reads; forever reads neither.
func (g *Generator) lowerLoop(target *slproject.Target, script *slir.Script, raw *slproject.RawBlock, timesInput, condInput string) (*slir.StackBlock, error) {
	inputs := make(map[string]*slir.Input)
	if timesInput != "" {
		in, err := g.lowerInputCast(target, raw, timesInput, inputTypes[raw.Opcode])
		if err != nil {
			return nil, err
		}
		inputs[timesInput] = in
	}
	if condInput != "" {
		in, err := g.lowerInputCast(target, raw, condInput, inputTypes[raw.Opcode])
		if err != nil {
			return nil, err
		}
		inputs[condInput] = in
	}
	bodyRef := raw.Inputs["SUBSTACK"]
	body, _, err := g.lowerStack(target, script, bodyRef.BlockID)
	if err != nil {
		return nil, err
	}
	return &slir.StackBlock{
		Opcode: raw.Opcode,
		Inputs: inputs,
		Subs:   map[string][]*slir.StackBlock{"do": body},
		// Loops may always suspend (directly when non-warp, via a
		// stuck-detection check when warp); the choice of which is
		// made at emission time from the script's Warp/WarpTimer
		// flags, not here.
		Yields:   true,
		SourceID: raw.ID,
	}, nil
}
