package slgen

import (
	"fmt"
	"strings"

	"scratchlove/internal/slerr"
	"scratchlove/internal/slir"
	"scratchlove/internal/slproject"
)

// lowerProcedureCall lowers a procedures_call block into a CALL stack
// block and ensures the called (procCode, warp-at-call-site) variant
// is generated exactly once for this compile. The variant map is a
// cache keyed by (procCode, warp); inProgress tracks variants
// currently being generated, the way a module loader tracks modules
// currently being loaded to break circular imports.
func (g *Generator) lowerProcedureCall(target *slproject.Target, script *slir.Script, raw *slproject.RawBlock) (*slir.StackBlock, error) {
	procCode := ""
	argOrder := ""
	if raw.Mutation != nil {
		procCode = raw.Mutation.ProcCode
		// The call block's own mutation repeats the definition's
		// argument-id order (Scratch's .sb3 shape): the input map is
		// keyed by argument id, not position, so the emitter needs
		// this order to pass arguments to the callee positionally.
		argOrder = strings.Join(raw.Mutation.ArgumentIDs, ",")
	}

	args := make(map[string]*slir.Input, len(raw.Inputs))
	for name := range raw.Inputs {
		in, err := g.lowerInput(target, raw, name)
		if err != nil {
			return nil, err
		}
		if in == nil {
			in = slir.NewConstant("", raw.ID)
		}
		args[name] = in
	}

	def, ok := g.procDefs[procCode]

	// The call-site's effective warp state is the OR of the callee
	// definition's own declared warp and the calling
	// script's already-warp state: once a warp frame is entered
	// nothing inside it un-warps, but a warp-declared procedure also
	// starts warp even when called from a non-warp caller. The
	// definition's own mutation is the ground truth for "declared
	// warp" rather than the call block's mirrored copy, which a
	// diagnostic-only undefined-procedure call won't have.
	declaredWarp := false
	if ok && def.hat.Mutation != nil {
		declaredWarp = def.hat.Mutation.Warp
	}
	callWarp := script.Warp || declaredWarp
	warpField := "false"
	if callWarp {
		warpField = "true"
	}

	if !ok {
		g.warn(slerr.New(slerr.UnknownOpcode, fmt.Sprintf("call to undefined procedure %q", procCode), "", raw.ID, raw.Opcode))
		return &slir.StackBlock{
			Opcode:   raw.Opcode,
			Inputs:   args,
			Fields:   map[string]string{"PROC_CODE": procCode, "ARG_IDS": argOrder, "WARP": warpField},
			Yields:   true,
			SourceID: raw.ID,
		}, nil
	}

	variant := slir.ProcVariant{Code: procCode, Warp: callWarp}
	script.DependedProcedures[variant] = true

	if err := g.resolveVariant(variant, def); err != nil {
		return nil, err
	}

	// A non-warp call is always a yield point regardless of whether the
	// callee itself happens to yield: control returns to the scheduler
	// between the caller's call site and the callee's first block.
	yields := !callWarp

	return &slir.StackBlock{
		Opcode:   raw.Opcode,
		Inputs:   args,
		Fields:   map[string]string{"PROC_CODE": procCode, "ARG_IDS": argOrder, "WARP": warpField},
		Yields:   yields,
		SourceID: raw.ID,
	}, nil
}

// resolveVariant generates the script for variant if it has not
// already been generated or is not already in progress. Recursive and
// mutually-recursive procedures are handled the way a module loader
// handles circular imports: the in-progress marker short-circuits the
// recursive call instead of looping forever, leaving the recursive
// callee's own Yields flag out of its own computation — generation
// must terminate, not wait on a flag that isn't known yet.
func (g *Generator) resolveVariant(variant slir.ProcVariant, def procDef) error {
	if _, done := g.variants[variant]; done {
		return nil
	}
	if g.inProgress[variant] {
		return nil
	}
	g.inProgress[variant] = true
	defer delete(g.inProgress, variant)

	s, err := g.generateScript(def.target, def.hat, variant.Warp)
	if err != nil {
		return err
	}
	g.variants[variant] = s
	return nil
}
