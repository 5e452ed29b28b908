// Package slgen implements the IR generator: it walks a raw Scratch
// block graph for one script and produces a typed slir.IR.
//
// Dispatch is a compile-time exhaustive Go switch over opcode
// families, one lowering method per family. An unhandled opcode falls
// to the default case, which records a diagnostic and lowers to a
// no-op rather than aborting the whole script.
package slgen

import (
	"fmt"
	"sort"

	"scratchlove/internal/slerr"
	"scratchlove/internal/slir"
	"scratchlove/internal/slproject"
	"scratchlove/internal/svalue"
)

// Generator lowers raw block graphs into slir.IR. One Generator is
// used for a whole compile pass (an entry script plus every procedure
// it transitively calls) so the procedure-variant cache is shared
// across every call site that reaches the same procedure.
type Generator struct {
	project *slproject.Project

	// procDefs maps a procedure code to the (target, definition hat
	// block) that declares it. Scratch resolves calls to the
	// definition living on the same target (or the stage, for global
	// procedures); this module keeps it simple and indexes every
	// target's definitions together, matching how a single sprite's
	// local procedures and the stage's globals are both visible to
	// that sprite's scripts.
	procDefs map[string]procDef

	variants    map[slir.ProcVariant]*slir.Script
	inProgress  map[slir.ProcVariant]bool
	Diagnostics []*slerr.Error
}

type procDef struct {
	target *slproject.Target
	hat    *slproject.RawBlock
}

// New creates a Generator for project, indexing every target's
// procedure definitions up front.
func New(project *slproject.Project) *Generator {
	g := &Generator{
		project:    project,
		procDefs:   make(map[string]procDef),
		variants:   make(map[slir.ProcVariant]*slir.Script),
		inProgress: make(map[slir.ProcVariant]bool),
	}
	for _, t := range project.Targets() {
		for _, b := range t.TopLevelBlocks() {
			if b.Opcode == "procedures_definition" && b.Mutation != nil {
				g.procDefs[b.Mutation.ProcCode] = procDef{target: t, hat: b}
			}
		}
	}
	return g
}

// Generate lowers the script rooted at entryBlockID on target into a
// complete IR: the entry script plus every procedure variant it
// transitively depends on.
func (g *Generator) Generate(target *slproject.Target, entryBlockID string) (*slir.IR, error) {
	entryBlock, ok := target.Block(entryBlockID)
	if !ok {
		return nil, fmt.Errorf("slgen: unknown entry block %q", entryBlockID)
	}
	script, err := g.generateScript(target, entryBlock, false)
	if err != nil {
		return nil, err
	}
	ir := slir.NewIR(script)
	for variant, s := range g.variants {
		ir.Procedures[variant] = s
	}
	return ir, nil
}

// generateScript lowers a single hat-rooted (or procedure-rooted)
// stack into a slir.Script. warp is the caller's warp state and is
// meaningless for non-procedure scripts.
func (g *Generator) generateScript(target *slproject.Target, hat *slproject.RawBlock, warp bool) (*slir.Script, error) {
	script := &slir.Script{
		HasHat:             hat.TopLevel,
		HatOpcode:          hat.Opcode,
		HatIsExecutable:    executableHats[hat.Opcode],
		IsProcedure:        hat.Opcode == "procedures_definition",
		Warp:               warp,
		DependedProcedures: make(map[slir.ProcVariant]bool),
	}

	if script.IsProcedure && hat.Mutation != nil {
		script.ProcedureCode = hat.Mutation.ProcCode
		script.ArgNames = append([]string(nil), hat.Mutation.ArgumentNames...)
		// A procedure's effective warp is its own declared flag OR'd
		// with whatever warp state its caller resolved it under: a
		// warp-declared procedure is always warp even reached from a
		// non-warp caller, and a non-warp procedure still runs warp
		// when called from inside an already-warp frame (see
		// lowerProcedureCall's callWarp).
		script.Warp = warp || hat.Mutation.Warp
	}

	startID := hat.Next
	stack, yields, err := g.lowerStack(target, script, startID)
	if err != nil {
		return nil, err
	}
	script.Stack = stack
	script.Yields = yields || (script.HasHat && script.HatIsExecutable)

	if script.Warp && containsLoop(stack) {
		script.WarpTimer = true
	}

	g.collectVariableCache(target, script)
	return script, nil
}

// lowerStack follows raw next-links from startID, converting each
// stack block into an IR stack block. It returns whether any block in
// the stack yields.
func (g *Generator) lowerStack(target *slproject.Target, script *slir.Script, startID string) ([]*slir.StackBlock, bool, error) {
	var out []*slir.StackBlock
	anyYields := false
	visited := make(map[string]bool)
	id := startID
	for id != "" {
		if visited[id] {
			return nil, false, fmt.Errorf("slgen: circular next-link at block %q", id)
		}
		visited[id] = true
		raw, ok := target.Block(id)
		if !ok {
			return nil, false, fmt.Errorf("slgen: dangling next-link to %q", id)
		}
		block, err := g.lowerBlock(target, script, raw)
		if err != nil {
			return nil, false, err
		}
		if block != nil {
			out = append(out, block)
			anyYields = anyYields || block.Yields
		}
		id = raw.Next
	}
	return out, anyYields, nil
}

// lowerBlock converts one raw stack block into an IR stack block,
// dispatching on opcode family via an exhaustive switch. Unknown
// opcodes are recorded as a warning diagnostic and emitted as a no-op
// (nil), never aborting the script.
func (g *Generator) lowerBlock(target *slproject.Target, script *slir.Script, raw *slproject.RawBlock) (*slir.StackBlock, error) {
	switch {
	case opFamily(raw.Opcode) == "motion":
		return g.lowerMotion(target, raw)
	case opFamily(raw.Opcode) == "looks":
		return g.lowerLooks(target, raw)
	case opFamily(raw.Opcode) == "control":
		return g.lowerControl(target, script, raw)
	case opFamily(raw.Opcode) == "data":
		return g.lowerData(target, raw)
	case opFamily(raw.Opcode) == "event":
		return g.lowerEvent(target, raw)
	case raw.Opcode == "procedures_definition":
		// The definition hat itself contributes no stack block; its
		// body was already consumed as this script's Stack.
		return nil, nil
	case opFamily(raw.Opcode) == "procedures":
		return g.lowerProcedureCall(target, script, raw)
	default:
		g.warn(slerr.New(slerr.UnknownOpcode, "unhandled opcode, emitted as no-op", "", raw.ID, raw.Opcode))
		return nil, nil
	}
}

func opFamily(opcode string) string {
	for i, c := range opcode {
		if c == '_' {
			return opcode[:i]
		}
	}
	return opcode
}

func (g *Generator) warn(e *slerr.Error) {
	g.Diagnostics = append(g.Diagnostics, e)
}

// --- cast insertion ---

// lowerInputCast lowers input `name` on raw and, if declared, casts it
// to the block's expected type, folding casts over constants
// immediately (ToType's contract).
func (g *Generator) lowerInputCast(target *slproject.Target, raw *slproject.RawBlock, name string, declared map[string]svalue.Type) (*slir.Input, error) {
	in, err := g.lowerInput(target, raw, name)
	if err != nil {
		return nil, err
	}
	if in == nil {
		in = slir.NewConstant("", raw.ID)
	}
	want, ok := declared[name]
	if !ok {
		return in, nil
	}
	if slir.CastOpcodeFor(want) == "" {
		return nil, slerr.New(slerr.CastTargetUnknown,
			fmt.Sprintf("no cast exists for target type %v", want), "", raw.ID, raw.Opcode)
	}
	return slir.ToType(in, want, foldCast), nil
}

// foldCast evaluates a cast over a constant at compile time, using
// the exact value semantics of internal/svalue.
func foldCast(v interface{}, target svalue.Type) interface{} {
	switch target {
	case svalue.Boolean:
		return svalue.CastBoolean(v)
	case svalue.Number:
		return svalue.CastNumber(v)
	case svalue.NumberOrNaN:
		return svalue.CastNumberOrNaN(v)
	case svalue.String:
		return svalue.CastString(v)
	default:
		return v
	}
}

// lowerInput lowers one input slot: a literal compressed primitive, a
// child block reference, or an empty slot.
func (g *Generator) lowerInput(target *slproject.Target, raw *slproject.RawBlock, name string) (*slir.Input, error) {
	ri, ok := raw.Inputs[name]
	if !ok {
		return nil, nil
	}
	if ri.Primitive != nil && ri.BlockID == "" {
		return g.lowerPrimitive(target, ri.Primitive, raw.ID), nil
	}
	if ri.BlockID == "" {
		g.warn(slerr.New(slerr.MalformedInput, fmt.Sprintf("input %q has neither primitive nor block", name), "", raw.ID, raw.Opcode))
		return nil, nil
	}
	childRaw, ok := target.Block(ri.BlockID)
	if !ok {
		g.warn(slerr.New(slerr.MalformedInput, fmt.Sprintf("input %q references unknown block %q", name, ri.BlockID), "", raw.ID, raw.Opcode))
		return nil, nil
	}
	return g.lowerReporter(target, childRaw)
}

// lowerPrimitive converts a compressed primitive into a CONSTANT or
// typed reference input node. Variable/list primitives resolve their
// scope against target's and the stage's declared variables, falling
// back to the primitive's own name/target-scope if the project model
// doesn't know the id (e.g. a hand-written fixture that skips
// declarations).
func (g *Generator) lowerPrimitive(target *slproject.Target, p *slproject.Primitive, sourceID string) *slir.Input {
	switch p.Kind {
	case slproject.PrimitiveMath:
		n := parseFloat(p.Value)
		return slir.NewConstant(n, sourceID)
	case slproject.PrimitiveText:
		return slir.NewConstant(p.Value, sourceID)
	case slproject.PrimitiveColor:
		return &slir.Input{Opcode: slir.OpConstant, Type: svalue.Color, Value: p.Value, SourceID: sourceID}
	case slproject.PrimitiveBroadcast:
		return &slir.Input{Opcode: slir.OpConstant, Type: svalue.String, Value: p.Name, SourceID: sourceID}
	case slproject.PrimitiveVariable:
		name, scope, ok := g.project.VariableScope(target, p.ID)
		if !ok {
			name, scope = p.Name, "target"
		}
		return &slir.Input{Opcode: "data_variable", Type: svalue.Any, Scope: scope, Name: name, VarID: p.ID, SourceID: sourceID}
	case slproject.PrimitiveList:
		name, scope, ok := g.project.ListScope(target, p.ID)
		if !ok {
			name, scope = p.Name, "target"
		}
		return &slir.Input{Opcode: "data_listcontents", Type: svalue.String, Scope: scope, Name: name, VarID: p.ID, SourceID: sourceID}
	default:
		return slir.NewConstant("", sourceID)
	}
}

func parseFloat(s string) float64 {
	return svalue.CastNumberOrNaN(s)
}

func containsLoop(stack []*slir.StackBlock) bool {
	found := false
	slir.Walk(stack, func(b *slir.StackBlock) {
		switch b.Opcode {
		case "control_repeat", "control_forever", "control_repeat_until":
			found = true
		}
	})
	return found
}

// collectVariableCache walks the generated (not yet optimized) IR
// collecting every distinct (id, scope) variable/list reference, in
// first-reference order, for the emitter's positional slot assignment.
// A block's inputs are visited in input-name order.
func (g *Generator) collectVariableCache(target *slproject.Target, script *slir.Script) {
	seenVar := make(map[string]bool)
	seenList := make(map[string]bool)
	sortedNames := func(inputs map[string]*slir.Input) []string {
		names := make([]string, 0, len(inputs))
		for name := range inputs {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	// addList records a list named by a LIST_ID field (list stack blocks
	// and data_itemoflist) rather than by a data_listcontents reader.
	addList := func(id, fallbackName string) {
		if id == "" || seenList[id] {
			return
		}
		seenList[id] = true
		name, scope, ok := g.project.ListScope(target, id)
		if !ok {
			name, scope = fallbackName, "target"
		}
		script.CachedLists = append(script.CachedLists, slir.VarRef{ID: id, Name: name, Scope: scope})
	}
	var visitInput func(in *slir.Input)
	visitInput = func(in *slir.Input) {
		if in == nil {
			return
		}
		switch in.Opcode {
		case "data_variable":
			if !seenVar[in.VarID] {
				seenVar[in.VarID] = true
				script.CachedVariables = append(script.CachedVariables, slir.VarRef{ID: in.VarID, Name: in.Name, Scope: in.Scope})
			}
		case "data_listcontents":
			if !seenList[in.VarID] {
				seenList[in.VarID] = true
				script.CachedLists = append(script.CachedLists, slir.VarRef{ID: in.VarID, Name: in.Name, Scope: in.Scope})
			}
		case "data_itemoflist":
			addList(in.Fields["LIST_ID"], in.Fields["LIST"])
		}
		for _, name := range sortedNames(in.Inputs) {
			visitInput(in.Inputs[name])
		}
	}
	slir.Walk(script.Stack, func(b *slir.StackBlock) {
		for _, name := range sortedNames(b.Inputs) {
			visitInput(b.Inputs[name])
		}
		addList(b.Fields["LIST_ID"], b.Fields["LIST"])
		// data_setvariableto/data_changevariableby target a variable
		// named in a field rather than an input; collect those too.
		if b.Opcode != "data_setvariableto" && b.Opcode != "data_changevariableby" {
			return
		}
		id := b.Fields["VARIABLE_ID"]
		if id != "" && !seenVar[id] {
			seenVar[id] = true
			name, scope, ok := g.project.VariableScope(target, id)
			if !ok {
				name, scope = b.Fields["VARIABLE"], "target"
			}
			script.CachedVariables = append(script.CachedVariables, slir.VarRef{ID: id, Name: name, Scope: scope})
		}
	})
}
