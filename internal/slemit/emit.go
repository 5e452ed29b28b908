// Package slemit implements the code emitter: it lowers an optimized
// slir.IR into Go source text whose evaluation produces Scratch's
// observable behavior. The target language is fixed to Go since the
// host runtime consuming this module is itself written in Go — the
// direct analogue of upstream Scratch compiling to JavaScript via
// new Function(...).
//
// Every script (entry or procedure variant) reachable from one
// compile becomes one function in a single rendered source file, so a
// procedures_call lowers to a direct, same-package Go function call
// rather than an indirection through a separately loaded artifact.
package slemit

import (
	"fmt"
	"sort"
	"strings"

	"scratchlove/internal/slerr"
	"scratchlove/internal/slir"
)

// PackageName is the package declared at the top of every rendered
// source file. The compile driver loads each IR's rendered file into
// its own yaegi interpreter instance, so collisions across IRs don't
// matter.
const PackageName = "compiled"

// Result is the emitter's output for one IR: formatted-free Go source
// text (slload.Load round-trips it through go/parser+go/format before
// loading it) plus the names the driver needs to look the compiled
// functions up by.
type Result struct {
	Source      string
	EntryFunc   string
	ProcFuncs   map[slir.ProcVariant]string
	UsedHelpers map[string]bool
}

// emitter accumulates the function bodies and import set for one
// Emit call.
type emitter struct {
	imports map[string]bool
	helpers map[string]bool
}

// Emit renders ir's entry script and every procedure variant it
// depends on into one Go source file, traversing and compiling every
// procedure reachable from the entry.
func Emit(ir *slir.IR) (*Result, error) {
	e := &emitter{
		imports: map[string]bool{"scratchlove/internal/slruntime": true},
		helpers: map[string]bool{},
	}

	var funcs []string
	entryFunc := funcName(slir.ProcVariant{}, true)
	body, err := e.emitFunction(entryFunc, ir.Entry)
	if err != nil {
		return nil, err
	}
	funcs = append(funcs, body)

	procFuncs := make(map[slir.ProcVariant]string, len(ir.Procedures))
	variants := sortedVariants(ir.Procedures)
	for _, variant := range variants {
		name := funcName(variant, false)
		procFuncs[variant] = name
		body, err := e.emitFunction(name, ir.Procedures[variant])
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, body)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "package %s\n\n", PackageName)
	if len(e.imports) > 0 {
		sb.WriteString("import (\n")
		names := make([]string, 0, len(e.imports))
		for p := range e.imports {
			names = append(names, p)
		}
		sort.Strings(names)
		for _, p := range names {
			fmt.Fprintf(&sb, "\t%q\n", p)
		}
		sb.WriteString(")\n\n")
	}
	for _, f := range funcs {
		sb.WriteString(f)
		sb.WriteString("\n\n")
	}

	source := sb.String()
	for _, h := range []string{"CastBoolean", "CastNumber", "CastNumberOrNaN", "CastString", "Compare", "Mathop", "ScratchMod", "ListIndex", "Clamp"} {
		if strings.Contains(source, "svalue."+h+"(") {
			e.helpers[h] = true
		}
	}

	return &Result{
		Source:      source,
		EntryFunc:   entryFunc,
		ProcFuncs:   procFuncs,
		UsedHelpers: e.helpers,
	}, nil
}

func sortedVariants(m map[slir.ProcVariant]*slir.Script) []slir.ProcVariant {
	out := make([]slir.ProcVariant, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return !out[i].Warp && out[j].Warp
	})
	return out
}

func (e *emitter) use(pkg string) { e.imports[pkg] = true }

// emitFunction renders one script's function: prologue (padding a
// procedure's missing arguments with ""), variable-cache declarations, an
// unconditional entry yield for executable-hat scripts, the lowered
// body, and a terminator.
func (e *emitter) emitFunction(name string, script *slir.Script) (string, error) {
	ctx := &exprCtx{slots: newSlotNames(script), argIndex: map[string]int{}, script: script}
	for i, n := range script.ArgNames {
		ctx.argIndex[n] = i
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(rt slruntime.Runtime, tgt slruntime.Target, th slruntime.Thread, args ...slruntime.Value) (slruntime.Value, error) {\n", name)

	if script.IsProcedure && len(script.ArgNames) > 0 {
		fmt.Fprintf(&sb, "\tfor len(args) < %d {\n\t\targs = append(args, \"\")\n\t}\n", len(script.ArgNames))
	}

	e.emitVariableCache(&sb, script)

	if script.HasHat && script.HatIsExecutable {
		sb.WriteString("\tth.Yield(slruntime.YieldPlain)\n")
	}

	st := &stmtEmitter{e: e, ctx: ctx, script: script}
	if err := st.emitStack(&sb, script.Stack, 1); err != nil {
		return "", err
	}

	if script.IsProcedure {
		sb.WriteString("\treturn \"\", nil\n")
	} else {
		sb.WriteString("\tth.Stop()\n\treturn \"\", nil\n")
	}
	sb.WriteString("}")
	return sb.String(), nil
}

// emitVariableCache declares one binding per distinct variable/list
// the generator's caching hints recorded, resolved once up front into
// a positional slot rather than looked up by name on every access.
func (e *emitter) emitVariableCache(sb *strings.Builder, script *slir.Script) {
	for i, v := range script.CachedVariables {
		fmt.Fprintf(sb, "\tv%d := rt.ResolveVariable(%q, %q, %q)\n", i, v.ID, v.Name, v.Scope)
	}
	for i, v := range script.CachedLists {
		fmt.Fprintf(sb, "\tl%d := rt.ResolveList(%q, %q, %q)\n", i, v.ID, v.Name, v.Scope)
	}
}

// wrapUnhandled builds an UnknownOpcode slerr.Error for a stack opcode
// the emitter has no lowering for, so package callers (the compile
// driver) can type-assert it the same way slgen/sloptimize errors are
// handled.
func wrapUnhandled(opcode, sourceID string) error {
	return slerr.New(slerr.UnknownOpcode, fmt.Sprintf("no emitter lowering for stack opcode %q", opcode), "", sourceID, opcode)
}
