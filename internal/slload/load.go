// Package slload loads emitted Go source as an executable artifact.
// Source is round-tripped through go/parser+go/format first to catch
// malformed output with a cheap, precise diagnostic before ever
// reaching yaegi; yaegi then evaluates it in-process and the compiled
// functions are resolved by name.
package slload

import (
	"fmt"
	"go/format"
	"go/parser"
	"go/token"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"scratchlove/internal/slemit"
	"scratchlove/internal/slerr"
	"scratchlove/internal/slir"
	"scratchlove/internal/slruntime"
)

// excerptWindow is the prefix/suffix length kept in a load-failure
// diagnostic's source excerpt.
const excerptWindow = 200

// ScriptFunc is the callable shape every emitted script/procedure
// variant renders to.
type ScriptFunc func(rt slruntime.Runtime, tgt slruntime.Target, th slruntime.Thread, args ...slruntime.Value) (slruntime.Value, error)

// Loaded is one Emit result turned into directly callable Go values.
type Loaded struct {
	Entry      ScriptFunc
	Procedures map[slir.ProcVariant]ScriptFunc
}

// Load validates res.Source, then loads it into a fresh yaegi
// interpreter and resolves the entry and every procedure-variant
// function by name. Every failure path returns a *slerr.Error of Kind
// EmitLoadFailure; format and interpreter failures carry a source
// excerpt, function-lookup failures do not. The caller (the compile
// driver) fills in the script id it already has, since this package
// only knows the rendered source.
func Load(res *slemit.Result) (*Loaded, error) {
	formatted, err := format.Source([]byte(res.Source))
	if err != nil {
		return nil, loadFailure(fmt.Sprintf("emitted source does not parse: %v", describeParseError(res.Source, err)), res.Source)
	}

	interp := newInterpreter()
	if _, err := interp.Eval(string(formatted)); err != nil {
		return nil, loadFailure(fmt.Sprintf("emitted source failed to load: %v", err), string(formatted))
	}

	entry, err := lookup(interp, res.EntryFunc)
	if err != nil {
		return nil, err
	}

	procs := make(map[slir.ProcVariant]ScriptFunc, len(res.ProcFuncs))
	for variant, name := range res.ProcFuncs {
		fn, err := lookup(interp, name)
		if err != nil {
			return nil, err
		}
		procs[variant] = fn
	}

	return &Loaded{Entry: entry, Procedures: procs}, nil
}

func newInterpreter() *interp.Interpreter {
	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	i.Use(Symbols)
	return i
}

// describeParseError re-parses malformed source with go/parser to get
// a more actionable message than go/format's bare error, since
// go/format's error does not always include a file position.
func describeParseError(source string, fallback error) error {
	fset := token.NewFileSet()
	if _, perr := parser.ParseFile(fset, "", source, parser.AllErrors); perr != nil {
		return perr
	}
	return fallback
}

func lookup(i *interp.Interpreter, name string) (ScriptFunc, error) {
	v, err := i.Eval(slemit.PackageName + "." + name)
	if err != nil {
		return nil, loadFailure(fmt.Sprintf("compiled function %q not found after load: %v", name, err), "")
	}
	fn, ok := v.Interface().(func(slruntime.Runtime, slruntime.Target, slruntime.Thread, ...slruntime.Value) (slruntime.Value, error))
	if !ok {
		return nil, loadFailure(fmt.Sprintf("compiled function %q has an unexpected signature", name), "")
	}
	return fn, nil
}

func loadFailure(message, excerptSource string) *slerr.Error {
	e := slerr.New(slerr.EmitLoadFailure, message, "", "", "")
	if excerptSource != "" {
		e = e.WithExcerpt(excerptSource, excerptWindow)
	}
	return e
}
