package slgen

import (
	"strings"
	"testing"

	"scratchlove/internal/slir"
	"scratchlove/internal/slproject"
)

func mustLoad(t *testing.T, fixture string) *slproject.Project {
	t.Helper()
	proj, err := slproject.LoadFixture([]byte(fixture))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return proj
}

func TestGenerateSimpleMotionScript(t *testing.T) {
	proj := mustLoad(t, `{
		"targets": [{
			"name": "Sprite1",
			"isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "move", "topLevel": true},
				{"id": "move", "opcode": "motion_movesteps", "parent": "hat",
					"inputs": {"STEPS": {"shadow": 1, "primitive": {"kind": "math", "value": "10"}}}}
			]
		}]
	}`)

	g := New(proj)
	ir, err := g.Generate(proj.Sprites[0], "hat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ir.Entry.Stack) != 1 {
		t.Fatalf("expected 1 stack block, got %d", len(ir.Entry.Stack))
	}
	move := ir.Entry.Stack[0]
	if move.Opcode != "motion_movesteps" {
		t.Fatalf("unexpected opcode %q", move.Opcode)
	}
	steps := move.Inputs["STEPS"]
	if steps == nil || !steps.IsConstant(10.0) {
		t.Fatalf("expected STEPS to fold to constant 10, got %#v", steps)
	}
	if len(g.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", g.Diagnostics)
	}
}

func TestUnknownStackOpcodeWarns(t *testing.T) {
	proj := mustLoad(t, `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "mystery", "topLevel": true},
				{"id": "mystery", "opcode": "sensing_totallyunknownblock", "parent": "hat"}
			]
		}]
	}`)
	g := New(proj)
	ir, err := g.Generate(proj.Sprites[0], "hat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ir.Entry.Stack) != 0 {
		t.Fatalf("unknown opcode should lower to no-op, got %d blocks", len(ir.Entry.Stack))
	}
	if len(g.Diagnostics) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(g.Diagnostics))
	}
	if !strings.Contains(g.Diagnostics[0].Message, "unhandled") {
		t.Fatalf("unexpected diagnostic message %q", g.Diagnostics[0].Message)
	}
}

func TestConditionCastInsertedForNonBooleanCondition(t *testing.T) {
	// CONDITION fed a string constant; the generator must wrap it in a
	// boolean cast rather than pass it through untyped.
	proj := mustLoad(t, `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "branch", "topLevel": true},
				{"id": "branch", "opcode": "control_if", "parent": "hat",
					"inputs": {
						"CONDITION": {"shadow": 1, "primitive": {"kind": "text", "value": "true"}},
						"SUBSTACK": {"shadow": 2, "blockId": ""}
					}}
			]
		}]
	}`)
	g := New(proj)
	ir, err := g.Generate(proj.Sprites[0], "hat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	branch := ir.Entry.Stack[0]
	cond := branch.Inputs["CONDITION"]
	if cond.Opcode != slir.OpConstant {
		t.Fatalf("expected constant-folded cast, got opcode %q", cond.Opcode)
	}
	if cond.Value != true {
		t.Fatalf("CastBoolean(%q) should fold to true, got %#v", "true", cond.Value)
	}
}

func TestProcedureVariantMemoizedAcrossCallSites(t *testing.T) {
	fixture := `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat1", "opcode": "event_whenflagclicked", "next": "call1", "topLevel": true},
				{"id": "call1", "opcode": "procedures_call", "parent": "hat1", "next": "call2",
					"mutation": {"procCode": "helper %s", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "call2", "opcode": "procedures_call", "parent": "call1",
					"mutation": {"procCode": "helper %s", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "def", "opcode": "procedures_definition", "next": "body", "topLevel": true,
					"mutation": {"procCode": "helper %s", "argumentIds": ["x"], "argumentNames": ["x"], "warp": false}},
				{"id": "body", "opcode": "motion_movesteps", "parent": "def",
					"inputs": {"STEPS": {"shadow": 1, "primitive": {"kind": "math", "value": "1"}}}}
			]
		}]
	}`
	proj := mustLoad(t, fixture)
	g := New(proj)
	ir, err := g.Generate(proj.Sprites[0], "hat1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ir.Procedures) != 1 {
		t.Fatalf("expected exactly one generated procedure variant, got %d", len(ir.Procedures))
	}
	variant := slir.ProcVariant{Code: "helper %s", Warp: false}
	if _, ok := ir.Procedures[variant]; !ok {
		t.Fatalf("expected variant %+v to be present", variant)
	}
}

func TestRecursiveProcedureDoesNotHang(t *testing.T) {
	fixture := `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "call", "topLevel": true},
				{"id": "call", "opcode": "procedures_call", "parent": "hat",
					"mutation": {"procCode": "recur", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "def", "opcode": "procedures_definition", "next": "innercall", "topLevel": true,
					"mutation": {"procCode": "recur", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "innercall", "opcode": "procedures_call", "parent": "def",
					"mutation": {"procCode": "recur", "argumentIds": [], "argumentNames": [], "warp": false}}
			]
		}]
	}`
	proj := mustLoad(t, fixture)
	g := New(proj)
	if _, err := g.Generate(proj.Sprites[0], "hat"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	variant := slir.ProcVariant{Code: "recur", Warp: false}
	if _, ok := g.variants[variant]; !ok {
		t.Fatalf("expected recursive variant to finish generating once")
	}
}

func TestWarpCallSitePropagatesToCallee(t *testing.T) {
	fixture := `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "procedures_definition", "next": "call", "topLevel": true,
					"mutation": {"procCode": "outer", "argumentIds": [], "argumentNames": [], "warp": true}},
				{"id": "call", "opcode": "procedures_call", "parent": "hat",
					"mutation": {"procCode": "inner", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "def", "opcode": "procedures_definition", "next": "body", "topLevel": true,
					"mutation": {"procCode": "inner", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "body", "opcode": "control_wait", "parent": "def",
					"inputs": {"DURATION": {"shadow": 1, "primitive": {"kind": "math", "value": "1"}}}}
			]
		}]
	}`
	proj := mustLoad(t, fixture)
	g := New(proj)
	ir, err := g.Generate(proj.Sprites[0], "hat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// The outer procedure is warp; its call to "inner" must be compiled
	// under the caller's warp mode, not the callee's own declared mutation.
	variant := slir.ProcVariant{Code: "inner", Warp: true}
	if _, ok := ir.Procedures[variant]; !ok {
		t.Fatalf("expected callee to be specialized under caller's warp mode, got %v", keysOf(ir.Procedures))
	}
}

func TestNonWarpCallToNonYieldingCalleeStillYields(t *testing.T) {
	fixture := `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "call", "topLevel": true},
				{"id": "call", "opcode": "procedures_call", "parent": "hat",
					"mutation": {"procCode": "trivial", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "def", "opcode": "procedures_definition", "next": "body", "topLevel": true,
					"mutation": {"procCode": "trivial", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "body", "opcode": "motion_movesteps", "parent": "def",
					"inputs": {"STEPS": {"shadow": 1, "primitive": {"kind": "math", "value": "1"}}}}
			]
		}]
	}`
	proj := mustLoad(t, fixture)
	g := New(proj)
	ir, err := g.Generate(proj.Sprites[0], "hat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	variant := slir.ProcVariant{Code: "trivial", Warp: false}
	callee, ok := ir.Procedures[variant]
	if !ok {
		t.Fatalf("expected callee variant to be generated")
	}
	if callee.Yields {
		t.Fatalf("expected trivial non-warp callee body to not itself yield")
	}
	call := ir.Entry.Stack[0]
	if call.Opcode != "procedures_call" {
		t.Fatalf("expected procedures_call stack block, got %q", call.Opcode)
	}
	if !call.Yields {
		t.Fatal("expected a non-warp call to be a yield point even when the callee itself never yields")
	}
}

func keysOf(m map[slir.ProcVariant]*slir.Script) []slir.ProcVariant {
	out := make([]slir.ProcVariant, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
