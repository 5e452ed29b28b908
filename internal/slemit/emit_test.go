package slemit

import (
	"strings"
	"testing"

	"scratchlove/internal/slgen"
	"scratchlove/internal/sloptimize"
	"scratchlove/internal/slproject"
)

func mustCompile(t *testing.T, fixture string) *Result {
	t.Helper()
	proj, err := slproject.LoadFixture([]byte(fixture))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	g := slgen.New(proj)
	ir, err := g.Generate(proj.Sprites[0], "hat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(g.Diagnostics) != 0 {
		t.Fatalf("unexpected generator diagnostics: %v", g.Diagnostics)
	}
	sloptimize.Optimize(ir)
	res, err := Emit(ir)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return res
}

func TestEmitMoveStepsFunctionShape(t *testing.T) {
	res := mustCompile(t, `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "move", "topLevel": true},
				{"id": "move", "opcode": "motion_movesteps", "parent": "hat",
					"inputs": {"STEPS": {"shadow": 1, "primitive": {"kind": "math", "value": "10"}}}}
			]
		}]
	}`)
	if res.EntryFunc != "Entry" {
		t.Fatalf("expected entry func name Entry, got %q", res.EntryFunc)
	}
	if !strings.Contains(res.Source, "func Entry(rt slruntime.Runtime, tgt slruntime.Target, th slruntime.Thread") {
		t.Fatalf("missing entry function signature:\n%s", res.Source)
	}
	if !strings.Contains(res.Source, "tgt.SetXY(") {
		t.Fatalf("expected motion_movesteps to lower to tgt.SetXY, got:\n%s", res.Source)
	}
	if !strings.Contains(res.Source, "package compiled") {
		t.Fatalf("missing package declaration:\n%s", res.Source)
	}
	if !strings.Contains(res.Source, "th.Stop()") {
		t.Fatalf("expected entry script to terminate with th.Stop():\n%s", res.Source)
	}
}

func TestEmitRepeatLoopYieldsEveryIteration(t *testing.T) {
	res := mustCompile(t, `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "rep", "topLevel": true},
				{"id": "rep", "opcode": "control_repeat", "parent": "hat",
					"inputs": {
						"TIMES": {"shadow": 1, "primitive": {"kind": "math", "value": "5"}},
						"SUBSTACK": {"blockId": "move"}
					}},
				{"id": "move", "opcode": "motion_movesteps", "parent": "rep",
					"inputs": {"STEPS": {"shadow": 1, "primitive": {"kind": "math", "value": "1"}}}}
			]
		}]
	}`)
	if !strings.Contains(res.Source, "for tmp1 := 0; tmp1 < tmp2; tmp1++ {") {
		t.Fatalf("expected a counted for loop, got:\n%s", res.Source)
	}
	if !strings.Contains(res.Source, "th.Yield(slruntime.YieldPlain)") {
		t.Fatalf("expected a plain yield inside the loop body, got:\n%s", res.Source)
	}
}

func TestEmitWarpRepeatUsesStuckCheckInsteadOfUnconditionalYield(t *testing.T) {
	res := mustCompile(t, `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "call", "topLevel": true},
				{"id": "call", "opcode": "procedures_call", "parent": "hat",
					"mutation": {"procCode": "loop", "argumentIds": [], "argumentNames": [], "warp": false}},
				{"id": "def", "opcode": "procedures_definition", "next": "rep", "topLevel": true,
					"mutation": {"procCode": "loop", "argumentIds": [], "argumentNames": [], "warp": true}},
				{"id": "rep", "opcode": "control_repeat", "parent": "def",
					"inputs": {
						"TIMES": {"shadow": 1, "primitive": {"kind": "math", "value": "5"}},
						"SUBSTACK": {"blockId": "move"}
					}},
				{"id": "move", "opcode": "motion_movesteps", "parent": "rep",
					"inputs": {"STEPS": {"shadow": 1, "primitive": {"kind": "math", "value": "1"}}}}
			]
		}]
	}`)
	if !strings.Contains(res.Source, "rt.IsStuck()") {
		t.Fatalf("expected warp procedure body to check rt.IsStuck(), got:\n%s", res.Source)
	}
}

func TestEmitProcedureCallPassesArgumentsInDefinitionOrder(t *testing.T) {
	res := mustCompile(t, `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "call", "topLevel": true},
				{"id": "call", "opcode": "procedures_call", "parent": "hat",
					"mutation": {"procCode": "jump %s by %s", "argumentIds": ["a", "b"], "argumentNames": ["first", "second"], "warp": false},
					"inputs": {
						"a": {"shadow": 1, "primitive": {"kind": "text", "value": "first-arg"}},
						"b": {"shadow": 1, "primitive": {"kind": "text", "value": "second-arg"}}
					}},
				{"id": "def", "opcode": "procedures_definition", "next": "body", "topLevel": true,
					"mutation": {"procCode": "jump %s by %s", "argumentIds": ["a", "b"], "argumentNames": ["first", "second"], "warp": false}},
				{"id": "body", "opcode": "motion_movesteps", "parent": "def",
					"inputs": {"STEPS": {"shadow": 1, "primitive": {"kind": "math", "value": "1"}}}}
			]
		}]
	}`)
	idx := strings.Index(res.Source, "Proc_jump")
	if idx < 0 {
		t.Fatalf("expected a generated Proc_jump function, got:\n%s", res.Source)
	}
	callSite := res.Source[strings.Index(res.Source, "func Entry"):]
	firstPos := strings.Index(callSite, `"first-arg"`)
	secondPos := strings.Index(callSite, `"second-arg"`)
	if firstPos < 0 || secondPos < 0 || firstPos > secondPos {
		t.Fatalf("expected call-site arguments in declared order first,second, got:\n%s", callSite)
	}
}

func TestEmitConstantsPreserveNegativeZeroAndNaN(t *testing.T) {
	res := mustCompile(t, `{
		"targets": [{
			"name": "Sprite1", "isStage": false,
			"blocks": [
				{"id": "hat", "opcode": "event_whenflagclicked", "next": "setNaN", "topLevel": true},
				{"id": "setNaN", "opcode": "data_setvariableto", "parent": "hat", "next": "setNegZero",
					"fields": {"VARIABLE_ID": "v", "VARIABLE": "v"},
					"inputs": {"VALUE": {"shadow": 1, "primitive": {"kind": "math", "value": "NaN"}}}},
				{"id": "setNegZero", "opcode": "data_setvariableto", "parent": "setNaN",
					"fields": {"VARIABLE_ID": "w", "VARIABLE": "w"},
					"inputs": {"VALUE": {"blockId": "mul"}}},
				{"id": "mul", "opcode": "operator_multiply",
					"inputs": {
						"NUM1": {"shadow": 1, "primitive": {"kind": "math", "value": "-1"}},
						"NUM2": {"shadow": 1, "primitive": {"kind": "math", "value": "0"}}
					}}
			]
		}]
	}`)
	if !strings.Contains(res.Source, "math.NaN()") {
		t.Fatalf("expected NaN constant to lower to math.NaN(), got:\n%s", res.Source)
	}
	if !strings.Contains(res.Source, "math.Copysign(0, -1)") {
		t.Fatalf("expected folded -1*0 to lower to math.Copysign(0, -1), got:\n%s", res.Source)
	}
}
