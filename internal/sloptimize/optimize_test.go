package sloptimize

import (
	"math"
	"testing"

	"scratchlove/internal/slir"
	"scratchlove/internal/svalue"
)

func constInput(v interface{}) *slir.Input {
	return slir.NewConstant(v, "test")
}

func TestConstantFoldingMatchesRuntimeHelperValue(t *testing.T) {
	// Every constant-only operator node must fold to a CONSTANT whose
	// value equals running the runtime helper on the same constants.
	add := &slir.Input{
		Opcode: "operator_add",
		Type:   svalue.NumberOrNaN,
		Inputs: map[string]*slir.Input{"NUM1": constInput(2.0), "NUM2": constInput(3.0)},
	}
	r := &rewriter{}
	got := r.rewriteInput(add, slir.StateMap{})
	if got.Opcode != slir.OpConstant {
		t.Fatalf("expected folded constant, got opcode %q", got.Opcode)
	}
	want := svalue.CastNumberOrNaN(2.0) + svalue.CastNumberOrNaN(3.0)
	if got.Value != want {
		t.Fatalf("folded value %v does not match runtime helper result %v", got.Value, want)
	}
	if !r.changed {
		t.Fatal("expected rewriter.changed to be set")
	}
}

func TestNegativeZeroFoldingPreserved(t *testing.T) {
	mul := &slir.Input{
		Opcode: "operator_multiply",
		Type:   svalue.NumberOrNaN,
		Inputs: map[string]*slir.Input{"NUM1": constInput(-1.0), "NUM2": constInput(0.0)},
	}
	r := &rewriter{}
	got := r.rewriteInput(mul, slir.StateMap{})
	n, ok := got.Value.(float64)
	if !ok || n != 0 || !math.Signbit(n) {
		t.Fatalf("expected folded value to be negative zero, got %#v", got.Value)
	}
	if got.Type != svalue.NumberNegZero {
		t.Fatalf("expected NEG_ZERO classification, got %v", got.Type)
	}
}

func TestCastEliminationNoOpWhenAlreadySubtype(t *testing.T) {
	child := &slir.Input{Opcode: "data_variable", Type: svalue.Any, VarID: "v1"}
	cast := &slir.Input{
		Opcode: slir.OpCastNumber,
		Type:   svalue.Number,
		Inputs: map[string]*slir.Input{"value": child},
	}
	entry := slir.StateMap{VarKey("v1"): svalue.Number}
	r := &rewriter{}
	got := r.rewriteInput(cast, entry)
	if got != child {
		t.Fatalf("expected cast eliminated in favor of child, got %#v", got)
	}
	if !r.changed {
		t.Fatal("expected rewriter.changed to be set")
	}
}

func TestCastRetainedWhenChildNotConstantOrSubtype(t *testing.T) {
	child := &slir.Input{Opcode: "data_variable", Type: svalue.Any, VarID: "v1"}
	cast := &slir.Input{
		Opcode: slir.OpCastNumber,
		Type:   svalue.Number,
		Inputs: map[string]*slir.Input{"value": child},
	}
	r := &rewriter{}
	got := r.rewriteInput(cast, slir.StateMap{})
	if got != cast {
		t.Fatalf("expected cast retained, got %#v", got)
	}
	if r.changed {
		t.Fatal("did not expect a change")
	}
}

func TestNumericCompareMarkedForStaticNumberOperands(t *testing.T) {
	eq := &slir.Input{
		Opcode: "operator_equals",
		Type:   svalue.Boolean,
		Inputs: map[string]*slir.Input{
			"OPERAND1": {Opcode: "data_variable", VarID: "a"},
			"OPERAND2": {Opcode: "data_variable", VarID: "b"},
		},
	}
	entry := slir.StateMap{VarKey("a"): svalue.Number, VarKey("b"): svalue.Number}
	r := &rewriter{}
	got := r.rewriteInput(eq, entry)
	if !got.NumericCompare {
		t.Fatal("expected NumericCompare to be set for two static-NUMBER operands")
	}
}

func TestNumericCompareNotMarkedWhenOperandMightBeString(t *testing.T) {
	eq := &slir.Input{
		Opcode: "operator_equals",
		Type:   svalue.Boolean,
		Inputs: map[string]*slir.Input{
			"OPERAND1": {Opcode: "data_variable", VarID: "a"},
			"OPERAND2": {Opcode: "data_variable", VarID: "b"},
		},
	}
	entry := slir.StateMap{VarKey("a"): svalue.Number}
	r := &rewriter{}
	got := r.rewriteInput(eq, entry)
	if got.NumericCompare {
		t.Fatal("did not expect NumericCompare when one operand may be non-numeric")
	}
}

func TestVariableReadNarrowedAfterSet(t *testing.T) {
	setVar := &slir.StackBlock{
		Opcode: "data_setvariableto",
		Fields: map[string]string{"VARIABLE_ID": "v1"},
		Inputs: map[string]*slir.Input{"VALUE": constInput(5.0)},
	}
	readVar := &slir.Input{Opcode: "data_variable", Type: svalue.Any, VarID: "v1"}
	cast := &slir.Input{Opcode: slir.OpCastNumber, Type: svalue.Number, Inputs: map[string]*slir.Input{"value": readVar}}
	useVar := &slir.StackBlock{Opcode: "motion_movesteps", Inputs: map[string]*slir.Input{"STEPS": cast}}

	r := &rewriter{}
	r.rewriteStack([]*slir.StackBlock{setVar, useVar}, slir.StateMap{})

	steps := useVar.Inputs["STEPS"]
	if steps.Opcode != "data_variable" {
		t.Fatalf("expected cast eliminated once the read picked up the narrowed type from the preceding set, got %#v", steps)
	}
	if !r.changed {
		t.Fatal("expected rewriter.changed to be set")
	}
}

func TestDeadBranchEliminationFoldsToTakenBranch(t *testing.T) {
	setX := &slir.StackBlock{Opcode: "motion_setx", Inputs: map[string]*slir.Input{"X": constInput(42.0)}}
	setBad := &slir.StackBlock{Opcode: "motion_setx", Inputs: map[string]*slir.Input{"X": constInput(-1.0)}}
	ifElse := &slir.StackBlock{
		Opcode: "control_if_else",
		Inputs: map[string]*slir.Input{"CONDITION": constInput(true)},
		Subs: map[string][]*slir.StackBlock{
			"whenTrue":  {setX},
			"whenFalse": {setBad},
		},
	}
	r := &rewriter{}
	out, _ := r.rewriteStack([]*slir.StackBlock{ifElse}, slir.StateMap{})
	if len(out) != 1 || out[0] != setX {
		t.Fatalf("expected fold to the then-branch only, got %#v", out)
	}
	if !r.changed {
		t.Fatal("expected rewriter.changed to be set")
	}
}

func TestRepeatWithNonPositiveConstantFoldsToNoOp(t *testing.T) {
	body := []*slir.StackBlock{{Opcode: "motion_setx", Inputs: map[string]*slir.Input{"X": constInput(1.0)}}}
	repeat := &slir.StackBlock{
		Opcode: "control_repeat",
		Inputs: map[string]*slir.Input{"TIMES": constInput(0.0)},
		Subs:   map[string][]*slir.StackBlock{"do": body},
	}
	r := &rewriter{}
	out, exit := r.rewriteStack([]*slir.StackBlock{repeat}, slir.StateMap{})
	if len(out) != 0 {
		t.Fatalf("expected repeat 0 to fold away entirely, got %#v", out)
	}
	if len(exit) != 0 {
		t.Fatalf("expected unchanged (empty) exit state, got %#v", exit)
	}
}

func TestRepeatUntilConstantFalseBecomesForever(t *testing.T) {
	body := []*slir.StackBlock{{Opcode: "motion_setx", Inputs: map[string]*slir.Input{"X": constInput(1.0)}}}
	loop := &slir.StackBlock{
		Opcode: "control_repeat_until",
		Inputs: map[string]*slir.Input{"CONDITION": constInput(false)},
		Subs:   map[string][]*slir.StackBlock{"do": body},
	}
	r := &rewriter{}
	out, _ := r.rewriteStack([]*slir.StackBlock{loop}, slir.StateMap{})
	if len(out) != 1 || out[0].Opcode != "control_forever" {
		t.Fatalf("expected rewrite to control_forever, got %#v", out)
	}
	if _, stillPresent := out[0].Inputs["CONDITION"]; stillPresent {
		t.Fatal("CONDITION input should be removed once rewritten to forever")
	}
}

func TestRepeatUntilConstantTrueFoldsToNoOp(t *testing.T) {
	body := []*slir.StackBlock{{Opcode: "motion_setx", Inputs: map[string]*slir.Input{"X": constInput(1.0)}}}
	loop := &slir.StackBlock{
		Opcode: "control_repeat_until",
		Inputs: map[string]*slir.Input{"CONDITION": constInput(true)},
		Subs:   map[string][]*slir.StackBlock{"do": body},
	}
	r := &rewriter{}
	out, _ := r.rewriteStack([]*slir.StackBlock{loop}, slir.StateMap{})
	if len(out) != 0 {
		t.Fatalf("expected repeat-until(true) to fold to no-op, got %#v", out)
	}
}

func TestProcedureCallClobbersTypeState(t *testing.T) {
	setVar := &slir.StackBlock{
		Opcode: "data_setvariableto",
		Fields: map[string]string{"VARIABLE_ID": "v1"},
		Inputs: map[string]*slir.Input{"VALUE": constInput(5.0)},
	}
	call := &slir.StackBlock{Opcode: "procedures_call", Fields: map[string]string{"PROC_CODE": "helper"}}
	r := &rewriter{}
	_, exit := r.rewriteStack([]*slir.StackBlock{setVar, call}, slir.StateMap{})
	if got := exit[VarKey("v1")]; got != svalue.Any {
		t.Fatalf("expected var:v1 clobbered to ANY after procedure call, got %v", got)
	}
}

func TestSetVariableNarrowsExactly(t *testing.T) {
	setVar := &slir.StackBlock{
		Opcode: "data_setvariableto",
		Fields: map[string]string{"VARIABLE_ID": "v1"},
		Inputs: map[string]*slir.Input{"VALUE": constInput(5.0)},
	}
	r := &rewriter{}
	_, exit := r.rewriteStack([]*slir.StackBlock{setVar}, slir.StateMap{})
	if got := exit[VarKey("v1")]; got != svalue.NumberPosInt {
		t.Fatalf("expected var:v1 narrowed to NUMBER_POS_INT, got %v", got)
	}
}

func TestChangeVariableJoinsWithNumberOrNaN(t *testing.T) {
	change := &slir.StackBlock{
		Opcode: "data_changevariableby",
		Fields: map[string]string{"VARIABLE_ID": "v1"},
		Inputs: map[string]*slir.Input{"VALUE": constInput(1.0)},
	}
	entry := slir.StateMap{VarKey("v1"): svalue.String}
	r := &rewriter{}
	_, exit := r.rewriteStack([]*slir.StackBlock{change}, entry)
	got := exit[VarKey("v1")]
	if !svalue.AlwaysType(svalue.String, got) || !svalue.AlwaysType(svalue.NumberOrNaN, got) {
		t.Fatalf("expected join of STRING and NUMBER_OR_NAN, got %v", got)
	}
}

func TestOptimizeScriptReachesFixPoint(t *testing.T) {
	// A cast wrapping an operator that only becomes constant after one
	// rewrite pass: rewriteInput handles both within a single bottom-up
	// walk, so one call to optimizeScript must already reach the
	// fix-point; running it again must not change anything further.
	add := &slir.Input{
		Opcode: "operator_add",
		Type:   svalue.NumberOrNaN,
		Inputs: map[string]*slir.Input{"NUM1": constInput(1.0), "NUM2": constInput(2.0)},
	}
	cast := &slir.Input{Opcode: slir.OpCastNumber, Type: svalue.Number, Inputs: map[string]*slir.Input{"value": add}}
	move := &slir.StackBlock{Opcode: "motion_movesteps", Inputs: map[string]*slir.Input{"STEPS": cast}}
	script := &slir.Script{Stack: []*slir.StackBlock{move}}

	optimizeScript(script)

	steps := script.Stack[0].Inputs["STEPS"]
	if steps.Opcode != slir.OpConstant || steps.Value != 3.0 {
		t.Fatalf("expected STEPS folded to constant 3, got %#v", steps)
	}

	r := &rewriter{}
	r.rewriteStack(script.Stack, slir.StateMap{})
	if r.changed {
		t.Fatal("expected a second rewrite pass over the converged script to change nothing")
	}
}
