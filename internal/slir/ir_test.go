package slir

import (
	"testing"

	"scratchlove/internal/svalue"
)

func TestToTypeNoOpWhenAlreadySubtype(t *testing.T) {
	e := NewConstant(3.0, "b1")
	e.Type = svalue.NumberPosInt
	out := ToType(e, svalue.Number, nil)
	if out != e {
		t.Fatal("ToType must be a no-op when e.Type is already a subset of the target")
	}
}

func TestToTypeFoldsConstant(t *testing.T) {
	e := NewConstant("42", "b1")
	fold := func(v interface{}, target svalue.Type) interface{} {
		return svalue.CastNumber(v)
	}
	out := ToType(e, svalue.Number, fold)
	if out.Opcode != OpConstant {
		t.Fatalf("ToType on a constant must fold, got opcode %q", out.Opcode)
	}
	if out.Value.(float64) != 42 {
		t.Fatalf("folded value = %v, want 42", out.Value)
	}
	if !out.IsAlwaysType(svalue.Number) {
		t.Fatal("folded cast output type must equal the cast target (invariant 2)")
	}
}

func TestToTypeWrapsNonConstant(t *testing.T) {
	e := &Input{Opcode: "data_variable", Type: svalue.Any, SourceID: "b1"}
	out := ToType(e, svalue.Boolean, nil)
	if out.Opcode != OpCastBoolean {
		t.Fatalf("ToType on a non-constant must wrap in a cast, got %q", out.Opcode)
	}
	if out.Type != svalue.Boolean {
		t.Fatal("cast node output type must equal the cast's target type (invariant 2)")
	}
	if out.Inputs["value"] != e {
		t.Fatal("cast node must wrap the original subtree")
	}
}

func TestJoinIsUnion(t *testing.T) {
	a := StateMap{"var:x": svalue.NumberPosInt}
	b := StateMap{"var:x": svalue.NumberNegInt, "var:y": svalue.String}
	j := Join(a, b)
	if j["var:x"] != svalue.NumberPosInt|svalue.NumberNegInt {
		t.Errorf("join of var:x = %v, want union", j["var:x"])
	}
	if j["var:y"] != svalue.Any {
		t.Errorf("join of var:y = %v, want ANY: a key missing from one side counts as ANY", j["var:y"])
	}
}

func TestWalkVisitsSubStacksInOrder(t *testing.T) {
	then := &StackBlock{Opcode: "data_setvariableto"}
	els := &StackBlock{Opcode: "data_changevariableby"}
	ifElse := &StackBlock{
		Opcode: "control_if_else",
		Subs:   map[string][]*StackBlock{"whenTrue": {then}, "whenFalse": {els}},
	}
	var seen []string
	Walk([]*StackBlock{ifElse}, func(b *StackBlock) { seen = append(seen, b.Opcode) })
	want := []string{"control_if_else", "data_setvariableto", "data_changevariableby"}
	if len(seen) != len(want) {
		t.Fatalf("Walk visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Walk order = %v, want %v", seen, want)
		}
	}
}
