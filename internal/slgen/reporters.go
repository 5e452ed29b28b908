package slgen

import (
	"scratchlove/internal/slerr"
	"scratchlove/internal/slir"
	"scratchlove/internal/slproject"
	"scratchlove/internal/svalue"
)

// lowerReporter lowers an input-side (reporter) block: operators,
// variable/list reads, and anything else that produces a value for a
// parent block's input slot. The input opcode space is distinct from
// the stack opcode space.
func (g *Generator) lowerReporter(target *slproject.Target, raw *slproject.RawBlock) (*slir.Input, error) {
	switch raw.Opcode {
	case "data_variable":
		id := raw.Fields["VARIABLE_ID"]
		name, scope, ok := g.project.VariableScope(target, id)
		if !ok {
			name, scope = raw.Fields["VARIABLE"], "target"
		}
		return &slir.Input{Opcode: "data_variable", Type: svalue.Any, Scope: scope, Name: name, VarID: id, SourceID: raw.ID}, nil
	case "data_listcontents":
		id := raw.Fields["LIST_ID"]
		name, scope, ok := g.project.ListScope(target, id)
		if !ok {
			name, scope = raw.Fields["LIST"], "target"
		}
		return &slir.Input{Opcode: "data_listcontents", Type: svalue.String, Scope: scope, Name: name, VarID: id, SourceID: raw.ID}, nil
	case "argument_reporter_string_number":
		return &slir.Input{Opcode: slir.OpArgRef, Type: svalue.Any, Name: raw.Fields["VALUE"], SourceID: raw.ID}, nil
	case "argument_reporter_boolean":
		return &slir.Input{Opcode: slir.OpArgRef, Type: svalue.BooleanInterpretable, Name: raw.Fields["VALUE"], SourceID: raw.ID}, nil
	case "data_itemoflist":
		return g.lowerOperator(target, raw, []string{"INDEX"}, nil)
	case "operator_equals", "operator_gt", "operator_lt":
		return g.lowerOperator(target, raw, []string{"OPERAND1", "OPERAND2"}, nil)
	case "operator_length":
		return g.lowerOperator(target, raw, []string{"STRING"}, nil)
	default:
		declared, isOperator := operatorInputTypes[raw.Opcode]
		if isOperator {
			names := make([]string, 0, len(declared))
			for n := range raw.Inputs {
				names = append(names, n)
			}
			return g.lowerOperator(target, raw, names, declared)
		}
		g.warn(slerr.New(slerr.UnknownOpcode, "unhandled reporter opcode, folded to empty string", "", raw.ID, raw.Opcode))
		return slir.NewConstant("", raw.ID), nil
	}
}

// lowerOperator lowers every named input (casting by declared when
// present) and attaches the operator's static output type.
func (g *Generator) lowerOperator(target *slproject.Target, raw *slproject.RawBlock, names []string, declared map[string]svalue.Type) (*slir.Input, error) {
	inputs := make(map[string]*slir.Input, len(names))
	for _, name := range names {
		in, err := g.lowerInputFromRaw(target, raw, name, declared)
		if err != nil {
			return nil, err
		}
		inputs[name] = in
	}
	outType, ok := operatorOutputTypes[raw.Opcode]
	if !ok {
		outType = svalue.Any
	}
	return &slir.Input{
		Opcode:   raw.Opcode,
		Type:     outType,
		Inputs:   inputs,
		Fields:   raw.Fields,
		SourceID: raw.ID,
	}, nil
}

// lowerInputFromRaw is lowerInputCast's sibling for reporter (input
// opcode) blocks, whose declared-type table is keyed differently
// (operatorInputTypes rather than inputTypes).
func (g *Generator) lowerInputFromRaw(target *slproject.Target, raw *slproject.RawBlock, name string, declared map[string]svalue.Type) (*slir.Input, error) {
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
	return slir.ToType(in, want, foldCast), nil
}
