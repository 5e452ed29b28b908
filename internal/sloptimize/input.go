package sloptimize

import (
	"scratchlove/internal/slir"
	"scratchlove/internal/svalue"
)

// numberType is the comparison rewrite's threshold: both operands
// statically NUMBER (never NaN, never string-numeric).
const numberType = svalue.Number

// castValue evaluates a cast over a constant using exactly
// internal/svalue's semantics, the same function internal/slgen's
// generator uses at generation time — folding here must agree with
// folding there.
func castValue(v interface{}, target svalue.Type) interface{} {
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

// rewriteInput rewrites an input expression tree bottom-up: children
// first, then this node. The rewrites that apply at this level:
//
//   - Variable/list narrowing: a data_variable or data_listcontents
//     read picks up the statically-known type of the slot it reads
//     from the type-state map threaded in from the enclosing stack
//     block, rather than staying at the generator's conservative ANY.
//     This is what lets a read immediately following a set (e.g.
//     "set v to 5" then "move v steps") shed its runtime cast.
//   - Cast elimination / re-folding: once a cast's child has been
//     rewritten (including the narrowing above), re-run slir.ToType
//     against it — this folds casts whose argument became constant
//     only after a descendant operator was folded, and eliminates
//     casts whose child's type has since narrowed to a subtype of the
//     cast's target.
//   - Constant folding: an operator node whose every operand is now a
//     CONSTANT is evaluated at compile time and replaced outright.
//
// Comparison rewriting is also applied here: a comparison whose
// operands are both statically NUMBER is marked NumericCompare for the
// emitter, even when it cannot be folded to a constant.
func (r *rewriter) rewriteInput(in *slir.Input, entry slir.StateMap) *slir.Input {
	if in == nil {
		return nil
	}

	switch in.Opcode {
	case "data_variable":
		in.Type = get(entry, VarKey(in.VarID))
	case "data_listcontents":
		in.Type = get(entry, ListKey(in.VarID))
	}

	for name, child := range in.Inputs {
		in.Inputs[name] = r.rewriteInput(child, entry)
	}

	switch in.Opcode {
	case slir.OpCastBoolean, slir.OpCastNumber, slir.OpCastNumberOrNaN, slir.OpCastString:
		return r.rewriteCast(in)
	}

	if isOperatorOpcode(in.Opcode) {
		return r.rewriteOperator(in)
	}
	return in
}

func isOperatorOpcode(opcode string) bool {
	switch opcode {
	case "operator_add", "operator_subtract", "operator_multiply", "operator_divide",
		"operator_mod", "operator_and", "operator_or", "operator_not", "operator_join",
		"operator_equals", "operator_gt", "operator_lt", "operator_length", "operator_mathop":
		return true
	default:
		return false
	}
}

// rewriteCast re-evaluates a cast node against its (possibly just
// rewritten) child, folding or eliminating it when possible. Unlike
// slir.ToType (used at generation time, when a cast's own target op
// is still being chosen), this only ever narrows an existing cast
// node, so it tracks r.changed precisely instead of on every call.
func (r *rewriter) rewriteCast(in *slir.Input) *slir.Input {
	child := in.Inputs["value"]
	if child == nil {
		return in
	}
	if child.IsAlwaysType(in.Type) {
		r.changed = true
		return child
	}
	if child.Opcode == slir.OpConstant {
		r.changed = true
		return slir.NewConstant(castValue(child.Value, in.Type), in.SourceID)
	}
	return in
}

// rewriteOperator folds an operator node whose operands are all
// constants, and marks a comparison NumericCompare when both operands
// are statically NUMBER even if not constant.
func (r *rewriter) rewriteOperator(in *slir.Input) *slir.Input {
	switch in.Opcode {
	case "operator_equals", "operator_gt", "operator_lt":
		a, b := in.Inputs["OPERAND1"], in.Inputs["OPERAND2"]
		if a != nil && b != nil && a.IsAlwaysType(numberType) && b.IsAlwaysType(numberType) {
			if !in.NumericCompare {
				in.NumericCompare = true
				r.changed = true
			}
		}
	}

	if !allConstant(in.Inputs) {
		return in
	}
	operands := make(map[string]interface{}, len(in.Inputs))
	for name, child := range in.Inputs {
		operands[name] = child.Value
	}
	folded, ok := foldOperator(in.Opcode, operands, in.Fields)
	if !ok {
		return in
	}
	r.changed = true
	return slir.NewConstant(folded, in.SourceID)
}

func allConstant(inputs map[string]*slir.Input) bool {
	if len(inputs) == 0 {
		return false
	}
	for _, in := range inputs {
		if in == nil || in.Opcode != slir.OpConstant {
			return false
		}
	}
	return true
}
