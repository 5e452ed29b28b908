package sloptimize

import (
	"scratchlove/internal/svalue"
)

// foldOperator evaluates opcode over already-constant operands using
// exactly the value semantics of internal/svalue, so a folded constant
// always equals what the emitted runtime helper would compute. ok is
// false for opcodes this module does not know how to fold at compile
// time (the node is left as-is).
func foldOperator(opcode string, operands map[string]interface{}, fields map[string]string) (interface{}, bool) {
	switch opcode {
	case "operator_add":
		return svalue.CastNumberOrNaN(operands["NUM1"]) + svalue.CastNumberOrNaN(operands["NUM2"]), true
	case "operator_subtract":
		return svalue.CastNumberOrNaN(operands["NUM1"]) - svalue.CastNumberOrNaN(operands["NUM2"]), true
	case "operator_multiply":
		return svalue.CastNumberOrNaN(operands["NUM1"]) * svalue.CastNumberOrNaN(operands["NUM2"]), true
	case "operator_divide":
		return svalue.CastNumberOrNaN(operands["NUM1"]) / svalue.CastNumberOrNaN(operands["NUM2"]), true
	case "operator_mod":
		return svalue.ScratchMod(svalue.CastNumberOrNaN(operands["NUM1"]), svalue.CastNumberOrNaN(operands["NUM2"])), true
	case "operator_and":
		return svalue.CastBoolean(operands["OPERAND1"]) && svalue.CastBoolean(operands["OPERAND2"]), true
	case "operator_or":
		return svalue.CastBoolean(operands["OPERAND1"]) || svalue.CastBoolean(operands["OPERAND2"]), true
	case "operator_not":
		return !svalue.CastBoolean(operands["OPERAND"]), true
	case "operator_join":
		return svalue.CastString(operands["STRING1"]) + svalue.CastString(operands["STRING2"]), true
	case "operator_equals":
		return svalue.Compare(operands["OPERAND1"], operands["OPERAND2"]) == 0, true
	case "operator_gt":
		return svalue.Compare(operands["OPERAND1"], operands["OPERAND2"]) > 0, true
	case "operator_lt":
		return svalue.Compare(operands["OPERAND1"], operands["OPERAND2"]) < 0, true
	case "operator_length":
		return float64(len([]rune(svalue.CastString(operands["STRING"])))), true
	case "operator_mathop":
		return svalue.Mathop(fields["OPERATOR"], svalue.CastNumberOrNaN(operands["NUM"])), true
	default:
		return nil, false
	}
}
