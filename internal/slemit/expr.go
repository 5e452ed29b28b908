package slemit

import (
	"fmt"
	"math"
	"strconv"

	"scratchlove/internal/slerr"
	"scratchlove/internal/slir"
)

// exprCtx carries everything an input-lowering needs besides the
// input tree itself: the script's variable-cache slot names and its
// argument-name-to-position map (for ARG_REF).
type exprCtx struct {
	slots    *slotNames
	argIndex map[string]int
	script   *slir.Script
}

// lowerExpr renders one input expression tree as a Go expression, per
// §4.E's per-block lowerings. The expression's static type follows the
// node: float64, bool or string for constants, casts and operators;
// slruntime.Value for variable reads, list items and argument
// references.
func (e *emitter) lowerExpr(ctx *exprCtx, in *slir.Input) (string, error) {
	if in == nil {
		return `""`, nil
	}
	switch in.Opcode {
	case slir.OpConstant:
		return e.goLiteral(in.Value), nil
	case slir.OpCastBoolean:
		return e.lowerCast(ctx, in, "CastBoolean")
	case slir.OpCastNumber:
		return e.lowerCast(ctx, in, "CastNumber")
	case slir.OpCastNumberOrNaN:
		return e.lowerCast(ctx, in, "CastNumberOrNaN")
	case slir.OpCastString:
		return e.lowerCast(ctx, in, "CastString")
	case slir.OpArgRef:
		idx, ok := ctx.argIndex[in.Name]
		if !ok {
			return "", slerr.New(slerr.MalformedInput, fmt.Sprintf("argument reference %q does not match the enclosing procedure's parameters", in.Name), "", in.SourceID, in.Opcode)
		}
		return fmt.Sprintf("args[%d]", idx), nil
	case "data_variable":
		slot, ok := ctx.slots.variable(in.VarID)
		if !ok {
			return "", slerr.New(slerr.MalformedInput, fmt.Sprintf("variable %q read without a cache slot", in.VarID), "", in.SourceID, in.Opcode)
		}
		return slot + ".Get()", nil
	case "data_listcontents":
		slot, ok := ctx.slots.list(in.VarID)
		if !ok {
			return "", slerr.New(slerr.MalformedInput, fmt.Sprintf("list %q read without a cache slot", in.VarID), "", in.SourceID, in.Opcode)
		}
		return slot + ".Contents()", nil
	case "data_itemoflist":
		slot, ok := ctx.slots.list(in.Fields["LIST_ID"])
		if !ok {
			return "", slerr.New(slerr.MalformedInput, fmt.Sprintf("list %q indexed without a cache slot", in.Fields["LIST_ID"]), "", in.SourceID, in.Opcode)
		}
		idx, err := e.lowerExpr(ctx, in.Inputs["INDEX"])
		if err != nil {
			return "", err
		}
		e.use("scratchlove/internal/svalue")
		return fmt.Sprintf("%s.Item(svalue.ListIndex(%s, %s.Len()))", slot, idx, slot), nil
	case "operator_add", "operator_subtract", "operator_multiply", "operator_divide", "operator_mod":
		return e.lowerArith(ctx, in)
	case "operator_and":
		return e.lowerBoolBinary(ctx, in, "&&")
	case "operator_or":
		return e.lowerBoolBinary(ctx, in, "||")
	case "operator_not":
		operand, err := e.lowerExpr(ctx, in.Inputs["OPERAND"])
		if err != nil {
			return "", err
		}
		e.use("scratchlove/internal/svalue")
		return fmt.Sprintf("!svalue.CastBoolean(%s)", operand), nil
	case "operator_join":
		s1, err := e.lowerExpr(ctx, in.Inputs["STRING1"])
		if err != nil {
			return "", err
		}
		s2, err := e.lowerExpr(ctx, in.Inputs["STRING2"])
		if err != nil {
			return "", err
		}
		e.use("scratchlove/internal/svalue")
		return fmt.Sprintf("(svalue.CastString(%s) + svalue.CastString(%s))", s1, s2), nil
	case "operator_equals", "operator_gt", "operator_lt":
		return e.lowerComparison(ctx, in)
	case "operator_length":
		s, err := e.lowerExpr(ctx, in.Inputs["STRING"])
		if err != nil {
			return "", err
		}
		e.use("scratchlove/internal/svalue")
		return fmt.Sprintf("float64(len([]rune(svalue.CastString(%s))))", s), nil
	case "operator_mathop":
		n, err := e.lowerExpr(ctx, in.Inputs["NUM"])
		if err != nil {
			return "", err
		}
		e.use("scratchlove/internal/svalue")
		return fmt.Sprintf("svalue.Mathop(%s, %s)", strconv.Quote(in.Fields["OPERATOR"]), n), nil
	default:
		return "", slerr.New(slerr.CastTargetUnknown, fmt.Sprintf("no emitter lowering for input opcode %q", in.Opcode), "", in.SourceID, in.Opcode)
	}
}

func (e *emitter) lowerCast(ctx *exprCtx, in *slir.Input, helper string) (string, error) {
	child, err := e.lowerExpr(ctx, in.Inputs["value"])
	if err != nil {
		return "", err
	}
	e.use("scratchlove/internal/svalue")
	return fmt.Sprintf("svalue.%s(%s)", helper, child), nil
}

func (e *emitter) lowerArith(ctx *exprCtx, in *slir.Input) (string, error) {
	n1, err := e.lowerExpr(ctx, in.Inputs["NUM1"])
	if err != nil {
		return "", err
	}
	n2, err := e.lowerExpr(ctx, in.Inputs["NUM2"])
	if err != nil {
		return "", err
	}
	e.use("scratchlove/internal/svalue")
	switch in.Opcode {
	case "operator_add":
		return fmt.Sprintf("(svalue.CastNumberOrNaN(%s) + svalue.CastNumberOrNaN(%s))", n1, n2), nil
	case "operator_subtract":
		return fmt.Sprintf("(svalue.CastNumberOrNaN(%s) - svalue.CastNumberOrNaN(%s))", n1, n2), nil
	case "operator_multiply":
		return fmt.Sprintf("(svalue.CastNumberOrNaN(%s) * svalue.CastNumberOrNaN(%s))", n1, n2), nil
	case "operator_divide":
		return fmt.Sprintf("(svalue.CastNumberOrNaN(%s) / svalue.CastNumberOrNaN(%s))", n1, n2), nil
	default: // operator_mod
		return fmt.Sprintf("svalue.ScratchMod(svalue.CastNumberOrNaN(%s), svalue.CastNumberOrNaN(%s))", n1, n2), nil
	}
}

func (e *emitter) lowerBoolBinary(ctx *exprCtx, in *slir.Input, op string) (string, error) {
	a, err := e.lowerExpr(ctx, in.Inputs["OPERAND1"])
	if err != nil {
		return "", err
	}
	b, err := e.lowerExpr(ctx, in.Inputs["OPERAND2"])
	if err != nil {
		return "", err
	}
	e.use("scratchlove/internal/svalue")
	return fmt.Sprintf("(svalue.CastBoolean(%s) %s svalue.CastBoolean(%s))", a, op, b), nil
}

// lowerComparison picks the comparison strategy the optimizer marked:
// when both operands are statically NUMBER, use the target language's
// native comparison; otherwise call the Scratch comparator helper.
func (e *emitter) lowerComparison(ctx *exprCtx, in *slir.Input) (string, error) {
	a, err := e.lowerExpr(ctx, in.Inputs["OPERAND1"])
	if err != nil {
		return "", err
	}
	b, err := e.lowerExpr(ctx, in.Inputs["OPERAND2"])
	if err != nil {
		return "", err
	}
	op := map[string]string{"operator_equals": "==", "operator_gt": ">", "operator_lt": "<"}[in.Opcode]
	if in.NumericCompare {
		e.use("scratchlove/internal/svalue")
		return fmt.Sprintf("(svalue.CastNumber(%s) %s svalue.CastNumber(%s))", a, op, b), nil
	}
	e.use("scratchlove/internal/svalue")
	return fmt.Sprintf("(svalue.Compare(%s, %s) %s 0)", a, b, op), nil
}

// goLiteral renders a CONSTANT's value as a Go expression. Numbers
// need special treatment for the three non-literal-representable
// specials and for negative zero, which a bare "0" floating constant
// cannot express. Finite numbers are wrapped in float64(...) so a
// whole number stored into a slruntime.Value stays a float64 rather
// than becoming an untyped constant's default int.
func (e *emitter) goLiteral(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		switch {
		case math.IsNaN(x):
			e.use("math")
			return "math.NaN()"
		case math.IsInf(x, 1):
			e.use("math")
			return "math.Inf(1)"
		case math.IsInf(x, -1):
			e.use("math")
			return "math.Inf(-1)"
		case x == 0 && math.Signbit(x):
			e.use("math")
			return "math.Copysign(0, -1)"
		default:
			return "float64(" + strconv.FormatFloat(x, 'g', -1, 64) + ")"
		}
	default:
		return `""`
	}
}
