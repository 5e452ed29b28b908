package slemit

import (
	"fmt"
	"strings"

	"scratchlove/internal/slir"
)

// stmtEmitter lowers one script's stack blocks to Go statements,
// threading through the warp/warp-timer yield discipline.
type stmtEmitter struct {
	e      *emitter
	ctx    *exprCtx
	script *slir.Script
	tmp    int
}

func (s *stmtEmitter) newTemp() string {
	s.tmp++
	return fmt.Sprintf("tmp%d", s.tmp)
}

func indent(n int) string { return strings.Repeat("\t", n) }

// emitStack lowers a sequence of stack blocks in order.
func (s *stmtEmitter) emitStack(sb *strings.Builder, blocks []*slir.StackBlock, depth int) error {
	for _, b := range blocks {
		if err := s.emitBlock(sb, b, depth); err != nil {
			return err
		}
	}
	return nil
}

// emitBlock dispatches one stack block to its lowering via an
// exhaustive switch; the default case reports an UnknownOpcode
// diagnostic rather than silently dropping output, since by the time
// a block reaches the emitter the generator has already accepted it
// into the IR.
func (s *stmtEmitter) emitBlock(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	ind := indent(depth)
	switch b.Opcode {
	case "motion_movesteps":
		return s.emitMoveSteps(sb, b, depth)
	case "motion_gotoxy":
		x, err := s.e.lowerExpr(s.ctx, b.Inputs["X"])
		if err != nil {
			return err
		}
		y, err := s.e.lowerExpr(s.ctx, b.Inputs["Y"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.SetXY(%s, %s)\n", ind, x, y)
		return nil
	case "motion_setx":
		x, err := s.e.lowerExpr(s.ctx, b.Inputs["X"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.SetXY(%s, tgt.Y())\n", ind, x)
		return nil
	case "motion_sety":
		y, err := s.e.lowerExpr(s.ctx, b.Inputs["Y"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.SetXY(tgt.X(), %s)\n", ind, y)
		return nil
	case "motion_changexby":
		dx, err := s.e.lowerExpr(s.ctx, b.Inputs["DX"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.SetXY(tgt.X()+%s, tgt.Y())\n", ind, dx)
		return nil
	case "motion_changeyby":
		dy, err := s.e.lowerExpr(s.ctx, b.Inputs["DY"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.SetXY(tgt.X(), tgt.Y()+%s)\n", ind, dy)
		return nil
	case "motion_setdirection":
		d, err := s.e.lowerExpr(s.ctx, b.Inputs["DIRECTION"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.SetDirection(%s)\n", ind, d)
		return nil
	case "looks_say":
		msg, err := s.e.lowerExpr(s.ctx, b.Inputs["MESSAGE"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.Say(svalue.CastString(%s))\n", ind, msg)
		s.e.use("scratchlove/internal/svalue")
		return nil
	case "looks_think":
		msg, err := s.e.lowerExpr(s.ctx, b.Inputs["MESSAGE"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%stgt.Think(svalue.CastString(%s))\n", ind, msg)
		s.e.use("scratchlove/internal/svalue")
		return nil
	case "looks_sayforsecs", "looks_thinkforsecs":
		return s.emitSayThinkForSecs(sb, b, depth)
	case "control_if":
		return s.emitIf(sb, b, depth, false)
	case "control_if_else":
		return s.emitIf(sb, b, depth, true)
	case "control_repeat":
		return s.emitRepeat(sb, b, depth)
	case "control_repeat_until":
		return s.emitRepeatUntil(sb, b, depth)
	case "control_forever":
		return s.emitForever(sb, b, depth)
	case "control_wait":
		secs, err := s.e.lowerExpr(s.ctx, b.Inputs["DURATION"])
		if err != nil {
			return err
		}
		if !s.script.Warp {
			fmt.Fprintf(sb, "%sth.Wait(svalue.CastNumber(%s))\n", ind, secs)
			s.e.use("scratchlove/internal/svalue")
		}
		return nil
	case "control_wait_until":
		cond, err := s.e.lowerExpr(s.ctx, b.Inputs["CONDITION"])
		if err != nil {
			return err
		}
		if s.script.Warp {
			fmt.Fprintf(sb, "%sfor !(%s) {\n%s}\n", ind, cond, ind)
			return nil
		}
		fmt.Fprintf(sb, "%sfor !(%s) {\n%sth.Yield(slruntime.YieldWait)\n%s}\n", ind, cond, indent(depth+1), ind)
		return nil
	case "control_stop":
		return s.emitStop(sb, b, depth)
	case "data_setvariableto":
		return s.emitSetVariable(sb, b, depth)
	case "data_changevariableby":
		return s.emitChangeVariable(sb, b, depth)
	case "data_addtolist":
		return s.emitListAppend(sb, b, depth)
	case "data_deleteoflist":
		return s.emitListDelete(sb, b, depth)
	case "data_deletealloflist":
		slot, ok := s.ctx.slots.list(b.Fields["LIST_ID"])
		if !ok {
			return wrapUnhandled(b.Opcode, b.SourceID)
		}
		fmt.Fprintf(sb, "%s%s.DeleteAll()\n", ind, slot)
		return nil
	case "data_insertatlist":
		return s.emitListInsert(sb, b, depth)
	case "data_replaceitemoflist":
		return s.emitListReplace(sb, b, depth)
	case "event_broadcast":
		name, err := s.e.lowerExpr(s.ctx, b.Inputs["BROADCAST_INPUT"])
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "%srt.Broadcast(svalue.CastString(%s))\n", ind, name)
		s.e.use("scratchlove/internal/svalue")
		return nil
	case "event_broadcastandwait":
		return s.emitBroadcastAndWait(sb, b, depth)
	case "procedures_call":
		return s.emitProcedureCall(sb, b, depth)
	default:
		return wrapUnhandled(b.Opcode, b.SourceID)
	}
}

// emitMoveSteps reads tgt.Direction(), translates to (dx, dy) using Scratch's
// degree convention (0 = up, 90 = right), and fences to stage bounds
// if the runtime option is enabled.
func (s *stmtEmitter) emitMoveSteps(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	steps, err := s.e.lowerExpr(s.ctx, b.Inputs["STEPS"])
	if err != nil {
		return err
	}
	s.e.use("math")
	ind := indent(depth)
	rad := s.newTemp()
	nx := s.newTemp()
	ny := s.newTemp()
	fmt.Fprintf(sb, "%s%s := (90 - tgt.Direction()) * math.Pi / 180\n", ind, rad)
	fmt.Fprintf(sb, "%s%s := tgt.X() + math.Cos(%s)*svalue.CastNumber(%s)\n", ind, nx, rad, steps)
	fmt.Fprintf(sb, "%s%s := tgt.Y() + math.Sin(%s)*svalue.CastNumber(%s)\n", ind, ny, rad, steps)
	fmt.Fprintf(sb, "%sif rt.Fencing() {\n", ind)
	fmt.Fprintf(sb, "%s\t%s = svalue.Clamp(%s, -240, 240)\n", ind, nx, nx)
	fmt.Fprintf(sb, "%s\t%s = svalue.Clamp(%s, -180, 180)\n", ind, ny, ny)
	fmt.Fprintf(sb, "%s}\n", ind)
	fmt.Fprintf(sb, "%stgt.SetXY(%s, %s)\n", ind, nx, ny)
	s.e.use("scratchlove/internal/svalue")
	return nil
}

func (s *stmtEmitter) emitSayThinkForSecs(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	msg, err := s.e.lowerExpr(s.ctx, b.Inputs["MESSAGE"])
	if err != nil {
		return err
	}
	secs, err := s.e.lowerExpr(s.ctx, b.Inputs["SECS"])
	if err != nil {
		return err
	}
	ind := indent(depth)
	method := "Say"
	if b.Opcode == "looks_thinkforsecs" {
		method = "Think"
	}
	fmt.Fprintf(sb, "%stgt.%s(svalue.CastString(%s))\n", ind, method, msg)
	if !s.script.Warp {
		fmt.Fprintf(sb, "%sth.Wait(svalue.CastNumber(%s))\n", ind, secs)
	}
	s.e.use("scratchlove/internal/svalue")
	return nil
}

func (s *stmtEmitter) emitIf(sb *strings.Builder, b *slir.StackBlock, depth int, hasElse bool) error {
	cond, err := s.e.lowerExpr(s.ctx, b.Inputs["CONDITION"])
	if err != nil {
		return err
	}
	ind := indent(depth)
	fmt.Fprintf(sb, "%sif %s {\n", ind, cond)
	if err := s.emitStack(sb, b.Subs["whenTrue"], depth+1); err != nil {
		return err
	}
	if hasElse {
		fmt.Fprintf(sb, "%s} else {\n", ind)
		if err := s.emitStack(sb, b.Subs["whenFalse"], depth+1); err != nil {
			return err
		}
	}
	fmt.Fprintf(sb, "%s}\n", ind)
	return nil
}

// loopYield emits the yield-discipline back-edge for one loop
// iteration: a plain yield every iteration in non-warp scripts, a
// stuck-detection check in warp scripts. The stuckness threshold
// itself is runtime.IsStuck()'s decision, never the compiler's.
func (s *stmtEmitter) loopYield(sb *strings.Builder, depth int) {
	ind := indent(depth)
	if s.script.Warp {
		fmt.Fprintf(sb, "%sif rt.IsStuck() {\n%sth.Yield(slruntime.YieldPlain)\n%s}\n", ind, indent(depth+1), ind)
		return
	}
	fmt.Fprintf(sb, "%sth.Yield(slruntime.YieldPlain)\n", ind)
}

func (s *stmtEmitter) emitRepeat(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	times, err := s.e.lowerExpr(s.ctx, b.Inputs["TIMES"])
	if err != nil {
		return err
	}
	ind := indent(depth)
	counter := s.newTemp()
	bound := s.newTemp()
	fmt.Fprintf(sb, "%s%s := int(svalue.CastNumber(%s))\n", ind, bound, times)
	fmt.Fprintf(sb, "%sfor %s := 0; %s < %s; %s++ {\n", ind, counter, counter, bound, counter)
	if err := s.emitStack(sb, b.Subs["do"], depth+1); err != nil {
		return err
	}
	s.loopYield(sb, depth+1)
	fmt.Fprintf(sb, "%s}\n", ind)
	s.e.use("scratchlove/internal/svalue")
	return nil
}

func (s *stmtEmitter) emitRepeatUntil(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	cond, err := s.e.lowerExpr(s.ctx, b.Inputs["CONDITION"])
	if err != nil {
		return err
	}
	ind := indent(depth)
	fmt.Fprintf(sb, "%sfor !(%s) {\n", ind, cond)
	if err := s.emitStack(sb, b.Subs["do"], depth+1); err != nil {
		return err
	}
	s.loopYield(sb, depth+1)
	fmt.Fprintf(sb, "%s}\n", ind)
	return nil
}

func (s *stmtEmitter) emitForever(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	ind := indent(depth)
	fmt.Fprintf(sb, "%sfor {\n", ind)
	if err := s.emitStack(sb, b.Subs["do"], depth+1); err != nil {
		return err
	}
	s.loopYield(sb, depth+1)
	fmt.Fprintf(sb, "%s}\n", ind)
	return nil
}

func (s *stmtEmitter) emitStop(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	ind := indent(depth)
	switch b.Fields["STOP_OPTION"] {
	case "this script":
		fmt.Fprintf(sb, "%sth.Stop()\n%sreturn \"\", nil\n", ind, ind)
	case "other scripts in sprite":
		fmt.Fprintf(sb, "%srt.StopForTarget(tgt, th)\n", ind)
	default: // "all"
		fmt.Fprintf(sb, "%srt.StopAll()\n", ind)
	}
	return nil
}

func (s *stmtEmitter) emitSetVariable(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	slot, ok := s.ctx.slots.variable(b.Fields["VARIABLE_ID"])
	if !ok {
		return wrapUnhandled(b.Opcode, b.SourceID)
	}
	val, err := s.e.lowerExpr(s.ctx, b.Inputs["VALUE"])
	if err != nil {
		return err
	}
	fmt.Fprintf(sb, "%s%s.Set(%s)\n", indent(depth), slot, val)
	return nil
}

func (s *stmtEmitter) emitChangeVariable(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	slot, ok := s.ctx.slots.variable(b.Fields["VARIABLE_ID"])
	if !ok {
		return wrapUnhandled(b.Opcode, b.SourceID)
	}
	delta, err := s.e.lowerExpr(s.ctx, b.Inputs["VALUE"])
	if err != nil {
		return err
	}
	ind := indent(depth)
	fmt.Fprintf(sb, "%s%s.Set(svalue.CastNumber(%s.Get()) + svalue.CastNumberOrNaN(%s))\n", ind, slot, slot, delta)
	s.e.use("scratchlove/internal/svalue")
	return nil
}

func (s *stmtEmitter) emitListAppend(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	slot, ok := s.ctx.slots.list(b.Fields["LIST_ID"])
	if !ok {
		return wrapUnhandled(b.Opcode, b.SourceID)
	}
	item, err := s.e.lowerExpr(s.ctx, b.Inputs["ITEM"])
	if err != nil {
		return err
	}
	fmt.Fprintf(sb, "%s%s.Append(%s)\n", indent(depth), slot, item)
	return nil
}

func (s *stmtEmitter) emitListDelete(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	slot, ok := s.ctx.slots.list(b.Fields["LIST_ID"])
	if !ok {
		return wrapUnhandled(b.Opcode, b.SourceID)
	}
	idx, err := s.e.lowerExpr(s.ctx, b.Inputs["INDEX"])
	if err != nil {
		return err
	}
	fmt.Fprintf(sb, "%s%s.DeleteAt(svalue.ListIndex(%s, %s.Len()))\n", indent(depth), slot, idx, slot)
	s.e.use("scratchlove/internal/svalue")
	return nil
}

func (s *stmtEmitter) emitListInsert(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	slot, ok := s.ctx.slots.list(b.Fields["LIST_ID"])
	if !ok {
		return wrapUnhandled(b.Opcode, b.SourceID)
	}
	idx, err := s.e.lowerExpr(s.ctx, b.Inputs["INDEX"])
	if err != nil {
		return err
	}
	item, err := s.e.lowerExpr(s.ctx, b.Inputs["ITEM"])
	if err != nil {
		return err
	}
	fmt.Fprintf(sb, "%s%s.InsertAt(svalue.ListIndex(%s, %s.Len()), %s)\n", indent(depth), slot, idx, slot, item)
	s.e.use("scratchlove/internal/svalue")
	return nil
}

func (s *stmtEmitter) emitListReplace(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	slot, ok := s.ctx.slots.list(b.Fields["LIST_ID"])
	if !ok {
		return wrapUnhandled(b.Opcode, b.SourceID)
	}
	idx, err := s.e.lowerExpr(s.ctx, b.Inputs["INDEX"])
	if err != nil {
		return err
	}
	item, err := s.e.lowerExpr(s.ctx, b.Inputs["ITEM"])
	if err != nil {
		return err
	}
	fmt.Fprintf(sb, "%s%s.SetItem(svalue.ListIndex(%s, %s.Len()), %s)\n", indent(depth), slot, idx, slot, item)
	s.e.use("scratchlove/internal/svalue")
	return nil
}

// emitBroadcastAndWait registers the broadcast, then yields until
// every recipient thread has finished. Unlike loops and waits, this
// suspension is never suppressed under warp: it depends on other
// scripts finishing, not on the scheduler's fairness budget, so
// skipping it would silently desynchronize the broadcaster from its
// recipients.
func (s *stmtEmitter) emitBroadcastAndWait(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	name, err := s.e.lowerExpr(s.ctx, b.Inputs["BROADCAST_INPUT"])
	if err != nil {
		return err
	}
	ind := indent(depth)
	recipients := s.newTemp()
	i := s.newTemp()
	fmt.Fprintf(sb, "%s%s := rt.Broadcast(svalue.CastString(%s))\n", ind, recipients, name)
	fmt.Fprintf(sb, "%sfor {\n", ind)
	fmt.Fprintf(sb, "%s\tallDone := true\n", ind)
	fmt.Fprintf(sb, "%s\tfor %s := range %s {\n", ind, i, recipients)
	fmt.Fprintf(sb, "%s\t\tif !%s[%s].Done() {\n", ind, recipients, i)
	fmt.Fprintf(sb, "%s\t\t\tallDone = false\n", ind)
	fmt.Fprintf(sb, "%s\t\t\tbreak\n", ind)
	fmt.Fprintf(sb, "%s\t\t}\n", ind)
	fmt.Fprintf(sb, "%s\t}\n", ind)
	fmt.Fprintf(sb, "%s\tif allDone {\n%s\t\tbreak\n%s\t}\n", ind, ind, ind)
	fmt.Fprintf(sb, "%s\tth.Yield(slruntime.YieldTick)\n", ind)
	fmt.Fprintf(sb, "%s}\n", ind)
	s.e.use("scratchlove/internal/svalue")
	return nil
}

// emitProcedureCall lowers a direct call to the resolved variant's
// compiled function, following a non-warp call with a yield.
func (s *stmtEmitter) emitProcedureCall(sb *strings.Builder, b *slir.StackBlock, depth int) error {
	procCode := b.Fields["PROC_CODE"]
	callWarp := b.Fields["WARP"] == "true"
	variant := slir.ProcVariant{Code: procCode, Warp: callWarp}
	name := funcName(variant, false)

	argExprs := make([]string, 0, len(b.Inputs))
	for _, id := range argOrder(b.Fields["ARG_IDS"]) {
		expr, err := s.e.lowerExpr(s.ctx, b.Inputs[id])
		if err != nil {
			return err
		}
		argExprs = append(argExprs, expr)
	}

	ind := indent(depth)
	fmt.Fprintf(sb, "%sif _, err := %s(rt, tgt, th%s); err != nil {\n", ind, name, prefixComma(argExprs))
	fmt.Fprintf(sb, "%s\treturn \"\", err\n", ind)
	fmt.Fprintf(sb, "%s}\n", ind)
	if !callWarp {
		fmt.Fprintf(sb, "%sth.Yield(slruntime.YieldPlain)\n", ind)
	}
	return nil
}

func prefixComma(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return ", " + strings.Join(args, ", ")
}

// argOrder splits the call block's ARG_IDS field (the definition's
// argument-id order, copied onto the call site's mutation by the
// .sb3 format) back into a slice, so the emitter passes arguments to
// the callee positionally in the same order the callee's parameter
// list was declared in, regardless of the IR's input-map iteration
// order.
func argOrder(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, ",")
}
