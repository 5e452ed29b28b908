package slgen

import (
	"scratchlove/internal/slir"
	"scratchlove/internal/slproject"
)

// newSimpleBlock lowers every input present on raw, casting those
// declared in inputTypes[raw.Opcode] to their declared type and taking
// undeclared ones as-is; a declared input absent from raw is not added.
// It copies raw's fields verbatim. It
// covers the many stack-block opcodes that have no sub-stacks and no
// bespoke lowering logic of their own (most of motion/looks/data).
func (g *Generator) newSimpleBlock(target *slproject.Target, raw *slproject.RawBlock, yields bool) (*slir.StackBlock, error) {
	declared := inputTypes[raw.Opcode]
	inputs := make(map[string]*slir.Input, len(raw.Inputs))
	for name := range raw.Inputs {
		in, err := g.lowerInputCast(target, raw, name, declared)
		if err != nil {
			return nil, err
		}
		inputs[name] = in
	}
	return &slir.StackBlock{
		Opcode:   raw.Opcode,
		Inputs:   inputs,
		Fields:   raw.Fields,
		Yields:   yields,
		SourceID: raw.ID,
	}, nil
}

func (g *Generator) lowerMotion(target *slproject.Target, raw *slproject.RawBlock) (*slir.StackBlock, error) {
	// motion_glideto is in waitOpcodes (it animates over time and
	// suspends until the glide completes); every other motion block
	// is instantaneous.
	return g.newSimpleBlock(target, raw, waitOpcodes[raw.Opcode])
}

func (g *Generator) lowerLooks(target *slproject.Target, raw *slproject.RawBlock) (*slir.StackBlock, error) {
	return g.newSimpleBlock(target, raw, waitOpcodes[raw.Opcode])
}
