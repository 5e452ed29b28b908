package slgen

import (
	"scratchlove/internal/slir"
	"scratchlove/internal/slproject"
)

func (g *Generator) lowerData(target *slproject.Target, raw *slproject.RawBlock) (*slir.StackBlock, error) {
	switch raw.Opcode {
	case "data_setvariableto", "data_changevariableby":
		return g.newSimpleBlock(target, raw, false)
	default:
		// List mutators (data_addtolist, data_deleteoflist, ...) and
		// other data blocks with no bespoke semantics the generator
		// needs beyond input lowering.
		return g.newSimpleBlock(target, raw, false)
	}
}

func (g *Generator) lowerEvent(target *slproject.Target, raw *slproject.RawBlock) (*slir.StackBlock, error) {
	switch raw.Opcode {
	case "event_broadcast":
		return g.newSimpleBlock(target, raw, false)
	case "event_broadcastandwait":
		// Suspension point: the thread yields until every recipient
		// has finished running.
		return g.newSimpleBlock(target, raw, true)
	default:
		return g.newSimpleBlock(target, raw, false)
	}
}
