// Package slruntime defines the runtime surface the host is expected
// to provide, as Go interfaces the emitted code and compile driver
// bind against, plus an in-memory fake used only by this module's own
// end-to-end tests. It implements no scheduler: dispatching threads
// belongs to the host, not the compiler.
package slruntime

// Value is a Scratch runtime value: string, float64, or bool. It is
// an alias, not a new type, so svalue's helpers operate on it
// directly.
type Value = interface{}

// YieldTag is the small discriminant string handed to the scheduler
// at a suspension point. The emitter never invents a fourth tag.
type YieldTag string

const (
	YieldPlain YieldTag = "yield"
	YieldTick  YieldTag = "yield_tick"
	YieldWait  YieldTag = "wait"
)

// Thread is the cooperative task an emitted script function runs
// under.
type Thread interface {
	Yield(tag YieldTag)
	Stop()
	Wait(seconds float64)
	WaitForTimer(timer float64)

	// Done reports whether this thread has run to completion, polled
	// by event_broadcastandwait's recipient-set loop.
	Done() bool
}

// VariableBinding is a resolved, direct binding to a variable or list
// slot, returned by Runtime.ResolveVariable so emitted code never
// performs a per-access name lookup.
type VariableBinding interface {
	Get() Value
	Set(Value)
}

// ListBinding is the list equivalent of VariableBinding. Emitted code
// resolves "last" and "random" through svalue.ListIndex before calling
// Item, so Item receives a 1-based number or whatever other value the
// script supplied, and resolves an index it cannot use to empty string.
type ListBinding interface {
	Item(index Value) Value
	SetItem(index Value, v Value)
	Append(v Value)
	InsertAt(index Value, v Value)
	DeleteAt(index Value)
	DeleteAll()
	Len() int

	// Contents renders the whole list as Scratch's "list reporter"
	// does: items joined by a single space if every item is a
	// single character, by a newline otherwise.
	Contents() string
}

// Target is the sprite or stage a script runs against.
type Target interface {
	X() float64
	Y() float64
	Direction() float64
	SetXY(x, y float64)
	SetDirection(d float64)
	Say(text string)
	Think(text string)
	PointTowards(x, y float64)
	MakeClone() Target
}

// Runtime is the host surface a compiled script calls into.
type Runtime interface {
	ResolveVariable(id, name, scope string) VariableBinding
	ResolveList(id, name, scope string) ListBinding
	IsStuck() bool
	Broadcast(name string) []Thread
	StartHatBlocks(opcode string) []Thread
	RequestRedraw()
	StopAll()
	StopForTarget(t Target, exceptThread Thread)

	// Fencing reports whether motion blocks must clip sprite positions
	// to stage bounds.
	Fencing() bool
}
