package slruntime

import (
	"strings"
	"sync"

	"scratchlove/internal/svalue"
)

// FakeScheduler is an in-memory stand-in for the host's cooperative
// scheduler, used only by this module's tests to drive compiled
// scripts end-to-end without a real rendering/audio host, the same
// way an interpreter's tests build a bare VM instance around a
// hand-assembled chunk rather than going through a file.
type FakeScheduler struct {
	mu         sync.Mutex
	variables  map[string]Value
	stuck      bool
	fencing    bool
	redraws    int
	broadcasts map[string]int
}

// NewFakeScheduler creates an empty fake runtime.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{
		variables:  make(map[string]Value),
		broadcasts: make(map[string]int),
	}
}

func (f *FakeScheduler) ResolveVariable(id, name, scope string) VariableBinding {
	return &fakeVarBinding{sched: f, key: scope + ":" + id}
}

func (f *FakeScheduler) ResolveList(id, name, scope string) ListBinding {
	return &fakeListBinding{sched: f, key: scope + ":" + id}
}

func (f *FakeScheduler) IsStuck() bool { return f.stuck }

func (f *FakeScheduler) SetStuck(v bool) { f.stuck = v }

func (f *FakeScheduler) Fencing() bool { return f.fencing }

func (f *FakeScheduler) SetFencing(v bool) { f.fencing = v }

func (f *FakeScheduler) Broadcast(name string) []Thread {
	f.mu.Lock()
	f.broadcasts[name]++
	f.mu.Unlock()
	return nil
}

func (f *FakeScheduler) StartHatBlocks(opcode string) []Thread { return nil }

func (f *FakeScheduler) RequestRedraw() { f.redraws++ }

func (f *FakeScheduler) StopAll() {}

func (f *FakeScheduler) StopForTarget(t Target, exceptThread Thread) {}

// Get/Set directly read and write the fake global store, for test
// assertions.
func (f *FakeScheduler) Get(scope, id string) Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.variables[scope+":"+id]
}

func (f *FakeScheduler) Set(scope, id string, v Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variables[scope+":"+id] = v
}

type fakeVarBinding struct {
	sched *FakeScheduler
	key   string
}

func (b *fakeVarBinding) Get() Value {
	b.sched.mu.Lock()
	defer b.sched.mu.Unlock()
	return b.sched.variables[b.key]
}

func (b *fakeVarBinding) Set(v Value) {
	b.sched.mu.Lock()
	defer b.sched.mu.Unlock()
	b.sched.variables[b.key] = v
}

type fakeListBinding struct {
	sched *FakeScheduler
	key   string
}

func (b *fakeListBinding) items() []Value {
	v, _ := b.sched.variables[b.key].([]Value)
	return v
}

func (b *fakeListBinding) Item(index Value) Value {
	items := b.items()
	if len(items) == 0 {
		return ""
	}
	if s, ok := index.(string); ok && s == "last" {
		return items[len(items)-1]
	}
	i, ok := index.(float64)
	if !ok || int(i) < 1 || int(i) > len(items) {
		return ""
	}
	return items[int(i)-1]
}

// Contents joins items per Scratch's list-reporter rule: a single
// space if every item renders as one character, a newline otherwise.
func (b *fakeListBinding) Contents() string {
	items := b.items()
	parts := make([]string, len(items))
	allSingleChar := true
	for i, v := range items {
		parts[i] = svalue.CastString(v)
		if len([]rune(parts[i])) != 1 {
			allSingleChar = false
		}
	}
	sep := "\n"
	if allSingleChar {
		sep = " "
	}
	return strings.Join(parts, sep)
}

func (b *fakeListBinding) SetItem(index Value, v Value) {
	items := b.items()
	i, ok := index.(float64)
	if !ok || int(i) < 1 {
		return
	}
	for len(items) < int(i) {
		items = append(items, "")
	}
	items[int(i)-1] = v
	b.set(items)
}

func (b *fakeListBinding) Append(v Value) {
	b.set(append(b.items(), v))
}

func (b *fakeListBinding) InsertAt(index Value, v Value) {
	items := b.items()
	i, ok := index.(float64)
	if !ok || int(i) < 1 || int(i) > len(items)+1 {
		return
	}
	pos := int(i) - 1
	items = append(items, "")
	copy(items[pos+1:], items[pos:])
	items[pos] = v
	b.set(items)
}

func (b *fakeListBinding) DeleteAt(index Value) {
	items := b.items()
	if s, ok := index.(string); ok && s == "all" {
		b.set(nil)
		return
	}
	i, ok := index.(float64)
	if !ok || int(i) < 1 || int(i) > len(items) {
		return
	}
	pos := int(i) - 1
	b.set(append(items[:pos], items[pos+1:]...))
}

func (b *fakeListBinding) DeleteAll() {
	b.set(nil)
}

func (b *fakeListBinding) set(items []Value) {
	b.sched.mu.Lock()
	b.sched.variables[b.key] = items
	b.sched.mu.Unlock()
}

func (b *fakeListBinding) Len() int { return len(b.items()) }

// FakeThread is a minimal Thread used by tests: it records every
// yield tag in order so a test can assert the yield discipline —
// e.g. that every loop iteration includes exactly one suspension.
type FakeThread struct {
	Yields  []YieldTag
	Stopped bool
}

func (t *FakeThread) Yield(tag YieldTag)         { t.Yields = append(t.Yields, tag) }
func (t *FakeThread) Stop()                      { t.Stopped = true }
func (t *FakeThread) Wait(seconds float64)       { t.Yield(YieldWait) }
func (t *FakeThread) WaitForTimer(timer float64) { t.Yield(YieldWait) }
func (t *FakeThread) Done() bool                 { return t.Stopped }

// FakeTarget is a minimal Target used by tests: a single sprite/stage
// with the handful of observable slots tests assert against (position,
// direction, the last say/think text).
type FakeTarget struct {
	x, y, direction float64
	SayText         string
	ThinkText       string
}

// NewFakeTarget creates a target at the origin facing right (Scratch's
// direction-90 convention: 90 is "facing right").
func NewFakeTarget() *FakeTarget { return &FakeTarget{direction: 90} }

func (t *FakeTarget) X() float64                { return t.x }
func (t *FakeTarget) Y() float64                { return t.y }
func (t *FakeTarget) Direction() float64        { return t.direction }
func (t *FakeTarget) SetXY(x, y float64)        { t.x, t.y = x, y }
func (t *FakeTarget) SetDirection(d float64)    { t.direction = d }
func (t *FakeTarget) Say(text string)           { t.SayText = text }
func (t *FakeTarget) Think(text string)         { t.ThinkText = text }
func (t *FakeTarget) PointTowards(x, y float64) {}
func (t *FakeTarget) MakeClone() Target         { return NewFakeTarget() }
