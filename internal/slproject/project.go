// Package slproject is the in-memory stand-in for a parsed .sb3
// project. Unpacking the .sb3 ZIP and decoding its JSON happens
// upstream of this package; it gives the generator (internal/slgen) a
// concrete Go input type for the decoded block graph, plus a small
// encoding/json-based fixture loader used only by this module's own
// tests (no third-party JSON library is warranted for a test-only
// fixture reader — see DESIGN.md).
package slproject

import (
	"encoding/json"
	"fmt"
)

// PrimitiveKind tags a compressed-primitive block: type codes 4-8 are
// math-number variants, 9 is color, 10 is text, 11 is broadcast, 12 is
// variable, 13 is list.
type PrimitiveKind int

const (
	PrimitiveMath PrimitiveKind = iota
	PrimitiveColor
	PrimitiveText
	PrimitiveBroadcast
	PrimitiveVariable
	PrimitiveList
)

// Primitive is a decoded compressed primitive: a tagged variant with
// explicit fields rather than the raw positional array the .sb3 JSON
// uses.
type Primitive struct {
	Kind  PrimitiveKind
	Value string // literal text for Math/Color/Text; unused otherwise
	Name  string // variable/list/broadcast display name
	ID    string // variable/list/broadcast id
}

// ShadowKind is the input's shadow-type tag: 1 (shadow only), 2 (no
// shadow, block reference), 3 (shadow obscured by a block).
type ShadowKind int

const (
	ShadowOnly     ShadowKind = 1
	ShadowNone     ShadowKind = 2
	ShadowObscured ShadowKind = 3
)

// RawInput is one entry of a block's "inputs" map: either a primitive
// literal or a reference to a child block id, decoded from the
// [shadowType, value, ?obscuredShadow] triple the .sb3 format uses.
type RawInput struct {
	Shadow    ShadowKind
	Primitive *Primitive // set when the slot holds a literal
	BlockID   string     // set when the slot holds (or obscures) a block reference
}

// RawBlock is a decoded block record: {opcode, next, parent, inputs,
// fields, shadow, topLevel, mutation?}.
type RawBlock struct {
	ID       string
	Opcode   string
	Next     string // empty if none
	Parent   string // empty if top-level
	Inputs   map[string]RawInput
	Fields   map[string]string
	TopLevel bool
	Mutation *Mutation
}

// Mutation carries a procedures_call/procedures_definition's
// signature metadata.
type Mutation struct {
	ProcCode      string
	ArgumentIDs   []string
	ArgumentNames []string
	Warp          bool
}

// DeclaredVariable is a variable declared on a target. The generator
// derives a reader node's scope from which target declares the id
// rather than guessing, since the raw block format only ever carries
// the variable's name and id, not its scope.
type DeclaredVariable struct {
	ID   string
	Name string
}

// DeclaredList mirrors DeclaredVariable for lists.
type DeclaredList struct {
	ID   string
	Name string
}

// Target is one sprite or the stage.
type Target struct {
	Name      string
	IsStage   bool
	Blocks    []*RawBlock // declaration order preserved
	Variables []DeclaredVariable
	Lists     []DeclaredList
	blockByID map[string]*RawBlock
}

// Block looks up a block by id within this target.
func (t *Target) Block(id string) (*RawBlock, bool) {
	b, ok := t.blockByID[id]
	return b, ok
}

// index builds the lookup map after Blocks is populated; called by
// the JSON loader and by NewTarget.
func (t *Target) index() {
	t.blockByID = make(map[string]*RawBlock, len(t.Blocks))
	for _, b := range t.Blocks {
		t.blockByID[b.ID] = b
	}
}

// NewTarget constructs a target from blocks already in declaration
// order, indexing them for lookup.
func NewTarget(name string, isStage bool, blocks []*RawBlock) *Target {
	t := &Target{Name: name, IsStage: isStage, Blocks: blocks}
	t.index()
	return t
}

// TopLevelBlocks returns this target's hat/procedure-definition roots,
// in declaration order: scripts that start in the same tick must run
// in project-declaration order, so that guarantee depends on this
// order surviving all the way from the parser.
func (t *Target) TopLevelBlocks() []*RawBlock {
	var out []*RawBlock
	for _, b := range t.Blocks {
		if b.TopLevel {
			out = append(out, b)
		}
	}
	return out
}

// Project is the parsed-project model the generator consumes.
type Project struct {
	Stage   *Target
	Sprites []*Target
}

// Targets returns the stage followed by every sprite, in declaration
// order.
func (p *Project) Targets() []*Target {
	out := make([]*Target, 0, 1+len(p.Sprites))
	if p.Stage != nil {
		out = append(out, p.Stage)
	}
	out = append(out, p.Sprites...)
	return out
}

// VariableScope resolves a variable id as seen from target: "target"
// if target itself declares it (sprite-local), "stage" if only the
// stage declares it (global — every sprite sees the stage's
// variables), or ok=false if neither declares it.
func (p *Project) VariableScope(target *Target, id string) (name, scope string, ok bool) {
	for _, v := range target.Variables {
		if v.ID == id {
			return v.Name, "target", true
		}
	}
	if p.Stage != nil && target != p.Stage {
		for _, v := range p.Stage.Variables {
			if v.ID == id {
				return v.Name, "stage", true
			}
		}
	}
	return "", "", false
}

// ListScope mirrors VariableScope for lists.
func (p *Project) ListScope(target *Target, id string) (name, scope string, ok bool) {
	for _, l := range target.Lists {
		if l.ID == id {
			return l.Name, "target", true
		}
	}
	if p.Stage != nil && target != p.Stage {
		for _, l := range p.Stage.Lists {
			if l.ID == id {
				return l.Name, "stage", true
			}
		}
	}
	return "", "", false
}

// --- JSON fixture loader (test-only convenience) ---

type fixtureInput struct {
	Shadow    int          `json:"shadow"`
	Primitive *fixturePrim `json:"primitive,omitempty"`
	BlockID   string       `json:"blockId,omitempty"`
}

type fixturePrim struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
	ID    string `json:"id,omitempty"`
}

type fixtureMutation struct {
	ProcCode      string   `json:"procCode"`
	ArgumentIDs   []string `json:"argumentIds"`
	ArgumentNames []string `json:"argumentNames"`
	Warp          bool     `json:"warp"`
}

type fixtureBlock struct {
	ID       string                  `json:"id"`
	Opcode   string                  `json:"opcode"`
	Next     string                  `json:"next"`
	Parent   string                  `json:"parent"`
	Inputs   map[string]fixtureInput `json:"inputs"`
	Fields   map[string]string       `json:"fields"`
	TopLevel bool                    `json:"topLevel"`
	Mutation *fixtureMutation        `json:"mutation,omitempty"`
}

type fixtureVariable struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fixtureTarget struct {
	Name      string            `json:"name"`
	IsStage   bool              `json:"isStage"`
	Blocks    []fixtureBlock    `json:"blocks"`
	Variables []fixtureVariable `json:"variables"`
	Lists     []fixtureVariable `json:"lists"`
}

type fixtureProject struct {
	Targets []fixtureTarget `json:"targets"`
}

var primitiveKinds = map[string]PrimitiveKind{
	"math":      PrimitiveMath,
	"color":     PrimitiveColor,
	"text":      PrimitiveText,
	"broadcast": PrimitiveBroadcast,
	"variable":  PrimitiveVariable,
	"list":      PrimitiveList,
}

// LoadFixture decodes a small hand-written JSON fixture into a
// Project. It exists for this module's own tests; it is not a .sb3
// loader.
func LoadFixture(data []byte) (*Project, error) {
	var fp fixtureProject
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("slproject: invalid fixture: %w", err)
	}
	proj := &Project{}
	for _, ft := range fp.Targets {
		blocks := make([]*RawBlock, 0, len(ft.Blocks))
		for _, fb := range ft.Blocks {
			rb := &RawBlock{
				ID:       fb.ID,
				Opcode:   fb.Opcode,
				Next:     fb.Next,
				Parent:   fb.Parent,
				Fields:   fb.Fields,
				TopLevel: fb.TopLevel,
			}
			if fb.Mutation != nil {
				rb.Mutation = &Mutation{
					ProcCode:      fb.Mutation.ProcCode,
					ArgumentIDs:   fb.Mutation.ArgumentIDs,
					ArgumentNames: fb.Mutation.ArgumentNames,
					Warp:          fb.Mutation.Warp,
				}
			}
			if len(fb.Inputs) > 0 {
				rb.Inputs = make(map[string]RawInput, len(fb.Inputs))
				for name, fi := range fb.Inputs {
					ri := RawInput{Shadow: ShadowKind(fi.Shadow), BlockID: fi.BlockID}
					if fi.Primitive != nil {
						kind, ok := primitiveKinds[fi.Primitive.Kind]
						if !ok {
							return nil, fmt.Errorf("slproject: unknown primitive kind %q", fi.Primitive.Kind)
						}
						ri.Primitive = &Primitive{
							Kind:  kind,
							Value: fi.Primitive.Value,
							Name:  fi.Primitive.Name,
							ID:    fi.Primitive.ID,
						}
					}
					rb.Inputs[name] = ri
				}
			}
			blocks = append(blocks, rb)
		}
		target := NewTarget(ft.Name, ft.IsStage, blocks)
		for _, fv := range ft.Variables {
			target.Variables = append(target.Variables, DeclaredVariable{ID: fv.ID, Name: fv.Name})
		}
		for _, fl := range ft.Lists {
			target.Lists = append(target.Lists, DeclaredList{ID: fl.ID, Name: fl.Name})
		}
		if ft.IsStage {
			proj.Stage = target
		} else {
			proj.Sprites = append(proj.Sprites, target)
		}
	}
	return proj, nil
}
