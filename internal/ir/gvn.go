package ir

import (
	"fmt"
	"sort"
	"strings"
)

// GVN is the read-only congruence-class analysis of spec.md §4.3: an
// Alpern-Wegman-Zadeck style optimistic partitioning of every local
// definition into classes such that any two members hold equal values in
// every execution that defines both.
type GVN struct {
	fn *Function
	du *DefUse

	order       []Instruction
	classOfInst map[Instruction]int
	classes     [][]Instruction

	constIDs map[string]int
	constRev map[int]*Value
	siteIDs  map[*Value]int
	siteRev  map[int]*Value
	paramIDs map[symKey]int
	paramRev map[int]*Value
	nextID   int
}

// ComputeGVN builds the congruence-class partition for fn. cfg supplies
// the RPO used to order definitions deterministically and to elect class
// leaders by program order (spec.md §4.3 point 4).
func ComputeGVN(fn *Function, cfg *CFG, du *DefUse) *GVN {
	g := &GVN{fn: fn, du: du,
		constIDs: make(map[string]int), constRev: make(map[int]*Value),
		siteIDs: make(map[*Value]int), siteRev: make(map[int]*Value),
		paramIDs: make(map[symKey]int), paramRev: make(map[int]*Value),
	}

	for _, b := range cfg.RPO {
		for _, inst := range b.AllInstrs() {
			if d := inst.Dest(); d != nil && d.Kind == ValueLocal {
				g.order = append(g.order, inst)
			}
		}
	}
	sort.SliceStable(g.order, func(i, j int) bool {
		bi, bj := cfg.RPOIndex(g.order[i].Block()), cfg.RPOIndex(g.order[j].Block())
		if bi != bj {
			return bi < bj
		}
		return g.order[i].ID() < g.order[j].ID()
	})

	g.classOfInst = make(map[Instruction]int, len(g.order))
	g.partition(func(inst Instruction) string { return g.initialKey(inst) })

	for {
		before := g.snapshot()
		g.partition(func(inst Instruction) string { return g.refinedKey(inst) })
		if g.sameSnapshot(before) {
			break
		}
	}
	g.nextID = len(g.classes)
	return g
}

// partition regroups g.order by keyFn, splitting (never merging across
// groups that keyFn distinguishes) and rewriting g.classes/classOfInst.
func (g *GVN) partition(keyFn func(Instruction) string) {
	keyToClass := make(map[string]int)
	var classes [][]Instruction
	classOf := make(map[Instruction]int, len(g.order))
	for _, inst := range g.order {
		k := keyFn(inst)
		cid, ok := keyToClass[k]
		if !ok {
			cid = len(classes)
			keyToClass[k] = cid
			classes = append(classes, nil)
		}
		classes[cid] = append(classes[cid], inst)
		classOf[inst] = cid
	}
	g.classes = classes
	g.classOfInst = classOf
}

func (g *GVN) snapshot() []int {
	s := make([]int, len(g.order))
	for i, inst := range g.order {
		s[i] = g.classOfInst[inst]
	}
	return s
}

// sameSnapshot compares the current partition against a previous
// snapshot by grouping pattern, not raw id values (ids are reassigned
// from scratch each round in first-seen order over the same fixed
// g.order, so equal grouping implies equal ids; comparing the raw slices
// is therefore sufficient and cheap).
func (g *GVN) sameSnapshot(prev []int) bool {
	cur := g.snapshot()
	for i := range cur {
		if cur[i] != prev[i] {
			return false
		}
	}
	return true
}

// initialKey groups by opcode/type and only the immediately decidable
// operand parts (literal constants); symbolic (local) operands are
// wildcarded so that mutually-recursive congruences (e.g. loop-carried
// phis) can still be discovered by later refinement rounds, per the
// AWZ "optimistic" partitioning spec.md §4.3 describes. Global reads and
// memory/call instructions are keyed by instruction identity: IRL does
// no alias analysis beyond SSA names (a stated non-goal), so two reads
// of the same global, or two loads/calls, are never assumed congruent.
func (g *GVN) initialKey(inst Instruction) string {
	switch t := inst.(type) {
	case *Binary:
		x, y := g.initialOperandKey(t.X), g.initialOperandKey(t.Y)
		if t.Op.Commutative() {
			if x > y {
				x, y = y, x
			}
		}
		return fmt.Sprintf("bin:%s:%s:%s:%s", t.Op, t.Dst.Type(), x, y)
	case *Unary:
		return fmt.Sprintf("un:%s:%s:%s", t.Op, t.Dst.Type(), g.initialOperandKey(t.X))
	case *Move:
		return fmt.Sprintf("mov:%s:%s", t.Dst.Type(), g.initialOperandKey(t.Src))
	case *Addr:
		parts := make([]string, 0, len(t.Indices)+1)
		parts = append(parts, g.initialOperandKey(t.Base))
		for _, ix := range t.Indices {
			parts = append(parts, g.initialOperandKey(ix))
		}
		return fmt.Sprintf("ptr:%s:%s", t.Dst.Type(), strings.Join(parts, ","))
	case *Phi:
		return fmt.Sprintf("phi:%s", t.Dst.Type())
	default:
		return fmt.Sprintf("site:%p", inst)
	}
}

// initialOperandKey renders the stable (non-recursive) part of an
// operand's identity: literal for constants, a per-use-site identity for
// globals, and a wildcard for locals (resolved only during refinement).
func (g *GVN) initialOperandKey(v *Value) string {
	switch v.Kind {
	case ValueConst:
		return fmt.Sprintf("c:%s:%d", v.Typ, v.Const)
	case ValueGlobal:
		return fmt.Sprintf("g:%p", v)
	default:
		return "*"
	}
}

// refinedKey recomputes an instruction's signature using the *current*
// class of each local operand, per spec.md §4.3 point 2.
func (g *GVN) refinedKey(inst Instruction) string {
	switch t := inst.(type) {
	case *Binary:
		x, y := g.refinedOperandKey(t.X), g.refinedOperandKey(t.Y)
		if t.Op.Commutative() && x > y {
			x, y = y, x
		}
		return fmt.Sprintf("bin:%s:%s:%s:%s", t.Op, t.Dst.Type(), x, y)
	case *Unary:
		return fmt.Sprintf("un:%s:%s:%s", t.Op, t.Dst.Type(), g.refinedOperandKey(t.X))
	case *Move:
		return fmt.Sprintf("mov:%s:%s", t.Dst.Type(), g.refinedOperandKey(t.Src))
	case *Addr:
		parts := make([]string, 0, len(t.Indices)+1)
		parts = append(parts, g.refinedOperandKey(t.Base))
		for _, ix := range t.Indices {
			parts = append(parts, g.refinedOperandKey(ix))
		}
		return fmt.Sprintf("ptr:%s:%s", t.Dst.Type(), strings.Join(parts, ","))
	case *Phi:
		arms := make([]string, len(t.Arms))
		for i, a := range t.Arms {
			arms[i] = fmt.Sprintf("%s=%s", a.Pred.Label, g.refinedOperandKey(a.Val))
		}
		sort.Strings(arms)
		return fmt.Sprintf("phi:%s:%s", t.Dst.Type(), strings.Join(arms, ","))
	default:
		return fmt.Sprintf("site:%p", inst)
	}
}

func (g *GVN) refinedOperandKey(v *Value) string {
	switch v.Kind {
	case ValueConst:
		return fmt.Sprintf("c:%s:%d", v.Typ, v.Const)
	case ValueGlobal:
		return fmt.Sprintf("g:%p", v)
	case ValueLocal:
		if def, ok := g.du.DefOf(v); ok {
			return fmt.Sprintf("v:%d", g.classOfInst[def])
		}
		return fmt.Sprintf("p:%s.%d", v.Name, v.Version)
	default:
		return "?"
	}
}

// ClassOf returns the congruence-class id of v, allocating a fresh
// singleton class on first sight for values with no instruction
// (constants, parameters, global reads).
func (g *GVN) ClassOf(v *Value) int {
	if v == nil {
		return -1
	}
	switch v.Kind {
	case ValueConst:
		k := fmt.Sprintf("c:%s:%d", v.Typ, v.Const)
		if id, ok := g.constIDs[k]; ok {
			return id
		}
		id := g.allocID()
		g.constIDs[k] = id
		g.constRev[id] = v
		return id
	case ValueGlobal:
		if id, ok := g.siteIDs[v]; ok {
			return id
		}
		id := g.allocID()
		g.siteIDs[v] = id
		g.siteRev[id] = v
		return id
	case ValueLocal:
		if def, ok := g.du.DefOf(v); ok {
			return g.classOfInst[def]
		}
		k := keyOf(v)
		if id, ok := g.paramIDs[k]; ok {
			return id
		}
		id := g.allocID()
		g.paramIDs[k] = id
		g.paramRev[id] = v
		return id
	}
	return -1
}

func (g *GVN) allocID() int {
	id := g.nextID
	g.nextID++
	return id
}

// LeaderOf returns the class's representative value: for
// instruction-defined classes, the member earliest in program order
// (RPO, then block index, then instruction id, per spec.md §4.3 point 4);
// for constant/parameter/global singleton classes, the value itself.
func (g *GVN) LeaderOf(id int) *Value {
	if id >= 0 && id < len(g.classes) && len(g.classes[id]) > 0 {
		return g.classes[id][0].Dest()
	}
	if v, ok := g.constRev[id]; ok {
		return v
	}
	if v, ok := g.paramRev[id]; ok {
		return v
	}
	if v, ok := g.siteRev[id]; ok {
		return v
	}
	return nil
}

// Equal reports whether a and b are in the same congruence class.
func (g *GVN) Equal(a, b *Value) bool {
	ca, cb := g.ClassOf(a), g.ClassOf(b)
	return ca >= 0 && ca == cb
}

// MembersOf returns the instructions whose destination defines class id
// (empty for non-instruction classes).
func (g *GVN) MembersOf(id int) []Instruction {
	if id < 0 || id >= len(g.classes) {
		return nil
	}
	return g.classes[id]
}
