package ir

// symKey is the comparable identity key for a global/local symbol,
// matching Value.Identity() (spec.md §3: "symbol identity is by
// (scope, name, version)").
type symKey struct {
	Kind    ValueKind
	Name    string
	Version int
}

func keyOf(v *Value) symKey {
	k, n, ver := v.Identity()
	return symKey{Kind: k, Name: n, Version: ver}
}

// Use is one use site: an instruction and the operand position (as
// returned by Instruction.Operands()) that reads the symbol.
type Use struct {
	Inst    Instruction
	Operand int
}

// DefUse is the def/use index of spec.md §4.2: for every local symbol,
// its unique defining instruction and the multiset of use sites. Built
// by a single scan over a function; updated incrementally by the
// Record*/Remove helpers so passes do not need to rebuild it after every
// edit.
type DefUse struct {
	fn   *Function
	defs map[symKey]Instruction
	uses map[symKey][]Use
}

// BuildDefUse scans fn once and returns its def/use index.
func BuildDefUse(fn *Function) *DefUse {
	du := &DefUse{fn: fn, defs: make(map[symKey]Instruction), uses: make(map[symKey][]Use)}
	for _, b := range fn.Blocks {
		for _, inst := range b.AllInstrs() {
			du.recordDest(inst)
			du.recordOperands(inst)
		}
	}
	return du
}

func (du *DefUse) recordDest(inst Instruction) {
	d := inst.Dest()
	if d == nil || d.Kind != ValueLocal {
		return
	}
	du.defs[keyOf(d)] = inst
}

func (du *DefUse) recordOperands(inst Instruction) {
	for i, op := range inst.Operands() {
		if op == nil || op.Kind != ValueLocal {
			continue
		}
		k := keyOf(op)
		du.uses[k] = append(du.uses[k], Use{Inst: inst, Operand: i})
	}
}

// DefOf returns the instruction defining v's symbol, and whether one
// exists (parameters and undefined forward references have none).
func (du *DefUse) DefOf(v *Value) (Instruction, bool) {
	inst, ok := du.defs[keyOf(v)]
	return inst, ok
}

// UsesOf returns every recorded use site of v's symbol.
func (du *DefUse) UsesOf(v *Value) []Use {
	return du.uses[keyOf(v)]
}

// UseCount reports how many use sites remain for v's symbol.
func (du *DefUse) UseCount(v *Value) int {
	return len(du.uses[keyOf(v)])
}

// RecordInstr adds inst's def/uses to the index, for a newly inserted
// instruction.
func (du *DefUse) RecordInstr(inst Instruction) {
	du.recordDest(inst)
	du.recordOperands(inst)
}

// RemoveInstr drops inst's def/uses from the index, for a deleted
// instruction. Callers must already have unlinked it from its block.
func (du *DefUse) RemoveInstr(inst Instruction) {
	if d := inst.Dest(); d != nil && d.Kind == ValueLocal {
		k := keyOf(d)
		if du.defs[k] == inst {
			delete(du.defs, k)
		}
	}
	for i, op := range inst.Operands() {
		if op == nil || op.Kind != ValueLocal {
			continue
		}
		k := keyOf(op)
		us := du.uses[k]
		for j, u := range us {
			if u.Inst == inst && u.Operand == i {
				us = append(us[:j], us[j+1:]...)
				break
			}
		}
		if len(us) == 0 {
			delete(du.uses, k)
		} else {
			du.uses[k] = us
		}
	}
}

// ReplaceAllUses substitutes every recorded use of old's symbol with the
// value repl, provided repl's type matches and, when repl is a local,
// its definition dominates every former use site (spec.md §4.2
// "Replace-all-uses"). cfg may be nil to skip the dominance check (e.g.
// when the caller has already established it some other way).
func ReplaceAllUses(du *DefUse, cfg *CFG, old, repl *Value) {
	if old == nil || repl == nil {
		return
	}
	if !typesCompatible(old.Type(), repl.Type()) {
		return
	}
	oldKey := keyOf(old)
	pending := append([]Use(nil), du.uses[oldKey]...)
	var moved []Use
	for _, u := range pending {
		if cfg != nil && repl.Kind == ValueLocal {
			if def, ok := du.DefOf(repl); ok && !dominatesUse(cfg, def, u) {
				continue
			}
		}
		u.Inst.SetOperand(u.Operand, repl)
		moved = append(moved, u)
	}
	remaining := pending[:0]
	for _, u := range pending {
		found := false
		for _, m := range moved {
			if m == u {
				found = true
				break
			}
		}
		if !found {
			remaining = append(remaining, u)
		}
	}
	if len(remaining) == 0 {
		delete(du.uses, oldKey)
	} else {
		du.uses[oldKey] = remaining
	}
	if repl.Kind == ValueLocal && len(moved) > 0 {
		k := keyOf(repl)
		du.uses[k] = append(du.uses[k], moved...)
	}
}

// dominatesUse reports whether def's instruction dominates the
// instruction reading it at use, accounting for the phi special case
// (spec.md SSA-2: a phi operand need only be dominated at the end of
// its predecessor block).
func dominatesUse(cfg *CFG, def Instruction, use Use) bool {
	defBlk := def.Block()
	if p, ok := use.Inst.(*Phi); ok {
		pred := p.Arms[use.Operand].Pred
		return cfg.Dominates(defBlk, pred)
	}
	useBlk := use.Inst.Block()
	if defBlk == useBlk {
		return def.ID() < use.Inst.ID()
	}
	return cfg.Dominates(defBlk, useBlk)
}
