// Package vm is a tree-walking interpreter over the IRL program graph,
// able to run unoptimized and optimized IR so that their observable
// results and counters can be compared. It is not a
// production execution engine: no external calls, no metering market, no
// ABI, just enough semantics to make a pass's correctness laws checkable.
package vm

import (
	"strconv"

	"irl/internal/diagnostics"
	"irl/internal/ir"
)

const maxCallDepth = 1024

// Result is the outcome of running a program to completion: the final
// values of every global, plus execution counters used by tests that
// want to assert a pass didn't change observable behavior or cost.
type Result struct {
	Return         int64
	HasReturn      bool
	Globals        map[string]int64
	Instructions   int64
	Cycles         int64
}

// Machine executes a single program. Each Run call starts from the
// program's global initializers, so a Machine may be reused across runs.
type Machine struct {
	prog *ir.Program
	mem  *memory
}

func New(prog *ir.Program) *Machine {
	return &Machine{prog: prog}
}

type frame struct {
	locals map[string]int64
}

// Run executes mainSymbol's function to completion with the given
// arguments and returns the resulting globals and counters, or a runtime
// diagnostic if execution hit an error (never a Go panic).
func (m *Machine) Run(mainSymbol string, args []int64) (*Result, *diagnostics.Diagnostic) {
	fn := m.prog.FuncByName(mainSymbol)
	if fn == nil {
		return nil, runtimeErr(diagnostics.CodeUndefinedCall, "undefined function @"+mainSymbol, diagnostics.Location{})
	}
	m.mem = newMemory()
	globals := make(map[string]int64, len(m.prog.Globals))
	for _, g := range m.prog.Globals {
		var v int64
		if g.Init != nil {
			v = *g.Init
		}
		globals[g.Name] = v
	}
	res := &Result{}
	ret, diag := m.call(fn, args, globals, res, 0)
	if diag != nil {
		return nil, diag
	}
	if fn.ReturnType != nil {
		res.Return = ret
		res.HasReturn = true
	}
	res.Globals = globals
	return res, nil
}

// runtimeErr builds a KindRuntime diagnostic at the given location, per
// spec.md §7: runtime errors stop execution and unwind with
// function/block/instruction-index location rather than panicking.
func runtimeErr(code, msg string, loc diagnostics.Location) *diagnostics.Diagnostic {
	return diagnostics.NewAt(diagnostics.KindRuntime, code, msg, loc)
}

func locOf(fn *ir.Function, blk *ir.BasicBlock, idx int) diagnostics.Location {
	return diagnostics.Location{Function: fn.Name, Block: blk.Label, Index: idx}
}

// call executes fn with the given argument values, sharing globals/mem/
// counters with the caller. depth bounds recursion so a runaway call
// chain reports a diagnostic instead of exhausting the Go stack.
func (m *Machine) call(fn *ir.Function, args []int64, globals map[string]int64, res *Result, depth int) (int64, *diagnostics.Diagnostic) {
	if depth > maxCallDepth {
		return 0, runtimeErr(diagnostics.CodeStackOverflow, "call depth exceeded in @"+fn.Name, diagnostics.Location{Function: fn.Name})
	}
	fr := &frame{locals: make(map[string]int64, len(fn.Params))}
	for i, p := range fn.Params {
		if i < len(args) {
			fr.locals[localKey(p.Value)] = args[i]
		}
	}

	blk := fn.Entry
	var pred *ir.BasicBlock
	for {
		for _, phi := range blk.Phis() {
			val, ok := phi.ArmFor(pred)
			if !ok {
				return 0, runtimeErr(diagnostics.CodeInternalInvalid, "phi missing arm for predecessor in @"+fn.Name, locOf(fn, blk, 0))
			}
			fr.locals[localKey(phi.Dst)] = m.eval(val, fr, globals)
		}

		for idx, inst := range blk.Instrs {
			if _, ok := inst.(*ir.Phi); ok {
				continue
			}
			res.Instructions++
			res.Cycles += cycleCost(inst)
			if diag := m.exec(fn, blk, idx, inst, fr, globals, res, depth); diag != nil {
				return 0, diag
			}
		}

		res.Instructions++
		res.Cycles += cycleCost(blk.Term)
		switch t := blk.Term.(type) {
		case *ir.Jmp:
			pred, blk = blk, t.Target
		case *ir.Br:
			cond := m.eval(t.Cond, fr, globals)
			pred = blk
			if cond != 0 {
				blk = t.True
			} else {
				blk = t.False
			}
		case *ir.Ret:
			if t.Val == nil {
				return 0, nil
			}
			return m.eval(t.Val, fr, globals), nil
		default:
			return 0, runtimeErr(diagnostics.CodeInternalInvalid, "block has no terminator", locOf(fn, blk, len(blk.Instrs)))
		}
	}
}

func localKey(v *ir.Value) string {
	if v.Version == 0 {
		return v.Name
	}
	return v.Name + "." + strconv.Itoa(v.Version)
}

func (m *Machine) eval(v *ir.Value, fr *frame, globals map[string]int64) int64 {
	switch v.Kind {
	case ir.ValueConst:
		return v.Const
	case ir.ValueGlobal:
		return globals[v.Name]
	default:
		return fr.locals[localKey(v)]
	}
}

// cycleCost weights instructions: memory operations and calls cost more
// than pure arithmetic, a generic stand-in for the per-opcode costing a
// real accounting model would do.
func cycleCost(inst ir.Instruction) int64 {
	switch inst.(type) {
	case *ir.Load, *ir.Store, *ir.Alloc, *ir.New, *ir.Addr:
		return 3
	case *ir.Call:
		return 10
	default:
		return 1
	}
}

func (m *Machine) exec(fn *ir.Function, blk *ir.BasicBlock, idx int, inst ir.Instruction, fr *frame, globals map[string]int64, res *Result, depth int) *diagnostics.Diagnostic {
	loc := locOf(fn, blk, idx)
	switch n := inst.(type) {
	case *ir.Move:
		fr.locals[localKey(n.Dst)] = m.eval(n.Src, fr, globals)

	case *ir.Binary:
		x, y := m.eval(n.X, fr, globals), m.eval(n.Y, fr, globals)
		val, diag := evalBinary(n.Op, x, y, loc)
		if diag != nil {
			return diag
		}
		fr.locals[localKey(n.Dst)] = val

	case *ir.Unary:
		x := m.eval(n.X, fr, globals)
		switch n.Op {
		case ir.OpNeg:
			fr.locals[localKey(n.Dst)] = -x
		case ir.OpNot:
			fr.locals[localKey(n.Dst)] = ^x
		}

	case *ir.Alloc:
		fr.locals[localKey(n.Dst)] = m.mem.alloc(wordSize)

	case *ir.New:
		count := m.eval(n.Count, fr, globals)
		if count < 0 {
			return runtimeErr(diagnostics.CodeOutOfBounds, "negative allocation count", loc)
		}
		fr.locals[localKey(n.Dst)] = m.mem.alloc(int(count) * wordSize)

	case *ir.Load:
		addr := m.eval(n.Addr, fr, globals)
		val, ok := m.mem.load(addr)
		if !ok {
			if addr == 0 {
				return runtimeErr(diagnostics.CodeNullDeref, "load through null pointer", loc)
			}
			return runtimeErr(diagnostics.CodeOutOfBounds, "load out of bounds", loc)
		}
		fr.locals[localKey(n.Dst)] = val

	case *ir.Store:
		addr := m.eval(n.Addr, fr, globals)
		val := m.eval(n.Val, fr, globals)
		if !m.mem.store(addr, val) {
			if addr == 0 {
				return runtimeErr(diagnostics.CodeNullDeref, "store through null pointer", loc)
			}
			return runtimeErr(diagnostics.CodeOutOfBounds, "store out of bounds", loc)
		}

	case *ir.Addr:
		base := m.eval(n.Base, fr, globals)
		for _, ix := range n.Indices {
			base += m.eval(ix, fr, globals) * wordSize
		}
		fr.locals[localKey(n.Dst)] = base

	case *ir.Call:
		callee := m.prog.FuncByName(n.Callee)
		if callee == nil {
			return runtimeErr(diagnostics.CodeUndefinedCall, "call to undefined function @"+n.Callee, loc)
		}
		args := make([]int64, len(n.Args))
		for i, a := range n.Args {
			args[i] = m.eval(a, fr, globals)
		}
		ret, diag := m.call(callee, args, globals, res, depth+1)
		if diag != nil {
			return diag
		}
		if n.Dst != nil {
			fr.locals[localKey(n.Dst)] = ret
		}
	}
	return nil
}

func evalBinary(op ir.BinOp, x, y int64, loc diagnostics.Location) (int64, *diagnostics.Diagnostic) {
	switch op {
	case ir.OpAdd:
		return x + y, nil
	case ir.OpSub:
		return x - y, nil
	case ir.OpMul:
		return x * y, nil
	case ir.OpDiv:
		if y == 0 {
			return 0, runtimeErr(diagnostics.CodeDivideByZero, "division by zero", loc)
		}
		return x / y, nil
	case ir.OpMod:
		if y == 0 {
			return 0, runtimeErr(diagnostics.CodeDivideByZero, "modulo by zero", loc)
		}
		return x % y, nil
	case ir.OpAnd:
		return x & y, nil
	case ir.OpOr:
		return x | y, nil
	case ir.OpXor:
		return x ^ y, nil
	case ir.OpShl:
		return x << uint(y), nil
	case ir.OpShr:
		return x >> uint(y), nil
	case ir.OpEq:
		return boolInt(x == y), nil
	case ir.OpNe:
		return boolInt(x != y), nil
	case ir.OpLt:
		return boolInt(x < y), nil
	case ir.OpLe:
		return boolInt(x <= y), nil
	case ir.OpGt:
		return boolInt(x > y), nil
	case ir.OpGe:
		return boolInt(x >= y), nil
	}
	return 0, runtimeErr(diagnostics.CodeInternalInvalid, "unknown binary op "+string(op), loc)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
