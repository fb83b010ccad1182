package parser

import (
	"strconv"
	"strings"

	"irl/internal/diagnostics"
	"irl/internal/ir"
)

// Build lowers a parsed AST into a program graph (spec.md §6's
// "program-graph API" consumer side). It resolves type-alias references,
// constructs globals and functions block-by-block (so forward jump/phi
// references to later blocks in the same function resolve), and reports
// the first construction error found as a KindConstruct diagnostic.
func Build(tree *AST) (*ir.Program, *diagnostics.Diagnostic) {
	b := &builder{prog: ir.NewProgram()}

	for _, item := range tree.Items {
		if item.Alias != nil {
			if _, dup := b.prog.Aliases[item.Alias.Name]; dup {
				return nil, constructErr(diagnostics.CodeDuplicateDef, "duplicate type alias @"+item.Alias.Name)
			}
			b.prog.Aliases[item.Alias.Name] = &ir.AliasType{Name: item.Alias.Name}
		}
	}
	for _, item := range tree.Items {
		if item.Alias == nil {
			continue
		}
		t, d := b.resolveType(item.Alias.Type)
		if d != nil {
			return nil, d
		}
		b.prog.Aliases[item.Alias.Name].Underlying = t
	}

	for _, item := range tree.Items {
		switch {
		case item.Global != nil:
			g, d := b.buildGlobal(item.Global)
			if d != nil {
				return nil, d
			}
			b.prog.Globals = append(b.prog.Globals, g)
		case item.Func != nil:
			fn, d := b.buildFunc(item.Func)
			if d != nil {
				return nil, d
			}
			b.prog.Functions = append(b.prog.Functions, fn)
		}
	}
	if d := ir.VerifyCalls(b.prog); d != nil {
		return nil, d
	}
	return b.prog, nil
}

type builder struct {
	prog *ir.Program
}

func constructErr(code, msg string) *diagnostics.Diagnostic {
	return diagnostics.NewAt(diagnostics.KindConstruct, code, msg, diagnostics.Location{})
}

func (b *builder) resolveType(t *TypeNode) (ir.Type, *diagnostics.Diagnostic) {
	switch {
	case t.Scalar != nil:
		bits, _ := strconv.Atoi(strings.TrimPrefix(*t.Scalar, "i"))
		return &ir.ScalarType{Bits: bits}, nil
	case t.Alias != nil:
		name := strings.TrimPrefix(*t.Alias, "@")
		al, ok := b.prog.Aliases[name]
		if !ok {
			return nil, constructErr(diagnostics.CodeUndefinedSymbol, "undefined type alias @"+name)
		}
		return al, nil
	case t.Ptr != nil:
		elem, d := b.resolveType(t.Ptr)
		if d != nil {
			return nil, d
		}
		return &ir.PointerType{Elem: elem}, nil
	case t.Array != nil:
		n, err := strconv.Atoi(t.Array.Len)
		if err != nil {
			return nil, constructErr(diagnostics.CodeMalformedType, "malformed array length "+t.Array.Len)
		}
		elem, d := b.resolveType(t.Array.Elem)
		if d != nil {
			return nil, d
		}
		return &ir.ArrayType{Len: n, Elem: elem}, nil
	case t.Struct != nil:
		fields := make([]ir.StructField, len(t.Struct.Fields))
		for i, f := range t.Struct.Fields {
			ft, d := b.resolveType(f.Type)
			if d != nil {
				return nil, d
			}
			fields[i] = ir.StructField{Name: f.Name, Type: ft}
		}
		return &ir.StructType{Fields: fields}, nil
	}
	return nil, constructErr(diagnostics.CodeMalformedType, "empty type")
}

func (b *builder) buildGlobal(g *GlobalDecl) (*ir.Global, *diagnostics.Diagnostic) {
	ty, d := b.resolveType(g.Type)
	if d != nil {
		return nil, d
	}
	out := &ir.Global{Name: g.Name, Type: ty}
	if g.Init != nil {
		n, err := strconv.ParseInt(*g.Init, 10, 64)
		if err != nil {
			return nil, constructErr(diagnostics.CodeMalformedType, "malformed integer literal "+*g.Init)
		}
		out.Init = &n
	}
	return out, nil
}

// funcBuilder carries per-function state while lowering its blocks: the
// underlying instruction Builder (spec.md §9's single program-graph
// owner, reached here through the narrow construction API rather than
// field-by-field struct literals).
type funcBuilder struct {
	*builder
	b *ir.Builder
}

func (b *builder) buildFunc(f *FuncDecl) (*ir.Function, *diagnostics.Diagnostic) {
	params := make([]*ir.Parameter, len(f.Params))
	for i, p := range f.Params {
		ty, d := b.resolveType(p.Type)
		if d != nil {
			return nil, d
		}
		name, version := splitLocalSym(p.Name)
		params[i] = &ir.Parameter{Name: name, Type: ty, Value: ir.NewLocal(name, version, ty)}
	}
	var ret ir.Type
	if f.Return != nil {
		var d *diagnostics.Diagnostic
		ret, d = b.resolveType(f.Return)
		if d != nil {
			return nil, d
		}
	}
	fb := &funcBuilder{builder: b, b: ir.NewBuilder(f.Name, params, ret)}

	for _, blk := range f.Blocks {
		fb.b.Block(blk.Label)
	}
	for _, blk := range f.Blocks {
		target := fb.b.Fn.BlockByLabel(blk.Label)
		for _, line := range blk.Instrs {
			if d := fb.buildInstr(target, line); d != nil {
				return nil, d
			}
		}
		if target.Term == nil {
			return nil, constructErr(diagnostics.CodeMissingTerminator, "block %"+blk.Label+" in @"+f.Name+" has no terminator")
		}
	}
	return fb.b.Finish(), nil
}

func splitLocalSym(tok string) (name string, version int) {
	tok = strings.TrimPrefix(tok, "$")
	if i := strings.IndexByte(tok, '.'); i >= 0 {
		v, _ := strconv.Atoi(tok[i+1:])
		return tok[:i], v
	}
	return tok, 0
}

func blockByLabel(fn *ir.Function, withSigil string) *ir.BasicBlock {
	return fn.BlockByLabel(strings.TrimPrefix(withSigil, "%"))
}

// resolveValue builds an ir.Value for one operand, typed by ty (the
// instruction line's declared type, per spec.md §6's `dst <- op type
// operands` form).
func (fb *funcBuilder) resolveValue(v *ValueNode, ty ir.Type) (*ir.Value, *diagnostics.Diagnostic) {
	switch {
	case v.Int != nil:
		n, err := strconv.ParseInt(*v.Int, 10, 64)
		if err != nil {
			return nil, constructErr(diagnostics.CodeMalformedType, "malformed integer literal "+*v.Int)
		}
		return ir.NewConst(n, ty), nil
	case v.Global != nil:
		return ir.NewGlobal(strings.TrimPrefix(*v.Global, "@"), ty), nil
	case v.Local != nil:
		name, version := splitLocalSym(*v.Local)
		return ir.NewLocal(name, version, ty), nil
	}
	return nil, constructErr(diagnostics.CodeMalformedType, "empty operand")
}

func (fb *funcBuilder) resolveValues(nodes []*ValueNode, ty ir.Type) ([]*ir.Value, *diagnostics.Diagnostic) {
	out := make([]*ir.Value, len(nodes))
	for i, n := range nodes {
		v, d := fb.resolveValue(n, ty)
		if d != nil {
			return nil, d
		}
		out[i] = v
	}
	return out, nil
}

func (fb *funcBuilder) buildInstr(blk *ir.BasicBlock, line *InstrLine) *diagnostics.Diagnostic {
	switch {
	case line.Assign != nil:
		return fb.buildAssign(blk, line.Assign)
	case line.Store != nil:
		s := line.Store
		ty, d := fb.resolveType(s.Type)
		if d != nil {
			return d
		}
		addr, d := fb.resolveValue(s.Addr, &ir.PointerType{Elem: ty})
		if d != nil {
			return d
		}
		val, d := fb.resolveValue(s.Val, ty)
		if d != nil {
			return d
		}
		fb.b.StoreInst(blk, addr, val)
		return nil
	case line.CallV != nil:
		args, d := fb.resolveValues(line.CallV.Args, nil)
		if d != nil {
			return d
		}
		fb.b.CallInst(blk, nil, line.CallV.Callee, args...)
		return nil
	case line.Jmp != nil:
		target := blockByLabel(fb.b.Fn, line.Jmp.Target)
		if target == nil {
			return constructErr(diagnostics.CodeUnknownLabel, "undefined block "+line.Jmp.Target)
		}
		fb.b.Jump(blk, target)
		return nil
	case line.Br != nil:
		cond, d := fb.resolveValue(line.Br.Cond, &ir.ScalarType{Bits: 8})
		if d != nil {
			return d
		}
		t := blockByLabel(fb.b.Fn, line.Br.True)
		f := blockByLabel(fb.b.Fn, line.Br.False)
		if t == nil || f == nil {
			return constructErr(diagnostics.CodeUnknownLabel, "undefined branch target in @"+fb.b.Fn.Name)
		}
		fb.b.Branch(blk, cond, t, f)
		return nil
	case line.Ret != nil:
		if line.Ret.Val == nil {
			fb.b.Return(blk, nil)
			return nil
		}
		v, d := fb.resolveValue(line.Ret.Val, fb.b.Fn.ReturnType)
		if d != nil {
			return d
		}
		fb.b.Return(blk, v)
		return nil
	}
	return constructErr(diagnostics.CodeMalformedType, "empty instruction line")
}

func (fb *funcBuilder) buildAssign(blk *ir.BasicBlock, a *AssignLine) *diagnostics.Diagnostic {
	name, version := splitLocalSym(a.Dst)
	op := a.Op

	switch {
	case op.Mov != nil:
		ty, d := fb.resolveType(op.Mov.Type)
		if d != nil {
			return d
		}
		src, d := fb.resolveValue(op.Mov.Src, ty)
		if d != nil {
			return d
		}
		fb.b.Move(blk, ir.NewLocal(name, version, ty), src)
		return nil

	case op.Bin != nil:
		ty, d := fb.resolveType(op.Bin.Type)
		if d != nil {
			return d
		}
		x, d := fb.resolveValue(op.Bin.X, ty)
		if d != nil {
			return d
		}
		y, d := fb.resolveValue(op.Bin.Y, ty)
		if d != nil {
			return d
		}
		fb.b.Bin(blk, ir.BinOp(op.Bin.Op), ir.NewLocal(name, version, ty), x, y)
		return nil

	case op.Un != nil:
		ty, d := fb.resolveType(op.Un.Type)
		if d != nil {
			return d
		}
		x, d := fb.resolveValue(op.Un.X, ty)
		if d != nil {
			return d
		}
		fb.b.Un(blk, ir.UnOp(op.Un.Op), ir.NewLocal(name, version, ty), x)
		return nil

	case op.Alloc != nil:
		elem, d := fb.resolveType(op.Alloc.Elem)
		if d != nil {
			return d
		}
		fb.b.AllocInst(blk, ir.NewLocal(name, version, &ir.PointerType{Elem: elem}), elem)
		return nil

	case op.New != nil:
		elem, d := fb.resolveType(op.New.Elem)
		if d != nil {
			return d
		}
		count, d := fb.resolveValue(op.New.Count, &ir.ScalarType{Bits: 64})
		if d != nil {
			return d
		}
		fb.b.NewInst(blk, ir.NewLocal(name, version, &ir.PointerType{Elem: elem}), elem, count)
		return nil

	case op.Load != nil:
		ty, d := fb.resolveType(op.Load.Type)
		if d != nil {
			return d
		}
		addr, d := fb.resolveValue(op.Load.Addr, &ir.PointerType{Elem: ty})
		if d != nil {
			return d
		}
		fb.b.LoadInst(blk, ir.NewLocal(name, version, ty), addr)
		return nil

	case op.Addr != nil:
		ty, d := fb.resolveType(op.Addr.Type)
		if d != nil {
			return d
		}
		base, d := fb.resolveValue(op.Addr.Base, ty)
		if d != nil {
			return d
		}
		indices, d := fb.resolveValues(op.Addr.Indices, &ir.ScalarType{Bits: 64})
		if d != nil {
			return d
		}
		fb.b.AddrInst(blk, ir.NewLocal(name, version, ty), base, indices...)
		return nil

	case op.Call != nil:
		ty, d := fb.resolveType(op.Call.Type)
		if d != nil {
			return d
		}
		args, d := fb.resolveValues(op.Call.Args, nil)
		if d != nil {
			return d
		}
		fb.b.CallInst(blk, ir.NewLocal(name, version, ty), op.Call.Callee, args...)
		return nil

	case op.Phi != nil:
		ty, d := fb.resolveType(op.Phi.Type)
		if d != nil {
			return d
		}
		arms := make([]ir.PhiArm, len(op.Phi.Arms))
		for i, arm := range op.Phi.Arms {
			pred := blockByLabel(fb.b.Fn, arm.Pred)
			if pred == nil {
				return constructErr(diagnostics.CodeUnknownLabel, "undefined phi predecessor "+arm.Pred)
			}
			val, d := fb.resolveValue(arm.Val, ty)
			if d != nil {
				return d
			}
			arms[i] = ir.PhiArm{Pred: pred, Val: val}
		}
		fb.b.PhiInst(blk, ir.NewLocal(name, version, ty), arms...)
		return nil
	}
	return constructErr(diagnostics.CodeMalformedType, "empty assignment right-hand side")
}
