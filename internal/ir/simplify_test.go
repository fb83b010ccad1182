package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgebraicSimplifyConstantFolds(t *testing.T) {
	b := NewBuilder("fold", nil, i32)
	entry := b.Block("entry")
	s := NewLocal("s", 0, i32)
	b.Bin(entry, OpAdd, s, NewConst(2, i32), NewConst(3, i32))
	b.Return(entry, s)
	fn := b.Finish()

	du := BuildDefUse(fn)
	changed := AlgebraicSimplify(fn, du)
	require.True(t, changed)

	mov, ok := entry.Instrs[0].(*Move)
	require.True(t, ok, "a fully constant binary rewrites in place to a mov of the folded literal")
	n, isConst := IsConstInt(mov.Src)
	require.True(t, isConst)
	assert.Equal(t, int64(5), n)
}

func TestAlgebraicSimplifyIdentities(t *testing.T) {
	x := NewLocal("x", 0, i32)
	params := []*Parameter{{Name: "x", Type: i32, Value: x}}

	cases := []struct {
		name string
		op   BinOp
		x, y *Value
	}{
		{"add zero", OpAdd, nil, NewConst(0, i32)},
		{"mul one", OpMul, nil, NewConst(1, i32)},
		{"sub self", OpSub, nil, nil},
		{"xor self", OpXor, nil, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := NewBuilder("ident", params, i32)
			entry := b.Block("entry")
			s := NewLocal("s", 0, i32)
			y := c.y
			if y == nil {
				y = x
			}
			b.Bin(entry, c.op, s, x, y)
			b.Return(entry, s)
			fn := b.Finish()

			du := BuildDefUse(fn)
			changed := AlgebraicSimplify(fn, du)
			require.True(t, changed, "%s must simplify", c.name)

			mov := entry.Instrs[0].(*Move)
			switch c.name {
			case "sub self", "xor self":
				n, ok := IsConstInt(mov.Src)
				require.True(t, ok)
				assert.Equal(t, int64(0), n)
			default:
				assert.True(t, mov.Src.SameSymbol(x), "%s must simplify to x itself", c.name)
			}
		})
	}
}

func TestAlgebraicSimplifyLeavesNonSimplifiableBinaryAlone(t *testing.T) {
	x := NewLocal("x", 0, i32)
	y := NewLocal("y", 0, i32)
	params := []*Parameter{{Name: "x", Type: i32, Value: x}, {Name: "y", Type: i32, Value: y}}
	b := NewBuilder("nosimplify", params, i32)
	entry := b.Block("entry")
	s := NewLocal("s", 0, i32)
	b.Bin(entry, OpAdd, s, x, y)
	b.Return(entry, s)
	fn := b.Finish()

	du := BuildDefUse(fn)
	changed := AlgebraicSimplify(fn, du)
	assert.False(t, changed, "add of two distinct non-constant operands has no algebraic identity to apply")
}
