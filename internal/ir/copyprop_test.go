package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyPropRemovesMoveWithNoRemainingUses(t *testing.T) {
	x := NewLocal("x", 0, i32)
	params := []*Parameter{{Name: "x", Type: i32, Value: x}}
	b := NewBuilder("movecopy", params, i32)
	entry := b.Block("entry")

	a := NewLocal("a", 0, i32)
	s := NewLocal("s", 0, i32)
	b.Move(entry, a, x)
	b.Bin(entry, OpAdd, s, a, NewConst(1, i32))
	b.Return(entry, s)
	fn := b.Finish()

	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	changed := CopyProp(fn, cfg, du)
	require.True(t, changed)

	for _, inst := range entry.AllInstrs() {
		_, isMove := inst.(*Move)
		assert.False(t, isMove, "the move's only use was rewritten to read x directly, so no mov should remain")
	}
	bin := entry.Instrs[0].(*Binary)
	assert.True(t, bin.X.SameSymbol(x), "the add must now read x directly instead of through a")
}

func TestCopyPropCollapsesTrivialPhi(t *testing.T) {
	b := NewBuilder("trivialphi", nil, i32)
	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")
	join := b.Block("join")

	cond := NewLocal("cond", 0, i32)
	b.Branch(entry, cond, left, right)
	b.Jump(left, join)
	b.Jump(right, join)

	v := NewLocal("v", 0, i32)
	// both arms carry the same constant 5: the phi is trivial.
	b.PhiInst(join, v, PhiArm{Pred: left, Val: NewConst(5, i32)}, PhiArm{Pred: right, Val: NewConst(5, i32)})
	b.Return(join, v)
	fn := b.Finish()

	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	changed := CopyProp(fn, cfg, du)
	require.True(t, changed)

	assert.Empty(t, join.Phis(), "a phi whose arms agree on one value collapses and is removed")
	ret := join.Term.(*Ret)
	n, ok := IsConstInt(ret.Val)
	require.True(t, ok)
	assert.Equal(t, int64(5), n)
}
