package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildStraightLine builds a single-block function computing:
//
//	$a <- add i32 $x, $y
//	$b <- add i32 $y, $x   ; commutative duplicate of $a
//	$c <- add i32 $a, 1
//	ret $c
func buildStraightLine() (*Function, *Value, *Value, *Value) {
	x := NewLocal("x", 0, i32)
	y := NewLocal("y", 0, i32)
	params := []*Parameter{{Name: "x", Type: i32, Value: x}, {Name: "y", Type: i32, Value: y}}
	b := NewBuilder("straight", params, i32)
	entry := b.Block("entry")

	a := NewLocal("a", 0, i32)
	bv := NewLocal("b", 0, i32)
	c := NewLocal("c", 0, i32)
	b.Bin(entry, OpAdd, a, x, y)
	b.Bin(entry, OpAdd, bv, y, x)
	b.Bin(entry, OpAdd, c, a, NewConst(1, i32))
	b.Return(entry, c)

	fn := b.Finish()
	return fn, a, bv, c
}

func TestGVNCommutativeCongruence(t *testing.T) {
	fn, a, bv, _ := buildStraightLine()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	gvn := ComputeGVN(fn, cfg, du)

	assert.True(t, gvn.Equal(a, bv), "add x,y and add y,x must land in the same congruence class")
}

func TestGVNEqualIsReflexiveAndSeparatesDistinctExprs(t *testing.T) {
	fn, a, _, c := buildStraightLine()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	gvn := ComputeGVN(fn, cfg, du)

	assert.True(t, gvn.Equal(a, a), "a value is always congruent to itself")
	assert.False(t, gvn.Equal(a, c), "x+y and a+1 compute different things and must not be congruent")
}

func TestGVNConstantIdentity(t *testing.T) {
	fn, _, _, _ := buildStraightLine()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	gvn := ComputeGVN(fn, cfg, du)

	one := NewConst(1, i32)
	anotherOne := NewConst(1, i32)
	two := NewConst(2, i32)

	assert.True(t, gvn.Equal(one, anotherOne), "two separately-allocated constants of equal value and type are congruent")
	assert.False(t, gvn.Equal(one, two))
}

// buildLoopCongruence builds the loop-carried congruence shape of spec.md's
// GVN scenario: two induction variables stepped identically from the same
// base are congruent in every iteration, discovered only by repeated
// refinement (not by a single initial-key pass).
//
//	entry -> header
//	header: $i <- phi [entry: 0][body: $i.next]
//	        $j <- phi [entry: 0][body: $j.next]
//	        br cond ? body : exit
//	body:   $i.next <- add i32 $i, 1
//	        $j.next <- add i32 $j, 1
//	        jmp header
//	exit:   ret $i
func buildLoopCongruence() (*Function, *Value, *Value) {
	cond := NewLocal("cond", 0, i32)
	b := NewBuilder("loopgvn", []*Parameter{{Name: "cond", Type: i32, Value: cond}}, i32)
	entry := b.Block("entry")
	header := b.Block("header")
	body := b.Block("body")
	exit := b.Block("exit")

	i := NewLocal("i", 1, i32)
	j := NewLocal("j", 1, i32)
	iNext := NewLocal("i", 2, i32)
	jNext := NewLocal("j", 2, i32)

	b.Jump(entry, header)
	b.PhiInst(header, i, PhiArm{Pred: entry, Val: NewConst(0, i32)}, PhiArm{Pred: body, Val: iNext})
	b.PhiInst(header, j, PhiArm{Pred: entry, Val: NewConst(0, i32)}, PhiArm{Pred: body, Val: jNext})
	b.Branch(header, cond, body, exit)
	b.Bin(body, OpAdd, iNext, i, NewConst(1, i32))
	b.Bin(body, OpAdd, jNext, j, NewConst(1, i32))
	b.Jump(body, header)
	b.Return(exit, i)

	fn := b.Finish()
	return fn, i, j
}

func TestGVNLoopCarriedCongruenceByRefinement(t *testing.T) {
	fn, i, j := buildLoopCongruence()
	cfg := BuildCFG(fn)
	du := BuildDefUse(fn)
	gvn := ComputeGVN(fn, cfg, du)

	assert.True(t, gvn.Equal(i, j), "i and j are stepped identically from the same base, so they must converge to one class")
}
