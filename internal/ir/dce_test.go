package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDeadChain builds a chain of pure temporaries feeding a dead value,
// alongside one stored local that must survive: spec.md §8 scenario 5.
//
//	entry: $t1 <- add i32 $x, 1
//	       $t2 <- add i32 $t1, 1   ; dead: nothing reads $t2
//	       $p  <- alloc i32
//	       st i32 $p, $x
//	       ret
func buildDeadChain() (*Function, *BasicBlock, *Value, *Value, *Value) {
	x := NewLocal("x", 0, i32)
	params := []*Parameter{{Name: "x", Type: i32, Value: x}}
	b := NewBuilder("deadchain", params, nil)
	entry := b.Block("entry")

	t1 := NewLocal("t1", 0, i32)
	t2 := NewLocal("t2", 0, i32)
	p := NewLocal("p", 0, &PointerType{Elem: i32})

	b.Bin(entry, OpAdd, t1, x, NewConst(1, i32))
	b.Bin(entry, OpAdd, t2, t1, NewConst(1, i32))
	b.AllocInst(entry, p, i32)
	b.StoreInst(entry, p, x)
	b.Return(entry, nil)

	fn := b.Finish()
	return fn, entry, t1, t2, p
}

func TestDCERemovesWholeDeadChainButKeepsObservableRoots(t *testing.T) {
	fn, entry, _, _, _ := buildDeadChain()
	du := BuildDefUse(fn)

	changed := DCE(fn, du)
	require.True(t, changed)

	var kinds []string
	for _, inst := range entry.AllInstrs() {
		kinds = append(kinds, instrKind(inst))
	}
	assert.Equal(t, []string{"alloc", "store", "ret"}, kinds,
		"t1 and t2 are pure and unused by any observable root, so the whole chain is pruned in one pass")
}

func TestDCEIsIdempotent(t *testing.T) {
	fn, _, _, _, _ := buildDeadChain()
	du := BuildDefUse(fn)
	DCE(fn, du)

	du2 := BuildDefUse(fn)
	changed := DCE(fn, du2)
	assert.False(t, changed, "a second DCE pass over an already-clean function changes nothing")
}

func instrKind(inst Instruction) string {
	switch inst.(type) {
	case *Binary:
		return "binary"
	case *Unary:
		return "unary"
	case *Move:
		return "move"
	case *Alloc:
		return "alloc"
	case *New:
		return "new"
	case *Load:
		return "load"
	case *Store:
		return "store"
	case *Addr:
		return "addr"
	case *Call:
		return "call"
	case *Phi:
		return "phi"
	case *Jmp:
		return "jmp"
	case *Br:
		return "br"
	case *Ret:
		return "ret"
	default:
		return "unknown"
	}
}
