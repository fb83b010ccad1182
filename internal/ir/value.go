package ir

import "fmt"

// ValueKind distinguishes the three operand-able value variants of spec.md
// §3. Block labels (the fourth variant) are represented directly as
// *BasicBlock pointers on terminators rather than as a Value variant — see
// DESIGN.md for the rationale.
type ValueKind int

const (
	ValueConst ValueKind = iota
	ValueGlobal
	ValueLocal
)

func (k ValueKind) String() string {
	switch k {
	case ValueConst:
		return "const"
	case ValueGlobal:
		return "global"
	case ValueLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Value is an IRL value: a constant, a global symbol, or a (possibly
// versioned) local symbol. Identity for globals/locals is by
// (scope, name, version); two *Value pointers with equal identity fields
// are considered the same symbol even if allocated separately (the
// def/use index and verifier compare by identity, not by pointer, so that
// the parser can resolve forward references before a definition exists).
type Value struct {
	Kind ValueKind
	Typ  Type

	// Const holds the literal for ValueConst.
	Const int64

	// Name is the symbol name for ValueGlobal/ValueLocal (without sigil).
	Name string
	// Version distinguishes SSA renamings of the same source name
	// ($name.Version). Version 0 prints without a suffix.
	Version int

	// Def is the instruction that defines this value, set for ValueLocal
	// once the definition has been emitted. Nil for parameters defined
	// implicitly by the function signature, constants, and globals.
	Def Instruction
}

// Identity returns the comparable identity key spec.md §3 describes.
func (v *Value) Identity() (ValueKind, string, int) {
	return v.Kind, v.Name, v.Version
}

// Type returns the value's static type.
func (v *Value) Type() Type { return v.Typ }

// SameSymbol reports whether v and o name the same symbol (ignoring type,
// which must agree for well-typed programs anyway).
func (v *Value) SameSymbol(o *Value) bool {
	if v == o {
		return true
	}
	if v == nil || o == nil {
		return false
	}
	return v.Identity() == o.Identity()
}

func (v *Value) String() string {
	switch v.Kind {
	case ValueConst:
		return fmt.Sprintf("%d", v.Const)
	case ValueGlobal:
		return "@" + v.Name
	case ValueLocal:
		if v.Version > 0 {
			return fmt.Sprintf("$%s.%d", v.Name, v.Version)
		}
		return "$" + v.Name
	default:
		return "<invalid value>"
	}
}

// NewConst builds a constant value of the given scalar type.
func NewConst(n int64, t Type) *Value {
	return &Value{Kind: ValueConst, Typ: t, Const: n}
}

// NewGlobal builds a reference to a global symbol.
func NewGlobal(name string, t Type) *Value {
	return &Value{Kind: ValueGlobal, Typ: t, Name: name}
}

// NewLocal builds a reference to a (possibly versioned) local symbol.
func NewLocal(name string, version int, t Type) *Value {
	return &Value{Kind: ValueLocal, Typ: t, Name: name, Version: version}
}

// IsConstInt reports whether v is a constant and returns its value.
func IsConstInt(v *Value) (int64, bool) {
	if v != nil && v.Kind == ValueConst {
		return v.Const, true
	}
	return 0, false
}
