// Package ir implements the IRL program graph: types, values, instructions,
// blocks, functions and the whole-program container, plus the analyses and
// optimization passes that operate over it in SSA form.
package ir

import (
	"fmt"
	"strings"
)

// Type is an IRL type. Equality is structural modulo alias unfolding
// (spec.md §3): two types are equal iff their unfolded forms match.
type Type interface {
	String() string
	// Equal reports structural equality, unfolding aliases on both sides.
	Equal(other Type) bool
}

// ScalarType is one of the fixed-width integer types i8/i16/i32/i64.
type ScalarType struct {
	Bits int
}

func (s *ScalarType) String() string { return fmt.Sprintf("i%d", s.Bits) }

func (s *ScalarType) Equal(other Type) bool {
	o, ok := Unfold(other).(*ScalarType)
	return ok && o.Bits == s.Bits
}

// PointerType is a pointer to an element type.
type PointerType struct {
	Elem Type
}

func (p *PointerType) String() string { return "ptr " + p.Elem.String() }

func (p *PointerType) Equal(other Type) bool {
	o, ok := Unfold(other).(*PointerType)
	return ok && p.Elem.Equal(o.Elem)
}

// ArrayType is a fixed-length homogeneous array.
type ArrayType struct {
	Len  int
	Elem Type
}

func (a *ArrayType) String() string { return fmt.Sprintf("[%d]%s", a.Len, a.Elem.String()) }

func (a *ArrayType) Equal(other Type) bool {
	o, ok := Unfold(other).(*ArrayType)
	return ok && a.Len == o.Len && a.Elem.Equal(o.Elem)
}

// StructField is one named, typed field of a StructType.
type StructField struct {
	Name string
	Type Type
}

// StructType is a structure of named fields, compared structurally in
// declaration order.
type StructType struct {
	Fields []StructField
}

func (s *StructType) String() string {
	var b strings.Builder
	b.WriteString("struct { ")
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Type.String())
	}
	b.WriteString(" }")
	return b.String()
}

func (s *StructType) Equal(other Type) bool {
	o, ok := Unfold(other).(*StructType)
	if !ok || len(o.Fields) != len(s.Fields) {
		return false
	}
	for i, f := range s.Fields {
		if f.Name != o.Fields[i].Name || !f.Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

// AliasType is a named alias for another type (`type @N = T;`).
// Its String() prints the alias name; equality unfolds to the underlying type.
type AliasType struct {
	Name       string
	Underlying Type
}

func (a *AliasType) String() string { return "@" + a.Name }

func (a *AliasType) Equal(other Type) bool {
	return a.Underlying.Equal(Unfold(other))
}

// Unfold strips alias wrappers to reach the first non-alias type.
func Unfold(t Type) Type {
	for {
		alias, ok := t.(*AliasType)
		if !ok {
			return t
		}
		t = alias.Underlying
	}
}

// TypesEqual is symmetric structural equality with alias unfolding on both sides.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return Unfold(a).Equal(b)
}
