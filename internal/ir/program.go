package ir

// Global is a named mutable cell of a type, optionally with an initializer.
type Global struct {
	Name string
	Type Type
	Init *int64 // nil if uninitialized
}

// Program is a whole IRL program: type aliases, globals with initializers,
// and functions, which reference each other by symbol (spec.md §3).
type Program struct {
	Aliases   map[string]*AliasType
	Globals   []*Global
	Functions []*Function
}

// NewProgram returns an empty program ready to be populated.
func NewProgram() *Program {
	return &Program{Aliases: make(map[string]*AliasType)}
}

// FuncByName looks up a function by its symbol name.
func (p *Program) FuncByName(name string) *Function {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// GlobalByName looks up a global by its symbol name.
func (p *Program) GlobalByName(name string) *Global {
	for _, g := range p.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}
