package internal

import (
	"errors"

	"github.com/voidbert/PL/util"
)

// MaxInt is the value of the required constant maxint.
const MaxInt = 32767

var errPopBuiltinScope = errors.New("symbol table: cannot pop the scope of required identifiers")

// SymbolTable is a stack of scopes. Scope 0 holds the required identifiers and is never
// popped. Names are stored lower-cased.
type SymbolTable struct {
	scopes []map[string]Definition
	warn   func(span Span, msg string)
}

// NewSymbolTable returns a table with the required identifiers in scope 0. warn receives
// shadowing warnings and may be nil.
func NewSymbolTable(warn func(span Span, msg string)) *SymbolTable {
	table := &SymbolTable{warn: warn}
	table.scopes = append(table.scopes, builtinScope())
	return table
}

func builtinScope() map[string]Definition {
	scope := map[string]Definition{}
	definitions := []Definition{
		&TypeDefinition{Name: "integer", Value: IntegerType},
		&TypeDefinition{Name: "real", Value: RealType},
		&TypeDefinition{Name: "boolean", Value: BooleanType},
		&TypeDefinition{Name: "char", Value: CharType},
		&TypeDefinition{Name: "string", Value: StringType},
		&Constant{Name: "true", Value: BooleanConstant(true)},
		&Constant{Name: "false", Value: BooleanConstant(false)},
		&Constant{Name: "maxint", Value: IntegerConstant(MaxInt)},
		&Callable{Name: "write", Builtin: true},
		&Callable{Name: "writeln", Builtin: true},
		&Callable{Name: "read", Builtin: true},
		&Callable{Name: "readln", Builtin: true},
		&Callable{Name: "length", Builtin: true, Return: &Variable{Name: "length", Type: IntegerType, Local: true}},
	}
	for _, definition := range definitions {
		scope[definition.DefinitionName()] = definition
	}
	return scope
}

func (table *SymbolTable) PushScope() {
	table.scopes = append(table.scopes, map[string]Definition{})
}

func (table *SymbolTable) PopScope() error {
	if len(table.scopes) == 1 {
		return errPopBuiltinScope
	}
	table.scopes = table.scopes[:len(table.scopes)-1]
	return nil
}

// Depth is the number of scopes above the required identifiers: 1 for the program block,
// 2 inside a callable.
func (table *SymbolTable) Depth() int {
	return len(table.scopes) - 1
}

// Add binds a definition in the top scope. A name already in the top scope is an error; a
// name from an outer scope is shadowed with a warning.
func (table *SymbolTable) Add(definition Definition, span Span) error {
	name := util.Lower(definition.DefinitionName())
	existing, topScope, _ := table.Query(name, span, false)
	if existing != nil {
		if topScope {
			return makeSemanticError(span, "Object with name '%s' already exists in this scope", name)
		}
		if table.warn != nil {
			table.warn(span, "Shadowing object with name '"+name+"'")
		}
	}
	table.scopes[len(table.scopes)-1][name] = definition
	return nil
}

// Query looks name up from the innermost scope outwards. topScope reports whether the
// innermost scope had it. When required is false, a missing name is (nil, false, nil).
func (table *SymbolTable) Query(name string, span Span, required bool) (Definition, bool, error) {
	return table.query(name, span, required, "Object")
}

func (table *SymbolTable) query(name string, span Span, required bool, kind string) (Definition, bool, error) {
	name = util.Lower(name)
	for i := len(table.scopes) - 1; i >= 0; i-- {
		if definition, ok := table.scopes[i][name]; ok {
			return definition, i == len(table.scopes)-1, nil
		}
	}
	if required {
		return nil, false, makeSemanticError(span, "%s '%s' not found", kind, name)
	}
	return nil, false, nil
}

func (table *SymbolTable) queryKind(name string, span Span, kind string) (Definition, bool, error) {
	definition, topScope, err := table.query(name, span, true, kind)
	if err != nil {
		return nil, false, err
	}
	if definition.kind() != kind {
		return nil, false, makeSemanticError(span, "Object with name '%s' is not a %s", util.Lower(name), util.Lower(kind))
	}
	return definition, topScope, nil
}

func (table *SymbolTable) QueryConstant(name string, span Span) (*Constant, bool, error) {
	definition, topScope, err := table.queryKind(name, span, "Constant")
	if err != nil {
		return nil, false, err
	}
	return definition.(*Constant), topScope, nil
}

func (table *SymbolTable) QueryType(name string, span Span) (*TypeDefinition, bool, error) {
	definition, topScope, err := table.queryKind(name, span, "Type")
	if err != nil {
		return nil, false, err
	}
	return definition.(*TypeDefinition), topScope, nil
}

func (table *SymbolTable) QueryVariable(name string, span Span) (*Variable, bool, error) {
	definition, topScope, err := table.queryKind(name, span, "Variable")
	if err != nil {
		return nil, false, err
	}
	return definition.(*Variable), topScope, nil
}

func (table *SymbolTable) QueryCallable(name string, span Span) (*Callable, bool, error) {
	definition, topScope, err := table.queryKind(name, span, "Callable")
	if err != nil {
		return nil, false, err
	}
	return definition.(*Callable), topScope, nil
}

func (table *SymbolTable) QueryLabel(id int, span Span) (*Label, bool, error) {
	definition, topScope, err := table.queryKind((&Label{ID: id}).DefinitionName(), span, "Label")
	if err != nil {
		return nil, false, err
	}
	return definition.(*Label), topScope, nil
}
