package internal

import (
	"fmt"
	"strconv"
	"strings"
)

// In this file, we defined the types, definitions and ast of the Pascal subset. The parser
// builds them bottom-up and nothing mutates them afterwards.

// Type is one of BuiltinType, *RangeType, *ArrayType, *EnumeratedType.
type Type interface {
	isType()
	String() string
}

type BuiltinType int

const (
	VoidType BuiltinType = iota
	BooleanType
	IntegerType
	RealType
	CharType
	StringType
)

var builtinTypeNames = map[BuiltinType]string{
	VoidType:    "void",
	BooleanType: "boolean",
	IntegerType: "integer",
	RealType:    "real",
	CharType:    "char",
	StringType:  "string",
}

func (BuiltinType) isType() {}

func (t BuiltinType) String() string {
	return builtinTypeNames[t]
}

// RangeType is a subrange of an ordinal base type. Low and High are ordinal values.
type RangeType struct {
	Base Type
	Low  int
	High int
}

func (*RangeType) isType() {}

func (t *RangeType) String() string {
	return fmt.Sprintf("%s..%s", ordinalName(t.Base, t.Low), ordinalName(t.Base, t.High))
}

// Cardinality is the number of values in the range.
func (t *RangeType) Cardinality() int {
	return t.High - t.Low + 1
}

func ordinalName(base Type, ordinal int) string {
	switch b := base.(type) {
	case *EnumeratedType:
		if ordinal >= 0 && ordinal < len(b.Constants) {
			return b.Constants[ordinal].Name
		}
	case BuiltinType:
		switch b {
		case CharType:
			return strconv.Quote(string(rune(ordinal)))
		case BooleanType:
			return strconv.FormatBool(ordinal != 0)
		}
	}
	return strconv.Itoa(ordinal)
}

type ArrayType struct {
	Element    Type
	Dimensions []*RangeType
}

func (*ArrayType) isType() {}

func (t *ArrayType) String() string {
	dimensions := make([]string, 0, len(t.Dimensions))
	for _, d := range t.Dimensions {
		dimensions = append(dimensions, d.String())
	}
	return fmt.Sprintf("array [%s] of %s", strings.Join(dimensions, ", "), t.Element)
}

// Size is the number of element slots the array takes.
func (t *ArrayType) Size() int {
	size := 1
	for _, d := range t.Dimensions {
		size *= d.Cardinality()
	}
	return size
}

// EnumeratedType is compared by identity: two declarations of (a, b) are different types.
type EnumeratedType struct {
	Constants []*EnumeratedConstant
}

func (*EnumeratedType) isType() {}

func (t *EnumeratedType) String() string {
	names := make([]string, 0, len(t.Constants))
	for _, c := range t.Constants {
		names = append(names, c.Name)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// SameType reports type identity. Arrays and ranges are compared structurally.
func SameType(a, b Type) bool {
	switch x := a.(type) {
	case BuiltinType:
		y, ok := b.(BuiltinType)
		return ok && x == y
	case *RangeType:
		y, ok := b.(*RangeType)
		return ok && x.Low == y.Low && x.High == y.High && SameType(x.Base, y.Base)
	case *ArrayType:
		y, ok := b.(*ArrayType)
		if !ok || len(x.Dimensions) != len(y.Dimensions) || !SameType(x.Element, y.Element) {
			return false
		}
		for i := range x.Dimensions {
			if !SameType(x.Dimensions[i], y.Dimensions[i]) {
				return false
			}
		}
		return true
	case *EnumeratedType:
		y, ok := b.(*EnumeratedType)
		return ok && x == y
	}
	return false
}

// baseType unwraps ranges, which behave as their base type in expressions.
func baseType(t Type) Type {
	if r, ok := t.(*RangeType); ok {
		return r.Base
	}
	return t
}

// ConstantValue is one of BooleanConstant, IntegerConstant, RealConstant, StringConstant,
// *EnumeratedConstant.
type ConstantValue interface {
	isConstantValue()
}

type BooleanConstant bool

type IntegerConstant int

type RealConstant float64

// StringConstant of length one is a char.
type StringConstant string

type EnumeratedConstant struct {
	Type  *EnumeratedType
	Index int
	Name  string
}

func (BooleanConstant) isConstantValue()     {}
func (IntegerConstant) isConstantValue()     {}
func (RealConstant) isConstantValue()        {}
func (StringConstant) isConstantValue()      {}
func (*EnumeratedConstant) isConstantValue() {}

// Definition is anything a name can be bound to in the symbol table.
type Definition interface {
	DefinitionName() string
	kind() string
}

type Constant struct {
	Name  string
	Value ConstantValue
}

type TypeDefinition struct {
	Name  string
	Value Type
}

// Variable is a variable, parameter or function return slot. Local is false only for
// variables declared in the program block.
type Variable struct {
	Name  string
	Type  Type
	Local bool
}

type Callable struct {
	Name       string
	Parameters []*Variable
	// Return is nil for procedures.
	Return *Variable
	Body   *Block
	// Builtin callables have no Parameters or Body; their calls are checked and lowered
	// by name.
	Builtin bool
	// Invalid marks a callable whose heading was reported as erroneous. Its calls are
	// parsed but not checked.
	Invalid bool
}

type Label struct {
	ID int
}

func (c *Constant) DefinitionName() string       { return c.Name }
func (t *TypeDefinition) DefinitionName() string { return t.Name }
func (v *Variable) DefinitionName() string       { return v.Name }
func (c *Callable) DefinitionName() string       { return c.Name }
func (l *Label) DefinitionName() string          { return strconv.Itoa(l.ID) }

func (*Constant) kind() string       { return "Constant" }
func (*TypeDefinition) kind() string { return "Type" }
func (*Variable) kind() string       { return "Variable" }
func (*Callable) kind() string       { return "Callable" }
func (*Label) kind() string          { return "Label" }

type Program struct {
	Name  string
	Block *Block
}

type Block struct {
	Labels    []*Label
	Constants []*Constant
	Types     []*TypeDefinition
	Variables []*Variable
	Callables []*Callable
	Body      *CompoundStatement
	// Bindings maps every label id to the statement it prefixes.
	Bindings map[int]Statement
}

// Statement is one of *AssignStatement, *GotoStatement, *IfStatement, *WhileStatement,
// *RepeatStatement, *ForStatement, *WithStatement, *CallStatement, *CompoundStatement,
// *LabeledStatement.
type Statement interface {
	isStatement()
}

type AssignStatement struct {
	Target *VariableUsage
	Value  *Expression
}

type GotoStatement struct {
	Label *Label
}

type IfStatement struct {
	Condition *Expression
	Then      Statement
	// Else is nil when there is no else branch.
	Else Statement
}

type WhileStatement struct {
	Condition *Expression
	Body      Statement
}

type RepeatStatement struct {
	Body      *CompoundStatement
	Condition *Expression
}

type ForDirection int

const (
	ForUp ForDirection = iota
	ForDown
)

type ForStatement struct {
	Variable  *Variable
	From      *Expression
	To        *Expression
	Direction ForDirection
	Body      Statement
}

// WithStatement is rejected by the parser and never reaches the code generator.
type WithStatement struct{}

type CallStatement struct {
	Call *CallNode
}

type CompoundStatement struct {
	Statements []Statement
}

type LabeledStatement struct {
	Label     *Label
	Statement Statement
}

func (*AssignStatement) isStatement()   {}
func (*GotoStatement) isStatement()     {}
func (*IfStatement) isStatement()       {}
func (*WhileStatement) isStatement()    {}
func (*RepeatStatement) isStatement()   {}
func (*ForStatement) isStatement()      {}
func (*WithStatement) isStatement()     {}
func (*CallStatement) isStatement()     {}
func (*CompoundStatement) isStatement() {}
func (*LabeledStatement) isStatement()  {}

// Expression pairs a node with its static type. A nil *Expression stands for an expression
// that failed to check and was already reported.
type Expression struct {
	Node Node
	Type Type
}

// Node is one of *ConstantNode, *VariableUsage, *CallNode, *UnaryOp, *BinaryOp.
type Node interface {
	isNode()
}

type ConstantNode struct {
	Value ConstantValue
}

// VariableUsage reads or writes a variable. Indices holds one expression per array
// dimension indexed, plus a last one when a string is character-indexed.
type VariableUsage struct {
	Variable *Variable
	Indices  []*Expression
}

type CallNode struct {
	Callable *Callable
	Args     []*Expression
}

type Operator string

const (
	OpAdd          Operator = "+"
	OpSub          Operator = "-"
	OpMul          Operator = "*"
	OpDivide       Operator = "/"
	OpDiv          Operator = "div"
	OpMod          Operator = "mod"
	OpAnd          Operator = "and"
	OpOr           Operator = "or"
	OpNot          Operator = "not"
	OpEqual        Operator = "="
	OpDifferent    Operator = "<>"
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
)

type UnaryOp struct {
	Op      Operator
	Operand *Expression
}

type BinaryOp struct {
	Op    Operator
	Left  *Expression
	Right *Expression
}

func (*ConstantNode) isNode()  {}
func (*VariableUsage) isNode() {}
func (*CallNode) isNode()      {}
func (*UnaryOp) isNode()       {}
func (*BinaryOp) isNode()      {}
