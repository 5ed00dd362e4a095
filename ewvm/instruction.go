// Package ewvm models programs for EWVM, a stack-based virtual machine: instructions,
// labels and comments, plus their textual form, a peephole optimizer and a small
// reference machine able to run them.
package ewvm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mnemonics emitted by the code generator.
const (
	Start = "START"
	Stop  = "STOP"

	PushI  = "PUSHI"
	PushF  = "PUSHF"
	PushS  = "PUSHS"
	PushN  = "PUSHN"
	PushG  = "PUSHG"
	PushL  = "PUSHL"
	PushSP = "PUSHSP"
	PushFP = "PUSHFP"
	PushA  = "PUSHA"
	StoreG = "STOREG"
	StoreL = "STOREL"
	Load   = "LOAD"
	LoadN  = "LOADN"
	Store  = "STORE"
	StoreN = "STOREN"
	Dup    = "DUP"
	Swap   = "SWAP"
	Pop    = "POP"
	AllocN = "ALLOCN"
	PAdd   = "PADD"

	Add    = "ADD"
	Sub    = "SUB"
	Mul    = "MUL"
	Div    = "DIV"
	Mod    = "MOD"
	FAdd   = "FADD"
	FSub   = "FSUB"
	FMul   = "FMUL"
	FDiv   = "FDIV"
	Inf    = "INF"
	InfEq  = "INFEQ"
	Sup    = "SUP"
	SupEq  = "SUPEQ"
	FInf   = "FINF"
	FInfEq = "FINFEQ"
	FSup   = "FSUP"
	FSupEq = "FSUPEQ"
	Equal  = "EQUAL"
	Not    = "NOT"
	And    = "AND"
	Or     = "OR"
	IToF   = "ITOF"
	AToI   = "ATOI"
	AToF   = "ATOF"

	CharAt = "CHARAT"
	StrLen = "STRLEN"

	WriteI   = "WRITEI"
	WriteF   = "WRITEF"
	WriteS   = "WRITES"
	WriteChr = "WRITECHR"
	WriteLn  = "WRITELN"
	Read     = "READ"

	Jump   = "JUMP"
	Jz     = "JZ"
	Call   = "CALL"
	Return = "RETURN"
)

// Element is one line of a program: a Label, an Instruction or a Comment.
type Element interface {
	element()
	String() string
}

// Program is the flat, ordered output of the code generator.
type Program []Element

// Label marks a jump target. It is also used as an instruction argument.
type Label struct {
	Name string
}

func (Label) element() {}

func (l Label) String() string {
	return l.Name + ":"
}

// Comment carries no semantics; it is kept only for humans reading the output.
type Comment struct {
	Text string
}

func (Comment) element() {}

func (c Comment) String() string {
	return "  // " + c.Text
}

// Argument is one of int, float64, string or Label.
type Argument interface{}

type Instruction struct {
	Mnemonic string
	Args     []Argument
}

func (Instruction) element() {}

// Op builds an instruction. Panics on argument types the machine cannot represent, which
// can only be a bug in the caller.
func Op(mnemonic string, args ...Argument) Instruction {
	for _, arg := range args {
		switch arg.(type) {
		case int, float64, string, Label:
		default:
			panic(fmt.Sprintf("ewvm: unsupported argument %T for %s", arg, mnemonic))
		}
	}
	return Instruction{Mnemonic: mnemonic, Args: args}
}

// Is reports whether the instruction has the given mnemonic and exactly these arguments.
func (i Instruction) Is(mnemonic string, args ...Argument) bool {
	return i.Equal(Instruction{Mnemonic: mnemonic, Args: args})
}

func (i Instruction) Equal(other Instruction) bool {
	if i.Mnemonic != other.Mnemonic || len(i.Args) != len(other.Args) {
		return false
	}
	for k := range i.Args {
		if i.Args[k] != other.Args[k] {
			return false
		}
	}
	return true
}

// IntArg returns the k-th argument when it is an integer.
func (i Instruction) IntArg(k int) (int, bool) {
	if k >= len(i.Args) {
		return 0, false
	}
	v, ok := i.Args[k].(int)
	return v, ok
}

func (i Instruction) String() string {
	var builder strings.Builder
	if i.Mnemonic != Start {
		builder.WriteString("  ")
	}
	builder.WriteString(i.Mnemonic)
	for _, arg := range i.Args {
		builder.WriteByte(' ')
		builder.WriteString(formatArgument(arg))
	}
	return builder.String()
}

func formatArgument(arg Argument) string {
	switch v := arg.(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatFloat(v)
	case string:
		return strconv.Quote(v)
	case Label:
		return v.Name
	}
	panic(fmt.Sprintf("ewvm: unsupported argument %T", arg))
}

// Floats always carry a decimal point or exponent so the reader can tell them apart
// from integers.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Export renders a program, one element per line.
func Export(program Program) string {
	lines := make([]string, 0, len(program))
	for _, e := range program {
		lines = append(lines, e.String())
	}
	return strings.Join(lines, "\n")
}

// EqualPrograms compares two programs element by element.
func EqualPrograms(a, b Program) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !elementEqual(a[k], b[k]) {
			return false
		}
	}
	return true
}

func elementEqual(a, b Element) bool {
	switch x := a.(type) {
	case Instruction:
		y, ok := b.(Instruction)
		return ok && x.Equal(y)
	case Label:
		y, ok := b.(Label)
		return ok && x == y
	case Comment:
		y, ok := b.(Comment)
		return ok && x == y
	}
	return false
}

// Instructions drops labels and comments, which is convenient when only the executed
// sequence matters.
func (p Program) Instructions() []Instruction {
	ret := make([]Instruction, 0, len(p))
	for _, e := range p {
		if i, ok := e.(Instruction); ok {
			ret = append(ret, i)
		}
	}
	return ret
}
