package internal

import (
	"fmt"

	"github.com/voidbert/PL/ewvm"
)

// CodeGenerator lowers a checked Program to EWVM instructions.
//
// Storage layout: program variables are global slots 0.. in declaration order. Inside a
// callable, fp points just past the arguments: the return slot is at -(n+1), parameter i
// at i-n and locals at 0.. . Each for loop owns a hidden slot after the variables of its
// block that holds its evaluated limit. Callers pop arguments and the callee frame after
// CALL, leaving only the return value.
type CodeGenerator struct {
	comments bool

	program      ewvm.Program
	offsets      map[*Variable]int
	forSlots     map[*ForStatement]int
	callable     *Callable
	labelCounter int
}

// NewCodeGenerator returns a generator. With comments set, declarations are annotated in
// the output.
func NewCodeGenerator(comments bool) *CodeGenerator {
	return &CodeGenerator{comments: comments}
}

// Generate lowers program. It panics with *InternalError on AST shapes the parser should
// have rejected.
func (g *CodeGenerator) Generate(program *Program) ewvm.Program {
	g.program = nil
	g.offsets = map[*Variable]int{}
	g.forSlots = map[*ForStatement]int{}
	g.callable, g.labelCounter = nil, 0

	g.emit(ewvm.Op(ewvm.Start))
	g.genBlockStorage(program.Block, nil)
	g.genStatement(program.Block.Body)
	g.emit(ewvm.Op(ewvm.Stop))
	for _, callable := range program.Block.Callables {
		g.genCallable(callable)
	}
	return g.program
}

func (g *CodeGenerator) emit(elements ...ewvm.Element) {
	g.program = append(g.program, elements...)
}

func (g *CodeGenerator) comment(format string, args ...interface{}) {
	if g.comments {
		g.emit(ewvm.Comment{Text: fmt.Sprintf(format, args...)})
	}
}

// Labels.

func (g *CodeGenerator) labelSuffix() string {
	if g.callable == nil {
		return ""
	}
	return g.callable.Name
}

func (g *CodeGenerator) newLabel() ewvm.Label {
	label := ewvm.Label{Name: fmt.Sprintf("SYS%d%s", g.labelCounter, g.labelSuffix())}
	g.labelCounter++
	return label
}

func (g *CodeGenerator) userLabel(label *Label) ewvm.Label {
	return ewvm.Label{Name: fmt.Sprintf("USER%d%s", label.ID, g.labelSuffix())}
}

func callableLabel(callable *Callable) ewvm.Label {
	return ewvm.Label{Name: "FN" + callable.Name}
}

// Storage.

func (g *CodeGenerator) genCallable(callable *Callable) {
	g.callable, g.labelCounter = callable, 0
	defer func() { g.callable = nil }()

	g.comment("callable %s", callable.Name)
	g.emit(callableLabel(callable))
	g.genBlockStorage(callable.Body, callable)
	g.genStatement(callable.Body.Body)
	g.emit(ewvm.Op(ewvm.Return))
}

// genBlockStorage assigns offsets and pushes the initial value of every slot of the block.
func (g *CodeGenerator) genBlockStorage(block *Block, callable *Callable) {
	if callable != nil {
		n := len(callable.Parameters)
		if callable.Return != nil {
			g.offsets[callable.Return] = -(n + 1)
		}
		for i, parameter := range callable.Parameters {
			g.offsets[parameter] = i - n
		}
	}
	for i, variable := range block.Variables {
		g.offsets[variable] = i
		g.comment("var %s: %s", variable.Name, variable.Type)
		g.genInit(variable.Type)
	}
	for i, loop := range forStatements(block.Body) {
		g.forSlots[loop] = len(block.Variables) + i
		g.emit(ewvm.Op(ewvm.PushI, 0))
	}
}

// frameSize is the number of slots a callable pushes above fp.
func frameSize(callable *Callable) int {
	return len(callable.Body.Variables) + len(forStatements(callable.Body.Body))
}

func forStatements(statement Statement) []*ForStatement {
	var loops []*ForStatement
	switch s := statement.(type) {
	case *CompoundStatement:
		for _, inner := range s.Statements {
			loops = append(loops, forStatements(inner)...)
		}
	case *LabeledStatement:
		loops = forStatements(s.Statement)
	case *IfStatement:
		loops = forStatements(s.Then)
		if s.Else != nil {
			loops = append(loops, forStatements(s.Else)...)
		}
	case *WhileStatement:
		loops = forStatements(s.Body)
	case *RepeatStatement:
		loops = forStatements(s.Body)
	case *ForStatement:
		loops = append([]*ForStatement{s}, forStatements(s.Body)...)
	}
	return loops
}

// genInit pushes the default value of t. Arrays are allocated on the heap and every element
// is initialized by a counting loop.
func (g *CodeGenerator) genInit(t Type) {
	switch v := t.(type) {
	case BuiltinType:
		switch v {
		case BooleanType, IntegerType, CharType:
			g.emit(ewvm.Op(ewvm.PushI, 0))
		case RealType:
			g.emit(ewvm.Op(ewvm.PushF, 0.0))
		case StringType:
			g.emit(ewvm.Op(ewvm.PushS, ""))
		default:
			internalError("cannot initialize a value of type %s", v)
		}
	case *RangeType:
		g.emit(ewvm.Op(ewvm.PushI, 0))
	case *EnumeratedType:
		g.emit(ewvm.Op(ewvm.PushI, v.Constants[0].Index))
	case *ArrayType:
		g.genArrayInit(v)
	default:
		internalError("unknown type %T", t)
	}
}

func (g *CodeGenerator) genArrayInit(array *ArrayType) {
	size := array.Size()
	loop, end := g.newLabel(), g.newLabel()
	g.emit(
		ewvm.Op(ewvm.PushI, size),
		ewvm.Op(ewvm.AllocN),
		ewvm.Op(ewvm.PushI, 0),
		loop,
		ewvm.Op(ewvm.Dup, 1),
		ewvm.Op(ewvm.PushI, size),
		ewvm.Op(ewvm.Inf),
		ewvm.Op(ewvm.Jz, end),
		ewvm.Op(ewvm.Dup, 2),
	)
	g.genInit(array.Element)
	g.emit(
		ewvm.Op(ewvm.StoreN),
		ewvm.Op(ewvm.PushI, 1),
		ewvm.Op(ewvm.Add),
		ewvm.Op(ewvm.Jump, loop),
		end,
		ewvm.Op(ewvm.Pop, 1),
	)
}

func (g *CodeGenerator) offset(variable *Variable) int {
	offset, ok := g.offsets[variable]
	if !ok {
		internalError("variable %s has no storage", variable.Name)
	}
	return offset
}

func (g *CodeGenerator) pushSlot(local bool, offset int) {
	if local {
		g.emit(ewvm.Op(ewvm.PushL, offset))
	} else {
		g.emit(ewvm.Op(ewvm.PushG, offset))
	}
}

func (g *CodeGenerator) storeSlot(local bool, offset int) {
	if local {
		g.emit(ewvm.Op(ewvm.StoreL, offset))
	} else {
		g.emit(ewvm.Op(ewvm.StoreG, offset))
	}
}

// Statements.

func (g *CodeGenerator) genStatement(statement Statement) {
	switch s := statement.(type) {
	case *CompoundStatement:
		for _, inner := range s.Statements {
			g.genStatement(inner)
		}
	case *LabeledStatement:
		g.emit(g.userLabel(s.Label))
		g.genStatement(s.Statement)
	case *AssignStatement:
		g.genStore(s.Target, func() { g.genConverted(s.Value, s.Target.typeOf()) })
	case *GotoStatement:
		g.emit(ewvm.Op(ewvm.Jump, g.userLabel(s.Label)))
	case *IfStatement:
		g.genIf(s)
	case *WhileStatement:
		loop, end := g.newLabel(), g.newLabel()
		g.emit(loop)
		g.genExpression(s.Condition)
		g.emit(ewvm.Op(ewvm.Jz, end))
		g.genStatement(s.Body)
		g.emit(ewvm.Op(ewvm.Jump, loop), end)
	case *RepeatStatement:
		loop := g.newLabel()
		g.emit(loop)
		g.genStatement(s.Body)
		g.genExpression(s.Condition)
		g.emit(ewvm.Op(ewvm.Jz, loop))
	case *ForStatement:
		g.genFor(s)
	case *CallStatement:
		g.genCall(s.Call)
		if s.Call.Callable.Return != nil {
			g.emit(ewvm.Op(ewvm.Pop, 1))
		}
	default:
		internalError("cannot generate code for statement %T", statement)
	}
}

func (g *CodeGenerator) genIf(s *IfStatement) {
	g.genExpression(s.Condition)
	if s.Else == nil {
		end := g.newLabel()
		g.emit(ewvm.Op(ewvm.Jz, end))
		g.genStatement(s.Then)
		g.emit(end)
		return
	}
	otherwise, end := g.newLabel(), g.newLabel()
	g.emit(ewvm.Op(ewvm.Jz, otherwise))
	g.genStatement(s.Then)
	g.emit(ewvm.Op(ewvm.Jump, end), otherwise)
	g.genStatement(s.Else)
	g.emit(end)
}

// genFor evaluates the limit once into the hidden slot of the loop.
func (g *CodeGenerator) genFor(s *ForStatement) {
	slot, ok := g.forSlots[s]
	if !ok {
		internalError("for loop without a limit slot")
	}
	local := g.callable != nil
	control := &VariableUsage{Variable: s.Variable}
	compare, step := ewvm.InfEq, ewvm.Add
	if s.Direction == ForDown {
		compare, step = ewvm.SupEq, ewvm.Sub
	}

	// The limit sees the control variable as it was before the loop.
	g.genExpression(s.To)
	g.storeSlot(local, slot)
	g.genStore(control, func() { g.genExpression(s.From) })
	loop, end := g.newLabel(), g.newLabel()
	g.emit(loop)
	g.genVariableUsage(control)
	g.pushSlot(local, slot)
	g.emit(ewvm.Op(compare), ewvm.Op(ewvm.Jz, end))
	g.genStatement(s.Body)
	g.genStore(control, func() {
		g.genVariableUsage(control)
		g.emit(ewvm.Op(ewvm.PushI, 1), ewvm.Op(step))
	})
	g.emit(ewvm.Op(ewvm.Jump, loop), end)
}

// genStore stores the value pushed by genValue into target. For an indexed target the
// element address is pushed first, then the value.
func (g *CodeGenerator) genStore(target *VariableUsage, genValue func()) {
	if len(target.Indices) == 0 {
		genValue()
		g.storeSlot(target.Variable.Local, g.offset(target.Variable))
		return
	}
	g.genAccess(target, true)
	genValue()
	g.emit(ewvm.Op(ewvm.Store, 0))
}

func (u *VariableUsage) typeOf() Type {
	t := u.Variable.Type
	for _, index := range u.Indices {
		next, err := TypeAfterIndexation(t, index.Type, Span{})
		if err != nil {
			internalError("index checked by the parser failed: %v", err)
		}
		t = next
	}
	return t
}

// Expressions.

var integerInstructions = map[Operator]string{
	OpAdd:          ewvm.Add,
	OpSub:          ewvm.Sub,
	OpMul:          ewvm.Mul,
	OpDiv:          ewvm.Div,
	OpMod:          ewvm.Mod,
	OpAnd:          ewvm.And,
	OpOr:           ewvm.Or,
	OpEqual:        ewvm.Equal,
	OpLess:         ewvm.Inf,
	OpLessEqual:    ewvm.InfEq,
	OpGreater:      ewvm.Sup,
	OpGreaterEqual: ewvm.SupEq,
}

var realInstructions = map[Operator]string{
	OpAdd:          ewvm.FAdd,
	OpSub:          ewvm.FSub,
	OpMul:          ewvm.FMul,
	OpDivide:       ewvm.FDiv,
	OpEqual:        ewvm.Equal,
	OpLess:         ewvm.FInf,
	OpLessEqual:    ewvm.FInfEq,
	OpGreater:      ewvm.FSup,
	OpGreaterEqual: ewvm.FSupEq,
}

func (g *CodeGenerator) genExpression(expression *Expression) {
	switch node := expression.Node.(type) {
	case *ConstantNode:
		g.genConstant(node.Value, expression.Type)
	case *VariableUsage:
		g.genVariableUsage(node)
	case *CallNode:
		g.genCall(node)
	case *UnaryOp:
		g.genUnary(node, expression.Type)
	case *BinaryOp:
		g.genBinary(node)
	default:
		internalError("cannot generate code for expression %T", expression.Node)
	}
}

// genConverted pushes expression, converted to real when target is real.
func (g *CodeGenerator) genConverted(expression *Expression, target Type) {
	g.genExpression(expression)
	if baseType(target) == RealType && baseType(expression.Type) == IntegerType {
		g.emit(ewvm.Op(ewvm.IToF))
	}
}

func (g *CodeGenerator) genConstant(value ConstantValue, t Type) {
	switch v := value.(type) {
	case BooleanConstant:
		if v {
			g.emit(ewvm.Op(ewvm.PushI, 1))
		} else {
			g.emit(ewvm.Op(ewvm.PushI, 0))
		}
	case IntegerConstant:
		g.emit(ewvm.Op(ewvm.PushI, int(v)))
	case RealConstant:
		g.emit(ewvm.Op(ewvm.PushF, float64(v)))
	case StringConstant:
		if baseType(t) == CharType {
			g.emit(ewvm.Op(ewvm.PushI, int(v[0])))
		} else {
			g.emit(ewvm.Op(ewvm.PushS, string(v)))
		}
	case *EnumeratedConstant:
		g.emit(ewvm.Op(ewvm.PushI, v.Index))
	default:
		internalError("unknown constant %T", value)
	}
}

func (g *CodeGenerator) genVariableUsage(usage *VariableUsage) {
	if len(usage.Indices) == 0 {
		g.pushSlot(usage.Variable.Local, g.offset(usage.Variable))
		return
	}
	g.genAccess(usage, false)
}

// genAccess pushes the variable and applies its indices. Array indices are linearized in
// row-major order and added to the array address; a trailing string index extracts a
// character. With address set, the last array element is not loaded, leaving its address.
func (g *CodeGenerator) genAccess(usage *VariableUsage, address bool) {
	g.pushSlot(usage.Variable.Local, g.offset(usage.Variable))
	t, indices := usage.Variable.Type, usage.Indices
	for len(indices) > 0 {
		switch current := baseType(t).(type) {
		case *ArrayType:
			k := min(len(indices), len(current.Dimensions))
			g.genLinearOffset(current, indices[:k])
			g.emit(ewvm.Op(ewvm.PAdd))
			indices = indices[k:]
			if k < len(current.Dimensions) {
				if address {
					internalError("store into part of an array")
				}
				return
			}
			t = current.Element
			if !address || len(indices) > 0 {
				g.emit(ewvm.Op(ewvm.Load, 0))
			}
		case BuiltinType:
			if current != StringType || address {
				internalError("cannot index a value of type %s", current)
			}
			g.genExpression(indices[0])
			g.emit(ewvm.Op(ewvm.PushI, 1), ewvm.Op(ewvm.Sub), ewvm.Op(ewvm.CharAt))
			indices, t = indices[1:], CharType
		default:
			internalError("cannot index a value of type %s", t)
		}
	}
}

func (g *CodeGenerator) genLinearOffset(array *ArrayType, indices []*Expression) {
	for i, index := range indices {
		dimension := array.Dimensions[i]
		g.genExpression(index)
		if dimension.Low != 0 {
			g.emit(ewvm.Op(ewvm.PushI, dimension.Low), ewvm.Op(ewvm.Sub))
		}
		stride := 1
		for _, remaining := range array.Dimensions[i+1:] {
			stride *= remaining.Cardinality()
		}
		if stride != 1 {
			g.emit(ewvm.Op(ewvm.PushI, stride), ewvm.Op(ewvm.Mul))
		}
		if i > 0 {
			g.emit(ewvm.Op(ewvm.Add))
		}
	}
}

func (g *CodeGenerator) genUnary(op *UnaryOp, t Type) {
	g.genExpression(op.Operand)
	switch op.Op {
	case OpAdd:
	case OpSub:
		if baseType(t) == RealType {
			g.emit(ewvm.Op(ewvm.PushF, -1.0), ewvm.Op(ewvm.FMul))
		} else {
			g.emit(ewvm.Op(ewvm.PushI, -1), ewvm.Op(ewvm.Mul))
		}
	case OpNot:
		g.emit(ewvm.Op(ewvm.Not))
	default:
		internalError("unknown unary operator %s", op.Op)
	}
}

func (g *CodeGenerator) genBinary(op *BinaryOp) {
	float := op.Op == OpDivide || baseType(op.Left.Type) == RealType || baseType(op.Right.Type) == RealType
	g.genExpression(op.Left)
	if float && baseType(op.Left.Type) == IntegerType {
		g.emit(ewvm.Op(ewvm.IToF))
	}
	g.genExpression(op.Right)
	if float && baseType(op.Right.Type) == IntegerType {
		g.emit(ewvm.Op(ewvm.IToF))
	}

	mnemonic := op.Op
	if mnemonic == OpDifferent {
		mnemonic = OpEqual
	}
	instructions := integerInstructions
	if float {
		instructions = realInstructions
	}
	instruction, ok := instructions[mnemonic]
	if !ok {
		internalError("no instruction for %s", op.Op)
	}
	g.emit(ewvm.Op(instruction))
	if op.Op == OpDifferent {
		g.emit(ewvm.Op(ewvm.Not))
	}
}

// Calls.

func (g *CodeGenerator) genCall(call *CallNode) {
	callable := call.Callable
	if callable.Builtin {
		g.genBuiltinCall(call)
		return
	}
	if callable.Return != nil {
		g.genInit(callable.Return.Type)
	}
	for i, arg := range call.Args {
		g.genConverted(arg, callable.Parameters[i].Type)
	}
	g.emit(ewvm.Op(ewvm.PushA, callableLabel(callable)), ewvm.Op(ewvm.Call))
	if n := len(callable.Parameters) + frameSize(callable); n > 0 {
		g.emit(ewvm.Op(ewvm.Pop, n))
	}
}

func (g *CodeGenerator) genBuiltinCall(call *CallNode) {
	switch call.Callable.Name {
	case "write", "writeln":
		for _, arg := range call.Args {
			g.genWrite(arg)
		}
		if call.Callable.Name == "writeln" {
			g.emit(ewvm.Op(ewvm.WriteLn))
		}
	case "read", "readln":
		if len(call.Args) == 0 {
			g.emit(ewvm.Op(ewvm.Read), ewvm.Op(ewvm.Pop, 1))
		}
		for _, arg := range call.Args {
			g.genRead(arg)
		}
	case "length":
		g.genExpression(call.Args[0])
		g.emit(ewvm.Op(ewvm.StrLen))
	default:
		internalError("unknown builtin callable %s", call.Callable.Name)
	}
}

func (g *CodeGenerator) genWrite(arg *Expression) {
	switch t := baseType(arg.Type).(type) {
	case *EnumeratedType:
		names := make([]string, 0, len(t.Constants))
		for _, constant := range t.Constants {
			names = append(names, constant.Name)
		}
		g.genSelectString(names, arg)
		return
	case BuiltinType:
		switch t {
		case BooleanType:
			g.genSelectString([]string{"FALSE", "TRUE"}, arg)
			return
		case IntegerType:
			g.genExpression(arg)
			g.emit(ewvm.Op(ewvm.WriteI))
			return
		case RealType:
			g.genExpression(arg)
			g.emit(ewvm.Op(ewvm.WriteF))
			return
		case CharType:
			g.genExpression(arg)
			g.emit(ewvm.Op(ewvm.WriteChr))
			return
		case StringType:
			g.genExpression(arg)
			g.emit(ewvm.Op(ewvm.WriteS))
			return
		}
	}
	internalError("cannot write a value of type %s", arg.Type)
}

// genSelectString writes names[value]: the names are pushed, then the value, and the
// chosen name is loaded relative to the stack pointer.
func (g *CodeGenerator) genSelectString(names []string, value *Expression) {
	for _, name := range names {
		g.emit(ewvm.Op(ewvm.PushS, name))
	}
	g.genExpression(value)
	g.emit(
		ewvm.Op(ewvm.PushSP),
		ewvm.Op(ewvm.Swap),
		ewvm.Op(ewvm.PAdd),
		ewvm.Op(ewvm.Load, -(len(names)+1)),
		ewvm.Op(ewvm.WriteS),
		ewvm.Op(ewvm.Pop, len(names)),
	)
}

func (g *CodeGenerator) genRead(arg *Expression) {
	usage, ok := arg.Node.(*VariableUsage)
	if !ok {
		internalError("read into a %T", arg.Node)
	}
	g.genStore(usage, func() {
		g.emit(ewvm.Op(ewvm.Read))
		switch baseType(arg.Type) {
		case IntegerType:
			g.emit(ewvm.Op(ewvm.AToI))
		case RealType:
			g.emit(ewvm.Op(ewvm.AToF))
		case CharType:
			g.emit(ewvm.Op(ewvm.PushI, 0), ewvm.Op(ewvm.CharAt))
		case StringType:
		default:
			internalError("cannot read a value of type %s", arg.Type)
		}
	})
}
