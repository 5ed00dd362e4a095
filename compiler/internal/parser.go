package internal

import (
	"bytes"

	"github.com/voidbert/PL/diagnostic"
)

// Parser is a recursive descent parser that is also the semantic analyzer: every production
// resolves its identifiers in the symbol table and checks its types as soon as it is
// reduced.
//
// Productions return an error only for syntax errors, which travel up to a recovery point.
// Semantic errors are reported where they are found and the production yields a nil
// result, so that parsing goes on and reports as much as possible.
type Parser struct {
	path      string
	source    []byte
	tokens    []*Token
	pos       int
	sink      diagnostic.Sink
	table     *SymbolTable
	hasErrors bool
	// labels belongs to the block being parsed.
	labels *labelTable
	// callable is the callable whose block is being parsed, nil in the program block.
	callable *Callable
}

func NewParser(path string, source []byte, tokens []*Token, sink diagnostic.Sink) *Parser {
	parser := &Parser{path: path, source: source, tokens: tokens, sink: sink}
	parser.table = NewSymbolTable(parser.warn)
	return parser
}

// HasErrors is sticky: once an error was reported the compilation has failed.
func (p *Parser) HasErrors() bool {
	return p.hasErrors
}

// Parse parses a whole program. The result may be partial, or nil, when HasErrors is true.
func (p *Parser) Parse() *Program {
	program, err := p.parseProgram()
	if err != nil {
		p.report(err)
		return nil
	}
	return program
}

func (p *Parser) emit(span Span, msg string, warning bool) {
	if !warning {
		p.hasErrors = true
	}
	if p.sink == nil {
		return
	}
	p.sink.Report(diagnostic.Diagnostic{
		Path:    p.path,
		Source:  string(p.source),
		Message: msg,
		Line:    span.Line,
		Offset:  span.Start,
		Length:  span.Length(),
		Warning: warning,
	})
}

func (p *Parser) report(err error) {
	switch e := err.(type) {
	case *SemanticError:
		p.emit(e.Span, e.Msg, false)
	case *SyntaxError:
		p.emit(e.Span, e.Msg, false)
	default:
		p.emit(p.lastSpan(), err.Error(), false)
	}
}

func (p *Parser) warn(span Span, msg string) {
	p.emit(span, msg, true)
}

// Token stream helpers.

func (p *Parser) peek() *Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekIs(tps ...TokenType) bool {
	token := p.peek()
	if token == nil {
		return false
	}
	for _, tp := range tps {
		if token.TP == tp {
			return true
		}
	}
	return false
}

func (p *Parser) next() *Token {
	token := p.peek()
	if token != nil {
		p.pos++
	}
	return token
}

func (p *Parser) expect(tp TokenType) (*Token, error) {
	if !p.peekIs(tp) {
		return nil, p.unexpected()
	}
	return p.next(), nil
}

func (p *Parser) unexpected() error {
	token := p.peek()
	if token == nil {
		return &SyntaxError{Span: p.eofSpan(), Msg: "Expecting input before end-of-file"}
	}
	return &SyntaxError{Span: token.Span, Msg: "Unexpected token: " + token.Content}
}

// eofSpan points at the last character of the source, or at the last line break.
func (p *Parser) eofSpan() Span {
	offset := len(p.source)
	if bytes.HasSuffix(p.source, []byte("\n")) {
		offset--
	}
	if offset < 0 {
		offset = 0
	}
	line := bytes.Count(p.source[:offset], []byte("\n")) + 1
	return Span{Start: offset, End: offset + 1, Line: line}
}

// lastSpan is the span of the last consumed token.
func (p *Parser) lastSpan() Span {
	if p.pos == 0 || len(p.tokens) == 0 {
		return Span{Line: 1, End: 1}
	}
	return p.tokens[p.pos-1].Span
}

func (p *Parser) peekSpan() Span {
	if token := p.peek(); token != nil {
		return token.Span
	}
	return p.eofSpan()
}

// skipTo discards tokens until one of terminators is next, not counting the ones inside
// nested begin/case/record ... end. It never steps over an END that closes an enclosing
// construct.
func (p *Parser) skipTo(terminators ...TokenType) {
	depth := 0
	for token := p.peek(); token != nil; token = p.peek() {
		if depth == 0 && p.peekIs(terminators...) {
			return
		}
		switch token.TP {
		case BeginTP, CaseTP, RecordTP:
			depth++
		case EndTP:
			if depth == 0 {
				return
			}
			depth--
		}
		p.next()
	}
}

// skipPast discards tokens up to and including the next tp.
func (p *Parser) skipPast(tp TokenType) {
	for token := p.next(); token != nil; token = p.next() {
		if token.TP == tp {
			return
		}
	}
}

// Program and blocks.

func (p *Parser) parseProgram() (*Program, error) {
	if _, err := p.expect(ProgramTP); err != nil {
		return nil, err
	}
	name, err := p.expect(IdentifierTP)
	if err != nil {
		return nil, err
	}
	if p.peekIs(LeftParenthesesTP) {
		if err := p.parseProgramArguments(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SemiColonTP); err != nil {
		return nil, err
	}
	p.table.PushScope()
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.table.PopScope(); err != nil {
		internalError(err.Error())
	}
	if _, err := p.expect(DotTP); err != nil {
		return nil, err
	}
	if p.peek() != nil {
		p.report(p.unexpected())
	}
	return &Program{Name: name.Identifier(), Block: block}, nil
}

func (p *Parser) parseProgramArguments() error {
	open := p.next()
	if p.peekIs(RightParenthesesTP) {
		p.report(makeSemanticError(open.Span.To(p.next().Span), "Invalid program arguments: at least one argument required"))
		return nil
	}
	if _, err := p.parseIdentifierList(); err != nil {
		return err
	}
	closing, err := p.expect(RightParenthesesTP)
	if err != nil {
		return err
	}
	p.warn(open.Span.To(closing.Span), "Program arguments are not supported. Ignoring them...")
	return nil
}

func (p *Parser) parseIdentifierList() ([]*Token, error) {
	var identifiers []*Token
	for {
		identifier, err := p.expect(IdentifierTP)
		if err != nil {
			return nil, err
		}
		identifiers = append(identifiers, identifier)
		if !p.peekIs(CommaTP) {
			return identifiers, nil
		}
		p.next()
	}
}

// parseBlock parses label, const, type and var parts, callables and the body, then checks
// that labels were used properly. The caller owns the scope.
func (p *Parser) parseBlock() (*Block, error) {
	outer := p.labels
	p.labels = newLabelTable()
	defer func() { p.labels = outer }()

	block := &Block{}
	if p.peekIs(LabelTP) {
		p.next()
		p.recoverDeclaration(p.parseLabelDeclaration(block))
	}
	if p.peekIs(ConstTP) {
		p.next()
		for ok := true; ok; ok = p.peekIs(IdentifierTP) {
			p.recoverDeclaration(p.parseConstantDefinition(block))
		}
	}
	if p.peekIs(TypeTP) {
		p.next()
		for ok := true; ok; ok = p.peekIs(IdentifierTP) {
			p.recoverDeclaration(p.parseTypeDefinition(block))
		}
	}
	if p.peekIs(VarTP) {
		p.next()
		for ok := true; ok; ok = p.peekIs(IdentifierTP) {
			p.recoverDeclaration(p.parseVariableDeclaration(block))
		}
	}
	for p.peekIs(ProcedureTP, FunctionTP) {
		callable, err := p.parseCallableDeclaration()
		if err != nil {
			if p.peek() == nil {
				return nil, err
			}
			p.report(err)
			p.recoverCallable()
			continue
		}
		if callable != nil {
			block.Callables = append(block.Callables, callable)
		}
	}
	body, err := p.parseCompoundStatement()
	if err != nil {
		return nil, err
	}
	block.Body = body
	block.Bindings = p.labels.bound
	p.checkLabels()
	return block, nil
}

// recoverCallable skips the rest of a callable whose block could not be parsed, up to the
// next callable or the enclosing body.
func (p *Parser) recoverCallable() {
	p.skipTo(ProcedureTP, FunctionTP, BeginTP)
	if p.peekIs(EndTP) {
		p.next()
		if p.peekIs(SemiColonTP) {
			p.next()
		}
		p.skipTo(ProcedureTP, FunctionTP, BeginTP)
	}
}

// recoverDeclaration reports a syntax error in a declaration and skips to the end of it.
func (p *Parser) recoverDeclaration(err error) {
	if err == nil {
		return
	}
	p.report(err)
	p.skipPast(SemiColonTP)
}

func (p *Parser) parseLabelDeclaration(block *Block) error {
	for {
		token, err := p.expect(IntegerTP)
		if err != nil {
			return err
		}
		label := &Label{ID: token.Value.(int)}
		if err := p.table.Add(label, token.Span); err != nil {
			p.report(err)
		} else {
			block.Labels = append(block.Labels, label)
			p.labels.declare(label, token.Span)
		}
		if !p.peekIs(CommaTP) {
			break
		}
		p.next()
	}
	_, err := p.expect(SemiColonTP)
	return err
}

func (p *Parser) parseConstantDefinition(block *Block) error {
	name, err := p.expect(IdentifierTP)
	if err != nil {
		return err
	}
	if _, err := p.expect(EqualTP); err != nil {
		return err
	}
	value, _, err := p.parseConstant()
	if err != nil {
		return err
	}
	if _, err := p.expect(SemiColonTP); err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	constant := &Constant{Name: name.Identifier(), Value: value}
	if err := p.table.Add(constant, name.Span); err != nil {
		p.report(err)
		return nil
	}
	block.Constants = append(block.Constants, constant)
	return nil
}

// parseConstant parses [sign] (number | constant identifier) or a string. A nil value means
// a semantic error that was already reported.
func (p *Parser) parseConstant() (ConstantValue, Span, error) {
	start := p.peekSpan()
	negative, signed := false, false
	if p.peekIs(AddTP, MinusTP) {
		negative, signed = p.next().TP == MinusTP, true
	}
	token := p.peek()
	if token == nil {
		return nil, start, p.unexpected()
	}
	var value ConstantValue
	switch token.TP {
	case IntegerTP:
		value = IntegerConstant(token.Value.(int))
	case FloatTP:
		value = RealConstant(token.Value.(float64))
	case StringTP:
		value = StringConstant(token.Value.(string))
	case IdentifierTP:
		constant, _, err := p.table.QueryConstant(token.Identifier(), token.Span)
		if err != nil {
			p.next()
			p.report(err)
			return nil, start.To(token.Span), nil
		}
		value = constant.Value
	default:
		return nil, start, p.unexpected()
	}
	p.next()
	span := start.To(token.Span)
	if !signed {
		return value, span, nil
	}
	switch v := value.(type) {
	case IntegerConstant:
		if negative {
			v = -v
		}
		return v, span, nil
	case RealConstant:
		if negative {
			v = -v
		}
		return v, span, nil
	}
	p.report(makeSemanticError(span, "Sign applied to a constant of type %s", ConstantType(value)))
	return nil, span, nil
}

func (p *Parser) parseTypeDefinition(block *Block) error {
	name, err := p.expect(IdentifierTP)
	if err != nil {
		return err
	}
	if _, err := p.expect(EqualTP); err != nil {
		return err
	}
	value, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(SemiColonTP); err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	definition := &TypeDefinition{Name: name.Identifier(), Value: value}
	if err := p.table.Add(definition, name.Span); err != nil {
		p.report(err)
		return nil
	}
	block.Types = append(block.Types, definition)
	return nil
}

func (p *Parser) parseVariableDeclaration(block *Block) error {
	names, err := p.parseIdentifierList()
	if err != nil {
		return err
	}
	if _, err := p.expect(ColonTP); err != nil {
		return err
	}
	tp, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expect(SemiColonTP); err != nil {
		return err
	}
	if tp == nil {
		return nil
	}
	for _, name := range names {
		variable := &Variable{Name: name.Identifier(), Type: tp, Local: p.callable != nil}
		if err := p.table.Add(variable, name.Span); err != nil {
			p.report(err)
			continue
		}
		block.Variables = append(block.Variables, variable)
	}
	return nil
}

// Types.

// parseType returns nil, with no error, for a type that was reported as invalid or
// unsupported.
func (p *Parser) parseType() (Type, error) {
	token := p.peek()
	if token == nil {
		return nil, p.unexpected()
	}
	switch token.TP {
	case IdentifierTP:
		definition, _, _ := p.table.Query(token.Identifier(), token.Span, false)
		if _, isConstant := definition.(*Constant); isConstant || (definition == nil && p.rangeFollows()) {
			return p.parseSubrange()
		}
		p.next()
		typeDefinition, _, err := p.table.QueryType(token.Identifier(), token.Span)
		if err != nil {
			p.report(err)
			return nil, nil
		}
		return typeDefinition.Value, nil
	case LeftParenthesesTP:
		return p.parseEnumeratedType()
	case IntegerTP, FloatTP, StringTP, AddTP, MinusTP:
		return p.parseSubrange()
	case PackedTP:
		p.next()
		p.warn(token.Span, "'packed' has no effect. Ignoring it...")
		return p.parseType()
	case ArrayTP:
		return p.parseArrayType()
	case RecordTP:
		p.next()
		p.skipTo(EndTP)
		end, err := p.expect(EndTP)
		if err != nil {
			return nil, err
		}
		p.report(makeSemanticError(token.Span.To(end.Span), "Record types are not supported"))
		return nil, nil
	case SetTP, FileTP:
		p.next()
		if _, err := p.expect(OfTP); err != nil {
			return nil, err
		}
		if _, err := p.parseType(); err != nil {
			return nil, err
		}
		kind := "Set"
		if token.TP == FileTP {
			kind = "File"
		}
		p.report(makeSemanticError(token.Span.To(p.lastSpan()), "%s types are not supported", kind))
		return nil, nil
	case CaretTP:
		p.next()
		if _, err := p.expect(IdentifierTP); err != nil {
			return nil, err
		}
		p.report(makeSemanticError(token.Span.To(p.lastSpan()), "Pointer types are not supported"))
		return nil, nil
	}
	return nil, p.unexpected()
}

func (p *Parser) rangeFollows() bool {
	return p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].TP == RangeTP
}

func (p *Parser) parseEnumeratedType() (Type, error) {
	p.next()
	names, err := p.parseIdentifierList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RightParenthesesTP); err != nil {
		return nil, err
	}
	enumerated := &EnumeratedType{}
	for i, name := range names {
		constant := &EnumeratedConstant{Type: enumerated, Index: i, Name: name.Identifier()}
		enumerated.Constants = append(enumerated.Constants, constant)
		if err := p.table.Add(&Constant{Name: constant.Name, Value: constant}, name.Span); err != nil {
			p.report(err)
		}
	}
	return enumerated, nil
}

func (p *Parser) parseSubrange() (Type, error) {
	low, lowSpan, err := p.parseConstant()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RangeTP); err != nil {
		return nil, err
	}
	high, highSpan, err := p.parseConstant()
	if err != nil {
		return nil, err
	}
	if low == nil || high == nil {
		return nil, nil
	}
	rangeType, err := makeRange(low, lowSpan, high, highSpan)
	if err != nil {
		p.report(err)
		return nil, nil
	}
	return rangeType, nil
}

// makeRange checks that both bounds are ordinal, of the same type and in order.
func makeRange(low ConstantValue, lowSpan Span, high ConstantValue, highSpan Span) (*RangeType, error) {
	lowOrdinal, err := OrdinalValue(low, lowSpan)
	if err != nil {
		return nil, err
	}
	highOrdinal, err := OrdinalValue(high, highSpan)
	if err != nil {
		return nil, err
	}
	lowType, highType := ConstantType(low), ConstantType(high)
	if !SameType(lowType, highType) {
		return nil, makeSemanticError(lowSpan.To(highSpan), "Range bounds have different types: %s and %s", lowType, highType)
	}
	rangeType := &RangeType{Base: lowType, Low: lowOrdinal, High: highOrdinal}
	if lowOrdinal > highOrdinal {
		return nil, makeSemanticError(lowSpan.To(highSpan), "Invalid range %s: lower bound is greater than upper bound", rangeType)
	}
	return rangeType, nil
}

func (p *Parser) parseArrayType() (Type, error) {
	p.next()
	if _, err := p.expect(LeftSquareBracketTP); err != nil {
		return nil, err
	}
	array := &ArrayType{}
	valid := true
	for {
		dimension, err := p.parseIndexType()
		if err != nil {
			return nil, err
		}
		if dimension == nil {
			valid = false
		}
		array.Dimensions = append(array.Dimensions, dimension)
		if !p.peekIs(CommaTP) {
			break
		}
		p.next()
	}
	if _, err := p.expect(RightSquareBracketTP); err != nil {
		return nil, err
	}
	if _, err := p.expect(OfTP); err != nil {
		return nil, err
	}
	element, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !valid || element == nil {
		return nil, nil
	}
	array.Element = element
	return array, nil
}

// parseIndexType accepts a subrange or the name of a range, enumerated, boolean or char
// type.
func (p *Parser) parseIndexType() (*RangeType, error) {
	start := p.peekSpan()
	t, err := p.parseType()
	if t == nil || err != nil {
		return nil, err
	}
	switch v := t.(type) {
	case *RangeType:
		return v, nil
	case *EnumeratedType:
		return &RangeType{Base: v, Low: 0, High: len(v.Constants) - 1}, nil
	case BuiltinType:
		switch v {
		case BooleanType:
			return &RangeType{Base: BooleanType, Low: 0, High: 1}, nil
		case CharType:
			return &RangeType{Base: CharType, Low: 0, High: 255}, nil
		}
	}
	p.report(makeSemanticError(start.To(p.lastSpan()), "Invalid array index type %s", t))
	return nil, nil
}

// Callables.

func (p *Parser) parseCallableDeclaration() (*Callable, error) {
	isFunction := p.next().TP == FunctionTP
	callable := &Callable{}
	nested := p.table.Depth() != 1
	name, err := p.expect(IdentifierTP)
	if err == nil {
		callable.Name = name.Identifier()
		if nested {
			p.report(makeSemanticError(name.Span, "Nested callables are not supported"))
		} else if err := p.table.Add(callable, name.Span); err != nil {
			p.report(err)
		}
	}

	p.table.PushScope()
	outer := p.callable
	p.callable = callable
	defer func() {
		p.callable = outer
		if err := p.table.PopScope(); err != nil {
			internalError(err.Error())
		}
	}()

	if err == nil {
		err = p.parseHeading(callable, isFunction)
	}
	if err != nil {
		if p.peek() == nil {
			return nil, err
		}
		// Resume at the callable's block.
		p.report(err)
		callable.Invalid = true
		p.skipTo(LabelTP, ConstTP, TypeTP, VarTP, ProcedureTP, FunctionTP, BeginTP)
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	callable.Body = body
	if _, err := p.expect(SemiColonTP); err != nil {
		p.report(err)
	}
	if nested || callable.Name == "" {
		return nil, nil
	}
	return callable, nil
}

// parseHeading parses the parameters, return type and ';' after the callable's name.
func (p *Parser) parseHeading(callable *Callable, isFunction bool) error {
	if p.peekIs(LeftParenthesesTP) {
		if err := p.parseParameters(callable); err != nil {
			return err
		}
	}
	if isFunction {
		if _, err := p.expect(ColonTP); err != nil {
			return err
		}
		returnType, err := p.parseTypeIdentifier()
		if err != nil {
			return err
		}
		if returnType == nil {
			callable.Invalid = true
		}
		callable.Return = &Variable{Name: callable.Name, Type: returnType, Local: true}
	}
	_, err := p.expect(SemiColonTP)
	return err
}

func (p *Parser) parseParameters(callable *Callable) error {
	p.next()
	for {
		if p.peekIs(VarTP) {
			p.report(makeSemanticError(p.next().Span, "VAR parameters are not supported"))
		}
		names, err := p.parseIdentifierList()
		if err != nil {
			return err
		}
		if _, err := p.expect(ColonTP); err != nil {
			return err
		}
		tp, err := p.parseTypeIdentifier()
		if err != nil {
			return err
		}
		if tp == nil {
			callable.Invalid = true
		}
		for _, name := range names {
			parameter := &Variable{Name: name.Identifier(), Type: tp, Local: true}
			callable.Parameters = append(callable.Parameters, parameter)
			if err := p.table.Add(parameter, name.Span); err != nil {
				p.report(err)
			}
		}
		if !p.peekIs(SemiColonTP) {
			break
		}
		p.next()
	}
	_, err := p.expect(RightParenthesesTP)
	return err
}

// parseTypeIdentifier is used where only a named type may appear.
func (p *Parser) parseTypeIdentifier() (Type, error) {
	name, err := p.expect(IdentifierTP)
	if err != nil {
		return nil, err
	}
	definition, _, err := p.table.QueryType(name.Identifier(), name.Span)
	if err != nil {
		p.report(err)
		return nil, nil
	}
	return definition.Value, nil
}

// Labels.

// labelTable tracks, for one block, which declared labels were the target of a goto and
// which statement each one prefixes.
type labelTable struct {
	declared []*Label
	spans    map[int]Span
	used     map[int]bool
	bound    map[int]Statement
}

func newLabelTable() *labelTable {
	return &labelTable{spans: map[int]Span{}, used: map[int]bool{}, bound: map[int]Statement{}}
}

func (t *labelTable) declare(label *Label, span Span) {
	t.declared = append(t.declared, label)
	t.spans[label.ID] = span
}

func (p *Parser) checkLabels() {
	for _, label := range p.labels.declared {
		if _, bound := p.labels.bound[label.ID]; bound {
			continue
		}
		span := p.labels.spans[label.ID]
		if p.labels.used[label.ID] {
			p.report(makeSemanticError(span, "Label '%d' used but never assigned to a statement", label.ID))
		} else {
			p.warn(span, "Label '"+label.DefinitionName()+"' declared but never used")
		}
	}
}

// resolveLabel finds a label that a goto or a statement prefix may refer to: it must be
// declared in the block being parsed.
func (p *Parser) resolveLabel(token *Token) *Label {
	label, topScope, err := p.table.QueryLabel(token.Value.(int), token.Span)
	if err != nil {
		p.report(err)
		return nil
	}
	if !topScope {
		p.report(makeSemanticError(token.Span, "Label '%d' is not declared in this block", label.ID))
		return nil
	}
	return label
}
