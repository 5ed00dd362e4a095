package internal

// Expressions, layered by precedence:
//
//	expression := simple [relop simple]
//	simple     := [+|-] term {(+|-|or) term}
//	term       := factor {(*|/|div|mod|and) factor}
//	factor     := constant | variable | call | ( expression ) | not factor
//
// A nil *Expression with a nil error is the "no type" result of a subtree that was already
// reported. Operators over it produce nil too, without a new diagnostic.

var relationalOperators = map[TokenType]Operator{
	EqualTP:        OpEqual,
	DifferentTP:    OpDifferent,
	LessTP:         OpLess,
	GreaterTP:      OpGreater,
	LessEqualTP:    OpLessEqual,
	GreaterEqualTP: OpGreaterEqual,
}

var additiveOperators = map[TokenType]Operator{
	AddTP:   OpAdd,
	MinusTP: OpSub,
	OrTP:    OpOr,
}

var multiplicativeOperators = map[TokenType]Operator{
	MultiplyTP: OpMul,
	DivideTP:   OpDivide,
	DivTP:      OpDiv,
	ModTP:      OpMod,
	AndTP:      OpAnd,
}

func (p *Parser) peekOperator(operators map[TokenType]Operator) (Operator, bool) {
	token := p.peek()
	if token == nil {
		return "", false
	}
	op, ok := operators[token.TP]
	return op, ok
}

func (p *Parser) parseExpression() (*Expression, error) {
	left, err := p.parseSimpleExpression()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekOperator(relationalOperators)
	if !ok {
		return left, nil
	}
	token := p.next()
	right, err := p.parseSimpleExpression()
	if err != nil {
		return nil, err
	}
	return p.binary(op, left, right, token.Span), nil
}

func (p *Parser) parseSimpleExpression() (*Expression, error) {
	var sign *Token
	if p.peekIs(AddTP, MinusTP) {
		sign = p.next()
	}
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if sign != nil {
		left = p.unary(additiveOperators[sign.TP], left, sign.Span)
	}
	for {
		op, ok := p.peekOperator(additiveOperators)
		if !ok {
			return left, nil
		}
		token := p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right, token.Span)
	}
}

func (p *Parser) parseTerm() (*Expression, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOperator(multiplicativeOperators)
		if !ok {
			return left, nil
		}
		token := p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right, token.Span)
	}
}

func (p *Parser) parseFactor() (*Expression, error) {
	token := p.peek()
	if token == nil {
		return nil, p.unexpected()
	}
	switch token.TP {
	case IntegerTP:
		p.next()
		return constantExpression(IntegerConstant(token.Value.(int))), nil
	case FloatTP:
		p.next()
		return constantExpression(RealConstant(token.Value.(float64))), nil
	case StringTP:
		p.next()
		return constantExpression(StringConstant(token.Value.(string))), nil
	case NilTP:
		p.next()
		p.report(makeSemanticError(token.Span, "Pointers are not supported"))
		return nil, nil
	case LeftParenthesesTP:
		p.next()
		expression, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RightParenthesesTP); err != nil {
			return nil, err
		}
		return expression, nil
	case NotTP:
		p.next()
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return p.unary(OpNot, operand, token.Span), nil
	case IdentifierTP:
		return p.parseIdentifierFactor()
	}
	return nil, p.unexpected()
}

func constantExpression(value ConstantValue) *Expression {
	return &Expression{Node: &ConstantNode{Value: value}, Type: ConstantType(value)}
}

func (p *Parser) unary(op Operator, operand *Expression, span Span) *Expression {
	if operand == nil {
		return nil
	}
	t, err := UnaryType(op, operand.Type, span)
	if err != nil {
		p.report(err)
		return nil
	}
	return &Expression{Node: &UnaryOp{Op: op, Operand: operand}, Type: t}
}

func (p *Parser) binary(op Operator, left, right *Expression, span Span) *Expression {
	if left == nil || right == nil {
		return nil
	}
	t, err := BinaryType(op, left.Type, right.Type, span)
	if err != nil {
		p.report(err)
		return nil
	}
	return &Expression{Node: &BinaryOp{Op: op, Left: left, Right: right}, Type: t}
}

func (p *Parser) parseIdentifierFactor() (*Expression, error) {
	token := p.next()
	definition, _, err := p.table.Query(token.Identifier(), token.Span, true)
	if err != nil {
		p.report(err)
		return nil, p.skipSelectors()
	}
	switch d := definition.(type) {
	case *Constant:
		return constantExpression(d.Value), nil
	case *Variable:
		return p.parseVariableAccess(token, d)
	case *Callable:
		call, err := p.parseCall(token, d)
		if err != nil || call == nil {
			return nil, err
		}
		if d.Return == nil {
			p.report(makeSemanticError(token.Span, "Procedure '%s' does not return a value", d.Name))
			return nil, nil
		}
		return &Expression{Node: call, Type: d.Return.Type}, nil
	}
	p.report(makeSemanticError(token.Span, "Object with name '%s' is not a variable", token.Identifier()))
	return nil, p.skipSelectors()
}

// skipSelectors consumes the brackets or arguments after an identifier that could not be
// resolved, so the rest of the expression still parses.
func (p *Parser) skipSelectors() error {
	for p.peekIs(LeftSquareBracketTP, LeftParenthesesTP) {
		closing := RightSquareBracketTP
		if p.next().TP == LeftParenthesesTP {
			closing = RightParenthesesTP
		}
		if _, err := p.parseExpressionList(); err != nil {
			return err
		}
		if _, err := p.expect(closing); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseExpressionList() ([]*Expression, error) {
	var expressions []*Expression
	for {
		expression, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		expressions = append(expressions, expression)
		if !p.peekIs(CommaTP) {
			return expressions, nil
		}
		p.next()
	}
}

// parseVariableAccess parses the indices after a variable name, [i, j] and [i][j] alike.
func (p *Parser) parseVariableAccess(token *Token, variable *Variable) (*Expression, error) {
	usage := &VariableUsage{Variable: variable}
	// An untyped variable comes from a declaration that was already reported.
	t, valid := variable.Type, variable.Type != nil
	for p.peekIs(LeftSquareBracketTP) {
		p.next()
		for {
			start := p.peekSpan()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if valid && index != nil {
				next, err := TypeAfterIndexation(t, index.Type, start.To(p.lastSpan()))
				if err != nil {
					p.report(err)
					valid = false
				} else {
					t = next
					usage.Indices = append(usage.Indices, index)
				}
			} else {
				valid = false
			}
			if !p.peekIs(CommaTP) {
				break
			}
			p.next()
		}
		if _, err := p.expect(RightSquareBracketTP); err != nil {
			return nil, err
		}
	}
	if !valid {
		return nil, nil
	}
	return &Expression{Node: usage, Type: t}, nil
}

// Calls.

// parseCall parses the optional argument list of a call and checks it against the
// callable. The result is nil when the call was invalid.
func (p *Parser) parseCall(token *Token, callable *Callable) (*CallNode, error) {
	var args []*Expression
	var spans []Span
	valid := true
	if p.peekIs(LeftParenthesesTP) {
		p.next()
		for {
			start := p.peekSpan()
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if arg == nil {
				valid = false
			}
			args = append(args, arg)
			spans = append(spans, start.To(p.lastSpan()))
			if !p.peekIs(CommaTP) {
				break
			}
			p.next()
		}
		if _, err := p.expect(RightParenthesesTP); err != nil {
			return nil, err
		}
	}
	if !valid || callable.Invalid {
		return nil, nil
	}
	span := token.Span.To(p.lastSpan())
	var errs []error
	if callable.Builtin {
		args, errs = checkBuiltinCall(callable, args, spans, span)
	} else {
		args, errs = checkCall(callable, args, spans, span)
	}
	if len(errs) > 0 {
		for _, err := range errs {
			p.report(err)
		}
		return nil, nil
	}
	return &CallNode{Callable: callable, Args: args}, nil
}

func checkArity(callable *Callable, expected int, args []*Expression, span Span) error {
	if len(args) != expected {
		return makeSemanticError(span, "Callable '%s' expects %d arguments, got %d", callable.Name, expected, len(args))
	}
	return nil
}

// checkCall returns one error per argument that does not match its parameter.
func checkCall(callable *Callable, args []*Expression, spans []Span, span Span) ([]*Expression, []error) {
	if err := checkArity(callable, len(callable.Parameters), args, span); err != nil {
		return nil, []error{err}
	}
	var errs []error
	checked := make([]*Expression, len(args))
	for i, arg := range args {
		parameter := callable.Parameters[i]
		arg = coerce(parameter.Type, arg)
		if !CanAssign(parameter.Type, arg.Type) {
			errs = append(errs, makeSemanticError(spans[i], "Argument %d of '%s': expected %s, got %s", i+1, callable.Name, parameter.Type, arg.Type))
			continue
		}
		checked[i] = arg
	}
	return checked, errs
}

func checkBuiltinCall(callable *Callable, args []*Expression, spans []Span, span Span) ([]*Expression, []error) {
	var errs []error
	switch callable.Name {
	case "write", "writeln":
		for i, arg := range args {
			if !isWritable(arg.Type) {
				errs = append(errs, makeSemanticError(spans[i], "Argument %d of '%s' cannot be written: %s", i+1, callable.Name, arg.Type))
			}
		}
	case "read", "readln":
		for i, arg := range args {
			usage, isVariable := arg.Node.(*VariableUsage)
			if !isVariable || !isReadable(arg.Type) {
				errs = append(errs, makeSemanticError(spans[i], "Argument %d of '%s' must be a variable of type integer, real, char or string", i+1, callable.Name))
				continue
			}
			if err := checkStorable(usage, spans[i]); err != nil {
				errs = append(errs, err)
			}
		}
	case "length":
		if err := checkArity(callable, 1, args, span); err != nil {
			return nil, []error{err}
		}
		arg := coerce(StringType, args[0])
		if baseType(arg.Type) != StringType {
			return nil, []error{makeSemanticError(spans[0], "Argument 1 of 'length' must be a string, got %s", arg.Type)}
		}
		return []*Expression{arg}, nil
	default:
		internalError("unknown builtin callable %s", callable.Name)
	}
	return args, errs
}

func isWritable(t Type) bool {
	switch baseType(t).(type) {
	case *EnumeratedType:
		return true
	case BuiltinType:
		return baseType(t) != VoidType
	}
	return false
}

func isReadable(t Type) bool {
	switch baseType(t) {
	case IntegerType, RealType, CharType, StringType:
		return true
	}
	return false
}
