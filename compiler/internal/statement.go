package internal

// Statements. A nil Statement with a nil error means the statement was invalid, has been
// reported and its tokens skipped.

func (p *Parser) parseCompoundStatement() (*CompoundStatement, error) {
	begin, err := p.expect(BeginTP)
	if err != nil {
		return nil, err
	}
	compound := &CompoundStatement{}
	if p.peekIs(EndTP) {
		p.report(makeSemanticError(begin.Span.To(p.next().Span), "Empty compound statements are not supported"))
		return compound, nil
	}
	compound.Statements = p.parseStatementSequence(EndTP)
	if _, err := p.expect(EndTP); err != nil {
		return nil, err
	}
	return compound, nil
}

// parseStatementSequence parses statements separated by ';' up to terminator, which is left
// in place. A trailing ';' is accepted. Syntax errors are recovered here by skipping to
// terminator.
func (p *Parser) parseStatementSequence(terminator TokenType) []Statement {
	var statements []Statement
	for {
		statement, err := p.parseStatement()
		if err != nil {
			p.report(err)
			p.skipTo(terminator)
			return statements
		}
		if statement != nil {
			statements = append(statements, statement)
		}
		if p.peekIs(SemiColonTP) {
			p.next()
			if p.peekIs(terminator) {
				return statements
			}
			continue
		}
		if p.peek() == nil || p.peekIs(terminator) {
			return statements
		}
		p.report(p.unexpected())
		p.skipTo(terminator)
		return statements
	}
}

// skipStatement discards the rest of a statement after a semantic error at its start.
func (p *Parser) skipStatement() {
	p.skipTo(SemiColonTP, EndTP, ElseTP, UntilTP)
}

func (p *Parser) parseStatement() (Statement, error) {
	token := p.peek()
	if token == nil || token.TP != IntegerTP {
		return p.parseUnlabeledStatement()
	}
	p.next()
	if _, err := p.expect(ColonTP); err != nil {
		return nil, err
	}
	label := p.resolveLabel(token)
	statement, err := p.parseUnlabeledStatement()
	if label == nil {
		return statement, err
	}
	if _, bound := p.labels.bound[label.ID]; bound {
		p.report(makeSemanticError(token.Span, "Label '%d' is assigned to more than one statement", label.ID))
		return statement, err
	}
	// An invalid statement still binds its label.
	p.labels.bound[label.ID] = statement
	if err != nil || statement == nil {
		return statement, err
	}
	return &LabeledStatement{Label: label, Statement: statement}, nil
}

func (p *Parser) parseUnlabeledStatement() (Statement, error) {
	token := p.peek()
	if token == nil {
		return nil, p.unexpected()
	}
	switch token.TP {
	case IdentifierTP:
		return p.parseIdentifierStatement()
	case BeginTP:
		return p.parseCompoundStatement()
	case IfTP:
		return p.parseIfStatement()
	case WhileTP:
		return p.parseWhileStatement()
	case RepeatTP:
		return p.parseRepeatStatement()
	case ForTP:
		return p.parseForStatement()
	case GotoTP:
		return p.parseGotoStatement()
	case WithTP:
		p.report(makeSemanticError(token.Span, "With statements are not supported"))
		p.skipStatement()
		return nil, nil
	case CaseTP:
		p.report(makeSemanticError(token.Span, "Case statements are not supported"))
		p.skipStatement()
		return nil, nil
	}
	return nil, p.unexpected()
}

// parseIdentifierStatement parses an assignment or a procedure call.
func (p *Parser) parseIdentifierStatement() (Statement, error) {
	token := p.next()
	definition, _, err := p.table.Query(token.Identifier(), token.Span, true)
	if err != nil {
		p.report(err)
		p.skipStatement()
		return nil, nil
	}
	switch d := definition.(type) {
	case *Variable:
		return p.parseAssignment(token, d)
	case *Callable:
		if d == p.callable && d.Return != nil && p.peekIs(AssignTP, LeftSquareBracketTP) {
			return p.parseAssignment(token, d.Return)
		}
		call, err := p.parseCall(token, d)
		if err != nil || call == nil {
			return nil, err
		}
		return &CallStatement{Call: call}, nil
	}
	p.report(makeSemanticError(token.Span, "Object with name '%s' is not a variable", token.Identifier()))
	p.skipStatement()
	return nil, nil
}

func (p *Parser) parseAssignment(token *Token, variable *Variable) (Statement, error) {
	target, err := p.parseVariableAccess(token, variable)
	if err != nil {
		return nil, err
	}
	targetSpan := token.Span.To(p.lastSpan())
	if _, err := p.expect(AssignTP); err != nil {
		return nil, err
	}
	valueStart := p.peekSpan()
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if target == nil || value == nil {
		return nil, nil
	}
	usage := target.Node.(*VariableUsage)
	if err := checkStorable(usage, targetSpan); err != nil {
		p.report(err)
		return nil, nil
	}
	value = coerce(target.Type, value)
	if !CanAssign(target.Type, value.Type) {
		p.report(makeSemanticError(valueStart.To(p.lastSpan()), "Cannot assign a value of type %s to a target of type %s", value.Type, target.Type))
		return nil, nil
	}
	return &AssignStatement{Target: usage, Value: value}, nil
}

// checkStorable rejects targets the machine cannot store into: a character of a string and
// a slice of a multi-dimensional array.
func checkStorable(usage *VariableUsage, span Span) error {
	if len(usage.Indices) == 0 {
		return nil
	}
	switch t := typeBeforeLastIndex(usage).(type) {
	case BuiltinType:
		if t == StringType {
			return makeSemanticError(span, "Cannot assign to a character of a string")
		}
	case *ArrayType:
		if len(t.Dimensions) > 1 {
			return makeSemanticError(span, "Cannot assign to part of an array")
		}
	}
	return nil
}

func typeBeforeLastIndex(usage *VariableUsage) Type {
	t := usage.Variable.Type
	for _, index := range usage.Indices[:len(usage.Indices)-1] {
		next, err := TypeAfterIndexation(t, index.Type, Span{})
		if err != nil {
			internalError("index checked by the parser failed: %v", err)
		}
		t = next
	}
	return t
}

// coerce turns a char constant into a string constant when a string is expected.
func coerce(target Type, value *Expression) *Expression {
	if baseType(target) != StringType || value.Type != CharType {
		return value
	}
	if _, ok := value.Node.(*ConstantNode); !ok {
		return value
	}
	return &Expression{Node: value.Node, Type: StringType}
}

// condition checks that an if, while or repeat condition is a boolean.
func (p *Parser) condition(expression *Expression, span Span) *Expression {
	if expression == nil {
		return nil
	}
	if baseType(expression.Type) != BooleanType {
		p.report(makeSemanticError(span, "Condition must be boolean, got %s", expression.Type))
		return nil
	}
	return expression
}

func (p *Parser) parseCondition() (*Expression, error) {
	start := p.peekSpan()
	expression, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return p.condition(expression, start.To(p.lastSpan())), nil
}

func (p *Parser) parseIfStatement() (Statement, error) {
	p.next()
	condition, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ThenTP); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	var otherwise Statement
	if p.peekIs(ElseTP) {
		p.next()
		if otherwise, err = p.parseStatement(); err != nil {
			return nil, err
		}
	}
	if condition == nil || then == nil {
		return nil, nil
	}
	return &IfStatement{Condition: condition, Then: then, Else: otherwise}, nil
}

func (p *Parser) parseWhileStatement() (Statement, error) {
	p.next()
	condition, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(DoTP); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if condition == nil || body == nil {
		return nil, nil
	}
	return &WhileStatement{Condition: condition, Body: body}, nil
}

func (p *Parser) parseRepeatStatement() (Statement, error) {
	p.next()
	body := &CompoundStatement{}
	if !p.peekIs(UntilTP) {
		body.Statements = p.parseStatementSequence(UntilTP)
	}
	if _, err := p.expect(UntilTP); err != nil {
		return nil, err
	}
	condition, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if condition == nil {
		return nil, nil
	}
	return &RepeatStatement{Body: body, Condition: condition}, nil
}

func (p *Parser) parseForStatement() (Statement, error) {
	p.next()
	name, err := p.expect(IdentifierTP)
	if err != nil {
		return nil, err
	}
	variable := p.resolveControlVariable(name)
	if _, err := p.expect(AssignTP); err != nil {
		return nil, err
	}
	from, err := p.parseBound(variable)
	if err != nil {
		return nil, err
	}
	direction := ForUp
	switch {
	case p.peekIs(ToTP):
	case p.peekIs(DownToTP):
		direction = ForDown
	default:
		return nil, p.unexpected()
	}
	p.next()
	to, err := p.parseBound(variable)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(DoTP); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if variable == nil || from == nil || to == nil || body == nil {
		return nil, nil
	}
	return &ForStatement{Variable: variable, From: from, To: to, Direction: direction, Body: body}, nil
}

// resolveControlVariable checks that a for loop counts over an ordinal variable of the
// block being parsed.
func (p *Parser) resolveControlVariable(name *Token) *Variable {
	variable, topScope, err := p.table.QueryVariable(name.Identifier(), name.Span)
	if err != nil {
		p.report(err)
		return nil
	}
	if !topScope {
		p.report(makeSemanticError(name.Span, "Control variable '%s' must be declared in the enclosing block", variable.Name))
		return nil
	}
	if variable.Type == nil {
		return nil
	}
	if !IsOrdinal(variable.Type) {
		p.report(makeSemanticError(name.Span, "Control variable '%s' must be of an ordinal type, got %s", variable.Name, variable.Type))
		return nil
	}
	return variable
}

func (p *Parser) parseBound(variable *Variable) (*Expression, error) {
	start := p.peekSpan()
	bound, err := p.parseExpression()
	if err != nil || bound == nil || variable == nil {
		return bound, err
	}
	if !CanAssign(variable.Type, bound.Type) {
		p.report(makeSemanticError(start.To(p.lastSpan()), "Cannot assign a value of type %s to a target of type %s", bound.Type, variable.Type))
		return nil, nil
	}
	return bound, nil
}

func (p *Parser) parseGotoStatement() (Statement, error) {
	p.next()
	token, err := p.expect(IntegerTP)
	if err != nil {
		return nil, err
	}
	label := p.resolveLabel(token)
	if label == nil {
		return nil, nil
	}
	p.labels.used[label.ID] = true
	return &GotoStatement{Label: label}, nil
}
