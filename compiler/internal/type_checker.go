package internal

// The type checker is a set of pure rules over already built values and types. It never
// touches the symbol table.

// ConstantType maps a constant to its static type. One character strings are chars.
func ConstantType(value ConstantValue) Type {
	switch v := value.(type) {
	case BooleanConstant:
		return BooleanType
	case IntegerConstant:
		return IntegerType
	case RealConstant:
		return RealType
	case StringConstant:
		if len(v) == 1 {
			return CharType
		}
		return StringType
	case *EnumeratedConstant:
		return v.Type
	}
	internalError("unknown constant %T", value)
	return nil
}

// OrdinalValue maps an ordinal constant to its integer. Reals and strings are not ordinal.
func OrdinalValue(value ConstantValue, span Span) (int, error) {
	switch v := value.(type) {
	case BooleanConstant:
		if v {
			return 1, nil
		}
		return 0, nil
	case IntegerConstant:
		return int(v), nil
	case StringConstant:
		if len(v) == 1 {
			return int(v[0]), nil
		}
	case *EnumeratedConstant:
		return v.Index, nil
	}
	return 0, makeSemanticError(span, "Constant of type %s is not ordinal", ConstantType(value))
}

// IsOrdinal reports whether values of t map to consecutive integers.
func IsOrdinal(t Type) bool {
	switch v := t.(type) {
	case BuiltinType:
		return v == BooleanType || v == IntegerType || v == CharType
	case *RangeType, *EnumeratedType:
		return true
	}
	return false
}

func isNumeric(t Type) bool {
	return t == IntegerType || t == RealType
}

func UnaryType(op Operator, operand Type, span Span) (Type, error) {
	operand = baseType(operand)
	switch op {
	case OpAdd, OpSub:
		if isNumeric(operand) {
			return operand, nil
		}
	case OpNot:
		if operand == BooleanType {
			return BooleanType, nil
		}
	}
	return nil, makeSemanticError(span, "Invalid operand type for '%s': %s", op, operand)
}

func BinaryType(op Operator, left, right Type, span Span) (Type, error) {
	l, r := baseType(left), baseType(right)
	switch op {
	case OpAdd, OpSub, OpMul:
		if isNumeric(l) && isNumeric(r) {
			if l == RealType || r == RealType {
				return RealType, nil
			}
			return IntegerType, nil
		}
	case OpDivide:
		if isNumeric(l) && isNumeric(r) {
			return RealType, nil
		}
	case OpDiv, OpMod:
		if l == IntegerType && r == IntegerType {
			return IntegerType, nil
		}
	case OpAnd, OpOr:
		if l == BooleanType && r == BooleanType {
			return BooleanType, nil
		}
	case OpEqual, OpDifferent, OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		if canCompare(op, l, r) {
			return BooleanType, nil
		}
	}
	return nil, makeSemanticError(span, "Invalid operand types for '%s': %s and %s", op, left, right)
}

// canCompare holds for two numbers, two values of the same boolean, char or enumerated
// type, and two strings under = and <>.
func canCompare(op Operator, l, r Type) bool {
	if isNumeric(l) && isNumeric(r) {
		return true
	}
	switch l {
	case BooleanType, CharType:
		return l == r
	case StringType:
		return r == StringType && (op == OpEqual || op == OpDifferent)
	}
	if e, ok := l.(*EnumeratedType); ok {
		return SameType(e, r)
	}
	return false
}

// TypeAfterIndexation is the type of current[index]. Indexing an array consumes its first
// dimension; indexing a string yields a char.
func TypeAfterIndexation(current, index Type, span Span) (Type, error) {
	switch c := current.(type) {
	case *ArrayType:
		dimension := c.Dimensions[0]
		if !SameType(baseType(index), dimension.Base) {
			return nil, makeSemanticError(span, "Invalid index of type %s for dimension %s", index, dimension)
		}
		if len(c.Dimensions) == 1 {
			return c.Element, nil
		}
		return &ArrayType{Element: c.Element, Dimensions: c.Dimensions[1:]}, nil
	case BuiltinType:
		if c == StringType {
			if baseType(index) != IntegerType {
				return nil, makeSemanticError(span, "Invalid index of type %s for a string", index)
			}
			return CharType, nil
		}
	}
	return nil, makeSemanticError(span, "Cannot index a value of type %s", current)
}

// CanAssign holds for identical types, modulo ranges, and for integers into reals.
func CanAssign(target, value Type) bool {
	t, v := baseType(target), baseType(value)
	if SameType(t, v) {
		return true
	}
	return t == RealType && v == IntegerType
}
