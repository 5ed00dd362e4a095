package internal

import (
	"strconv"

	"github.com/voidbert/PL/util"
)

// A Tokenizer for the Pascal subset.

// The language has those elements:
// * KeyWord: program, begin, end, label, const, type, var, array, packed, set, file, of, record,
//			function, procedure, if, then, else, for, to, downto, do, while, repeat, until, case,
//			goto, with, and, or, not, in, div, mod, nil. Matched case-insensitively.
// * Symbol: . ; : ( , ) < > = + - * / [ ] ^ and <> <= >= := ..
// * Constant: integer, real (1.5, 1e3, 1.5e-3), string ('xxx', with '' for a quote).
// * Identifier: a letter followed by letters or digits.
// * Comment: {...}, (*...*).
// * Alternatives: @ for ^, (. for [, .) for ].

type TokenType int

const (
	ProgramTP            TokenType = iota // program
	BeginTP                               // begin
	EndTP                                 // end
	LabelTP                               // label
	ConstTP                               // const
	TypeTP                                // type
	VarTP                                 // var
	ArrayTP                               // array
	PackedTP                              // packed
	SetTP                                 // set
	FileTP                                // file
	OfTP                                  // of
	RecordTP                              // record
	FunctionTP                            // function
	ProcedureTP                           // procedure
	IfTP                                  // if
	ThenTP                                // then
	ElseTP                                // else
	ForTP                                 // for
	ToTP                                  // to
	DownToTP                              // downto
	DoTP                                  // do
	WhileTP                               // while
	RepeatTP                              // repeat
	UntilTP                               // until
	CaseTP                                // case
	GotoTP                                // goto
	WithTP                                // with
	AndTP                                 // and
	OrTP                                  // or
	NotTP                                 // not
	InTP                                  // in
	DivTP                                 // div
	ModTP                                 // mod
	NilTP                                 // nil
	DotTP                                 // .
	SemiColonTP                           // ;
	ColonTP                               // :
	LeftParenthesesTP                     // (
	CommaTP                               // ,
	RightParenthesesTP                    // )
	LessTP                                // <
	GreaterTP                             // >
	EqualTP                               // =
	AddTP                                 // +
	MinusTP                               // -
	MultiplyTP                            // *
	DivideTP                              // /
	LeftSquareBracketTP                   // [
	RightSquareBracketTP                  // ]
	CaretTP                               // ^
	DifferentTP                           // <>
	LessEqualTP                           // <=
	GreaterEqualTP                        // >=
	AssignTP                              // :=
	RangeTP                               // ..
	IntegerTP                             // 1010
	FloatTP                               // 1.5e3
	StringTP                              // 'xxx'
	IdentifierTP                          // varA
)

// keyWordTokenTPMap is the mapping from lower-cased identifier to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"program":   ProgramTP,
	"begin":     BeginTP,
	"end":       EndTP,
	"label":     LabelTP,
	"const":     ConstTP,
	"type":      TypeTP,
	"var":       VarTP,
	"array":     ArrayTP,
	"packed":    PackedTP,
	"set":       SetTP,
	"file":      FileTP,
	"of":        OfTP,
	"record":    RecordTP,
	"function":  FunctionTP,
	"procedure": ProcedureTP,
	"if":        IfTP,
	"then":      ThenTP,
	"else":      ElseTP,
	"for":       ForTP,
	"to":        ToTP,
	"downto":    DownToTP,
	"do":        DoTP,
	"while":     WhileTP,
	"repeat":    RepeatTP,
	"until":     UntilTP,
	"case":      CaseTP,
	"goto":      GotoTP,
	"with":      WithTP,
	"and":       AndTP,
	"or":        OrTP,
	"not":       NotTP,
	"in":        InTP,
	"div":       DivTP,
	"mod":       ModTP,
	"nil":       NilTP,
}

// simpleSymbolTokenTPMap holds the single character symbols that never start a longer one.
var simpleSymbolTokenTPMap = map[byte]TokenType{
	';': SemiColonTP,
	',': CommaTP,
	')': RightParenthesesTP,
	'=': EqualTP,
	'+': AddTP,
	'-': MinusTP,
	'*': MultiplyTP,
	'/': DivideTP,
	'[': LeftSquareBracketTP,
	']': RightSquareBracketTP,
	'^': CaretTP,
	'@': CaretTP,
}

// compoundSymbolTokenTPMap holds two character symbols. They are tried before single ones.
var compoundSymbolTokenTPMap = map[string]TokenType{
	"<>": DifferentTP,
	"<=": LessEqualTP,
	">=": GreaterEqualTP,
	":=": AssignTP,
	"..": RangeTP,
	"(.": LeftSquareBracketTP,
	".)": RightSquareBracketTP,
}

var prefixSymbolTokenTPMap = map[byte]TokenType{
	'<': LessTP,
	'>': GreaterTP,
	':': ColonTP,
	'.': DotTP,
	'(': LeftParenthesesTP,
}

type Token struct {
	// Content is the source text of the token.
	Content string
	// Value is the identifier in lower case, the int or float64 of a number, or the
	// unescaped text of a string.
	Value interface{}
	TP    TokenType
	Span  Span
}

func (t *Token) Identifier() string {
	s, _ := t.Value.(string)
	return s
}

// LexicalError is one run of characters the tokenizer could not recognize.
type LexicalError struct {
	Span Span
	Msg  string
}

func (e *LexicalError) Error() string {
	return e.Msg
}

const unrecognizedCharactersMsg = "Lexer failed to recognize the following characters"

type Tokenizer struct {
	source      []byte
	currentPos  int
	currentLine int
	tokens      []*Token
	errors      []*LexicalError
	// pending is the run of unrecognized characters not reported yet.
	pending *Span
}

// Tokenize splits source into tokens. Unrecognized characters never stop it: every run of
// them on a line becomes one LexicalError and tokenizing goes on until the end of input.
func (tokenizer *Tokenizer) Tokenize(source []byte) ([]*Token, []*LexicalError) {
	tokenizer.Reset()
	tokenizer.source = source
	for {
		tokenizer.trimSpaceAndComments()
		if !tokenizer.hasRemainCharacters() {
			break
		}
		startPos := tokenizer.currentPos
		token := tokenizer.getNextToken()
		if token == nil {
			if tokenizer.currentPos == startPos {
				tokenizer.markUnrecognized(startPos, 1)
				tokenizer.currentPos++
			}
			continue
		}
		tokenizer.commitError()
		tokenizer.tokens = append(tokenizer.tokens, token)
	}
	tokenizer.commitError()
	return tokenizer.tokens, tokenizer.errors
}

func (tokenizer *Tokenizer) Reset() {
	tokenizer.source = nil
	tokenizer.currentPos, tokenizer.currentLine = 0, 1
	tokenizer.tokens, tokenizer.errors, tokenizer.pending = nil, nil, nil
}

// getNextToken returns the token starting at the current position, or nil when no token
// starts there.
func (tokenizer *Tokenizer) getNextToken() *Token {
	c := tokenizer.source[tokenizer.currentPos]
	switch {
	case util.IsNumber(c):
		return tokenizer.tokenNumber()
	case util.IsLetter(c):
		return tokenizer.toKeywordOrIdentifier()
	case c == '\'':
		return tokenizer.tokenString()
	}
	if len(tokenizer.source[tokenizer.currentPos:]) >= 2 {
		symbol := string(tokenizer.source[tokenizer.currentPos : tokenizer.currentPos+2])
		if tp, ok := compoundSymbolTokenTPMap[symbol]; ok {
			return tokenizer.makeToken(tp, tokenizer.currentPos, tokenizer.currentPos+2, nil)
		}
	}
	if tp, ok := prefixSymbolTokenTPMap[c]; ok {
		return tokenizer.makeToken(tp, tokenizer.currentPos, tokenizer.currentPos+1, nil)
	}
	if tp, ok := simpleSymbolTokenTPMap[c]; ok {
		return tokenizer.makeToken(tp, tokenizer.currentPos, tokenizer.currentPos+1, nil)
	}
	return nil
}

func (tokenizer *Tokenizer) makeToken(tp TokenType, start, end int, value interface{}) *Token {
	token := &Token{
		Content: string(tokenizer.source[start:end]),
		Value:   value,
		TP:      tp,
		Span:    Span{Start: start, End: end, Line: tokenizer.currentLine},
	}
	tokenizer.currentPos = end
	return token
}

func (tokenizer *Tokenizer) hasRemainCharacters() bool {
	return tokenizer.currentPos < len(tokenizer.source)
}

// trimSpaceAndComments steps over blanks and comments. An unterminated comment opener is
// left in place so it gets reported as unrecognized.
func (tokenizer *Tokenizer) trimSpaceAndComments() {
	for tokenizer.hasRemainCharacters() {
		c := tokenizer.source[tokenizer.currentPos]
		if util.IsBlank(c) {
			if c == '\n' {
				tokenizer.commitError()
				tokenizer.currentLine++
			}
			tokenizer.currentPos++
			continue
		}
		if !tokenizer.skipComment() {
			return
		}
	}
}

func (tokenizer *Tokenizer) skipComment() bool {
	rest := tokenizer.source[tokenizer.currentPos:]
	var openerLength int
	switch {
	case rest[0] == '{':
		openerLength = 1
	case len(rest) >= 2 && rest[0] == '(' && rest[1] == '*':
		openerLength = 2
	default:
		return false
	}
	lines := 0
	for i := openerLength; i < len(rest); i++ {
		switch {
		case rest[i] == '\n':
			lines++
		case rest[i] == '}':
			tokenizer.currentPos += i + 1
			tokenizer.currentLine += lines
			return true
		case rest[i] == '*' && i+1 < len(rest) && rest[i+1] == ')':
			tokenizer.currentPos += i + 2
			tokenizer.currentLine += lines
			return true
		}
	}
	return false
}

func (tokenizer *Tokenizer) tokenNumber() *Token {
	startPos := tokenizer.currentPos
	pos := tokenizer.skipDigits(startPos)
	isFloat := false
	if pos+1 < len(tokenizer.source) && tokenizer.source[pos] == '.' && util.IsNumber(tokenizer.source[pos+1]) {
		pos = tokenizer.skipDigits(pos + 1)
		isFloat = true
	}
	if pos < len(tokenizer.source) && (tokenizer.source[pos] == 'e' || tokenizer.source[pos] == 'E') {
		exponent := pos + 1
		if exponent < len(tokenizer.source) && (tokenizer.source[exponent] == '+' || tokenizer.source[exponent] == '-') {
			exponent++
		}
		if exponent < len(tokenizer.source) && util.IsNumber(tokenizer.source[exponent]) {
			pos = tokenizer.skipDigits(exponent)
			isFloat = true
		}
	}
	text := string(tokenizer.source[startPos:pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return tokenizer.skipUnrecognized(startPos, pos)
		}
		return tokenizer.makeToken(FloatTP, startPos, pos, f)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return tokenizer.skipUnrecognized(startPos, pos)
	}
	return tokenizer.makeToken(IntegerTP, startPos, pos, n)
}

func (tokenizer *Tokenizer) skipDigits(pos int) int {
	for pos < len(tokenizer.source) && util.IsNumber(tokenizer.source[pos]) {
		pos++
	}
	return pos
}

func (tokenizer *Tokenizer) tokenString() *Token {
	// Looking forward to find a closing quote that is not the first half of ''.
	startPos := tokenizer.currentPos
	content := make([]byte, 0)
	lines := 0
	for pos := startPos + 1; pos < len(tokenizer.source); pos++ {
		c := tokenizer.source[pos]
		if c != '\'' {
			if c == '\n' {
				lines++
			}
			content = append(content, c)
			continue
		}
		if pos+1 < len(tokenizer.source) && tokenizer.source[pos+1] == '\'' {
			content = append(content, '\'')
			pos++
			continue
		}
		token := tokenizer.makeToken(StringTP, startPos, pos+1, string(content))
		tokenizer.currentLine += lines
		return token
	}
	return nil
}

func (tokenizer *Tokenizer) toKeywordOrIdentifier() *Token {
	startPos := tokenizer.currentPos
	pos := startPos
	for pos < len(tokenizer.source) && util.IsLetterOrNumber(tokenizer.source[pos]) {
		pos++
	}
	name := util.Lower(string(tokenizer.source[startPos:pos]))
	if keyWordTP, isKeyWord := keyWordTokenTPMap[name]; isKeyWord {
		return tokenizer.makeToken(keyWordTP, startPos, pos, name)
	}
	return tokenizer.makeToken(IdentifierTP, startPos, pos, name)
}

// skipUnrecognized reports a literal that cannot be represented, such as an integer that
// overflows, as a whole.
func (tokenizer *Tokenizer) skipUnrecognized(start, end int) *Token {
	tokenizer.markUnrecognized(start, end-start)
	tokenizer.currentPos = end
	return nil
}

func (tokenizer *Tokenizer) markUnrecognized(pos, length int) {
	if tokenizer.pending != nil && tokenizer.pending.End == pos {
		tokenizer.pending.End += length
		return
	}
	tokenizer.commitError()
	tokenizer.pending = &Span{Start: pos, End: pos + length, Line: tokenizer.currentLine}
}

func (tokenizer *Tokenizer) commitError() {
	if tokenizer.pending == nil {
		return
	}
	tokenizer.errors = append(tokenizer.errors, &LexicalError{Span: *tokenizer.pending, Msg: unrecognizedCharactersMsg})
	tokenizer.pending = nil
}
