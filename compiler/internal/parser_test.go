package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidbert/PL/diagnostic"
)

func parseSource(t *testing.T, source string) (*Program, *diagnostic.Collector) {
	tokenizer := &Tokenizer{}
	tokens, errs := tokenizer.Tokenize([]byte(source))
	require.Empty(t, errs)
	collector := diagnostic.NewCollector(nil)
	parser := NewParser("test.pas", []byte(source), tokens, collector)
	program := parser.Parse()
	assert.Equal(t, collector.HasErrors(), parser.HasErrors())
	return program, collector
}

func split(diagnostics []diagnostic.Diagnostic) (errors, warnings []string) {
	for _, d := range diagnostics {
		if d.Warning {
			warnings = append(warnings, d.Message)
		} else {
			errors = append(errors, d.Message)
		}
	}
	return errors, warnings
}

func TestParser_Diagnostics(t *testing.T) {
	testData := []struct {
		source           string
		expectedErrors   []string
		expectedWarnings []string
	}{
		// Duplicate symbols.
		{
			source:         "program t; var x, x: integer; begin x := 1 end.",
			expectedErrors: []string{"Object with name 'x' already exists in this scope"},
		},
		// Labels.
		{
			source:         "program t; begin goto 99 end.",
			expectedErrors: []string{"Label '99' not found"},
		},
		{
			source:         "program t; label 99; begin goto 99 end.",
			expectedErrors: []string{"Label '99' used but never assigned to a statement"},
		},
		{
			source:           "program t; label 5; begin writeln end.",
			expectedWarnings: []string{"Label '5' declared but never used"},
		},
		{
			source: "program t; label 1; var i: integer; begin i := 0; 1: i := i + 1; if i < 3 then goto 1 end.",
		},
		{
			source:         "program t; label 1; begin 1: writeln; 1: writeln end.",
			expectedErrors: []string{"Label '1' is assigned to more than one statement"},
		},
		{
			source:         "program t; label 1; var x: integer; begin 1: x := 'a'; goto 1 end.",
			expectedErrors: []string{"Cannot assign a value of type char to a target of type integer"},
		},
		{
			source:         "program t; label 1; procedure p; begin goto 1 end; begin 1: p end.",
			expectedErrors: []string{"Label '1' is not declared in this block"},
		},
		// Ranges.
		{
			source:         "program t; type r = 10..1; begin writeln end.",
			expectedErrors: []string{"Invalid range 10..1: lower bound is greater than upper bound"},
		},
		{
			source:         "program t; type r = 1..'a'; begin writeln end.",
			expectedErrors: []string{"Range bounds have different types: integer and char"},
		},
		{
			source:         "program t; type r = 1.5..2.0; begin writeln end.",
			expectedErrors: []string{"Constant of type real is not ordinal"},
		},
		{
			source:         "program t; var a: array [real] of integer; begin writeln end.",
			expectedErrors: []string{"Invalid array index type real"},
		},
		// Types.
		{
			source:         "program t; var r: real; begin r := 1.5 div 2 end.",
			expectedErrors: []string{"Invalid operand types for 'div': real and integer"},
		},
		{
			source:         "program t; var i: integer; begin i := 7 mod 2.0 end.",
			expectedErrors: []string{"Invalid operand types for 'mod': integer and real"},
		},
		{
			source:         "program t; var r: real; i: integer; begin r := i; i := r end.",
			expectedErrors: []string{"Cannot assign a value of type real to a target of type integer"},
		},
		{
			source:         "program t; var i: integer; begin if i then writeln end.",
			expectedErrors: []string{"Condition must be boolean, got integer"},
		},
		{
			source:         "program t; var s: string; begin s[1] := 'a' end.",
			expectedErrors: []string{"Cannot assign to a character of a string"},
		},
		{
			source:         "program t; var b: boolean; begin b := not 1 end.",
			expectedErrors: []string{"Invalid operand type for 'not': integer"},
		},
		// Calls.
		{
			source: "program t; procedure p(a: integer; b: string); begin writeln end; begin p(1); p('x', 'y') end.",
			expectedErrors: []string{
				"Callable 'p' expects 2 arguments, got 1",
				"Argument 1 of 'p': expected integer, got char",
			},
		},
		{
			source:         "program t; var i: integer; procedure p; begin writeln end; begin i := p end.",
			expectedErrors: []string{"Procedure 'p' does not return a value"},
		},
		{
			source: "program t; procedure p(a: integer; b: integer); begin writeln end; begin p('x', 'y') end.",
			expectedErrors: []string{
				"Argument 1 of 'p': expected integer, got char",
				"Argument 2 of 'p': expected integer, got char",
			},
		},
		{
			source: "program t; var i: integer; begin writeln(i, 1, i); read(i, 2, 'a') end.",
			expectedErrors: []string{
				"Argument 2 of 'read' must be a variable of type integer, real, char or string",
				"Argument 3 of 'read' must be a variable of type integer, real, char or string",
			},
		},
		{
			source:         "program t; begin read(1) end.",
			expectedErrors: []string{"Argument 1 of 'read' must be a variable of type integer, real, char or string"},
		},
		// For loops.
		{
			source:         "program t; var r: real; begin for r := 1 to 2 do writeln end.",
			expectedErrors: []string{"Control variable 'r' must be of an ordinal type, got real"},
		},
		{
			source:         "program t; var i: integer; procedure p; begin for i := 1 to 2 do writeln end; begin p end.",
			expectedErrors: []string{"Control variable 'i' must be declared in the enclosing block"},
		},
		// Unresolved types are reported once.
		{
			source:         "program t; procedure p(a: foo); var b: integer; begin a := 1; b := a + 1; writeln(a); a[1] := 2 end; begin p(1) end.",
			expectedErrors: []string{"Type 'foo' not found"},
		},
		{
			source:         "program t; var i: integer; function f: foo; begin f := 1 end; begin i := f; writeln(f + 1) end.",
			expectedErrors: []string{"Type 'foo' not found"},
		},
		{
			source:         "program t; procedure p(i: foo); begin for i := 1 to 2 do writeln end; begin writeln end.",
			expectedErrors: []string{"Type 'foo' not found"},
		},
		// Unsupported features.
		{
			source:         "program t; type p = record a: integer end; begin writeln end.",
			expectedErrors: []string{"Record types are not supported"},
		},
		{
			source:         "program t; type s = set of char; begin writeln end.",
			expectedErrors: []string{"Set types are not supported"},
		},
		{
			source:         "program t; type p = ^integer; begin writeln end.",
			expectedErrors: []string{"Pointer types are not supported"},
		},
		{
			source:         "program t; begin with x do writeln end.",
			expectedErrors: []string{"With statements are not supported"},
		},
		{
			source:         "program t; procedure a; procedure b; begin writeln end; begin writeln end; begin a end.",
			expectedErrors: []string{"Nested callables are not supported"},
		},
		{
			source:         "program t; procedure a(var x: integer); begin writeln end; begin a(1) end.",
			expectedErrors: []string{"VAR parameters are not supported"},
		},
		{
			source:           "program t; var a: packed array [1..3] of integer; begin a[1] := 1 end.",
			expectedWarnings: []string{"'packed' has no effect. Ignoring it..."},
		},
		{
			source:           "program t(input, output); begin writeln end.",
			expectedWarnings: []string{"Program arguments are not supported. Ignoring them..."},
		},
		{
			source:         "program t(); begin writeln end.",
			expectedErrors: []string{"Invalid program arguments: at least one argument required"},
		},
		{
			source:         "program t; begin end.",
			expectedErrors: []string{"Empty compound statements are not supported"},
		},
		// Names.
		{
			source:         "program t; begin x := 1 end.",
			expectedErrors: []string{"Object 'x' not found"},
		},
		{
			source:           "program t; var x: integer; procedure p(x: real); begin writeln(x) end; begin p(x) end.",
			expectedWarnings: []string{"Shadowing object with name 'x'"},
		},
		// Syntax.
		{
			source:         "program t; var x: integer; begin x := ; writeln end.",
			expectedErrors: []string{"Unexpected token: ;"},
		},
		{
			source:         "program t; begin writeln",
			expectedErrors: []string{"Expecting input before end-of-file"},
		},
	}
	for _, testD := range testData {
		_, collector := parseSource(t, testD.source)
		errors, warnings := split(collector.All())
		assert.Equal(t, testD.expectedErrors, errors, testD.source)
		assert.Equal(t, testD.expectedWarnings, warnings, testD.source)
	}
}

func TestParser_DiagnosticPosition(t *testing.T) {
	source := "program t;\nvar x: integer;\nbegin\n  y := 1\nend."
	_, collector := parseSource(t, source)
	require.Len(t, collector.All(), 1)
	d := collector.All()[0]
	assert.Equal(t, "test.pas", d.Path)
	assert.Equal(t, 4, d.Line)
	assert.Equal(t, 3, d.Column())
	assert.Equal(t, 1, d.Length)
	assert.Equal(t, "  y := 1", d.SourceLine())
}

func TestParser_CaseInsensitive(t *testing.T) {
	program, collector := parseSource(t, "PROGRAM Test; VAR Counter: INTEGER; BEGIN counter := MAXINT; WriteLn(COUNTER) END.")
	assert.Empty(t, collector.All())
	require.NotNil(t, program)
	assert.Equal(t, "test", program.Name)
	require.Len(t, program.Block.Variables, 1)
	assert.Equal(t, "counter", program.Block.Variables[0].Name)
}

func TestParser_Declarations(t *testing.T) {
	source := `program t;
	const n = 3; greeting = 'hi'; negative = -n;
	type idx = 1..n; color = (red, green, blue); grid = array [idx, color] of real;
	var g: grid; c: color; s: string;
	function sq(x: integer): integer;
	begin
		sq := x * x
	end;
	begin
		c := green;
		g[2, c] := sq(negative);
		s := greeting
	end.`
	program, collector := parseSource(t, source)
	assert.Empty(t, collector.All())
	require.NotNil(t, program)
	block := program.Block

	require.Len(t, block.Constants, 3)
	assert.Equal(t, IntegerConstant(-3), block.Constants[2].Value)

	grid, ok := block.Variables[0].Type.(*ArrayType)
	require.True(t, ok)
	assert.Equal(t, RealType, grid.Element)
	require.Len(t, grid.Dimensions, 2)
	assert.Equal(t, 1, grid.Dimensions[0].Low)
	assert.Equal(t, 3, grid.Dimensions[0].High)
	assert.Equal(t, 3, grid.Dimensions[1].Cardinality())
	assert.Equal(t, 9, grid.Size())

	require.Len(t, block.Callables, 1)
	sq := block.Callables[0]
	require.NotNil(t, sq.Return)
	assert.Equal(t, IntegerType, sq.Return.Type)
	assign := sq.Body.Body.Statements[0].(*AssignStatement)
	assert.Same(t, sq.Return, assign.Target.Variable)

	statements := block.Body.Statements
	require.Len(t, statements, 3)
	store := statements[1].(*AssignStatement)
	assert.Len(t, store.Target.Indices, 2)
	call := store.Value.Node.(*CallNode)
	assert.Same(t, sq, call.Callable)
	assert.Equal(t, IntegerType, store.Value.Type)

	greeting := statements[2].(*AssignStatement)
	assert.Equal(t, StringType, greeting.Value.Type)
}

func TestParser_Recovery(t *testing.T) {
	source := `program t;
	var i: integer;
	begin
		i := 'a';
		j := 2;
		while i do i := i + 1;
		i := 1
	end.`
	program, collector := parseSource(t, source)
	errors, _ := split(collector.All())
	assert.Equal(t, []string{
		"Cannot assign a value of type char to a target of type integer",
		"Object 'j' not found",
		"Condition must be boolean, got integer",
	}, errors)
	require.NotNil(t, program)
	assert.Len(t, program.Block.Body.Statements, 1)
}

func TestParser_CallableRecovery(t *testing.T) {
	testData := []struct {
		source            string
		expectedErrors    []string
		expectedCallables int
	}{
		{
			source: `program t;
			var x: integer;
			procedure p(;
			begin writeln end;
			function f(a: integer): integer
			begin f := a end;
			begin x := 'a'; x := true end.`,
			expectedErrors: []string{
				"Unexpected token: ;",
				"Unexpected token: begin",
				"Cannot assign a value of type char to a target of type integer",
				"Cannot assign a value of type boolean to a target of type integer",
			},
			expectedCallables: 2,
		},
		{
			source: `program t;
			var x: integer;
			procedure q; begin writeln end
			begin x := 'a' end.`,
			expectedErrors: []string{
				"Unexpected token: begin",
				"Cannot assign a value of type char to a target of type integer",
			},
			expectedCallables: 1,
		},
		{
			source: `program t;
			var x: integer;
			procedure r; x := 1; end;
			procedure s; begin writeln end;
			begin x := 'a' end.`,
			expectedErrors: []string{
				"Unexpected token: x",
				"Cannot assign a value of type char to a target of type integer",
			},
			expectedCallables: 1,
		},
	}
	for _, testD := range testData {
		program, collector := parseSource(t, testD.source)
		errors, _ := split(collector.All())
		assert.Equal(t, testD.expectedErrors, errors, testD.source)
		require.NotNil(t, program, testD.source)
		assert.Len(t, program.Block.Callables, testD.expectedCallables, testD.source)
	}
}

func TestParser_InvalidHeadingSilencesCalls(t *testing.T) {
	program, collector := parseSource(t, "program t; procedure p(a: integer;); begin writeln end; begin p; p(1, 2) end.")
	errors, _ := split(collector.All())
	assert.Equal(t, []string{"Unexpected token: )"}, errors)
	require.NotNil(t, program)
	require.Len(t, program.Block.Callables, 1)
	assert.True(t, program.Block.Callables[0].Invalid)
}
