package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidbert/PL/ewvm"
)

func generate(t *testing.T, source string, comments bool) ewvm.Program {
	program, collector := parseSource(t, source)
	require.Empty(t, collector.Messages())
	require.NotNil(t, program)
	return NewCodeGenerator(comments).Generate(program)
}

func label(name string) ewvm.Label {
	return ewvm.Label{Name: name}
}

func TestCodeGenerator_Programs(t *testing.T) {
	testData := []struct {
		source   string
		expected ewvm.Program
	}{
		{
			source: "program t; var x: integer; begin x := 1 + 2 end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.Add),
				ewvm.Op(ewvm.StoreG, 0),
				ewvm.Op(ewvm.Stop),
			},
		},
		{
			source: "program t; begin write(true) end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushS, "FALSE"),
				ewvm.Op(ewvm.PushS, "TRUE"),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.PushSP),
				ewvm.Op(ewvm.Swap),
				ewvm.Op(ewvm.PAdd),
				ewvm.Op(ewvm.Load, -3),
				ewvm.Op(ewvm.WriteS),
				ewvm.Op(ewvm.Pop, 2),
				ewvm.Op(ewvm.Stop),
			},
		},
		{
			source: "program t; var r: real; b: boolean; begin r := 1 / 2; b := 1 <> 2; r := -r end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushF, 0.0),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.IToF),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.IToF),
				ewvm.Op(ewvm.FDiv),
				ewvm.Op(ewvm.StoreG, 0),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.Equal),
				ewvm.Op(ewvm.Not),
				ewvm.Op(ewvm.StoreG, 1),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.PushF, -1.0),
				ewvm.Op(ewvm.FMul),
				ewvm.Op(ewvm.StoreG, 0),
				ewvm.Op(ewvm.Stop),
			},
		},
		{
			source: "program t; var b: boolean; begin if b then write(1) else write(2) end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.Jz, label("SYS0")),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.WriteI),
				ewvm.Op(ewvm.Jump, label("SYS1")),
				label("SYS0"),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.WriteI),
				label("SYS1"),
				ewvm.Op(ewvm.Stop),
			},
		},
		{
			source: "program t; var i: integer; begin for i := 1 to 3 do write(i) end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 3),
				ewvm.Op(ewvm.StoreG, 1),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.StoreG, 0),
				label("SYS0"),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.PushG, 1),
				ewvm.Op(ewvm.InfEq),
				ewvm.Op(ewvm.Jz, label("SYS1")),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.WriteI),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.Add),
				ewvm.Op(ewvm.StoreG, 0),
				ewvm.Op(ewvm.Jump, label("SYS0")),
				label("SYS1"),
				ewvm.Op(ewvm.Stop),
			},
		},
		{
			source: "program t; var a: array [1..3] of integer; begin a[2] := 5; write(a[2]) end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushI, 3),
				ewvm.Op(ewvm.AllocN),
				ewvm.Op(ewvm.PushI, 0),
				label("SYS0"),
				ewvm.Op(ewvm.Dup, 1),
				ewvm.Op(ewvm.PushI, 3),
				ewvm.Op(ewvm.Inf),
				ewvm.Op(ewvm.Jz, label("SYS1")),
				ewvm.Op(ewvm.Dup, 2),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.StoreN),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.Add),
				ewvm.Op(ewvm.Jump, label("SYS0")),
				label("SYS1"),
				ewvm.Op(ewvm.Pop, 1),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.Sub),
				ewvm.Op(ewvm.PAdd),
				ewvm.Op(ewvm.PushI, 5),
				ewvm.Op(ewvm.Store, 0),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.Sub),
				ewvm.Op(ewvm.PAdd),
				ewvm.Op(ewvm.Load, 0),
				ewvm.Op(ewvm.WriteI),
				ewvm.Op(ewvm.Stop),
			},
		},
		{
			source: "program t; var r: integer; function sq(x: integer): integer; begin sq := x * x end; begin r := sq(3) end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 3),
				ewvm.Op(ewvm.PushA, label("FNsq")),
				ewvm.Op(ewvm.Call),
				ewvm.Op(ewvm.Pop, 1),
				ewvm.Op(ewvm.StoreG, 0),
				ewvm.Op(ewvm.Stop),
				label("FNsq"),
				ewvm.Op(ewvm.PushL, -1),
				ewvm.Op(ewvm.PushL, -1),
				ewvm.Op(ewvm.Mul),
				ewvm.Op(ewvm.StoreL, -2),
				ewvm.Op(ewvm.Return),
			},
		},
		{
			source: "program t; procedure p; var i: integer; begin for i := 2 downto 1 do write(i) end; begin p end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushA, label("FNp")),
				ewvm.Op(ewvm.Call),
				ewvm.Op(ewvm.Pop, 2),
				ewvm.Op(ewvm.Stop),
				label("FNp"),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.StoreL, 1),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.StoreL, 0),
				label("SYS0p"),
				ewvm.Op(ewvm.PushL, 0),
				ewvm.Op(ewvm.PushL, 1),
				ewvm.Op(ewvm.SupEq),
				ewvm.Op(ewvm.Jz, label("SYS1p")),
				ewvm.Op(ewvm.PushL, 0),
				ewvm.Op(ewvm.WriteI),
				ewvm.Op(ewvm.PushL, 0),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.Sub),
				ewvm.Op(ewvm.StoreL, 0),
				ewvm.Op(ewvm.Jump, label("SYS0p")),
				label("SYS1p"),
				ewvm.Op(ewvm.Return),
			},
		},
		{
			source: "program t; label 7; var n: integer; begin 7: read(n); if n = 0 then goto 7 end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushI, 0),
				label("USER7"),
				ewvm.Op(ewvm.Read),
				ewvm.Op(ewvm.AToI),
				ewvm.Op(ewvm.StoreG, 0),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.Equal),
				ewvm.Op(ewvm.Jz, label("SYS0")),
				ewvm.Op(ewvm.Jump, label("USER7")),
				label("SYS0"),
				ewvm.Op(ewvm.Stop),
			},
		},
		{
			source: "program t; var s: string; c: char; begin s := 'ab'; c := s[2]; writeln(length(s), c, 'x') end.",
			expected: ewvm.Program{
				ewvm.Op(ewvm.Start),
				ewvm.Op(ewvm.PushS, ""),
				ewvm.Op(ewvm.PushI, 0),
				ewvm.Op(ewvm.PushS, "ab"),
				ewvm.Op(ewvm.StoreG, 0),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.PushI, 2),
				ewvm.Op(ewvm.PushI, 1),
				ewvm.Op(ewvm.Sub),
				ewvm.Op(ewvm.CharAt),
				ewvm.Op(ewvm.StoreG, 1),
				ewvm.Op(ewvm.PushG, 0),
				ewvm.Op(ewvm.StrLen),
				ewvm.Op(ewvm.WriteI),
				ewvm.Op(ewvm.PushG, 1),
				ewvm.Op(ewvm.WriteChr),
				ewvm.Op(ewvm.PushI, int('x')),
				ewvm.Op(ewvm.WriteChr),
				ewvm.Op(ewvm.WriteLn),
				ewvm.Op(ewvm.Stop),
			},
		},
	}
	for _, testD := range testData {
		actual := generate(t, testD.source, false)
		assert.Equal(t, ewvm.Export(testD.expected), ewvm.Export(actual), testD.source)
	}
}

func TestCodeGenerator_MatrixOffsets(t *testing.T) {
	source := "program t; var m: array [1..3, 0..1] of integer; i: integer; begin i := m[3, 1] end."
	instructions := generate(t, source, false).Instructions()
	expected := []ewvm.Instruction{
		ewvm.Op(ewvm.PushG, 0),
		ewvm.Op(ewvm.PushI, 3),
		ewvm.Op(ewvm.PushI, 1),
		ewvm.Op(ewvm.Sub),
		ewvm.Op(ewvm.PushI, 2),
		ewvm.Op(ewvm.Mul),
		ewvm.Op(ewvm.PushI, 1),
		ewvm.Op(ewvm.Add),
		ewvm.Op(ewvm.PAdd),
		ewvm.Op(ewvm.Load, 0),
		ewvm.Op(ewvm.StoreG, 1),
		ewvm.Op(ewvm.Stop),
	}
	assert.Equal(t, expected, instructions[len(instructions)-len(expected):])
}

func TestCodeGenerator_Comments(t *testing.T) {
	source := "program t; var x: integer; procedure p; begin writeln end; begin p end."
	program := generate(t, source, true)
	var comments []string
	for _, e := range program {
		if c, ok := e.(ewvm.Comment); ok {
			comments = append(comments, c.Text)
		}
	}
	assert.Equal(t, []string{"var x: integer", "callable p"}, comments)
	assert.Equal(t, generate(t, source, false).Instructions(), program.Instructions())
}

func TestCodeGenerator_InternalError(t *testing.T) {
	program := &Program{Name: "t", Block: &Block{Body: &CompoundStatement{Statements: []Statement{&WithStatement{}}}}}
	assert.PanicsWithError(t, "internal compiler error: cannot generate code for statement *internal.WithStatement", func() {
		NewCodeGenerator(false).Generate(program)
	})
}

func TestCodeGenerator_Deterministic(t *testing.T) {
	source := "program t; var a: array [1..2] of real; i: integer; begin for i := 1 to 2 do a[i] := i / 3; writeln(a[1]) end."
	assert.True(t, ewvm.EqualPrograms(generate(t, source, true), generate(t, source, true)))
}
