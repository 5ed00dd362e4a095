package ewvm

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestOptimize_Rules(t *testing.T) {
	testData := []struct {
		name     string
		program  Program
		expected Program
	}{
		{
			name:     "five zeros collapse",
			program:  Program{Op(PushI, 0), Op(PushI, 0), Op(PushI, 0), Op(PushI, 0), Op(PushI, 0)},
			expected: Program{Op(PushN, 5)},
		},
		{
			name:     "single zero is kept",
			program:  Program{Op(PushI, 0), Op(PushI, 1)},
			expected: Program{Op(PushI, 0), Op(PushI, 1)},
		},
		{
			name:     "label breaks a zero run",
			program:  Program{Op(PushI, 0), Op(PushI, 0), Label{Name: "SYS0"}, Op(PushI, 0), Op(PushI, 0)},
			expected: Program{Op(PushN, 2), Label{Name: "SYS0"}, Op(PushN, 2)},
		},
		{
			name:     "local store reload",
			program:  Program{Op(StoreL, 3), Op(PushL, 3)},
			expected: Program{Op(Dup, 1), Op(StoreL, 3)},
		},
		{
			name:     "global store reload",
			program:  Program{Op(StoreG, 0), Op(PushG, 0), Op(WriteI)},
			expected: Program{Op(Dup, 1), Op(StoreG, 0), Op(WriteI)},
		},
		{
			name:     "different slots are left alone",
			program:  Program{Op(StoreG, 0), Op(PushG, 1)},
			expected: Program{Op(StoreG, 0), Op(PushG, 1)},
		},
		{
			name:     "mixed scopes are left alone",
			program:  Program{Op(StoreG, 0), Op(PushL, 0)},
			expected: Program{Op(StoreG, 0), Op(PushL, 0)},
		},
		{
			name:     "times two becomes self add",
			program:  Program{Op(PushG, 0), Op(PushI, 2), Op(Mul)},
			expected: Program{Op(PushG, 0), Op(Dup, 1), Op(Add)},
		},
		{
			name:     "comment breaks adjacency",
			program:  Program{Op(PushI, 2), Comment{Text: "x"}, Op(Mul)},
			expected: Program{Op(PushI, 2), Comment{Text: "x"}, Op(Mul)},
		},
	}
	for _, data := range testData {
		assert.True(t, EqualPrograms(data.expected, Optimize(data.program)), "%s: got\n%s", data.name,
			Export(Optimize(data.program)))
	}
}

func TestOptimize_OnePassForZeros(t *testing.T) {
	program := Program{Op(PushI, 0), Op(PushI, 0), Op(PushI, 0), Op(PushI, 0), Op(PushI, 0)}
	assert.True(t, EqualPrograms(Program{Op(PushN, 5)}, optimizationPass(program)))
}

func TestOptimize_Idempotent(t *testing.T) {
	program := Program{
		Op(Start), Op(PushI, 0), Op(PushI, 0), Op(PushI, 2), Op(Mul), Op(StoreG, 1), Op(PushG, 1),
		Op(WriteI), Label{Name: "SYS0"}, Op(StoreL, 0), Op(PushL, 0), Op(Stop),
	}
	once := Optimize(program)
	assert.True(t, EqualPrograms(once, Optimize(once)))
}

func TestOptimize_DoesNotMutateInput(t *testing.T) {
	program := Program{Op(PushI, 0), Op(PushI, 0)}
	Optimize(program)
	assert.True(t, EqualPrograms(Program{Op(PushI, 0), Op(PushI, 0)}, program))
}
