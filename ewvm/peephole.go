package ewvm

// Optimize applies the peephole rules until a pass changes nothing. Every rule keeps or
// shrinks the instruction count, so the loop terminates.
//
// Rules, first match wins at each position:
//   - (PUSHI 0){N}          -> PUSHN N       for N >= 2
//   - STOREL K ; PUSHL K    -> DUP 1 ; STOREL K   (same for G)
//   - PUSHI 2 ; MUL         -> DUP 1 ; ADD
func Optimize(program Program) Program {
	current := program
	for {
		next := optimizationPass(current)
		if EqualPrograms(current, next) {
			return current
		}
		current = next
	}
}

func optimizationPass(program Program) Program {
	ret := make(Program, 0, len(program))
	for i := 0; i < len(program); {
		consumed := 0
		if current, ok := program[i].(Instruction); ok {
			var rewritten []Element
			rewritten, consumed = rewriteAt(program, i, current)
			ret = append(ret, rewritten...)
		}
		if consumed == 0 {
			ret = append(ret, program[i])
			consumed = 1
		}
		i += consumed
	}
	return ret
}

// rewriteAt returns the replacement for the window starting at i and how many elements it
// replaces, or 0 when no rule applies.
func rewriteAt(program Program, i int, current Instruction) ([]Element, int) {
	if current.Is(PushI, 0) {
		count := 0
		for i+count < len(program) {
			next, ok := program[i+count].(Instruction)
			if !ok || !next.Is(PushI, 0) {
				break
			}
			count++
		}
		if count == 1 {
			return nil, 0
		}
		return []Element{Op(PushN, count)}, count
	}

	next, ok := nextInstruction(program, i)
	if !ok {
		return nil, 0
	}
	switch {
	case current.Mnemonic == StoreL && next.Mnemonic == PushL && sameArgs(current, next),
		current.Mnemonic == StoreG && next.Mnemonic == PushG && sameArgs(current, next):
		return []Element{Op(Dup, 1), current}, 2
	case current.Is(PushI, 2) && next.Is(Mul):
		return []Element{Op(Dup, 1), Op(Add)}, 2
	}
	return nil, 0
}

func nextInstruction(program Program, i int) (Instruction, bool) {
	if i+1 >= len(program) {
		return Instruction{}, false
	}
	next, ok := program[i+1].(Instruction)
	return next, ok
}

func sameArgs(a, b Instruction) bool {
	return Instruction{Args: a.Args}.Equal(Instruction{Args: b.Args})
}
