package ewvm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMachine is wrapped by every runtime failure of the reference machine.
var ErrMachine = errors.New("ewvm: machine error")

type valueKind int

const (
	intValue valueKind = iota
	floatValue
	stringValue
	addressValue
	codeValue
)

// address points into the operand stack or into one heap block.
type address struct {
	heap   bool
	block  int
	offset int
}

type value struct {
	kind valueKind
	i    int
	f    float64
	s    string
	a    address
}

func (v value) String() string {
	switch v.kind {
	case intValue:
		return strconv.Itoa(v.i)
	case floatValue:
		return formatFloat(v.f)
	case stringValue:
		return strconv.Quote(v.s)
	case addressValue:
		if v.a.heap {
			return fmt.Sprintf("#heap%d[%d]", v.a.block, v.a.offset)
		}
		return fmt.Sprintf("#stack[%d]", v.a.offset)
	default:
		return fmt.Sprintf("#code[%d]", v.i)
	}
}

type callFrame struct {
	pc int
	fp int
}

// Machine executes a Program. Globals live at the bottom of the operand stack, so gp is
// always 0. CALL saves pc and fp on a separate call stack and sets fp to sp; RETURN
// restores both and leaves the operand stack alone, the caller pops arguments.
type Machine struct {
	code   []Instruction
	labels map[string]int
	stack  []value
	calls  []callFrame
	heap   [][]value
	pc     int
	fp     int
	in     *bufio.Reader
	out    io.Writer

	// StepLimit aborts execution after that many instructions. Zero means no limit.
	StepLimit int
}

func NewMachine(program Program, in io.Reader, out io.Writer) (*Machine, error) {
	m := &Machine{labels: map[string]int{}, in: bufio.NewReader(in), out: out}
	for _, e := range program {
		switch e := e.(type) {
		case Label:
			if _, ok := m.labels[e.Name]; ok {
				return nil, fmt.Errorf("%w: label %s defined twice", ErrMachine, e.Name)
			}
			m.labels[e.Name] = len(m.code)
		case Instruction:
			m.code = append(m.code, e)
		}
	}
	for _, instruction := range m.code {
		for _, arg := range instruction.Args {
			if l, ok := arg.(Label); ok {
				if _, defined := m.labels[l.Name]; !defined {
					return nil, fmt.Errorf("%w: undefined label %s", ErrMachine, l.Name)
				}
			}
		}
	}
	return m, nil
}

// StackDepth is the number of values on the operand stack.
func (m *Machine) StackDepth() int {
	return len(m.stack)
}

// Run executes from the first instruction until STOP.
func (m *Machine) Run(ctx context.Context) error {
	for steps := 1; ; steps++ {
		if m.pc >= len(m.code) {
			return m.fail("ran past the end of the program without STOP")
		}
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if m.StepLimit > 0 && steps > m.StepLimit {
			return m.fail("step limit of %d exceeded", m.StepLimit)
		}
		instruction := m.code[m.pc]
		m.pc++
		stop, err := m.execute(instruction)
		if err != nil {
			return fmt.Errorf("%w: pc %d (%s): %v", ErrMachine, m.pc-1, strings.TrimSpace(instruction.String()), err)
		}
		if stop {
			return nil
		}
	}
}

func (m *Machine) fail(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMachine, fmt.Sprintf(format, args...))
}

func (m *Machine) execute(instruction Instruction) (bool, error) {
	switch instruction.Mnemonic {
	case Start:
		m.fp = len(m.stack)
	case Stop:
		return true, nil
	case PushI:
		n, err := intArgument(instruction)
		if err != nil {
			return false, err
		}
		m.push(value{kind: intValue, i: n})
	case PushF:
		if len(instruction.Args) != 1 {
			return false, errors.New("expecting one argument")
		}
		switch f := instruction.Args[0].(type) {
		case float64:
			m.push(value{kind: floatValue, f: f})
		case int:
			m.push(value{kind: floatValue, f: float64(f)})
		default:
			return false, errors.New("expecting a float argument")
		}
	case PushS:
		if len(instruction.Args) != 1 {
			return false, errors.New("expecting one argument")
		}
		s, ok := instruction.Args[0].(string)
		if !ok {
			return false, errors.New("expecting a string argument")
		}
		m.push(value{kind: stringValue, s: s})
	case PushN:
		n, err := intArgument(instruction)
		if err != nil {
			return false, err
		}
		for k := 0; k < n; k++ {
			m.push(value{kind: intValue})
		}
	case PushG, PushL:
		n, err := intArgument(instruction)
		if err != nil {
			return false, err
		}
		slot, err := m.frameSlot(instruction.Mnemonic == PushG, n)
		if err != nil {
			return false, err
		}
		m.push(*slot)
	case StoreG, StoreL:
		n, err := intArgument(instruction)
		if err != nil {
			return false, err
		}
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		slot, err := m.frameSlot(instruction.Mnemonic == StoreG, n)
		if err != nil {
			return false, err
		}
		*slot = v
	case PushSP:
		m.push(value{kind: addressValue, a: address{offset: len(m.stack)}})
	case PushFP:
		m.push(value{kind: addressValue, a: address{offset: m.fp}})
	case PushA:
		if len(instruction.Args) != 1 {
			return false, errors.New("expecting one argument")
		}
		l, ok := instruction.Args[0].(Label)
		if !ok {
			return false, errors.New("expecting a label argument")
		}
		m.push(value{kind: codeValue, i: m.labels[l.Name]})
	case Load, Store:
		return false, m.loadOrStore(instruction)
	case LoadN:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		a, err := m.popAddress()
		if err != nil {
			return false, err
		}
		slot, err := m.slot(a, n)
		if err != nil {
			return false, err
		}
		m.push(*slot)
	case StoreN:
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		a, err := m.popAddress()
		if err != nil {
			return false, err
		}
		slot, err := m.slot(a, n)
		if err != nil {
			return false, err
		}
		*slot = v
	case Dup:
		n, err := intArgument(instruction)
		if err != nil {
			return false, err
		}
		if n < 0 || n > len(m.stack) {
			return false, errors.New("stack underflow")
		}
		m.stack = append(m.stack, m.stack[len(m.stack)-n:]...)
	case Swap:
		if len(m.stack) < 2 {
			return false, errors.New("stack underflow")
		}
		top := len(m.stack) - 1
		m.stack[top], m.stack[top-1] = m.stack[top-1], m.stack[top]
	case Pop:
		n, err := intArgument(instruction)
		if err != nil {
			return false, err
		}
		if n < 0 || n > len(m.stack) {
			return false, errors.New("stack underflow")
		}
		m.stack = m.stack[:len(m.stack)-n]
	case AllocN:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		if n < 0 {
			return false, fmt.Errorf("negative allocation size %d", n)
		}
		m.heap = append(m.heap, make([]value, n))
		m.push(value{kind: addressValue, a: address{heap: true, block: len(m.heap) - 1}})
	case PAdd:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		a, err := m.popAddress()
		if err != nil {
			return false, err
		}
		a.offset += n
		m.push(value{kind: addressValue, a: a})
	case Add, Sub, Mul, Div, Mod, Inf, InfEq, Sup, SupEq, And, Or:
		return false, m.integerOperation(instruction.Mnemonic)
	case FAdd, FSub, FMul, FDiv, FInf, FInfEq, FSup, FSupEq:
		return false, m.floatOperation(instruction.Mnemonic)
	case Equal:
		b, err := m.pop()
		if err != nil {
			return false, err
		}
		a, err := m.pop()
		if err != nil {
			return false, err
		}
		m.pushBool(a == b)
	case Not:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		m.pushBool(n == 0)
	case IToF:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		m.push(value{kind: floatValue, f: float64(n)})
	case AToI:
		s, err := m.popString()
		if err != nil {
			return false, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to an integer", s)
		}
		m.push(value{kind: intValue, i: n})
	case AToF:
		s, err := m.popString()
		if err != nil {
			return false, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return false, fmt.Errorf("cannot convert %q to a real", s)
		}
		m.push(value{kind: floatValue, f: f})
	case CharAt:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		s, err := m.popString()
		if err != nil {
			return false, err
		}
		if n < 0 || n >= len(s) {
			return false, fmt.Errorf("character index %d out of range for %q", n, s)
		}
		m.push(value{kind: intValue, i: int(s[n])})
	case StrLen:
		s, err := m.popString()
		if err != nil {
			return false, err
		}
		m.push(value{kind: intValue, i: len(s)})
	case WriteI:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		return false, m.write(strconv.Itoa(n))
	case WriteF:
		f, err := m.popFloat()
		if err != nil {
			return false, err
		}
		return false, m.write(strconv.FormatFloat(f, 'f', -1, 64))
	case WriteS:
		s, err := m.popString()
		if err != nil {
			return false, err
		}
		return false, m.write(s)
	case WriteChr:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		return false, m.write(string(rune(n)))
	case WriteLn:
		return false, m.write("\n")
	case Read:
		line, err := m.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return false, fmt.Errorf("reading input: %w", err)
		}
		m.push(value{kind: stringValue, s: strings.TrimRight(line, "\r\n")})
	case Jump:
		return false, m.jump(instruction)
	case Jz:
		n, err := m.popInt()
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, m.jump(instruction)
		}
	case Call:
		target, err := m.pop()
		if err != nil {
			return false, err
		}
		if target.kind != codeValue {
			return false, fmt.Errorf("expecting a code address, got %s", target)
		}
		m.calls = append(m.calls, callFrame{pc: m.pc, fp: m.fp})
		m.fp, m.pc = len(m.stack), target.i
	case Return:
		if len(m.calls) == 0 {
			return false, errors.New("RETURN outside of a call")
		}
		frame := m.calls[len(m.calls)-1]
		m.calls = m.calls[:len(m.calls)-1]
		m.pc, m.fp = frame.pc, frame.fp
	default:
		return false, fmt.Errorf("unknown instruction %s", instruction.Mnemonic)
	}
	return false, nil
}

func intArgument(instruction Instruction) (int, error) {
	n, ok := instruction.IntArg(0)
	if !ok || len(instruction.Args) != 1 {
		return 0, errors.New("expecting one integer argument")
	}
	return n, nil
}

func (m *Machine) push(v value) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pushBool(b bool) {
	if b {
		m.push(value{kind: intValue, i: 1})
		return
	}
	m.push(value{kind: intValue})
}

func (m *Machine) pop() (value, error) {
	if len(m.stack) == 0 {
		return value{}, errors.New("stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) popInt() (int, error) {
	v, err := m.pop()
	if err != nil {
		return 0, err
	}
	if v.kind != intValue {
		return 0, fmt.Errorf("expecting an integer, got %s", v)
	}
	return v.i, nil
}

func (m *Machine) popFloat() (float64, error) {
	v, err := m.pop()
	if err != nil {
		return 0, err
	}
	if v.kind != floatValue {
		return 0, fmt.Errorf("expecting a real, got %s", v)
	}
	return v.f, nil
}

func (m *Machine) popString() (string, error) {
	v, err := m.pop()
	if err != nil {
		return "", err
	}
	if v.kind != stringValue {
		return "", fmt.Errorf("expecting a string, got %s", v)
	}
	return v.s, nil
}

func (m *Machine) popAddress() (address, error) {
	v, err := m.pop()
	if err != nil {
		return address{}, err
	}
	if v.kind != addressValue {
		return address{}, fmt.Errorf("expecting an address, got %s", v)
	}
	return v.a, nil
}

func (m *Machine) frameSlot(global bool, n int) (*value, error) {
	base := m.fp
	if global {
		base = 0
	}
	return m.slot(address{offset: base}, n)
}

func (m *Machine) slot(a address, n int) (*value, error) {
	memory := m.stack
	if a.heap {
		if a.block < 0 || a.block >= len(m.heap) {
			return nil, fmt.Errorf("bad heap block %d", a.block)
		}
		memory = m.heap[a.block]
	}
	k := a.offset + n
	if k < 0 || k >= len(memory) {
		return nil, fmt.Errorf("address %s%+d out of bounds", value{kind: addressValue, a: a}, n)
	}
	return &memory[k], nil
}

func (m *Machine) loadOrStore(instruction Instruction) error {
	n, err := intArgument(instruction)
	if err != nil {
		return err
	}
	if instruction.Mnemonic == Load {
		a, err := m.popAddress()
		if err != nil {
			return err
		}
		slot, err := m.slot(a, n)
		if err != nil {
			return err
		}
		m.push(*slot)
		return nil
	}
	v, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.popAddress()
	if err != nil {
		return err
	}
	slot, err := m.slot(a, n)
	if err != nil {
		return err
	}
	*slot = v
	return nil
}

func (m *Machine) integerOperation(mnemonic string) error {
	b, err := m.popInt()
	if err != nil {
		return err
	}
	a, err := m.popInt()
	if err != nil {
		return err
	}
	switch mnemonic {
	case Add:
		m.push(value{kind: intValue, i: a + b})
	case Sub:
		m.push(value{kind: intValue, i: a - b})
	case Mul:
		m.push(value{kind: intValue, i: a * b})
	case Div, Mod:
		if b == 0 {
			return errors.New("division by zero")
		}
		if mnemonic == Div {
			m.push(value{kind: intValue, i: a / b})
		} else {
			m.push(value{kind: intValue, i: a % b})
		}
	case Inf:
		m.pushBool(a < b)
	case InfEq:
		m.pushBool(a <= b)
	case Sup:
		m.pushBool(a > b)
	case SupEq:
		m.pushBool(a >= b)
	case And:
		m.pushBool(a != 0 && b != 0)
	case Or:
		m.pushBool(a != 0 || b != 0)
	}
	return nil
}

func (m *Machine) floatOperation(mnemonic string) error {
	b, err := m.popFloat()
	if err != nil {
		return err
	}
	a, err := m.popFloat()
	if err != nil {
		return err
	}
	switch mnemonic {
	case FAdd:
		m.push(value{kind: floatValue, f: a + b})
	case FSub:
		m.push(value{kind: floatValue, f: a - b})
	case FMul:
		m.push(value{kind: floatValue, f: a * b})
	case FDiv:
		if b == 0 {
			return errors.New("division by zero")
		}
		m.push(value{kind: floatValue, f: a / b})
	case FInf:
		m.pushBool(a < b)
	case FInfEq:
		m.pushBool(a <= b)
	case FSup:
		m.pushBool(a > b)
	case FSupEq:
		m.pushBool(a >= b)
	}
	return nil
}

func (m *Machine) jump(instruction Instruction) error {
	if len(instruction.Args) != 1 {
		return errors.New("expecting one argument")
	}
	l, ok := instruction.Args[0].(Label)
	if !ok {
		return errors.New("expecting a label argument")
	}
	m.pc = m.labels[l.Name]
	return nil
}

func (m *Machine) write(s string) error {
	_, err := io.WriteString(m.out, s)
	return err
}
