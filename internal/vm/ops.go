package vm

// ops.go defines the instruction set: a closed, 15-member opcode enum and one handler type per
// opcode. Every handler funnels its memory touches through the engine's protection-checked
// accessors, so a fault recovers in exactly one place.

import (
	"errors"
	"fmt"

	"github.com/tarikcelik1/cooperative-vm/internal/log"
)

// Opcode is the closed set of instructions the engine understands. There is no dynamic dispatch by
// name at runtime; Decode maps the enum to a concrete handler each time Step executes an
// instruction.
type Opcode uint8

const (
	OpSET Opcode = iota
	OpCPY
	OpCPYI
	OpCPYI2
	OpADD
	OpADDI
	OpSUBI
	OpJIF
	OpPUSH
	OpPOP
	OpCALL
	OpRET
	OpHLT
	OpUSER
	OpSYSCALL
)

func (op Opcode) String() string {
	switch op {
	case OpSET:
		return "SET"
	case OpCPY:
		return "CPY"
	case OpCPYI:
		return "CPYI"
	case OpCPYI2:
		return "CPYI2"
	case OpADD:
		return "ADD"
	case OpADDI:
		return "ADDI"
	case OpSUBI:
		return "SUBI"
	case OpJIF:
		return "JIF"
	case OpPUSH:
		return "PUSH"
	case OpPOP:
		return "POP"
	case OpCALL:
		return "CALL"
	case OpRET:
		return "RET"
	case OpHLT:
		return "HLT"
	case OpUSER:
		return "USER"
	case OpSYSCALL:
		return "SYSCALL"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(op))
	}
}

// SyscallKind is the trap selector carried by a SYSCALL instruction.
type SyscallKind uint8

const (
	SyscallYield SyscallKind = iota
	SyscallPrn
	SyscallHalt
)

func (k SyscallKind) String() string {
	switch k {
	case SyscallYield:
		return "YIELD"
	case SyscallPrn:
		return "PRN"
	case SyscallHalt:
		return "HLT"
	default:
		return fmt.Sprintf("SyscallKind(%d)", uint8(k))
	}
}

// Instruction is one decoded line of the instruction store: an opcode plus its integer operands.
// For OpSYSCALL, Kind selects the trap and Operands holds the optional PRN argument address.
type Instruction struct {
	Op        Opcode
	Operands  []Word
	Kind      SyscallKind
}

func (ins Instruction) String() string {
	if ins.Op == OpSYSCALL {
		return fmt.Sprintf("SYSCALL %s %v", ins.Kind, ins.Operands)
	}

	return fmt.Sprintf("%s %v", ins.Op, ins.Operands)
}

// operation is a single, collapsed execution stage: given the engine, mutate its memory and
// register shadow. CALL/RET/JIF/USER manage the program counter themselves and an HLT that halts
// the engine leaves it in place; after any other opcode Step auto-advances PC by one, unless the
// opcode wrote cell 0 directly (see Engine.pcMutated).
//
// faulted reports whether the operation ran into a protection-unit denial. A faulted instruction
// has already had its trap applied (PC, SYSCALL_RESULT, mode); Step must not also auto-advance PC
// in that case, matching the specification's "PC = 380 exactly" behavior rather than the off-by-one
// that a naive auto-advance would introduce.
type operation interface {
	Execute(e *Engine) (faulted bool, err error)
}

// Decode maps a stored instruction to its executable handler.
func Decode(ins Instruction) (operation, error) {
	switch ins.Op {
	case OpSET:
		return opSet{value: ins.Operands[0], addr: ins.Operands[1]}, nil
	case OpCPY:
		return opCpy{src: ins.Operands[0], dst: ins.Operands[1]}, nil
	case OpCPYI:
		return opCpyI{srcPtr: ins.Operands[0], dst: ins.Operands[1]}, nil
	case OpCPYI2:
		return opCpyI2{a1: ins.Operands[0], a2: ins.Operands[1]}, nil
	case OpADD:
		return opAdd{addr: ins.Operands[0], imm: ins.Operands[1]}, nil
	case OpADDI:
		return opAddI{dst: ins.Operands[0], src: ins.Operands[1]}, nil
	case OpSUBI:
		return opSubI{src: ins.Operands[0], dst: ins.Operands[1]}, nil
	case OpJIF:
		return opJif{cond: ins.Operands[0], target: ins.Operands[1]}, nil
	case OpPUSH:
		return opPush{value: ins.Operands[0]}, nil
	case OpPOP:
		return opPop{dst: ins.Operands[0]}, nil
	case OpCALL:
		return opCall{target: ins.Operands[0]}, nil
	case OpRET:
		return opRet{}, nil
	case OpHLT:
		return opHlt{}, nil
	case OpUSER:
		return opUser{entryAddr: ins.Operands[0]}, nil
	case OpSYSCALL:
		return nil, fmt.Errorf("%w: SYSCALL is handled by Step, not Decode", ErrEngine)
	default:
		return nil, fmt.Errorf("%w: unknown opcode %s", ErrEngine, ins.Op)
	}
}

// protectedLoad and protectedStore are the protection-checked accessors every handler funnels
// through. On a denial they apply the fault trap and report faulted=true with a nil error, so the
// caller can abort the remaining effects of the instruction without treating the fault as a Go
// error.
func (e *Engine) protectedLoad(addr Word) (Cell, bool, error) {
	c, err := e.Mem.Load(e.Mode, addr)
	if err == nil {
		return c, false, nil
	}

	if errors.Is(err, ErrAccessControl) {
		e.fault("read", addr)
		return Cell{}, true, nil
	}

	return Cell{}, false, err
}

func (e *Engine) protectedStore(addr Word, c Cell) (bool, error) {
	err := e.Mem.Store(e.Mode, addr, c)
	if err != nil {
		if errors.Is(err, ErrAccessControl) {
			e.fault("write", addr)
			return true, nil
		}

		return false, err
	}

	e.reconcileRegister(addr, c)

	return false, nil
}

// reconcileRegister keeps the shadow in sync whenever a generic memory write happens to land on
// one of the four memory-mapped register cells. Any opcode can target cell 1 this way -- the
// call/return convention test depends on a plain SET into cell 1 being visible to the next CALL --
// so the shadow has to track all four cells symmetrically, not just PC.
func (e *Engine) reconcileRegister(addr Word, c Cell) {
	if c.IsText() {
		return
	}

	switch addr {
	case RegPC:
		e.PC = c.Int
		e.pcMutated = true
	case RegSP:
		e.SP = c.Int
	case RegSyscallResult:
		e.SyscallResult = SyscallResult(c.Int)
	case RegInstrCount:
		e.InstrCount = c.Int
	}
}

// protectedLoadInt is protectedLoad plus the integer coercion arithmetic opcodes need.
func (e *Engine) protectedLoadInt(addr Word) (Word, bool, error) {
	c, faulted, err := e.protectedLoad(addr)
	if faulted || err != nil {
		return 0, faulted, err
	}

	v, err := c.AsInt()
	return v, false, err
}

// fault performs the protection-unit's trap: a diagnostic on stderr, SYSCALL_RESULT = 1,
// PC = 380, and a switch to kernel mode.
func (e *Engine) fault(kind string, addr Word) {
	e.log.Error("access violation",
		log.String("kind", kind), log.String("addr", addr.String()), log.String("mode", e.Mode.String()))

	_ = e.setSyscallResult(ResultHalt)
	_ = e.setPC(FaultHandler)
	e.Mode = Kernel
}

// --- SET ---------------------------------------------------------------------------------------

type opSet struct{ value, addr Word }

func (o opSet) Execute(e *Engine) (bool, error) {
	return e.protectedStore(o.addr, IntCell(o.value))
}

// --- CPY -----------------------------------------------------------------------------------------

type opCpy struct{ src, dst Word }

func (o opCpy) Execute(e *Engine) (bool, error) {
	c, faulted, err := e.protectedLoad(o.src)
	if faulted || err != nil {
		return faulted, err
	}

	return e.protectedStore(o.dst, c)
}

// --- CPYI ----------------------------------------------------------------------------------------

type opCpyI struct{ srcPtr, dst Word }

func (o opCpyI) Execute(e *Engine) (bool, error) {
	ptr, faulted, err := e.protectedLoadInt(o.srcPtr)
	if faulted || err != nil {
		return faulted, err
	}

	val, faulted, err := e.protectedLoad(ptr)
	if faulted || err != nil {
		return faulted, err
	}

	return e.protectedStore(o.dst, val)
}

// --- CPYI2 ---------------------------------------------------------------------------------------

// opCpyI2 copies the cell pointed to by A1 into the cell pointed to by A2: MEM[MEM[A2]] =
// MEM[MEM[A1]]. If the destination pointer happens to be cell 0, the copy doubles as a jump: PC is
// set to the copied value, pre-decremented by one to cancel out Step's ordinary auto-advance.
type opCpyI2 struct{ a1, a2 Word }

func (o opCpyI2) Execute(e *Engine) (bool, error) {
	if _, faulted, err := e.protectedLoad(o.a1); faulted || err != nil {
		return faulted, err
	}

	destPtr, faulted, err := e.protectedLoadInt(o.a2)
	if faulted || err != nil {
		return faulted, err
	}

	if faulted, err := e.checkOnly(destPtr); faulted || err != nil {
		return faulted, err
	}

	srcPtr, faulted, err := e.protectedLoadInt(o.a1)
	if faulted || err != nil {
		return faulted, err
	}

	val, faulted, err := e.protectedLoad(srcPtr)
	if faulted || err != nil {
		return faulted, err
	}

	if faulted, err := e.protectedStore(destPtr, val); faulted || err != nil {
		return faulted, err
	}

	if destPtr == RegPC {
		v, err := val.AsInt()
		if err != nil {
			return false, err
		}

		if err := e.setPC(v - 1); err != nil {
			return false, err
		}
	}

	return false, nil
}

// --- ADD / ADDI / SUBI -----------------------------------------------------------------------------

type opAdd struct{ addr, imm Word }

func (o opAdd) Execute(e *Engine) (bool, error) {
	v, faulted, err := e.protectedLoadInt(o.addr)
	if faulted || err != nil {
		return faulted, err
	}

	return e.protectedStore(o.addr, IntCell(v+o.imm))
}

type opAddI struct{ dst, src Word }

func (o opAddI) Execute(e *Engine) (bool, error) {
	dst, faulted, err := e.protectedLoadInt(o.dst)
	if faulted || err != nil {
		return faulted, err
	}

	src, faulted, err := e.protectedLoadInt(o.src)
	if faulted || err != nil {
		return faulted, err
	}

	return e.protectedStore(o.dst, IntCell(dst+src))
}

type opSubI struct{ src, dst Word }

func (o opSubI) Execute(e *Engine) (bool, error) {
	src, faulted, err := e.protectedLoadInt(o.src)
	if faulted || err != nil {
		return faulted, err
	}

	dst, faulted, err := e.protectedLoadInt(o.dst)
	if faulted || err != nil {
		return faulted, err
	}

	return e.protectedStore(o.dst, IntCell(src-dst))
}

// --- JIF -------------------------------------------------------------------------------------------

// opJif manages PC itself, on both branches, so Step never auto-advances after it.
type opJif struct{ cond, target Word }

func (o opJif) Execute(e *Engine) (bool, error) {
	v, faulted, err := e.protectedLoadInt(o.cond)
	if faulted || err != nil {
		return faulted, err
	}

	if v <= 0 {
		return false, e.setPC(o.target)
	}

	return false, e.setPC(e.PC + 1)
}

// --- PUSH / POP --------------------------------------------------------------------------------------

// opPush checks its operand as if it were an address -- the reference behavior -- but pushes the
// operand's literal value, not the cell it points to.
type opPush struct{ value Word }

func (o opPush) Execute(e *Engine) (bool, error) {
	if faulted, err := e.checkOnly(o.value); faulted || err != nil {
		return faulted, err
	}

	sp := e.SP - 1

	if faulted, err := e.protectedStore(sp, IntCell(o.value)); faulted || err != nil {
		return faulted, err
	}

	return false, e.setSP(sp)
}

type opPop struct{ dst Word }

func (o opPop) Execute(e *Engine) (bool, error) {
	val, faulted, err := e.protectedLoad(e.SP)
	if faulted || err != nil {
		return faulted, err
	}

	if faulted, err := e.protectedStore(o.dst, val); faulted || err != nil {
		return faulted, err
	}

	return false, e.setSP(e.SP + 1)
}

// --- CALL / RET ----------------------------------------------------------------------------------------

// opCall and opRet bypass the protection unit entirely for their stack touches, matching the
// reference implementation: the kernel's own call stack is implicitly trusted.
type opCall struct{ target Word }

func (o opCall) Execute(e *Engine) (bool, error) {
	sp := e.SP - 1

	if err := e.Mem.StorePrivileged(sp, IntCell(e.PC+1)); err != nil {
		return false, err
	}

	if err := e.setSP(sp); err != nil {
		return false, err
	}

	return false, e.setPC(o.target)
}

type opRet struct{}

func (o opRet) Execute(e *Engine) (bool, error) {
	ret, err := e.Mem.LoadPrivileged(e.SP)
	if err != nil {
		return false, err
	}

	if err := e.setSP(e.SP + 1); err != nil {
		return false, err
	}

	v, err := ret.AsInt()
	if err != nil {
		return false, err
	}

	return false, e.setPC(v)
}

// --- HLT -----------------------------------------------------------------------------------------------

// opHlt halts the whole engine if the kernel (thread 0) is the one halting; a user thread's HLT
// merely reports exit to the kernel and, like any other non-control-flow opcode, falls through to
// Step's ordinary auto-advance.
type opHlt struct{}

func (o opHlt) Execute(e *Engine) (bool, error) {
	if e.CurrentTID == 0 {
		e.Halted = true
		fmt.Fprintln(e.Stderr, "OPERATING SYSTEM HAS HALTED THE CPU.")

		return false, nil
	}

	return false, e.setSyscallResult(ResultHalt)
}

// --- USER ----------------------------------------------------------------------------------------------

// opUser switches to user mode and jumps to the address stored at entryAddr. Like CALL/RET, this
// read bypasses the protection unit: the switch to user mode only takes effect after the jump.
type opUser struct{ entryAddr Word }

func (o opUser) Execute(e *Engine) (bool, error) {
	e.Mode = User

	target, err := e.Mem.LoadPrivileged(o.entryAddr)
	if err != nil {
		return false, err
	}

	v, err := target.AsInt()
	if err != nil {
		return false, err
	}

	return false, e.setPC(v)
}

// checkOnly applies the protection unit to addr without touching memory -- PUSH's operand check
// and part of CPYI2's pointer validation both need the rule applied without a load or store.
func (e *Engine) checkOnly(addr Word) (bool, error) {
	if err := e.Mem.boundsCheck(addr); err != nil {
		return false, err
	}

	if err := checkAccess(e.Mode, addr); err != nil {
		e.fault("check", addr)
		return true, nil
	}

	return false, nil
}
