package vm

// vm.go defines the engine and assembles it from its smaller parts.

import (
	"fmt"
	"io"
	"os"

	"github.com/tarikcelik1/cooperative-vm/internal/log"
)

// InstructionStore is the machine's instruction memory, separate from data memory in the
// Harvard-style split the design mimics. A missing entry is not an error: Step treats it as an
// implicit HLT, matching the reference implementation.
type InstructionStore map[Word]Instruction

// Engine is the virtual machine: data memory, instruction store, the register shadow, and the
// privilege mode, wired together into a single cooperative Step loop.
type Engine struct {
	// Register shadow: working copies of memory cells 0..3, reconciled with memory at the points
	// Step calls out.
	PC            Word
	SP            Word
	SyscallResult SyscallResult
	InstrCount    Word

	// Mode is the single privilege bit enforced by the protection unit.
	Mode Mode

	// CurrentTID is engine-level bookkeeping: which thread-table slot the kernel most recently
	// identified as running. No opcode in the instruction set addresses it; it is exposed here as
	// a plain field rather than invented as a new instruction. See DESIGN.md for the rationale.
	CurrentTID Word

	Mem    *Memory
	Instrs InstructionStore

	// Halted is set by HLT and by a decode miss; Step refuses to run a halted engine.
	Halted bool

	// pcMutated is set whenever the current instruction wrote PC directly -- a SET or POP (or any
	// other handler) whose destination happened to be cell 0. Step reads it once, after dispatch,
	// to decide whether the ordinary auto-advance should run: an instruction that already
	// redirected control flow this way should not also be bumped by one, the same as CALL, RET,
	// and JIF. CPYI2 is the one documented exception -- it always gets the auto-advance and
	// compensates for it by writing PC one lower than the copied value.
	pcMutated bool

	// DebugLevel selects how much Step narrates itself: 0 is silent until the final dump, 1 dumps
	// every cycle, 2 additionally waits on Stepper after each cycle, 3 dumps the thread table
	// after every syscall. See debug.go.
	DebugLevel int
	Stepper    Stepper

	// Stdout carries PRN output exclusively. Stderr carries everything else the engine narrates:
	// per-cycle dumps, the thread table, and diagnostics such as the halt message.
	Stdout io.Writer
	Stderr io.Writer
	log    *log.Logger
}

// New builds an engine with empty memory and instruction store, initial PC and SP both zero,
// kernel mode, and a silent debug level. Callers load a program with Loader before calling Run.
func New(opts ...OptionFn) *Engine {
	e := &Engine{
		Mem:    NewMemory(),
		Instrs: make(InstructionStore),
		Mode:   Kernel,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		log:    log.DefaultLogger(),
	}

	for _, fn := range opts {
		fn(e)
	}

	return e
}

func (e *Engine) String() string {
	return fmt.Sprintf("PC: %s SP: %s SYSCALL_RESULT: %d INSTR_COUNT: %s MODE: %s TID: %s",
		Word(e.PC), Word(e.SP), e.SyscallResult, Word(e.InstrCount), e.Mode, e.CurrentTID)
}

// syncPC refreshes the PC shadow from cell 0. Step calls this once at the top of every cycle, so
// a handler that wrote memory[0] directly on the previous cycle -- SET, the zero-destination case
// of CPYI2, a trap redirect -- is observed here. PC is the only register resynced this way because
// it is the only one the fetch stage reads back out of memory; SP, SYSCALL_RESULT, and INSTR_COUNT
// are reconciled the other direction, at the moment anything writes through cells 1..3 -- see
// reconcileRegister in ops.go.
func (e *Engine) syncPC() error {
	pc, err := e.Mem.LoadPrivileged(RegPC)
	if err != nil {
		return err
	}

	e.PC = pc.Int

	return nil
}

// setPC updates the PC shadow and writes it through to memory cell 0.
func (e *Engine) setPC(v Word) error {
	e.PC = v
	e.pcMutated = true

	return e.Mem.StorePrivileged(RegPC, IntCell(v))
}

// setSP updates the SP shadow and writes it through to memory cell 1.
func (e *Engine) setSP(v Word) error {
	e.SP = v
	return e.Mem.StorePrivileged(RegSP, IntCell(v))
}

// setSyscallResult updates the SYSCALL_RESULT shadow and writes it through to memory cell 2.
func (e *Engine) setSyscallResult(v SyscallResult) error {
	e.SyscallResult = v
	return e.Mem.StorePrivileged(RegSyscallResult, IntCell(Word(v)))
}

// bumpInstrCount increments INSTR_COUNT and writes it through to memory cell 3. Step calls this
// exactly once per cycle, including cycles that fault or trap.
func (e *Engine) bumpInstrCount() error {
	e.InstrCount++
	return e.Mem.StorePrivileged(RegInstrCount, IntCell(e.InstrCount))
}

// OptionFn configures an Engine at construction time.
type OptionFn func(*Engine)

// WithDebugLevel sets how much the engine narrates its own execution. See Engine.DebugLevel.
func WithDebugLevel(level int) OptionFn {
	return func(e *Engine) { e.DebugLevel = level }
}

// WithStdout overrides where PRN output is written. Tests use this to capture output without
// touching the real standard output.
func WithStdout(w io.Writer) OptionFn {
	return func(e *Engine) { e.Stdout = w }
}

// WithStderr overrides where per-cycle dumps, the thread table, and diagnostics such as the halt
// message are written. Tests use this to capture diagnostics separately from PRN output.
func WithStderr(w io.Writer) OptionFn {
	return func(e *Engine) { e.Stderr = w }
}

// WithStepper supplies the interactive stepper used at debug level 2. Without one, debug level 2
// behaves like debug level 1: narrated but never paused.
func WithStepper(s Stepper) OptionFn {
	return func(e *Engine) { e.Stepper = s }
}

// WithLogger overrides the engine's logger; the default is log.DefaultLogger().
func WithLogger(l *log.Logger) OptionFn {
	return func(e *Engine) { e.log = l }
}
