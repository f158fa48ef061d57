package vm

// exec.go implements the instruction cycle: Run drives Step until the engine halts or the context
// is cancelled.

import (
	"context"
	"errors"
	"fmt"

	"github.com/tarikcelik1/cooperative-vm/internal/log"
)

// ErrHalted is returned by Step when called on an engine that has already halted.
var ErrHalted = errors.New("halted")

// Run executes Step in a loop until the engine halts, the context is cancelled, or Step or the
// Stepper returns an error.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("START", log.Group("STATE", e.String()))

	var err error

	for !e.Halted {
		select {
		case <-ctx.Done():
			e.log.Warn("CANCELLED")
			return ctx.Err()
		default:
		}

		if err = e.Step(); err != nil {
			break
		}

		if e.DebugLevel >= 1 {
			DumpMemory(e.Stderr, e.Mem)
		}

		if e.DebugLevel == 2 && e.Stepper != nil {
			if err = e.Stepper.Prompt(e); err != nil {
				break
			}
		}
	}

	if err != nil {
		e.log.Error("HALTED (error)", "ERR", err, log.Group("STATE", e.String()))
		return fmt.Errorf("run: %w", err)
	}

	e.log.Info("HALTED", log.Group("STATE", e.String()))

	if e.DebugLevel == 0 {
		DumpMemory(e.Stderr, e.Mem)
	}

	return nil
}

// Step runs a single instruction cycle to completion:
//
//  1. Resync PC from memory cell 0.
//  2. Decode the instruction at PC; a missing entry decodes as an implicit HLT.
//  3. SYSCALL is dispatched specially: it manages PC itself and never auto-advances.
//  4. Every other opcode executes; a protection fault aborts its remaining effects but the PC it
//     leaves behind (380) is final -- Step does not also auto-advance after a fault.
//  5. PC auto-advances by one unless the opcode is CALL, RET, JIF, USER, or an HLT that halted the
//     engine -- each of which either manages PC itself or, in the halting HLT's case, has no
//     meaningful successor instruction -- or the instruction faulted, or it wrote cell 0 directly
//     (CPYI2 excepted; it compensates for the advance itself).
//  6. INSTR_COUNT increments exactly once, whatever happened above.
func (e *Engine) Step() error {
	if e.Halted {
		return fmt.Errorf("step: %w", ErrHalted)
	}

	if err := e.syncPC(); err != nil {
		return fmt.Errorf("step: %w", err)
	}

	ins, ok := e.Instrs[e.PC]
	if !ok {
		ins = Instruction{Op: OpHLT}
	}

	e.log.Debug("fetched", "PC", e.PC, "INS", ins)

	if ins.Op == OpSYSCALL {
		if err := e.runSyscall(ins); err != nil {
			return fmt.Errorf("step: %w", err)
		}

		if err := e.bumpInstrCount(); err != nil {
			return fmt.Errorf("step: %w", err)
		}

		if e.DebugLevel >= 3 {
			DumpThreadTable(e.Stderr, e.Mem)
		}

		return nil
	}

	op, err := Decode(ins)
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}

	e.pcMutated = false

	faulted, err := op.Execute(e)
	if err != nil {
		e.log.Error("instruction error", "INS", ins, "ERR", err)
		return fmt.Errorf("step: %w", err)
	}

	managesPC := ins.Op == OpCALL || ins.Op == OpRET || ins.Op == OpJIF || ins.Op == OpUSER || (ins.Op == OpHLT && e.Halted)
	suppressed := e.pcMutated && ins.Op != OpCPYI2

	if !faulted && !managesPC && !suppressed {
		if err := e.setPC(e.PC + 1); err != nil {
			return fmt.Errorf("step: %w", err)
		}
	}

	return e.bumpInstrCount()
}
