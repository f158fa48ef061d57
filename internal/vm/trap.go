package vm

// trap.go handles the SYSCALL instruction. Unlike every other opcode it is dispatched directly by
// Step rather than through Decode/operation.Execute: it never auto-advances PC, and at debug level
// 3 it triggers a thread-table dump that an ordinary instruction never does.

import "fmt"

// runSyscall executes one SYSCALL trap. It always switches to kernel mode; the three kinds differ
// only in the result code they leave, the return PC they save and, for PRN, the value they print.
func (e *Engine) runSyscall(ins Instruction) error {
	e.Mode = Kernel

	switch ins.Kind {
	case SyscallPrn:
		if len(ins.Operands) == 0 {
			return fmt.Errorf("%w: SYSCALL PRN requires an address operand", ErrEngine)
		}

		cell, err := e.Mem.LoadPrivileged(ins.Operands[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(e.Stdout, cell.String())

		if err := e.setSyscallResult(ResultPrintDone); err != nil {
			return err
		}

		if err := e.Mem.StorePrivileged(ReturnPCCell, IntCell(e.PC+1)); err != nil {
			return err
		}

	case SyscallYield:
		if err := e.setSyscallResult(ResultYield); err != nil {
			return err
		}

		if err := e.Mem.StorePrivileged(ReturnPCCell, IntCell(e.PC+1)); err != nil {
			return err
		}

	case SyscallHalt:
		if err := e.setSyscallResult(ResultHalt); err != nil {
			return err
		}

		// The return PC is the trap's own address, not the next instruction: a kernel that
		// re-dispatches to it will re-execute the same SYSCALL HLT.
		if err := e.Mem.StorePrivileged(ReturnPCCell, IntCell(e.PC)); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unknown syscall kind %s", ErrEngine, ins.Kind)
	}

	return e.setPC(FaultHandler)
}
