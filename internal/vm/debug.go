package vm

// debug.go implements the four debug levels Step can narrate itself with, plus the dumps they
// share with the final-state report.

import (
	"fmt"
	"io"
)

// Stepper pauses execution between cycles at debug level 2. Prompt is called once per cycle,
// after that cycle's dump, and blocks until the caller should proceed. A nil Stepper makes debug
// level 2 behave exactly like debug level 1.
type Stepper interface {
	Prompt(e *Engine) error
}

// DumpMemory writes every non-zero cell, one per line as "address: value", to w. It is the final
// report at debug level 0 and the per-cycle report at levels 1 and above.
func DumpMemory(w io.Writer, mem *Memory) {
	for _, addr := range mem.NonZero() {
		fmt.Fprintf(w, "%d: %s\n", addr, mem.At(Word(addr)).String())
	}
}

var threadTableHeaders = []string{
	"ID", "STATE", "PC", "SP", "STARTING TIME", "PRN SYSCALL", "CPU/INST",
}

const threadTableColWidth = 15

// DumpThreadTable prints the fixed ten-slot thread-descriptor table, one row per slot and only the
// first seven named fields of each ten-word slot. It runs after every SYSCALL at debug level 3.
func DumpThreadTable(w io.Writer, mem *Memory) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Thread Table:")

	for i, h := range threadTableHeaders {
		if i > 0 {
			fmt.Fprint(w, " | ")
		}

		fmt.Fprintf(w, "%*s", threadTableColWidth, h)
	}

	fmt.Fprintln(w)

	sep := ""
	for i := range threadTableHeaders {
		if i > 0 {
			sep += "-+-"
		}

		for j := 0; j < threadTableColWidth; j++ {
			sep += "-"
		}
	}

	fmt.Fprintln(w, sep)

	for slot := ThreadTableBase; slot < ThreadTableBase+ThreadTableSlots*ThreadSlotSize; slot += ThreadSlotSize {
		for i := 0; i < len(threadTableHeaders); i++ {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}

			fmt.Fprintf(w, "%*d", threadTableColWidth, mem.At(slot+Word(i)).Int)
		}

		fmt.Fprintln(w)
	}
}
