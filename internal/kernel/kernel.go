/*
Package kernel provides a small reference kernel program: a syscall/fault common entry point, a
one-thread descriptor table, and a demonstration user program that prints twice, yields once, and
exits. It exists because the instruction set has no kernel program of its own -- spec.md treats the
kernel as user-supplied data -- and a runnable example is worth more than a description.

This is a teaching fixture, not a scheduler: nothing in the instruction set lets a kernel program
change which thread is current, so only one thread ever actually runs. See DESIGN.md for the
Open Question this resolves.
*/
package kernel

import (
	"strings"

	"github.com/tarikcelik1/cooperative-vm/internal/asm"
	"github.com/tarikcelik1/cooperative-vm/internal/vm"
)

// Thread-descriptor STATE values the reference kernel assigns by convention. The engine does not
// interpret these; they are meaningful only to kernel code that reads the table.
const (
	ThreadStateUnused = 0
	ThreadStateReady  = 1
)

// Source is the reference kernel, written in the textual loader format internal/asm parses. It
// boots directly into user mode, services SYSCALL traps and protection faults at address 380, and
// halts the engine once the one demonstration thread exits.
const Source = `
# reference kernel: boot, one thread table entry, a syscall/fault dispatcher, and a demo program

BEGIN DATA
  202 1              ; constant one, used by the trap dispatcher's equality test

  900 1000           ; demo thread's entry point, read indirectly by "USER 900" below

  31 1               ; thread 0: STATE = READY
  32 1000            ; thread 0: PC
  33 1999            ; thread 0: SP

  1500 "hello from the user thread"
  1501 "still running after yield"
END DATA

BEGIN INSTRUCTION
  # boot: set up a kernel stack, then drop into the one demo thread
  0 SET 100 1
  1 USER 900

  # syscall/fault common entry point (address 380): SYSCALL_RESULT distinguishes the outcome.
  # YIELD (0) and PRN-done (2) both resume the thread; HLT (1) -- a thread exit or a protection
  # fault, indistinguishable from here -- stops the machine.
  380 CPY 2 211
  381 CPY 202 210
  382 SUBI 211 210
  383 JIF 210 390
  384 USER 18
  385 HLT
  390 JIF 2 384
  391 HLT

  # demo user program
  1000 SYSCALL PRN 1500
  1001 SYSCALL YIELD
  1002 SYSCALL PRN 1501
  1003 SYSCALL HLT
END INSTRUCTION
`

// NewReferenceImage parses Source into a program image ready to load onto a fresh Engine.
func NewReferenceImage() (vm.Image, error) {
	return asm.Parse(strings.NewReader(Source))
}
