package vm

// words.go defines the basic data types the engine operates on: addresses, memory cells, and the
// two-valued privilege mode.

import (
	"fmt"
)

// Word is the base data type of the machine: an address or an integer cell value. The
// specification requires "signed integers of at least 64-bit width", so Word is an int64 rather
// than the 16-bit words a real micro-architecture would use.
type Word int64

func (w Word) String() string {
	return fmt.Sprintf("%d", int64(w))
}

// CellKind discriminates the two things a memory cell can hold.
type CellKind uint8

const (
	// KindInt is an ordinary integer cell. Every cell defaults to this kind, value 0.
	KindInt CellKind = iota

	// KindText is a short piece of text placed by the loader for the exclusive use of the PRN
	// syscall. Text cells are never subject to arithmetic.
	KindText
)

// Cell is one memory word: either a signed integer or, exceptionally, a short string. Most
// instructions require an integer operand; PRN accepts either.
type Cell struct {
	Kind CellKind
	Int  Word
	Text string
}

// IntCell builds an integer-valued cell.
func IntCell(v Word) Cell { return Cell{Kind: KindInt, Int: v} }

// TextCell builds a text-valued cell.
func TextCell(s string) Cell { return Cell{Kind: KindText, Text: s} }

// IsText reports whether the cell holds text rather than an integer.
func (c Cell) IsText() bool { return c.Kind == KindText }

// String renders the cell the way PRN prints it: the text verbatim, or the integer formatted as
// decimal.
func (c Cell) String() string {
	if c.IsText() {
		return c.Text
	}

	return c.Int.String()
}

// AsInt returns the cell's integer value and an error if the cell actually holds text. Arithmetic
// and control-flow opcodes all route through this so a stray text cell can never silently
// participate in arithmetic.
func (c Cell) AsInt() (Word, error) {
	if c.IsText() {
		return 0, fmt.Errorf("%w: text cell used as integer: %q", ErrEngine, c.Text)
	}

	return c.Int, nil
}

// Mode is the machine's single privilege bit. It is not a memory cell; it is mutated only by the
// USER instruction, the syscall trap, and protection faults.
type Mode bool

const (
	// Kernel mode: unrestricted access to the whole address space.
	Kernel Mode = false

	// User mode: addresses 21..999 are off limits.
	User Mode = true
)

func (m Mode) String() string {
	if m == User {
		return "USER"
	}

	return "KERNEL"
}

// SyscallResult is the value left in the SYSCALL_RESULT register (memory cell 2) describing the
// outcome of the most recent trap.
type SyscallResult Word

const (
	ResultYield      SyscallResult = 0
	ResultHalt       SyscallResult = 1 // also: protection fault, thread exit
	ResultPrintDone  SyscallResult = 2
)
