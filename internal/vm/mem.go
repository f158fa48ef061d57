package vm

// mem.go contains the machine's flat data memory and its protection unit.

import (
	"errors"
	"fmt"
)

// Sizing and region boundaries of the address space. Every address here is a data-memory address;
// the instruction store is addressed separately and has no size limit of its own.
const (
	MemSize = 20_000 // cells 0..19999

	// Memory-mapped registers: the engine's scalar shadow fields are reconciled with these cells.
	RegPC            Word = 0
	RegSP            Word = 1
	RegSyscallResult Word = 2
	RegInstrCount    Word = 3

	// Kernel scratch. Cell 18 holds the return PC saved by the most recent syscall or fault trap.
	KernelScratchBase Word = 4
	KernelScratchEnd  Word = 20
	ReturnPCCell      Word = 18

	// Kernel-only region. User-mode access anywhere in here faults.
	KernelOnlyBase Word = 21
	KernelOnlyEnd  Word = 999

	// FaultHandler is where the engine redirects the PC on a syscall trap or a protection fault.
	FaultHandler Word = 380

	// Thread-descriptor table: 10 slots of 10 words, embedded within the kernel-only region.
	ThreadTableBase  Word = 30
	ThreadTableSlots Word = 10
	ThreadSlotSize   Word = 10

	// Offsets of the fields the engine and kernel agree on within a thread descriptor slot. Only
	// the first seven words of each ten-word slot are named; the rest are free for kernel use.
	ThreadFieldID            Word = 0
	ThreadFieldState         Word = 1
	ThreadFieldPC            Word = 2
	ThreadFieldSP            Word = 3
	ThreadFieldStartTime     Word = 4
	ThreadFieldPrnArgOrSysno Word = 5
	ThreadFieldCPUInstUsed   Word = 6

	// UserSpaceBase begins the unrestricted user region; it runs to the end of memory.
	UserSpaceBase Word = 1000
)

// AccessKind names a read or a write. The protection unit's rule treats the two identically, and
// checkAccess, Load and Store do not take an AccessKind.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// Memory is the machine's flat, word-addressable data memory: MemSize cells, each either an
// integer or text. It holds no privilege state of its own: Load and Store apply the
// protection-unit rule for the mode the caller passes in, and the Privileged variants skip it.
type Memory struct {
	cells [MemSize]Cell
}

// NewMemory returns a zeroed memory: every cell defaults to the integer zero.
func NewMemory() *Memory {
	return &Memory{}
}

// checkAccess applies the protection unit's one rule: in user mode, 21..999 is off limits.
// Everything else -- kernel mode at any address, user mode outside that range -- is allowed.
func checkAccess(mode Mode, addr Word) error {
	if mode == User && addr >= KernelOnlyBase && addr <= KernelOnlyEnd {
		return fmt.Errorf("%w: address %s is kernel-only", ErrAccessControl, addr)
	}

	return nil
}

// Load reads the cell at addr, honoring the protection unit for the given mode.
func (m *Memory) Load(mode Mode, addr Word) (Cell, error) {
	if err := m.boundsCheck(addr); err != nil {
		return Cell{}, err
	}

	if err := checkAccess(mode, addr); err != nil {
		return Cell{}, err
	}

	return m.cells[addr], nil
}

// Store writes a cell at addr, honoring the protection unit for the given mode.
func (m *Memory) Store(mode Mode, addr Word, cell Cell) error {
	if err := m.boundsCheck(addr); err != nil {
		return err
	}

	if err := checkAccess(mode, addr); err != nil {
		return err
	}

	m.cells[addr] = cell

	return nil
}

// LoadPrivileged and StorePrivileged bypass the protection unit. The engine uses them for its own
// bookkeeping -- register write-through, the syscall trap, the loader -- and for the stack touches
// of CALL and RET and the entry-point read of USER, which are not subject to the protection rule in
// either mode.
func (m *Memory) LoadPrivileged(addr Word) (Cell, error) {
	if err := m.boundsCheck(addr); err != nil {
		return Cell{}, err
	}

	return m.cells[addr], nil
}

func (m *Memory) StorePrivileged(addr Word, cell Cell) error {
	if err := m.boundsCheck(addr); err != nil {
		return err
	}

	m.cells[addr] = cell

	return nil
}

func (m *Memory) boundsCheck(addr Word) error {
	if addr < 0 || int64(addr) >= MemSize {
		return fmt.Errorf("%w: address %s out of range", ErrMemory, addr)
	}

	return nil
}

// NonZero returns a sparse view of memory: addresses whose cell is not the integer zero, in
// ascending order. It backs the debug-level-0 final dump and is far cheaper than copying all
// 20,000 cells for a dump that usually touches a handful of them.
func (m *Memory) NonZero() []int {
	addrs := make([]int, 0, 64)

	for i, c := range m.cells {
		if c.IsText() || c.Int != 0 {
			addrs = append(addrs, i)
		}
	}

	return addrs
}

// At returns the cell at addr without any access check, for use by dump and test code that needs
// to inspect memory from outside the engine.
func (m *Memory) At(addr Word) Cell {
	return m.cells[addr]
}

var (
	// ErrMemory is the root of every data-memory error: out-of-range addresses and the like.
	ErrMemory = errors.New("memory error")

	// ErrAccessControl wraps a protection-unit denial; the engine turns it into a fault trap
	// rather than propagating it as a Go error to the caller of Step.
	ErrAccessControl = errors.New("access control")

	// ErrEngine is the root of errors raised by the engine's own logic -- a text cell used where
	// an integer is required, an unrecognized opcode, and similar conditions that the reference
	// implementation treats as host bugs rather than guest-visible faults.
	ErrEngine = errors.New("engine error")
)
