package vm

// loader.go overlays a parsed program image onto an engine's memory and instruction store.

import (
	"errors"
	"fmt"

	"github.com/tarikcelik1/cooperative-vm/internal/log"
)

// DataEntry places one cell of data at an address.
type DataEntry struct {
	Addr Word
	Cell Cell
}

// InstrEntry places one decoded instruction at an address in the instruction store.
type InstrEntry struct {
	Addr Word
	Ins  Instruction
}

// Image is a loaded program: the data section and the instruction section produced by parsing a
// source file (see internal/asm). Either section may be empty; a kernel image typically supplies
// both, a user-only test fixture sometimes supplies just one.
type Image struct {
	Data  []DataEntry
	Instr []InstrEntry
}

// Loader overlays an Image onto an engine. Loading bypasses the protection unit entirely -- it is
// privileged by construction, the same way the real machine's bootstrap process would be.
type Loader struct {
	log *log.Logger
}

// NewLoader creates a loader using the default logger.
func NewLoader() *Loader {
	return &Loader{log: log.DefaultLogger()}
}

// Load overlays img onto e's memory and instruction store, returning the number of data cells and
// instructions placed.
func (l *Loader) Load(e *Engine, img Image) (int, error) {
	if len(img.Data) == 0 && len(img.Instr) == 0 {
		return 0, fmt.Errorf("%w: empty image", ErrLoader)
	}

	count := 0

	for _, d := range img.Data {
		if err := e.Mem.StorePrivileged(d.Addr, d.Cell); err != nil {
			return count, fmt.Errorf("%w: data at %s: %w", ErrLoader, d.Addr, err)
		}

		e.reconcileRegister(d.Addr, d.Cell)

		count++
	}

	for _, i := range img.Instr {
		e.Instrs[i.Addr] = i.Ins
		count++
	}

	l.log.Debug("loaded image", "data", len(img.Data), "instr", len(img.Instr))

	return count, nil
}

// ErrLoader is the root of errors raised while overlaying a program image.
var ErrLoader = errors.New("loader error")
