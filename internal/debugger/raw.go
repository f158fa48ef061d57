package debugger

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/tarikcelik1/cooperative-vm/internal/vm"
	"golang.org/x/term"
)

// ErrNoTTY is returned by NewRawStepper when standard input is not a terminal; raw single-keystroke
// stepping has nothing sensible to read from otherwise.
var ErrNoTTY = errors.New("debugger: not a TTY")

// RawStepper advances one instruction per keystroke, without a visible line-editing prompt: put the
// terminal in raw mode, block for one byte, restore on Close. 'c' frees the run to completion; 'q'
// stops it. Any other byte single-steps.
type RawStepper struct {
	fd    int
	state *term.State
	in    *bufio.Reader
	free  bool
}

// NewRawStepper puts os.Stdin into raw mode and returns a stepper reading from it.
func NewRawStepper() (*RawStepper, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return nil, ErrNoTTY
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	return &RawStepper{fd: fd, state: state, in: bufio.NewReader(os.Stdin)}, nil
}

// Close restores the terminal to its state before NewRawStepper.
func (s *RawStepper) Close() error {
	return term.Restore(s.fd, s.state)
}

// Prompt implements vm.Stepper.
func (s *RawStepper) Prompt(e *vm.Engine) error {
	if s.free {
		return nil
	}

	b, err := s.in.ReadByte()
	if err != nil {
		return err
	}

	switch b {
	case 'c':
		s.free = true
	case 'q':
		return ErrStop
	}

	return nil
}

var _ vm.Stepper = (*RawStepper)(nil)
