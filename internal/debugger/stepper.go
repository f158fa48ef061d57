// Package debugger implements vm.Stepper: the "await external step signal" behavior debug level 2
// requires between instructions.
package debugger

import (
	"errors"
	"fmt"

	"github.com/peterh/liner"
	"github.com/tarikcelik1/cooperative-vm/internal/vm"
)

// LinerStepper prompts on the terminal before every instruction, using peterh/liner for line
// editing and Ctrl-C handling. Entering nothing (or "s") advances one instruction; "c" disables
// further prompting for the rest of the run; "q" stops the engine.
type LinerStepper struct {
	line *liner.State
	free bool
}

// NewLinerStepper creates a stepper reading from the controlling terminal.
func NewLinerStepper() *LinerStepper {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	return &LinerStepper{line: line}
}

// Close releases the underlying terminal state. Callers should defer this after constructing a
// LinerStepper.
func (s *LinerStepper) Close() error {
	return s.line.Close()
}

// ErrStop is returned by Prompt when the user asks the run to stop early.
var ErrStop = errors.New("debugger: stop requested")

// Prompt implements vm.Stepper.
func (s *LinerStepper) Prompt(e *vm.Engine) error {
	if s.free {
		return nil
	}

	for {
		cmd, err := s.line.Prompt(fmt.Sprintf("step [PC=%s]> ", e.PC))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return ErrStop
			}

			return err
		}

		s.line.AppendHistory(cmd)

		switch cmd {
		case "", "s":
			return nil
		case "c":
			s.free = true
			return nil
		case "q":
			return ErrStop
		default:
			fmt.Println("commands: <enter>/s step, c continue, q quit")
		}
	}
}

var _ vm.Stepper = (*LinerStepper)(nil)
