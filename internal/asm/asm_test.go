package asm_test

import (
	"strings"
	"testing"

	"github.com/tarikcelik1/cooperative-vm/internal/asm"
	"github.com/tarikcelik1/cooperative-vm/internal/vm"
)

func TestParseDataAndInstructions(t *testing.T) {
	t.Parallel()

	src := `
# a demonstration program
BEGIN DATA
  1000 5
  1001 "hello" ; trailing comment
  1002 1 2 3
END DATA

BEGIN INSTRUCTION
  0 ADDI 1000 1001 ; comment
  1 SYSCALL PRN 1000
  2 HLT
END INSTRUCTION
`

	img, err := asm.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(img.Data) != 5 {
		t.Fatalf("len(img.Data) = %d, want 5", len(img.Data))
	}

	if img.Data[0].Addr != 1000 || img.Data[0].Cell.Int != 5 {
		t.Errorf("img.Data[0] = %+v, want {1000 5}", img.Data[0])
	}

	if img.Data[1].Addr != 1001 || !img.Data[1].Cell.IsText() || img.Data[1].Cell.Text != "hello" {
		t.Errorf("img.Data[1] = %+v, want {1001 hello}", img.Data[1])
	}

	if img.Data[2].Addr != 1002 || img.Data[3].Addr != 1003 || img.Data[4].Addr != 1004 {
		t.Errorf("multi-value data line did not lay out consecutive cells: %+v", img.Data[2:])
	}

	if len(img.Instr) != 3 {
		t.Fatalf("len(img.Instr) = %d, want 3", len(img.Instr))
	}

	if img.Instr[1].Ins.Op != vm.OpSYSCALL || img.Instr[1].Ins.Kind != vm.SyscallPrn {
		t.Errorf("img.Instr[1] = %+v, want SYSCALL PRN", img.Instr[1])
	}
}

func TestParseMalformedDataLineIsNotFatal(t *testing.T) {
	t.Parallel()

	src := `
BEGIN DATA
  oops not-a-number
  1000 5
END DATA
`

	img, err := asm.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(img.Data) != 1 || img.Data[0].Addr != 1000 {
		t.Errorf("img.Data = %+v, want only {1000 5}", img.Data)
	}
}

func TestParseUnknownOpcodeIsFatal(t *testing.T) {
	t.Parallel()

	src := `
BEGIN INSTRUCTION
  0 NOTANOP
END INSTRUCTION
`

	if _, err := asm.Parse(strings.NewReader(src)); err == nil {
		t.Errorf("Parse returned no error for an unknown opcode")
	}
}

func TestParseUnterminatedSectionIsFatal(t *testing.T) {
	t.Parallel()

	src := "BEGIN DATA\n  1000 5\n"

	if _, err := asm.Parse(strings.NewReader(src)); err == nil {
		t.Errorf("Parse returned no error for an unterminated section")
	}
}

func TestParseWrongArityIsFatal(t *testing.T) {
	t.Parallel()

	src := `
BEGIN INSTRUCTION
  0 SET 5
END INSTRUCTION
`

	if _, err := asm.Parse(strings.NewReader(src)); err == nil {
		t.Errorf("Parse returned no error for a wrong-arity instruction")
	}
}
