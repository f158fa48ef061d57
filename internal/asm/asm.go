package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tarikcelik1/cooperative-vm/internal/log"
	"github.com/tarikcelik1/cooperative-vm/internal/vm"
)

// ErrSyntax is the root of every fatal parse error: a malformed instruction line, an unbalanced or
// unrecognized section header.
var ErrSyntax = errors.New("syntax error")

type section int

const (
	sectionNone section = iota
	sectionData
	sectionInstruction
)

var opcodeNames = map[string]vm.Opcode{
	"SET": vm.OpSET, "CPY": vm.OpCPY, "CPYI": vm.OpCPYI, "CPYI2": vm.OpCPYI2,
	"ADD": vm.OpADD, "ADDI": vm.OpADDI, "SUBI": vm.OpSUBI, "JIF": vm.OpJIF,
	"PUSH": vm.OpPUSH, "POP": vm.OpPOP, "CALL": vm.OpCALL, "RET": vm.OpRET,
	"HLT": vm.OpHLT, "USER": vm.OpUSER, "SYSCALL": vm.OpSYSCALL,
}

// operandCount is the fixed arity of every opcode except SYSCALL, which parseInstruction handles
// specially since its arity depends on the trap kind.
var operandCount = map[vm.Opcode]int{
	vm.OpSET: 2, vm.OpCPY: 2, vm.OpCPYI: 2, vm.OpCPYI2: 2,
	vm.OpADD: 2, vm.OpADDI: 2, vm.OpSUBI: 2, vm.OpJIF: 2,
	vm.OpPUSH: 1, vm.OpPOP: 1, vm.OpCALL: 1, vm.OpRET: 0,
	vm.OpHLT: 0, vm.OpUSER: 1,
}

var syscallNames = map[string]vm.SyscallKind{
	"PRN": vm.SyscallPrn, "YIELD": vm.SyscallYield, "HLT": vm.SyscallHalt,
}

// Parser reads the textual loader format and accumulates a program image. Parse may be called once
// per source; build a new Parser for each file.
type Parser struct {
	log *log.Logger

	section section
	image   vm.Image
}

// NewParser returns a parser using the default logger.
func NewParser() *Parser {
	return &Parser{log: log.DefaultLogger()}
}

// Parse reads r to completion and returns the accumulated image, or the first fatal syntax error
// encountered. Malformed data lines are not fatal -- see the package doc comment -- so a non-nil
// error here always means the instruction stream or section structure is broken.
func (p *Parser) Parse(r io.Reader) (vm.Image, error) {
	scanner := bufio.NewScanner(r)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		if err := p.parseLine(line, lineNo); err != nil {
			return vm.Image{}, err
		}
	}

	if err := scanner.Err(); err != nil {
		return vm.Image{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	if p.section != sectionNone {
		return vm.Image{}, fmt.Errorf("%w: unterminated section at end of file", ErrSyntax)
	}

	return p.image, nil
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		// A '#' or ';' inside a quoted string is not a comment marker.
		if q := strings.IndexByte(line, '"'); q >= 0 && q < i {
			if end := strings.IndexByte(line[q+1:], '"'); end >= 0 && q+1+end > i {
				closing := q + 1 + end + 1
				return line[:closing] + stripComment(line[closing:])
			}
		}

		return line[:i]
	}

	return line
}

func (p *Parser) parseLine(line string, lineNo int) error {
	switch strings.ToUpper(line) {
	case "BEGIN DATA":
		if p.section != sectionNone {
			return fmt.Errorf("%w: line %d: nested section", ErrSyntax, lineNo)
		}

		p.section = sectionData

		return nil
	case "END DATA":
		if p.section != sectionData {
			return fmt.Errorf("%w: line %d: END DATA without BEGIN DATA", ErrSyntax, lineNo)
		}

		p.section = sectionNone

		return nil
	case "BEGIN INSTRUCTION":
		if p.section != sectionNone {
			return fmt.Errorf("%w: line %d: nested section", ErrSyntax, lineNo)
		}

		p.section = sectionInstruction

		return nil
	case "END INSTRUCTION":
		if p.section != sectionInstruction {
			return fmt.Errorf("%w: line %d: END INSTRUCTION without BEGIN INSTRUCTION", ErrSyntax, lineNo)
		}

		p.section = sectionNone

		return nil
	}

	switch p.section {
	case sectionData:
		p.parseDataLine(line, lineNo)
		return nil
	case sectionInstruction:
		return p.parseInstructionLine(line, lineNo)
	default:
		return fmt.Errorf("%w: line %d: content outside any BEGIN/END section", ErrSyntax, lineNo)
	}
}

// parseDataLine never returns an error: a bad address or value is logged and the line is skipped,
// matching the reference loader's tolerance for malformed data.
func (p *Parser) parseDataLine(line string, lineNo int) {
	fields := splitFields(line)
	if len(fields) < 2 {
		p.log.Warn("malformed data line", "line", lineNo, "text", line)
		return
	}

	addr, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		p.log.Warn("malformed data address", "line", lineNo, "text", line)
		return
	}

	if len(fields) == 2 && strings.HasPrefix(fields[1], `"`) {
		s, ok := unquote(fields[1])
		if !ok {
			p.log.Warn("malformed string literal", "line", lineNo, "text", line)
			return
		}

		p.image.Data = append(p.image.Data, vm.DataEntry{Addr: vm.Word(addr), Cell: vm.TextCell(s)})

		return
	}

	for i, f := range fields[1:] {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			p.log.Warn("malformed data value", "line", lineNo, "text", line)
			continue
		}

		p.image.Data = append(p.image.Data, vm.DataEntry{Addr: vm.Word(addr) + vm.Word(i), Cell: vm.IntCell(vm.Word(v))})
	}
}

func (p *Parser) parseInstructionLine(line string, lineNo int) error {
	fields := splitFields(line)
	if len(fields) < 2 {
		return fmt.Errorf("%w: line %d: instruction line needs an address and an opcode", ErrSyntax, lineNo)
	}

	addr, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: line %d: malformed address %q", ErrSyntax, lineNo, fields[0])
	}

	op, ok := opcodeNames[strings.ToUpper(fields[1])]
	if !ok {
		return fmt.Errorf("%w: line %d: unknown opcode %q", ErrSyntax, lineNo, fields[1])
	}

	rest := fields[2:]

	ins := vm.Instruction{Op: op}

	if op == vm.OpSYSCALL {
		if len(rest) == 0 {
			return fmt.Errorf("%w: line %d: SYSCALL requires a trap name", ErrSyntax, lineNo)
		}

		kind, ok := syscallNames[strings.ToUpper(rest[0])]
		if !ok {
			return fmt.Errorf("%w: line %d: unknown syscall trap %q", ErrSyntax, lineNo, rest[0])
		}

		ins.Kind = kind
		rest = rest[1:]

		if kind == vm.SyscallPrn && len(rest) != 1 {
			return fmt.Errorf("%w: line %d: SYSCALL PRN requires exactly one address operand", ErrSyntax, lineNo)
		}

		if kind != vm.SyscallPrn && len(rest) != 0 {
			return fmt.Errorf("%w: line %d: SYSCALL %s takes no operands", ErrSyntax, lineNo, kind)
		}
	} else if want := operandCount[op]; len(rest) != want {
		return fmt.Errorf("%w: line %d: %s takes %d operand(s), got %d", ErrSyntax, lineNo, op, want, len(rest))
	}

	for _, f := range rest {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: line %d: malformed operand %q", ErrSyntax, lineNo, f)
		}

		ins.Operands = append(ins.Operands, vm.Word(v))
	}

	p.image.Instr = append(p.image.Instr, vm.InstrEntry{Addr: vm.Word(addr), Ins: ins})

	return nil
}

// splitFields tokenizes a line on whitespace, except a double-quoted string stays one field.
func splitFields(line string) []string {
	var fields []string

	for {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		if line[0] == '"' {
			end := strings.IndexByte(line[1:], '"')
			if end < 0 {
				fields = append(fields, line)
				break
			}

			fields = append(fields, line[:end+2])
			line = line[end+2:]

			continue
		}

		i := strings.IndexAny(line, " \t")
		if i < 0 {
			fields = append(fields, line)
			break
		}

		fields = append(fields, line[:i])
		line = line[i:]
	}

	return fields
}

func unquote(tok string) (string, bool) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return "", false
	}

	return tok[1 : len(tok)-1], true
}

// Parse is a convenience wrapper for NewParser().Parse(r).
func Parse(r io.Reader) (vm.Image, error) {
	return NewParser().Parse(r)
}
