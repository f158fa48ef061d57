/*
Package asm implements the textual loader format: a small, line-oriented notation for laying out
absolute addresses directly, with none of the label resolution or relocation a general assembler
needs.

	BEGIN DATA
	  1000 5
	  1001 "hello"
	  1002 1 2 3
	END DATA

	BEGIN INSTRUCTION
	  0 ADDI 1000 1001
	  1 HLT
	END INSTRUCTION

`#` and `;` introduce a line comment anywhere, including after other content on the line. Data
lines are an address followed by one or more decimal values (each landing in a successive cell) or
a single double-quoted string. Instruction lines are an address, an opcode name, and its fixed-arity
operands; SYSCALL takes a trap name (PRN, YIELD, HLT) as its first operand and, for PRN, a second
operand giving the address to print.

Parse never fails on a malformed data line -- it logs a warning and leaves the cell at its loader
default -- because that is how the reference loader behaves and kernel images are expected to rely
on it. A malformed instruction line, section header, or section nesting error is fatal: a program
with a typo in its instruction stream is not something the engine can run, where a zero data cell
merely means the author forgot to initialize something.
*/
package asm
