/*
Package vm implements a basic virtual machine for a cooperative-multitasking teaching operating
system.

With the reason for the project to learn more about computer engineering, the design mimics the
micro-architecture of a tiny, Harvard-style machine: a flat, word-addressable data memory separate
from an instruction store, a small shadowed register file, and a single privilege bit. Both the
kernel and user threads execute the same instruction set; only the privilege bit and a fixed
protected address range separate them.

# Memory #

Memory is 20 000 words, indexed 0..19999. Each word is either a signed integer or, for the sole
benefit of the PRN syscall, a short piece of text. The address space is divided into regions:

	0..3      memory-mapped registers (PC, SP, SYSCALL_RESULT, INSTR_COUNT)
	4..20     kernel scratch (cell 18 holds the last syscall/fault return PC)
	21..999   kernel-only region: OS code and data, with a fault handler at 380
	30..129   thread-descriptor table: 10 slots of 10 words each
	1000..19999  user region, unrestricted in either mode

# Register shadow #

Rather than a memory controller mediating every access through address/data registers, the engine
keeps four scalar fields -- PC, SP, SyscallResult, InstrCount -- as its working copies of memory
cells 0..3. PC is resynced FROM memory once at the top of every Step, so a handler that wrote
memory[0] directly on the previous cycle (SET, CPYI2's destination-zero case, a trap redirect) is
picked up by the next fetch. The other three are reconciled the opposite direction but just as
symmetrically: any opcode that happens to store through one of cells 1..3 -- not only the dedicated
SP/SYSCALL_RESULT/INSTR_COUNT accessors -- updates the matching shadow field at the moment of the
write, so a plain `SET 100 1` is just as visible to the next CALL/RET as a SET to cell 0 is visible
to the next fetch. Nothing here is read back lazily; every write to 0..3, wherever it originates,
reconciles the shadow immediately.

# Access control #

The protection unit enforces a single rule: in user mode, any read or write to addresses 21..999 is
denied. Kernel-mode code and any address outside that range are unrestricted -- most pointedly,
addresses 1000 and up are always legal, kernel or user. A denied access traps: the engine jumps to
the fixed fault handler at 380, sets SYSCALL_RESULT to 1, and switches to kernel mode, exactly as a
syscall trap would, so the kernel's single entry point at 380 has to distinguish the two causes only
by whatever state the fault leaves behind.

# Syscalls #

User code calls into the kernel with SYSCALL PRN|YIELD|HLT. The trap always saves a return PC in
cell 18 (PC+1 for PRN and YIELD, but PC itself for HLT -- so a re-entered HLT re-executes), sets
SYSCALL_RESULT, switches to kernel mode, and redirects to 380. There is no stack push and no other
hardware interrupt; scheduling is entirely cooperative; a thread that never yields or exits runs
forever.

# Bugs #

A handful of behaviors look like bugs and are preserved deliberately, matching the original
reference implementation: POP does not check for stack underflow beyond the ordinary protection
rule, the syscall return-PC convention differs between PRN/YIELD and HLT, and a missing instruction
store entry silently decodes as HLT rather than raising an engine error.
*/
package vm
