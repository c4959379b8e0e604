package variables

// Instruction is one host-bytecode instruction a reconstruction emits.
// Opcodes are the host VM's names; Arg is opcode-specific.
type Instruction struct {
	Opcode string
	Arg    interface{}
}

// Inst builds an instruction.
func Inst(opcode string, arg interface{}) Instruction {
	return Instruction{Opcode: opcode, Arg: arg}
}

// Codegen is the driver's bytecode assembler. Reconstruct implementations
// either emit through it directly (Append, Emit) or return trailing
// instructions for the driver to splice in.
type Codegen interface {
	// Emit appends the full reconstruction of v.
	Emit(v Variable) error
	// Foreach emits every variable in order.
	Foreach(vs []Variable) error
	// Append adds one raw instruction.
	Append(inst Instruction)

	CreateLoadGlobal(name string, add bool) Instruction
	CreateLoadConst(val interface{}) Instruction
	CreateLoadAttr(name string) Instruction
	CreateLoadClosure(name string) Instruction

	// SetupGloballyCached installs val under a synthetic global name and
	// returns the instructions that load it.
	SetupGloballyCached(name string, val interface{}) []Instruction

	// GlobalExists reports whether the traced frame's globals already
	// bind name (a shadowed builtin cannot be reloaded by name).
	GlobalExists(name string) bool
}
