package bytecode

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/achronyme/achronyme-core-sub001/opcodes"
	"github.com/achronyme/achronyme-core-sub001/values"
)

// Disassemble renders every instruction in proto as
// "PC OPCODE operands ; human-readable constant", resolving constant-pool
// and string-pool references through proto.Pool. This is a debugging aid,
// not a wire format (per §6, no on-disk bytecode format is specified).
func Disassemble(proto *Prototype) string {
	var sb strings.Builder
	disassembleInto(&sb, proto, "")
	return sb.String()
}

func disassembleInto(sb *strings.Builder, proto *Prototype, indent string) {
	fmt.Fprintf(sb, "%s.proto %s (params=%d regs=%d code=%s generator=%v async=%v)\n",
		indent, proto.Name, proto.ParamCount, proto.EffectiveRegisterCount(),
		humanize.Bytes(uint64(len(proto.Code)*4)), proto.IsGenerator, proto.IsAsync)

	for pc := 0; pc < len(proto.Code); pc++ {
		instr := proto.Code[pc]
		fmt.Fprintf(sb, "%s%4d  %s", indent, pc, instr.Op())

		switch opcodes.EncodingOf(instr.Op()) {
		case opcodes.EncodingABx:
			_, a, bx := opcodes.DecodeABx(instr)
			fmt.Fprintf(sb, " A=%d Bx=%d%s\n", a, bx, annotateABx(proto, instr.Op(), bx))
		default:
			_, a, b, c := opcodes.DecodeABC(instr)
			fmt.Fprintf(sb, " A=%d B=%d C=%d%s\n", a, b, c, annotateABC(proto, instr.Op(), b, c))
		}
	}

	for i, nested := range proto.Functions {
		fmt.Fprintf(sb, "%s  -- nested function %d --\n", indent, i)
		disassembleInto(sb, nested, indent+"  ")
	}
}

func annotateABx(proto *Prototype, op opcodes.Opcode, bx uint16) string {
	switch op {
	case opcodes.LoadConst:
		if proto.Pool != nil && proto.Pool.ValidConstant(int(bx)) {
			return fmt.Sprintf(" ; K[%d]=%s", bx, values.Inspect(proto.Pool.Constant(int(bx))))
		}
	case opcodes.Jump, opcodes.JumpIfTrue, opcodes.JumpIfFalse, opcodes.JumpIfNull, opcodes.PushHandler, opcodes.AddImm:
		off := opcodes.SignedBx(bx)
		return fmt.Sprintf(" ; offset=%d", off)
	case opcodes.Closure:
		if int(bx) < len(proto.Functions) {
			return fmt.Sprintf(" ; fn[%d]=%s", bx, proto.Functions[bx].Name)
		}
	case opcodes.LoadImmI8:
		return fmt.Sprintf(" ; imm=%d", int8(bx))
	}
	return ""
}

func annotateABC(proto *Prototype, op opcodes.Opcode, b, c uint8) string {
	switch op {
	case opcodes.GetField, opcodes.SetField, opcodes.MatchType:
		idx := int(c)
		if op == opcodes.SetField {
			idx = int(b)
		}
		if proto.Pool != nil && proto.Pool.ValidString(idx) {
			return fmt.Sprintf(" ; str[%d]=%q", idx, proto.Pool.StringAt(idx))
		}
	case opcodes.MatchLit, opcodes.DestructureRec:
		if proto.Pool != nil && proto.Pool.ValidConstant(int(c)) {
			return fmt.Sprintf(" ; K[%d]=%s", c, values.Inspect(proto.Pool.Constant(int(c))))
		}
	}
	return ""
}
