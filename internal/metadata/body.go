package metadata

import (
	"encoding/binary"
	"fmt"

	"github.com/dbsmedya/gosymbol/internal/failure"
)

// Method body header formats, ECMA-335 II.25.4.
const (
	bodyFormatMask = 0x03
	bodyTiny       = 0x02
	bodyFat        = 0x03
	fatHeaderSize  = 12
)

const (
	opInvalid int8 = -1
	opSwitch  int8 = -2
)

// Operand widths in bytes, indexed by opcode. The second table covers the
// 0xFE-prefixed opcodes.
var (
	oneByteOperands = buildOneByteOperands()
	twoByteOperands = buildTwoByteOperands()
)

func operandTable(ranges [][3]int) (t [256]int8) {
	for i := range t {
		t[i] = opInvalid
	}
	for _, r := range ranges {
		for op := r[0]; op <= r[1]; op++ {
			t[op] = int8(r[2])
		}
	}
	return t
}

func buildOneByteOperands() [256]int8 {
	t := operandTable([][3]int{
		{0x00, 0x0D, 0}, // nop, break, ldarg.0-3, ldloc.0-3, stloc.0-3
		{0x0E, 0x13, 1}, // ldarg.s, ldarga.s, starg.s, ldloc.s, ldloca.s, stloc.s
		{0x14, 0x1E, 0}, // ldnull, ldc.i4.m1 - ldc.i4.8
		{0x1F, 0x1F, 1}, // ldc.i4.s
		{0x20, 0x20, 4}, // ldc.i4
		{0x21, 0x21, 8}, // ldc.i8
		{0x22, 0x22, 4}, // ldc.r4
		{0x23, 0x23, 8}, // ldc.r8
		{0x25, 0x26, 0}, // dup, pop
		{0x27, 0x29, 4}, // jmp, call, calli
		{0x2A, 0x2A, 0}, // ret
		{0x2B, 0x37, 1}, // br.s - blt.un.s
		{0x38, 0x44, 4}, // br - blt.un
		{0x46, 0x6E, 0}, // ldind.*, stind.*, arithmetic, conv.*
		{0x6F, 0x75, 4}, // callvirt, cpobj, ldobj, ldstr, newobj, castclass, isinst
		{0x76, 0x76, 0}, // conv.r.un
		{0x79, 0x79, 4}, // unbox
		{0x7A, 0x7A, 0}, // throw
		{0x7B, 0x81, 4}, // ldfld - stobj
		{0x82, 0x8B, 0}, // conv.ovf.*.un
		{0x8C, 0x8D, 4}, // box, newarr
		{0x8E, 0x8E, 0}, // ldlen
		{0x8F, 0x8F, 4}, // ldelema
		{0x90, 0xA2, 0}, // ldelem.*, stelem.*
		{0xA3, 0xA5, 4}, // ldelem, stelem, unbox.any
		{0xB3, 0xBA, 0}, // conv.ovf.*
		{0xC2, 0xC2, 4}, // refanyval
		{0xC3, 0xC3, 0}, // ckfinite
		{0xC6, 0xC6, 4}, // mkrefany
		{0xD0, 0xD0, 4}, // ldtoken
		{0xD1, 0xDC, 0}, // conv.u2 - endfinally
		{0xDD, 0xDD, 4}, // leave
		{0xDE, 0xDE, 1}, // leave.s
		{0xDF, 0xE0, 0}, // stind.i, conv.u
	})
	t[0x45] = opSwitch
	return t
}

func buildTwoByteOperands() [256]int8 {
	return operandTable([][3]int{
		{0x00, 0x05, 0}, // arglist, ceq, cgt, cgt.un, clt, clt.un
		{0x06, 0x07, 4}, // ldftn, ldvirtftn
		{0x09, 0x0E, 2}, // ldarg, ldarga, starg, ldloc, ldloca, stloc
		{0x0F, 0x0F, 0}, // localloc
		{0x11, 0x11, 0}, // endfilter
		{0x12, 0x12, 1}, // unaligned.
		{0x13, 0x14, 0}, // volatile., tail.
		{0x15, 0x16, 4}, // initobj, constrained.
		{0x17, 0x18, 0}, // cpblk, initblk
		{0x19, 0x19, 1}, // no.
		{0x1A, 0x1A, 0}, // rethrow
		{0x1C, 0x1C, 4}, // sizeof
		{0x1D, 0x1E, 0}, // refanytype, readonly.
	})
}

// CountInstructions walks an IL byte stream and returns the number of
// instructions in it. Prefixes count as instructions of their own.
func CountInstructions(code []byte) (int, error) {
	count := 0
	for pos := 0; pos < len(code); count++ {
		at := pos
		op := code[pos]
		pos++

		size := oneByteOperands[op]
		if op == 0xFE {
			if pos >= len(code) {
				return 0, fmt.Errorf("opcode prefix 0xfe at %#x has no second byte", at)
			}
			op = code[pos]
			pos++
			size = twoByteOperands[op]
		}

		var operand int64
		switch size {
		case opInvalid:
			return 0, fmt.Errorf("invalid opcode %#02x at %#x", op, at)
		case opSwitch:
			if pos+4 > len(code) {
				return 0, fmt.Errorf("switch at %#x truncated", at)
			}
			targets := int64(binary.LittleEndian.Uint32(code[pos:]))
			operand = 4 + 4*targets
		default:
			operand = int64(size)
		}
		if operand > int64(len(code)-pos) {
			return 0, fmt.Errorf("operand of opcode %#02x at %#x runs past end of body", op, at)
		}
		pos += int(operand)
	}
	return count, nil
}

// instructionCount reads the body of a method and counts its instructions.
// Methods without a body report zero.
func (m *moduleReader) instructionCount(md *MethodDefinition) (int, error) {
	if !md.HasBody() {
		return 0, nil
	}
	op := fmt.Sprintf("read body of %s", md.Name)

	head, err := m.img.readRVA(md.RVA, 1, op)
	if err != nil {
		return 0, err
	}

	var codeRVA, codeSize uint32
	switch head[0] & bodyFormatMask {
	case bodyTiny:
		codeRVA = md.RVA + 1
		codeSize = uint32(head[0] >> 2)
	case bodyFat:
		hdr, err := m.img.readRVA(md.RVA, fatHeaderSize, op)
		if err != nil {
			return 0, err
		}
		headerWords := uint32(binary.LittleEndian.Uint16(hdr) >> 12)
		if headerWords < 3 {
			return 0, corruptf(op, "fat header size %d dwords", headerWords)
		}
		codeRVA = md.RVA + headerWords*4
		codeSize = binary.LittleEndian.Uint32(hdr[4:8])
	default:
		return 0, corruptf(op, "unknown body header %#02x", head[0])
	}

	code, err := m.img.readRVA(codeRVA, codeSize, op)
	if err != nil {
		return 0, err
	}
	n, err := CountInstructions(code)
	if err != nil {
		return 0, failure.New(failure.ErrImageCorrupt, op, err)
	}
	return n, nil
}
