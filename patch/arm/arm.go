package arm

import (
	"encoding/binary"

	"github.com/wnxd/microhook/patch"
	"github.com/wnxd/microhook/process"
)

const (
	// ldr pc, [pc, #-4]
	LDR_PC = 0xE51FF004

	BranchSize = 8
)

type encoder struct{}

var _ = patch.Register(encoder{})

func (encoder) Arch() process.Arch {
	return process.ARCH_ARM
}

func (encoder) ByteOrder() binary.ByteOrder {
	return binary.LittleEndian
}

func (encoder) BranchSize() int {
	return BranchSize
}

func (encoder) Branch(from, to uint64) []byte {
	code := make([]byte, 0, BranchSize)
	code = binary.LittleEndian.AppendUint32(code, LDR_PC)
	return binary.LittleEndian.AppendUint32(code, uint32(to))
}

// MoveImm rewrites imm8 of a data processing immediate, keeping the rotation.
func (encoder) MoveImm(template uint32, imm uint8) uint32 {
	return template&^0xFF | uint32(imm)
}
