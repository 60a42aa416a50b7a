package arm64

import (
	"encoding/binary"

	"github.com/wnxd/microhook/patch"
	"github.com/wnxd/microhook/process"
)

const (
	// ldr x16, #8
	LDR_X16 = 0x58000050
	// br x16
	BR_X16 = 0xD61F0200

	BranchSize = 16
)

type encoder struct{}

var _ = patch.Register(encoder{})

func (encoder) Arch() process.Arch {
	return process.ARCH_ARM64
}

func (encoder) ByteOrder() binary.ByteOrder {
	return binary.LittleEndian
}

func (encoder) BranchSize() int {
	return BranchSize
}

func (encoder) Branch(from, to uint64) []byte {
	code := make([]byte, 0, BranchSize)
	code = binary.LittleEndian.AppendUint32(code, LDR_X16)
	code = binary.LittleEndian.AppendUint32(code, BR_X16)
	return binary.LittleEndian.AppendUint64(code, to)
}

// MoveImm rewrites imm16 of a movz, keeping the shift and register.
func (encoder) MoveImm(template uint32, imm uint8) uint32 {
	return template&^(0xFFFF<<5) | uint32(imm)<<5
}
