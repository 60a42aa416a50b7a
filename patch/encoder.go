package patch

import (
	"encoding/binary"

	"github.com/wnxd/microhook/process"
)

// Encoder produces the instruction bytes written over the target binary.
type Encoder interface {
	Arch() process.Arch
	ByteOrder() binary.ByteOrder
	// BranchSize is the fixed length of every Branch sequence.
	BranchSize() int
	// Branch transfers control from the code at from to the absolute address to.
	Branch(from, to uint64) []byte
	// MoveImm substitutes imm into the immediate operand of a move instruction.
	MoveImm(template uint32, imm uint8) uint32
}

var encoderMap = make(map[process.Arch]Encoder)

func Register(enc Encoder) bool {
	if _, ok := encoderMap[enc.Arch()]; ok {
		return false
	}
	encoderMap[enc.Arch()] = enc
	return true
}

func EncoderFor(arch process.Arch) (Encoder, error) {
	if enc, ok := encoderMap[arch]; ok {
		return enc, nil
	}
	return nil, process.ErrArchUnsupported
}
