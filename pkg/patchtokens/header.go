// Package patchtokens reads just enough of a Patchtokens program to tell
// whether it is usable for a target. Kernels and patch lists stay opaque.
package patchtokens

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

const MAGIC_CL uint32 = 0x494E5443

type ProgramHeader struct {
	Magic                 uint32
	Version               uint32
	Device                uint32
	GPUPointerSizeInBytes uint32
	NumberOfKernels       uint32
	SteppingId            uint32
	PatchListSize         uint32
}

const PROGRAM_HEADER_SIZE = int(unsafe.Sizeof(ProgramHeader{}))

type Target struct {
	CoreFamily            uint32
	MaxPointerSizeInBytes uint32
}

var (
	ErrInvalidProgram    = errors.New("invalid patchtokens program")
	ErrUnsupportedTarget = errors.New("unsupported patchtokens target")
)

// IsPatchtokens only sniffs the magic.
func IsPatchtokens(buf []byte) bool {
	return len(buf) >= 4 && binary.LittleEndian.Uint32(buf) == MAGIC_CL
}

func DecodeProgramHeader(buf []byte) (*ProgramHeader, error) {
	if len(buf) < PROGRAM_HEADER_SIZE {
		return nil, fmt.Errorf("%w: buffer too small for program header (%d < %d)", ErrInvalidProgram, len(buf), PROGRAM_HEADER_SIZE)
	}
	var header ProgramHeader
	if err := binary.Read(bytes.NewReader(buf[:PROGRAM_HEADER_SIZE]), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	if header.Magic != MAGIC_CL {
		return nil, fmt.Errorf("%w: invalid magic 0x%08x", ErrInvalidProgram, header.Magic)
	}
	if uint64(header.PatchListSize) > uint64(len(buf)-PROGRAM_HEADER_SIZE) {
		return nil, fmt.Errorf("%w: patch list exceeds binary size", ErrInvalidProgram)
	}
	return &header, nil
}

// Validate checks buf against target. A zero target field accepts anything.
func Validate(buf []byte, target Target) (*ProgramHeader, error) {
	header, err := DecodeProgramHeader(buf)
	if err != nil {
		return nil, err
	}
	if target.CoreFamily != 0 && header.Device != target.CoreFamily {
		return nil, fmt.Errorf("%w: device %d, requested %d", ErrUnsupportedTarget, header.Device, target.CoreFamily)
	}
	if target.MaxPointerSizeInBytes != 0 && header.GPUPointerSizeInBytes > target.MaxPointerSizeInBytes {
		return nil, fmt.Errorf("%w: pointer size %d exceeds %d", ErrUnsupportedTarget, header.GPUPointerSizeInBytes, target.MaxPointerSizeInBytes)
	}
	return header, nil
}

// Encode writes header followed by patchList, with PatchListSize filled in.
func Encode(header ProgramHeader, patchList []byte) []byte {
	header.Magic = MAGIC_CL
	header.PatchListSize = uint32(len(patchList))
	var buf bytes.Buffer
	buf.Grow(PROGRAM_HEADER_SIZE + len(patchList))
	if err := binary.Write(&buf, binary.LittleEndian, &header); err != nil {
		panic(err)
	}
	buf.Write(patchList)
	return buf.Bytes()
}
