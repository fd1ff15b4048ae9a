package elf

import (
	"debug/elf"
	"errors"
)

// OpenCL vendor section types.
const (
	SHT_OPENCL_RESERVED_START       elf.SectionType = 0xff000000
	SHT_OPENCL_SOURCE               elf.SectionType = 0xff000000
	SHT_OPENCL_HEADER               elf.SectionType = 0xff000001
	SHT_OPENCL_LLVM_TEXT            elf.SectionType = 0xff000002
	SHT_OPENCL_LLVM_BINARY          elf.SectionType = 0xff000003
	SHT_OPENCL_LLVM_ARCHIVE         elf.SectionType = 0xff000004
	SHT_OPENCL_DEV_BINARY           elf.SectionType = 0xff000005
	SHT_OPENCL_OPTIONS              elf.SectionType = 0xff000006
	SHT_OPENCL_PCH                  elf.SectionType = 0xff000007
	SHT_OPENCL_DEV_DEBUG            elf.SectionType = 0xff000008
	SHT_OPENCL_SPIRV                elf.SectionType = 0xff000009
	SHT_OPENCL_NON_COHERENT_ATOMICS elf.SectionType = 0xff00000a
	SHT_OPENCL_SPIRV_SC_IDS         elf.SectionType = 0xff00000b
	SHT_OPENCL_SPIRV_SC_VALUES      elf.SectionType = 0xff00000c
	SHT_OPENCL_RESERVED_END         elf.SectionType = 0xfffffff
)

// OpenCL vendor file types.
const (
	ET_OPENCL_RESERVED_START elf.Type = 0xff01
	ET_OPENCL_SOURCE         elf.Type = 0xff01
	ET_OPENCL_OBJECTS        elf.Type = 0xff02
	ET_OPENCL_LIBRARY        elf.Type = 0xff03
	ET_OPENCL_EXECUTABLE     elf.Type = 0xff04
	ET_OPENCL_DEBUG          elf.Type = 0xff05
	ET_OPENCL_RESERVED_END   elf.Type = 0xff05
)

const (
	SectionNameShStrTab = ".shstrtab"

	SectionNameBuildOptions = "BuildOptions"
	SectionNameSpirvObject  = "SPIRV Object"
	SectionNameLlvmObject   = "Intel(R) OpenCL LLVM Object"
	SectionNameDeviceDebug  = "Intel(R) OpenCL Device Debug"
	SectionNameDeviceBinary = "Intel(R) OpenCL Device Binary"
)

const DEFAULT_DATA_ALIGNMENT = 8

// Header counts at or above these values switch to extended numbering
// (PN_XNUM, SHN_LORESERVE), which the encoder does not emit.
const (
	MAX_PROGRAM_HEADERS = 0xffff - 1
	MAX_SECTION_HEADERS = int(elf.SHN_LORESERVE) - 1
)

var (
	ErrInvalidHeader       = errors.New("invalid elf header")
	ErrProgramHeadersTable = errors.New("program headers table out of bounds")
	ErrProgramHeader       = errors.New("program header out of bounds")
	ErrSectionHeadersTable = errors.New("section headers table out of bounds")
	ErrSectionHeader       = errors.New("section header out of bounds")
	ErrZeroAlignment       = errors.New("zero alignment")
	ErrTooManyHeaders      = errors.New("too many headers")
)

// Error carries the diagnostic text verbatim; Kind is one of the Err* sentinels.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, reason string) *Error { return &Error{Kind: kind, Reason: reason} }

type Identity struct {
	Magic      [4]byte
	Class      elf.Class
	Data       elf.Data
	Version    elf.Version
	OSABI      elf.OSABI
	ABIVersion uint8
}

// FileHeader is the class independent form of the ELF file header. Address
// sized fields are widened to 64 bits.
type FileHeader struct {
	Identity  Identity
	Type      elf.Type
	Machine   elf.Machine
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrNdx  uint16
}

type ProgramHeader struct {
	Type   elf.ProgType
	Flags  elf.ProgFlag
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

type SectionHeader struct {
	Name      uint32
	Type      elf.SectionType
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

// SegmentData and SectionData pair a header with its payload. Data aliases
// the decoded buffer.
type SegmentData struct {
	Header *ProgramHeader
	Data   []byte
}

type SectionData struct {
	Header *SectionHeader
	Data   []byte
}

// Elf is a read-only view over a decoded buffer.
type Elf struct {
	Class          elf.Class
	FileHeader     *FileHeader
	ProgramHeaders []SegmentData
	SectionHeaders []SectionData
}
