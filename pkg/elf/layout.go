package elf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"unsafe"

	"golang.org/x/exp/constraints"
)

var byteOrder = binary.LittleEndian

const (
	fileHeader32Size    = int(unsafe.Sizeof(elf.Header32{}))
	fileHeader64Size    = int(unsafe.Sizeof(elf.Header64{}))
	programHeader32Size = int(unsafe.Sizeof(elf.Prog32{}))
	programHeader64Size = int(unsafe.Sizeof(elf.Prog64{}))
	sectionHeader32Size = int(unsafe.Sizeof(elf.Section32{}))
	sectionHeader64Size = int(unsafe.Sizeof(elf.Section64{}))
)

func FileHeaderSize(class elf.Class) int {
	if class == elf.ELFCLASS32 {
		return fileHeader32Size
	}
	return fileHeader64Size
}

func ProgramHeaderSize(class elf.Class) int {
	if class == elf.ELFCLASS32 {
		return programHeader32Size
	}
	return programHeader64Size
}

func SectionHeaderSize(class elf.Class) int {
	if class == elf.ELFCLASS32 {
		return sectionHeader32Size
	}
	return sectionHeader64Size
}

// NewFileHeader returns a header with the identity and the fixed record sizes
// of the given class filled in.
func NewFileHeader(class elf.Class) FileHeader {
	return FileHeader{
		Identity: Identity{
			Magic:   [4]byte{elf.ELFMAG[0], elf.ELFMAG[1], elf.ELFMAG[2], elf.ELFMAG[3]},
			Class:   class,
			Data:    elf.ELFDATA2LSB,
			Version: elf.EV_CURRENT,
			OSABI:   elf.ELFOSABI_NONE,
		},
		Type:      elf.ET_NONE,
		Machine:   elf.EM_NONE,
		Version:   uint32(elf.EV_CURRENT),
		EhSize:    uint16(FileHeaderSize(class)),
		PhEntSize: uint16(ProgramHeaderSize(class)),
		ShEntSize: uint16(SectionHeaderSize(class)),
	}
}

func (id Identity) bytes() [elf.EI_NIDENT]byte {
	var ident [elf.EI_NIDENT]byte
	copy(ident[:4], id.Magic[:])
	ident[elf.EI_CLASS] = byte(id.Class)
	ident[elf.EI_DATA] = byte(id.Data)
	ident[elf.EI_VERSION] = byte(id.Version)
	ident[elf.EI_OSABI] = byte(id.OSABI)
	ident[elf.EI_ABIVERSION] = id.ABIVersion
	return ident
}

func identityFromBytes(ident [elf.EI_NIDENT]byte) Identity {
	var id Identity
	copy(id.Magic[:], ident[:4])
	id.Class = elf.Class(ident[elf.EI_CLASS])
	id.Data = elf.Data(ident[elf.EI_DATA])
	id.Version = elf.Version(ident[elf.EI_VERSION])
	id.OSABI = elf.OSABI(ident[elf.EI_OSABI])
	id.ABIVersion = ident[elf.EI_ABIVERSION]
	return id
}

func (h *FileHeader) marshal(class elf.Class) []byte {
	var raw any
	switch class {
	case elf.ELFCLASS32:
		raw = &elf.Header32{
			Ident:     h.Identity.bytes(),
			Type:      uint16(h.Type),
			Machine:   uint16(h.Machine),
			Version:   h.Version,
			Entry:     uint32(h.Entry),
			Phoff:     uint32(h.PhOff),
			Shoff:     uint32(h.ShOff),
			Flags:     h.Flags,
			Ehsize:    h.EhSize,
			Phentsize: h.PhEntSize,
			Phnum:     h.PhNum,
			Shentsize: h.ShEntSize,
			Shnum:     h.ShNum,
			Shstrndx:  h.ShStrNdx,
		}
	default:
		raw = &elf.Header64{
			Ident:     h.Identity.bytes(),
			Type:      uint16(h.Type),
			Machine:   uint16(h.Machine),
			Version:   h.Version,
			Entry:     h.Entry,
			Phoff:     h.PhOff,
			Shoff:     h.ShOff,
			Flags:     h.Flags,
			Ehsize:    h.EhSize,
			Phentsize: h.PhEntSize,
			Phnum:     h.PhNum,
			Shentsize: h.ShEntSize,
			Shnum:     h.ShNum,
			Shstrndx:  h.ShStrNdx,
		}
	}
	return pack(raw)
}

func (ph *ProgramHeader) marshal(class elf.Class) []byte {
	var raw any
	switch class {
	case elf.ELFCLASS32:
		raw = &elf.Prog32{
			Type:   uint32(ph.Type),
			Off:    uint32(ph.Offset),
			Vaddr:  uint32(ph.VAddr),
			Paddr:  uint32(ph.PAddr),
			Filesz: uint32(ph.FileSz),
			Memsz:  uint32(ph.MemSz),
			Flags:  uint32(ph.Flags),
			Align:  uint32(ph.Align),
		}
	default:
		raw = &elf.Prog64{
			Type:   uint32(ph.Type),
			Flags:  uint32(ph.Flags),
			Off:    ph.Offset,
			Vaddr:  ph.VAddr,
			Paddr:  ph.PAddr,
			Filesz: ph.FileSz,
			Memsz:  ph.MemSz,
			Align:  ph.Align,
		}
	}
	return pack(raw)
}

func (sh *SectionHeader) marshal(class elf.Class) []byte {
	var raw any
	switch class {
	case elf.ELFCLASS32:
		raw = &elf.Section32{
			Name:      sh.Name,
			Type:      uint32(sh.Type),
			Flags:     uint32(sh.Flags),
			Addr:      uint32(sh.Addr),
			Off:       uint32(sh.Offset),
			Size:      uint32(sh.Size),
			Link:      sh.Link,
			Info:      sh.Info,
			Addralign: uint32(sh.AddrAlign),
			Entsize:   uint32(sh.EntSize),
		}
	default:
		raw = &elf.Section64{
			Name:      sh.Name,
			Type:      uint32(sh.Type),
			Flags:     sh.Flags,
			Addr:      sh.Addr,
			Off:       sh.Offset,
			Size:      sh.Size,
			Link:      sh.Link,
			Info:      sh.Info,
			Addralign: sh.AddrAlign,
			Entsize:   sh.EntSize,
		}
	}
	return pack(raw)
}

// The unmarshal helpers expect buf to hold at least one full record.

func unmarshalFileHeader(buf []byte, class elf.Class) *FileHeader {
	switch class {
	case elf.ELFCLASS32:
		var raw elf.Header32
		unpack(buf[:fileHeader32Size], &raw)
		return &FileHeader{
			Identity:  identityFromBytes(raw.Ident),
			Type:      elf.Type(raw.Type),
			Machine:   elf.Machine(raw.Machine),
			Version:   raw.Version,
			Entry:     uint64(raw.Entry),
			PhOff:     uint64(raw.Phoff),
			ShOff:     uint64(raw.Shoff),
			Flags:     raw.Flags,
			EhSize:    raw.Ehsize,
			PhEntSize: raw.Phentsize,
			PhNum:     raw.Phnum,
			ShEntSize: raw.Shentsize,
			ShNum:     raw.Shnum,
			ShStrNdx:  raw.Shstrndx,
		}
	default:
		var raw elf.Header64
		unpack(buf[:fileHeader64Size], &raw)
		return &FileHeader{
			Identity:  identityFromBytes(raw.Ident),
			Type:      elf.Type(raw.Type),
			Machine:   elf.Machine(raw.Machine),
			Version:   raw.Version,
			Entry:     raw.Entry,
			PhOff:     raw.Phoff,
			ShOff:     raw.Shoff,
			Flags:     raw.Flags,
			EhSize:    raw.Ehsize,
			PhEntSize: raw.Phentsize,
			PhNum:     raw.Phnum,
			ShEntSize: raw.Shentsize,
			ShNum:     raw.Shnum,
			ShStrNdx:  raw.Shstrndx,
		}
	}
}

func unmarshalProgramHeader(buf []byte, class elf.Class) *ProgramHeader {
	switch class {
	case elf.ELFCLASS32:
		var raw elf.Prog32
		unpack(buf[:programHeader32Size], &raw)
		return &ProgramHeader{
			Type:   elf.ProgType(raw.Type),
			Flags:  elf.ProgFlag(raw.Flags),
			Offset: uint64(raw.Off),
			VAddr:  uint64(raw.Vaddr),
			PAddr:  uint64(raw.Paddr),
			FileSz: uint64(raw.Filesz),
			MemSz:  uint64(raw.Memsz),
			Align:  uint64(raw.Align),
		}
	default:
		var raw elf.Prog64
		unpack(buf[:programHeader64Size], &raw)
		return &ProgramHeader{
			Type:   elf.ProgType(raw.Type),
			Flags:  elf.ProgFlag(raw.Flags),
			Offset: raw.Off,
			VAddr:  raw.Vaddr,
			PAddr:  raw.Paddr,
			FileSz: raw.Filesz,
			MemSz:  raw.Memsz,
			Align:  raw.Align,
		}
	}
}

func unmarshalSectionHeader(buf []byte, class elf.Class) *SectionHeader {
	switch class {
	case elf.ELFCLASS32:
		var raw elf.Section32
		unpack(buf[:sectionHeader32Size], &raw)
		return &SectionHeader{
			Name:      raw.Name,
			Type:      elf.SectionType(raw.Type),
			Flags:     uint64(raw.Flags),
			Addr:      uint64(raw.Addr),
			Offset:    uint64(raw.Off),
			Size:      uint64(raw.Size),
			Link:      raw.Link,
			Info:      raw.Info,
			AddrAlign: uint64(raw.Addralign),
			EntSize:   uint64(raw.Entsize),
		}
	default:
		var raw elf.Section64
		unpack(buf[:sectionHeader64Size], &raw)
		return &SectionHeader{
			Name:      raw.Name,
			Type:      elf.SectionType(raw.Type),
			Flags:     raw.Flags,
			Addr:      raw.Addr,
			Offset:    raw.Off,
			Size:      raw.Size,
			Link:      raw.Link,
			Info:      raw.Info,
			AddrAlign: raw.Addralign,
			EntSize:   raw.Entsize,
		}
	}
}

// Records are fixed size, so neither direction can fail once the length has
// been validated.
func pack(raw any) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, byteOrder, raw); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func unpack(buf []byte, raw any) {
	if err := binary.Read(bytes.NewReader(buf), byteOrder, raw); err != nil {
		panic(err)
	}
}

func alignUp[T constraints.Unsigned](value, alignment T) T {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) / alignment * alignment
}
