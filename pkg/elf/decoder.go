package elf

import (
	"debug/elf"
	"fmt"

	"github.com/samber/lo"
	"github.com/vietanhduong/oclbin/pkg/magic"
	"github.com/vietanhduong/oclbin/pkg/strref"
)

// DecodeFileHeader returns nil if buf is too short, does not carry the ELF
// magic or was written for a different class than requested.
func DecodeFileHeader(buf []byte, class elf.Class) *FileHeader {
	if len(buf) < FileHeaderSize(class) {
		return nil
	}
	if !magic.IsElf(buf) {
		return nil
	}
	if elf.Class(buf[elf.EI_CLASS]) != class {
		return nil
	}
	return unmarshalFileHeader(buf, class)
}

// Decode parses buf into a view whose headers and payloads alias buf. Any
// bounds violation discards everything parsed so far.
func Decode(buf []byte, class elf.Class) (*Elf, string, error) {
	ret := &Elf{Class: class}
	header := DecodeFileHeader(buf, class)
	if header == nil {
		return &Elf{Class: class}, "", newError(ErrInvalidHeader, "Invalid or missing ELF header")
	}

	size := uint64(len(buf))
	if header.PhNum != 0 && !tableFits(header.PhOff, header.PhNum, header.PhEntSize, ProgramHeaderSize(class), size) {
		return &Elf{Class: class}, "", newError(ErrProgramHeadersTable, "Out of bounds program headers table")
	}
	if header.ShNum != 0 && !tableFits(header.ShOff, header.ShNum, header.ShEntSize, SectionHeaderSize(class), size) {
		return &Elf{Class: class}, "", newError(ErrSectionHeadersTable, "Out of bounds section headers table")
	}

	ret.ProgramHeaders = make([]SegmentData, 0, header.PhNum)
	for i := 0; i < int(header.PhNum); i++ {
		off := header.PhOff + uint64(i)*uint64(header.PhEntSize)
		ph := unmarshalProgramHeader(buf[off:], class)
		var data []byte
		if ph.FileSz != 0 {
			if !rangeFits(ph.Offset, ph.FileSz, size) {
				return &Elf{Class: class}, "", newError(ErrProgramHeader,
					fmt.Sprintf("Out of bounds program header offset/filesz, program header idx : %d", i))
			}
			data = buf[ph.Offset : ph.Offset+ph.FileSz : ph.Offset+ph.FileSz]
		}
		ret.ProgramHeaders = append(ret.ProgramHeaders, SegmentData{Header: ph, Data: data})
	}

	ret.SectionHeaders = make([]SectionData, 0, header.ShNum)
	for i := 0; i < int(header.ShNum); i++ {
		off := header.ShOff + uint64(i)*uint64(header.ShEntSize)
		sh := unmarshalSectionHeader(buf[off:], class)
		var data []byte
		if sh.Type != elf.SHT_NOBITS {
			if !rangeFits(sh.Offset, sh.Size, size) {
				return &Elf{Class: class}, "", newError(ErrSectionHeader,
					fmt.Sprintf("Out of bounds section header offset/size, section header idx : %d", i))
			}
			data = buf[sh.Offset : sh.Offset+sh.Size : sh.Offset+sh.Size]
		}
		ret.SectionHeaders = append(ret.SectionHeaders, SectionData{Header: sh, Data: data})
	}

	ret.FileHeader = header
	return ret, "", nil
}

// IsElf reports whether buf holds a readable 32-bit or 64-bit ELF header.
func IsElf(buf []byte) bool { return NumBits(buf) != elf.ELFCLASSNONE }

func NumBits(buf []byte) elf.Class {
	if DecodeFileHeader(buf, elf.ELFCLASS64) != nil {
		return elf.ELFCLASS64
	}
	if DecodeFileHeader(buf, elf.ELFCLASS32) != nil {
		return elf.ELFCLASS32
	}
	return elf.ELFCLASSNONE
}

// SectionName resolves the name of section idx through the section names
// table. It returns an empty string when either is missing or out of range.
func (e *Elf) SectionName(idx int) string {
	if e.FileHeader == nil || idx < 0 || idx >= len(e.SectionHeaders) {
		return ""
	}
	return e.Name(e.SectionHeaders[idx].Header.Name)
}

// Name reads a NUL terminated string at offset in the section names table.
func (e *Elf) Name(offset uint32) string {
	if e.FileHeader == nil {
		return ""
	}
	strtab := int(e.FileHeader.ShStrNdx)
	if strtab == int(elf.SHN_UNDEF) || strtab >= len(e.SectionHeaders) {
		return ""
	}
	data := e.SectionHeaders[strtab].Data
	if uint64(offset) >= uint64(len(data)) {
		return ""
	}
	return strref.FromCString(data[offset:]).String()
}

func (e *Elf) FindSection(name string) *SectionData {
	for i := range e.SectionHeaders {
		if e.SectionName(i) == name {
			return &e.SectionHeaders[i]
		}
	}
	return nil
}

func (e *Elf) SectionsByType(typ elf.SectionType) []SectionData {
	return lo.Filter(e.SectionHeaders, func(s SectionData, _ int) bool { return s.Header.Type == typ })
}

func (e *Elf) SegmentsByType(typ elf.ProgType) []SegmentData {
	return lo.Filter(e.ProgramHeaders, func(s SegmentData, _ int) bool { return s.Header.Type == typ })
}

// tableFits also rejects entry sizes smaller than the fixed record, the
// entries could not be read otherwise.
func tableFits(off uint64, num, entSize uint16, recordSize int, size uint64) bool {
	if int(entSize) < recordSize {
		return false
	}
	return rangeFits(off, uint64(num)*uint64(entSize), size)
}

func rangeFits(off, length, size uint64) bool {
	return off <= size && length <= size-off
}
