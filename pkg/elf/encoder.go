package elf

import (
	"debug/elf"
	"fmt"

	"github.com/golang/glog"
	"github.com/samber/lo"
	"github.com/vietanhduong/oclbin/pkg/strref"
	"golang.org/x/exp/slices"
)

type EncoderOption func(*Encoder)

// WithUndefSection controls the reserved index 0 section header.
func WithUndefSection(enabled bool) EncoderOption {
	return func(e *Encoder) { e.addUndefSection = enabled }
}

// WithSectionNames controls the .shstrtab section holding section names.
func WithSectionNames(enabled bool) EncoderOption {
	return func(e *Encoder) { e.addSectionNames = enabled }
}

func WithDataAlignment(alignment uint64) EncoderOption {
	return func(e *Encoder) { e.defaultDataAlignment = alignment }
}

// Encoder accumulates headers and payloads and serializes them on Encode.
// It must not be used from several goroutines at once.
type Encoder struct {
	class          elf.Class
	header         FileHeader
	programHeaders []*ProgramHeader
	sectionHeaders []*SectionHeader
	data           []byte
	strtab         *stringTable

	shStrTabNameOffset     uint32
	addUndefSection        bool
	addSectionNames        bool
	defaultDataAlignment   uint64
	maxDataAlignmentNeeded uint64
}

func NewEncoder(class elf.Class, opts ...EncoderOption) (*Encoder, error) {
	if class != elf.ELFCLASS32 && class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("unsupported elf class %s", class.String())
	}
	e := &Encoder{
		class:                  class,
		header:                 NewFileHeader(class),
		strtab:                 newStringTable(),
		addUndefSection:        true,
		addSectionNames:        true,
		defaultDataAlignment:   DEFAULT_DATA_ALIGNMENT,
		maxDataAlignmentNeeded: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultDataAlignment == 0 {
		return nil, newError(ErrZeroAlignment, "Invalid default data alignment : 0")
	}
	e.shStrTabNameOffset = e.AppendSectionName(SectionNameShStrTab)
	if e.addUndefSection {
		e.sectionHeaders = append(e.sectionHeaders, &SectionHeader{})
	}
	return e, nil
}

func (e *Encoder) Class() elf.Class { return e.class }

// FileHeader returns the header template. Counts, table offsets and the
// section names index are computed by Encode.
func (e *Encoder) FileHeader() *FileHeader { return &e.header }

// AppendSection stores the payload aligned to min(default alignment, 8) and
// back-fills offset and size relative to the payload region. It returns nil
// once the table holds MAX_SECTION_HEADERS entries.
func (e *Encoder) AppendSection(header SectionHeader, data []byte) *SectionHeader {
	// One slot stays free for the section names table.
	if len(e.sectionHeaders)+2 > MAX_SECTION_HEADERS {
		glog.V(4).Infof("Section headers table full, dropping section type %s", header.Type)
		return nil
	}
	sh := &header
	e.sectionHeaders = append(e.sectionHeaders, sh)
	if sh.Type != elf.SHT_NOBITS && len(data) > 0 {
		alignment := lo.Min([]uint64{e.defaultDataAlignment, 8})
		sh.Offset = e.appendData(data, alignment)
		sh.Size = uint64(len(data))
	}
	return sh
}

func (e *Encoder) AppendNamedSection(typ elf.SectionType, name string, data []byte) *SectionHeader {
	return e.AppendSection(SectionHeader{
		Type:      typ,
		Name:      e.AppendSectionName(name),
		AddrAlign: 8,
	}, data)
}

// AppendSegment aligns the payload to the segment's own alignment, which has
// to be non zero whenever data is given.
func (e *Encoder) AppendSegment(header ProgramHeader, data []byte) (*ProgramHeader, error) {
	if len(data) > 0 && header.Align == 0 {
		return nil, newError(ErrZeroAlignment, "Invalid segment alignment : 0")
	}
	if len(e.programHeaders) >= MAX_PROGRAM_HEADERS {
		return nil, newError(ErrTooManyHeaders, fmt.Sprintf("Too many program headers : %d", len(e.programHeaders)+1))
	}
	ph := &header
	e.maxDataAlignmentNeeded = lo.Max([]uint64{e.maxDataAlignmentNeeded, ph.Align})
	e.programHeaders = append(e.programHeaders, ph)
	if len(data) > 0 {
		ph.Offset = e.appendData(data, ph.Align)
		ph.FileSz = uint64(len(data))
	}
	return ph, nil
}

func (e *Encoder) AppendTypedSegment(typ elf.ProgType, data []byte) (*ProgramHeader, error) {
	return e.AppendSegment(ProgramHeader{Type: typ, Align: e.defaultDataAlignment}, data)
}

// AppendSectionName returns the string table offset of name, or 0 when name
// is empty or the encoder keeps no names.
func (e *Encoder) AppendSectionName(name string) uint32 {
	if !e.addSectionNames {
		return undefStringOffset
	}
	return e.strtab.append(strref.FromBytes([]byte(name)))
}

// RemoveSection drops every section header of the given type and name. The
// payload stays in place.
func (e *Encoder) RemoveSection(typ elf.SectionType, name string) int {
	before := len(e.sectionHeaders)
	e.sectionHeaders = slices.DeleteFunc(e.sectionHeaders, func(sh *SectionHeader) bool {
		return sh.Type == typ && e.strtab.lookup(sh.Name) == name
	})
	return before - len(e.sectionHeaders)
}

func (e *Encoder) appendData(data []byte, alignment uint64) uint64 {
	offset := alignUp(uint64(len(e.data)), alignment)
	end := alignUp(offset+uint64(len(data)), alignment)
	e.data = append(e.data, make([]byte, offset-uint64(len(e.data)))...)
	e.data = append(e.data, data...)
	e.data = append(e.data, make([]byte, end-uint64(len(e.data)))...)
	return offset
}

// Encode lays out, in order: file header, program headers, section headers,
// the payload region aligned to the largest segment alignment and finally the
// section names table. It does not modify the encoder.
func (e *Encoder) Encode() []byte {
	header := e.header
	programHeaders := lo.Map(e.programHeaders, func(ph *ProgramHeader, _ int) ProgramHeader { return *ph })
	sectionHeaders := lo.Map(e.sectionHeaders, func(sh *SectionHeader, _ int) SectionHeader { return *sh })

	if e.addUndefSection && len(sectionHeaders) == 1 {
		sectionHeaders = nil
	}

	var names []byte
	var paddingBeforeNames, alignedNamesSize uint64
	if len(sectionHeaders) > 0 && e.addUndefSection && e.addSectionNames {
		names = e.strtab.bytes()
		alignedDataSize := alignUp(uint64(len(e.data)), e.defaultDataAlignment)
		paddingBeforeNames = alignedDataSize - uint64(len(e.data))
		alignedNamesSize = alignUp(uint64(len(names)), e.defaultDataAlignment)
		header.ShStrNdx = uint16(len(sectionHeaders))
		sectionHeaders = append(sectionHeaders, SectionHeader{
			Type:      elf.SHT_STRTAB,
			Name:      e.shStrTabNameOffset,
			Offset:    alignedDataSize,
			Size:      uint64(len(names)),
			AddrAlign: e.defaultDataAlignment,
		})
	}

	header.PhNum = uint16(len(programHeaders))
	header.ShNum = uint16(len(sectionHeaders))

	programHeadersOffset := uint64(header.EhSize)
	sectionHeadersOffset := programHeadersOffset + uint64(header.PhEntSize)*uint64(header.PhNum)
	if len(programHeaders) > 0 {
		header.PhOff = programHeadersOffset
	}
	if len(sectionHeaders) > 0 {
		header.ShOff = sectionHeadersOffset
	}
	dataOffset := alignUp(sectionHeadersOffset+uint64(header.ShEntSize)*uint64(header.ShNum), e.maxDataAlignmentNeeded)

	ret := make([]byte, 0, dataOffset+uint64(len(e.data))+paddingBeforeNames+alignedNamesSize)
	ret = appendPadded(ret, header.marshal(e.class), int(header.EhSize))

	for i := range programHeaders {
		ph := &programHeaders[i]
		if ph.FileSz != 0 {
			ph.Offset += dataOffset
		}
		ret = appendPadded(ret, ph.marshal(e.class), int(header.PhEntSize))
	}

	for i := range sectionHeaders {
		sh := &sectionHeaders[i]
		if sh.Type != elf.SHT_NOBITS && sh.Size != 0 {
			sh.Offset += dataOffset
		}
		ret = appendPadded(ret, sh.marshal(e.class), int(header.ShEntSize))
	}

	ret = padTo(ret, dataOffset)
	ret = append(ret, e.data...)
	if names != nil {
		ret = append(ret, make([]byte, paddingBeforeNames)...)
		ret = append(ret, names...)
		ret = append(ret, make([]byte, alignedNamesSize-uint64(len(names)))...)
	}
	return ret
}

func padTo(dst []byte, size uint64) []byte {
	if n := uint64(len(dst)); n < size {
		dst = append(dst, make([]byte, size-n)...)
	}
	return dst
}

// appendPadded writes record and zero fills up to size when the declared
// entry size exceeds the record.
func appendPadded(dst, record []byte, size int) []byte {
	dst = append(dst, record...)
	if pad := size - len(record); pad > 0 {
		dst = append(dst, make([]byte, pad)...)
	}
	return dst
}
