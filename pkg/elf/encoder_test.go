package elf

import (
	"debug/elf"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncoder(t *testing.T, class elf.Class, opts ...EncoderOption) *Encoder {
	t.Helper()
	e, err := NewEncoder(class, opts...)
	require.NoError(t, err)
	return e
}

func TestEncoderEmpty(t *testing.T) {
	for _, class := range []elf.Class{elf.ELFCLASS32, elf.ELFCLASS64} {
		t.Run(class.String(), func(t *testing.T) {
			e := mustEncoder(t, class)
			raw := e.Encode()
			require.Len(t, raw, FileHeaderSize(class))

			decoded, warning, err := Decode(raw, class)
			require.NoError(t, err)
			assert.Empty(t, warning)
			require.NotNil(t, decoded.FileHeader)
			assert.Zero(t, decoded.FileHeader.ShNum)
			assert.Zero(t, decoded.FileHeader.ShOff)
			assert.Zero(t, decoded.FileHeader.ShStrNdx)
			assert.Empty(t, decoded.SectionHeaders)
			assert.Empty(t, decoded.ProgramHeaders)
		})
	}
}

func TestEncoderLayout64(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS64)
	e.FileHeader().Type = ET_OPENCL_EXECUTABLE
	e.AppendNamedSection(elf.SHT_PROGBITS, "a", []byte{1, 2, 3})
	raw := e.Encode()

	// header(64) + 3 section headers(3*64) + data(8) + names(13 aligned to 16)
	require.Len(t, raw, 280)

	decoded, _, err := Decode(raw, elf.ELFCLASS64)
	require.NoError(t, err)
	fh := decoded.FileHeader
	require.NotNil(t, fh)
	assert.Equal(t, ET_OPENCL_EXECUTABLE, fh.Type)
	assert.Equal(t, uint16(3), fh.ShNum)
	assert.Equal(t, uint64(64), fh.ShOff)
	assert.Equal(t, uint16(0), fh.PhNum)
	assert.Equal(t, uint64(0), fh.PhOff)
	assert.Equal(t, uint16(2), fh.ShStrNdx)

	want := []SectionHeader{
		{},
		{Name: 11, Type: elf.SHT_PROGBITS, Offset: 256, Size: 3, AddrAlign: 8},
		{Name: 1, Type: elf.SHT_STRTAB, Offset: 264, Size: 13, AddrAlign: 8},
	}
	got := make([]SectionHeader, 0, len(decoded.SectionHeaders))
	for _, s := range decoded.SectionHeaders {
		got = append(got, *s.Header)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Section headers mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []byte{1, 2, 3}, decoded.SectionHeaders[1].Data)
	assert.Equal(t, "a", decoded.SectionName(1))
	assert.Equal(t, SectionNameShStrTab, decoded.SectionName(2))
	assert.Equal(t, "", decoded.SectionName(0))
	require.NotNil(t, decoded.FindSection("a"))
	assert.Len(t, decoded.SectionsByType(elf.SHT_PROGBITS), 1)
}

func TestEncoderLayout32(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS32)
	e.AppendNamedSection(elf.SHT_PROGBITS, "a", []byte{1, 2, 3})
	raw := e.Encode()

	// header(52) + 3 section headers(3*40) + data(8) + names(16)
	require.Len(t, raw, 196)
	assert.Equal(t, elf.ELFCLASS32, NumBits(raw))

	decoded, _, err := Decode(raw, elf.ELFCLASS32)
	require.NoError(t, err)
	require.Len(t, decoded.SectionHeaders, 3)
	assert.Equal(t, uint64(172), decoded.SectionHeaders[1].Header.Offset)
	assert.Equal(t, uint64(180), decoded.SectionHeaders[2].Header.Offset)
	assert.Equal(t, []byte{1, 2, 3}, decoded.SectionHeaders[1].Data)
	assert.Equal(t, "a", decoded.SectionName(1))
}

func TestEncoderSegments(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS64)
	_, err := e.AppendSegment(ProgramHeader{Type: elf.PT_LOAD, Align: 16, VAddr: 0x1000}, []byte{9, 9})
	require.NoError(t, err)
	_, err = e.AppendTypedSegment(elf.PT_NOTE, []byte{7})
	require.NoError(t, err)
	e.AppendNamedSection(elf.SHT_PROGBITS, "text", []byte{5, 5, 5, 5})

	raw := e.Encode()
	decoded, _, err := Decode(raw, elf.ELFCLASS64)
	require.NoError(t, err)

	fh := decoded.FileHeader
	assert.Equal(t, uint64(64), fh.PhOff)
	assert.Equal(t, uint64(64+2*56), fh.ShOff)
	dataOffset := alignUp(uint64(64+2*56+3*64), 16)

	require.Len(t, decoded.ProgramHeaders, 2)
	load := decoded.ProgramHeaders[0]
	assert.Equal(t, dataOffset, load.Header.Offset)
	assert.Equal(t, uint64(2), load.Header.FileSz)
	assert.Equal(t, uint64(0x1000), load.Header.VAddr)
	assert.Equal(t, []byte{9, 9}, load.Data)

	note := decoded.ProgramHeaders[1]
	assert.Equal(t, dataOffset+16, note.Header.Offset)
	assert.Equal(t, []byte{7}, note.Data)

	text := decoded.FindSection("text")
	require.NotNil(t, text)
	assert.Equal(t, dataOffset+24, text.Header.Offset)
	assert.Equal(t, []byte{5, 5, 5, 5}, text.Data)
	assert.Len(t, decoded.SegmentsByType(elf.PT_LOAD), 1)
}

func TestEncoderIdempotent(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS64)
	e.AppendNamedSection(SHT_OPENCL_DEV_BINARY, SectionNameDeviceBinary, []byte("binary"))
	_, err := e.AppendTypedSegment(elf.PT_LOAD, []byte("seg"))
	require.NoError(t, err)
	first := e.Encode()
	second := e.Encode()
	assert.Equal(t, first, second)
}

func TestEncoderNoBitsSection(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS64)
	sh := e.AppendSection(SectionHeader{Type: elf.SHT_NOBITS, Size: 128}, []byte{1, 2, 3})
	assert.Equal(t, uint64(0), sh.Offset)
	assert.Equal(t, uint64(128), sh.Size)

	decoded, _, err := Decode(e.Encode(), elf.ELFCLASS64)
	require.NoError(t, err)
	require.Len(t, decoded.SectionHeaders, 3)
	assert.Equal(t, uint64(0), decoded.SectionHeaders[1].Header.Offset)
	assert.Empty(t, decoded.SectionHeaders[1].Data)
}

func TestEncoderOptions(t *testing.T) {
	t.Run("zero alignment", func(t *testing.T) {
		_, err := NewEncoder(elf.ELFCLASS64, WithDataAlignment(0))
		require.ErrorIs(t, err, ErrZeroAlignment)
	})

	t.Run("unsupported class", func(t *testing.T) {
		_, err := NewEncoder(elf.ELFCLASSNONE)
		require.Error(t, err)
	})

	t.Run("no section names", func(t *testing.T) {
		e := mustEncoder(t, elf.ELFCLASS64, WithSectionNames(false))
		assert.Equal(t, uint32(0), e.AppendSectionName("name"))
		sh := e.AppendNamedSection(elf.SHT_PROGBITS, "name", []byte{1})
		assert.Equal(t, uint32(0), sh.Name)

		decoded, _, err := Decode(e.Encode(), elf.ELFCLASS64)
		require.NoError(t, err)
		assert.Len(t, decoded.SectionHeaders, 2)
		assert.Zero(t, decoded.FileHeader.ShStrNdx)
	})

	t.Run("no undef section", func(t *testing.T) {
		e := mustEncoder(t, elf.ELFCLASS64, WithUndefSection(false))
		e.AppendNamedSection(elf.SHT_PROGBITS, "name", []byte{1})

		decoded, _, err := Decode(e.Encode(), elf.ELFCLASS64)
		require.NoError(t, err)
		require.Len(t, decoded.SectionHeaders, 1)
		assert.Equal(t, elf.SHT_PROGBITS, decoded.SectionHeaders[0].Header.Type)
		assert.Zero(t, decoded.FileHeader.ShStrNdx)
	})

	t.Run("large default alignment", func(t *testing.T) {
		e := mustEncoder(t, elf.ELFCLASS64, WithDataAlignment(64))
		e.AppendNamedSection(elf.SHT_PROGBITS, "a", []byte{1})
		e.AppendNamedSection(elf.SHT_PROGBITS, "b", []byte{2})
		raw := e.Encode()
		assert.Zero(t, len(raw)%64)

		decoded, _, err := Decode(raw, elf.ELFCLASS64)
		require.NoError(t, err)
		a, b := decoded.FindSection("a"), decoded.FindSection("b")
		require.NotNil(t, a)
		require.NotNil(t, b)
		// Section payloads never align beyond 8 bytes.
		assert.Equal(t, a.Header.Offset+8, b.Header.Offset)
		strtab := decoded.SectionHeaders[decoded.FileHeader.ShStrNdx]
		assert.Zero(t, (strtab.Header.Offset-a.Header.Offset)%64)
	})
}

func TestEncoderSegmentZeroAlignment(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS64)
	_, err := e.AppendSegment(ProgramHeader{Type: elf.PT_LOAD}, []byte{1})
	require.ErrorIs(t, err, ErrZeroAlignment)

	_, err = e.AppendSegment(ProgramHeader{Type: elf.PT_LOAD}, nil)
	require.NoError(t, err)

	decoded, _, err := Decode(e.Encode(), elf.ELFCLASS64)
	require.NoError(t, err)
	assert.Len(t, decoded.ProgramHeaders, 1)
}

func TestEncoderHeaderLimits(t *testing.T) {
	t.Run("sections", func(t *testing.T) {
		e := mustEncoder(t, elf.ELFCLASS64)
		appended := 0
		for e.AppendSection(SectionHeader{Type: elf.SHT_PROGBITS}, nil) != nil {
			appended++
		}
		// Undef and names table take the remaining two slots.
		assert.Equal(t, MAX_SECTION_HEADERS-2, appended)

		decoded, _, err := Decode(e.Encode(), elf.ELFCLASS64)
		require.NoError(t, err)
		assert.Equal(t, uint16(MAX_SECTION_HEADERS), decoded.FileHeader.ShNum)
		assert.Equal(t, uint16(MAX_SECTION_HEADERS-1), decoded.FileHeader.ShStrNdx)
		assert.Equal(t, SectionNameShStrTab, decoded.SectionName(MAX_SECTION_HEADERS-1))
	})

	t.Run("segments", func(t *testing.T) {
		e := mustEncoder(t, elf.ELFCLASS64)
		for i := 0; i < MAX_PROGRAM_HEADERS; i++ {
			_, err := e.AppendSegment(ProgramHeader{Type: elf.PT_NULL}, nil)
			require.NoError(t, err)
		}
		_, err := e.AppendSegment(ProgramHeader{Type: elf.PT_NULL}, nil)
		require.ErrorIs(t, err, ErrTooManyHeaders)

		header := DecodeFileHeader(e.Encode(), elf.ELFCLASS64)
		require.NotNil(t, header)
		assert.Equal(t, uint16(MAX_PROGRAM_HEADERS), header.PhNum)
	})
}

func TestEncoderSectionNames(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS64)
	assert.Equal(t, uint32(0), e.AppendSectionName(""))
	first := e.AppendSectionName("abc")
	assert.Equal(t, uint32(len(SectionNameShStrTab)+2), first)
	// Already terminated strings are not terminated twice.
	second := e.AppendSectionName("de\x00")
	assert.Equal(t, first+4, second)
	third := e.AppendSectionName("f")
	assert.Equal(t, second+3, third)
}

func TestEncoderRemoveSection(t *testing.T) {
	e := mustEncoder(t, elf.ELFCLASS64)
	e.AppendNamedSection(elf.SHT_PROGBITS, "keep", []byte{1})
	e.AppendNamedSection(elf.SHT_PROGBITS, "drop", []byte{2})
	e.AppendNamedSection(elf.SHT_NOTE, "drop", []byte{3})
	assert.Equal(t, 1, e.RemoveSection(elf.SHT_PROGBITS, "drop"))
	assert.Equal(t, 0, e.RemoveSection(elf.SHT_PROGBITS, "missing"))

	decoded, _, err := Decode(e.Encode(), elf.ELFCLASS64)
	require.NoError(t, err)
	require.Len(t, decoded.SectionHeaders, 4)
	assert.Equal(t, "keep", decoded.SectionName(1))
	assert.Equal(t, "drop", decoded.SectionName(2))
	assert.Equal(t, elf.SHT_NOTE, decoded.SectionHeaders[2].Header.Type)
	assert.Equal(t, []byte{3}, decoded.SectionHeaders[2].Data)
}
