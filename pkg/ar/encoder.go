package ar

import (
	"fmt"
	"strconv"
)

type entry struct {
	header *FileEntryHeader
	data   []byte
}

// Encoder builds an archive in append order. Returned headers remain
// mutable until Encode.
type Encoder struct {
	padTo8Bytes  bool
	entries      []*entry
	size         int
	paddingEntry int
}

// NewEncoder returns an encoder. With padTo8Bytes every file's data starts
// at an 8 byte aligned archive offset, using "pad_<n>" filler entries.
func NewEncoder(padTo8Bytes bool) *Encoder {
	return &Encoder{padTo8Bytes: padTo8Bytes}
}

// AppendFileEntry returns nil and leaves the encoder untouched when name is
// empty or longer than MAX_FILE_NAME_LENGTH.
func (e *Encoder) AppendFileEntry(name string, data []byte) *FileEntryHeader {
	if name == "" || len(name) > MAX_FILE_NAME_LENGTH {
		return nil
	}

	if e.padTo8Bytes && (len(arMagic)+e.size+HEADER_SIZE)%8 != 0 {
		padName := fmt.Sprintf("pad_%d", e.paddingEntry)
		e.paddingEntry++
		padSize := 8 - (e.size+2*HEADER_SIZE+len(arMagic))%8
		e.push(newHeader(padName, padSize), make([]byte, padSize), ' ')
	}

	header := newHeader(name, len(data))
	e.push(header, append([]byte(nil), data...), 0)
	return header
}

func (e *Encoder) push(header *FileEntryHeader, data []byte, filler byte) {
	if filler != 0 {
		for i := range data {
			data[i] = filler
		}
	}
	e.entries = append(e.entries, &entry{header: header, data: data})
	e.size += HEADER_SIZE + len(data) + len(data)%2
}

func newHeader(name string, size int) *FileEntryHeader {
	header := NewFileEntryHeader()
	if !fill(header.Identifier[:], name+string(fileNameTerminator)) {
		panic(fmt.Sprintf("ar file name %q exceeds identifier field", name))
	}
	if !fill(header.Size[:], strconv.Itoa(size)) {
		panic(fmt.Sprintf("ar file size %d exceeds size field", size))
	}
	return header
}

// Encode returns the archive magic followed by every entry. Odd sized data
// is followed by one padding byte.
func (e *Encoder) Encode() []byte {
	ret := make([]byte, 0, len(arMagic)+e.size)
	ret = append(ret, arMagic...)
	for _, en := range e.entries {
		ret = append(ret, en.header.bytes()...)
		ret = append(ret, en.data...)
		if len(en.data)%2 != 0 {
			ret = append(ret, paddingByte)
		}
	}
	return ret
}
