package ar

import (
	"bytes"
	"errors"
	"unsafe"

	"github.com/vietanhduong/oclbin/pkg/magic"
)

const (
	HEADER_SIZE          = int(unsafe.Sizeof(FileEntryHeader{}))
	MAX_FILE_NAME_LENGTH = len(FileEntryHeader{}.Identifier) - 1

	fileNameTerminator = '/'
	longFileNamesFile  = "//"
	paddingByte        = '\n'
)

var trailingMagic = [2]byte{0x60, 0x0a}

var (
	ErrNotAr         = errors.New("not an ar archive")
	ErrCorruptedAr   = errors.New("corrupted ar archive")
	ErrInvalidHeader = errors.New("invalid ar file entry header")
)

type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Kind }

// FileEntryHeader is the fixed width textual header preceding every entry.
// All fields are ASCII, space padded.
type FileEntryHeader struct {
	Identifier    [16]byte
	ModTime       [12]byte
	OwnerID       [6]byte
	GroupID       [6]byte
	Mode          [8]byte
	Size          [10]byte
	TrailingMagic [2]byte
}

func NewFileEntryHeader() *FileEntryHeader {
	h := &FileEntryHeader{TrailingMagic: trailingMagic}
	fill(h.Identifier[:], "/")
	fill(h.ModTime[:], "0")
	fill(h.OwnerID[:], "0")
	fill(h.GroupID[:], "0")
	fill(h.Mode[:], "644")
	fill(h.Size[:], "0")
	return h
}

// SetMode overrides the octal mode field. It returns false when mode does
// not fit.
func (h *FileEntryHeader) SetMode(mode string) bool { return fill(h.Mode[:], mode) }

func (h *FileEntryHeader) SetModTime(ts string) bool { return fill(h.ModTime[:], ts) }

func (h *FileEntryHeader) SetOwner(uid, gid string) bool {
	if len(uid) > len(h.OwnerID) || len(gid) > len(h.GroupID) {
		return false
	}
	return fill(h.OwnerID[:], uid) && fill(h.GroupID[:], gid)
}

// Name returns the identifier up to its terminator.
func (h *FileEntryHeader) Name() string {
	id := h.Identifier[:]
	if i := bytes.IndexAny(id, "/ "); i >= 0 {
		id = id[:i]
	}
	return string(id)
}

// FileSize parses the leading decimal digits of the size field.
func (h *FileEntryHeader) FileSize() uint64 {
	var size uint64
	for _, c := range h.Size {
		if c < '0' || c > '9' {
			break
		}
		size = size*10 + uint64(c-'0')
	}
	return size
}

func (h *FileEntryHeader) bytes() []byte {
	ret := make([]byte, 0, HEADER_SIZE)
	ret = append(ret, h.Identifier[:]...)
	ret = append(ret, h.ModTime[:]...)
	ret = append(ret, h.OwnerID[:]...)
	ret = append(ret, h.GroupID[:]...)
	ret = append(ret, h.Mode[:]...)
	ret = append(ret, h.Size[:]...)
	ret = append(ret, h.TrailingMagic[:]...)
	return ret
}

func headerFromBytes(raw []byte) *FileEntryHeader {
	h := &FileEntryHeader{}
	for _, field := range [][]byte{
		h.Identifier[:], h.ModTime[:], h.OwnerID[:], h.GroupID[:], h.Mode[:], h.Size[:], h.TrailingMagic[:],
	} {
		raw = raw[copy(field, raw):]
	}
	return h
}

func fill(field []byte, value string) bool {
	if len(value) > len(field) {
		return false
	}
	n := copy(field, value)
	for i := n; i < len(field); i++ {
		field[i] = ' '
	}
	return true
}

var arMagic = magic.AR
