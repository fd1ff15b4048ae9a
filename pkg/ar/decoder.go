package ar

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/golang/glog"
	"github.com/vietanhduong/oclbin/pkg/magic"
)

// FileEntry is one decoded archive member. Data aliases the archive buffer.
type FileEntry struct {
	Name   string
	Header *FileEntryHeader
	Data   []byte
}

type Archive struct {
	Files         []FileEntry
	LongFileNames *FileEntry
}

func (a *Archive) Find(name string) *FileEntry {
	for i := range a.Files {
		if a.Files[i].Name == name {
			return &a.Files[i]
		}
	}
	return nil
}

// Decode walks the GNU flavoured archive in buf. Symbol tables ("/") are
// skipped, long names ("/<offset>") are resolved through the "//" member.
func Decode(buf []byte) (*Archive, string, error) {
	if !magic.IsAr(buf) {
		return nil, "", &Error{ErrNotAr, "Not an AR archive - mismatched file signature"}
	}

	var warnings []string
	ret := &Archive{}
	pos := len(arMagic)
	for pos+HEADER_SIZE <= len(buf) {
		header := headerFromBytes(buf[pos : pos+HEADER_SIZE])
		dataPos := pos + HEADER_SIZE
		size := header.FileSize()
		if size > uint64(len(buf)-dataPos) {
			return nil, "", &Error{ErrCorruptedAr, "Corrupt AR archive - file entry exceeds binary size"}
		}
		data := buf[dataPos : dataPos+int(size) : dataPos+int(size)]

		identifier := string(header.Identifier[:])
		if header.TrailingMagic != trailingMagic {
			warnings = append(warnings, fmt.Sprintf("File entry header with identifier '%s' has invalid header trailing string", identifier))
		}

		entry := FileEntry{Name: header.Name(), Header: header, Data: data}
		switch {
		case entry.Name != "":
			ret.Files = append(ret.Files, entry)
		case bytes.HasPrefix(header.Identifier[:], []byte(longFileNamesFile)):
			entry.Name = longFileNamesFile
			ret.LongFileNames = &entry
		case header.Identifier[0] == fileNameTerminator && isDigit(header.Identifier[1]):
			name, ok := ret.longName(header)
			if !ok {
				return nil, "", &Error{ErrInvalidHeader, fmt.Sprintf("Corrupt AR archive - long file name entry has broken identifier : '%s'", identifier)}
			}
			entry.Name = name
			ret.Files = append(ret.Files, entry)
		case bytes.Equal(bytes.TrimRight(header.Identifier[:], " "), []byte{fileNameTerminator}):
			glog.V(5).Infof("Skip ar symbol table (size=%d)", size)
		default:
			return nil, "", &Error{ErrInvalidHeader, fmt.Sprintf("Corrupt AR archive - file entry does not have identifier : '%s'", identifier)}
		}

		pos = dataPos + int(size)
		pos += int(size & 1)
	}
	return ret, joinLines(warnings), nil
}

func (a *Archive) longName(header *FileEntryHeader) (string, bool) {
	if a.LongFileNames == nil {
		return "", false
	}
	digits := bytes.TrimRight(header.Identifier[1:], " ")
	offset, err := strconv.Atoi(string(digits))
	if err != nil || offset < 0 || offset >= len(a.LongFileNames.Data) {
		return "", false
	}
	names := a.LongFileNames.Data[offset:]
	end := bytes.Index(names, []byte{fileNameTerminator, '\n'})
	if end <= 0 {
		return "", false
	}
	return string(names[:end]), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func joinLines(lines []string) string {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.String()
}
