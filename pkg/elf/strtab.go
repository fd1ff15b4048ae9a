package elf

import "github.com/vietanhduong/oclbin/pkg/strref"

// stringTable accumulates NUL terminated strings. Offset 0 always holds the
// empty string.
type stringTable struct {
	data []byte
}

const undefStringOffset uint32 = 0

func newStringTable() *stringTable {
	return &stringTable{data: []byte{0}}
}

func (st *stringTable) append(str strref.Ref) uint32 {
	if str.Empty() {
		return undefStringOffset
	}
	offset := uint32(len(st.data))
	st.data = append(st.data, str...)
	if str[len(str)-1] != 0 {
		st.data = append(st.data, 0)
	}
	return offset
}

func (st *stringTable) lookup(offset uint32) string {
	if uint64(offset) >= uint64(len(st.data)) {
		return ""
	}
	return strref.FromCString(st.data[offset:]).String()
}

func (st *stringTable) bytes() []byte { return st.data }
