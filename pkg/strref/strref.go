package strref

import "bytes"

// Ref is a read-only view over caller owned bytes. It never copies and never
// outlives the buffer it was taken from.
type Ref []byte

func FromLiteral(s string) Ref {
	if n := len(s); n > 0 && s[n-1] == 0 {
		s = s[:n-1]
	}
	return Ref(s)
}

func FromBytes(b []byte) Ref { return Ref(b) }

// FromCString returns the view up to (not including) the first NUL.
func FromCString(b []byte) Ref {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return Ref(b[:i])
	}
	return Ref(b)
}

func (r Ref) Len() int       { return len(r) }
func (r Ref) Empty() bool    { return len(r) == 0 }
func (r Ref) String() string { return string(r) }
func (r Ref) Bytes() []byte  { return []byte(r) }

// Equals is not a prefix test, regions of different length never match.
func (r Ref) Equals(other Ref) bool {
	if len(r) != len(other) {
		return false
	}
	return bytes.Equal(r, other)
}

func (r Ref) EqualsString(s string) bool { return r.Equals(Ref(s)) }

func (r Ref) StartsWith(prefix Ref) bool { return HasSameMagic(prefix, r) }

func (r Ref) Contains(sub Ref) bool { return bytes.Contains(r, sub) }

// HasSameMagic reports whether buf starts with expected. A buffer shorter than
// the magic never matches.
func HasSameMagic(expected, buf []byte) bool {
	if len(buf) < len(expected) {
		return false
	}
	return bytes.Equal(expected, buf[:len(expected)])
}
