package strref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromLiteral(t *testing.T) {
	assert.Equal(t, 3, FromLiteral("abc\x00").Len())
	assert.Equal(t, 3, FromLiteral("abc").Len())
	assert.True(t, FromLiteral("\x00").Empty())
	assert.True(t, FromLiteral("").Empty())
}

func TestEquals(t *testing.T) {
	tests := []struct {
		name string
		a, b Ref
		want bool
	}{
		{name: "same", a: Ref("abc"), b: Ref("abc"), want: true},
		{name: "prefix is not equal", a: Ref("ab"), b: Ref("abc"), want: false},
		{name: "longer is not equal", a: Ref("abcd"), b: Ref("abc"), want: false},
		{name: "embedded nul", a: Ref("a\x00b"), b: Ref("a\x00c"), want: false},
		{name: "embedded nul same", a: Ref("a\x00b"), b: Ref("a\x00b"), want: true},
		{name: "both empty", a: nil, b: Ref(""), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equals(tt.b))
			assert.Equal(t, tt.want, tt.b.Equals(tt.a))
		})
	}
}

func TestHasSameMagic(t *testing.T) {
	magic := []byte("BC\xc0\xde")
	assert.True(t, HasSameMagic(magic, []byte("BC\xc0\xde\x01\x02")))
	assert.True(t, HasSameMagic(magic, []byte("BC\xc0\xde")))
	assert.False(t, HasSameMagic(magic, []byte("BC\xc0")))
	assert.False(t, HasSameMagic(magic, nil))
	assert.False(t, HasSameMagic(magic, []byte("BC\xc0\xdf")))
	assert.True(t, Ref("abcdef").StartsWith(Ref("abc")))
	assert.False(t, Ref("ab").StartsWith(Ref("abc")))
}

func TestFromCString(t *testing.T) {
	assert.Equal(t, "abc", FromCString([]byte("abc\x00def")).String())
	assert.Equal(t, "abc", FromCString([]byte("abc")).String())
}
