package patchtokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProgramHeader(t *testing.T) {
	raw := Encode(ProgramHeader{Device: 12, GPUPointerSizeInBytes: 8, NumberOfKernels: 1}, []byte{1, 2, 3, 4})
	require.Len(t, raw, PROGRAM_HEADER_SIZE+4)
	assert.True(t, IsPatchtokens(raw))

	header, err := DecodeProgramHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, ProgramHeader{
		Magic:                 MAGIC_CL,
		Device:                12,
		GPUPointerSizeInBytes: 8,
		NumberOfKernels:       1,
		PatchListSize:         4,
	}, *header)

	_, err = DecodeProgramHeader(raw[:PROGRAM_HEADER_SIZE-1])
	assert.ErrorIs(t, err, ErrInvalidProgram)

	_, err = DecodeProgramHeader(raw[:PROGRAM_HEADER_SIZE+3])
	assert.ErrorIs(t, err, ErrInvalidProgram)

	broken := append([]byte(nil), raw...)
	broken[0] = 0
	assert.False(t, IsPatchtokens(broken))
	_, err = DecodeProgramHeader(broken)
	assert.ErrorIs(t, err, ErrInvalidProgram)
}

func TestValidate(t *testing.T) {
	raw := Encode(ProgramHeader{Device: 12, GPUPointerSizeInBytes: 8}, nil)

	tests := []struct {
		name   string
		target Target
		err    error
	}{
		{name: "any target", target: Target{}},
		{name: "matching target", target: Target{CoreFamily: 12, MaxPointerSizeInBytes: 8}},
		{name: "other core", target: Target{CoreFamily: 11}, err: ErrUnsupportedTarget},
		{name: "pointer too wide", target: Target{MaxPointerSizeInBytes: 4}, err: ErrUnsupportedTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := Validate(raw, tt.target)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, header)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint32(12), header.Device)
		})
	}
}
