package magic

import "github.com/vietanhduong/oclbin/pkg/strref"

var (
	SPIRV         = strref.Ref("\x07\x23\x02\x03")
	SPIRVReversed = strref.Ref("\x03\x02\x23\x07")
	LLVMBitcode   = strref.Ref("BC\xc0\xde")
	ELF           = strref.Ref("\x7fELF")
	AR            = strref.Ref("!<arch>\n")
)

type Kind string

const (
	Unknown     Kind = "UNKNOWN"
	SpirV       Kind = "SPIRV"
	LlvmBitcode Kind = "LLVM_BC"
	Elf         Kind = "ELF"
	Ar          Kind = "AR"
)

// IsSpirV accepts both byte orders of the SPIR-V magic word.
func IsSpirV(buf []byte) bool {
	return strref.HasSameMagic(SPIRV, buf) || strref.HasSameMagic(SPIRVReversed, buf)
}

func IsLlvmBitcode(buf []byte) bool { return strref.HasSameMagic(LLVMBitcode, buf) }

func IsElf(buf []byte) bool { return strref.HasSameMagic(ELF, buf) }

func IsAr(buf []byte) bool { return strref.HasSameMagic(AR, buf) }

func Detect(buf []byte) Kind {
	switch {
	case IsElf(buf):
		return Elf
	case IsAr(buf):
		return Ar
	case IsSpirV(buf):
		return SpirV
	case IsLlvmBitcode(buf):
		return LlvmBitcode
	}
	return Unknown
}
