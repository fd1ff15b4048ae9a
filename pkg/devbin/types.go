package devbin

import (
	"errors"

	"github.com/vietanhduong/oclbin/pkg/strref"
)

type Format string

const (
	Unknown           Format = "Unknown"
	OclElf            Format = "OclElf"
	OclLibrary        Format = "OclLibrary"
	OclCompiledObject Format = "OclCompiledObject"
	Patchtokens       Format = "Patchtokens"
	Archive           Format = "Archive"
	Zebin             Format = "Zebin"
)

type DecodeError string

const (
	Success         DecodeError = "Success"
	Undefined       DecodeError = "Undefined"
	InvalidBinary   DecodeError = "InvalidBinary"
	UnhandledBinary DecodeError = "UnhandledBinary"
)

var (
	ErrInvalidBinary   = errors.New("invalid device binary")
	ErrUnhandledBinary = errors.New("unhandled device binary")
	ErrUnknownIR       = errors.New("unknown intermediate representation")
	ErrUnusableBinary  = errors.New("native device binary unusable")
)

// Error keeps the diagnostic text verbatim so tools matching on it keep
// working; Kind is one of the Err* sentinels.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Kind }

type TargetDevice struct {
	CoreFamily            uint32
	ProductFamily         uint32
	Stepping              uint32
	MaxPointerSizeInBytes uint32
}

// SingleDeviceBinary is the format agnostic view of one device binary. When
// produced by an unpack call the byte fields alias the unpacked buffer.
type SingleDeviceBinary struct {
	Format                     Format
	TargetDevice               TargetDevice
	DeviceBinary               []byte
	IntermediateRepresentation []byte
	DebugData                  []byte
	BuildOptions               strref.Ref
}

// NativeUnpacker decodes the native binary nested inside an OpenCL
// executable. An empty DeviceBinary in the result means the nested binary is
// unusable.
type NativeUnpacker interface {
	Unpack(buf []byte, productAbbreviation string, target TargetDevice) (SingleDeviceBinary, string, error)
}

type NativeUnpackerFunc func(buf []byte, productAbbreviation string, target TargetDevice) (SingleDeviceBinary, string, error)

func (fn NativeUnpackerFunc) Unpack(buf []byte, productAbbreviation string, target TargetDevice) (SingleDeviceBinary, string, error) {
	return fn(buf, productAbbreviation, target)
}
