package devbin

import (
	delf "debug/elf"
	"errors"
	"strings"

	"github.com/golang/glog"
	"github.com/vietanhduong/oclbin/pkg/elf"
	"github.com/vietanhduong/oclbin/pkg/magic"
	"github.com/vietanhduong/oclbin/pkg/strref"
)

// IsOclElf reports whether buf is a 64-bit OpenCL executable, library or
// objects container. 32-bit containers are never accepted.
func IsOclElf(buf []byte) bool {
	header := elf.DecodeFileHeader(buf, delf.ELFCLASS64)
	if header == nil {
		return false
	}
	_, ok := classifyOclElf(header.Type)
	return ok
}

func classifyOclElf(typ delf.Type) (Format, bool) {
	switch typ {
	case elf.ET_OPENCL_EXECUTABLE:
		return Patchtokens, true
	case elf.ET_OPENCL_LIBRARY:
		return OclLibrary, true
	case elf.ET_OPENCL_OBJECTS:
		return OclCompiledObject, true
	}
	return Unknown, false
}

// UnpackOclElf routes the sections of an OpenCL ELF container into a
// SingleDeviceBinary. For executables the nested native binary is handed to
// native (PatchtokensUnpacker when nil); if that yields no device binary, the
// device binary and debug data are dropped while the rest is kept and the
// nested error, if any, is returned next to the result.
func UnpackOclElf(buf []byte, productAbbreviation string, target TargetDevice, native NativeUnpacker) (SingleDeviceBinary, string, error) {
	decoded, warning, err := elf.Decode(buf, delf.ELFCLASS64)
	if err != nil {
		reason := "Invalid or missing ELF header"
		if !errors.Is(err, elf.ErrInvalidHeader) {
			reason = err.Error() + "\n" + reason
		}
		return SingleDeviceBinary{}, warning, &Error{ErrInvalidBinary, reason}
	}

	format, ok := classifyOclElf(decoded.FileHeader.Type)
	if !ok {
		return SingleDeviceBinary{}, warning, &Error{ErrInvalidBinary, "Not OCL ELF type"}
	}

	ret := SingleDeviceBinary{Format: format, TargetDevice: target}
	for _, section := range decoded.SectionHeaders {
		switch section.Header.Type {
		case elf.SHT_OPENCL_SPIRV, elf.SHT_OPENCL_LLVM_BINARY:
			ret.IntermediateRepresentation = section.Data
		case elf.SHT_OPENCL_DEV_BINARY:
			ret.DeviceBinary = section.Data
		case elf.SHT_OPENCL_OPTIONS:
			ret.BuildOptions = strref.FromBytes(section.Data)
		case elf.SHT_OPENCL_DEV_DEBUG:
			ret.DebugData = section.Data
		case delf.SHT_STRTAB, delf.SHT_NULL:
		default:
			glog.V(4).Infof("Unhandled OCL ELF section type %s", section.Header.Type)
			return SingleDeviceBinary{}, warning, &Error{ErrInvalidBinary, "Unhandled ELF section"}
		}
	}

	if format != Patchtokens {
		ret.DeviceBinary = nil
		return ret, warning, nil
	}
	if len(ret.DeviceBinary) == 0 {
		return ret, warning, nil
	}

	if native == nil {
		native = PatchtokensUnpacker
	}
	nested, nestedWarning, nestedErr := native.Unpack(ret.DeviceBinary, productAbbreviation, target)
	warning = joinWarnings(warning, nestedWarning)
	if len(nested.DeviceBinary) == 0 {
		glog.Warningf("Nested device binary unusable, dropping device binary and debug data")
		ret.DeviceBinary = nil
		ret.DebugData = nil
	} else {
		ret.DeviceBinary = nested.DeviceBinary
		ret.TargetDevice = nested.TargetDevice
	}
	if nestedErr != nil {
		return ret, warning, &Error{ErrUnusableBinary, nestedErr.Error()}
	}
	return ret, warning, nil
}

// DecodeOclElf always fails: the container only packs other formats and has
// to be unpacked first.
func DecodeOclElf(SingleDeviceBinary) (DecodeError, string, error) {
	return InvalidBinary, "", &Error{ErrInvalidBinary, "Device binary format is packed"}
}

// PackOclElf writes a 64-bit OpenCL executable holding, in order, the build
// options, the intermediate representation, the debug data and the native
// binary. Empty fields are skipped.
func PackOclElf(bin SingleDeviceBinary) ([]byte, error) {
	encoder, err := elf.NewEncoder(delf.ELFCLASS64)
	if err != nil {
		return nil, err
	}
	encoder.FileHeader().Type = elf.ET_OPENCL_EXECUTABLE

	if !bin.BuildOptions.Empty() {
		encoder.AppendNamedSection(elf.SHT_OPENCL_OPTIONS, elf.SectionNameBuildOptions, bin.BuildOptions)
	}
	if ir := bin.IntermediateRepresentation; len(ir) > 0 {
		switch {
		case magic.IsSpirV(ir):
			encoder.AppendNamedSection(elf.SHT_OPENCL_SPIRV, elf.SectionNameSpirvObject, ir)
		case magic.IsLlvmBitcode(ir):
			encoder.AppendNamedSection(elf.SHT_OPENCL_LLVM_BINARY, elf.SectionNameLlvmObject, ir)
		default:
			return nil, &Error{ErrUnknownIR, "Unknown intermediate representation format"}
		}
	}
	if len(bin.DebugData) > 0 {
		encoder.AppendNamedSection(elf.SHT_OPENCL_DEV_DEBUG, elf.SectionNameDeviceDebug, bin.DebugData)
	}
	if len(bin.DeviceBinary) > 0 {
		encoder.AppendNamedSection(elf.SHT_OPENCL_DEV_BINARY, elf.SectionNameDeviceBinary, bin.DeviceBinary)
	}
	return encoder.Encode(), nil
}

func joinWarnings(warnings ...string) string {
	var parts []string
	for _, w := range warnings {
		if w != "" {
			parts = append(parts, strings.TrimSuffix(w, "\n"))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n") + "\n"
}
