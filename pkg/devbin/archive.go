package devbin

import (
	"fmt"

	"github.com/vietanhduong/oclbin/pkg/ar"
	"github.com/vietanhduong/oclbin/pkg/magic"
	"github.com/vietanhduong/oclbin/pkg/patchtokens"
)

// FatBinaryEntry is one per-product device binary of a fat binary archive.
type FatBinaryEntry struct {
	ProductAbbreviation string
	Binary              []byte
}

// PackFatBinary stores every entry under its product abbreviation with 8
// byte aligned data.
func PackFatBinary(entries []FatBinaryEntry) ([]byte, error) {
	encoder := ar.NewEncoder(true)
	for _, entry := range entries {
		if encoder.AppendFileEntry(entry.ProductAbbreviation, entry.Binary) == nil {
			return nil, fmt.Errorf("invalid product abbreviation %q", entry.ProductAbbreviation)
		}
	}
	return encoder.Encode(), nil
}

// UnpackArchive picks the member named after productAbbreviation and unpacks
// it. Padding members are ignored.
func UnpackArchive(buf []byte, productAbbreviation string, target TargetDevice, native NativeUnpacker) (SingleDeviceBinary, string, error) {
	archive, warning, err := ar.Decode(buf)
	if err != nil {
		return SingleDeviceBinary{}, warning, &Error{ErrInvalidBinary, err.Error()}
	}
	entry := archive.Find(productAbbreviation)
	if productAbbreviation == "" || entry == nil {
		return SingleDeviceBinary{}, warning, &Error{ErrUnhandledBinary, fmt.Sprintf("Couldn't find matching binary in AR archive for product %q", productAbbreviation)}
	}
	ret, nestedWarning, err := Unpack(entry.Data, productAbbreviation, target, native)
	return ret, joinWarnings(warning, nestedWarning), err
}

// Unpack detects the container format of buf and unpacks it.
func Unpack(buf []byte, productAbbreviation string, target TargetDevice, native NativeUnpacker) (SingleDeviceBinary, string, error) {
	if native == nil {
		native = PatchtokensUnpacker
	}
	switch {
	case IsOclElf(buf):
		return UnpackOclElf(buf, productAbbreviation, target, native)
	case magic.IsAr(buf):
		return UnpackArchive(buf, productAbbreviation, target, native)
	case patchtokens.IsPatchtokens(buf):
		return native.Unpack(buf, productAbbreviation, target)
	}
	return SingleDeviceBinary{}, "", &Error{ErrUnhandledBinary, "Unknown format"}
}

// DetectFormat classifies buf without unpacking it.
func DetectFormat(buf []byte) Format {
	switch {
	case IsOclElf(buf):
		return OclElf
	case magic.IsAr(buf):
		return Archive
	case patchtokens.IsPatchtokens(buf):
		return Patchtokens
	}
	return Unknown
}
