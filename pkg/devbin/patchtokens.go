package devbin

import (
	"github.com/golang/glog"
	"github.com/vietanhduong/oclbin/pkg/patchtokens"
)

// PatchtokensUnpacker is the default NativeUnpacker. It only validates the
// program header against the target.
var PatchtokensUnpacker NativeUnpacker = NativeUnpackerFunc(unpackPatchtokens)

func unpackPatchtokens(buf []byte, _ string, target TargetDevice) (SingleDeviceBinary, string, error) {
	header, err := patchtokens.Validate(buf, patchtokens.Target{
		CoreFamily:            target.CoreFamily,
		MaxPointerSizeInBytes: target.MaxPointerSizeInBytes,
	})
	if err != nil {
		glog.V(4).Infof("Patchtokens program rejected: %v", err)
		return SingleDeviceBinary{}, "", &Error{ErrInvalidBinary, err.Error()}
	}

	ret := SingleDeviceBinary{
		Format:       Patchtokens,
		TargetDevice: target,
		DeviceBinary: buf,
	}
	ret.TargetDevice.CoreFamily = header.Device
	ret.TargetDevice.Stepping = header.SteppingId
	ret.TargetDevice.MaxPointerSizeInBytes = header.GPUPointerSizeInBytes
	return ret, "", nil
}
