package params

import (
	"fmt"
	"strings"

	"github.com/rayendito/GPTnano/utils"
)

// Known compute targets. Everything runs through gonum; "accelerate" swaps the
// BLAS implementation when the binary is built with -tags accelerate.
const (
	DeviceCPU        = "cpu"
	DeviceAccelerate = "accelerate"
)

// accelerateAvailable is flipped by blas_accel.go.
var accelerateAvailable = false

// ResolveDevice maps a requested device to one this build can use. An
// unavailable device falls back to cpu and is reported with
// ErrDeviceUnavailable so the caller can warn and carry on.
func ResolveDevice(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DeviceCPU:
		return DeviceCPU, nil
	case DeviceAccelerate:
		if accelerateAvailable {
			return DeviceAccelerate, nil
		}
		return DeviceCPU, fmt.Errorf("%w: %q needs a build with -tags accelerate, using cpu",
			utils.ErrDeviceUnavailable, name)
	default:
		return DeviceCPU, fmt.Errorf("%w: %q is not supported, using cpu", utils.ErrDeviceUnavailable, name)
	}
}
