package device

import (
	"context"
	"os"
)

// DevicePermission treats the camera as permitted when its device node can be
// opened. Request re-checks, which picks up group changes made by an operator.
type DevicePermission struct {
	Device string
	Skip   bool
}

func (p DevicePermission) Granted(_ context.Context) bool {
	if p.Skip {
		return true
	}
	f, err := os.Open(p.Device)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (p DevicePermission) Request(ctx context.Context) (bool, error) {
	return p.Granted(ctx), nil
}
