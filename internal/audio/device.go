package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceInfo contains information about a capture device
type DeviceInfo struct {
	ID        string // Unique device identifier
	Name      string // Human-readable device name
	IsDefault bool   // Whether this is the default device
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListDevices returns a list of all available capture devices
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	return toDeviceInfos(infos), nil
}

func toDeviceInfos(infos []malgo.DeviceInfo) []DeviceInfo {
	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:        deviceID(i),
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
		})
	}
	return devices
}

func deviceID(index int) string {
	return fmt.Sprintf("capture-%d", index)
}

// FindDevice finds a device by exact ID, exact name, or case-insensitive partial name
func FindDevice(devices []DeviceInfo, query string) (*DeviceInfo, error) {
	for i := range devices {
		if devices[i].ID == query || devices[i].Name == query {
			return &devices[i], nil
		}
	}

	search := strings.ToLower(query)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), search) {
			return &devices[i], nil
		}
	}

	return nil, fmt.Errorf("no device found matching: %s", query)
}

// DefaultDevice returns the default device, or the first one if none is flagged
func DefaultDevice(devices []DeviceInfo) (*DeviceInfo, error) {
	for i := range devices {
		if devices[i].IsDefault {
			return &devices[i], nil
		}
	}
	if len(devices) > 0 {
		return &devices[0], nil
	}
	return nil, fmt.Errorf("no capture devices found")
}

// findMalgoDevice resolves a device name or ID against an open malgo context
func findMalgoDevice(ctx *malgo.AllocatedContext, query string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	device, err := FindDevice(toDeviceInfos(infos), query)
	if err != nil {
		return malgo.DeviceInfo{}, err
	}

	for i := range infos {
		if deviceID(i) == device.ID {
			return infos[i], nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("device not found: %s", query)
}
