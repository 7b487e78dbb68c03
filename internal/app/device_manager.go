package app

import (
	"fmt"
	"io"

	"github.com/emmett/utter/internal/audio"
)

// DeviceManager handles audio device selection and listing
type DeviceManager struct {
	list func() ([]audio.DeviceInfo, error)
}

// NewDeviceManager creates a DeviceManager backed by malgo enumeration
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{list: audio.ListDevices}
}

// Devices returns the capture devices
func (dm *DeviceManager) Devices() ([]audio.DeviceInfo, error) {
	devices, err := dm.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// ListDevices prints all available capture devices to w
func (dm *DeviceManager) ListDevices(w io.Writer) error {
	devices, err := dm.Devices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Fprintln(w, "No audio capture devices found.")
		return fmt.Errorf("no devices found")
	}

	fmt.Fprintf(w, "Found %d capture device(s):\n\n", len(devices))
	for i, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Fprintf(w, "%d. %s%s\n", i+1, device.Name, marker)
		fmt.Fprintf(w, "   ID: %s\n", device.ID)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "To use a specific device, run:")
	fmt.Fprintf(w, "  utter --device \"%s\"\n", devices[0].Name)
	return nil
}

// SelectDevice resolves a device name or ID, or the default device when name is empty
func (dm *DeviceManager) SelectDevice(name string) (*audio.DeviceInfo, error) {
	devices, err := dm.Devices()
	if err != nil {
		return nil, err
	}

	if name == "" {
		return audio.DefaultDevice(devices)
	}

	device, err := audio.FindDevice(devices, name)
	if err != nil {
		return nil, fmt.Errorf("invalid audio device specified: %w", err)
	}
	return device, nil
}
