package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat_FrameSizes(t *testing.T) {
	f := DefaultFormat()

	assert.Equal(t, 320, f.FrameBytes())
	assert.Equal(t, 160, f.SamplesPerFrame(FrameDuration))
	assert.Equal(t, 960, f.BytesPerFrame(30*time.Millisecond))
}

func TestFormat_Duration(t *testing.T) {
	f := DefaultFormat()

	assert.Equal(t, time.Second, f.Duration(32000))
	assert.Equal(t, 1510*time.Millisecond, f.Duration(151*320))
	assert.Zero(t, Format{}.Duration(100))
}

func TestDeviceLookup(t *testing.T) {
	devices := []DeviceInfo{
		{ID: "capture-0", Name: "Built-in Microphone"},
		{ID: "capture-1", Name: "USB Headset", IsDefault: true},
	}

	d, err := FindDevice(devices, "capture-0")
	assert.NoError(t, err)
	assert.Equal(t, "Built-in Microphone", d.Name)

	d, err = FindDevice(devices, "usb")
	assert.NoError(t, err)
	assert.Equal(t, "capture-1", d.ID)

	_, err = FindDevice(devices, "webcam")
	assert.Error(t, err)

	d, err = DefaultDevice(devices)
	assert.NoError(t, err)
	assert.Equal(t, "USB Headset", d.Name)

	d, err = DefaultDevice(devices[:1])
	assert.NoError(t, err)
	assert.Equal(t, "capture-0", d.ID)

	_, err = DefaultDevice(nil)
	assert.Error(t, err)
}
