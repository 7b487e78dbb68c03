package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrDeviceStopped is reported on Stream.Errors when the backend stops the
// device without Close being called (unplugged microphone, backend reset)
var ErrDeviceStopped = errors.New("capture device stopped unexpectedly")

// MalgoOpener opens capture streams with malgo (miniaudio)
type MalgoOpener struct {
	// DeviceID selects the capture device by name or ID
	// Empty string = use default device
	DeviceID string
}

// NewMalgoOpener creates an opener for the given device name or ID
func NewMalgoOpener(deviceID string) *MalgoOpener {
	return &MalgoOpener{DeviceID: deviceID}
}

// Open initializes the malgo context and device and starts capture
func (o *MalgoOpener) Open(format Format, frameSizeSamples int, onFrame func([]byte)) (Stream, error) {
	if format.BitWidth != 2 {
		return nil, fmt.Errorf("unsupported bit width: %d bytes", format.BitWidth)
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	s := &malgoStream{
		malgoContext: malgoCtx,
		errors:       make(chan error, 1),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16 // 16-bit signed integer
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(frameSizeSamples)

	if o.DeviceID != "" {
		info, err := findMalgoDevice(malgoCtx, o.DeviceID)
		if err != nil {
			s.release()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		// Runs on the audio thread: hand the bytes over and return
		Data: func(_, pInputSamples []byte, _ uint32) {
			onFrame(pInputSamples)
		},
		Stop: func() {
			if !s.isClosing() {
				s.report(ErrDeviceStopped)
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		s.release()
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		s.release()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}

	return s, nil
}

// malgoStream is a running malgo capture device
type malgoStream struct {
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	errors       chan error

	mu      sync.Mutex
	closing bool
	closed  bool
}

func (s *malgoStream) Errors() <-chan error {
	return s.errors
}

// Close stops the device and releases the context; safe to call twice
func (s *malgoStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	var stopErr error
	if s.device != nil {
		if err := s.device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop device: %w", err)
		}
	}
	s.release()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return stopErr
}

func (s *malgoStream) release() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.malgoContext != nil {
		_ = s.malgoContext.Uninit()
		s.malgoContext.Free()
		s.malgoContext = nil
	}
}

func (s *malgoStream) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// report delivers err without blocking the backend thread
func (s *malgoStream) report(err error) {
	select {
	case s.errors <- err:
	default:
	}
}
