package segment

import "errors"

var (
	// ErrDeviceOpen is returned when the capture stream cannot be opened.
	// The session ends before any frame is processed; callers may retry.
	ErrDeviceOpen = errors.New("segment: capture stream could not be opened")

	// ErrDeviceLost is returned when the capture stream fails mid-session.
	ErrDeviceLost = errors.New("segment: capture stream failed")

	// ErrPersist is returned when the sink cannot write the utterance.
	ErrPersist = errors.New("segment: utterance could not be persisted")
)
