package segment

import "github.com/emmett/utter/internal/vad"

// TicksPerSecond converts timeouts in seconds to polling ticks (one tick per 10ms frame)
const TicksPerSecond = 100

// Counters is the per-session bookkeeping of the segmentation loop
type Counters struct {
	// SilentCount is the number of consecutive non-speech ticks
	SilentCount int

	// RecordingCount is the number of frames accepted into the utterance
	RecordingCount int
}

// Thresholds bound a session, in ticks
type Thresholds struct {
	Silent    int
	Recording int
}

// ThresholdsFromSeconds converts the listen timeouts to tick thresholds
func ThresholdsFromSeconds(silentTimeout, recordingTimeout int) Thresholds {
	return Thresholds{
		Silent:    TicksPerSecond * silentTimeout,
		Recording: TicksPerSecond * recordingTimeout,
	}
}

// StopReason says which limit ended an utterance
type StopReason int

const (
	// StopNone means the session did not stop on a threshold
	StopNone StopReason = iota

	// StopSilence means silence outlasted the silent threshold
	StopSilence

	// StopMaxLength means the recording reached its length cap
	StopMaxLength
)

// String returns the reason name used in logs and results
func (r StopReason) String() string {
	switch r {
	case StopSilence:
		return "silence"
	case StopMaxLength:
		return "max_length"
	default:
		return "none"
	}
}

// Next applies one classified tick to the counters and reports whether the
// utterance ends here. The length cap is checked first and wins regardless of
// the classification. Any non-speech result, including Unknown, counts as
// silence; a speech tick resets SilentCount to zero. When Next does not stop,
// the tick's frame is accepted and RecordingCount advances.
func Next(c Counters, t Thresholds, cls vad.Classification) (Counters, bool) {
	if c.RecordingCount > t.Recording {
		return c, true
	}

	if cls == vad.Speech {
		c.SilentCount = 0
	} else {
		if c.SilentCount > t.Silent {
			return c, true
		}
		c.SilentCount++
	}

	c.RecordingCount++
	return c, false
}

// Reason explains a stop returned by Next for counters c
func (t Thresholds) Reason(c Counters) StopReason {
	if c.RecordingCount > t.Recording {
		return StopMaxLength
	}
	if c.SilentCount > t.Silent {
		return StopSilence
	}
	return StopNone
}
