package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emmett/utter/internal/vad"
)

// run feeds classifications to Next until it stops, returning the counters at
// the stop tick, the number of accepted ticks and whether it stopped at all
func run(t Thresholds, seq []vad.Classification) (Counters, int, bool) {
	var c Counters
	accepted := 0
	for _, cls := range seq {
		next, stop := Next(c, t, cls)
		c = next
		if stop {
			return c, accepted, true
		}
		accepted++
	}
	return c, accepted, false
}

func repeat(cls vad.Classification, n int) []vad.Classification {
	out := make([]vad.Classification, n)
	for i := range out {
		out[i] = cls
	}
	return out
}

func concat(parts ...[]vad.Classification) []vad.Classification {
	var out []vad.Classification
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestThresholdsFromSeconds(t *testing.T) {
	assert.Equal(t, Thresholds{Silent: 300, Recording: 1500}, ThresholdsFromSeconds(3, 15))
	assert.Equal(t, Thresholds{Silent: 100, Recording: 200}, ThresholdsFromSeconds(1, 2))
}

func TestNext(t *testing.T) {
	th := Thresholds{Silent: 2, Recording: 5}

	tests := []struct {
		name     string
		in       Counters
		cls      vad.Classification
		want     Counters
		wantStop bool
	}{
		{name: "speech accepted", in: Counters{}, cls: vad.Speech, want: Counters{RecordingCount: 1}},
		{name: "speech resets silence", in: Counters{SilentCount: 2, RecordingCount: 3}, cls: vad.Speech, want: Counters{RecordingCount: 4}},
		{name: "silence counts", in: Counters{SilentCount: 1, RecordingCount: 1}, cls: vad.Silence, want: Counters{SilentCount: 2, RecordingCount: 2}},
		{name: "silence at threshold still accepted", in: Counters{SilentCount: 2, RecordingCount: 2}, cls: vad.Silence, want: Counters{SilentCount: 3, RecordingCount: 3}},
		{name: "silence over threshold stops", in: Counters{SilentCount: 3, RecordingCount: 3}, cls: vad.Silence, want: Counters{SilentCount: 3, RecordingCount: 3}, wantStop: true},
		{name: "speech over silence threshold continues", in: Counters{SilentCount: 3, RecordingCount: 3}, cls: vad.Speech, want: Counters{RecordingCount: 4}},
		{name: "unknown counts as silence", in: Counters{SilentCount: 1}, cls: vad.Unknown, want: Counters{SilentCount: 2, RecordingCount: 1}},
		{name: "unknown over threshold stops", in: Counters{SilentCount: 3}, cls: vad.Unknown, want: Counters{SilentCount: 3}, wantStop: true},
		{name: "length cap at threshold accepted", in: Counters{RecordingCount: 5}, cls: vad.Speech, want: Counters{RecordingCount: 6}},
		{name: "length cap wins over speech", in: Counters{RecordingCount: 6}, cls: vad.Speech, want: Counters{RecordingCount: 6}, wantStop: true},
		{name: "length cap leaves silence untouched", in: Counters{SilentCount: 1, RecordingCount: 6}, cls: vad.Silence, want: Counters{SilentCount: 1, RecordingCount: 6}, wantStop: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stop := Next(tt.in, th, tt.cls)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantStop, stop)
		})
	}
}

func TestNext_AlwaysSpeechStopsAtLengthCap(t *testing.T) {
	for _, r := range []int{0, 1, 7, 200} {
		for _, s := range []int{0, 3, 1000} {
			th := Thresholds{Silent: s, Recording: r}
			c, accepted, stopped := run(th, repeat(vad.Speech, r+10))

			require.True(t, stopped, "R=%d S=%d", r, s)
			assert.Equal(t, r+1, accepted, "R=%d S=%d", r, s)
			assert.Equal(t, StopMaxLength, th.Reason(c))
		}
	}
}

func TestNext_AlwaysSilenceStopsAtSilentThreshold(t *testing.T) {
	for _, s := range []int{0, 1, 5, 100} {
		th := Thresholds{Silent: s, Recording: 10000}
		c, accepted, stopped := run(th, repeat(vad.Silence, s+10))

		require.True(t, stopped, "S=%d", s)
		assert.Equal(t, s+1, accepted, "S=%d", s)
		assert.Equal(t, StopSilence, th.Reason(c))
	}
}

func TestNext_SpeechResetsSilence(t *testing.T) {
	const s = 100
	th := Thresholds{Silent: s, Recording: 10000}

	// Each silence run stays within S, so the utterance keeps going
	_, accepted, stopped := run(th, concat(
		repeat(vad.Silence, s),
		repeat(vad.Speech, 1),
		repeat(vad.Silence, s),
	))
	assert.False(t, stopped)
	assert.Equal(t, 2*s+1, accepted)

	// S+1 uninterrupted silences end it on the next non-speech tick
	_, accepted, stopped = run(th, concat(
		repeat(vad.Silence, s),
		repeat(vad.Speech, 1),
		repeat(vad.Silence, s+2),
	))
	assert.True(t, stopped)
	assert.Equal(t, 2*s+2, accepted)
}

func TestNext_SpeechAfterSilenceRunKeepsRecording(t *testing.T) {
	// Reaching S+1 silences is not enough by itself: a speech tick arriving
	// before the next silence tick cancels the stop
	th := Thresholds{Silent: 3, Recording: 100}
	_, accepted, stopped := run(th, concat(
		repeat(vad.Silence, 4),
		repeat(vad.Speech, 1),
		repeat(vad.Silence, 4),
	))
	assert.False(t, stopped)
	assert.Equal(t, 9, accepted)
}

func TestNext_Scenario(t *testing.T) {
	th := ThresholdsFromSeconds(1, 2)
	c, accepted, stopped := run(th, concat(
		repeat(vad.Speech, 50),
		repeat(vad.Silence, 101),
		repeat(vad.Silence, 10),
	))

	require.True(t, stopped)
	assert.Equal(t, 151, accepted)
	assert.Equal(t, Counters{SilentCount: 101, RecordingCount: 151}, c)
	assert.Equal(t, StopSilence, th.Reason(c))
}

func TestStopReason_String(t *testing.T) {
	assert.Equal(t, "silence", StopSilence.String())
	assert.Equal(t, "max_length", StopMaxLength.String())
	assert.Equal(t, "none", StopNone.String())
	assert.Equal(t, StopNone, Thresholds{Silent: 1, Recording: 1}.Reason(Counters{}))
}
