package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// ProgressTracker converts ffmpeg `-progress` key=value records into a
// completion fraction against a known input duration.
type ProgressTracker struct {
	duration time.Duration
	outTime  time.Duration
	finished bool
}

// NewProgressTracker creates a tracker for an input of the given
// duration. A zero duration disables fraction reporting (Update still
// tracks completion).
func NewProgressTracker(duration time.Duration) *ProgressTracker {
	return &ProgressTracker{duration: duration}
}

// Update consumes one progress line. It reports whether the line changed
// the tracker's position ("out_time_us" and "progress" records do,
// everything else is ignored).
func (t *ProgressTracker) Update(line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; ffmpeg emits the same value
		// under each name.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return false
		}
		t.outTime = time.Duration(us) * time.Microsecond
		return true
	case "progress":
		if value == "end" {
			t.finished = true
			return true
		}
	}
	return false
}

// Fraction returns completion in [0, 1]. Without a known duration it
// reports 0 until the encode finishes.
func (t *ProgressTracker) Fraction() float64 {
	if t.finished {
		return 1
	}
	if t.duration <= 0 {
		return 0
	}
	f := t.outTime.Seconds() / t.duration.Seconds()
	if f > 1 {
		f = 1
	}
	if f < 0 {
		f = 0
	}
	return f
}

// Finished reports whether ffmpeg declared the encode complete.
func (t *ProgressTracker) Finished() bool { return t.finished }

// ParseProbeDuration parses ffprobe's duration output (seconds as a
// decimal number, possibly with trailing whitespace).
func ParseProbeDuration(output string) (time.Duration, bool) {
	s := strings.TrimSpace(output)
	if s == "" || s == "N/A" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
