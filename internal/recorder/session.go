package recorder

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/recordnode/internal/encode"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/pace"
	"github.com/smazurov/recordnode/internal/reassemble"
)

// session is the live recording aggregate. It exists only while the
// manager is in StateRecording or StateStopping; its presence is a
// consequence of that state, never the signal for it.
type session struct {
	id          string
	cfg         media.TranscodeConfig
	pipeline    *encode.Pipeline
	reassembler *reassemble.Reassembler
	startedAt   time.Time
	frameCount  atomic.Int64
	sourceKind  media.SourceKind

	// framePacer drives the capture/encode loop at the target frame
	// rate; progress emits the once-per-second time updates. Both must
	// be stopped on every exit path.
	framePacer *pace.Ticker
	progress   *pace.Ticker
}

func newSession(cfg media.TranscodeConfig, kind media.SourceKind, clock pace.Clock) *session {
	frameInterval := time.Second / time.Duration(cfg.FrameRate)
	return &session{
		id:          uuid.NewString(),
		cfg:         cfg,
		reassembler: reassemble.New(),
		sourceKind:  kind,
		framePacer:  pace.NewTicker(frameInterval, clock),
		progress:    pace.NewTicker(time.Second, clock),
	}
}

// stopTimers cancels both tickers. Safe to call more than once.
func (s *session) stopTimers() {
	s.framePacer.Stop()
	s.progress.Stop()
}

// formatElapsed renders a duration as "MM:SS".
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
