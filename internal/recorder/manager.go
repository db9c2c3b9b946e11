// Package recorder implements the recording lifecycle state machine. The
// StreamManager is the sole owner of the manager state and the live
// recording session.
package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smazurov/recordnode/internal/devices"
	"github.com/smazurov/recordnode/internal/encode"
	"github.com/smazurov/recordnode/internal/events"
	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/metrics"
	"github.com/smazurov/recordnode/internal/pace"
	"github.com/smazurov/recordnode/internal/reassemble"
	"github.com/smazurov/recordnode/internal/source"
)

// StreamManager orchestrates start/stop/switch/mute/destroy across the
// capture source, the encode pipeline and the reassembler. Lifecycle
// methods are serialized by an internal guard; concurrent calls block
// rather than interleave. Destroy wins any race: teardown tolerates a
// partially-torn-down session.
type StreamManager struct {
	provider devices.Provider
	bus      *events.Bus
	clock    pace.Clock
	logger   logging.Logger

	mu         sync.Mutex
	state      State
	src        source.Source
	sourceKind media.SourceKind
	session    *session
	muted      bool
	destroyed  bool

	subs []func()
}

// ManagerOption configures a StreamManager.
type ManagerOption func(*StreamManager)

// WithClock substitutes the pacing clock, letting tests run on simulated
// time.
func WithClock(c pace.Clock) ManagerOption {
	return func(m *StreamManager) { m.clock = c }
}

// NewStreamManager creates a manager in the idle state.
func NewStreamManager(provider devices.Provider, bus *events.Bus, opts ...ManagerOption) *StreamManager {
	m := &StreamManager{
		provider: provider,
		bus:      bus,
		clock:    pace.SystemClock(),
		logger:   logging.GetLogger("recorder"),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	metrics.SetManagerState(string(StateIdle))
	return m
}

// State returns the current manager state.
func (m *StreamManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SourceKind returns the kind of the live capture source.
func (m *StreamManager) SourceKind() media.SourceKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sourceKind
}

// Muted reports the current mute flag.
func (m *StreamManager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// Subscribe registers an event handler and tracks its subscription so
// Destroy can release it. The returned function unsubscribes early.
func (m *StreamManager) Subscribe(handler any) func() {
	unsub := m.bus.Subscribe(handler)
	m.mu.Lock()
	m.subs = append(m.subs, unsub)
	m.mu.Unlock()
	return unsub
}

// setState transitions the manager state and publishes the change. The
// caller must hold m.mu.
func (m *StreamManager) setState(next State) {
	prev := m.state
	m.state = next
	metrics.SetManagerState(string(next))
	m.bus.Publish(events.StateChangedEvent{
		Previous:  string(prev),
		Current:   string(next),
		Timestamp: m.clock.Now().UTC().Format(time.RFC3339Nano),
	})
	m.logger.Debug("state transition", "from", prev, "to", next)
}

// publishError emits the normalized failure on the event bus. Every
// fallible public method both returns its error and publishes it, so UI
// listeners do not need to wrap each call.
func (m *StreamManager) publishError(sessionID string, err error) {
	var re *media.RecordingError
	code, message := media.ErrCodeOther, "recording operation failed"
	if errors.As(err, &re) {
		code, message = re.Code, re.Message
	}
	m.bus.Publish(events.RecordingErrorEvent{
		SessionID: sessionID,
		Code:      code,
		Message:   message,
		Error:     err.Error(),
		Timestamp: m.clock.Now().UTC().Format(time.RFC3339Nano),
	})
}

// StartStream acquires the capture source. Idle (or error) goes through
// starting to active; an already-active manager returns its live source
// unchanged. Permission and device failures set the error state.
func (m *StreamManager) StartStream(kind media.SourceKind, cfg media.StreamConfig) (source.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil, media.NewRecordingError(media.ErrCodeInvalidState, "manager destroyed", nil)
	}

	switch m.state {
	case StateActive, StateRecording, StateStopping:
		return m.src, nil
	case StateIdle, StateError:
	default:
		return nil, media.NewRecordingError(media.ErrCodeInvalidState,
			"cannot start stream from state "+string(m.state), nil)
	}

	m.setState(StateStarting)

	src, err := m.provider.Open(kind, cfg)
	if err != nil {
		m.setState(StateError)
		m.publishError("", err)
		return nil, err
	}

	m.src = src
	m.sourceKind = kind
	m.setState(StateActive)
	m.logger.Info("stream started", "kind", kind)
	return src, nil
}

// StartRecording creates the recording session and starts the encode
// pipeline. Requires an active stream; calling it while already recording
// is a no-op and performs no state transition.
func (m *StreamManager) StartRecording(cfg media.TranscodeConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return media.NewRecordingError(media.ErrCodeInvalidState, "manager destroyed", nil)
	}
	if m.state == StateRecording {
		return nil
	}
	if m.state != StateActive {
		err := media.NewRecordingError(media.ErrCodeInvalidState,
			"recording requires an active stream, state is "+string(m.state), nil)
		m.publishError("", err)
		return err
	}
	if cfg.FrameRate <= 0 {
		// The frame pacer divides by this; an unmerged config must fail
		// here, not blow up mid-transition.
		err := media.NewRecordingError(media.ErrCodeInitialization,
			"frame rate must be positive", nil)
		m.publishError("", err)
		return err
	}

	s := newSession(cfg, m.sourceKind, m.clock)
	s.pipeline = encode.NewPipeline(s.id, cfg, func(data []byte, offset int64) {
		if err := s.reassembler.Add(reassemble.Chunk{Data: data, Offset: offset}); err != nil {
			m.logger.Error("chunk rejected", "session", s.id, "error", err)
		}
	}, encode.WithEncodeErrorHandler(func(err error) {
		// Mid-recording encoder faults surface on the bus only; the
		// caller decides whether to stop.
		m.publishError(s.id, err)
	}))

	if err := s.pipeline.Start(m.src); err != nil {
		m.publishError(s.id, err)
		return err
	}
	s.pipeline.SetMuted(m.muted)
	s.startedAt = m.clock.Now()

	m.session = s
	m.setState(StateRecording)

	frameInterval := time.Second / time.Duration(cfg.FrameRate)
	s.framePacer.Start(func(at time.Time, index int64) {
		s.pipeline.SubmitFrame(time.Duration(index-1)*frameInterval, frameInterval, false)
		s.frameCount.Add(1)
	})
	s.progress.Start(func(at time.Time, index int64) {
		elapsed := time.Duration(index) * time.Second
		m.bus.Publish(events.RecordingTimeUpdateEvent{
			SessionID:     s.id,
			Elapsed:       elapsed.Seconds(),
			Formatted:     formatElapsed(elapsed),
			BufferedBytes: s.reassembler.Size(),
		})
	})

	m.bus.Publish(events.RecordingStartedEvent{
		SessionID: s.id,
		Source:    m.sourceKind,
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FrameRate,
		Timestamp: m.clock.Now().UTC().Format(time.RFC3339Nano),
	})
	m.logger.Info("recording started", "session", s.id, "source", m.sourceKind)
	return nil
}

// StopRecording finalizes the pipeline and reassembles the output. The
// manager returns to active, never idle: the capture handle stays live so
// the preview keeps running.
func (m *StreamManager) StopRecording() (media.Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecording || m.session == nil {
		err := media.NewRecordingError(media.ErrCodeInvalidState,
			"no recording in progress", nil)
		m.publishError("", err)
		return media.Blob{}, err
	}

	s := m.session
	m.setState(StateStopping)
	s.stopTimers()

	total, err := s.pipeline.Finalize()
	if err != nil {
		m.session = nil
		m.setState(StateActive)
		m.publishError(s.id, err)
		return media.Blob{}, err
	}

	blob, err := s.reassembler.Finalize()
	if err != nil {
		m.session = nil
		m.setState(StateActive)
		m.publishError(s.id, err)
		return media.Blob{}, err
	}

	duration := m.clock.Now().Sub(s.startedAt)
	m.session = nil
	m.setState(StateActive)

	m.bus.Publish(events.RecordingStoppedEvent{
		SessionID: s.id,
		Duration:  duration.Seconds(),
		TotalSize: total,
		MIME:      blob.MIME,
		Blob:      blob,
	})
	m.logger.Info("recording stopped",
		"session", s.id,
		"duration", duration,
		"total_bytes", total,
		"frames", s.frameCount.Load())
	return blob, nil
}

// SwitchSource hot-swaps the capture source mid-recording. On any
// failure the manager state and the source-kind flag are left unchanged
// and the new handle is released.
func (m *StreamManager) SwitchSource(ctx context.Context, kind media.SourceKind, cfg media.StreamConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRecording || m.session == nil {
		err := media.NewRecordingError(media.ErrCodeInvalidState,
			"source switch requires an ongoing recording", nil)
		m.publishError("", err)
		return err
	}

	s := m.session
	next, err := m.provider.Open(kind, cfg)
	if err != nil {
		m.publishError(s.id, err)
		return err
	}

	prev, err := s.pipeline.SwitchSource(ctx, next)
	if err != nil {
		next.Close()
		m.publishError(s.id, err)
		return err
	}

	from := m.sourceKind
	m.src = s.pipeline.CurrentSource()
	m.sourceKind = kind
	s.sourceKind = kind
	if prev != nil {
		prev.Close()
	}

	m.bus.Publish(events.SourceSwitchedEvent{
		SessionID: s.id,
		From:      from,
		To:        kind,
		Timestamp: m.clock.Now().UTC().Format(time.RFC3339Nano),
	})
	m.logger.Info("source switched", "session", s.id, "from", from, "to", kind)
	return nil
}

// ToggleMute flips the mute flag. While recording it toggles the
// pipeline's cloned audio track in place; the flag also applies to the
// next recording started.
func (m *StreamManager) ToggleMute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.muted = !m.muted
	sessionID := ""
	if m.session != nil {
		m.session.pipeline.SetMuted(m.muted)
		sessionID = m.session.id
	}

	m.bus.Publish(events.MuteChangedEvent{
		SessionID: sessionID,
		Muted:     m.muted,
		Timestamp: m.clock.Now().UTC().Format(time.RFC3339Nano),
	})
	return m.muted
}

// Destroy tears everything down: cancels any active recording, releases
// the capture handle, clears timers and tracked subscriptions, and lands
// in idle from any state. Idempotent; never returns an error — teardown
// failures are swallowed.
func (m *StreamManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}
	m.destroyed = true

	if m.session != nil {
		m.session.stopTimers()
		m.session.pipeline.Cancel()
		m.session = nil
	}
	if m.src != nil {
		if err := m.src.Close(); err != nil {
			m.logger.Warn("capture handle close failed during destroy", "error", err)
		}
		m.src = nil
	}
	for _, unsub := range m.subs {
		unsub()
	}
	m.subs = nil
	m.sourceKind = ""
	m.muted = false

	m.setState(StateIdle)
	m.logger.Info("manager destroyed")
}
