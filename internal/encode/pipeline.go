package encode

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/recordnode/internal/compose"
	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/metrics"
	"github.com/smazurov/recordnode/internal/mp4"
	"github.com/smazurov/recordnode/internal/source"
)

// State is the pipeline lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateProcessing    State = "processing"
	StateFinalizing    State = "finalizing"
	StateFinalized     State = "finalized"
	StateCancelled     State = "cancelled"
)

const (
	// keyframeInterval is the periodic keyframe spacing requested from
	// the video encoder.
	keyframeInterval = 5 * time.Second

	// switchTimeout bounds how long SwitchSource waits for the new
	// source to become ready.
	switchTimeout = 5 * time.Second

	// audioChunk is the PCM pull granularity.
	audioChunk = 20 * time.Millisecond
)

type frameJob struct {
	pts      time.Duration
	dur      time.Duration
	keyframe bool
}

// Pipeline owns one video encoder track and one audio encoder track. It
// consumes composed frames and streams offset-tagged chunks through the
// muxer into the emit callback.
//
// SubmitFrame never blocks: the worker queue holds a single job, and a
// frame arriving while the encoder is busy is dropped. Lifecycle methods
// (Start, SwitchSource, Finalize, Cancel) must not be called
// concurrently with each other.
type Pipeline struct {
	sessionID string
	cfg       media.TranscodeConfig
	registry  *CodecRegistry
	logger    logging.Logger

	// onEncodeError surfaces mid-recording encoder faults without
	// aborting the recording. May be nil.
	onEncodeError func(error)

	emit mp4.ChunkFunc

	adapter    *source.Adapter
	compositor *compose.Compositor
	venc       VideoEncoder
	aenc       AudioEncoder
	audio      source.AudioTrack // cloned, pipeline-private

	muxMu sync.Mutex
	muxer *mp4.Writer

	mu    sync.Mutex
	state State

	submitMu   sync.RWMutex
	jobsClosed bool
	jobs       chan frameJob
	workerWG   sync.WaitGroup
	stopAudio  chan struct{}

	firstFrame  bool
	lastKeyPTS  time.Duration
	audioOffset int64 // samples per channel written so far
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry overrides the codec registry.
func WithRegistry(r *CodecRegistry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithEncodeErrorHandler installs the mid-recording fault callback.
func WithEncodeErrorHandler(fn func(error)) Option {
	return func(p *Pipeline) { p.onEncodeError = fn }
}

// NewPipeline creates a pipeline for one recording session. emit receives
// every output chunk with its absolute file offset.
func NewPipeline(sessionID string, cfg media.TranscodeConfig, emit mp4.ChunkFunc, opts ...Option) *Pipeline {
	p := &Pipeline{
		sessionID:  sessionID,
		cfg:        cfg,
		registry:   DefaultRegistry(),
		logger:     logging.GetLogger("encode"),
		state:      StateUninitialized,
		jobs:       make(chan frameJob, 1),
		stopAudio:  make(chan struct{}),
		firstFrame: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.emit = emit
	return p
}

// Start allocates the encoder tracks and opens the container. The source
// handle stays owned by the caller; only its audio track is cloned.
func (p *Pipeline) Start(src source.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateUninitialized {
		return media.NewRecordingError(media.ErrCodeInvalidState,
			"pipeline already started", nil)
	}

	if p.cfg.Width <= 0 || p.cfg.Height <= 0 {
		return media.NewRecordingError(media.ErrCodeInitialization,
			"cannot create compose surface with empty dimensions", nil)
	}

	venc, err := p.registry.NewVideoEncoder(p.cfg)
	if err != nil {
		return media.NewRecordingError(media.ErrCodeInitialization,
			"video encoder setup failed", err)
	}

	var (
		audioCfg *mp4.AudioConfig
		aenc     AudioEncoder
		cloned   source.AudioTrack
	)
	if track := src.AudioTrack(); track != nil {
		cloned = track.Clone()
		aenc, err = p.registry.NewAudioEncoder(p.cfg, cloned.SampleRate(), cloned.Channels())
		if err != nil {
			cloned.Stop()
			venc.Close()
			return media.NewRecordingError(media.ErrCodeInitialization,
				"audio encoder setup failed", err)
		}
		audioCfg = &mp4.AudioConfig{
			SampleRate: aenc.SampleRate(),
			Channels:   aenc.Channels(),
		}
	}

	p.adapter = source.NewAdapter(src)
	p.compositor = compose.New(p.cfg.Width, p.cfg.Height)
	p.venc = venc
	p.aenc = aenc
	p.audio = cloned
	p.muxer = mp4.NewWriter(mp4.VideoConfig{
		Width:     p.cfg.Width,
		Height:    p.cfg.Height,
		FrameRate: p.cfg.FrameRate,
		Bitrate:   p.cfg.VideoBitrate,
	}, audioCfg, p.cfg.PacketCountHint, p.countingEmit)

	if err := p.muxer.Start(); err != nil {
		if cloned != nil {
			cloned.Stop()
		}
		venc.Close()
		return media.NewRecordingError(media.ErrCodeInitialization,
			"container setup failed", err)
	}

	p.state = StateProcessing
	p.workerWG.Add(1)
	go p.videoWorker()
	if p.audio != nil {
		p.workerWG.Add(1)
		go p.audioWorker()
	}

	p.logger.Info("pipeline started",
		"session", p.sessionID,
		"video_codec", venc.ID(),
		"audio", p.audio != nil,
		"width", p.cfg.Width,
		"height", p.cfg.Height)
	return nil
}

// countingEmit forwards chunks to the configured sink and keeps the
// buffered-bytes gauge current.
func (p *Pipeline) countingEmit(data []byte, offset int64) {
	p.emit(data, offset)
	metrics.SetBufferedBytes(p.sessionID, float64(p.muxer.TotalBytes()))
}

// SubmitFrame enqueues an encode of the current source frame at the given
// presentation timestamp. Returns immediately; if the worker is still
// busy with the previous frame, this frame is dropped.
func (p *Pipeline) SubmitFrame(pts, dur time.Duration, keyframe bool) {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.jobsClosed || p.State() != StateProcessing {
		return
	}
	select {
	case p.jobs <- frameJob{pts: pts, dur: dur, keyframe: keyframe}:
		metrics.IncFramesSubmitted(p.sessionID)
	default:
		metrics.IncFramesDropped(p.sessionID)
		p.logger.Debug("frame dropped under backpressure", "session", p.sessionID, "pts", pts)
	}
}

// videoWorker drains the job queue: pull frame, compose, encode, mux.
func (p *Pipeline) videoWorker() {
	defer p.workerWG.Done()
	for job := range p.jobs {
		p.encodeFrame(job)
	}
}

func (p *Pipeline) encodeFrame(job frameJob) {
	if !p.adapter.Ready() {
		// Not-ready tick: the canvas keeps its prior content and no
		// sample is produced, pacing continues.
		return
	}

	frame, err := p.adapter.Frame()
	if err != nil {
		p.reportEncodeError(err)
		return
	}
	p.compositor.Draw(frame)

	force := job.keyframe || p.firstFrame || job.pts-p.lastKeyPTS >= keyframeInterval
	data, sync, err := p.venc.Encode(p.compositor.Frame(), force)
	if err != nil {
		p.reportEncodeError(err)
		return
	}
	if sync {
		p.lastKeyPTS = job.pts
	}
	p.firstFrame = false

	p.muxMu.Lock()
	err = p.muxer.WriteVideoSample(job.pts, job.dur, sync, data)
	p.muxMu.Unlock()
	if err != nil {
		p.reportEncodeError(err)
	}
}

// audioWorker pulls PCM off the cloned track in fixed-size chunks and
// muxes the encoded payload. A muted track reads as silence, keeping the
// audio timeline continuous.
func (p *Pipeline) audioWorker() {
	defer p.workerWG.Done()

	rate := p.aenc.SampleRate()
	channels := p.aenc.Channels()
	perChunk := int(audioChunk.Seconds() * float64(rate))
	buf := make([]int16, perChunk*channels)

	for {
		select {
		case <-p.stopAudio:
			return
		default:
		}

		n, err := p.audio.Read(buf)
		if err != nil {
			p.reportEncodeError(err)
			return
		}
		if n == 0 {
			return
		}

		payload, err := p.aenc.Encode(buf[:n])
		if err != nil {
			p.reportEncodeError(err)
			return
		}

		sampleCount := n / channels
		pts := time.Duration(p.audioOffset) * time.Second / time.Duration(rate)
		p.audioOffset += int64(sampleCount)

		p.muxMu.Lock()
		werr := p.muxer.WriteAudioFrame(pts, sampleCount, payload)
		p.muxMu.Unlock()
		if werr != nil {
			p.reportEncodeError(werr)
			return
		}
	}
}

func (p *Pipeline) reportEncodeError(err error) {
	p.logger.Error("encode fault", "session", p.sessionID, "error", err)
	if p.onEncodeError != nil {
		p.onEncodeError(err)
	}
}

// SwitchSource hot-swaps the adapter's handle without stopping the
// encoder. It waits for the new source to become ready; on timeout the
// previous handle is restored and the new one is left for the caller to
// close. On success the previous handle is returned, also for the caller
// to dispose of.
func (p *Pipeline) SwitchSource(ctx context.Context, next source.Source) (source.Source, error) {
	if p.State() != StateProcessing {
		return nil, media.NewRecordingError(media.ErrCodeInvalidState,
			"switch requires a processing pipeline", nil)
	}

	prev := p.adapter.Swap(next)
	if !p.adapter.WaitReady(ctx, switchTimeout) {
		p.adapter.Swap(prev)
		return nil, media.NewRecordingError(media.ErrCodeSourceSwitchTimeout,
			"new source did not become ready", nil)
	}
	p.logger.Info("source switched", "session", p.sessionID, "kind", next.Kind())
	return prev, nil
}

// CurrentSource returns the adapter's live handle.
func (p *Pipeline) CurrentSource() source.Source {
	return p.adapter.Get()
}

// SetMuted toggles the cloned audio track in place. The audio encoder
// keeps running; a muted track encodes silence.
func (p *Pipeline) SetMuted(muted bool) {
	if p.audio != nil {
		p.audio.SetEnabled(!muted)
	}
}

// State returns the pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Finalize stops frame submission, drains the workers, closes the
// encoder tracks and flushes the container. It returns the complete byte
// count of the output. Calling Finalize twice is a programming error.
func (p *Pipeline) Finalize() (int64, error) {
	p.mu.Lock()
	switch p.state {
	case StateFinalized:
		p.mu.Unlock()
		return 0, media.NewRecordingError(media.ErrCodeAlreadyFinalized,
			"pipeline already finalized", nil)
	case StateUninitialized, StateCancelled:
		p.mu.Unlock()
		return 0, media.NewRecordingError(media.ErrCodeInvalidState,
			"pipeline is not processing", nil)
	}
	p.state = StateFinalizing
	p.mu.Unlock()

	p.stopWorkers()

	p.venc.Close()
	if p.aenc != nil {
		p.aenc.Close()
	}
	if p.audio != nil {
		p.audio.Stop()
	}

	p.muxMu.Lock()
	total, err := p.muxer.Finalize()
	p.muxMu.Unlock()

	p.mu.Lock()
	p.state = StateFinalized
	p.mu.Unlock()

	metrics.DeleteSessionMetrics(p.sessionID)
	if err != nil {
		return 0, err
	}
	p.logger.Info("pipeline finalized", "session", p.sessionID, "total_bytes", total)
	return total, nil
}

// Cancel tears the pipeline down without producing a valid container.
// Used on abandonment; all errors are swallowed.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	switch p.state {
	case StateUninitialized, StateFinalized, StateCancelled:
		p.mu.Unlock()
		return
	}
	p.state = StateCancelled
	p.mu.Unlock()

	p.stopWorkers()

	if p.venc != nil {
		p.venc.Close()
	}
	if p.aenc != nil {
		p.aenc.Close()
	}
	if p.audio != nil {
		p.audio.Stop()
	}
	metrics.DeleteSessionMetrics(p.sessionID)
	p.logger.Info("pipeline cancelled", "session", p.sessionID)
}

func (p *Pipeline) stopWorkers() {
	p.submitMu.Lock()
	p.jobsClosed = true
	close(p.jobs)
	p.submitMu.Unlock()
	if p.audio != nil {
		close(p.stopAudio)
		// Unblock a Read in flight; tone and microphone tracks return
		// immediately once stopped.
		p.audio.Stop()
	}
	p.workerWG.Wait()
}
