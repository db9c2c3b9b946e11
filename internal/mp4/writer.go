// Package mp4 writes a progressive fragmented MP4 stream: leading boxes
// first, then moof+mdat pairs per fragment, with the moov rewritten in
// place on finalize once the real duration is known. Output is emitted as
// offset-tagged byte chunks rather than a file, so the consumer decides
// where the bytes land.
package mp4

import (
	"fmt"
	"time"
)

const (
	videoTrackID = 1
	audioTrackID = 2

	// movieTimescale is used by mvhd and the video track (milliseconds).
	movieTimescale = 1000

	// defaultFragmentDuration is the target span of one moof+mdat pair.
	defaultFragmentDuration = time.Second
)

// ChunkFunc receives each emitted byte range with its absolute position
// in the eventual file. Ranges may overlap earlier ones (box rewrite).
type ChunkFunc func(data []byte, offset int64)

// VideoConfig describes the single video track.
type VideoConfig struct {
	Width     int
	Height    int
	FrameRate int
	Bitrate   int
}

// AudioConfig describes the optional PCM audio track.
type AudioConfig struct {
	SampleRate int
	Channels   int
}

type pendingSample struct {
	dur   uint32
	sync  bool
	data  []byte
	flags uint32
}

type trackState struct {
	timescale uint32
	fragBase  uint64 // decode time of the first pending sample
	written   uint64 // decode time reached by flushed fragments
	pending   []pendingSample
	pendingSz int
}

// Writer is the container encoder. Not safe for concurrent use; the
// encode pipeline serializes all writes.
type Writer struct {
	video VideoConfig
	audio *AudioConfig
	hint  int
	emit  ChunkFunc

	fragDur time.Duration

	vt trackState
	at trackState

	offset     int64
	moovOffset int64
	seq        uint32
	started    bool
	finalized  bool
}

// NewWriter creates a writer for one video track and an optional audio
// track. The packet count hint is recorded in the container as metadata.
func NewWriter(video VideoConfig, audio *AudioConfig, packetCountHint int, emit ChunkFunc) *Writer {
	w := &Writer{
		video:   video,
		audio:   audio,
		hint:    packetCountHint,
		emit:    emit,
		fragDur: defaultFragmentDuration,
	}
	w.vt.timescale = movieTimescale
	if audio != nil {
		w.at.timescale = uint32(audio.SampleRate)
	}
	return w
}

// Start emits the leading boxes: ftyp, the packet-hint free box, and the
// moov with zero durations (rewritten on Finalize).
func (w *Writer) Start() error {
	if w.started {
		return fmt.Errorf("mp4: writer already started")
	}
	w.started = true

	w.push(w.buildFtyp())
	w.push(mkbox("free", []byte(fmt.Sprintf("packets=%d", w.hint))))
	w.moovOffset = w.offset
	w.push(w.buildMoov(0, 0))
	return nil
}

// WriteVideoSample appends one encoded frame. pts anchors the fragment's
// decode time, dur is the frame's display duration, and sync marks a
// keyframe. A sync sample arriving after a full fragment span cuts the
// current fragment first, so fragments always start on keyframes.
func (w *Writer) WriteVideoSample(pts, dur time.Duration, sync bool, data []byte) error {
	if !w.started || w.finalized {
		return fmt.Errorf("mp4: writer not accepting samples")
	}

	ptsUnits := uint64(pts.Milliseconds())
	if sync && len(w.vt.pending) > 0 &&
		ptsUnits-w.vt.fragBase >= uint64(w.fragDur.Milliseconds()) {
		w.flushFragment()
	}

	if len(w.vt.pending) == 0 {
		w.vt.fragBase = ptsUnits
	}

	flags := uint32(0x02000000) // sample_depends_on: none (keyframe)
	if !sync {
		flags = 0x01010000 // depends on others, non-sync
	}
	w.vt.add(pendingSample{
		dur:   uint32(dur.Milliseconds()),
		sync:  sync,
		data:  data,
		flags: flags,
	})
	return nil
}

// WriteAudioFrame appends one PCM buffer. sampleCount is the number of
// audio frames in data; pts anchors the fragment like video.
func (w *Writer) WriteAudioFrame(pts time.Duration, sampleCount int, data []byte) error {
	if w.audio == nil {
		return fmt.Errorf("mp4: no audio track configured")
	}
	if !w.started || w.finalized {
		return fmt.Errorf("mp4: writer not accepting samples")
	}

	if len(w.at.pending) == 0 {
		w.at.fragBase = uint64(pts.Seconds() * float64(w.at.timescale))
	}
	w.at.add(pendingSample{dur: uint32(sampleCount), data: data})
	return nil
}

// Flush cuts the current fragment regardless of its span.
func (w *Writer) Flush() {
	if w.started && !w.finalized {
		w.flushFragment()
	}
}

// Finalize flushes the last fragment and rewrites the moov with the real
// durations. Returns the total container size in bytes.
func (w *Writer) Finalize() (int64, error) {
	if !w.started {
		return 0, fmt.Errorf("mp4: writer never started")
	}
	if w.finalized {
		return 0, fmt.Errorf("mp4: writer already finalized")
	}
	w.flushFragment()
	w.finalized = true

	moov := w.buildMoov(w.vt.written, w.at.written)
	// Overwrite the placeholder moov in place; the duration fields are
	// fixed-width, so the box size cannot change.
	w.emit(moov, w.moovOffset)
	return w.offset, nil
}

// TotalBytes returns the byte extent written so far.
func (w *Writer) TotalBytes() int64 { return w.offset }

func (t *trackState) add(s pendingSample) {
	t.pending = append(t.pending, s)
	t.pendingSz += len(s.data)
}

func (t *trackState) reset() {
	var dur uint64
	for _, s := range t.pending {
		dur += uint64(s.dur)
	}
	if len(t.pending) > 0 {
		t.written = t.fragBase + dur
	}
	t.pending = t.pending[:0]
	t.pendingSz = 0
}

// push emits data at the current tail and advances the offset.
func (w *Writer) push(data []byte) {
	w.emit(data, w.offset)
	w.offset += int64(len(data))
}

// flushFragment writes one moof+mdat pair for all pending samples.
func (w *Writer) flushFragment() {
	if len(w.vt.pending) == 0 && len(w.at.pending) == 0 {
		return
	}
	w.seq++

	videoData := make([]byte, 0, w.vt.pendingSz)
	for _, s := range w.vt.pending {
		videoData = append(videoData, s.data...)
	}
	audioData := make([]byte, 0, w.at.pendingSz)
	for _, s := range w.at.pending {
		audioData = append(audioData, s.data...)
	}

	// Two passes: trun data offsets depend on the moof's own size, which
	// does not change between passes.
	probe := w.buildMoof(0, 0)
	videoOff := uint32(len(probe) + 8)
	audioOff := videoOff + uint32(len(videoData))
	moof := w.buildMoof(videoOff, audioOff)

	w.push(moof)
	w.push(mkbox("mdat", videoData, audioData))

	w.vt.reset()
	w.at.reset()
}
