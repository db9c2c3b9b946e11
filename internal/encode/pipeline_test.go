package encode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/reassemble"
	"github.com/smazurov/recordnode/internal/source"
)

func testConfig() media.TranscodeConfig {
	cfg := media.DefaultTranscodeConfig()
	cfg.Width = 320
	cfg.Height = 240
	return cfg
}

// neverReady is a source whose frames never arrive.
type neverReady struct{}

func (s *neverReady) Kind() media.SourceKind        { return media.SourceCamera }
func (s *neverReady) Ready() bool                   { return false }
func (s *neverReady) Dimensions() (int, int)        { return 0, 0 }
func (s *neverReady) Frame() (image.Image, error)   { return nil, errors.New("not ready") }
func (s *neverReady) AudioTrack() source.AudioTrack { return nil }
func (s *neverReady) Close() error                  { return nil }

func TestPipelineRecordsAndFinalizes(t *testing.T) {
	r := reassemble.New()
	p := NewPipeline("s1", testConfig(), func(data []byte, offset int64) {
		if err := r.Add(reassemble.Chunk{Data: data, Offset: offset}); err != nil {
			t.Errorf("Add: %v", err)
		}
	})

	src := source.NewTestPattern(640, 480, true)
	defer src.Close()

	if err := p.Start(src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.State() != StateProcessing {
		t.Fatalf("state = %s, want %s", p.State(), StateProcessing)
	}

	frameDur := time.Second / 30
	for i := 0; i < 10; i++ {
		p.SubmitFrame(time.Duration(i)*frameDur, frameDur, false)
		time.Sleep(5 * time.Millisecond)
	}

	total, err := p.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if total == 0 {
		t.Fatal("finalized output should not be empty")
	}
	if p.State() != StateFinalized {
		t.Fatalf("state = %s, want %s", p.State(), StateFinalized)
	}

	blob, err := r.Finalize()
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if blob.Size != total {
		t.Fatalf("blob size %d != declared total %d", blob.Size, total)
	}
	if string(blob.Data[4:8]) != "ftyp" {
		t.Fatalf("output does not start with ftyp, got %q", blob.Data[4:8])
	}
}

func TestPipelineDoubleFinalize(t *testing.T) {
	p := NewPipeline("s2", testConfig(), func([]byte, int64) {})
	src := source.NewTestPattern(320, 240, false)
	defer src.Close()

	if err := p.Start(src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := p.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}

	_, err := p.Finalize()
	var re *media.RecordingError
	if !errors.As(err, &re) || re.Code != media.ErrCodeAlreadyFinalized {
		t.Fatalf("second Finalize = %v, want %s", err, media.ErrCodeAlreadyFinalized)
	}
}

func TestPipelineStartTwice(t *testing.T) {
	p := NewPipeline("s3", testConfig(), func([]byte, int64) {})
	src := source.NewTestPattern(320, 240, false)
	defer src.Close()

	if err := p.Start(src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Cancel()

	if err := p.Start(src); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestPipelineSubmitNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	reg := NewCodecRegistry()
	reg.RegisterVideo(&stallFactory{release: release})
	reg.RegisterAudio(NewPCMFactory())

	p := NewPipeline("s4", testConfig(), func([]byte, int64) {}, WithRegistry(reg))
	src := source.NewTestPattern(320, 240, false)
	defer src.Close()

	if err := p.Start(src); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// First frame stalls inside the encoder, second sits in the queue
	// slot, the rest must be dropped without blocking this goroutine.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			p.SubmitFrame(time.Duration(i)*33*time.Millisecond, 33*time.Millisecond, false)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitFrame blocked under backpressure")
	}

	close(release)
	if _, err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

type stallFactory struct{ release chan struct{} }

func (f *stallFactory) Handles(string) bool { return true }
func (f *stallFactory) New(media.TranscodeConfig) (VideoEncoder, error) {
	return &stallEncoder{release: f.release}, nil
}
func (f *stallFactory) Description() string { return "stalling encoder (test)" }

type stallEncoder struct {
	release chan struct{}
	once    sync.Once
}

func (e *stallEncoder) ID() string { return "stall" }
func (e *stallEncoder) Encode(image.Image, bool) ([]byte, bool, error) {
	e.once.Do(func() { <-e.release })
	return []byte{0xff}, true, nil
}
func (e *stallEncoder) Close() error { return nil }

func TestPipelineSwitchSourceTimeout(t *testing.T) {
	p := NewPipeline("s5", testConfig(), func([]byte, int64) {})
	first := source.NewTestPattern(320, 240, false)
	defer first.Close()

	if err := p.Start(first); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := p.SwitchSource(ctx, &neverReady{})
	var re *media.RecordingError
	if !errors.As(err, &re) || re.Code != media.ErrCodeSourceSwitchTimeout {
		t.Fatalf("SwitchSource = %v, want %s", err, media.ErrCodeSourceSwitchTimeout)
	}
	if !p.adapter.Ready() {
		t.Fatal("previous source should be restored after a failed switch")
	}
}

func TestPipelineSwitchSourceSuccess(t *testing.T) {
	p := NewPipeline("s6", testConfig(), func([]byte, int64) {})
	first := source.NewTestPattern(320, 240, false)
	second := source.NewTestPattern(640, 480, false)
	defer first.Close()
	defer second.Close()

	if err := p.Start(first); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Cancel()

	prev, err := p.SwitchSource(context.Background(), second)
	if err != nil {
		t.Fatalf("SwitchSource: %v", err)
	}
	if prev != source.Source(first) {
		t.Fatal("SwitchSource should hand back the previous source")
	}
	if w, _ := p.adapter.Dimensions(); w != 640 {
		t.Fatalf("adapter width = %d, want the new source's 640", w)
	}
}

// mvhdDurationMs digs the movie duration out of a finalized container.
// mvhd is written as a version-1 full box with a millisecond timescale.
func mvhdDurationMs(t *testing.T, data []byte) uint64 {
	t.Helper()
	idx := bytes.Index(data, []byte("mvhd"))
	if idx < 0 {
		t.Fatal("no mvhd box in output")
	}
	base := idx + 4 // past the box type: version+flags, then v1 fields
	timescale := binary.BigEndian.Uint32(data[base+20 : base+24])
	if timescale != 1000 {
		t.Fatalf("movie timescale = %d, want 1000", timescale)
	}
	return binary.BigEndian.Uint64(data[base+24 : base+32])
}

func TestPipelineSwitchKeepsTimelineContinuous(t *testing.T) {
	r := reassemble.New()
	p := NewPipeline("s9", testConfig(), func(data []byte, offset int64) {
		if err := r.Add(reassemble.Chunk{Data: data, Offset: offset}); err != nil {
			t.Errorf("Add: %v", err)
		}
	})

	first := source.NewTestPattern(320, 240, false)
	second := source.NewTestPattern(640, 480, false)
	defer first.Close()
	defer second.Close()

	if err := p.Start(first); err != nil {
		t.Fatalf("Start: %v", err)
	}

	frameDur := time.Second / 30
	submit := func(i int) {
		p.SubmitFrame(time.Duration(i)*frameDur, frameDur, false)
		// Waiting for the queue to drain before the next submit keeps the
		// encoded timeline exact: nothing backs up, so nothing drops.
		deadline := time.Now().Add(time.Second)
		for len(p.jobs) != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("frame %d was not consumed", i)
			}
			time.Sleep(time.Millisecond)
		}
	}

	for i := 0; i < 15; i++ {
		submit(i)
	}
	if _, err := p.SwitchSource(context.Background(), second); err != nil {
		t.Fatalf("SwitchSource: %v", err)
	}
	for i := 15; i < 30; i++ {
		submit(i)
	}

	if _, err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	blob, err := r.Finalize()
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}

	got := time.Duration(mvhdDurationMs(t, blob.Data)) * time.Millisecond
	want := 30 * frameDur
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	if diff > frameDur {
		t.Fatalf("container duration %v not within one frame interval of %v", got, want)
	}
	if got <= 15*frameDur {
		t.Fatalf("timeline restarted at the switch point: duration %v", got)
	}
}

func TestPipelineSetMutedTogglesCloneOnly(t *testing.T) {
	p := NewPipeline("s7", testConfig(), func([]byte, int64) {})
	src := source.NewTestPattern(320, 240, true)
	defer src.Close()

	if err := p.Start(src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Cancel()

	p.SetMuted(true)
	if p.audio.Enabled() {
		t.Fatal("cloned track should be disabled after mute")
	}
	if !src.AudioTrack().Enabled() {
		t.Fatal("muting the pipeline must not touch the original track")
	}

	p.SetMuted(false)
	if !p.audio.Enabled() {
		t.Fatal("cloned track should re-enable after unmute")
	}
}

func TestPipelineCancelIsIdempotent(t *testing.T) {
	p := NewPipeline("s8", testConfig(), func([]byte, int64) {})
	src := source.NewTestPattern(320, 240, true)
	defer src.Close()

	if err := p.Start(src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Cancel()
	p.Cancel()
	if p.State() != StateCancelled {
		t.Fatalf("state = %s, want %s", p.State(), StateCancelled)
	}
}

func TestMJPEGQualityTracksBitrate(t *testing.T) {
	hi := mjpegQuality(8_000_000, 1280, 720, 30)
	lo := mjpegQuality(500_000, 1280, 720, 30)
	if hi <= lo {
		t.Fatalf("higher bitrate should map to higher quality (%d vs %d)", hi, lo)
	}
	if q := mjpegQuality(0, 0, 0, 0); q != 85 {
		t.Fatalf("degenerate input should use the default quality, got %d", q)
	}
}
