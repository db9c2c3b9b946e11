package source

import (
	"context"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/recordnode/internal/media"
)

// readyAfter is a source that becomes ready once its flag is set.
type readyAfter struct {
	ready atomic.Bool
}

func (s *readyAfter) Kind() media.SourceKind { return media.SourceCamera }
func (s *readyAfter) Ready() bool            { return s.ready.Load() }
func (s *readyAfter) Dimensions() (int, int) {
	if !s.ready.Load() {
		return 0, 0
	}
	return 640, 480
}
func (s *readyAfter) Frame() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 640, 480)), nil
}
func (s *readyAfter) AudioTrack() AudioTrack { return nil }
func (s *readyAfter) Close() error           { return nil }

func TestAdapterSwapReturnsPrevious(t *testing.T) {
	first := NewTestPattern(320, 240, false)
	second := NewTestPattern(640, 480, false)

	a := NewAdapter(first)
	prev := a.Swap(second)

	if prev != Source(first) {
		t.Fatal("Swap should return the previous handle")
	}
	if w, h := a.Dimensions(); w != 640 || h != 480 {
		t.Fatalf("adapter should see the new handle, got %dx%d", w, h)
	}
	if !prev.Ready() {
		t.Fatal("Swap must not close the previous handle")
	}
}

func TestAdapterWaitReady(t *testing.T) {
	s := &readyAfter{}
	a := NewAdapter(s)

	if a.WaitReady(context.Background(), 100*time.Millisecond) {
		t.Fatal("WaitReady should time out on a source that never readies")
	}

	go func() {
		time.Sleep(60 * time.Millisecond)
		s.ready.Store(true)
	}()
	if !a.WaitReady(context.Background(), 2*time.Second) {
		t.Fatal("WaitReady should succeed once the source readies")
	}
}

func TestAdapterWaitReadyCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := NewAdapter(&readyAfter{})

	done := make(chan bool, 1)
	go func() { done <- a.WaitReady(ctx, 10*time.Second) }()
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("cancelled WaitReady should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not honor context cancellation")
	}
}

func TestTestPatternFrame(t *testing.T) {
	tp := NewTestPattern(700, 100, false)

	if !tp.Ready() {
		t.Fatal("test pattern should be ready immediately")
	}
	img, err := tp.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 700 || b.Dy() != 100 {
		t.Fatalf("frame size %dx%d, want 700x100", b.Dx(), b.Dy())
	}

	if err := tp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if tp.Ready() {
		t.Fatal("closed source should not report ready")
	}
	if w, h := tp.Dimensions(); w != 0 || h != 0 {
		t.Fatalf("closed source dimensions %dx%d, want 0x0", w, h)
	}
}

func TestToneTrackRead(t *testing.T) {
	tt := NewToneTrack(48000, 2, 440)

	buf := make([]int16, 4800)
	n, err := tt.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("Read returned %d samples, want %d", n, len(buf))
	}

	nonZero := false
	for _, v := range buf {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatal("enabled tone track should produce a signal")
	}

	// Interleaved channels carry the same sample.
	for i := 0; i < len(buf); i += 2 {
		if buf[i] != buf[i+1] {
			t.Fatalf("channel mismatch at frame %d: %d vs %d", i/2, buf[i], buf[i+1])
		}
	}
}

func TestToneTrackDisabledProducesSilence(t *testing.T) {
	tt := NewToneTrack(48000, 1, 440)
	tt.SetEnabled(false)

	buf := make([]int16, 1024)
	n, err := tt.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("disabled track should still fill the buffer, got %d", n)
	}
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("disabled track produced non-silence at %d: %d", i, v)
		}
	}
}

func TestToneTrackCloneIsIndependent(t *testing.T) {
	orig := NewToneTrack(48000, 1, 440)
	clone := orig.Clone()

	clone.SetEnabled(false)
	if !orig.Enabled() {
		t.Fatal("muting the clone must not affect the original")
	}

	clone.Stop()
	buf := make([]int16, 64)
	if n, _ := orig.Read(buf); n != len(buf) {
		t.Fatal("original should keep reading after the clone stops")
	}
	if n, _ := clone.Read(buf); n != 0 {
		t.Fatalf("stopped clone should read nothing, got %d", n)
	}
}
