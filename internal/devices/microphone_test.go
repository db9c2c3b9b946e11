package devices

import (
	"io"
	"testing"
	"time"

	"github.com/pion/mediadevices/pkg/wave"
)

// scriptedReader hands out the prepared chunks, then blocks forever the
// way a quiet device does.
type scriptedReader struct {
	chunks []*wave.Int16Interleaved
	next   int
	stall  chan struct{}
}

func (r *scriptedReader) Read() (wave.Audio, func(), error) {
	if r.next < len(r.chunks) {
		c := r.chunks[r.next]
		r.next++
		return c, func() {}, nil
	}
	<-r.stall
	return nil, nil, io.EOF
}

func int16Chunk(rate, channels int, data []int16) *wave.Int16Interleaved {
	return &wave.Int16Interleaved{
		Size: wave.ChunkInfo{Len: len(data) / channels, Channels: channels, SamplingRate: rate},
		Data: data,
	}
}

func TestMicrophoneReadDecodesChunks(t *testing.T) {
	reader := &scriptedReader{
		chunks: []*wave.Int16Interleaved{
			int16Chunk(48000, 2, []int16{1, 2, 3, 4}),
			int16Chunk(48000, 2, []int16{5, 6, 7, 8}),
		},
		stall: make(chan struct{}),
	}
	mt := newMicrophoneFromReader(nil, reader)
	defer mt.Stop()
	defer close(reader.stall)

	buf := make([]int16, 8)
	n, err := mt.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 8 {
		t.Fatalf("Read filled %d samples, want 8", n)
	}
	for i, want := range []int16{1, 2, 3, 4, 5, 6, 7, 8} {
		if buf[i] != want {
			t.Fatalf("sample %d = %d, want %d", i, buf[i], want)
		}
	}
	if mt.SampleRate() != 48000 || mt.Channels() != 2 {
		t.Fatalf("track format %d/%d, want 48000/2", mt.SampleRate(), mt.Channels())
	}
}

func TestMicrophoneStopUnblocksRead(t *testing.T) {
	reader := &scriptedReader{stall: make(chan struct{})}
	defer close(reader.stall)
	mt := newMicrophoneFromReader(nil, reader)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]int16, 1024)
		n, err := mt.Read(buf)
		done <- result{n, err}
	}()

	// Give the reader time to park inside the blocked device read.
	time.Sleep(50 * time.Millisecond)
	mt.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Read after Stop: %v", r.err)
		}
		if r.n != 0 {
			t.Fatalf("Read after Stop filled %d samples, want 0", r.n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not unblock a Read stuck on a quiet device")
	}

	// Stop stays idempotent.
	mt.Stop()
}

func TestMicrophoneDisabledReadsSilence(t *testing.T) {
	reader := &scriptedReader{
		chunks: []*wave.Int16Interleaved{int16Chunk(48000, 2, []int16{9, 9, 9, 9})},
		stall:  make(chan struct{}),
	}
	mt := newMicrophoneFromReader(nil, reader)
	defer mt.Stop()
	defer close(reader.stall)

	mt.SetEnabled(false)
	buf := make([]int16, 4)
	n, err := mt.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := 0; i < n; i++ {
		if buf[i] != 0 {
			t.Fatalf("muted track leaked sample %d at index %d", buf[i], i)
		}
	}
}
