package mp4

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

type capture struct {
	chunks  []capturedChunk
	largest int64
}

type capturedChunk struct {
	data   []byte
	offset int64
}

func (c *capture) emit(data []byte, offset int64) {
	d := make([]byte, len(data))
	copy(d, data)
	c.chunks = append(c.chunks, capturedChunk{d, offset})
	if end := offset + int64(len(data)); end > c.largest {
		c.largest = end
	}
}

// assemble applies chunks in arrival order, the reassembler contract.
func (c *capture) assemble() []byte {
	buf := make([]byte, c.largest)
	for _, ch := range c.chunks {
		copy(buf[ch.offset:], ch.data)
	}
	return buf
}

// walkBoxes returns the top-level box types in order, failing on a
// truncated or misaligned layout.
func walkBoxes(t *testing.T, buf []byte) []string {
	t.Helper()
	var types []string
	for pos := 0; pos < len(buf); {
		if pos+8 > len(buf) {
			t.Fatalf("Truncated box header at %d", pos)
		}
		size := int(binary.BigEndian.Uint32(buf[pos:]))
		typ := string(buf[pos+4 : pos+8])
		if size < 8 || pos+size > len(buf) {
			t.Fatalf("Box %q at %d has bad size %d", typ, pos, size)
		}
		types = append(types, typ)
		pos += size
	}
	return types
}

func testVideo() VideoConfig {
	return VideoConfig{Width: 1280, Height: 720, FrameRate: 30, Bitrate: 2_500_000}
}

func TestWriter_LeadingBoxes(t *testing.T) {
	cap := &capture{}
	w := NewWriter(testVideo(), nil, 42, cap.emit)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	buf := cap.assemble()
	types := walkBoxes(t, buf)
	want := []string{"ftyp", "free", "moov"}
	if len(types) != len(want) {
		t.Fatalf("Expected boxes %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Box %d: expected %s, got %s", i, want[i], types[i])
		}
	}

	if !bytes.Contains(buf, []byte("packets=42")) {
		t.Error("free box should carry the packet count hint")
	}
	if !bytes.Contains(buf, []byte("mp4v")) {
		t.Error("moov should declare the video sample entry")
	}
}

func TestWriter_FragmentsAndFinalize(t *testing.T) {
	cap := &capture{}
	audio := &AudioConfig{SampleRate: 48000, Channels: 2}
	w := NewWriter(testVideo(), audio, 1024, cap.emit)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame := []byte{0xFF, 0xD8, 0xFF, 0xD9} // minimal JPEG-ish payload
	interval := 33 * time.Millisecond
	for i := 0; i < 60; i++ {
		pts := time.Duration(i) * interval
		sync := i%30 == 0
		if err := w.WriteVideoSample(pts, interval, sync, frame); err != nil {
			t.Fatalf("WriteVideoSample %d failed: %v", i, err)
		}
	}
	pcm := make([]byte, 1024*2*2)
	if err := w.WriteAudioFrame(0, 1024, pcm); err != nil {
		t.Fatalf("WriteAudioFrame failed: %v", err)
	}

	total, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if total != cap.largest {
		t.Errorf("Finalize reported %d bytes, chunks extend to %d", total, cap.largest)
	}

	buf := cap.assemble()
	types := walkBoxes(t, buf)
	if types[len(types)-1] != "mdat" {
		t.Errorf("Expected trailing mdat, got %v", types)
	}

	// The moov must have been emitted twice at the same offset: once as
	// placeholder, once rewritten with the real duration.
	moovWrites := 0
	var moovOffset int64 = -1
	for _, ch := range cap.chunks {
		if len(ch.data) >= 8 && string(ch.data[4:8]) == "moov" {
			moovWrites++
			if moovOffset == -1 {
				moovOffset = ch.offset
			} else if ch.offset != moovOffset {
				t.Errorf("moov rewrite moved: %d vs %d", ch.offset, moovOffset)
			}
		}
	}
	if moovWrites != 2 {
		t.Errorf("Expected 2 moov writes, got %d", moovWrites)
	}

	// mvhd duration: 60 frames of 33ms.
	mvhd := moovOffset + 8
	if string(buf[mvhd+4:mvhd+8]) != "mvhd" {
		t.Fatalf("Expected mvhd as first moov child, got %q", buf[mvhd+4:mvhd+8])
	}
	dur := binary.BigEndian.Uint64(buf[mvhd+32:])
	if dur != 60*33 {
		t.Errorf("Expected mvhd duration %d ms, got %d", 60*33, dur)
	}
}

func TestWriter_DoubleFinalize(t *testing.T) {
	cap := &capture{}
	w := NewWriter(testVideo(), nil, 0, cap.emit)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := w.Finalize(); err != nil {
		t.Fatalf("First Finalize failed: %v", err)
	}
	if _, err := w.Finalize(); err == nil {
		t.Error("Second Finalize should fail")
	}
	if err := w.WriteVideoSample(0, time.Millisecond, true, nil); err == nil {
		t.Error("WriteVideoSample after Finalize should fail")
	}
}

func TestWriter_ConfiguredDimensionsInMoov(t *testing.T) {
	cap := &capture{}
	w := NewWriter(VideoConfig{Width: 1920, Height: 1080, FrameRate: 25, Bitrate: 1}, nil, 0, cap.emit)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	buf := cap.assemble()

	// The mp4v sample entry carries width and height as 16-bit ints
	// right after its fixed 24-byte prefix.
	idx := bytes.Index(buf, []byte("mp4v"))
	if idx < 0 {
		t.Fatal("mp4v entry not found")
	}
	entry := buf[idx+4:]
	width := binary.BigEndian.Uint16(entry[24:])
	height := binary.BigEndian.Uint16(entry[26:])
	if width != 1920 || height != 1080 {
		t.Errorf("Expected 1920x1080 in sample entry, got %dx%d", width, height)
	}
}
