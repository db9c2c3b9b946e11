package devices

import (
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/wave"

	"github.com/smazurov/recordnode/internal/source"
)

// pcmChunk is one decoded broadcaster chunk handed from the pump to Read.
type pcmChunk struct {
	samples  []int16
	rate     int
	channels int
	err      error
}

// microphoneTrack adapts a mediadevices audio track to the PCM pull
// interface. A pump goroutine drains the broadcaster so Read never blocks
// on the device directly; Stop unblocks a Read in flight even when the
// device has gone quiet. A disabled track keeps consuming chunks and
// hands out silence so the consumer's sample clock never stalls.
type microphoneTrack struct {
	track  *mediadevices.AudioTrack
	chunks chan pcmChunk
	done   chan struct{}

	mu       sync.Mutex
	leftover []int16

	sampleRate int
	channels   int
	enabled    atomic.Bool
	stopOnce   sync.Once
}

func newMicrophoneTrack(track *mediadevices.AudioTrack) *microphoneTrack {
	return newMicrophoneFromReader(track, track.NewReader(false))
}

func newMicrophoneFromReader(track *mediadevices.AudioTrack, reader audio.Reader) *microphoneTrack {
	mt := &microphoneTrack{
		track:  track,
		chunks: make(chan pcmChunk, 4),
		done:   make(chan struct{}),
	}
	mt.enabled.Store(true)
	go mt.pump(reader)
	return mt
}

// pump runs the blocking broadcaster reads off the consumer's goroutine.
// It exits on the first device error or once the track is stopped; a pump
// stuck inside reader.Read is simply abandoned.
func (mt *microphoneTrack) pump(reader audio.Reader) {
	for {
		chunk, release, err := reader.Read()
		if err != nil {
			select {
			case mt.chunks <- pcmChunk{err: err}:
			case <-mt.done:
			}
			return
		}

		samples := chunkToInt16(chunk)
		info := chunk.ChunkInfo()
		release()

		select {
		case mt.chunks <- pcmChunk{samples: samples, rate: info.SamplingRate, channels: info.Channels}:
		case <-mt.done:
			return
		}
	}
}

func (mt *microphoneTrack) Read(buf []int16) (int, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	filled := 0
	for filled < len(buf) {
		if len(mt.leftover) == 0 {
			select {
			case c := <-mt.chunks:
				if c.err != nil {
					return filled, c.err
				}
				mt.leftover = c.samples
				if mt.sampleRate == 0 {
					mt.sampleRate = c.rate
					mt.channels = c.channels
				}
			case <-mt.done:
				return filled, nil
			}
		}
		n := copy(buf[filled:], mt.leftover)
		mt.leftover = mt.leftover[n:]
		filled += n
	}

	if !mt.enabled.Load() {
		for i := range buf[:filled] {
			buf[i] = 0
		}
	}
	return filled, nil
}

// chunkToInt16 flattens a wave chunk to interleaved 16-bit samples.
func chunkToInt16(chunk wave.Audio) []int16 {
	if in, ok := chunk.(*wave.Int16Interleaved); ok {
		out := make([]int16, len(in.Data))
		copy(out, in.Data)
		return out
	}

	info := chunk.ChunkInfo()
	out := make([]int16, 0, info.Len*info.Channels)
	for i := 0; i < info.Len; i++ {
		for ch := 0; ch < info.Channels; ch++ {
			s := wave.Int16SampleFormat.Convert(chunk.At(i, ch)).(wave.Int16Sample)
			out = append(out, int16(s))
		}
	}
	return out
}

func (mt *microphoneTrack) SampleRate() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.sampleRate == 0 {
		return 48000
	}
	return mt.sampleRate
}

func (mt *microphoneTrack) Channels() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.channels == 0 {
		return 2
	}
	return mt.channels
}

func (mt *microphoneTrack) SetEnabled(enabled bool) { mt.enabled.Store(enabled) }
func (mt *microphoneTrack) Enabled() bool           { return mt.enabled.Load() }

// Clone returns a new reader on the same device track. The broadcaster
// inside mediadevices fans chunks out to every reader.
func (mt *microphoneTrack) Clone() source.AudioTrack {
	return newMicrophoneTrack(mt.track)
}

func (mt *microphoneTrack) Stop() {
	mt.stopOnce.Do(func() { close(mt.done) })
}
