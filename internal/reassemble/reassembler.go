// Package reassemble collects offset-tagged encoder output chunks and
// rebuilds them into one contiguous buffer.
package reassemble

import (
	"fmt"
	"sync"

	"github.com/smazurov/recordnode/internal/media"
)

// MIMEType is the container type of every finished recording.
const MIMEType = "video/mp4"

// Chunk is a byte range at an absolute position in the eventual output
// file. Chunks may arrive out of order and may overlap earlier ranges when
// the muxer rewrites a leading box.
type Chunk struct {
	Data   []byte
	Offset int64
}

// Reassembler accumulates chunks during encoding and produces the final
// buffer on Finalize. Arrival order is preserved so that a later write to
// an overlapping offset range wins.
type Reassembler struct {
	mu     sync.Mutex
	chunks []Chunk
	extent int64
	done   bool
}

// New creates an empty reassembler.
func New() *Reassembler {
	return &Reassembler{}
}

// Add appends one chunk. The chunk's data is copied, so the caller may
// reuse its buffer.
func (r *Reassembler) Add(c Chunk) error {
	if c.Offset < 0 {
		return fmt.Errorf("negative chunk offset %d", c.Offset)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return fmt.Errorf("reassembler already finalized")
	}

	data := make([]byte, len(c.Data))
	copy(data, c.Data)
	r.chunks = append(r.chunks, Chunk{Data: data, Offset: c.Offset})

	if end := c.Offset + int64(len(c.Data)); end > r.extent {
		r.extent = end
	}
	return nil
}

// Size returns the total byte extent seen so far (max offset+length).
func (r *Reassembler) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.extent
}

// Finalize copies every chunk into a single allocation, in arrival order,
// and returns the buffer wrapped as a Blob. The reassembler cannot be
// reused afterwards.
func (r *Reassembler) Finalize() (media.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return media.Blob{}, fmt.Errorf("reassembler already finalized")
	}
	r.done = true

	buf := make([]byte, r.extent)
	for _, c := range r.chunks {
		copy(buf[c.Offset:], c.Data)
	}
	r.chunks = nil

	return media.Blob{Data: buf, Size: int64(len(buf)), MIME: MIMEType}, nil
}
