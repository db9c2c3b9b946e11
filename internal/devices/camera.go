package devices

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // register camera driver
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // register microphone driver
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/source"
)

// CameraSource captures frames from a camera through mediadevices. A
// background goroutine drains the track and keeps the most recent frame,
// so Frame never blocks on the device's own cadence.
type CameraSource struct {
	stream mediadevices.MediaStream
	video  *mediadevices.VideoTrack
	audio  source.AudioTrack
	logger logging.Logger

	mu     sync.RWMutex
	latest image.Image
	closed bool
	done   chan struct{}
}

// OpenCamera acquires the camera described by cfg. Constraints are
// preferences, not requirements; if the device refuses them the open is
// retried with device ID only.
func OpenCamera(cfg media.StreamConfig) (*CameraSource, error) {
	logger := logging.GetLogger("devices")

	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(cfg.Width)
			c.Height = prop.Int(cfg.Height)
			c.FrameRate = prop.Float(float32(cfg.FrameRate))
			if cfg.DeviceID != "" {
				c.DeviceID = prop.String(cfg.DeviceID)
			}
		},
	}
	if cfg.Audio {
		constraints.Audio = func(c *mediadevices.MediaTrackConstraints) {}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		logger.Warn("camera constraints refused, retrying unconstrained", "error", err)
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			if cfg.DeviceID != "" {
				c.DeviceID = prop.String(cfg.DeviceID)
			}
		}
		stream, err = mediadevices.GetUserMedia(constraints)
		if err != nil {
			return nil, err
		}
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no video track in media stream")
	}
	videoTrack, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		return nil, fmt.Errorf("unexpected video track type %T", tracks[0])
	}

	cs := &CameraSource{
		stream: stream,
		video:  videoTrack,
		logger: logger,
		done:   make(chan struct{}),
	}
	if audioTracks := stream.GetAudioTracks(); len(audioTracks) > 0 {
		if at, ok := audioTracks[0].(*mediadevices.AudioTrack); ok {
			cs.audio = newMicrophoneTrack(at)
		}
	}

	go cs.pump(videoTrack.NewReader(false))
	return cs, nil
}

// pump drains the track until it ends or the source closes.
func (cs *CameraSource) pump(reader video.Reader) {
	for {
		select {
		case <-cs.done:
			return
		default:
		}

		frame, release, err := reader.Read()
		if err != nil {
			cs.logger.Debug("camera reader ended", "error", err)
			return
		}
		// The driver reuses frame buffers after release, so keep a copy.
		clone := imaging.Clone(frame)
		release()

		cs.mu.Lock()
		cs.latest = clone
		cs.mu.Unlock()
	}
}

// Kind implements source.Source.
func (cs *CameraSource) Kind() media.SourceKind { return media.SourceCamera }

// Ready implements source.Source. The camera is ready once the first
// frame has arrived.
func (cs *CameraSource) Ready() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return !cs.closed && cs.latest != nil
}

// Dimensions implements source.Source.
func (cs *CameraSource) Dimensions() (int, int) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.closed || cs.latest == nil {
		return 0, 0
	}
	b := cs.latest.Bounds()
	return b.Dx(), b.Dy()
}

// Frame implements source.Source.
func (cs *CameraSource) Frame() (image.Image, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.closed {
		return nil, fmt.Errorf("camera source closed")
	}
	if cs.latest == nil {
		return nil, fmt.Errorf("camera has not produced a frame yet")
	}
	return cs.latest, nil
}

// AudioTrack implements source.Source.
func (cs *CameraSource) AudioTrack() source.AudioTrack { return cs.audio }

// Close implements source.Source.
func (cs *CameraSource) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	close(cs.done)
	cs.mu.Unlock()

	if cs.audio != nil {
		cs.audio.Stop()
	}
	return cs.video.Close()
}
