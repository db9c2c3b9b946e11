// Package devices acquires live capture sources: cameras and microphones
// through pion/mediadevices, displays through kbinani/screenshot, and the
// synthetic test pattern.
package devices

import (
	"strings"

	"github.com/pion/mediadevices"
	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/source"
)

// Device describes an enumerable capture device.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Provider opens capture sources for the recorder.
type Provider interface {
	// List enumerates video and audio input devices.
	List() ([]Device, error)

	// Open acquires a source per the config's Source kind. Failures are
	// returned as *media.RecordingError with a classified code.
	Open(kind media.SourceKind, cfg media.StreamConfig) (source.Source, error)
}

type systemProvider struct {
	logger logging.Logger
}

// NewProvider returns the system capture provider.
func NewProvider() Provider {
	return &systemProvider{logger: logging.GetLogger("devices")}
}

func (p *systemProvider) List() ([]Device, error) {
	infos := mediadevices.EnumerateDevices()
	result := make([]Device, 0, len(infos))
	for _, info := range infos {
		result = append(result, Device{
			ID:    info.DeviceID,
			Label: info.Label,
			Kind:  string(info.Kind),
		})
	}
	return result, nil
}

func (p *systemProvider) Open(kind media.SourceKind, cfg media.StreamConfig) (source.Source, error) {
	switch kind {
	case media.SourceCamera:
		s, err := OpenCamera(cfg)
		if err != nil {
			p.logger.Error("camera open failed", "device", cfg.DeviceID, "error", err)
			return nil, classifyAcquireError(err)
		}
		return s, nil
	case media.SourceScreen:
		s, err := OpenScreen(cfg)
		if err != nil {
			p.logger.Error("screen open failed", "display", cfg.Display, "error", err)
			return nil, classifyAcquireError(err)
		}
		return s, nil
	case media.SourceTest:
		return source.NewTestPattern(cfg.Width, cfg.Height, cfg.Audio), nil
	default:
		return nil, media.NewRecordingError(media.ErrCodeInvalidState,
			"unknown source kind "+string(kind), nil)
	}
}

// classifyAcquireError maps raw driver failures onto the domain error
// taxonomy so callers can distinguish denial from absence.
func classifyAcquireError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*media.RecordingError); ok {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not permitted"):
		return media.NewRecordingError(media.ErrCodePermissionDenied, "capture permission denied", err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no such") ||
		strings.Contains(msg, "busy") || strings.Contains(msg, "failed to find") ||
		strings.Contains(msg, "no device"):
		return media.NewRecordingError(media.ErrCodeDeviceUnavailable, "capture device unavailable", err)
	default:
		return media.NewRecordingError(media.ErrCodeOther, "capture acquisition failed", err)
	}
}
