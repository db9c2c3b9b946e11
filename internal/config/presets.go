package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
)

// defaultPresetTTL is how long a resolved preset stays cached before the
// file is consulted again.
const defaultPresetTTL = 5 * time.Minute

// presetFile is the on-disk shape of the presets config:
//
//	[presets.hd]
//	width = 1920
//	height = 1080
//	video_bitrate = 6000000
type presetFile struct {
	Presets map[string]presetEntry `toml:"presets"`
}

// presetEntry holds the overridable fields of one named preset. Absent
// fields keep the built-in defaults.
type presetEntry struct {
	Width           *int    `toml:"width"`
	Height          *int    `toml:"height"`
	FrameRate       *int    `toml:"frame_rate"`
	VideoBitrate    *int    `toml:"video_bitrate"`
	VideoCodec      *string `toml:"video_codec"`
	AudioCodec      *string `toml:"audio_codec"`
	AudioBitrate    *int    `toml:"audio_bitrate"`
	PacketCountHint *int    `toml:"packet_count_hint"`
}

type cachedPreset struct {
	cfg      media.TranscodeConfig
	loadedAt time.Time
}

// PresetResolver resolves named quality presets to TranscodeConfigs.
// Resolved presets are cached with a TTL; an optional file watcher
// invalidates the cache early when the presets file changes.
type PresetResolver struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger

	mu      sync.Mutex
	cache   map[string]cachedPreset
	watcher *Watcher[presetFile]
}

// PresetOption configures a PresetResolver.
type PresetOption func(*PresetResolver)

// WithPresetTTL overrides the cache TTL.
func WithPresetTTL(ttl time.Duration) PresetOption {
	return func(r *PresetResolver) { r.ttl = ttl }
}

// WithPresetNow substitutes the time source, for tests.
func WithPresetNow(now func() time.Time) PresetOption {
	return func(r *PresetResolver) { r.now = now }
}

// NewPresetResolver creates a resolver over the given presets file. The
// file may be absent; only named lookups then fail.
func NewPresetResolver(path string, opts ...PresetOption) *PresetResolver {
	r := &PresetResolver{
		path:   path,
		ttl:    defaultPresetTTL,
		now:    time.Now,
		logger: logging.GetLogger("config"),
		cache:  make(map[string]cachedPreset),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Watch starts an fsnotify watcher that flushes the cache as soon as the
// presets file changes, ahead of the TTL. Call Close to stop it.
func (r *PresetResolver) Watch() error {
	w := NewConfigWatcher(r.path, loadPresetFile)
	w.OnReload(func(presetFile) {
		r.mu.Lock()
		r.cache = make(map[string]cachedPreset)
		r.mu.Unlock()
		r.logger.Info("presets changed, cache flushed", "path", r.path)
	})
	if err := w.Start(); err != nil {
		return err
	}
	r.watcher = w
	return nil
}

// Close stops the file watcher, if started.
func (r *PresetResolver) Close() error {
	if r.watcher != nil {
		return r.watcher.Stop()
	}
	return nil
}

// Resolve returns the TranscodeConfig for a named preset. The empty name
// and "default" resolve to the built-in defaults without touching the
// file.
func (r *PresetResolver) Resolve(name string) (media.TranscodeConfig, error) {
	if name == "" || name == "default" {
		return media.DefaultTranscodeConfig(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if hit, ok := r.cache[name]; ok && r.now().Sub(hit.loadedAt) < r.ttl {
		return hit.cfg, nil
	}

	file, err := loadPresetFile(r.path)
	if err != nil {
		return media.TranscodeConfig{}, fmt.Errorf("load presets: %w", err)
	}
	entry, ok := file.Presets[name]
	if !ok {
		return media.TranscodeConfig{}, fmt.Errorf("unknown preset %q", name)
	}

	cfg := media.MergeTranscodeConfig(media.TranscodeOverrides{
		Width:           entry.Width,
		Height:          entry.Height,
		FrameRate:       entry.FrameRate,
		VideoBitrate:    entry.VideoBitrate,
		VideoCodec:      entry.VideoCodec,
		AudioCodec:      entry.AudioCodec,
		AudioBitrate:    entry.AudioBitrate,
		PacketCountHint: entry.PacketCountHint,
	})
	r.cache[name] = cachedPreset{cfg: cfg, loadedAt: r.now()}
	return cfg, nil
}

func loadPresetFile(path string) (presetFile, error) {
	var file presetFile
	data, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return file, err
	}
	return file, nil
}
