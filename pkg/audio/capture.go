// Package audio provides the director's production AudioIntake: a
// multi-channel capture device sampled via github.com/gen2brain/malgo,
// publishing per-channel dB levels the way spec.md §4.a describes.
package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/autoswitch/director/pkg/director"
)

const (
	// SampleRate is the fixed input rate spec.md §4.a mandates.
	SampleRate = 48000
	// BlockFrames is 2400 frames == 50ms at 48kHz, one callback per block.
	BlockFrames = 2400
)

// Device is a malgo-backed multi-channel capture stream. It satisfies
// director.AudioIntake. The zero value is not usable; construct with
// Open.
type Device struct {
	mu       sync.Mutex
	levels   director.LevelSnapshot
	lastSeen time.Time

	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// Open starts a capture-only stream with the given channel count. If the
// device cannot be opened, Open returns a *Device in degraded mode: Get
// always returns (nil, time.Time{}), which is the director's trigger for
// a latched audio_fail wide shot (spec.md §4.a).
func Open(deviceID *malgo.DeviceID, channels int, logger director.Logger) (*Device, error) {
	if logger == nil {
		logger = director.NoOpLogger{}
	}
	d := &Device{}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		logger.Error("audio: failed to init context, running degraded", "error", err)
		return d, nil
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = SampleRate
	cfg.PeriodSizeInFrames = BlockFrames
	if deviceID != nil {
		cfg.Capture.DeviceID = deviceID.Pointer()
	}

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		d.consume(pInput, channels)
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		logger.Error("audio: failed to init device, running degraded", "error", err)
		mctx.Uninit()
		return d, nil
	}

	if err := device.Start(); err != nil {
		logger.Error("audio: failed to start device, running degraded", "error", err)
		device.Uninit()
		mctx.Uninit()
		return d, nil
	}

	d.ctx = mctx
	d.device = device
	return d, nil
}

// consume computes per-channel RMS -> dB over one interleaved S16 block
// and publishes it under a short lock — the "audio producer" side of the
// two-lock model in spec.md §5.
func (d *Device) consume(pcm []byte, channels int) {
	if channels <= 0 {
		return
	}
	sums := make([]float64, channels)
	counts := make([]int, channels)

	frameBytes := 2 * channels
	for i := 0; i+frameBytes <= len(pcm); i += frameBytes {
		for ch := 0; ch < channels; ch++ {
			off := i + ch*2
			sample := int16(pcm[off]) | int16(pcm[off+1])<<8
			f := float64(sample) / 32768.0
			sums[ch] += f * f
			counts[ch]++
		}
	}

	levels := make(director.LevelSnapshot, channels)
	for ch := 0; ch < channels; ch++ {
		if counts[ch] == 0 {
			continue
		}
		rms := math.Sqrt(sums[ch] / float64(counts[ch]))
		levels[ch+1] = rmsToDB(rms) // 1-indexed channels, spec.md §4.a
	}

	d.mu.Lock()
	d.levels = levels
	d.lastSeen = time.Now()
	d.mu.Unlock()
}

// rmsToDB is spec.md §4.a's "db = 20*log10(rms) when rms > 0, else -100".
func rmsToDB(rms float64) float64 {
	if rms <= 0 {
		return -100
	}
	return 20 * math.Log10(rms)
}

// Get implements director.AudioIntake.
func (d *Device) Get() (director.LevelSnapshot, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil, time.Time{}
	}
	out := make(director.LevelSnapshot, len(d.levels))
	for k, v := range d.levels {
		out[k] = v
	}
	return out, d.lastSeen
}

// Close stops and releases the underlying device, if any was opened.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: context uninit: %w", err)
		}
		d.ctx = nil
	}
	return nil
}
