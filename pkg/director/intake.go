package director

import "time"

// AudioIntake is the interface the Director consumes (spec.md §4.a). A
// production implementation (pkg/audio.Device) samples a real capture
// device 48kHz/2400-frame blocks and publishes dB snapshots; tests supply
// a fake.
type AudioIntake interface {
	// Get returns a snapshot copy and the monotonic-wall-clock timestamp
	// of when the underlying driver last refreshed it. Never blocks
	// longer than a single mutex acquisition. A driver that failed to
	// open its device returns (nil, time.Time{}) — the zero timestamp is
	// what the director's audio-fail check treats as "long ago".
	Get() (LevelSnapshot, time.Time)
}
