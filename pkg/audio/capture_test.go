package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestRmsToDBSilenceFloorsAtMinus100(t *testing.T) {
	if got := rmsToDB(0); got != -100 {
		t.Errorf("expected -100 dB for zero rms, got %v", got)
	}
	if got := rmsToDB(-1); got != -100 {
		t.Errorf("expected -100 dB for a non-positive rms, got %v", got)
	}
}

func TestRmsToDBFullScale(t *testing.T) {
	got := rmsToDB(1.0)
	if math.Abs(got-0) > 1e-9 {
		t.Errorf("expected 0 dB at full-scale rms, got %v", got)
	}
}

func encodeFrame(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestConsumePublishesPerChannelLevels(t *testing.T) {
	d := &Device{}

	var pcm []byte
	// 4 frames, 2 channels: channel 1 silent, channel 2 at full scale.
	for i := 0; i < 4; i++ {
		pcm = append(pcm, encodeFrame(0, 32767)...)
	}

	d.consume(pcm, 2)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.levels.Get(1) != -100 {
		t.Errorf("expected silent channel 1 at -100 dB, got %v", d.levels.Get(1))
	}
	if d.levels.Get(2) <= -1 {
		t.Errorf("expected near-full-scale channel 2 close to 0 dB, got %v", d.levels.Get(2))
	}
}

func TestConsumeIgnoresZeroChannelCount(t *testing.T) {
	d := &Device{}
	d.consume([]byte{1, 2, 3, 4}, 0)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.levels != nil {
		t.Errorf("expected no levels published for a zero channel count, got %+v", d.levels)
	}
}

func TestGetReturnsZeroValueWhenDeviceDegraded(t *testing.T) {
	d := &Device{}
	levels, lastSeen := d.Get()

	if levels != nil {
		t.Errorf("expected nil levels from a degraded device, got %+v", levels)
	}
	if !lastSeen.IsZero() {
		t.Errorf("expected zero timestamp from a degraded device, got %v", lastSeen)
	}
}
