// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package resample

import "testing"

// constantPull always returns the same sample value, letting a test
// reason about a resampler's steady-state gain rather than its
// transient response.
func constantPull(value int16) PullFunc {
	return func(frames int, scratchIn []int16) int {
		for i := range scratchIn {
			scratchIn[i] = value
		}
		return frames
	}
}

// TestConstantSignalPassthroughUnityRatio exercises scenario 1
// (passthrough mono): the filter bank is gain-normalized per phase, so
// once the ring buffer is warmed up with a constant signal, a 1:1
// ratio must reproduce that constant exactly regardless of phase.
func TestConstantSignalPassthroughUnityRatio(t *testing.T) {
	r, err := New(48000, 48000, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	const value = 10000
	pull := constantPull(value)
	want := float32(value) / 32768

	dst := make([]float32, 512)
	scratchIn := make([]int16, 1)
	if _, err := r.Read(dst, 512, pull, scratchIn); err != nil {
		t.Fatalf("Read: %v", err)
	}
	// Skip the warm-up region (taps frames) where the ring still holds
	// leading zeros.
	for i := taps; i < 512; i++ {
		if diff := dst[i] - want; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("dst[%d] = %v, want %v", i, dst[i], want)
		}
	}
}

// TestDownsampleConsumesMoreInputThanOutput covers scenario 2
// (resample 2:1): a 2:1 input/output ratio must pull roughly twice as
// many input frames as it produces output frames.
func TestDownsampleConsumesMoreInputThanOutput(t *testing.T) {
	r, err := New(96000, 48000, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pulled := 0
	pull := func(frames int, scratchIn []int16) int {
		pulled += frames
		for i := range scratchIn {
			scratchIn[i] = 1000
		}
		return frames
	}
	dst := make([]float32, 256)
	scratchIn := make([]int16, 1)
	if _, err := r.Read(dst, 256, pull, scratchIn); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pulled < 480 || pulled > 520 {
		t.Fatalf("pulled = %d input frames for 256 output frames at ratio 2, want ~512", pulled)
	}
}

// TestSetIORatioInstant covers the no-slew branch: the ratio takes
// effect on the very next Read call.
func TestSetIORatioInstant(t *testing.T) {
	r, err := New(48000, 48000, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.SetIORatio(2.0, 0)
	if r.ratio != 2.0 || r.slewRemain != 0 {
		t.Fatalf("ratio = %v, slewRemain = %d, want 2.0, 0", r.ratio, r.slewRemain)
	}
}

// TestSetIORatioSlew covers Property P4's slew discipline applied to
// the resampler's own ratio: a slewed change reaches the target after
// exactly slewFrames output frames.
func TestSetIORatioSlew(t *testing.T) {
	r, err := New(48000, 48000, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	const slewFrames = 100
	r.SetIORatio(1.5, slewFrames)
	pull := constantPull(1000)
	dst := make([]float32, slewFrames)
	scratchIn := make([]int16, 1)
	if _, err := r.Read(dst, slewFrames, pull, scratchIn); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := r.ratio - 1.5; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("ratio after slew = %v, want 1.5", r.ratio)
	}
	if r.slewRemain != 0 {
		t.Fatalf("slewRemain = %d, want 0", r.slewRemain)
	}
}

// TestResetInputRateRebuildsState confirms ResetInputRate discards
// interpolation history and resets pos, matching
// AudioVoice::_resetSampleRate's "rebuild" semantics.
func TestResetInputRateRebuildsState(t *testing.T) {
	r, err := New(48000, 48000, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pull := constantPull(5000)
	dst := make([]float32, 64)
	scratchIn := make([]int16, 1)
	r.Read(dst, 64, pull, scratchIn)

	r.ResetInputRate(96000)
	if r.pos != 0 {
		t.Fatalf("pos after ResetInputRate = %v, want 0", r.pos)
	}
	for _, v := range r.ring {
		if v != 0 {
			t.Fatal("ring not cleared after ResetInputRate")
		}
	}
	wantRatio := float64(96000) / float64(48000)
	if r.ratio != wantRatio {
		t.Fatalf("ratio after ResetInputRate = %v, want %v", r.ratio, wantRatio)
	}
}

func TestNewRejectsInvalidArgs(t *testing.T) {
	if _, err := New(0, 48000, 1); err != ErrInvalidRate {
		t.Fatalf("New with zero inRate: err = %v, want ErrInvalidRate", err)
	}
	if _, err := New(48000, 48000, 3); err != ErrInvalidChannels {
		t.Fatalf("New with 3 channels: err = %v, want ErrInvalidChannels", err)
	}
}

func TestReadRejectsShortDst(t *testing.T) {
	r, _ := New(48000, 48000, 2)
	dst := make([]float32, 3)
	scratchIn := make([]int16, 2)
	if _, err := r.Read(dst, 2, constantPull(0), scratchIn); err != ErrInvalidDstLen {
		t.Fatalf("Read with short dst: err = %v, want ErrInvalidDstLen", err)
	}
}

func TestReadRejectsShortScratch(t *testing.T) {
	r, _ := New(48000, 48000, 2)
	dst := make([]float32, 4)
	scratchIn := make([]int16, 1)
	if _, err := r.Read(dst, 2, constantPull(0), scratchIn); err != ErrInvalidScratch {
		t.Fatalf("Read with short scratchIn: err = %v, want ErrInvalidScratch", err)
	}
}
