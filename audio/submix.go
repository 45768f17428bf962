// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package audio

import "sync"

// MainBusID is the reserved bus identifier for an engine's terminal
// submix, the one written into the hardware buffer every pump.
const MainBusID = "main"

// EffectFunc is an opaque effect chain slot applied to a submix's
// accumulated float32 buffer in place, after every voice has been
// mixed in and before composition into the main submix.
type EffectFunc func(frames, channels int, buf []float32)

// Submix is a named mixing bus. Voices mix-add into it through a
// SendMatrix; non-main submixes are in turn mixed into the main
// submix through their own SendMatrix. Only the engine's pump
// goroutine touches a Submix's buffers, per the package's
// single-writer discipline; BusID and the send-to-main matrix may be
// read from any thread.
type Submix struct {
	BusID    string
	Channels int

	SendToMain SendMatrix
	Effect     EffectFunc

	mu    sync.Mutex
	accum []float32 // interleaved, frames*Channels, canonical mix format
	i16   []int16
	i32   []int32
}

// NewSubmix creates a submix with channels output channels. The main
// submix is created the same way, with BusID set to MainBusID.
func NewSubmix(busID string, channels int) *Submix {
	return &Submix{BusID: busID, Channels: channels}
}

// reset grows the accumulator to frames*Channels if needed and zeros
// it; scratch buffers grow but never shrink, per the engine's scratch
// monotonicity property.
func (s *Submix) reset(frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	need := frames * s.Channels
	if cap(s.accum) < need {
		s.accum = make([]float32, need)
	} else {
		s.accum = s.accum[:need]
	}
	for i := range s.accum {
		s.accum[i] = 0
	}
}

// mixAdd sums block (frames*Channels float32 samples already routed
// for this bus) into the accumulator, scaling per output channel by
// the matrix's coefficients and advancing its slew state once per
// frame mixed.
func (s *Submix) mixAdd(block []float32, frames, srcChannels int, m *SendMatrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := 0; f < frames; f++ {
		for row := 0; row < srcChannels; row++ {
			in := block[f*srcChannels+row]
			coeffs := m.Coeffs(row)
			for c := 0; c < s.Channels && c < MonoChannels; c++ {
				s.accum[f*s.Channels+c] += in * coeffs[c]
			}
		}
		m.Advance()
	}
}

// FloatBuffer returns the submix's canonical float32 accumulator.
func (s *Submix) FloatBuffer() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accum
}

// Int16Buffer converts the accumulator to int16, growing the
// conversion scratch as needed, and returns it.
func (s *Submix) Int16Buffer() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(s.i16) < len(s.accum) {
		s.i16 = make([]int16, len(s.accum))
	} else {
		s.i16 = s.i16[:len(s.accum)]
	}
	for i, v := range s.accum {
		s.i16[i] = floatToI16(v)
	}
	return s.i16
}

// Int32Buffer converts the accumulator to full-scale int32 (samples
// clamped to [-1, 1], scaled by 2147483647), growing the conversion
// scratch as needed, and returns it.
func (s *Submix) Int32Buffer() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(s.i32) < len(s.accum) {
		s.i32 = make([]int32, len(s.accum))
	} else {
		s.i32 = s.i32[:len(s.accum)]
	}
	for i, v := range s.accum {
		s.i32[i] = floatToI32(v)
	}
	return s.i32
}

func floatToI16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}

func floatToI32(v float32) int32 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int32(float64(v) * 2147483647)
}
