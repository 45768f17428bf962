// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package audio implements a real-time voice engine: per-voice
// resampling, matrix-mixing of voices into submixes, submix
// composition into a main mix, and the hardware callback/client
// rendezvous that drives one pump per audio period.
//
// A host constructs an Engine with a MixInfo describing the output
// format, registers voices and submixes, and either drives the pump
// itself (pull-driven scheduling, see Engine.PumpAndMixVoices) or lets
// a callback-driven backend such as audio/malgodev drive it from the
// OS audio thread.
package audio

import (
	"errors"
	"fmt"
)

var (
	ErrResamplerFailed  = errors.New("audio: resampler creation failed")
	ErrDeviceFailed     = errors.New("audio: output device failed")
	ErrUnknownSubmix    = errors.New("audio: unknown submix bus id")
	ErrVoiceDestroyed   = errors.New("audio: use of destroyed voice")
	ErrInvalidPeriod    = errors.New("audio: period exceeds scratch growth limit")
	ErrEngineStopped    = errors.New("audio: engine already stopped")
	ErrNoMIDIDevice     = errors.New("audio: no such MIDI device")
	ErrPacketTooLarge   = errors.New("audio: MIDI packet exceeds platform cap")
)

// ChannelSet names a supported output speaker layout.
type ChannelSet int

const (
	Stereo ChannelSet = iota
	Quad
	Surround51
	Surround71
)

// Channels returns the number of discrete channels in the set.
func (c ChannelSet) Channels() int {
	switch c {
	case Stereo:
		return 2
	case Quad:
		return 4
	case Surround51:
		return 6
	case Surround71:
		return 8
	default:
		return 0
	}
}

func (c ChannelSet) String() string {
	switch c {
	case Stereo:
		return "Stereo"
	case Quad:
		return "Quad"
	case Surround51:
		return "5.1"
	case Surround71:
		return "7.1"
	default:
		return "Unknown"
	}
}

// ChannelRole names one output channel's speaker position. The order
// of a ChannelMap gives the interleaving order the engine writes.
type ChannelRole int

const (
	FrontLeft ChannelRole = iota
	FrontRight
	FrontCenter
	LFE
	RearLeft
	RearRight
	SideLeft
	SideRight
)

// ChannelMap is the ordered channel roles a ChannelSet's frame carries.
type ChannelMap []ChannelRole

// DefaultChannelMap returns the canonical channel ordering for c.
func DefaultChannelMap(c ChannelSet) ChannelMap {
	switch c {
	case Stereo:
		return ChannelMap{FrontLeft, FrontRight}
	case Quad:
		return ChannelMap{FrontLeft, FrontRight, RearLeft, RearRight}
	case Surround51:
		return ChannelMap{FrontLeft, FrontRight, FrontCenter, LFE, RearLeft, RearRight}
	case Surround71:
		return ChannelMap{FrontLeft, FrontRight, FrontCenter, LFE, RearLeft, RearRight, SideLeft, SideRight}
	default:
		return nil
	}
}

// SampleFormat names the interleaved PCM format written to the
// hardware buffer and produced by a voice's resampler.
type SampleFormat int

const (
	FormatI16 SampleFormat = iota
	FormatI32
	FormatF32
)

// BytesPerSample returns the size in bytes of one sample in f.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatI16:
		return 2
	case FormatI32, FormatF32:
		return 4
	default:
		return 0
	}
}

// MixInfo describes the engine's fixed output format.
type MixInfo struct {
	ChannelSet   ChannelSet
	ChannelMap   ChannelMap
	SampleRate   int
	SampleFormat SampleFormat
	PeriodFrames int
}

// FiveMSFrames returns the number of output frames in a 5ms window at
// mi.SampleRate, the slew constant every SendMatrix update uses.
func (mi MixInfo) FiveMSFrames() int {
	n := (mi.SampleRate*5 + 999) / 1000
	if n < 1 {
		n = 1
	}
	return n
}

func (mi MixInfo) validate() error {
	if mi.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", mi.SampleRate)
	}
	if mi.PeriodFrames <= 0 {
		return fmt.Errorf("audio: invalid period frames %d", mi.PeriodFrames)
	}
	if len(mi.ChannelMap) == 0 {
		mi.ChannelMap = DefaultChannelMap(mi.ChannelSet)
	}
	if len(mi.ChannelMap) != mi.ChannelSet.Channels() {
		return fmt.Errorf("audio: channel map length %d does not match channel set %s", len(mi.ChannelMap), mi.ChannelSet)
	}
	return nil
}
