// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gviegas/mm/audio/resample"
)

// SupplyCallback is implemented by the client to feed a voice's
// resampler. scratchIn is a slice of the engine's shared, per-pump
// scratch_in buffer (Engine.scratchIn), int16-interleaved
// (len==channels: 1 for mono, 2 for stereo); frames is always 1 in the
// current implementation, since the resampler's polyphase ring pulls
// one input frame at a time (see resample.PullFunc). It returns the
// number of frames actually produced; a short read is treated as the
// voice going silent for the remainder of the request.
type SupplyCallback func(v *Voice, frames int, scratchIn []int16) (produced int)

// PreSupplyCallback is invoked once per pump, before resampling, so
// the client can push parameter updates (SetPitchRatio, matrix
// changes) ahead of the frames it is about to supply.
type PreSupplyCallback func(v *Voice, dt float64)

// RouteCallback post-processes a voice's resampled block before it is
// summed into submixes. May be nil, in which case the block passes
// through unchanged.
type RouteCallback func(frames, channels int, dt float64, busID string, in, out []float32)

// Send pairs a submix bus id with the matrix routing a voice into it.
type Send struct {
	BusID  string
	Matrix SendMatrix
}

// Voice is one audio source pulled through a resampler and routed
// into one or more submixes every pump. Voices are safe to construct
// and destroy from any thread, but must not be mutated concurrently
// with a pump. Engine.AddVoice/RemoveVoice lock only the engine's voice
// registry, not the mutex a pump holds, and must not be called
// concurrently with a pump either.
type Voice struct {
	stereo bool

	supply    SupplyCallback
	preSupply PreSupplyCallback
	route     RouteCallback

	resampler *resample.Resampler

	mu       sync.Mutex
	sends    []Send
	silent   atomic.Bool
	running  atomic.Bool

	pendingRate  atomic.Int64 // 0 == no pending reset; else Hz+1
	pendingRatio atomic.Uint64
	pendingSlew  atomic.Int32
	ratioPending atomic.Bool

	bound     atomic.Bool
	destroyed atomic.Bool
}

// NewMonoVoice constructs a single-channel voice pulling from inRate
// through a polyphase resampler into the engine's output rate.
func NewMonoVoice(inRate, outRate int, supply SupplyCallback) (*Voice, error) {
	return newVoice(false, inRate, outRate, supply)
}

// NewStereoVoice constructs a two-channel interleaved voice.
func NewStereoVoice(inRate, outRate int, supply SupplyCallback) (*Voice, error) {
	return newVoice(true, inRate, outRate, supply)
}

func newVoice(stereo bool, inRate, outRate int, supply SupplyCallback) (*Voice, error) {
	channels := 1
	if stereo {
		channels = 2
	}
	r, err := resample.New(inRate, outRate, channels)
	if err != nil {
		return nil, ErrResamplerFailed
	}
	v := &Voice{stereo: stereo, supply: supply, resampler: r}
	v.running.Store(true)
	if stereo {
		v.sends = []Send{{BusID: MainBusID, Matrix: DefaultStereoMatrix()}}
	} else {
		v.sends = []Send{{BusID: MainBusID, Matrix: DefaultMonoMatrix()}}
	}
	return v, nil
}

// Stereo reports whether the voice is a two-channel source.
func (v *Voice) Stereo() bool { return v.stereo }

// SetRunning toggles whether the pump considers the voice live.
func (v *Voice) SetRunning(running bool) { v.running.Store(running) }

// Running reports whether the voice currently participates in pumps.
func (v *Voice) Running() bool { return v.running.Load() && !v.destroyed.Load() }

// SetSilent forces supply_audio to be bypassed with zero-fill, per
// spec's silent-out flag.
func (v *Voice) SetSilent(silent bool) { v.silent.Store(silent) }

// SetPreSupply installs the optional pre-pump hook.
func (v *Voice) SetPreSupply(cb PreSupplyCallback) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.preSupply = cb
}

// SetRoute installs the optional post-resample routing hook.
func (v *Voice) SetRoute(cb RouteCallback) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.route = cb
}

// requireBound reports ErrVoiceDestroyed if v is not currently
// registered with an engine (via Engine.AddVoice) or has been
// destroyed, guarding operations that only make sense for a voice the
// engine actually knows about, per spec's bound-to-engine voice
// attribute.
func (v *Voice) requireBound() error {
	if v.destroyed.Load() || !v.bound.Load() {
		return ErrVoiceDestroyed
	}
	return nil
}

// SetSend installs or replaces the send matrix targeting busID. Fails
// with ErrVoiceDestroyed if the voice is not currently bound to an
// engine.
func (v *Voice) SetSend(busID string, m SendMatrix) error {
	if err := v.requireBound(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.sends {
		if v.sends[i].BusID == busID {
			v.sends[i].Matrix = m
			return nil
		}
	}
	v.sends = append(v.sends, Send{BusID: busID, Matrix: m})
	return nil
}

// RemoveSend drops the send targeting busID, if any. Fails with
// ErrVoiceDestroyed if the voice is not currently bound to an engine.
func (v *Voice) RemoveSend(busID string) error {
	if err := v.requireBound(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.sends {
		if v.sends[i].BusID == busID {
			v.sends = append(v.sends[:i], v.sends[i+1:]...)
			return nil
		}
	}
	return nil
}

// Destroy marks the voice unusable; subsequent pumps skip it. Safe to
// call more than once.
func (v *Voice) Destroy() {
	v.destroyed.Store(true)
	v.running.Store(false)
}

// ResetSampleRate latches a deferred resampler rebuild at a new input
// rate, applied at the start of the next pump before SetPitchRatio's
// pending value (see Engine.pumpFrames). Fails with ErrVoiceDestroyed
// if the voice is not currently bound to an engine.
func (v *Voice) ResetSampleRate(inRate int) error {
	if err := v.requireBound(); err != nil {
		return err
	}
	v.pendingRate.Store(int64(inRate) + 1)
	return nil
}

// SetPitchRatio latches a deferred io-ratio change, optionally slewed
// over slewFrames output frames. Applied at the start of the next
// pump, after any pending ResetSampleRate. Fails with
// ErrVoiceDestroyed if the voice is not currently bound to an engine.
func (v *Voice) SetPitchRatio(ratio float64, slewFrames int) error {
	if err := v.requireBound(); err != nil {
		return err
	}
	v.pendingRatio.Store(math.Float64bits(ratio))
	v.pendingSlew.Store(int32(slewFrames))
	v.ratioPending.Store(true)
	return nil
}

// applyDeferred runs the reset-then-pitch order documented in
// DESIGN.md's Open Question decision.
func (v *Voice) applyDeferred() {
	if hz := v.pendingRate.Swap(0); hz != 0 {
		v.resampler.ResetInputRate(int(hz - 1))
	}
	if v.ratioPending.CompareAndSwap(true, false) {
		ratio := math.Float64frombits(v.pendingRatio.Load())
		slew := int(v.pendingSlew.Load())
		v.resampler.SetIORatio(ratio, slew)
	}
}

// pump applies this voice's deferred parameter changes then resamples
// frames output frames into dst (len(dst) == frames*channels), pulling
// input through its SupplyCallback (or zero-filling if silent).
// scratchIn is the engine's shared scratch_in vector, forwarded
// straight through to the resampler so every voice in a pump reuses
// the same backing storage rather than each allocating its own.
func (v *Voice) pump(dt float64, frames int, dst []float32, scratchIn []int16) {
	v.mu.Lock()
	preSupply := v.preSupply
	v.mu.Unlock()

	if preSupply != nil {
		preSupply(v, dt)
	}
	v.applyDeferred()

	pull := func(n int, buf []int16) int {
		if v.silent.Load() || v.supply == nil {
			for i := range buf {
				buf[i] = 0
			}
			return n
		}
		return v.supply(v, n, buf)
	}
	v.resampler.Read(dst, frames, pull, scratchIn)
}

// Sends returns a snapshot of the voice's current submix routing.
func (v *Voice) Sends() []Send {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Send, len(v.sends))
	copy(out, v.sends)
	return out
}

// sendPtr returns a pointer to the live Send entry for busID so the
// engine can advance its matrix's slew state in place, or nil.
func (v *Voice) sendPtr(busID string) *Send {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.sends {
		if v.sends[i].BusID == busID {
			return &v.sends[i]
		}
	}
	return nil
}

// Route returns the voice's post-resample routing hook, or nil.
func (v *Voice) Route() RouteCallback {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.route
}

// Channels returns 1 for a mono voice, 2 for a stereo voice.
func (v *Voice) Channels() int {
	if v.stereo {
		return 2
	}
	return 1
}

