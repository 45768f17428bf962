// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package audio

import (
	"encoding/binary"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gviegas/mm/internal/bitvec"
)

// VoiceHandle identifies a voice registered with an Engine. It is
// returned by AddVoice and consumed by RemoveVoice, giving O(1)
// unbind against the engine's slot-indexed voice registry.
type VoiceHandle struct {
	slot int
}

// Engine owns the set of live voices, the main submix, any additional
// submixes, the per-format scratch buffers shared across a pump, and
// the callback/client rendezvous channels used in retrace scheduling
// mode.
//
// Exactly two logical threads interact with a running Engine: the
// hardware callback (RetraceCallback, or a backend's own callback in
// direct mode) and the client control thread (AddVoice/RemoveVoice/
// AddSubmix/Retrace). Only the goroutine executing a pump mutates
// merge buffers, resampler state and scratch vectors, per the
// package's single-writer-per-pump discipline.
type Engine struct {
	info MixInfo

	voiceMu sync.Mutex
	slots   bitvec.V[uint64]
	voices  []*Voice

	subMu    sync.Mutex
	submixes map[string]*Submix
	main     *Submix

	// scratchIn is the shared per-pump int16 scratch vector every
	// voice's resampler pulls one input frame into (see Voice.pump,
	// resample.Resampler.Read); its backing storage is sized and
	// grown here rather than per voice, per spec's "voices share
	// per-format scratch vectors" requirement.
	scratchIn     []int16
	scratchPre    []float32
	scratchRouted []float32
	scratchFrames int // largest period pumped so far, for Property P2

	hwBuf []byte

	enterCh   chan int
	leaveCh   chan []byte
	stopCh    chan struct{}
	stopOnce  sync.Once
	cbRunning bool
	rzMu      sync.Mutex

	// midiMu is "the engine mutex" spec section 5 refers to: a
	// MIDIClient with UseMIDILock set wraps receiver delivery with it,
	// and pumpFrames holds it for the duration of a pump, so a
	// receiver touching engine state (adding/removing voices, changing
	// sends) is serialized against an in-flight pump rather than
	// racing it.
	midiMu sync.Mutex
}

// NewEngine constructs an idle engine for the given output format. The
// main submix is created automatically under MainBusID.
func NewEngine(info MixInfo) (*Engine, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	if len(info.ChannelMap) == 0 {
		info.ChannelMap = DefaultChannelMap(info.ChannelSet)
	}
	e := &Engine{
		info:     info,
		submixes: make(map[string]*Submix),
		enterCh:  make(chan int),
		leaveCh:  make(chan []byte),
		stopCh:   make(chan struct{}),
	}
	e.main = NewSubmix(MainBusID, info.ChannelSet.Channels())
	e.submixes[MainBusID] = e.main
	if err := e.growScratch(info.PeriodFrames); err != nil {
		return nil, err
	}
	e.cbRunning = true
	return e, nil
}

// Info returns the engine's fixed output format.
func (e *Engine) Info() MixInfo { return e.info }

// AddVoice registers v with the engine and returns a handle used to
// remove it later. Must not be called concurrently with a pump.
func (e *Engine) AddVoice(v *Voice) VoiceHandle {
	e.voiceMu.Lock()
	defer e.voiceMu.Unlock()
	idx, ok := e.slots.Search()
	if !ok {
		idx = e.slots.Grow(1)
	}
	e.slots.Set(idx)
	for len(e.voices) <= idx {
		e.voices = append(e.voices, nil)
	}
	e.voices[idx] = v
	v.bound.Store(true)
	return VoiceHandle{slot: idx}
}

// RemoveVoice unbinds the voice referenced by h in O(1). Must not be
// called concurrently with a pump.
func (e *Engine) RemoveVoice(h VoiceHandle) {
	e.voiceMu.Lock()
	defer e.voiceMu.Unlock()
	if h.slot < 0 || h.slot >= len(e.voices) || e.voices[h.slot] == nil {
		return
	}
	e.voices[h.slot].bound.Store(false)
	e.voices[h.slot] = nil
	e.slots.Unset(h.slot)
}

func (e *Engine) snapshotVoices() []*Voice {
	e.voiceMu.Lock()
	defer e.voiceMu.Unlock()
	out := make([]*Voice, 0, len(e.voices))
	for _, v := range e.voices {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// AddSubmix registers a non-main submix under its own BusID.
func (e *Engine) AddSubmix(s *Submix) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.submixes[s.BusID] = s
}

// RemoveSubmix drops a previously-registered submix. Removing
// MainBusID is a no-op; the main submix cannot be removed.
func (e *Engine) RemoveSubmix(busID string) {
	if busID == MainBusID {
		return
	}
	e.subMu.Lock()
	defer e.subMu.Unlock()
	delete(e.submixes, busID)
}

func (e *Engine) submix(busID string) *Submix {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return e.submixes[busID]
}

// ScratchFrames reports the largest period the scratch buffers have
// been sized for: the configured PeriodFrames from construction, or
// any larger period pumped since — Property P2 requires every scratch
// buffer's capacity track this monotonically.
func (e *Engine) ScratchFrames() int { return e.scratchFrames }

// MaxScratchGrowthFactor bounds how large a single pump's period may
// grow the shared scratch vectors relative to the engine's originally
// configured period, so a malformed backend callback (a bogus
// RetraceCallback periodFrames) cannot force an unbounded allocation.
const MaxScratchGrowthFactor = 64

func (e *Engine) growScratch(frames int) error {
	if frames > e.info.PeriodFrames*MaxScratchGrowthFactor {
		return ErrInvalidPeriod
	}
	if frames <= e.scratchFrames && e.scratchIn != nil {
		return nil
	}
	if frames > e.scratchFrames {
		e.scratchFrames = frames
	}
	n := e.scratchFrames
	if cap(e.scratchIn) < n*2 {
		e.scratchIn = make([]int16, n*2)
	}
	if cap(e.scratchPre) < n*2 {
		e.scratchPre = make([]float32, n*2)
	}
	if cap(e.scratchRouted) < n*2 {
		e.scratchRouted = make([]float32, n*2)
	}
	return nil
}

// PumpAndMixVoices runs one pump synchronously on the calling
// goroutine — the pull-driven scheduling mode of spec section 4.2.2.
func (e *Engine) PumpAndMixVoices(dt float64) ([]byte, error) {
	return e.pumpFrames(dt, e.info.PeriodFrames)
}

// pumpFrames is the five-step pump procedure: deferred updates are
// applied inside Voice.pump; steps 2-5 happen here.
func (e *Engine) pumpFrames(dt float64, frames int) ([]byte, error) {
	e.midiMu.Lock()
	defer e.midiMu.Unlock()

	if err := e.growScratch(frames); err != nil {
		return nil, err
	}

	e.subMu.Lock()
	subs := make([]*Submix, 0, len(e.submixes))
	for _, s := range e.submixes {
		subs = append(subs, s)
	}
	e.subMu.Unlock()
	for _, s := range subs {
		s.reset(frames)
	}

	for _, v := range e.snapshotVoices() {
		if !v.Running() {
			continue
		}
		ch := v.Channels()
		need := frames * ch
		dst := e.scratchPre[:need]
		v.pump(dt, frames, dst, e.scratchIn)

		route := v.Route()
		for _, send := range v.Sends() {
			sm := e.submix(send.BusID)
			if sm == nil {
				log.Printf("audio: %v: bus %q", ErrUnknownSubmix, send.BusID)
				continue
			}
			routed := dst
			if route != nil {
				routedBuf := e.scratchRouted[:need]
				route(frames, ch, dt, send.BusID, dst, routedBuf)
				routed = routedBuf
			}
			mPtr := v.sendPtr(send.BusID)
			if mPtr == nil {
				continue
			}
			sm.mixAdd(routed, frames, ch, &mPtr.Matrix)
		}
	}

	for _, s := range subs {
		if s == e.main {
			continue
		}
		if s.Effect != nil {
			s.Effect(frames, s.Channels, s.FloatBuffer())
		}
		e.main.mixAdd(s.FloatBuffer(), frames, s.Channels, &s.SendToMain)
	}
	if e.main.Effect != nil {
		e.main.Effect(frames, e.main.Channels, e.main.FloatBuffer())
	}

	return e.writeHardwareBuffer(frames), nil
}

func (e *Engine) writeHardwareBuffer(frames int) []byte {
	bps := e.info.SampleFormat.BytesPerSample()
	need := frames * e.info.ChannelSet.Channels() * bps
	if cap(e.hwBuf) < need {
		e.hwBuf = make([]byte, need)
	} else {
		e.hwBuf = e.hwBuf[:need]
	}
	switch e.info.SampleFormat {
	case FormatI16:
		samples := e.main.Int16Buffer()
		for i, s := range samples {
			binary.LittleEndian.PutUint16(e.hwBuf[i*2:], uint16(s))
		}
	case FormatI32:
		samples := e.main.Int32Buffer()
		for i, s := range samples {
			binary.LittleEndian.PutUint32(e.hwBuf[i*4:], uint32(s))
		}
	case FormatF32:
		samples := e.main.FloatBuffer()
		for i, s := range samples {
			binary.LittleEndian.PutUint32(e.hwBuf[i*4:], math.Float32bits(s))
		}
	}
	return e.hwBuf
}

// zeroBuf returns a zero-filled hardware buffer of the given period,
// used on a callback deadline miss (Property P5).
func (e *Engine) zeroBuf(frames int) []byte {
	bps := e.info.SampleFormat.BytesPerSample()
	buf := make([]byte, frames*e.info.ChannelSet.Channels()*bps)
	return buf
}

func periodDuration(frames, sampleRate int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// RetraceCallback is invoked by the hardware callback thread once per
// audio period when the engine runs in retrace scheduling mode. It
// signals the client thread's Retrace call via enterCh and waits for
// the mixed result on leaveCh, but never for longer than one period's
// wall-clock duration measured from the moment this call starts —
// covering both legs of the rendezvous, not just the wait for
// leaveCh — so a client that is a few instructions away from its next
// enterCh receive is not spuriously zero-filled. On timeout it returns
// a zero-filled buffer so the hardware never glitches (Property P5). A
// subsequent callback still occurs regardless of this one's outcome.
func (e *Engine) RetraceCallback(periodFrames int) []byte {
	e.rzMu.Lock()
	running := e.cbRunning
	e.rzMu.Unlock()
	if !running {
		return e.zeroBuf(periodFrames)
	}
	deadline := time.NewTimer(periodDuration(periodFrames, e.info.SampleRate))
	defer deadline.Stop()
	select {
	case e.enterCh <- periodFrames:
	case <-deadline.C:
		log.Printf("audio: engine missed retrace deadline, zero-filling %d frames", periodFrames)
		return e.zeroBuf(periodFrames)
	case <-e.stopCh:
		return e.zeroBuf(periodFrames)
	}
	select {
	case buf := <-e.leaveCh:
		return buf
	case <-deadline.C:
		log.Printf("audio: engine missed retrace deadline, zero-filling %d frames", periodFrames)
		return e.zeroBuf(periodFrames)
	case <-e.stopCh:
		return e.zeroBuf(periodFrames)
	}
}

// Retrace is called by the client thread exactly once per callback in
// retrace scheduling mode: it blocks until RetraceCallback signals
// enter, runs one pump, and signals leave with the result. It returns
// ErrEngineStopped once the engine has been stopped.
func (e *Engine) Retrace(dt float64) error {
	select {
	case frames := <-e.enterCh:
		buf, err := e.pumpFrames(dt, frames)
		if err != nil {
			return err
		}
		select {
		case e.leaveCh <- buf:
		case <-e.stopCh:
		}
		return nil
	case <-e.stopCh:
		return ErrEngineStopped
	}
}

// Stop flips cb_running false and unblocks any goroutine parked in
// RetraceCallback or Retrace, per the destruction pattern in spec
// section 5. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.rzMu.Lock()
		e.cbRunning = false
		e.rzMu.Unlock()
		close(e.stopCh)
	})
}
