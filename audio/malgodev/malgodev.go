// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package malgodev wires audio.Engine to a real playback device via
// github.com/gen2brain/malgo (Go bindings for miniaudio), the
// callback-driven hardware backend AQS.cpp's AQSAudioVoiceEngine plays
// on real hardware. It is the one concrete audio backend this module
// ships, the audio counterpart to gfx/null.
package malgodev

import (
	"fmt"
	"log"

	"github.com/gen2brain/malgo"

	"github.com/gviegas/mm/audio"
)

// Device drives an audio.Engine from malgo's own audio callback. Two
// modes are supported, matching spec section 4.2's callback-driven
// scheduling: Direct pumps the engine synchronously from inside
// malgo's callback (lowest latency); Retrace instead signals the
// engine's rendezvous channels and expects a client goroutine running
// Engine.Retrace to produce each period's buffer.
type Device struct {
	ctx     *malgo.AllocatedContext
	dev     *malgo.Device
	engine  *audio.Engine
	retrace bool
	dt      float64
}

func malgoFormat(f audio.SampleFormat) malgo.FormatType {
	switch f {
	case audio.FormatI16:
		return malgo.FormatS16
	case audio.FormatI32:
		return malgo.FormatS32
	case audio.FormatF32:
		return malgo.FormatF32
	default:
		return malgo.FormatS16
	}
}

// Open initializes a malgo playback context and device sized to
// engine's MixInfo, and starts it. If retrace is true, the device's
// data callback drives the engine's rendezvous (RetraceCallback)
// instead of pumping directly; the caller must then run a goroutine
// calling engine.Retrace once per period.
func Open(engine *audio.Engine, retrace bool) (*Device, error) {
	info := engine.Info()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Printf("malgodev: %s", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceFailed, err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgoFormat(info.SampleFormat)
	cfg.Playback.Channels = uint32(info.ChannelSet.Channels())
	cfg.SampleRate = uint32(info.SampleRate)
	cfg.PeriodSizeInFrames = uint32(info.PeriodFrames)

	d := &Device{ctx: ctx, engine: engine, retrace: retrace, dt: float64(info.PeriodFrames) / float64(info.SampleRate)}

	callbacks := malgo.DeviceCallbacks{
		Data: d.onSendFrames,
		Stop: d.onStop,
	}
	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		ctx.Uninit() //nolint:errcheck
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceFailed, err)
	}
	d.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit() //nolint:errcheck
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceFailed, err)
	}
	return d, nil
}

func (d *Device) onSendFrames(pOutput, _ []byte, frameCount uint32) {
	var buf []byte
	if d.retrace {
		buf = d.engine.RetraceCallback(int(frameCount))
	} else {
		var err error
		buf, err = d.engine.PumpAndMixVoices(d.dt)
		if err != nil {
			log.Printf("malgodev: pump failed: %v", err)
			return
		}
	}
	n := copy(pOutput, buf)
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

func (d *Device) onStop() {
	log.Printf("malgodev: device stopped")
}

// Close stops and tears down the device and its context. Safe to call
// more than once.
func (d *Device) Close() {
	if d.dev != nil {
		d.dev.Stop() //nolint:errcheck
		d.dev.Uninit()
		d.dev = nil
	}
	if d.ctx != nil {
		d.ctx.Uninit() //nolint:errcheck
		d.ctx = nil
	}
}
