// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"
)

// MaxMIDIPacket is the platform packet cap every Send must respect,
// matching AQS.cpp's 512-byte MIDIPacketList cap.
const MaxMIDIPacket = 512

// midiRingSize sizes the ring buffer backing each in endpoint's
// OS-thread-to-client handoff; generous enough to absorb a burst of
// max-size packets between drain ticks.
const midiRingSize = MaxMIDIPacket * 64

// midiFrameHeader is the length-prefix + host-time header every frame
// enqueued in a MIDIIn's ring carries, so the draining goroutine can
// recover packet boundaries and host time from the byte-oriented ring.
const midiFrameHeader = 2 + 8 // uint16 length, float64 host time

// midiDrainInterval is how often a MIDIIn's draining goroutine polls
// its ring, matching the poll-and-drain idiom tphakala-birdnet-go uses
// around the same ringbuffer package.
const midiDrainInterval = time.Millisecond

// MIDIDeviceInfo is one entry from MIDIClient.Devices.
type MIDIDeviceInfo struct {
	ID   string
	Name string
}

// MIDIReceiveFunc is invoked once per incoming packet, on the owning
// MIDIIn's draining goroutine. If the owning MIDIClient's UseMIDILock
// is true, the engine mutex wraps this call.
type MIDIReceiveFunc func(bytes []byte, hostTimeSeconds float64)

// MIDIClient owns virtual and real MIDI endpoints for one Engine. Its
// UseMIDILock field mirrors AQS.cpp's useMIDILock(): when true,
// endpoint delivery is wrapped with the owning Engine's own mutex —
// the same one pumpFrames holds for the duration of a pump — so a
// receiver may safely touch engine state without racing a pump.
type MIDIClient struct {
	engine      *Engine
	UseMIDILock bool

	mu      sync.Mutex
	devices []MIDIDeviceInfo
}

// NewMIDIClient constructs a client owned by engine, with an optional
// static device table (as a real backend would populate via OS
// enumeration). engine must not be nil; it is the mutex UseMIDILock
// locks delivery under.
func NewMIDIClient(engine *Engine, devices []MIDIDeviceInfo, useMIDILock bool) *MIDIClient {
	return &MIDIClient{
		engine:      engine,
		UseMIDILock: useMIDILock,
		devices:     append([]MIDIDeviceInfo(nil), devices...),
	}
}

// Devices enumerates known real MIDI devices, mirroring
// enumerateMIDIDevices/LookupMIDIDevice in AQS.cpp.
func (c *MIDIClient) Devices() []MIDIDeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MIDIDeviceInfo, len(c.devices))
	copy(out, c.devices)
	return out
}

func (c *MIDIClient) lookup(deviceID string) (MIDIDeviceInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.devices {
		if d.ID == deviceID {
			return d, true
		}
	}
	return MIDIDeviceInfo{}, false
}

func (c *MIDIClient) deliver(recv MIDIReceiveFunc, bytes []byte, hostTime float64) {
	if recv == nil {
		return
	}
	if c.UseMIDILock && c.engine != nil {
		c.engine.midiMu.Lock()
		defer c.engine.midiMu.Unlock()
	}
	recv(bytes, hostTime)
}

// MIDIIn is an input-only MIDI endpoint. Incoming packets are framed
// with a length + host-time header and queued into a bounded ring
// that decouples the OS delivery thread from recv's execution time; a
// dedicated goroutine drains the ring and invokes recv for every
// complete frame it finds, so a full ring only ever delays delivery
// under a sustained burst, never stops it permanently. A ring with no
// room for an incoming frame drops that one packet, logged as a
// warning.
type MIDIIn struct {
	name   string
	client *MIDIClient
	recv   MIDIReceiveFunc

	ringMu sync.Mutex
	ring   *ringbuffer.RingBuffer

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newMIDIIn(client *MIDIClient, name string, recv MIDIReceiveFunc) *MIDIIn {
	m := &MIDIIn{
		name:   name,
		client: client,
		recv:   recv,
		ring:   ringbuffer.New(midiRingSize),
		stopCh: make(chan struct{}),
	}
	m.wg.Add(1)
	go m.drain()
	return m
}

// NewVirtualIn creates a virtual MIDI input endpoint with a
// UUID-suffixed name, unique across process restarts without a shared
// counter file (unlike the original's "Boo MIDI Virtual In %u").
func (c *MIDIClient) NewVirtualIn(recv MIDIReceiveFunc) (*MIDIIn, error) {
	return newMIDIIn(c, fmt.Sprintf("mm MIDI Virtual In %s", uuid.NewString()), recv), nil
}

// NewRealIn opens a real device's input endpoint by device id, as
// returned by Devices.
func (c *MIDIClient) NewRealIn(deviceID string, recv MIDIReceiveFunc) (*MIDIIn, error) {
	d, ok := c.lookup(deviceID)
	if !ok {
		return nil, ErrNoMIDIDevice
	}
	return newMIDIIn(c, d.Name, recv), nil
}

// Description returns the endpoint's human-readable name.
func (m *MIDIIn) Description() string { return m.name }

// DeliverRaw is called by a backend, from whatever thread the OS MIDI
// subsystem delivers on, with one incoming packet. The packet is
// framed and enqueued for the draining goroutine to hand to recv;
// DeliverRaw itself never calls recv and so never blocks on it. This
// is the same external-collaborator seam input.Listener's
// OnConnect/OnDisconnect play for hot-plug drivers.
func (m *MIDIIn) DeliverRaw(bytes []byte, hostTime float64) {
	select {
	case <-m.stopCh:
		return
	default:
	}

	frame := make([]byte, midiFrameHeader+len(bytes))
	binary.LittleEndian.PutUint16(frame, uint16(len(bytes)))
	binary.LittleEndian.PutUint64(frame[2:], math.Float64bits(hostTime))
	copy(frame[midiFrameHeader:], bytes)

	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	if m.ring.Free() < len(frame) {
		log.Printf("audio: MIDI in %q dropped a packet: ring buffer full", m.name)
		return
	}
	if _, err := m.ring.Write(frame); err != nil {
		log.Printf("audio: MIDI in %q dropped a packet: %v", m.name, err)
	}
}

// drain polls the ring for complete frames and hands each one to recv
// through the client's lock policy, until Close closes stopCh.
func (m *MIDIIn) drain() {
	defer m.wg.Done()
	ticker := time.NewTicker(midiDrainInterval)
	defer ticker.Stop()
	header := make([]byte, midiFrameHeader)
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			for m.drainOne(header) {
			}
		}
	}
}

// drainOne reads and delivers a single framed packet, if one is fully
// buffered. It reports whether a frame was consumed, so drain can
// drain a burst down to empty within one tick.
func (m *MIDIIn) drainOne(header []byte) bool {
	m.ringMu.Lock()
	avail := m.ring.Length()
	if avail < midiFrameHeader {
		m.ringMu.Unlock()
		return false
	}
	if _, err := m.ring.Read(header); err != nil {
		m.ringMu.Unlock()
		return false
	}
	n := int(binary.LittleEndian.Uint16(header))
	hostTime := math.Float64frombits(binary.LittleEndian.Uint64(header[2:]))
	payload := make([]byte, n)
	if n > 0 {
		if _, err := m.ring.Read(payload); err != nil {
			m.ringMu.Unlock()
			return false
		}
	}
	m.ringMu.Unlock()

	m.client.deliver(m.recv, payload, hostTime)
	return true
}

// Close releases the endpoint's OS resources and stops its draining
// goroutine. Safe to call more than once.
func (m *MIDIIn) Close() {
	m.closeOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// MIDIOut is an output-only MIDI endpoint.
type MIDIOut struct {
	name   string
	mu     sync.Mutex
	closed bool
}

func newMIDIOut(name string) *MIDIOut { return &MIDIOut{name: name} }

// NewVirtualOut creates a virtual MIDI output endpoint.
func (c *MIDIClient) NewVirtualOut() (*MIDIOut, error) {
	return newMIDIOut(fmt.Sprintf("mm MIDI Virtual Out %s", uuid.NewString())), nil
}

// NewRealOut opens a real device's output endpoint by device id.
func (c *MIDIClient) NewRealOut(deviceID string) (*MIDIOut, error) {
	d, ok := c.lookup(deviceID)
	if !ok {
		return nil, ErrNoMIDIDevice
	}
	return newMIDIOut(d.Name), nil
}

// Description returns the endpoint's human-readable name.
func (m *MIDIOut) Description() string { return m.name }

// Send transmits bytes, which must not exceed MaxMIDIPacket.
func (m *MIDIOut) Send(bytes []byte) error {
	if len(bytes) > MaxMIDIPacket {
		return ErrPacketTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrEngineStopped
	}
	// A concrete backend writes bytes to the OS MIDI queue here; this
	// module fixes the endpoint contract only (see gfx's equivalent
	// backend-is-an-external-collaborator note).
	return nil
}

// Close releases the endpoint's OS resources. Safe to call more than
// once.
func (m *MIDIOut) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// MIDIInOut combines an in and an out endpoint sharing one OS handle.
type MIDIInOut struct {
	*MIDIIn
	*MIDIOut
}

// NewVirtualInOut creates a combined virtual MIDI in+out endpoint.
func (c *MIDIClient) NewVirtualInOut(recv MIDIReceiveFunc) (*MIDIInOut, error) {
	name := fmt.Sprintf("mm MIDI Virtual InOut %s", uuid.NewString())
	return &MIDIInOut{MIDIIn: newMIDIIn(c, name, recv), MIDIOut: newMIDIOut(name)}, nil
}

// NewRealInOut opens a real device's combined in+out endpoint.
func (c *MIDIClient) NewRealInOut(deviceID string, recv MIDIReceiveFunc) (*MIDIInOut, error) {
	d, ok := c.lookup(deviceID)
	if !ok {
		return nil, ErrNoMIDIDevice
	}
	return &MIDIInOut{MIDIIn: newMIDIIn(c, d.Name, recv), MIDIOut: newMIDIOut(d.Name)}, nil
}

// Close releases both halves of the endpoint. Safe to call more than
// once.
func (m *MIDIInOut) Close() {
	m.MIDIIn.Close()
	m.MIDIOut.Close()
}

// Description returns the endpoint's shared human-readable name.
func (m *MIDIInOut) Description() string { return m.MIDIIn.Description() }
