// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package input

import "sync"

func init() {
	Register(&manualDriver{})
}

const manualDriverName = "manual"

// manualDriver backs the "manual" transport: a synthetic backend with
// no OS wiring, whose tests drive hot-plug events directly through
// ManualSource's Connect/Disconnect methods. It plays the same role
// for input that gfx/null plays for gfx.
type manualDriver struct{}

func (d *manualDriver) Name() string { return manualDriverName }

func (d *manualDriver) Open(l *Listener) (Source, error) {
	return &ManualSource{l: l, present: make(map[Handle]DeviceToken)}, nil
}

// ManualSource is the "manual" driver's Source: a test double that
// lets a test emit connect/disconnect notifications synchronously and
// track which devices Enumerate should currently report.
type ManualSource struct {
	l *Listener

	mu      sync.Mutex
	present map[Handle]DeviceToken
	closed  bool
}

// Enumerate returns every device currently marked present.
func (s *ManualSource) Enumerate() ([]DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeviceToken, 0, len(s.present))
	for _, t := range s.present {
		out = append(out, t)
	}
	return out, nil
}

// Connect marks t present and notifies the listener, as a real
// backend's OS hot-plug callback would.
func (s *ManualSource) Connect(t DeviceToken) {
	s.mu.Lock()
	s.present[t.Handle] = t
	s.mu.Unlock()
	s.l.OnConnect(t)
}

// Disconnect marks handle absent and notifies the listener.
func (s *ManualSource) Disconnect(handle Handle) {
	s.mu.Lock()
	delete(s.present, handle)
	s.mu.Unlock()
	s.l.OnDisconnect(handle)
}

// Close marks the source closed; Connect/Disconnect after Close are
// still accepted by this test double (a real transport would not
// deliver events after Close).
func (s *ManualSource) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
