// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package input

import (
	"log"
	"sync"
)

// ListenerState is one of the four states a Listener moves through,
// per spec section 4.5.
type ListenerState int

const (
	Constructed ListenerState = iota
	Scanning
	NotScanning
	Destroyed
)

func (s ListenerState) String() string {
	switch s {
	case Constructed:
		return "Constructed"
	case Scanning:
		return "Scanning"
	case NotScanning:
		return "NotScanning"
	case Destroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

type hotplugEvent struct {
	connect bool
	token   DeviceToken
	handle  Handle
}

// Listener owns a Driver's Source and the Finder it feeds. Every
// mutation of the finder's token set driven by an asynchronous
// hot-plug notification is serialized onto one internal goroutine —
// the idiomatic Go replacement for CFRunLoopPerformBlock's bounce
// onto a listener's run loop, since Go has no run-loop concept (see
// SPEC_FULL.md's REDESIGN FLAGS section). ScanNow, by contrast, mutates the
// finder directly and synchronously, matching the original's
// synchronous, lock-guarded scanNow.
type Listener struct {
	finder *Finder
	src    Source

	stateMu sync.Mutex
	state   ListenerState

	events chan hotplugEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	destroyOnce sync.Once
}

// NewListener opens driverName against finder and performs an initial
// synchronous scan before returning, matching
// CHIDListenerIOKit's constructor behavior. The listener starts in
// NotScanning: hot-plug notifications are received but connect events
// are ignored until StartScanning is called.
func NewListener(driverName string, finder *Finder) (*Listener, error) {
	drv, ok := lookupDriver(driverName)
	if !ok {
		return nil, ErrNoDriver
	}
	l := &Listener{
		finder: finder,
		state:  Constructed,
		events: make(chan hotplugEvent, 64),
		stop:   make(chan struct{}),
	}
	src, err := drv.Open(l)
	if err != nil {
		return nil, err
	}
	l.src = src

	l.wg.Add(1)
	go l.run()

	if err := l.ScanNow(); err != nil {
		log.Printf("input: initial scan failed: %v", err)
	}
	l.setState(NotScanning)
	return l, nil
}

func (l *Listener) setState(s ListenerState) {
	l.stateMu.Lock()
	l.state = s
	l.stateMu.Unlock()
}

// Source returns the driver Source backing this listener, so a caller
// that knows the concrete driver (e.g. a test using "manual") can
// drive it directly.
func (l *Listener) Source() Source { return l.src }

// State reports the listener's current state.
func (l *Listener) State() ListenerState {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.state
}

func (l *Listener) scanningEnabled() bool {
	return l.State() == Scanning
}

// StartScanning enables processing of connect notifications.
func (l *Listener) StartScanning() error {
	if l.State() == Destroyed {
		return ErrListenerClosed
	}
	l.setState(Scanning)
	return nil
}

// StopScanning disables processing of connect notifications; tokens
// already inserted are left in place, and disconnects are still
// processed regardless of scanning state.
func (l *Listener) StopScanning() error {
	if l.State() == Destroyed {
		return ErrListenerClosed
	}
	l.setState(NotScanning)
	return nil
}

// ScanNow performs a synchronous one-shot rescan: every device the
// driver currently enumerates that is not already in the finder is
// inserted. It does not remove stale tokens — that happens only via
// OnDisconnect — and it runs regardless of the Scanning/NotScanning
// state.
func (l *Listener) ScanNow() error {
	tokens, err := l.src.Enumerate()
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if !l.finder.HasToken(t.Handle) {
			l.finder.InsertToken(t)
		}
	}
	return nil
}

// OnConnect is called by the driver, from any goroutine, when a
// device connects. The insert is marshalled onto the listener's
// serializing goroutine and applied only if scanning is enabled and
// the handle is not already present, per spec section 4.5.
func (l *Listener) OnConnect(t DeviceToken) {
	select {
	case l.events <- hotplugEvent{connect: true, token: t}:
	case <-l.stop:
	}
}

// OnDisconnect is called by the driver, from any goroutine, when a
// device disconnects. The removal is marshalled onto the listener's
// serializing goroutine unconditionally of the scanning flag.
func (l *Listener) OnDisconnect(handle Handle) {
	select {
	case l.events <- hotplugEvent{connect: false, handle: handle}:
	case <-l.stop:
	}
}

func (l *Listener) run() {
	defer l.wg.Done()
	for {
		select {
		case ev := <-l.events:
			l.apply(ev)
		case <-l.stop:
			return
		}
	}
}

func (l *Listener) apply(ev hotplugEvent) {
	if ev.connect {
		if !l.scanningEnabled() {
			return
		}
		if !l.finder.HasToken(ev.token.Handle) {
			l.finder.InsertToken(ev.token)
		}
		return
	}
	l.finder.RemoveToken(ev.handle)
}

// Destroy stops the serializing goroutine and closes the underlying
// driver Source. Safe to call more than once, including concurrently.
func (l *Listener) Destroy() {
	l.destroyOnce.Do(func() {
		l.setState(Destroyed)
		close(l.stop)
		l.wg.Wait()
		l.src.Close()
	})
}
