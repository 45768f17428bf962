// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package input_test

import (
	"testing"
	"time"

	"github.com/gviegas/mm/input"
)

func newTestListener(t *testing.T) (*input.Listener, *input.ManualSource, *input.Finder) {
	t.Helper()
	finder := input.NewFinder()
	l, err := input.NewListener("manual", finder)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	src, ok := l.Source().(*input.ManualSource)
	if !ok {
		t.Fatal("manual driver did not return a *ManualSource")
	}
	t.Cleanup(l.Destroy)
	return l, src, finder
}

// waitFor polls until cond returns true or the deadline elapses,
// since hot-plug notifications are marshalled onto the listener's
// goroutine asynchronously.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestListenerInitialState(t *testing.T) {
	l, _, _ := newTestListener(t)
	if got := l.State(); got != input.NotScanning {
		t.Fatalf("initial state = %v, want NotScanning", got)
	}
}

func TestConnectIgnoredUntilScanning(t *testing.T) {
	l, src, finder := newTestListener(t)
	tok := input.DeviceToken{Handle: "dev-1", VendorID: 1, ProductID: 2}

	src.Connect(tok)
	time.Sleep(20 * time.Millisecond)
	if finder.HasToken(tok.Handle) {
		t.Fatal("connect event applied while not scanning")
	}

	if err := l.StartScanning(); err != nil {
		t.Fatalf("StartScanning: %v", err)
	}
	src.Connect(tok)
	waitFor(t, func() bool { return finder.HasToken(tok.Handle) })
}

// TestHotplugRace covers scenario 6 and Property P6: connect(H),
// disconnect(H), connect(H) emitted rapidly while scanning must leave
// exactly one token for H.
func TestHotplugRace(t *testing.T) {
	l, src, finder := newTestListener(t)
	if err := l.StartScanning(); err != nil {
		t.Fatalf("StartScanning: %v", err)
	}

	tok := input.DeviceToken{Handle: "dev-race", VendorID: 0x04d8, ProductID: 0x00dd, Manufacturer: "Acme", Product: "Widget"}
	src.Connect(tok)
	src.Disconnect(tok.Handle)
	src.Connect(tok)

	waitFor(t, func() bool { return finder.HasToken(tok.Handle) })
	tokens := finder.Tokens()
	count := 0
	for _, tk := range tokens {
		if tk.Handle == tok.Handle {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("token set contains %d tokens for handle %q, want 1", count, tok.Handle)
	}
}

func TestDisconnectAppliesRegardlessOfScanningFlag(t *testing.T) {
	l, src, finder := newTestListener(t)
	tok := input.DeviceToken{Handle: "dev-2"}

	if err := l.StartScanning(); err != nil {
		t.Fatalf("StartScanning: %v", err)
	}
	src.Connect(tok)
	waitFor(t, func() bool { return finder.HasToken(tok.Handle) })

	if err := l.StopScanning(); err != nil {
		t.Fatalf("StopScanning: %v", err)
	}
	src.Disconnect(tok.Handle)
	waitFor(t, func() bool { return !finder.HasToken(tok.Handle) })
}

func TestScanNowIsSynchronous(t *testing.T) {
	_, src, finder := newTestListener(t)
	// Connect updates ManualSource.present synchronously before it
	// notifies the listener asynchronously, so a ScanNow issued right
	// after must already see the device without waiting for the
	// marshalled OnConnect to be processed.
	src.Connect(input.DeviceToken{Handle: "dev-direct"})
	l2, err := input.NewListener("manual", finder)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer l2.Destroy()
	src2 := l2.Source().(*input.ManualSource)
	src2.Connect(input.DeviceToken{Handle: "dev-direct-2"})
	if err := l2.ScanNow(); err != nil {
		t.Fatalf("ScanNow: %v", err)
	}
	if !finder.HasToken("dev-direct-2") {
		t.Fatal("ScanNow did not synchronously insert an already-present device")
	}
}

func TestDestroyStopsListener(t *testing.T) {
	l, src, finder := newTestListener(t)
	if err := l.StartScanning(); err != nil {
		t.Fatalf("StartScanning: %v", err)
	}
	l.Destroy()
	if l.State() != input.Destroyed {
		t.Fatalf("state after Destroy = %v, want Destroyed", l.State())
	}
	if err := l.StartScanning(); err == nil {
		t.Fatal("expected error starting scanning on a destroyed listener")
	}
	src.Connect(input.DeviceToken{Handle: "dev-after-destroy"})
	time.Sleep(20 * time.Millisecond)
	if finder.HasToken("dev-after-destroy") {
		t.Fatal("connect after Destroy should not reach the finder")
	}
}
