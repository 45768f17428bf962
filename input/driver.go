// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package input

import "sync"

// Source is what a Driver hands back from Open: the live connection
// to the OS hot-plug transport. Enumerate performs a synchronous,
// one-shot scan (used by ScanNow and the listener's initial scan);
// asynchronous hot-plug events are reported afterward by the driver
// calling the Listener's OnConnect/OnDisconnect directly.
type Source interface {
	// Enumerate lists every device currently present. A property read
	// failure for one device is skipped silently rather than failing
	// the whole scan, per spec section 7.
	Enumerate() ([]DeviceToken, error)
	// Close releases the transport. No further OnConnect/OnDisconnect
	// calls occur after Close returns.
	Close()
}

// Driver is a platform-specific hot-plug transport: USB, BlueTooth, a
// HID Manager, or (for this module's own tests) the "manual" transport
// in this package. It is an external collaborator per spec section 1;
// this module fixes the contract, not the OS wiring.
type Driver interface {
	Name() string
	// Open begins watching for hot-plug events on behalf of l. The
	// driver calls l.OnConnect/l.OnDisconnect from whatever goroutine
	// the OS delivers notifications on; Listener serializes them.
	Open(l *Listener) (Source, error)
}

var (
	mu      sync.Mutex
	drivers = make(map[string]Driver)
)

// Register makes a Driver available under its own Name for
// NewListener to open. Registering a name twice replaces the prior
// driver, matching gfx.Register's replace-by-name behavior.
func Register(d Driver) {
	mu.Lock()
	defer mu.Unlock()
	drivers[d.Name()] = d
}

func lookupDriver(name string) (Driver, bool) {
	mu.Lock()
	defer mu.Unlock()
	d, ok := drivers[name]
	return d, ok
}

// Drivers returns the names of every registered driver.
func Drivers() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
