// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package gfx defines a backend-agnostic contract for batching GPU
// resource creation into atomic transactions with move-only lifetime
// tokens.
//
// A Driver is opened to obtain a Factory. Resources are created inside
// a transaction (Factory.CommitTransaction), which either finalizes
// every resource created by the builder as one group and returns a
// DataToken owning them, or destroys everything the builder created
// and returns an error. Dropping a DataToken destroys every resource
// in its group. A parallel pool API (Factory.NewBufferPool) yields
// individually-deletable dynamic buffers grouped under a PoolToken.
//
// Package gfx fixes this contract only; it never issues a vendor GPU
// call itself. Concrete backends (OpenGL, Vulkan, Metal, D3D11/12, GX,
// GX2) register themselves with Register from their own init, the way
// database/sql drivers do. Package gfx/null is the one backend this
// module ships, used for development and for this package's own tests.
package gfx

import (
	"errors"
	"log"
	"sync"
)

// Driver loads and unloads an underlying Factory implementation.
type Driver interface {
	// Open initializes the driver and returns its Factory.
	// Further calls with the same receiver have no effect and must
	// return the same Factory. Not safe for parallel execution.
	Open() (Factory, error)

	// Name returns the name of the driver. It must not open it.
	Name() string

	// Close deinitializes the driver. Closing a driver that is not
	// open has no effect. Not safe for parallel execution.
	Close()
}

// Errors returned by Driver and Factory implementations.
var (
	// ErrNotInstalled means a platform-specific library required by
	// the driver is not present in the system.
	ErrNotInstalled = errors.New("gfx: missing required library")
	// ErrNoDevice means no suitable device could be found.
	ErrNoDevice = errors.New("gfx: no suitable device found")
	// ErrNoHostMemory means host memory could not be allocated.
	ErrNoHostMemory = errors.New("gfx: out of host memory")
	// ErrNoDeviceMemory means device memory could not be allocated.
	ErrNoDeviceMemory = errors.New("gfx: out of device memory")
	// ErrFatal means the driver is in an unrecoverable state. The
	// application must destroy everything created through the
	// driver's Factory and then call Close. Open may be called
	// again to reinitialize the driver.
	ErrFatal = errors.New("gfx: fatal error")
	// ErrTransactionFailed means the transaction's builder returned
	// failure; every resource it created was destroyed.
	ErrTransactionFailed = errors.New("gfx: transaction rejected")
	// ErrDestroyed means an operation targeted a token, resource or
	// pool that has already been destroyed.
	ErrDestroyed = errors.New("gfx: use after destroy")
)

// Drivers returns the registered drivers.
// Client code imports specific driver packages and calls this function
// from init; drivers that do not register themselves are never
// considered for selection.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	drv := make([]Driver, len(drivers))
	copy(drv, drivers)
	return drv
}

// Register registers a Driver.
// Driver implementations are expected to call Register exactly once,
// from an init function. If a driver with the same name is already
// registered, it is replaced by drv.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			log.Printf("[!] gfx driver %q replaced", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	log.Printf("gfx driver %q registered", drv.Name())
}

var (
	mu      sync.Mutex
	drivers []Driver = make([]Driver, 0, 1)
)

// Platform identifies the backend API a Factory issues calls to.
type Platform int

// Supported platforms.
const (
	Null Platform = iota
	OpenGL
	D3D11
	D3D12
	Metal
	Vulkan
	GX
	GX2
)

// String names the platform.
func (p Platform) String() string {
	switch p {
	case Null:
		return "Null"
	case OpenGL:
		return "OpenGL"
	case D3D11:
		return "D3D11"
	case D3D12:
		return "D3D12"
	case Metal:
		return "Metal"
	case Vulkan:
		return "Vulkan"
	case GX:
		return "GX"
	case GX2:
		return "GX2"
	default:
		return "unknown"
	}
}

// Destroyer is implemented by types that hold backend resources not
// managed by the garbage collector. Destroy must run exactly once.
type Destroyer interface {
	Destroy()
}
