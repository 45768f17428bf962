// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package null implements a gfx.Driver that keeps every resource in
// host memory instead of issuing vendor GPU calls. It exists for
// development without a graphics device and to exercise gfx's
// transaction/token/pool machinery in tests, the same role a
// zero-hardware "null renderer" plays in most engines.
package null

import (
	"sync"
	"sync/atomic"

	"github.com/gviegas/mm/gfx"
)

func init() {
	gfx.Register(&driver{})
}

const driverName = "null"

type driver struct {
	mu   sync.Mutex
	fact *Factory
}

func (d *driver) Open() (gfx.Factory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fact == nil {
		d.fact = &Factory{}
	}
	return d.fact, nil
}

func (d *driver) Name() string { return driverName }

func (d *driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fact = nil
}

// Factory is the null backend's gfx.Factory. It is safe for
// concurrent use by multiple goroutines running independent
// transactions.
type Factory struct {
	destroys int64
}

// DestroyCount returns the number of resources this factory has
// destroyed so far, across every group and pool it created. Tests use
// it to assert on the transaction/pool destruction properties (P3).
func (f *Factory) DestroyCount() int { return int(atomic.LoadInt64(&f.destroys)) }

func (f *Factory) recordDestroy() { atomic.AddInt64(&f.destroys, 1) }

func (f *Factory) Platform() gfx.Platform { return gfx.Null }
func (f *Factory) PlatformName() string   { return "Null" }

func (f *Factory) CommitTransaction(build func(gfx.Context) bool) (gfx.DataToken, error) {
	c := &context{fact: f}
	if !build(c) {
		for i := len(c.created) - 1; i >= 0; i-- {
			c.created[i].Destroy()
		}
		return gfx.DataToken{}, gfx.ErrTransactionFailed
	}
	return gfx.NewDataToken(c.created), nil
}

func (f *Factory) NewBufferPool() gfx.PoolToken {
	return gfx.NewPoolToken(func(use gfx.BufferUse, stride, count int) (gfx.DynamicBuffer, error) {
		return newDynamicBuffer(f, use, stride, count), nil
	})
}
