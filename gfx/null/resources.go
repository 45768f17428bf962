// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package null

import (
	"sync"

	"github.com/gviegas/mm/gfx"
)

type buffer struct {
	fact       *Factory
	use        gfx.BufferUse
	stride     int
	count      int
	dynamic    bool
	mu         sync.Mutex
	data       []byte
	mapped     bool
	destroyed  bool
}

func newStaticBuffer(f *Factory, use gfx.BufferUse, data []byte, stride, count int) *buffer {
	b := &buffer{fact: f, use: use, stride: stride, count: count}
	b.data = append([]byte(nil), data...)
	return b
}

func newDynamicBuffer(f *Factory, use gfx.BufferUse, stride, count int) *buffer {
	return &buffer{
		fact:    f,
		use:     use,
		stride:  stride,
		count:   count,
		dynamic: true,
		data:    make([]byte, stride*count),
	}
}

func (b *buffer) Use() gfx.BufferUse { return b.use }
func (b *buffer) Dynamic() bool      { return b.dynamic }
func (b *buffer) Stride() int        { return b.stride }
func (b *buffer) Count() int         { return b.count }

func (b *buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.data = nil
	b.fact.recordDestroy()
}

func (b *buffer) Load(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return gfx.ErrDestroyed
	}
	if len(data) > len(b.data) {
		return errOverflow
	}
	copy(b.data, data)
	return nil
}

func (b *buffer) Map(sz int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, gfx.ErrDestroyed
	}
	if b.mapped {
		return nil, errAlreadyMapped
	}
	if sz > len(b.data) {
		return nil, errOverflow
	}
	b.mapped = true
	return b.data[:sz], nil
}

func (b *buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return gfx.ErrDestroyed
	}
	b.mapped = false
	return nil
}

// Bytes exposes the buffer's storage directly; the null backend is
// always host-visible, so this never returns nil for a live buffer.
func (b *buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	return b.data
}

type texture struct {
	fact            *Factory
	kind            gfx.TextureKind
	format          gfx.TextureFormat
	width, height   int
	layers, mips    int
	colorSampleable bool
	depthSampleable bool
	mu              sync.Mutex
	data            []byte
	mapped          bool
	destroyed       bool
}

func (t *texture) Kind() gfx.TextureKind      { return t.kind }
func (t *texture) Format() gfx.TextureFormat  { return t.format }
func (t *texture) Width() int                 { return t.width }
func (t *texture) Height() int                { return t.height }
func (t *texture) Layers() int                { return t.layers }
func (t *texture) Mips() int                  { return t.mips }
func (t *texture) ColorSampleable() bool      { return t.colorSampleable }
func (t *texture) DepthSampleable() bool      { return t.depthSampleable }

func (t *texture) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.data = nil
	t.fact.recordDestroy()
}

func (t *texture) Load(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return gfx.ErrDestroyed
	}
	if len(data) > len(t.data) {
		return errOverflow
	}
	copy(t.data, data)
	return nil
}

func (t *texture) Map(sz int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, gfx.ErrDestroyed
	}
	if t.mapped {
		return nil, errAlreadyMapped
	}
	if sz > len(t.data) {
		return nil, errOverflow
	}
	t.mapped = true
	return t.data[:sz], nil
}

func (t *texture) Unmap() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return gfx.ErrDestroyed
	}
	t.mapped = false
	return nil
}

type vertexFormat struct {
	fact      *Factory
	elements  []gfx.VertexElement
	destroyed bool
	mu        sync.Mutex
}

func (v *vertexFormat) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.fact.recordDestroy()
}

type shaderPipeline struct {
	fact      *Factory
	desc      gfx.PipelineDesc
	destroyed bool
	mu        sync.Mutex
}

func (p *shaderPipeline) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.fact.recordDestroy()
}

type shaderDataBinding struct {
	fact      *Factory
	desc      gfx.BindingDesc
	destroyed bool
	mu        sync.Mutex
}

func (b *shaderDataBinding) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.fact.recordDestroy()
}
