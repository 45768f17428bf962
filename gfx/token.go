// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gfx

import "sync"

// noCopy marks a type as non-copyable for the vet -copylocks check.
// DataToken and PoolToken embed it because they model move-only C++
// ownership handles: copying one silently duplicates the destroy
// hook, so `go vet` flagging a copy after first use is exactly the
// signal a caller needs.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Context is passed to a transaction builder. It creates any resource
// kind; every resource created through it becomes visible as one
// group at commit, or is destroyed if the builder reports failure.
type Context interface {
	Platform() Platform
	PlatformName() string

	NewStaticBuffer(use BufferUse, data []byte, stride, count int) (Buffer, error)
	NewDynamicBuffer(use BufferUse, stride, count int) (DynamicBuffer, error)

	NewStaticTexture(width, height, mips int, format TextureFormat, data []byte) (Texture, error)
	NewStaticArrayTexture(width, height, layers, mips int, format TextureFormat, data []byte) (Texture, error)
	NewDynamicTexture(width, height int, format TextureFormat) (DynamicTexture, error)
	NewRenderTexture(width, height int, colorSampleable, depthSampleable bool) (Texture, error)

	// BindingNeedsVertexFormat reports whether this backend requires
	// a non-nil VertexFormat in BindingDesc (OpenGL-like backends);
	// backends that bake vertex layout into the pipeline (Metal,
	// Vulkan-like) return false and ignore any format passed in.
	BindingNeedsVertexFormat() bool
	NewVertexFormat(elements []VertexElement, baseVertex, baseInstance int) (VertexFormat, error)

	NewShaderPipeline(desc PipelineDesc) (ShaderPipeline, error)
	NewShaderDataBinding(desc BindingDesc) (ShaderDataBinding, error)
}

// Factory is the entry point for batching resource creation.
type Factory interface {
	Platform() Platform
	PlatformName() string

	// CommitTransaction invokes build with a Context that can create
	// any resource kind. If build returns true, every resource it
	// created is finalized as one group and returned as a DataToken.
	// If build returns false (or panics with a recovered error is
	// out of scope — build must return, not panic), every resource
	// it created is destroyed and CommitTransaction returns
	// ErrTransactionFailed.
	CommitTransaction(build func(Context) bool) (DataToken, error)

	// NewBufferPool creates an empty pool of individually-deletable
	// dynamic buffers.
	NewBufferPool() PoolToken
}

// group backs a DataToken: the set of resources one transaction
// created, destroyed atomically and exactly once.
type group struct {
	mu        sync.Mutex
	resources []Destroyer
	done      bool
}

func newGroup(resources []Destroyer) *group {
	return &group{resources: resources}
}

func (g *group) destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	// Backend-defined order; destroy in reverse creation order so
	// that a resource referencing an earlier one (e.g. a binding
	// referencing a buffer) is torn down first.
	for i := len(g.resources) - 1; i >= 0; i-- {
		g.resources[i].Destroy()
	}
	g.resources = nil
}

// DataToken is a move-only ownership handle for a committed
// transaction's resource group. Dropping it destroys every resource
// in the group. Dropping it twice is a no-op. Do not drop a token and
// draw using its resources within the same frame.
type DataToken struct {
	noCopy
	g *group
}

// Valid reports whether the token still owns a live group.
func (t *DataToken) Valid() bool { return t.g != nil }

// Drop destroys every resource owned by the token. Safe to call more
// than once and safe to call on the zero value.
func (t *DataToken) Drop() {
	if t.g == nil {
		return
	}
	t.g.destroy()
	t.g = nil
}

// pool backs a PoolToken: a live set of individually-deletable
// dynamic buffers plus the backend constructor used to create them.
type pool struct {
	mu      sync.Mutex
	newBuf  func(use BufferUse, stride, count int) (DynamicBuffer, error)
	members map[DynamicBuffer]struct{}
	done    bool
}

func newPool(newBuf func(use BufferUse, stride, count int) (DynamicBuffer, error)) *pool {
	return &pool{newBuf: newBuf, members: make(map[DynamicBuffer]struct{})}
}

func (p *pool) newPoolBuffer(use BufferUse, stride, count int) (DynamicBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil, ErrDestroyed
	}
	buf, err := p.newBuf(use, stride, count)
	if err != nil {
		return nil, err
	}
	p.members[buf] = struct{}{}
	return buf, nil
}

func (p *pool) deletePoolBuffer(buf DynamicBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	if _, ok := p.members[buf]; !ok {
		return
	}
	delete(p.members, buf)
	buf.Destroy()
}

func (p *pool) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	for buf := range p.members {
		buf.Destroy()
	}
	p.members = nil
}

// PoolToken is a move-only ownership handle for an appendable list of
// dynamic buffers created and destroyed individually inside the
// pool's lifetime. Dropping it destroys every buffer still alive in
// the pool. Dropping it twice is a no-op.
type PoolToken struct {
	noCopy
	p *pool
}

// Valid reports whether the token still owns a live pool.
func (t *PoolToken) Valid() bool { return t.p != nil }

// NewPoolBuffer creates a new dynamic buffer owned by the pool.
func (t *PoolToken) NewPoolBuffer(use BufferUse, stride, count int) (DynamicBuffer, error) {
	if t.p == nil {
		return nil, ErrDestroyed
	}
	return t.p.newPoolBuffer(use, stride, count)
}

// DeletePoolBuffer destroys buf and removes it from the pool. Deleting
// a buffer that does not belong to the pool (or twice) is a no-op.
func (t *PoolToken) DeletePoolBuffer(buf DynamicBuffer) {
	if t.p == nil {
		return
	}
	t.p.deletePoolBuffer(buf)
}

// Drop destroys every buffer still alive in the pool. Safe to call
// more than once and safe to call on the zero value.
func (t *PoolToken) Drop() {
	if t.p == nil {
		return
	}
	t.p.destroy()
	t.p = nil
}

// NewDataToken is called by Factory implementations to finalize a
// successful transaction's resources as one group.
func NewDataToken(resources []Destroyer) DataToken {
	return DataToken{g: newGroup(resources)}
}

// NewPoolToken is called by Factory implementations to create a new
// pool token backed by the given buffer constructor.
func NewPoolToken(newBuf func(use BufferUse, stride, count int) (DynamicBuffer, error)) PoolToken {
	return PoolToken{p: newPool(newBuf)}
}
