// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gfx_test

import (
	"testing"

	"github.com/gviegas/mm/gfx"
	_ "github.com/gviegas/mm/gfx/null"
)

func openNull(t *testing.T) gfx.Factory {
	t.Helper()
	var drv gfx.Driver
	for _, d := range gfx.Drivers() {
		if d.Name() == "null" {
			drv = d
			break
		}
	}
	if drv == nil {
		t.Fatal("null driver not registered")
	}
	fact, err := drv.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return fact
}

// TestTransactionDrop covers scenario 4: open a transaction, create 10
// static buffers, commit, then drop the token and expect 10 destroys.
func TestTransactionDrop(t *testing.T) {
	fact := openNull(t)
	nf, ok := fact.(interface{ DestroyCount() int })
	if !ok {
		t.Fatal("factory does not expose DestroyCount")
	}

	tok, err := fact.CommitTransaction(func(ctx gfx.Context) bool {
		for i := 0; i < 10; i++ {
			if _, err := ctx.NewStaticBuffer(gfx.Vertex, []byte{1, 2, 3, 4}, 4, 1); err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if !tok.Valid() {
		t.Fatal("token should be valid after a successful commit")
	}
	if got := nf.DestroyCount(); got != 0 {
		t.Fatalf("DestroyCount before drop = %d, want 0", got)
	}

	tok.Drop()
	if got := nf.DestroyCount(); got != 10 {
		t.Fatalf("DestroyCount after drop = %d, want 10", got)
	}
	if tok.Valid() {
		t.Fatal("token should be invalid after drop")
	}

	// P3: dropping twice is idempotent.
	tok.Drop()
	if got := nf.DestroyCount(); got != 10 {
		t.Fatalf("DestroyCount after second drop = %d, want 10", got)
	}
}

// TestTransactionRejected verifies that a failed builder unwinds every
// resource it created and returns ErrTransactionFailed.
func TestTransactionRejected(t *testing.T) {
	fact := openNull(t)
	nf := fact.(interface{ DestroyCount() int })
	before := nf.DestroyCount()

	tok, err := fact.CommitTransaction(func(ctx gfx.Context) bool {
		for i := 0; i < 3; i++ {
			if _, err := ctx.NewStaticBuffer(gfx.Vertex, nil, 4, 1); err != nil {
				return false
			}
		}
		return false
	})
	if err == nil {
		t.Fatal("expected ErrTransactionFailed")
	}
	if tok.Valid() {
		t.Fatal("rejected transaction must not yield a valid token")
	}
	if got := nf.DestroyCount() - before; got != 3 {
		t.Fatalf("DestroyCount delta = %d, want 3", got)
	}
}

// TestPoolLifecycle covers scenario 5: allocate 3 dynamic buffers,
// delete one, drop the pool token; expect one destroy at delete time
// and two more at pool drop.
func TestPoolLifecycle(t *testing.T) {
	fact := openNull(t)
	nf := fact.(interface{ DestroyCount() int })
	before := nf.DestroyCount()

	poolTok := fact.NewBufferPool()
	if !poolTok.Valid() {
		t.Fatal("pool token should be valid")
	}

	bufs := make([]gfx.DynamicBuffer, 3)
	for i := range bufs {
		b, err := poolTok.NewPoolBuffer(gfx.Vertex, 4, 16)
		if err != nil {
			t.Fatalf("NewPoolBuffer: %v", err)
		}
		bufs[i] = b
	}

	poolTok.DeletePoolBuffer(bufs[0])
	if got := nf.DestroyCount() - before; got != 1 {
		t.Fatalf("DestroyCount delta after delete = %d, want 1", got)
	}

	// Deleting the same buffer twice must not double-count.
	poolTok.DeletePoolBuffer(bufs[0])
	if got := nf.DestroyCount() - before; got != 1 {
		t.Fatalf("DestroyCount delta after redundant delete = %d, want 1", got)
	}

	poolTok.Drop()
	if got := nf.DestroyCount() - before; got != 3 {
		t.Fatalf("DestroyCount delta after pool drop = %d, want 3", got)
	}
	poolTok.Drop()
	if got := nf.DestroyCount() - before; got != 3 {
		t.Fatalf("DestroyCount delta after second pool drop = %d, want 3", got)
	}
}

// TestDynamicBufferBytes covers the Bytes escape hatch: the null
// backend is always host-visible, so Load must be observable through
// Bytes, and a destroyed buffer must return nil.
func TestDynamicBufferBytes(t *testing.T) {
	fact := openNull(t)
	poolTok := fact.NewBufferPool()
	buf, err := poolTok.NewPoolBuffer(gfx.Vertex, 4, 1)
	if err != nil {
		t.Fatalf("NewPoolBuffer: %v", err)
	}
	if err := buf.Load([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := buf.Bytes()
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("Bytes() = %v, want the loaded contents", got)
	}
	poolTok.DeletePoolBuffer(buf)
	if got := buf.Bytes(); got != nil {
		t.Fatalf("Bytes() after destroy = %v, want nil", got)
	}
}

func TestBindingNeedsVertexFormat(t *testing.T) {
	fact := openNull(t)
	var needsFmt bool
	_, err := fact.CommitTransaction(func(ctx gfx.Context) bool {
		needsFmt = ctx.BindingNeedsVertexFormat()
		vbuf, err := ctx.NewStaticBuffer(gfx.Vertex, []byte{0, 0, 0, 0}, 4, 1)
		if err != nil {
			return false
		}
		pipe, err := ctx.NewShaderPipeline(gfx.PipelineDesc{})
		if err != nil {
			return false
		}
		if needsFmt {
			// Omitting the vertex format must fail on a backend
			// that requires one.
			if _, err := ctx.NewShaderDataBinding(gfx.BindingDesc{Pipeline: pipe, VertexBuf: vbuf}); err == nil {
				t.Error("expected error binding without a vertex format")
			}
			vf, err := ctx.NewVertexFormat([]gfx.VertexElement{{Buffer: vbuf, Semantic: gfx.Position3}}, 0, 0)
			if err != nil {
				return false
			}
			if _, err := ctx.NewShaderDataBinding(gfx.BindingDesc{Pipeline: pipe, VertexFormat: vf, VertexBuf: vbuf}); err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if !needsFmt {
		t.Skip("backend does not require a vertex format; nothing further to check")
	}
}

func TestPlatformString(t *testing.T) {
	cases := map[gfx.Platform]string{
		gfx.Null:   "Null",
		gfx.OpenGL: "OpenGL",
		gfx.Vulkan: "Vulkan",
		gfx.Metal:  "Metal",
		gfx.D3D11:  "D3D11",
		gfx.D3D12:  "D3D12",
		gfx.GX:     "GX",
		gfx.GX2:    "GX2",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Platform(%d).String() = %q, want %q", p, got, want)
		}
	}
}
