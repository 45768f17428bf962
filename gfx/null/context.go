// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package null

import (
	"errors"

	"github.com/gviegas/mm/gfx"
)

var (
	errOverflow      = errors.New("null: data larger than resource capacity")
	errAlreadyMapped = errors.New("null: resource already mapped")
	errNoVertexFmt   = errors.New("null: shader data binding requires a vertex format on this backend")
)

// context accumulates every resource a single transaction's builder
// creates, so a rejected transaction can unwind them and an accepted
// one can hand them to gfx.NewDataToken as one group.
type context struct {
	fact    *Factory
	created []gfx.Destroyer
}

func (c *context) Platform() gfx.Platform { return gfx.Null }
func (c *context) PlatformName() string   { return "Null" }

func (c *context) NewStaticBuffer(use gfx.BufferUse, data []byte, stride, count int) (gfx.Buffer, error) {
	b := newStaticBuffer(c.fact, use, data, stride, count)
	c.created = append(c.created, b)
	return b, nil
}

func (c *context) NewDynamicBuffer(use gfx.BufferUse, stride, count int) (gfx.DynamicBuffer, error) {
	b := newDynamicBuffer(c.fact, use, stride, count)
	c.created = append(c.created, b)
	return b, nil
}

func (c *context) NewStaticTexture(width, height, mips int, format gfx.TextureFormat, data []byte) (gfx.Texture, error) {
	t := &texture{fact: c.fact, kind: gfx.TextureStatic, format: format, width: width, height: height, mips: mips, data: append([]byte(nil), data...)}
	c.created = append(c.created, t)
	return t, nil
}

func (c *context) NewStaticArrayTexture(width, height, layers, mips int, format gfx.TextureFormat, data []byte) (gfx.Texture, error) {
	t := &texture{fact: c.fact, kind: gfx.TextureStaticArray, format: format, width: width, height: height, layers: layers, mips: mips, data: append([]byte(nil), data...)}
	c.created = append(c.created, t)
	return t, nil
}

func (c *context) NewDynamicTexture(width, height int, format gfx.TextureFormat) (gfx.DynamicTexture, error) {
	t := &texture{fact: c.fact, kind: gfx.TextureDynamic, format: format, width: width, height: height, mips: 1, data: make([]byte, width*height*4)}
	c.created = append(c.created, t)
	return t, nil
}

func (c *context) NewRenderTexture(width, height int, colorSampleable, depthSampleable bool) (gfx.Texture, error) {
	t := &texture{
		fact: c.fact, kind: gfx.TextureRender, format: gfx.RGBA8,
		width: width, height: height, mips: 1,
		colorSampleable: colorSampleable, depthSampleable: depthSampleable,
		data: make([]byte, width*height*4),
	}
	c.created = append(c.created, t)
	return t, nil
}

// BindingNeedsVertexFormat reports true: the null backend mirrors an
// OpenGL-like backend, so tests exercise the capability-bit path
// spec section 4.1/9 calls out.
func (c *context) BindingNeedsVertexFormat() bool { return true }

func (c *context) NewVertexFormat(elements []gfx.VertexElement, baseVertex, baseInstance int) (gfx.VertexFormat, error) {
	v := &vertexFormat{fact: c.fact, elements: append([]gfx.VertexElement(nil), elements...)}
	c.created = append(c.created, v)
	return v, nil
}

func (c *context) NewShaderPipeline(desc gfx.PipelineDesc) (gfx.ShaderPipeline, error) {
	p := &shaderPipeline{fact: c.fact, desc: desc}
	c.created = append(c.created, p)
	return p, nil
}

func (c *context) NewShaderDataBinding(desc gfx.BindingDesc) (gfx.ShaderDataBinding, error) {
	if c.BindingNeedsVertexFormat() && desc.VertexFormat == nil {
		return nil, errNoVertexFmt
	}
	b := &shaderDataBinding{fact: c.fact, desc: desc}
	c.created = append(c.created, b)
	return b, nil
}
