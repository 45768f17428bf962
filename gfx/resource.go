// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package gfx

// BufferUse describes the intended use of a Buffer.
type BufferUse int

// Supported buffer uses.
const (
	Vertex BufferUse = iota
	Index
	Uniform
)

// Buffer is a typed span of GPU memory.
// Static buffers are filled once at creation; dynamic buffers expose
// Load and scoped Map/Unmap. A dynamic buffer's mapped region must be
// released (Unmap) before the next draw that consumes it.
type Buffer interface {
	Destroyer

	// Use returns the buffer's declared use.
	Use() BufferUse
	// Dynamic reports whether the buffer supports Load/Map/Unmap.
	Dynamic() bool
	// Stride returns the size in bytes of one element.
	Stride() int
	// Count returns the number of elements the buffer holds.
	Count() int
}

// DynamicBuffer is the subset of Buffer operations valid only on
// buffers created as dynamic.
type DynamicBuffer interface {
	Buffer

	// Load overwrites the buffer's contents.
	// len(data) must not exceed Stride()*Count().
	Load(data []byte) error
	// Map returns a writable region of sz bytes.
	// The region must be released with Unmap before the buffer is
	// next consumed by a draw call.
	Map(sz int) ([]byte, error)
	// Unmap releases a region obtained from Map.
	Unmap() error
	// Bytes returns a slice of length Stride()*Count() referring to
	// the buffer's underlying storage, on backends where dynamic
	// buffers are host-visible. It returns nil on a backend that
	// cannot expose memory this way.
	// The slice is valid for the lifetime of the buffer.
	Bytes() []byte
}

// TextureFormat describes the format of a texture's texels.
type TextureFormat int

// Supported texture formats.
const (
	RGBA8 TextureFormat = iota
	I8
	DXT1
	PVRTC4
)

// TextureKind distinguishes the four texture flavors.
type TextureKind int

// Supported texture kinds.
const (
	TextureStatic TextureKind = iota
	TextureStaticArray
	TextureDynamic
	TextureRender
)

// Texture is a GPU image resource.
type Texture interface {
	Destroyer

	Kind() TextureKind
	Format() TextureFormat
	Width() int
	Height() int
	// Layers is meaningful only for TextureStaticArray textures.
	Layers() int
	// Mips is meaningful only for non-render textures.
	Mips() int
	// ColorSampleable and DepthSampleable are meaningful only for
	// TextureRender textures.
	ColorSampleable() bool
	DepthSampleable() bool
}

// DynamicTexture is the subset of Texture operations valid only on
// textures created as dynamic.
type DynamicTexture interface {
	Texture

	Load(data []byte) error
	Map(sz int) ([]byte, error)
	Unmap() error
}

// VertexSemantic classifies a vertex element's role.
type VertexSemantic int

// Supported vertex semantics. Instanced is a modifier bit, not a
// semantic on its own; OR it into any of the other values.
const (
	Position3 VertexSemantic = 1 << iota
	Position4
	Normal3
	Normal4
	Color
	ColorUNorm
	UV2
	UV4
	Weight
	ModelView
	Instanced
)

// VertexElement describes one element of a VertexFormat.
type VertexElement struct {
	Buffer       Buffer
	Semantic     VertexSemantic
	SemanticIdx  int
}

// VertexFormat is an opaque token describing the layout of a vertex in
// one or more vertex buffers. Some backends (OpenGL-like) require it
// up front; others (Metal/Vulkan-like) bake the layout into the
// pipeline instead — see Context.BindingNeedsVertexFormat.
type VertexFormat interface {
	Destroyer
}

// Topology selects how vertex data is assembled into primitives.
type Topology int

// Supported topologies.
const (
	Triangles Topology = iota
	TriStrips
)

// CullMode selects primitive culling by facing direction.
type CullMode int

// Supported cull modes.
const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// BlendFactor is a source or destination blend factor.
type BlendFactor int

// Supported blend factors.
const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendDstColor
	BlendInvDstColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDstAlpha
	BlendInvDstAlpha
)

// PipelineDesc describes a compiled shader pipeline.
// VertFunc/FragFunc are opaque backend-specific blobs (source strings
// or precompiled binaries); a backend that supports blob caching may
// also fill CachedBlob on return.
type PipelineDesc struct {
	VertFunc, FragFunc []byte
	Topology           Topology
	Cull               CullMode
	SrcBlend, DstBlend BlendFactor
	DepthTest          bool
	DepthWrite         bool
	CachedBlob         []byte
}

// ShaderPipeline is an opaque token for a complete rasterization state
// (shaders plus blending/culling/depth modes).
type ShaderPipeline interface {
	Destroyer
}

// PipelineStage identifies a programmable stage for uniform binding.
type PipelineStage int

// Supported pipeline stages.
const (
	StageVertex PipelineStage = iota
	StageFragment
)

// UniformBinding describes one bound uniform buffer slot.
type UniformBinding struct {
	Buffer Buffer
	Stage  PipelineStage
	Offset int64
	Size   int64
}

// BindingDesc describes the closed set of resources a
// ShaderDataBinding references.
type BindingDesc struct {
	Pipeline     ShaderPipeline
	VertexFormat VertexFormat // nil where the backend does not need one
	VertexBuf    Buffer
	InstanceBuf  Buffer // optional
	IndexBuf     Buffer // optional
	Uniforms     []UniformBinding
	Textures     []Texture
	BaseVertex   int
	BaseInstance int
}

// ShaderDataBinding is an opaque indirection table combining a
// pipeline reference with a closed set of bound resources.
type ShaderDataBinding interface {
	Destroyer
}
