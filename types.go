package pdx

// File header. Every multi-byte value in the format is little-endian.
const (
	FileSignature = "@@b@"
	FormatVersion = uint32(1)
)

const (
	MeshExt = ".mesh"
	AnimExt = ".anim"
)

// Format constants fixed per major format revision.
const (
	// TagWidth is the fixed on-disk width of a chunk tag. Shorter tags are
	// NUL padded, longer ones truncated.
	TagWidth = 4

	// MaxSkinInfluences bounds the number of bone influences per vertex.
	MaxSkinInfluences = 4

	// MaxUVSets bounds the number of UV channels per mesh (u0..u3).
	MaxUVSets = 4
)

// Numeric tolerances. A deployment matching a specific engine should confirm
// these against real sample files.
const (
	// WeightSumTolerance is how far a vertex weight row may stray from
	// summing to 1.0 before a warning is raised.
	WeightSumTolerance = 1e-2

	// StaticSampleTolerance is the per-component tolerance under which an
	// animation sub-channel counts as constant and is stored once.
	StaticSampleTolerance = 1e-5

	// RoundTripTolerance is the float equality bound the format guarantees
	// across an encode/decode cycle.
	RoundTripTolerance = 1e-5
)

// ChunkKind is the closed enumeration of chunk payload flavors. Decode
// matches it exhaustively; an unknown kind byte is a malformed chunk, not an
// extension point.
type ChunkKind uint8

const (
	KindNone ChunkKind = iota // container, children only
	KindInt32
	KindUint32
	KindFloat32
	KindString
	KindFloat2
	KindFloat3
	KindFloat4

	kindCount
)

func (k ChunkKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float32"
	case KindString:
		return "string"
	case KindFloat2:
		return "float2"
	case KindFloat3:
		return "float3"
	case KindFloat4:
		return "float4"
	}
	return "invalid"
}

// Arity is the number of float32 components per element, zero for non-float
// kinds.
func (k ChunkKind) Arity() int {
	switch k {
	case KindFloat32:
		return 1
	case KindFloat2:
		return 2
	case KindFloat3:
		return 3
	case KindFloat4:
		return 4
	}
	return 0
}

// Chunk tag vocabulary of the mesh and animation schemas.
const (
	TagRoot = "pdx"

	TagSkeleton = "skel"
	TagBone     = "bone"
	TagIndex    = "ix"
	TagParent   = "pa"

	TagMesh        = "mesh"
	TagName        = "name"
	TagPositions   = "p"
	TagNormals     = "n"
	TagTangents    = "ta"
	TagTriangles   = "tri"
	TagMaterialRef = "mref"
	TagBounds      = "aabb"
	TagBoundsMin   = "min"
	TagBoundsMax   = "max"

	TagSkin        = "skin"
	TagInfluences  = "infs"
	TagSkinIndices = "ix"
	TagSkinWeights = "w"

	TagMaterial    = "mat"
	TagShader      = "shdr"
	TagTexture     = "tex"
	TagTextureSlot = "slot"
	TagTextureFile = "file"

	TagLocator   = "loc"
	TagTransform = "tx"

	TagAnimRoot    = "anim"
	TagInfo        = "info"
	TagFPS         = "fps"
	TagFrameCount  = "nf"
	TagBoneCount   = "nb"
	TagSampleFlags = "sa"

	TagTranslation = "t"
	TagRotation    = "q"
	TagScale       = "s"
)

// UVTag returns the tag of UV channel i (u0..u3).
func UVTag(i int) string {
	return "u" + string(rune('0'+i))
}
