package pdx

import (
	"fmt"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
)

// Mesh translator: MeshDocument <-> chunk tree. The chunk layer carries the
// bytes; this layer owns the schema — which tags are legal where, which are
// required, and how vertex streams flatten into typed payloads.
//
// Root container child order is fixed: skeleton (omitted when absent), one
// container per mesh, one per material, one per locator.

// EncodeMeshDocument lowers a document into a chunk tree rooted at TagRoot.
func EncodeMeshDocument(doc *MeshDocument) (*Chunk, error) {
	if len(doc.Meshes) == 0 {
		return nil, fmt.Errorf("document has no meshes: %w", ErrSchemaViolation)
	}
	if doc.HasSkin() && (doc.Skeleton == nil || len(doc.Skeleton.Joints) == 0) {
		return nil, fmt.Errorf("document has skinned meshes but no skeleton: %w", ErrSchemaViolation)
	}
	root := NewContainer(TagRoot)
	if doc.Skeleton != nil && len(doc.Skeleton.Joints) > 0 {
		root.AppendChild(encodeSkeleton(doc.Skeleton))
	}
	for _, m := range doc.Meshes {
		c, err := encodeMesh(m)
		if err != nil {
			return nil, err
		}
		root.AppendChild(c)
	}
	for _, mat := range doc.Materials {
		root.AppendChild(encodeMaterial(mat))
	}
	for _, loc := range doc.Locators {
		root.AppendChild(encodeLocator(loc))
	}
	return root, nil
}

func encodeSkeleton(s *Skeleton) *Chunk {
	skel := NewContainer(TagSkeleton)
	for i, j := range s.Joints {
		j := j // chunks retain j.Rotation[:] etc; copy so each bone keeps its own array (go <1.22 loop var reuse)
		b := NewContainer(TagBone)
		b.AppendChild(NewStringChunk(TagName, j.Name))
		b.AppendChild(NewInt32Chunk(TagIndex, int32(i)))
		if j.Parent >= 0 {
			// Omitted for roots, matching the engine's own files.
			b.AppendChild(NewInt32Chunk(TagParent, int32(j.Parent)))
		}
		b.AppendChild(NewFloatChunk(TagRotation, KindFloat4, j.Rotation[:]))
		b.AppendChild(NewFloatChunk(TagTranslation, KindFloat3, j.Translation[:]))
		if j.Scale != nil {
			b.AppendChild(NewFloatChunk(TagScale, KindFloat3, j.Scale[:]))
		}
		skel.AppendChild(b)
	}
	return skel
}

func encodeMesh(m *Mesh) (*Chunk, error) {
	v := m.VertexCount()
	if v == 0 {
		return nil, fmt.Errorf("mesh %q has no vertices: %w", m.Name, ErrSchemaViolation)
	}
	if len(m.UVSets) > MaxUVSets {
		return nil, fmt.Errorf("mesh %q has %d UV sets, format allows %d: %w", m.Name, len(m.UVSets), MaxUVSets, ErrSchemaViolation)
	}
	c := NewContainer(TagMesh)
	c.AppendChild(NewStringChunk(TagName, m.Name))
	c.AppendChild(NewFloatChunk(TagPositions, KindFloat3, flattenVec3(m.Positions)))
	if len(m.Normals) > 0 {
		c.AppendChild(NewFloatChunk(TagNormals, KindFloat3, flattenVec3(m.Normals)))
	}
	for i, uv := range m.UVSets {
		c.AppendChild(NewFloatChunk(UVTag(i), KindFloat2, flattenVec2(uv)))
	}
	if len(m.Tangents) > 0 {
		c.AppendChild(NewFloatChunk(TagTangents, KindFloat4, flattenVec4(m.Tangents)))
	}
	tri := make([]int32, len(m.Triangles))
	for i, ix := range m.Triangles {
		tri[i] = int32(ix)
	}
	c.AppendChild(NewInt32Chunk(TagTriangles, tri...))
	if m.Material >= 0 {
		c.AppendChild(NewInt32Chunk(TagMaterialRef, int32(m.Material)))
	}
	aabb := NewContainer(TagBounds)
	aabb.AppendChild(NewFloatChunk(TagBoundsMin, KindFloat3, m.Bounds.Min[:]))
	aabb.AppendChild(NewFloatChunk(TagBoundsMax, KindFloat3, m.Bounds.Max[:]))
	c.AppendChild(aabb)
	if m.Skin != nil {
		sk, err := encodeSkin(m.Name, v, m.Skin)
		if err != nil {
			return nil, err
		}
		c.AppendChild(sk)
	}
	return c, nil
}

func encodeSkin(meshName string, vertices int, s *SkinBinding) (*Chunk, error) {
	if s.Influences < 1 || s.Influences > MaxSkinInfluences {
		return nil, fmt.Errorf("mesh %q: %d skin influences per vertex, format allows 1..%d: %w",
			meshName, s.Influences, MaxSkinInfluences, ErrSchemaViolation)
	}
	want := vertices * s.Influences
	if len(s.Indices) != want || len(s.Weights) != want {
		return nil, fmt.Errorf("mesh %q: skin arrays hold %d indices / %d weights, want %d: %w",
			meshName, len(s.Indices), len(s.Weights), want, ErrSchemaViolation)
	}
	c := NewContainer(TagSkin)
	c.AppendChild(NewInt32Chunk(TagInfluences, int32(s.Influences)))
	c.AppendChild(NewInt32Chunk(TagSkinIndices, s.Indices...))
	c.AppendChild(NewFloatChunk(TagSkinWeights, KindFloat32, s.Weights))
	return c, nil
}

func encodeMaterial(m *Material) *Chunk {
	c := NewContainer(TagMaterial)
	c.AppendChild(NewStringChunk(TagName, m.Name))
	c.AppendChild(NewStringChunk(TagShader, m.Shader))
	for _, t := range m.Textures {
		tex := NewContainer(TagTexture)
		tex.AppendChild(NewStringChunk(TagTextureSlot, t.Slot))
		tex.AppendChild(NewStringChunk(TagTextureFile, t.File))
		c.AppendChild(tex)
	}
	return c
}

func encodeLocator(l *Locator) *Chunk {
	c := NewContainer(TagLocator)
	c.AppendChild(NewStringChunk(TagName, l.Name))
	c.AppendChild(NewFloatChunk(TagPositions, KindFloat3, l.Position[:]))
	c.AppendChild(NewFloatChunk(TagRotation, KindFloat4, l.Rotation[:]))
	if l.ParentBone != "" {
		c.AppendChild(NewStringChunk(TagParent, l.ParentBone))
	}
	if l.WorldTransform != nil {
		c.AppendChild(NewFloatChunk(TagTransform, KindFloat4, flattenMat4(l.WorldTransform)))
	}
	return c
}

// DecodeMeshDocument raises a chunk tree back into a document. Unknown tags
// at any level are skipped for forward compatibility; known tags with the
// wrong shape and missing required sections fail with ErrSchemaViolation.
// Run ValidateMeshDocument on the result before handing it to a host.
func DecodeMeshDocument(root *Chunk) (*MeshDocument, error) {
	if root.Tag != TagRoot || !root.IsContainer() {
		return nil, fmt.Errorf("root chunk is %q (%s), want %q container: %w", root.Tag, root.Kind, TagRoot, ErrSchemaViolation)
	}
	doc := NewMeshDocument()
	for _, ch := range root.Children {
		switch ch.Tag {
		case TagSkeleton:
			if !ch.IsContainer() {
				return nil, leafNotContainer(ch)
			}
			if doc.Skeleton != nil {
				return nil, fmt.Errorf("document has more than one skeleton: %w", ErrSchemaViolation)
			}
			skel, err := decodeSkeleton(ch)
			if err != nil {
				return nil, err
			}
			doc.Skeleton = skel
		case TagMesh:
			if !ch.IsContainer() {
				return nil, leafNotContainer(ch)
			}
			m, err := decodeMesh(ch)
			if err != nil {
				return nil, err
			}
			doc.Meshes = append(doc.Meshes, m)
		case TagMaterial:
			if !ch.IsContainer() {
				return nil, leafNotContainer(ch)
			}
			mat, err := decodeMaterial(ch)
			if err != nil {
				return nil, err
			}
			doc.Materials = append(doc.Materials, mat)
		case TagLocator:
			if !ch.IsContainer() {
				return nil, leafNotContainer(ch)
			}
			loc, err := decodeLocator(ch)
			if err != nil {
				return nil, err
			}
			doc.Locators = append(doc.Locators, loc)
		default:
			// Unknown sibling: newer files may carry extra sections.
		}
	}
	if len(doc.Meshes) == 0 {
		return nil, fmt.Errorf("document has no meshes: %w", ErrSchemaViolation)
	}
	if doc.HasSkin() && doc.Skeleton == nil {
		return nil, fmt.Errorf("document has skinned meshes but no skeleton: %w", ErrSchemaViolation)
	}
	return doc, nil
}

func decodeSkeleton(c *Chunk) (*Skeleton, error) {
	bones := c.ChildrenTagged(TagBone)
	joints := make([]Joint, len(bones))
	seen := make([]bool, len(bones))
	for _, b := range bones {
		if !b.IsContainer() {
			return nil, leafNotContainer(b)
		}
		name, err := requireString(b, TagName)
		if err != nil {
			return nil, err
		}
		ix, err := requireInt(b, TagIndex)
		if err != nil {
			return nil, err
		}
		if ix < 0 || int(ix) >= len(joints) {
			return nil, fmt.Errorf("bone %q index %d outside 0..%d: %w", name, ix, len(joints)-1, ErrSchemaViolation)
		}
		if seen[ix] {
			return nil, fmt.Errorf("bone index %d declared twice: %w", ix, ErrSchemaViolation)
		}
		seen[ix] = true
		j := Joint{Name: name, Parent: -1}
		if pa, ok, err := optionalInt(b, TagParent); err != nil {
			return nil, err
		} else if ok {
			j.Parent = int(pa)
		}
		q, err := requireFloats(b, TagRotation, KindFloat4, 1)
		if err != nil {
			return nil, err
		}
		j.Rotation = quaternion.T{q[0], q[1], q[2], q[3]}
		t, err := requireFloats(b, TagTranslation, KindFloat3, 1)
		if err != nil {
			return nil, err
		}
		j.Translation = vec3.T{t[0], t[1], t[2]}
		if s, ok, err := optionalFloats(b, TagScale, KindFloat3, 1); err != nil {
			return nil, err
		} else if ok {
			j.Scale = &vec3.T{s[0], s[1], s[2]}
		}
		joints[ix] = j
	}
	return &Skeleton{Joints: joints}, nil
}

func decodeMesh(c *Chunk) (*Mesh, error) {
	name, err := requireString(c, TagName)
	if err != nil {
		return nil, err
	}
	m := NewMesh(name)

	p, err := requireFloats(c, TagPositions, KindFloat3, -1)
	if err != nil {
		return nil, err
	}
	m.Positions = vec3sFrom(p)
	v := m.VertexCount()

	if n, ok, err := optionalFloats(c, TagNormals, KindFloat3, -1); err != nil {
		return nil, err
	} else if ok {
		m.Normals = vec3sFrom(n)
	}
	for i := 0; i < MaxUVSets; i++ {
		uv, ok, err := optionalFloats(c, UVTag(i), KindFloat2, -1)
		if err != nil {
			return nil, err
		}
		if !ok {
			// UV channels must be contiguous from u0; a later channel after a
			// gap would otherwise shift into the wrong set.
			for k := i + 1; k < MaxUVSets; k++ {
				if c.Child(UVTag(k)) != nil {
					return nil, fmt.Errorf("mesh %q carries UV channel %s without %s: %w", name, UVTag(k), UVTag(i), ErrSchemaViolation)
				}
			}
			break
		}
		m.UVSets = append(m.UVSets, vec2sFrom(uv))
	}
	if ta, ok, err := optionalFloats(c, TagTangents, KindFloat4, -1); err != nil {
		return nil, err
	} else if ok {
		m.Tangents = vec4sFrom(ta)
	}

	tri, err := requireInts(c, TagTriangles)
	if err != nil {
		return nil, err
	}
	if len(tri)%3 != 0 {
		return nil, fmt.Errorf("mesh %q: %d triangle indices is not a multiple of 3: %w", name, len(tri), ErrSchemaViolation)
	}
	m.Triangles = make([]uint32, len(tri))
	for i, ix := range tri {
		m.Triangles[i] = uint32(ix)
	}

	if ref, ok, err := optionalInt(c, TagMaterialRef); err != nil {
		return nil, err
	} else if ok {
		m.Material = int(ref)
	}

	if aabb := c.Child(TagBounds); aabb != nil {
		if !aabb.IsContainer() {
			return nil, leafNotContainer(aabb)
		}
		min, err := requireFloats(aabb, TagBoundsMin, KindFloat3, 1)
		if err != nil {
			return nil, err
		}
		max, err := requireFloats(aabb, TagBoundsMax, KindFloat3, 1)
		if err != nil {
			return nil, err
		}
		m.Bounds.Min = vec3.T{min[0], min[1], min[2]}
		m.Bounds.Max = vec3.T{max[0], max[1], max[2]}
	} else {
		m.ComputeBounds()
	}

	if sk := c.Child(TagSkin); sk != nil {
		if !sk.IsContainer() {
			return nil, leafNotContainer(sk)
		}
		skin, err := decodeSkin(name, v, sk)
		if err != nil {
			return nil, err
		}
		m.Skin = skin
	}
	return m, nil
}

// decodeSkin restores per-vertex influence rows from the flat layout: a
// fixed stride of infs entries per vertex, index -1 / weight 0 padding.
func decodeSkin(meshName string, vertices int, c *Chunk) (*SkinBinding, error) {
	infs, err := requireInt(c, TagInfluences)
	if err != nil {
		return nil, err
	}
	if infs < 1 || infs > MaxSkinInfluences {
		return nil, fmt.Errorf("mesh %q: %d skin influences per vertex, format allows 1..%d: %w",
			meshName, infs, MaxSkinInfluences, ErrSchemaViolation)
	}
	ix, err := requireInts(c, TagSkinIndices)
	if err != nil {
		return nil, err
	}
	w, err := requireFloats(c, TagSkinWeights, KindFloat32, -1)
	if err != nil {
		return nil, err
	}
	want := vertices * int(infs)
	if len(ix) != want || len(w) != want {
		return nil, fmt.Errorf("mesh %q: skin arrays hold %d indices / %d weights, want %d (%d vertices x %d influences): %w",
			meshName, len(ix), len(w), want, vertices, infs, ErrSchemaViolation)
	}
	return &SkinBinding{Influences: int(infs), Indices: ix, Weights: w}, nil
}

func decodeMaterial(c *Chunk) (*Material, error) {
	name, err := requireString(c, TagName)
	if err != nil {
		return nil, err
	}
	shader, err := requireString(c, TagShader)
	if err != nil {
		return nil, err
	}
	m := NewMaterial(name, shader)
	for _, tex := range c.ChildrenTagged(TagTexture) {
		if !tex.IsContainer() {
			return nil, leafNotContainer(tex)
		}
		slot, err := requireString(tex, TagTextureSlot)
		if err != nil {
			return nil, err
		}
		file, err := requireString(tex, TagTextureFile)
		if err != nil {
			return nil, err
		}
		m.Textures = append(m.Textures, TextureSlot{Slot: slot, File: file})
	}
	return m, nil
}

func decodeLocator(c *Chunk) (*Locator, error) {
	name, err := requireString(c, TagName)
	if err != nil {
		return nil, err
	}
	l := &Locator{Name: name}
	p, err := requireFloats(c, TagPositions, KindFloat3, 1)
	if err != nil {
		return nil, err
	}
	l.Position = vec3.T{p[0], p[1], p[2]}
	q, err := requireFloats(c, TagRotation, KindFloat4, 1)
	if err != nil {
		return nil, err
	}
	l.Rotation = quaternion.T{q[0], q[1], q[2], q[3]}
	if pa, ok, err := optionalString(c, TagParent); err != nil {
		return nil, err
	} else if ok {
		l.ParentBone = pa
	}
	if tx, ok, err := optionalFloats(c, TagTransform, KindFloat4, 4); err != nil {
		return nil, err
	} else if ok {
		l.WorldTransform = mat4From(tx)
	}
	return l, nil
}

// ---- leaf extraction ----
//
// All of these treat a present-but-wrong-kind chunk as a schema violation:
// the tag is known at this nesting level, so its payload flavor is part of
// the contract.

func leafNotContainer(c *Chunk) error {
	return fmt.Errorf("chunk %q is a %s leaf where a container is required: %w", c.Tag, c.Kind, ErrSchemaViolation)
}

func wrongKind(c *Chunk, want ChunkKind) error {
	return fmt.Errorf("chunk %q holds %s, want %s: %w", c.Tag, c.Kind, want, ErrSchemaViolation)
}

func missingLeaf(parent *Chunk, tag string) error {
	return fmt.Errorf("container %q is missing required chunk %q: %w", parent.Tag, tag, ErrSchemaViolation)
}

func optionalString(parent *Chunk, tag string) (string, bool, error) {
	c := parent.Child(tag)
	if c == nil {
		return "", false, nil
	}
	if c.Kind != KindString {
		return "", false, wrongKind(c, KindString)
	}
	return c.Str, true, nil
}

func requireString(parent *Chunk, tag string) (string, error) {
	s, ok, err := optionalString(parent, tag)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", missingLeaf(parent, tag)
	}
	return s, nil
}

func optionalInt(parent *Chunk, tag string) (int32, bool, error) {
	c := parent.Child(tag)
	if c == nil {
		return 0, false, nil
	}
	if c.Kind != KindInt32 {
		return 0, false, wrongKind(c, KindInt32)
	}
	if len(c.Ints) != 1 {
		return 0, false, fmt.Errorf("chunk %q holds %d ints, want 1: %w", tag, len(c.Ints), ErrSchemaViolation)
	}
	return c.Ints[0], true, nil
}

func requireInt(parent *Chunk, tag string) (int32, error) {
	v, ok, err := optionalInt(parent, tag)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, missingLeaf(parent, tag)
	}
	return v, nil
}

func requireInts(parent *Chunk, tag string) ([]int32, error) {
	c := parent.Child(tag)
	if c == nil {
		return nil, missingLeaf(parent, tag)
	}
	if c.Kind != KindInt32 {
		return nil, wrongKind(c, KindInt32)
	}
	return c.Ints, nil
}

// optionalFloats fetches a float leaf of the given kind. elems > 0 pins the
// exact element count; -1 accepts any.
func optionalFloats(parent *Chunk, tag string, kind ChunkKind, elems int) ([]float32, bool, error) {
	c := parent.Child(tag)
	if c == nil {
		return nil, false, nil
	}
	if c.Kind != kind {
		return nil, false, wrongKind(c, kind)
	}
	if elems >= 0 && c.ElementCount() != elems {
		return nil, false, fmt.Errorf("chunk %q holds %d elements, want %d: %w", tag, c.ElementCount(), elems, ErrSchemaViolation)
	}
	return c.Floats, true, nil
}

func requireFloats(parent *Chunk, tag string, kind ChunkKind, elems int) ([]float32, error) {
	fs, ok, err := optionalFloats(parent, tag, kind, elems)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingLeaf(parent, tag)
	}
	return fs, nil
}

// ---- stream flattening ----
//
// Vertex streams cross the chunk boundary as flat component arrays,
// vertex-major then component.

func flattenVec2(vs []vec2.T) []float32 {
	out := make([]float32, 0, 2*len(vs))
	for i := range vs {
		out = append(out, vs[i][:]...)
	}
	return out
}

func flattenVec3(vs []vec3.T) []float32 {
	out := make([]float32, 0, 3*len(vs))
	for i := range vs {
		out = append(out, vs[i][:]...)
	}
	return out
}

func flattenVec4(vs []vec4.T) []float32 {
	out := make([]float32, 0, 4*len(vs))
	for i := range vs {
		out = append(out, vs[i][:]...)
	}
	return out
}

func vec2sFrom(fs []float32) []vec2.T {
	out := make([]vec2.T, len(fs)/2)
	for i := range out {
		out[i] = vec2.T{fs[2*i], fs[2*i+1]}
	}
	return out
}

func vec3sFrom(fs []float32) []vec3.T {
	out := make([]vec3.T, len(fs)/3)
	for i := range out {
		out[i] = vec3.T{fs[3*i], fs[3*i+1], fs[3*i+2]}
	}
	return out
}

func vec4sFrom(fs []float32) []vec4.T {
	out := make([]vec4.T, len(fs)/4)
	for i := range out {
		out[i] = vec4.T{fs[4*i], fs[4*i+1], fs[4*i+2], fs[4*i+3]}
	}
	return out
}

func flattenMat4(m *mat4.T) []float32 {
	out := make([]float32, 0, 16)
	for col := 0; col < 4; col++ {
		out = append(out, m[col][:]...)
	}
	return out
}

func mat4From(fs []float32) *mat4.T {
	var m mat4.T
	for col := 0; col < 4; col++ {
		copy(m[col][:], fs[4*col:4*col+4])
	}
	return &m
}
