package pdx

import (
	"bytes"
	"fmt"
	"io"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
)

// glTF preview export. Lets exported assets be checked in any glTF viewer
// without a host application. Geometry, node hierarchy, skinning and
// material stubs only — texture image data never enters this codec, so
// materials come through as named color factors.

const gltfVersion = "2.0"

func newGltfDocument() *gltf.Document {
	doc := &gltf.Document{}
	doc.Asset.Version = gltfVersion
	scene := uint32(0)
	doc.Scene = &scene
	doc.Scenes = append(doc.Scenes, &gltf.Scene{})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	return doc
}

// DocumentToGltf converts a mesh document into a self-contained glTF
// document with a single buffer.
func DocumentToGltf(doc *MeshDocument) (*gltf.Document, error) {
	g := newGltfDocument()

	for _, m := range doc.Materials {
		cl := [4]float32{1, 1, 1, 1}
		gm := &gltf.Material{
			Name:        m.Name,
			DoubleSided: true,
			AlphaMode:   gltf.AlphaMask,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &cl,
			},
		}
		g.Materials = append(g.Materials, gm)
	}

	skinIndex, err := buildGltfSkeleton(g, doc.Skeleton)
	if err != nil {
		return nil, err
	}

	for _, m := range doc.Meshes {
		if err := buildGltfMesh(g, doc, m, skinIndex); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// buildGltfSkeleton emits the joint hierarchy as glTF nodes and one skin
// listing them, with the inverse bind matrices in the shared buffer. Returns
// the skin index or nil when there is no skeleton.
func buildGltfSkeleton(g *gltf.Document, s *Skeleton) (*uint32, error) {
	if s == nil || len(s.Joints) == 0 {
		return nil, nil
	}
	base := uint32(len(g.Nodes))
	joints := make([]uint32, len(s.Joints))
	for i, j := range s.Joints {
		scale := [3]float32{1, 1, 1}
		if j.Scale != nil {
			scale = [3]float32{j.Scale[0], j.Scale[1], j.Scale[2]}
		}
		nd := &gltf.Node{
			Name:        j.Name,
			Translation: [3]float32{j.Translation[0], j.Translation[1], j.Translation[2]},
			Rotation:    [4]float32{j.Rotation[0], j.Rotation[1], j.Rotation[2], j.Rotation[3]},
			Scale:       scale,
		}
		index := base + uint32(i)
		joints[i] = index
		if j.Parent >= 0 {
			parent := g.Nodes[base+uint32(j.Parent)]
			parent.Children = append(parent.Children, index)
		} else {
			g.Scenes[0].Nodes = append(g.Scenes[0].Nodes, index)
		}
		g.Nodes = append(g.Nodes, nd)
	}

	ibms := inverseBindMatrices(s)
	w := NewWriter()
	for i := range ibms {
		w.WriteFloat32s(flattenMat4(&ibms[i]))
	}
	buffer := g.Buffers[0]
	viewIndex := uint32(len(g.BufferViews))
	g.BufferViews = append(g.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: buffer.ByteLength,
		ByteLength: uint32(w.Len()),
	})
	buffer.Data = append(buffer.Data, w.Bytes()...)
	buffer.ByteLength += uint32(w.Len())
	ibmAcc := uint32(len(g.Accessors))
	g.Accessors = append(g.Accessors, &gltf.Accessor{
		BufferView:    &viewIndex,
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorMat4,
		Count:         uint32(len(s.Joints)),
	})

	skinIndex := uint32(len(g.Skins))
	g.Skins = append(g.Skins, &gltf.Skin{
		Name:                "skeleton",
		Joints:              joints,
		InverseBindMatrices: &ibmAcc,
	})
	return &skinIndex, nil
}

// inverseBindMatrices inverts each joint's global bind transform. The global
// of joint i is G(parent) * T*R*S, so its inverse accumulates the inverted
// locals down the parent chain.
func inverseBindMatrices(s *Skeleton) []mat4.T {
	out := make([]mat4.T, len(s.Joints))
	for i, j := range s.Joints {
		inv := invertBindPose(j)
		if j.Parent >= 0 {
			out[i] = mulMat4(&inv, &out[j.Parent])
		} else {
			out[i] = inv
		}
	}
	return out
}

// invertBindPose inverts a joint's local T*R*S analytically: the rotation is
// a unit quaternion, so the inverse is inv(S) * transpose(R) * inv(T).
func invertBindPose(j Joint) mat4.T {
	x, y, z, w := j.Rotation[0], j.Rotation[1], j.Rotation[2], j.Rotation[3]
	r := [3][3]float32{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
	scale := vec3.T{1, 1, 1}
	if j.Scale != nil {
		scale = *j.Scale
	}
	var m mat4.T
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			// inv(S)*transpose(R), column-major storage.
			m[col][row] = r[col][row] / scale[row]
		}
	}
	for row := 0; row < 3; row++ {
		var t float32
		for k := 0; k < 3; k++ {
			t += m[k][row] * j.Translation[k]
		}
		m[3][row] = -t
	}
	m[3][3] = 1
	return m
}

func mulMat4(a, b *mat4.T) mat4.T {
	var m mat4.T
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k][row] * b[col][k]
			}
			m[col][row] = sum
		}
	}
	return m
}

func buildGltfMesh(g *gltf.Document, doc *MeshDocument, m *Mesh, skinIndex *uint32) error {
	v := m.VertexCount()
	buffer := g.Buffers[0]
	buf := bytes.NewBuffer(nil)
	start := buffer.ByteLength

	appendView := func(write func(w *Writer)) uint32 {
		view := &gltf.BufferView{Buffer: 0, ByteOffset: start + uint32(buf.Len())}
		w := NewWriter()
		write(w)
		buf.Write(w.Bytes())
		view.ByteLength = uint32(w.Len())
		index := uint32(len(g.BufferViews))
		g.BufferViews = append(g.BufferViews, view)
		return index
	}

	bvIndices := appendView(func(w *Writer) { w.WriteUint32s(m.Triangles) })
	bvPositions := appendView(func(w *Writer) { w.WriteFloat32s(flattenVec3(m.Positions)) })
	var bvNormals, bvTexCoords uint32
	if len(m.Normals) > 0 {
		bvNormals = appendView(func(w *Writer) { w.WriteFloat32s(flattenVec3(m.Normals)) })
	}
	if len(m.UVSets) > 0 {
		bvTexCoords = appendView(func(w *Writer) { w.WriteFloat32s(flattenVec2(m.UVSets[0])) })
	}
	var bvJoints, bvWeights uint32
	skinned := m.Skin != nil && skinIndex != nil
	if skinned {
		bvJoints = appendView(func(w *Writer) {
			// Influence rows padded to four u16 slots; -1 padding maps to 0
			// with zero weight.
			for vtx := 0; vtx < v; vtx++ {
				for k := 0; k < 4; k++ {
					var ix int32
					if k < m.Skin.Influences {
						ix = m.Skin.Indices[vtx*m.Skin.Influences+k]
					}
					if ix < 0 {
						ix = 0
					}
					w.WriteUint8(uint8(ix & 0xff))
					w.WriteUint8(uint8(ix >> 8 & 0xff))
				}
			}
		})
		bvWeights = appendView(func(w *Writer) {
			for vtx := 0; vtx < v; vtx++ {
				for k := 0; k < 4; k++ {
					var wt float32
					if k < m.Skin.Influences && m.Skin.Indices[vtx*m.Skin.Influences+k] >= 0 {
						wt = m.Skin.Weights[vtx*m.Skin.Influences+k]
					}
					w.WriteFloat32(wt)
				}
			}
		})
	}

	buffer.ByteLength += uint32(buf.Len())
	buffer.Data = append(buffer.Data, buf.Bytes()...)

	accessor := func(view uint32, comp gltf.ComponentType, ty gltf.AccessorType, count int) uint32 {
		acc := &gltf.Accessor{
			BufferView:    &view,
			ComponentType: comp,
			Type:          ty,
			Count:         uint32(count),
		}
		index := uint32(len(g.Accessors))
		g.Accessors = append(g.Accessors, acc)
		return index
	}

	indexAcc := accessor(bvIndices, gltf.ComponentUint, gltf.AccessorScalar, len(m.Triangles))
	posAcc := accessor(bvPositions, gltf.ComponentFloat, gltf.AccessorVec3, v)
	g.Accessors[posAcc].Min = []float32{m.Bounds.Min[0], m.Bounds.Min[1], m.Bounds.Min[2]}
	g.Accessors[posAcc].Max = []float32{m.Bounds.Max[0], m.Bounds.Max[1], m.Bounds.Max[2]}

	prim := &gltf.Primitive{
		Mode:       gltf.PrimitiveTriangles,
		Indices:    &indexAcc,
		Attributes: gltf.Attribute{"POSITION": posAcc},
	}
	if len(m.Normals) > 0 {
		prim.Attributes["NORMAL"] = accessor(bvNormals, gltf.ComponentFloat, gltf.AccessorVec3, len(m.Normals))
	}
	if len(m.UVSets) > 0 {
		prim.Attributes["TEXCOORD_0"] = accessor(bvTexCoords, gltf.ComponentFloat, gltf.AccessorVec2, len(m.UVSets[0]))
	}
	if skinned {
		prim.Attributes["JOINTS_0"] = accessor(bvJoints, gltf.ComponentUshort, gltf.AccessorVec4, v)
		prim.Attributes["WEIGHTS_0"] = accessor(bvWeights, gltf.ComponentFloat, gltf.AccessorVec4, v)
	}
	if m.Material >= 0 {
		if m.Material >= len(doc.Materials) {
			return fmt.Errorf("mesh %q references material slot %d of %d", m.Name, m.Material, len(doc.Materials))
		}
		slot := uint32(m.Material)
		prim.Material = &slot
	}

	meshIndex := uint32(len(g.Meshes))
	g.Meshes = append(g.Meshes, &gltf.Mesh{Name: m.Name, Primitives: []*gltf.Primitive{prim}})

	nd := &gltf.Node{Name: m.Name, Mesh: &meshIndex}
	if skinned {
		nd.Skin = skinIndex
	}
	g.Scenes[0].Nodes = append(g.Scenes[0].Nodes, uint32(len(g.Nodes)))
	g.Nodes = append(g.Nodes, nd)
	return nil
}

type calcSizeWriter struct {
	writer io.Writer
	Size   int
}

func (w *calcSizeWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.writer.Write(p)
	w.Size += n
	return n, nil
}

func (w *calcSizeWriter) Bytes() []byte {
	return w.writer.(*bytes.Buffer).Bytes()
}

func calcPadding(offset, paddingUnit int) int {
	padding := offset % paddingUnit
	if padding != 0 {
		padding = paddingUnit - padding
	}
	return padding
}

// GltfBinary serializes a glTF document to GLB, padded to paddingUnit.
func GltfBinary(doc *gltf.Document, paddingUnit int) ([]byte, error) {
	w := calcSizeWriter{writer: bytes.NewBuffer(nil)}
	enc := gltf.NewEncoder(w.writer)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	w.Size = len(w.Bytes())
	padding := calcPadding(w.Size, paddingUnit)
	if padding == 0 {
		return w.Bytes(), nil
	}
	pad := make([]byte, padding)
	for i := range pad {
		pad[i] = 0x20
	}
	w.Write(pad)
	return w.Bytes(), nil
}
