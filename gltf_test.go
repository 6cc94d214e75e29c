package pdx

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
)

func TestDocumentToGltfTriangle(t *testing.T) {
	g, err := DocumentToGltf(triangleDocument(t))
	if err != nil {
		t.Fatal(err)
	}
	if g.Asset.Version != "2.0" {
		t.Fatalf("asset version = %q", g.Asset.Version)
	}
	if len(g.Meshes) != 1 || len(g.Meshes[0].Primitives) != 1 {
		t.Fatalf("%d meshes", len(g.Meshes))
	}
	prim := g.Meshes[0].Primitives[0]
	if prim.Mode != gltf.PrimitiveTriangles || prim.Indices == nil {
		t.Fatal("primitive is not an indexed triangle list")
	}
	if prim.Material != nil {
		t.Fatal("material invented for unassigned mesh")
	}

	idx := g.Accessors[*prim.Indices]
	if idx.Count != 3 || idx.ComponentType != gltf.ComponentUint || idx.Type != gltf.AccessorScalar {
		t.Fatalf("index accessor = %+v", idx)
	}
	pos := g.Accessors[prim.Attributes["POSITION"]]
	if pos.Count != 3 || pos.Type != gltf.AccessorVec3 {
		t.Fatalf("position accessor = %+v", pos)
	}
	if len(pos.Min) != 3 || pos.Max[0] != 1 || pos.Max[1] != 1 {
		t.Fatalf("position bounds = %v..%v", pos.Min, pos.Max)
	}

	// One buffer, and every view stays inside it.
	if len(g.Buffers) != 1 {
		t.Fatalf("%d buffers", len(g.Buffers))
	}
	total := g.Buffers[0].ByteLength
	if int(total) != len(g.Buffers[0].Data) {
		t.Fatalf("buffer declares %d bytes, holds %d", total, len(g.Buffers[0].Data))
	}
	for i, view := range g.BufferViews {
		if view.ByteOffset+view.ByteLength > total {
			t.Fatalf("buffer view %d runs past the buffer", i)
		}
	}
}

func TestDocumentToGltfRigged(t *testing.T) {
	doc := riggedDocument(t)
	g, err := DocumentToGltf(doc)
	if err != nil {
		t.Fatal(err)
	}

	if len(g.Skins) != 1 || len(g.Skins[0].Joints) != 3 {
		t.Fatalf("skins = %+v", g.Skins)
	}
	if g.Skins[0].InverseBindMatrices == nil {
		t.Fatal("skin exported without inverse bind matrices")
	}
	ibmAcc := g.Accessors[*g.Skins[0].InverseBindMatrices]
	if ibmAcc.Type != gltf.AccessorMat4 || ibmAcc.ComponentType != gltf.ComponentFloat || ibmAcc.Count != 3 {
		t.Fatalf("inverse bind matrix accessor = %+v", ibmAcc)
	}
	// Each inverse bind matrix must cancel its joint's global bind transform.
	view := g.BufferViews[*ibmAcc.BufferView]
	r := NewReader(g.Buffers[0].Data[view.ByteOffset : view.ByteOffset+view.ByteLength])
	for i, j := range doc.Skeleton.Joints {
		fs, err := r.ReadFloat32s(16)
		if err != nil {
			t.Fatal(err)
		}
		ibm := mat4From(fs)
		global := bindPoseMatrix(doc.Skeleton, i)
		prod := mulMat4(&global, ibm)
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				want := float32(0)
				if col == row {
					want = 1
				}
				if math32.Abs(prod[col][row]-want) > RoundTripTolerance {
					t.Fatalf("joint %q: bind * inverse bind = %v, not identity", j.Name, prod)
				}
			}
		}
	}
	// Joint nodes come first, parent/child wiring intact.
	root := g.Nodes[g.Skins[0].Joints[0]]
	if root.Name != "root" || len(root.Children) != 1 {
		t.Fatalf("root joint node = %+v", root)
	}
	spine := g.Nodes[root.Children[0]]
	if spine.Name != "spine" || spine.Scale != [3]float32{1, 1, 2} {
		t.Fatalf("spine joint node = %+v", spine)
	}

	prim := g.Meshes[0].Primitives[0]
	for _, attr := range []string{"POSITION", "NORMAL", "TEXCOORD_0", "JOINTS_0", "WEIGHTS_0"} {
		if _, ok := prim.Attributes[attr]; !ok {
			t.Fatalf("primitive is missing %s", attr)
		}
	}
	joints := g.Accessors[prim.Attributes["JOINTS_0"]]
	if joints.ComponentType != gltf.ComponentUshort || joints.Type != gltf.AccessorVec4 || joints.Count != 4 {
		t.Fatalf("joints accessor = %+v", joints)
	}
	if prim.Material == nil || int(*prim.Material) != doc.Meshes[0].Material {
		t.Fatal("primitive material does not track the document slot")
	}
	if len(g.Materials) != 1 || g.Materials[0].Name != "hull" {
		t.Fatalf("materials = %+v", g.Materials)
	}

	// The mesh node carries the skin.
	var meshNode *gltf.Node
	for _, nd := range g.Nodes {
		if nd.Mesh != nil {
			meshNode = nd
		}
	}
	if meshNode == nil || meshNode.Skin == nil {
		t.Fatal("skinned mesh node lost its skin reference")
	}
}

func TestDocumentToGltfBadMaterialSlot(t *testing.T) {
	doc := triangleDocument(t)
	doc.Meshes[0].Material = 2
	if _, err := DocumentToGltf(doc); err == nil {
		t.Fatal("dangling material slot exported without error")
	}
}

func TestGltfBinary(t *testing.T) {
	g, err := DocumentToGltf(riggedDocument(t))
	if err != nil {
		t.Fatal(err)
	}
	data, err := GltfBinary(g, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 12 || string(data[:4]) != "glTF" {
		t.Fatalf("GLB output starts with %q", data[:4])
	}
	if len(data)%8 != 0 {
		t.Fatalf("GLB length %d not padded to 8", len(data))
	}
}

// bindPoseMatrix composes joint ix's global bind transform the forward way,
// parent chain times local T*R*S.
func bindPoseMatrix(s *Skeleton, ix int) mat4.T {
	j := s.Joints[ix]
	x, y, z, w := j.Rotation[0], j.Rotation[1], j.Rotation[2], j.Rotation[3]
	rot := [3][3]float32{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
	scale := vec3.T{1, 1, 1}
	if j.Scale != nil {
		scale = *j.Scale
	}
	var local mat4.T
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			local[col][row] = rot[row][col] * scale[col]
		}
	}
	for row := 0; row < 3; row++ {
		local[3][row] = j.Translation[row]
	}
	local[3][3] = 1
	if j.Parent < 0 {
		return local
	}
	parent := bindPoseMatrix(s, j.Parent)
	return mulMat4(&parent, &local)
}

func TestCalcPadding(t *testing.T) {
	tests := []struct {
		offset, unit, want int
	}{
		{0, 8, 0},
		{1, 8, 7},
		{8, 8, 0},
		{13, 4, 3},
	}
	for _, tt := range tests {
		if got := calcPadding(tt.offset, tt.unit); got != tt.want {
			t.Fatalf("calcPadding(%d, %d) = %d, want %d", tt.offset, tt.unit, got, tt.want)
		}
	}
}
