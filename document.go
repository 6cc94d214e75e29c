package pdx

import (
	"fmt"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
)

// Mesh is one renderable surface: per-vertex streams, triangle indices and
// optional skinning. All streams are vertex-major.
type Mesh struct {
	Name      string       `json:"name"`
	Positions []vec3.T     `json:"positions"`
	Normals   []vec3.T     `json:"normals,omitempty"`
	Tangents  []vec4.T     `json:"tangents,omitempty"`
	UVSets    [][]vec2.T   `json:"uvSets,omitempty"`
	Triangles []uint32     `json:"triangles"`
	Material  int          `json:"material"`
	Bounds    vec3.Box     `json:"bounds"`
	Skin      *SkinBinding `json:"skin,omitempty"`
}

// SkinBinding associates vertices with skeleton joints. Indices and Weights
// are flat V×Influences arrays; unused influence slots hold index -1 and
// weight 0.
type SkinBinding struct {
	Influences int       `json:"influences"`
	Indices    []int32   `json:"indices"`
	Weights    []float32 `json:"weights"`
}

func NewMesh(name string) *Mesh {
	return &Mesh{Name: name, Material: -1}
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) FaceCount() int {
	return len(m.Triangles) / 3
}

// AddUVSet appends a UV channel. The format carries at most MaxUVSets
// channels and every channel must cover all vertices.
func (m *Mesh) AddUVSet(uv []vec2.T) error {
	if len(m.UVSets) >= MaxUVSets {
		return fmt.Errorf("mesh %q already has %d UV sets", m.Name, MaxUVSets)
	}
	if len(uv) != m.VertexCount() {
		return fmt.Errorf("mesh %q: UV set covers %d of %d vertices", m.Name, len(uv), m.VertexCount())
	}
	m.UVSets = append(m.UVSets, uv)
	return nil
}

// ComputeBounds refreshes the axis-aligned bounding box from the position
// stream.
func (m *Mesh) ComputeBounds() {
	if len(m.Positions) == 0 {
		m.Bounds = vec3.Box{}
		return
	}
	min := m.Positions[0]
	max := m.Positions[0]
	for _, p := range m.Positions[1:] {
		for i := 0; i < 3; i++ {
			if p[i] < min[i] {
				min[i] = p[i]
			}
			if p[i] > max[i] {
				max[i] = p[i]
			}
		}
	}
	m.Bounds = vec3.Box{Min: min, Max: max}
}

// Joint is one skeleton bone with its parent-relative bind pose. Parent is
// -1 for a root, otherwise it must be less than the joint's own index.
type Joint struct {
	Name        string      `json:"name"`
	Parent      int         `json:"parent"`
	Rotation    quaternion.T `json:"rotation"`
	Translation vec3.T      `json:"translation"`
	Scale       *vec3.T     `json:"scale,omitempty"`
}

// Skeleton is an ordered joint list where every parent precedes its
// children, so a plain forward walk is already a topological traversal.
type Skeleton struct {
	Joints []Joint `json:"joints"`
}

// AddJoint appends a joint, returning its index. The parent index must
// point strictly before the new joint (or be -1); on failure the skeleton is
// left unchanged.
func (s *Skeleton) AddJoint(j Joint) (int, error) {
	ix := len(s.Joints)
	if j.Parent < -1 || j.Parent >= ix {
		return 0, fmt.Errorf("joint %q at index %d has parent index %d: %w", j.Name, ix, j.Parent, ErrInvalidHierarchy)
	}
	for _, prev := range s.Joints {
		if prev.Name == j.Name {
			return 0, fmt.Errorf("joint name %q already present: %w", j.Name, ErrInvalidHierarchy)
		}
	}
	s.Joints = append(s.Joints, j)
	return ix, nil
}

// IndexOf returns the index of the named joint, or -1.
func (s *Skeleton) IndexOf(name string) int {
	for i := range s.Joints {
		if s.Joints[i].Name == name {
			return i
		}
	}
	return -1
}

// Locator is a named attachment point, not rendered geometry. WorldTransform
// is the optional full matrix variant some titles store alongside the
// position/rotation pair.
type Locator struct {
	Name           string       `json:"name"`
	Position       vec3.T       `json:"position"`
	Rotation       quaternion.T `json:"rotation"`
	ParentBone     string       `json:"parentBone,omitempty"`
	WorldTransform *mat4.T      `json:"worldTransform,omitempty"`
}

// MeshDocument is the in-memory form of one .mesh file. Documents are built
// fresh per import or export call and carry no process-wide state.
type MeshDocument struct {
	Meshes    []*Mesh     `json:"meshes"`
	Skeleton  *Skeleton   `json:"skeleton,omitempty"`
	Materials []*Material `json:"materials,omitempty"`
	Locators  []*Locator  `json:"locators,omitempty"`
}

func NewMeshDocument() *MeshDocument {
	return &MeshDocument{}
}

// AddMesh appends a mesh. Mesh names are unique within a document.
func (d *MeshDocument) AddMesh(m *Mesh) error {
	for _, prev := range d.Meshes {
		if prev.Name == m.Name {
			return fmt.Errorf("mesh name %q already present in document", m.Name)
		}
	}
	d.Meshes = append(d.Meshes, m)
	return nil
}

// AddMaterial appends a material and returns its slot index.
func (d *MeshDocument) AddMaterial(m *Material) int {
	d.Materials = append(d.Materials, m)
	return len(d.Materials) - 1
}

func (d *MeshDocument) AddLocator(l *Locator) {
	d.Locators = append(d.Locators, l)
}

// HasSkin reports whether any mesh carries skinning data, which makes the
// skeleton a required section.
func (d *MeshDocument) HasSkin() bool {
	for _, m := range d.Meshes {
		if m.Skin != nil {
			return true
		}
	}
	return false
}
