package pdx

import (
	"errors"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/flywave/go3d/vec3"
)

func TestValidateCleanDocument(t *testing.T) {
	warnings, err := ValidateMeshDocument(riggedDocument(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestValidateFatal(t *testing.T) {
	nan := math32.NaN()
	tests := []struct {
		name   string
		mutate func(doc *MeshDocument)
		want   error
	}{
		{
			"face index past vertex count",
			func(doc *MeshDocument) { doc.Meshes[0].Triangles[1] = 4 },
			ErrValidation,
		},
		{
			"skin bone index past joint count",
			func(doc *MeshDocument) { doc.Meshes[0].Skin.Indices[0] = 3 },
			ErrValidation,
		},
		{
			"skin bone index below padding value",
			func(doc *MeshDocument) { doc.Meshes[0].Skin.Indices[1] = -7 },
			ErrValidation,
		},
		{
			"skin without skeleton",
			func(doc *MeshDocument) { doc.Skeleton = nil },
			ErrValidation,
		},
		{
			"NaN position",
			func(doc *MeshDocument) { doc.Meshes[0].Positions[2][1] = nan },
			ErrValidation,
		},
		{
			"infinite joint translation",
			func(doc *MeshDocument) { doc.Skeleton.Joints[1].Translation[0] = math32.Inf(1) },
			ErrValidation,
		},
		{
			"NaN locator transform",
			func(doc *MeshDocument) { doc.Locators[0].WorldTransform[3][1] = nan },
			ErrValidation,
		},
		{
			"joint parented to itself",
			func(doc *MeshDocument) { doc.Skeleton.Joints[1].Parent = 1 },
			ErrInvalidHierarchy,
		},
		{
			"joint parented forward",
			func(doc *MeshDocument) { doc.Skeleton.Joints[0].Parent = 2 },
			ErrInvalidHierarchy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := riggedDocument(t)
			tt.mutate(doc)
			_, err := ValidateMeshDocument(doc)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc *MeshDocument)
		substr string
	}{
		{
			"weights off unity",
			func(doc *MeshDocument) { doc.Meshes[0].Skin.Weights[0] = 0.72 },
			"skin weights sum",
		},
		{
			"duplicate joint name",
			func(doc *MeshDocument) { doc.Skeleton.Joints[2].Name = "root" },
			"duplicate joint name",
		},
		{
			"material slot out of range",
			func(doc *MeshDocument) { doc.Meshes[0].Material = 5 },
			"material slot",
		},
		{
			"normals partial coverage",
			func(doc *MeshDocument) { doc.Meshes[0].Normals = doc.Meshes[0].Normals[:2] },
			"normals cover",
		},
		{
			"uv partial coverage",
			func(doc *MeshDocument) { doc.Meshes[0].UVSets[1] = doc.Meshes[0].UVSets[1][:3] },
			"uv1 covers",
		},
		{
			"locator bone missing",
			func(doc *MeshDocument) { doc.Locators[0].ParentBone = "tail" },
			"not found in skeleton",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := riggedDocument(t)
			tt.mutate(doc)
			warnings, err := ValidateMeshDocument(doc)
			if err != nil {
				t.Fatal(err)
			}
			if len(warnings) != 1 {
				t.Fatalf("warnings = %v, want exactly one", warnings)
			}
			if !strings.Contains(warnings[0].String(), tt.substr) {
				t.Fatalf("warning %q does not mention %q", warnings[0], tt.substr)
			}
		})
	}
}

// A document with warnings still decodes: the caller gets both the document
// and the findings.
func TestDecodeReturnsDocumentWithWarnings(t *testing.T) {
	doc := riggedDocument(t)
	doc.Meshes[0].Skin.Weights[0] = 0.72 // vertex 0 now sums to 0.97
	data, err := EncodeMesh(doc)
	if err != nil {
		t.Fatal(err)
	}
	got, warnings, err := DecodeMesh(data)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("document dropped despite warning-only findings")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "skin weights sum") {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestValidateAnimationClip(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		warnings, err := ValidateAnimationClip(walkClip(t))
		if err != nil {
			t.Fatal(err)
		}
		if len(warnings) != 0 {
			t.Fatalf("unexpected warnings: %v", warnings)
		}
	})
	t.Run("sample count mismatch", func(t *testing.T) {
		clip := walkClip(t)
		clip.Channels[0].Translation = clip.Channels[0].Translation[:2]
		if _, err := ValidateAnimationClip(clip); !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})
	t.Run("NaN sample", func(t *testing.T) {
		clip := walkClip(t)
		clip.Channels[0].Rotation[1][2] = math32.NaN()
		if _, err := ValidateAnimationClip(clip); !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})
	t.Run("duplicate bone warning", func(t *testing.T) {
		clip := walkClip(t)
		clip.Channels[2].BoneName = "hips"
		warnings, err := ValidateAnimationClip(clip)
		if err != nil {
			t.Fatal(err)
		}
		if len(warnings) != 1 {
			t.Fatalf("warnings = %v, want exactly one", warnings)
		}
	})
}

func TestComputeBoundsEmptyMesh(t *testing.T) {
	m := NewMesh("empty")
	m.ComputeBounds()
	if m.Bounds.Min != (vec3.T{}) || m.Bounds.Max != (vec3.T{}) {
		t.Fatalf("bounds of empty mesh = %v..%v", m.Bounds.Min, m.Bounds.Max)
	}
}
