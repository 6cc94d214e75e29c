package pdx

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/flywave/go3d/vec3"
)

// ValidationWarning is a non-fatal finding: the document is still usable but
// the artist should probably hear about it. Warnings are always collected
// and returned, never dropped.
type ValidationWarning struct {
	Context string
	Message string
}

func (w ValidationWarning) String() string {
	return w.Context + ": " + w.Message
}

func warnf(warnings []ValidationWarning, ctx, format string, args ...interface{}) []ValidationWarning {
	return append(warnings, ValidationWarning{Context: ctx, Message: fmt.Sprintf(format, args...)})
}

// ValidateMeshDocument cross-checks a decoded (or host-built) document.
// Index-range breaks, hierarchy breaks and non-finite values are fatal: a
// half-valid mesh would corrupt the host scene. Suspicious but decodable
// values come back as warnings.
func ValidateMeshDocument(doc *MeshDocument) ([]ValidationWarning, error) {
	var warnings []ValidationWarning

	jointCount := 0
	if doc.Skeleton != nil {
		jointCount = len(doc.Skeleton.Joints)
		seen := map[string]bool{}
		for i, j := range doc.Skeleton.Joints {
			if j.Parent < -1 || j.Parent >= i {
				return warnings, fmt.Errorf("joint %q at index %d has parent index %d: %w", j.Name, i, j.Parent, ErrInvalidHierarchy)
			}
			if seen[j.Name] {
				warnings = warnf(warnings, "skeleton", "duplicate joint name %q", j.Name)
			}
			seen[j.Name] = true
			if err := finiteFloats("joint "+j.Name, j.Rotation[:]); err != nil {
				return warnings, err
			}
			if err := finiteFloats("joint "+j.Name, j.Translation[:]); err != nil {
				return warnings, err
			}
			if j.Scale != nil {
				if err := finiteFloats("joint "+j.Name, j.Scale[:]); err != nil {
					return warnings, err
				}
			}
		}
	}

	meshNames := map[string]bool{}
	for _, m := range doc.Meshes {
		ctx := "mesh " + m.Name
		if meshNames[m.Name] {
			warnings = warnf(warnings, ctx, "duplicate mesh name")
		}
		meshNames[m.Name] = true

		v := m.VertexCount()
		for i, ix := range m.Triangles {
			if int(ix) >= v {
				return warnings, fmt.Errorf("%s: face index %d at position %d outside %d vertices: %w", ctx, ix, i, v, ErrValidation)
			}
		}
		if err := finiteVec3s(ctx+" positions", m.Positions); err != nil {
			return warnings, err
		}
		if err := finiteVec3s(ctx+" normals", m.Normals); err != nil {
			return warnings, err
		}
		if len(m.Normals) > 0 && len(m.Normals) != v {
			warnings = warnf(warnings, ctx, "normals cover %d of %d vertices", len(m.Normals), v)
		}
		for si, uv := range m.UVSets {
			for i := range uv {
				if err := finiteFloats(fmt.Sprintf("%s uv%d", ctx, si), uv[i][:]); err != nil {
					return warnings, err
				}
			}
			if len(uv) != v {
				warnings = warnf(warnings, ctx, "uv%d covers %d of %d vertices", si, len(uv), v)
			}
		}
		for i := range m.Tangents {
			if err := finiteFloats(ctx+" tangents", m.Tangents[i][:]); err != nil {
				return warnings, err
			}
		}
		if m.Material >= len(doc.Materials) {
			warnings = warnf(warnings, ctx, "material slot %d outside %d materials", m.Material, len(doc.Materials))
		}

		if m.Skin != nil {
			if ws, err := validateSkin(ctx, m, jointCount); err != nil {
				return append(warnings, ws...), err
			} else {
				warnings = append(warnings, ws...)
			}
		}
	}

	for _, l := range doc.Locators {
		ctx := "locator " + l.Name
		if err := finiteFloats(ctx, l.Position[:]); err != nil {
			return warnings, err
		}
		if err := finiteFloats(ctx, l.Rotation[:]); err != nil {
			return warnings, err
		}
		if l.WorldTransform != nil {
			if err := finiteFloats(ctx, flattenMat4(l.WorldTransform)); err != nil {
				return warnings, err
			}
		}
		if l.ParentBone != "" {
			if doc.Skeleton == nil || doc.Skeleton.IndexOf(l.ParentBone) < 0 {
				warnings = warnf(warnings, ctx, "parent bone %q not found in skeleton", l.ParentBone)
			}
		}
	}

	return warnings, nil
}

func validateSkin(ctx string, m *Mesh, jointCount int) ([]ValidationWarning, error) {
	var warnings []ValidationWarning
	s := m.Skin
	if jointCount == 0 {
		return warnings, fmt.Errorf("%s: skin data without a skeleton: %w", ctx, ErrValidation)
	}
	if err := finiteFloats(ctx+" weights", s.Weights); err != nil {
		return warnings, err
	}
	for i, ix := range s.Indices {
		// -1 is the padding value for unused influence slots; anything else
		// negative is corrupt.
		if ix < -1 || int(ix) >= jointCount {
			return warnings, fmt.Errorf("%s: skin bone index %d at position %d outside %d joints: %w", ctx, ix, i, jointCount, ErrValidation)
		}
	}
	for vtx := 0; vtx < m.VertexCount(); vtx++ {
		row := vtx * s.Influences
		var sum float32
		used := false
		for k := 0; k < s.Influences; k++ {
			if s.Indices[row+k] >= 0 {
				used = true
				sum += s.Weights[row+k]
			}
		}
		if used && math32.Abs(sum-1) > WeightSumTolerance {
			warnings = warnf(warnings, ctx, "vertex %d skin weights sum to %.4f", vtx, sum)
		}
	}
	return warnings, nil
}

// ValidateAnimationClip cross-checks a decoded (or host-built) clip.
func ValidateAnimationClip(clip *AnimationClip) ([]ValidationWarning, error) {
	var warnings []ValidationWarning
	if clip.FrameCount <= 0 {
		return warnings, fmt.Errorf("frame count %d: %w", clip.FrameCount, ErrValidation)
	}
	if clip.FPS <= 0 || math32.IsNaN(clip.FPS) || math32.IsInf(clip.FPS, 0) {
		return warnings, fmt.Errorf("sample rate %g: %w", clip.FPS, ErrValidation)
	}
	names := map[string]bool{}
	for _, ch := range clip.Channels {
		ctx := "channel " + ch.BoneName
		if names[ch.BoneName] {
			warnings = warnf(warnings, ctx, "duplicate bone name")
		}
		names[ch.BoneName] = true
		if err := checkChannelLengths(clip, ch); err != nil {
			return warnings, fmt.Errorf("%w: %w", err, ErrValidation)
		}
		if err := finiteVec3s(ctx+" translation", ch.Translation); err != nil {
			return warnings, err
		}
		for i := range ch.Rotation {
			if err := finiteFloats(ctx+" rotation", ch.Rotation[i][:]); err != nil {
				return warnings, err
			}
		}
		if err := finiteVec3s(ctx+" scale", ch.Scale); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

func finiteFloats(ctx string, fs []float32) error {
	for _, f := range fs {
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return fmt.Errorf("%s: non-finite value %g: %w", ctx, f, ErrValidation)
		}
	}
	return nil
}

func finiteVec3s(ctx string, vs []vec3.T) error {
	for i := range vs {
		if err := finiteFloats(ctx, vs[i][:]); err != nil {
			return err
		}
	}
	return nil
}
