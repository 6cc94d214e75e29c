package pdx

import (
	"fmt"

	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
)

// Animation translator: AnimationClip <-> chunk tree. Root container holds
// one info container (sample rate, frame and bone counts) followed by one
// bone container per channel. A constant sub-channel is written once and its
// letter dropped from the "sa" curve flags; decode leaves it static and the
// channel accessors repeat it per frame.

// EncodeAnimationClip lowers a clip into a chunk tree rooted at TagAnimRoot.
// Sub-channels whose samples stay within staticTol of the first frame are
// collapsed to the static variant.
func EncodeAnimationClip(clip *AnimationClip, staticTol float32) (*Chunk, error) {
	if clip.FrameCount <= 0 {
		return nil, fmt.Errorf("clip frame count %d: %w", clip.FrameCount, ErrSchemaViolation)
	}
	if clip.FPS <= 0 {
		return nil, fmt.Errorf("clip sample rate %g: %w", clip.FPS, ErrSchemaViolation)
	}
	root := NewContainer(TagAnimRoot)
	info := NewContainer(TagInfo)
	info.AppendChild(NewFloatChunk(TagFPS, KindFloat32, []float32{clip.FPS}))
	info.AppendChild(NewInt32Chunk(TagFrameCount, int32(clip.FrameCount)))
	info.AppendChild(NewInt32Chunk(TagBoneCount, int32(len(clip.Channels))))
	root.AppendChild(info)

	for _, ch := range clip.Channels {
		b, err := encodeChannel(clip, ch, staticTol)
		if err != nil {
			return nil, err
		}
		root.AppendChild(b)
	}
	return root, nil
}

func encodeChannel(clip *AnimationClip, ch *AnimationChannel, staticTol float32) (*Chunk, error) {
	if err := checkChannelLengths(clip, ch); err != nil {
		return nil, fmt.Errorf("%w: %w", err, ErrSchemaViolation)
	}

	// Work out the flags actually worth writing; a flagged sub-channel that
	// never moves is stored once, purely a size optimization.
	flags := ch.Animated
	t := ch.Translation
	if flags.Has(FlagTranslation) && constantVec3(t, staticTol) {
		t = t[:1]
		flags &^= FlagTranslation
	}
	q := ch.Rotation
	if flags.Has(FlagRotation) && constantQuat(q, staticTol) {
		q = q[:1]
		flags &^= FlagRotation
	}
	s := ch.Scale
	if flags.Has(FlagScale) && constantVec3(s, staticTol) {
		s = s[:1]
		flags &^= FlagScale
	}

	b := NewContainer(TagBone)
	b.AppendChild(NewStringChunk(TagName, ch.BoneName))
	b.AppendChild(NewStringChunk(TagSampleFlags, flags.String()))
	b.AppendChild(NewFloatChunk(TagTranslation, KindFloat3, flattenVec3(t)))
	b.AppendChild(NewFloatChunk(TagRotation, KindFloat4, flattenQuats(q)))
	b.AppendChild(NewFloatChunk(TagScale, KindFloat3, flattenVec3(s)))
	return b, nil
}

func checkChannelLengths(clip *AnimationClip, ch *AnimationChannel) error {
	check := func(sub string, n int, flagged bool) error {
		want := 1
		if flagged {
			want = clip.FrameCount
		}
		if n != want {
			return fmt.Errorf("channel %q: %s has %d samples, want %d", ch.BoneName, sub, n, want)
		}
		return nil
	}
	if err := check("translation", len(ch.Translation), ch.Animated.Has(FlagTranslation)); err != nil {
		return err
	}
	if err := check("rotation", len(ch.Rotation), ch.Animated.Has(FlagRotation)); err != nil {
		return err
	}
	return check("scale", len(ch.Scale), ch.Animated.Has(FlagScale))
}

// DecodeAnimationClip raises a chunk tree back into a clip. Unknown sibling
// tags are skipped; a missing info section is a schema violation. A declared
// bone count disagreeing with the actual channel list is reported as a
// warning. Run ValidateAnimationClip on the result before handing it to a
// host.
func DecodeAnimationClip(root *Chunk) (*AnimationClip, []ValidationWarning, error) {
	if root.Tag != TagAnimRoot || !root.IsContainer() {
		return nil, nil, fmt.Errorf("root chunk is %q (%s), want %q container: %w", root.Tag, root.Kind, TagAnimRoot, ErrSchemaViolation)
	}
	info := root.Child(TagInfo)
	if info == nil {
		return nil, nil, fmt.Errorf("animation is missing its %q section: %w", TagInfo, ErrSchemaViolation)
	}
	if !info.IsContainer() {
		return nil, nil, leafNotContainer(info)
	}
	fps, err := requireFloats(info, TagFPS, KindFloat32, 1)
	if err != nil {
		return nil, nil, err
	}
	nf, err := requireInt(info, TagFrameCount)
	if err != nil {
		return nil, nil, err
	}
	if nf <= 0 || fps[0] <= 0 {
		return nil, nil, fmt.Errorf("animation declares %d frames at %g fps: %w", nf, fps[0], ErrSchemaViolation)
	}
	clip := &AnimationClip{FPS: fps[0], FrameCount: int(nf)}

	for _, ch := range root.Children {
		if ch.Tag != TagBone {
			continue
		}
		if !ch.IsContainer() {
			return nil, nil, leafNotContainer(ch)
		}
		channel, err := decodeChannel(ch)
		if err != nil {
			return nil, nil, err
		}
		clip.Channels = append(clip.Channels, channel)
	}

	var warnings []ValidationWarning
	if nb, ok, err := optionalInt(info, TagBoneCount); err != nil {
		return nil, nil, err
	} else if ok && int(nb) != len(clip.Channels) {
		warnings = warnf(warnings, "animation", "info declares %d bones, file carries %d channels", nb, len(clip.Channels))
	}
	return clip, warnings, nil
}

func decodeChannel(c *Chunk) (*AnimationChannel, error) {
	name, err := requireString(c, TagName)
	if err != nil {
		return nil, err
	}
	sa, err := requireString(c, TagSampleFlags)
	if err != nil {
		return nil, err
	}
	flags, err := ParseChannelFlags(sa)
	if err != nil {
		return nil, fmt.Errorf("channel %q: %w: %w", name, err, ErrSchemaViolation)
	}
	ch := NewAnimationChannel(name)
	ch.Animated = flags

	if t, ok, err := optionalFloats(c, TagTranslation, KindFloat3, -1); err != nil {
		return nil, err
	} else if ok {
		ch.Translation = vec3sFrom(t)
	}
	if q, ok, err := optionalFloats(c, TagRotation, KindFloat4, -1); err != nil {
		return nil, err
	} else if ok {
		ch.Rotation = quatsFrom(q)
	}
	s, err := decodeScale(c)
	if err != nil {
		return nil, err
	}
	if s != nil {
		ch.Scale = s
	}
	return ch, nil
}

// decodeScale accepts both scale encodings: the vec3 stream written here and
// the uniform scalar stream of older titles, which expands to (s, s, s).
func decodeScale(c *Chunk) ([]vec3.T, error) {
	sc := c.Child(TagScale)
	if sc == nil {
		return nil, nil
	}
	switch sc.Kind {
	case KindFloat3:
		return vec3sFrom(sc.Floats), nil
	case KindFloat32:
		out := make([]vec3.T, len(sc.Floats))
		for i, s := range sc.Floats {
			out[i] = vec3.T{s, s, s}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("chunk %q holds %s, want %s or %s: %w", sc.Tag, sc.Kind, KindFloat3, KindFloat32, ErrSchemaViolation)
	}
}

func flattenQuats(qs []quaternion.T) []float32 {
	out := make([]float32, 0, 4*len(qs))
	for i := range qs {
		out = append(out, qs[i][:]...)
	}
	return out
}

func quatsFrom(fs []float32) []quaternion.T {
	out := make([]quaternion.T, len(fs)/4)
	for i := range out {
		out[i] = quaternion.T{fs[4*i], fs[4*i+1], fs[4*i+2], fs[4*i+3]}
	}
	return out
}
