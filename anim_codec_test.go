package pdx

import (
	"errors"
	"strings"
	"testing"

	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
)

// walkClip has one fully animated channel, one channel with a constant
// flagged sub-channel (collapsed on encode) and one purely static channel.
func walkClip(t *testing.T) *AnimationClip {
	t.Helper()
	clip, err := NewAnimationClip(30, 4)
	if err != nil {
		t.Fatal(err)
	}

	hips := NewAnimationChannel("hips")
	hips.Animated = FlagTranslation | FlagRotation | FlagScale
	hips.Translation = []vec3.T{{0, 1, 0}, {0, 1.1, 0.2}, {0, 1, 0.4}, {0, 1.1, 0.6}}
	hips.Rotation = []quaternion.T{
		quaternion.Ident,
		{0, 0.2588, 0, 0.9659},
		{0, 0.5, 0, 0.866},
		{0, 0.7071, 0, 0.7071},
	}
	hips.Scale = []vec3.T{{1, 1, 1}, {1, 1.2, 1}, {1, 1.4, 1}, {1, 1.2, 1}}
	if err := clip.AddChannel(hips); err != nil {
		t.Fatal(err)
	}

	// Flagged rotation that never moves: must come back static.
	spine := NewAnimationChannel("spine")
	spine.Animated = FlagTranslation | FlagRotation
	spine.Translation = []vec3.T{{0, 2, 0}, {0, 2.1, 0}, {0, 2.2, 0}, {0, 2.3, 0}}
	spine.Rotation = []quaternion.T{
		{0, 0.1, 0, 0.995},
		{0, 0.1, 0, 0.995},
		{0, 0.1, 0, 0.995},
		{0, 0.1, 0, 0.995},
	}
	if err := clip.AddChannel(spine); err != nil {
		t.Fatal(err)
	}

	if err := clip.AddChannel(NewAnimationChannel("prop_bone")); err != nil {
		t.Fatal(err)
	}
	return clip
}

func TestAnimRoundTrip(t *testing.T) {
	orig := walkClip(t)
	data, err := EncodeAnim(orig, StaticSampleTolerance)
	if err != nil {
		t.Fatal(err)
	}
	got, warnings, err := DecodeAnim(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got.FPS != 30 || got.FrameCount != 4 {
		t.Fatalf("clip header = %g fps, %d frames", got.FPS, got.FrameCount)
	}
	if len(got.Channels) != 3 {
		t.Fatalf("%d channels, want 3", len(got.Channels))
	}

	// Per-frame values must match regardless of how sub-channels were stored.
	for ci, want := range orig.Channels {
		ch := got.Channels[ci]
		if ch.BoneName != want.BoneName {
			t.Fatalf("channel %d = %q, want %q", ci, ch.BoneName, want.BoneName)
		}
		for f := 0; f < orig.FrameCount; f++ {
			wt, gt := want.TranslationAt(f), ch.TranslationAt(f)
			ws, gs := want.ScaleAt(f), ch.ScaleAt(f)
			wq, gq := want.RotationAt(f), ch.RotationAt(f)
			for k := 0; k < 3; k++ {
				if !floatsClose(gt[k], wt[k]) {
					t.Fatalf("%s translation frame %d: %v != %v", ch.BoneName, f, gt, wt)
				}
				if !floatsClose(gs[k], ws[k]) {
					t.Fatalf("%s scale frame %d: %v != %v", ch.BoneName, f, gs, ws)
				}
			}
			for k := 0; k < 4; k++ {
				if !floatsClose(gq[k], wq[k]) {
					t.Fatalf("%s rotation frame %d: %v != %v", ch.BoneName, f, gq, wq)
				}
			}
		}
	}

	// The constant flagged rotation collapsed to a single stored sample.
	spine := got.Channels[1]
	if spine.Animated.Has(FlagRotation) || len(spine.Rotation) != 1 {
		t.Fatalf("constant rotation kept %d samples, flags %q", len(spine.Rotation), spine.Animated.String())
	}
	if !spine.Animated.Has(FlagTranslation) || len(spine.Translation) != 4 {
		t.Fatal("moving translation was collapsed")
	}
}

// Encoding must not mutate the caller's clip when it collapses a constant
// sub-channel on the wire.
func TestEncodeLeavesClipIntact(t *testing.T) {
	clip := walkClip(t)
	if _, err := EncodeAnimationClip(clip, StaticSampleTolerance); err != nil {
		t.Fatal(err)
	}
	spine := clip.Channels[1]
	if !spine.Animated.Has(FlagRotation) || len(spine.Rotation) != 4 {
		t.Fatal("encode mutated the source channel")
	}
}

func TestDecodeScalarScale(t *testing.T) {
	root, err := EncodeAnimationClip(walkClip(t), StaticSampleTolerance)
	if err != nil {
		t.Fatal(err)
	}
	// Older files store uniform scale as one float per frame.
	hips := root.Child(TagBone)
	for _, ch := range hips.Children {
		if ch.Tag == TagScale {
			ch.Kind = KindFloat32
			ch.Floats = []float32{1, 1.2, 1.4, 1.2}
		}
	}
	clip, _, err := DecodeAnimationClip(root)
	if err != nil {
		t.Fatal(err)
	}
	got := clip.Channels[0].ScaleAt(2)
	if got != (vec3.T{1.4, 1.4, 1.4}) {
		t.Fatalf("scalar scale expanded to %v", got)
	}
}

func TestDecodeAnimSchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *Chunk
	}{
		{
			"missing info",
			func(t *testing.T) *Chunk {
				return NewContainer(TagAnimRoot)
			},
		},
		{
			"wrong root tag",
			func(t *testing.T) *Chunk {
				return NewContainer(TagRoot)
			},
		},
		{
			"zero frames",
			func(t *testing.T) *Chunk {
				root := NewContainer(TagAnimRoot)
				info := NewContainer(TagInfo)
				info.AppendChild(NewFloatChunk(TagFPS, KindFloat32, []float32{30}))
				info.AppendChild(NewInt32Chunk(TagFrameCount, 0))
				info.AppendChild(NewInt32Chunk(TagBoneCount, 0))
				root.AppendChild(info)
				return root
			},
		},
		{
			"bad curve flags",
			func(t *testing.T) *Chunk {
				root, err := EncodeAnimationClip(walkClip(t), StaticSampleTolerance)
				if err != nil {
					t.Fatal(err)
				}
				root.Child(TagBone).Child(TagSampleFlags).Str = "txq"
				return root
			},
		},
		{
			"scale with wrong kind",
			func(t *testing.T) *Chunk {
				root, err := EncodeAnimationClip(walkClip(t), StaticSampleTolerance)
				if err != nil {
					t.Fatal(err)
				}
				for _, ch := range root.Child(TagBone).Children {
					if ch.Tag == TagScale {
						ch.Kind = KindFloat4
					}
				}
				return root
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeAnimationClip(tt.build(t))
			if !errors.Is(err, ErrSchemaViolation) {
				t.Fatalf("err = %v, want ErrSchemaViolation", err)
			}
		})
	}
}

func TestDecodeAnimSkipsUnknownChunks(t *testing.T) {
	root, err := EncodeAnimationClip(walkClip(t), StaticSampleTolerance)
	if err != nil {
		t.Fatal(err)
	}
	root.AppendChild(NewStringChunk("meta", "retargeted"))
	root.Child(TagBone).AppendChild(NewFloatChunk("blnd", KindFloat32, []float32{0.5}))

	clip, warnings, err := DecodeAnimationClip(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(clip.Channels) != 3 {
		t.Fatalf("%d channels after unknown chunks, want 3", len(clip.Channels))
	}
}

// The info section's bone count is redundant with the channel list; a file
// where they disagree still decodes but the mismatch is reported.
func TestDecodeAnimBoneCountMismatch(t *testing.T) {
	root, err := EncodeAnimationClip(walkClip(t), StaticSampleTolerance)
	if err != nil {
		t.Fatal(err)
	}
	root.Child(TagInfo).Child(TagBoneCount).Ints[0] = 5

	clip, warnings, err := DecodeAnimationClip(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.Channels) != 3 {
		t.Fatalf("%d channels, want 3", len(clip.Channels))
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "5 bones") {
		t.Fatalf("warnings = %v, want one bone count mismatch", warnings)
	}
}
