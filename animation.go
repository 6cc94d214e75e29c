package pdx

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/flywave/go3d/quaternion"
	"github.com/flywave/go3d/vec3"
)

// ChannelFlag marks which sub-channels of a bone carry per-frame samples.
// An unset flag means the sub-channel is static: one shared value for the
// whole clip.
type ChannelFlag uint8

const (
	FlagTranslation ChannelFlag = 1 << iota
	FlagRotation
	FlagScale
)

func (f ChannelFlag) Has(bit ChannelFlag) bool {
	return f&bit != 0
}

// String renders the flag set in the format's curve notation, a subset of
// "tqs".
func (f ChannelFlag) String() string {
	var b strings.Builder
	if f.Has(FlagTranslation) {
		b.WriteByte('t')
	}
	if f.Has(FlagRotation) {
		b.WriteByte('q')
	}
	if f.Has(FlagScale) {
		b.WriteByte('s')
	}
	return b.String()
}

// ParseChannelFlags reads curve notation back into a flag set. Unknown
// letters are rejected.
func ParseChannelFlags(s string) (ChannelFlag, error) {
	var f ChannelFlag
	for _, r := range s {
		switch r {
		case 't':
			f |= FlagTranslation
		case 'q':
			f |= FlagRotation
		case 's':
			f |= FlagScale
		default:
			return 0, fmt.Errorf("unknown curve flag %q in %q", r, s)
		}
	}
	return f, nil
}

// AnimationChannel holds the sampled transform of one bone. A flagged
// sub-channel stores one sample per frame; an unflagged one stores exactly
// one shared value. The *At accessors hide the difference.
type AnimationChannel struct {
	BoneName    string         `json:"boneName"`
	Animated    ChannelFlag    `json:"animated"`
	Translation []vec3.T       `json:"translation"`
	Rotation    []quaternion.T `json:"rotation"`
	Scale       []vec3.T       `json:"scale"`
}

// NewAnimationChannel starts a channel with static identity transforms.
func NewAnimationChannel(boneName string) *AnimationChannel {
	return &AnimationChannel{
		BoneName:    boneName,
		Translation: []vec3.T{{}},
		Rotation:    []quaternion.T{quaternion.Ident},
		Scale:       []vec3.T{{1, 1, 1}},
	}
}

func sampleIndex(flagged bool, frame int) int {
	if flagged {
		return frame
	}
	return 0
}

// TranslationAt returns the translation at the given frame, transparently
// repeating a static value.
func (c *AnimationChannel) TranslationAt(frame int) vec3.T {
	return c.Translation[sampleIndex(c.Animated.Has(FlagTranslation), frame)]
}

func (c *AnimationChannel) RotationAt(frame int) quaternion.T {
	return c.Rotation[sampleIndex(c.Animated.Has(FlagRotation), frame)]
}

func (c *AnimationChannel) ScaleAt(frame int) vec3.T {
	return c.Scale[sampleIndex(c.Animated.Has(FlagScale), frame)]
}

// CollapseStatic demotes flagged sub-channels whose samples never leave tol
// of the first one to a single shared value. Lossless within tol by
// construction.
func (c *AnimationChannel) CollapseStatic(tol float32) {
	if c.Animated.Has(FlagTranslation) && constantVec3(c.Translation, tol) {
		c.Translation = c.Translation[:1]
		c.Animated &^= FlagTranslation
	}
	if c.Animated.Has(FlagRotation) && constantQuat(c.Rotation, tol) {
		c.Rotation = c.Rotation[:1]
		c.Animated &^= FlagRotation
	}
	if c.Animated.Has(FlagScale) && constantVec3(c.Scale, tol) {
		c.Scale = c.Scale[:1]
		c.Animated &^= FlagScale
	}
}

func constantVec3(vs []vec3.T, tol float32) bool {
	for _, v := range vs[1:] {
		for i := 0; i < 3; i++ {
			if math32.Abs(v[i]-vs[0][i]) > tol {
				return false
			}
		}
	}
	return true
}

func constantQuat(qs []quaternion.T, tol float32) bool {
	for _, q := range qs[1:] {
		for i := 0; i < 4; i++ {
			if math32.Abs(q[i]-qs[0][i]) > tol {
				return false
			}
		}
	}
	return true
}

// AnimationClip is the in-memory form of one .anim file: a fixed frame
// count sampled at FPS, one channel per animated bone.
type AnimationClip struct {
	FPS        float32             `json:"fps"`
	FrameCount int                 `json:"frameCount"`
	Channels   []*AnimationChannel `json:"channels"`
}

func NewAnimationClip(fps float32, frameCount int) (*AnimationClip, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", fps)
	}
	if frameCount <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", frameCount)
	}
	return &AnimationClip{FPS: fps, FrameCount: frameCount}, nil
}

// AddChannel appends a channel after checking each sub-channel holds either
// one static value or exactly FrameCount samples matching its flag.
func (a *AnimationClip) AddChannel(c *AnimationChannel) error {
	if err := a.checkLen(c, "translation", len(c.Translation), c.Animated.Has(FlagTranslation)); err != nil {
		return err
	}
	if err := a.checkLen(c, "rotation", len(c.Rotation), c.Animated.Has(FlagRotation)); err != nil {
		return err
	}
	if err := a.checkLen(c, "scale", len(c.Scale), c.Animated.Has(FlagScale)); err != nil {
		return err
	}
	for _, prev := range a.Channels {
		if prev.BoneName == c.BoneName {
			return fmt.Errorf("channel for bone %q already present", c.BoneName)
		}
	}
	a.Channels = append(a.Channels, c)
	return nil
}

func (a *AnimationClip) checkLen(c *AnimationChannel, sub string, n int, flagged bool) error {
	want := 1
	if flagged {
		want = a.FrameCount
	}
	if n != want {
		return fmt.Errorf("channel %q: %s has %d samples, want %d", c.BoneName, sub, n, want)
	}
	return nil
}
