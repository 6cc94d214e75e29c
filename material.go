package pdx

// Conventional texture slot names used by the engine's shaders.
const (
	SlotDiffuse  = "diff"
	SlotNormal   = "n"
	SlotSpecular = "spec"
)

// TextureSlot names one shader texture input and the asset path bound to it.
// Only the reference string is stored; image data never enters the format.
type TextureSlot struct {
	Slot string `json:"slot"`
	File string `json:"file"`
}

// Material is a shader binding with an ordered list of texture slots.
type Material struct {
	Name     string        `json:"name"`
	Shader   string        `json:"shader"`
	Textures []TextureSlot `json:"textures,omitempty"`
}

func NewMaterial(name, shader string) *Material {
	return &Material{Name: name, Shader: shader}
}

// SetTexture binds file to the named slot, replacing an existing binding or
// appending a new slot.
func (m *Material) SetTexture(slot, file string) {
	for i := range m.Textures {
		if m.Textures[i].Slot == slot {
			m.Textures[i].File = file
			return
		}
	}
	m.Textures = append(m.Textures, TextureSlot{Slot: slot, File: file})
}

// Texture returns the file bound to slot, or "".
func (m *Material) Texture(slot string) string {
	for _, t := range m.Textures {
		if t.Slot == slot {
			return t.File
		}
	}
	return ""
}
