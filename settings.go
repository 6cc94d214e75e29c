package pdx

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings is the host-facing tool state that used to live as module-level
// globals: last used paths and the active game profile. It is persisted as a
// JSON file and passed explicitly into whatever needs it — the codec itself
// never touches it.
type Settings struct {
	path string

	LastImportDir string              `json:"last_import_dir,omitempty"`
	LastExportDir string              `json:"last_export_dir,omitempty"`
	GameProfile   string              `json:"game_profile,omitempty"`
	ShaderPresets map[string][]string `json:"shader_presets,omitempty"`
}

// LoadSettings reads settings from path. A missing file yields defaults
// bound to that path; a present but unreadable file is an error.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the settings back to the path they were loaded from.
func (s *Settings) Save() error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Shaders returns the shader allow-list of the active game profile.
func (s *Settings) Shaders() []string {
	if s.ShaderPresets == nil {
		return nil
	}
	return s.ShaderPresets[s.GameProfile]
}
