// Package settings implements the persistent settings store of spec.md
// §6.5: a narrow Get/Set/Save/Load interface over a YAML file holding the
// fixed key set the remote control surface and coordinator read and write.
package settings

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// AudioSource is the value domain of the "visualAudioSource" key.
type AudioSource string

const (
	AudioSourceMicrophone AudioSource = "microphone"
	AudioSourceMIDI       AudioSource = "midi"
)

// Renderer is the value domain of the "renderer" key.
type Renderer string

const (
	RendererWebGL   Renderer = "webgl"
	RendererCanvas2D Renderer = "canvas2d"
)

// Settings holds the §6.5 persisted key set. Its zero value is not the
// default configuration; Default returns that.
type Settings struct {
	MIDIInputID       string      `yaml:"midiInputId"`
	Renderer          Renderer    `yaml:"renderer"`
	OSCServer         string      `yaml:"oscServer"`
	LastScene         int         `yaml:"lastScene"`
	PresetType        string      `yaml:"presetType"`
	EnableSysEx       bool        `yaml:"enableSysEx"`
	AudioInput        string      `yaml:"audioInput"`
	VisualAudioSource AudioSource `yaml:"visualAudioSource"`
	MIDISynthChannel  string      `yaml:"midiSynthChannel"`
	MIDISynthAudible  bool        `yaml:"midiSynthAudible"`
}

// Default returns the documented default settings.
func Default() Settings {
	return Settings{
		Renderer:          RendererWebGL,
		EnableSysEx:       true,
		VisualAudioSource: AudioSourceMIDI,
		MIDISynthChannel:  "all",
		MIDISynthAudible:  true,
	}
}

// Store is a mutex-guarded, file-backed Settings holder.
type Store struct {
	mu   sync.RWMutex
	path string
	cur  Settings
}

// NewStore returns a Store backed by path, with Default() as the initial
// in-memory value; call Load to read any existing file.
func NewStore(path string) *Store {
	return &Store{path: path, cur: Default()}
}

// Load reads the settings file if it exists, merging its values over the
// current defaults. A missing file is not an error: Default() is kept.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	loaded := Default()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return err
	}
	s.cur = loaded
	return nil
}

// Save writes the current settings to the backing file.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := yaml.Marshal(s.cur)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set replaces the in-memory settings. Callers must still call Save to
// persist the change.
func (s *Store) Set(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = next
}

// Update atomically reads-modifies-writes the in-memory settings.
func (s *Store) Update(fn func(Settings) Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = fn(s.cur)
}
