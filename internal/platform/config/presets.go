package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a sample source offered in the settings panel.
type Preset struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

type presetsFile struct {
	Presets []Preset `yaml:"presets"`
}

// DefaultPresets are used when no presets file exists.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "Sample MP4 (Big Buck Bunny)", URL: "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4"},
		{Name: "Sample MP4 (Elephant Dream)", URL: "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/ElephantsDream.mp4"},
		{Name: "RTSP Test Stream (Example)", URL: "rtsp://wowzaec2demo.streamlock.net/vod/mp4:BigBuckBunny_115k.mov"},
	}
}

// LoadPresets reads presets from a YAML file of the form
//
//	presets:
//	  - name: Lobby camera
//	    url: rtsp://10.0.0.5/stream
//
// A missing file yields DefaultPresets.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPresets(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}

	var f presetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	for i, p := range f.Presets {
		if p.URL == "" {
			return nil, fmt.Errorf("preset %d (%q) has no url", i, p.Name)
		}
		if p.Name == "" {
			f.Presets[i].Name = p.URL
		}
	}
	return f.Presets, nil
}
