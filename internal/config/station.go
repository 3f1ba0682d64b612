package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/river-level-etl/internal/domain"
)

// Station is the YAML station file. Every field is optional; zero values
// leave the corresponding default in place.
//
//	name: Pont-y-Pair
//	feed_url: https://riverlevels.example.org/api/export/levels.csv
//	safe_level_metres: 1.9
//	display_window: 14d
type Station struct {
	Name          string  `yaml:"name"`
	FeedURL       string  `yaml:"feed_url"`
	SafeLevel     float64 `yaml:"safe_level_metres"`
	DisplayWindow string  `yaml:"display_window"`

	window domain.Window
}

// LoadStation reads and validates a station file.
func LoadStation(path string) (*Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station file %s: %w", path, err)
	}
	return ParseStation(data)
}

// ParseStation decodes station YAML, rejecting unknown keys.
func ParseStation(data []byte) (*Station, error) {
	var st Station
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&st); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode station file: %w", err)
	}
	if st.SafeLevel < 0 {
		return nil, fmt.Errorf("station safe_level_metres must be positive, got %g", st.SafeLevel)
	}
	st.window = domain.DefaultWindow
	if st.DisplayWindow != "" {
		w, err := domain.ParseWindow(st.DisplayWindow)
		if err != nil {
			return nil, fmt.Errorf("station display_window: %w", err)
		}
		st.window = w
	}
	return &st, nil
}

// Window returns the parsed display window, or the default when unset.
func (s *Station) Window() domain.Window {
	return s.window
}

func (s *Station) apply(cfg *Config) {
	if s.Name != "" {
		cfg.StationName = s.Name
	}
	if s.FeedURL != "" {
		cfg.FeedURL = s.FeedURL
	}
	if s.SafeLevel > 0 {
		cfg.SafeLevel = s.SafeLevel
	}
	if s.DisplayWindow != "" {
		cfg.DisplayWindow = s.window
	}
}
