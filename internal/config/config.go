package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// configNames lists accepted config file names in lookup order.
var configNames = []string{"config.json", "config.yaml", "config.yml"}

// Upload limits applied when the config leaves them unset.
const (
	DefaultImageMaxBytes = 10 * 1024 * 1024
	DefaultAudioMaxBytes = 20 * 1024 * 1024
)

// Embed modes.
const (
	EmbedAuto   = "auto"
	EmbedAlways = "always"
	EmbedNever  = "never"
)

// ImageConfig describes a persistent (externally hosted) gallery image.
type ImageConfig struct {
	Src string `json:"src" yaml:"src"`
	Alt string `json:"alt" yaml:"alt"`
}

// AudioConfig describes a persistent background track.
type AudioConfig struct {
	Src  string `json:"src" yaml:"src"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// GalleryParams are passed through to the gallery renderer untouched.
type GalleryParams struct {
	Speed        float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
	ZSpacing     float64 `json:"z_spacing,omitempty" yaml:"z_spacing,omitempty"`
	VisibleCount int     `json:"visible_count,omitempty" yaml:"visible_count,omitempty"`
	FalloffNear  float64 `json:"falloff_near,omitempty" yaml:"falloff_near,omitempty"`
	FalloffFar   float64 `json:"falloff_far,omitempty" yaml:"falloff_far,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// Bind and Port locate the web surface.
	Bind string `json:"bind,omitempty" yaml:"bind,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// ImageMaxBytes and AudioMaxBytes cap uploads per media kind.
	ImageMaxBytes int64 `json:"image_max_bytes,omitempty" yaml:"image_max_bytes,omitempty"`
	AudioMaxBytes int64 `json:"audio_max_bytes,omitempty" yaml:"audio_max_bytes,omitempty"`

	// Text is the initial display text. Use "A; B" to italicize A.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// EmbeddedText replaces Text when the gallery runs inside a foreign frame.
	EmbeddedText string `json:"embedded_text,omitempty" yaml:"embedded_text,omitempty"`

	// Images seeds the committed image list. A non-empty overlay replaces the
	// base list wholesale; order is display order, so lists are never merged.
	Images []ImageConfig `json:"images,omitempty" yaml:"images,omitempty"`

	// Audio seeds the committed background track.
	Audio *AudioConfig `json:"audio,omitempty" yaml:"audio,omitempty"`

	Gallery GalleryParams `json:"gallery,omitempty" yaml:"gallery,omitempty"`

	// Embed overrides embedding detection: "auto" (default), "always", "never".
	Embed string `json:"embed,omitempty" yaml:"embed,omitempty"`

	// LogLevel is one of "debug", "info", "none".
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	images := make([]ImageConfig, 0, 8)
	for i := 1; i <= 8; i++ {
		images = append(images, ImageConfig{
			Src: "https://picsum.photos/seed/folio" + strconv.Itoa(i) + "/800/1200",
			Alt: "Gallery Image " + strconv.Itoa(i),
		})
	}
	return &Config{
		Bind:          "127.0.0.1",
		Port:          8420,
		ImageMaxBytes: DefaultImageMaxBytes,
		AudioMaxBytes: DefaultAudioMaxBytes,
		Text:          "I'm; Batman",
		EmbeddedText:  "damnnn",
		Images:        images,
		Gallery: GalleryParams{
			Speed:        1.2,
			ZSpacing:     3,
			VisibleCount: 12,
			FalloffNear:  0.8,
			FalloffFar:   14,
		},
		Embed:    EmbedAuto,
		LogLevel: "info",
	}
}

// Load loads configuration from baseDir/config.json (or config.yaml).
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(configFile(baseDir))
}

// configFile returns the first config file present in dir, or "".
func configFile(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadWithRepo loads configuration from both global (~/.folio) and repo (.folio) directories.
// Repo config is found by walking upward from startDir to find the nearest .folio/config.json.
// Repo config takes precedence for scalar values; arrays follow Merge rules.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(configFile(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .folio
// config file. Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		if configPath := configFile(filepath.Join(dir, ".folio")); configPath != "" {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		// Unknown keys are an error in YAML configs.
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; DisabledTools is merged and
// deduplicated; Images is replaced when the overlay sets any.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Bind = pick(overlay.Bind, base.Bind)
	result.Text = pick(overlay.Text, base.Text)
	result.EmbeddedText = pick(overlay.EmbeddedText, base.EmbeddedText)
	result.Embed = pick(overlay.Embed, base.Embed)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)

	result.Port = overlay.Port
	if result.Port == 0 {
		result.Port = base.Port
	}
	result.ImageMaxBytes = overlay.ImageMaxBytes
	if result.ImageMaxBytes == 0 {
		result.ImageMaxBytes = base.ImageMaxBytes
	}
	result.AudioMaxBytes = overlay.AudioMaxBytes
	if result.AudioMaxBytes == 0 {
		result.AudioMaxBytes = base.AudioMaxBytes
	}

	result.Images = base.Images
	if len(overlay.Images) > 0 {
		result.Images = overlay.Images
	}
	result.Audio = base.Audio
	if overlay.Audio != nil && overlay.Audio.Src != "" {
		result.Audio = overlay.Audio
	}

	result.Gallery = mergeGallery(base.Gallery, overlay.Gallery)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func mergeGallery(base, overlay GalleryParams) GalleryParams {
	out := base
	if overlay.Speed != 0 {
		out.Speed = overlay.Speed
	}
	if overlay.ZSpacing != 0 {
		out.ZSpacing = overlay.ZSpacing
	}
	if overlay.VisibleCount != 0 {
		out.VisibleCount = overlay.VisibleCount
	}
	if overlay.FalloffNear != 0 {
		out.FalloffNear = overlay.FalloffNear
	}
	if overlay.FalloffFar != 0 {
		out.FalloffFar = overlay.FalloffFar
	}
	return out
}

// pick returns overlay unless it is blank.
func pick(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
