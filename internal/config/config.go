// Package config loads face-count-mcp settings from the environment.
//
// Values come from FACECOUNT_* environment variables, optionally backed by a
// .env file. Variables already set in the process environment take
// precedence over the file. Every value is validated once at load time so
// the rest of the program can trust it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/ironsheep/face-count-mcp/internal/annotate"
	"github.com/ironsheep/face-count-mcp/internal/detection"
)

// EnvPrefix is prepended to every key read by Load.
const EnvPrefix = "FACECOUNT_"

// Environment keys, without EnvPrefix.
const (
	KeyLogLevel        = "LOG_LEVEL"
	KeyLogFile         = "LOG_FILE"
	KeyFaceCascade     = "FACE_CASCADE"
	KeyPersonModelURL  = "PERSON_MODEL_URL"
	KeyModelTimeout    = "MODEL_TIMEOUT"
	KeyConfidence      = "CONFIDENCE"
	KeyFaceHeightRatio = "FACE_HEIGHT_RATIO"
	KeyFaceWidthRatio  = "FACE_WIDTH_RATIO"
	KeyFaceAspectCap   = "FACE_ASPECT_CAP"
	KeyFontPaths       = "FONT_PATHS"
)

// Config holds validated runtime settings.
type Config struct {
	LogLevel string `validate:"required,oneof=panic fatal error warn warning info debug trace"`
	LogFile  string

	// FaceCascade is a pico cascade file for the face model. Empty uses
	// the built-in facefinder cascade unless PersonModelURL is set.
	FaceCascade string
	// PersonModelURL is the YOLO inference server used when no cascade file
	// is configured or the configured one is missing.
	PersonModelURL string        `validate:"omitempty,url"`
	ModelTimeout   time.Duration `validate:"gt=0"`

	Confidence      float64 `validate:"gt=0,lte=1"`
	FaceHeightRatio float64 `validate:"gt=0,lte=1"`
	FaceWidthRatio  float64 `validate:"gt=0,lte=1"`
	FaceAspectCap   float64 `validate:"gt=0"`

	// FontPaths are tried before annotate.DefaultFontPaths.
	FontPaths []string
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	h := detection.DefaultHeuristic()
	return &Config{
		LogLevel:        "info",
		ModelTimeout:    30 * time.Second,
		Confidence:      detection.DefaultConfidence,
		FaceHeightRatio: h.FaceHeightRatio,
		FaceWidthRatio:  h.FaceWidthRatio,
		FaceAspectCap:   h.FaceAspectCap,
	}
}

// Load reads settings from the process environment and the given dotenv
// files. With no files, ./.env is used if it exists.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}

	fileEnv := map[string]string{}
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		for k, v := range values {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	})
}

// FromLookup builds a Config from an arbitrary key lookup, such as
// os.LookupEnv. Keys are looked up with EnvPrefix.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(KeyLogLevel); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get(KeyLogFile); ok {
		cfg.LogFile = v
	}
	if v, ok := get(KeyFaceCascade); ok {
		cfg.FaceCascade = v
	}
	if v, ok := get(KeyPersonModelURL); ok {
		cfg.PersonModelURL = v
	}
	if v, ok := get(KeyModelTimeout); ok {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", EnvPrefix, KeyModelTimeout, err)
		}
		cfg.ModelTimeout = d
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{KeyConfidence, &cfg.Confidence},
		{KeyFaceHeightRatio, &cfg.FaceHeightRatio},
		{KeyFaceWidthRatio, &cfg.FaceWidthRatio},
		{KeyFaceAspectCap, &cfg.FaceAspectCap},
	}
	for _, f := range floats {
		v, ok := get(f.key)
		if !ok {
			continue
		}
		n, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", EnvPrefix, f.key, err)
		}
		*f.dst = n
	}

	if v, ok := get(KeyFontPaths); ok {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.FontPaths = append(cfg.FontPaths, p)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ModelConfig returns the model sources in preference order.
func (c *Config) ModelConfig() detection.ModelConfig {
	return detection.ModelConfig{
		CascadePath: c.FaceCascade,
		RemoteURL:   c.PersonModelURL,
		Timeout:     c.ModelTimeout,
	}
}

// Heuristic returns the person-to-face conversion parameters.
func (c *Config) Heuristic() detection.HeuristicParams {
	return detection.HeuristicParams{
		FaceHeightRatio: c.FaceHeightRatio,
		FaceWidthRatio:  c.FaceWidthRatio,
		FaceAspectCap:   c.FaceAspectCap,
	}
}

// FontSearchPaths returns configured fonts followed by the system defaults.
func (c *Config) FontSearchPaths() []string {
	paths := make([]string, 0, len(c.FontPaths)+len(annotate.DefaultFontPaths))
	paths = append(paths, c.FontPaths...)
	return append(paths, annotate.DefaultFontPaths...)
}
