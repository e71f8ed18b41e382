package system

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a system file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported system file extension %q (want .yaml, .yml, .json, .toml or .cue)", filepath.Ext(path))
	}
}

// Load reads, decodes, defaults and validates the system file at path.
func Load(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read system file: %w", err)
	}
	return Parse(data, format, path)
}

// Parse decodes a system from data. name is used in error positions.
func Parse(data []byte, format Format, name string) (*Config, error) {
	var (
		cfg  Config
		errs []ValidationError
	)

	switch format {
	case FormatYAML, FormatJSON:
		errs = decodeYAML(data, name, &cfg)
	case FormatTOML:
		errs = decodeTOML(data, name, &cfg)
	case FormatCUE:
		errs = decodeCUE(data, name, &cfg)
	default:
		return nil, fmt.Errorf("unsupported system format %q", format)
	}
	if len(errs) > 0 {
		return nil, &LoadError{Source: name, Errors: errs}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Source = name
		}
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(data []byte, name string, cfg *Config) []ValidationError {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return []ValidationError{{File: name, Message: "system file is empty"}}
	}

	var te *yaml.TypeError
	if errors.As(err, &te) {
		out := make([]ValidationError, len(te.Errors))
		for i, msg := range te.Errors {
			out[i] = ValidationError{File: name, Message: msg}
		}
		return out
	}
	return []ValidationError{{File: name, Message: err.Error()}}
}

func decodeTOML(data []byte, name string, cfg *Config) []ValidationError {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(cfg)
	if err == nil {
		return nil
	}

	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		out := make([]ValidationError, len(strict.Errors))
		for i := range strict.Errors {
			out[i] = tomlError(name, &strict.Errors[i])
		}
		return out
	}
	var de *toml.DecodeError
	if errors.As(err, &de) {
		return []ValidationError{tomlError(name, de)}
	}
	return []ValidationError{{File: name, Message: err.Error()}}
}

func tomlError(name string, de *toml.DecodeError) ValidationError {
	line, col := de.Position()
	return ValidationError{
		File:    name,
		Line:    line,
		Column:  col,
		Path:    strings.Join(de.Key(), "."),
		Message: de.Error(),
	}
}

// Encode writes cfg in the given format.
func Encode(cfg *Config, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return json.MarshalIndent(cfg, "", "  ")
	case FormatTOML:
		return toml.Marshal(cfg)
	case FormatCUE:
		return encodeCUE(cfg)
	default:
		return nil, fmt.Errorf("unsupported system format %q", format)
	}
}
