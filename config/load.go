package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path, expands ${VAR}/${VAR:-default}
// references against the environment (after loading .env/.env.local from
// path's directory), and decodes the result into a File. The format is
// chosen from path's extension: .yaml/.yml (the primary format) or .toml
// (the alternate format).
func Load(path string) (*File, error) {
	if err := loadEnvFiles(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("config: load .env files: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	data, err := decodeRaw(raw, path)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return decodeFile(data)
}

// LoadFromString parses content as format ("yaml" or "toml") without
// touching the filesystem beyond .env loading from the current directory;
// useful for tests and embedded configuration.
func LoadFromString(content, format string) (*File, error) {
	if err := loadEnvFiles(""); err != nil {
		return nil, fmt.Errorf("config: load .env files: %w", err)
	}

	data, err := decodeByFormat([]byte(content), format)
	if err != nil {
		return nil, fmt.Errorf("config: parse inline config: %w", err)
	}

	return decodeFile(data)
}

func decodeRaw(raw []byte, path string) (interface{}, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format := "yaml"
	if ext == ".toml" {
		format = "toml"
	}
	return decodeByFormat(raw, format)
}

func decodeByFormat(raw []byte, format string) (interface{}, error) {
	var data interface{}
	switch format {
	case "toml":
		if err := toml.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func decodeFile(data interface{}) (*File, error) {
	expanded := expandEnvVarsInData(data)

	var file File
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &file,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(expanded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return &file, nil
}

// ResolveAPIKey returns cfg.APIKey if set, otherwise the value of the
// environment variable named by cfg.APIKeyEnv. It returns an error if
// neither yields a non-empty key, since every provider in package llm
// requires one.
func ResolveAPIKey(cfg LLMConfig) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyEnv != "" {
		if v := os.Getenv(cfg.APIKeyEnv); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("config: no API key for provider %q (set api_key or api_key_env)", cfg.Provider)
}
