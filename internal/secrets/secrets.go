// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files and
// from a dotenv file. Each file in the directory represents one secret: the
// filename is the key name and the file contents (trimmed) are the value.
//
// Supported keys: anthropic-api-key, openai-api-key, zhipu-api-key.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key names understood by the configuration loader.
const (
	AnthropicAPIKey = "anthropic-api-key"
	OpenAIAPIKey    = "openai-api-key"
	ZhipuAPIKey     = "zhipu-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadAll merges the secrets directory with a dotenv file. Dotenv variables
// are renamed to key form (OPENAI_API_KEY becomes openai-api-key). Files in
// dir win over dotenv entries. A missing dotenv file is not an error.
func LoadAll(dir, envFile string) (map[string]string, error) {
	merged := make(map[string]string)
	if envFile != "" {
		env, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
		for k, v := range env {
			if v = strings.TrimSpace(v); v != "" {
				merged[KeyName(k)] = v
			}
		}
	}

	files, err := Load(dir)
	if err != nil {
		return nil, err
	}
	for k, v := range files {
		merged[k] = v
	}
	return merged, nil
}

// KeyName converts an environment variable name to a key name.
func KeyName(envVar string) string {
	return strings.ReplaceAll(strings.ToLower(envVar), "_", "-")
}

// EnvVar converts a key name to its environment variable name.
func EnvVar(key string) string {
	return strings.ReplaceAll(strings.ToUpper(key), "-", "_")
}

// Lookup returns the value for key. The process environment takes
// precedence over loaded secrets.
func Lookup(secrets map[string]string, key string) string {
	if v := strings.TrimSpace(os.Getenv(EnvVar(key))); v != "" {
		return v
	}
	return secrets[key]
}
