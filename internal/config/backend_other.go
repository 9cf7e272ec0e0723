//go:build !darwin

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "procura")
}

// yamlBackend keeps settings in a YAML file grouped by section:
//
//	smtp:
//	  host: smtp.example.com
//	  port: 587
type yamlBackend struct {
	path string
	tree map[string]map[string]any
}

func newPlatformBackend() ConfigBackend {
	b := &yamlBackend{
		path: filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "procura", "config.yaml"),
		tree: map[string]map[string]any{},
	}
	if err := b.load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using default values.\n", err)
	}
	return b
}

func (b *yamlBackend) load() error {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", b.path, err)
	}
	if err := yaml.Unmarshal(data, &b.tree); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", b.path, err)
	}
	return nil
}

func (b *yamlBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(b.tree)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

func (b *yamlBackend) get(key string) (any, bool) {
	section, field, _ := strings.Cut(key, ".")
	v, ok := b.tree[section][field]
	return v, ok
}

func (b *yamlBackend) set(key string, v any) error {
	section, field, _ := strings.Cut(key, ".")
	if b.tree[section] == nil {
		b.tree[section] = map[string]any{}
	}
	b.tree[section][field] = v
	return b.save()
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	v, ok := b.get(key)
	if !ok || v == nil {
		return "", false, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *yamlBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.get(key)
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s is %T, want an integer", key, v)
	}
}

func (b *yamlBackend) SetString(key, val string) error { return b.set(key, val) }

func (b *yamlBackend) SetInt(key string, val int) error { return b.set(key, val) }

func (b *yamlBackend) Delete(key string) error {
	section, field, _ := strings.Cut(key, ".")
	delete(b.tree[section], field)
	if len(b.tree[section]) == 0 {
		delete(b.tree, section)
	}
	return b.save()
}
