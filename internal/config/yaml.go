package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlFile stores settings as nested YAML mappings, so "server.port" lives
// under server: port:.
type yamlFile struct {
	path string
	root map[string]any
}

func openYAMLFile(path string) (*yamlFile, error) {
	f := &yamlFile{path: path, root: map[string]any{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f.root); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.root == nil {
		f.root = map[string]any{}
	}
	return f, nil
}

// section returns the mapping holding the last segment of key. With create
// set, missing intermediate mappings are added.
func (f *yamlFile) section(key string, create bool) (map[string]any, string) {
	parts := strings.Split(key, ".")
	m := f.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			if !create {
				return nil, ""
			}
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	return m, parts[len(parts)-1]
}

func (f *yamlFile) Get(key string) (string, bool, error) {
	m, leaf := f.section(key, false)
	if m == nil {
		return "", false, nil
	}
	v, ok := m[leaf]
	if !ok || v == nil {
		return "", false, nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return "", true, fmt.Errorf("%s is not a scalar", key)
	}
	return fmt.Sprint(v), true, nil
}

func (f *yamlFile) Set(key string, value any) error {
	m, leaf := f.section(key, true)
	m[leaf] = value
	return f.save()
}

func (f *yamlFile) Delete(key string) error {
	m, leaf := f.section(key, false)
	if m == nil {
		return nil
	}
	delete(m, leaf)
	return f.save()
}

func (f *yamlFile) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(f.root)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}
