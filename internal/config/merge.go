// ABOUTME: Merging of configuration trees and loading of include-dir fragments
// ABOUTME: YAML (*.yaml, *.yml, *.conf) and TOML (*.toml) fragments only fill keys left unset

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// merge returns primary with every key it lacks filled in from fallback.
// Nested maps are merged recursively; lists and scalars are taken whole.
func merge(primary, fallback map[string]any) map[string]any {
	out := make(map[string]any, len(primary)+len(fallback))
	for k, v := range fallback {
		out[k] = v
	}
	for k, v := range primary {
		pm, pok := v.(map[string]any)
		fm, fok := out[k].(map[string]any)
		if pok && fok {
			out[k] = merge(pm, fm)
			continue
		}
		out[k] = v
	}
	return out
}

// includeDir returns the include directory named by general.include,
// resolved against baseDir. Empty disables includes.
func includeDir(tree map[string]any, baseDir string) string {
	general, _ := tree["general"].(map[string]any)
	dir, _ := general["include"].(string)
	if dir == "" {
		return ""
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}

// readIncludes parses every fragment in dir in lexical file order.
// A missing directory yields no fragments.
func readIncludes(dir string) ([]map[string]any, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading include dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	var fragments []map[string]any
	for _, name := range names {
		path := filepath.Join(dir, name)
		var (
			fragment map[string]any
			err      error
		)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".yaml", ".yml", ".conf":
			fragment, err = readYAMLFragment(path)
		case ".toml":
			fragment, err = readTOMLFragment(path)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

func readYAMLFragment(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading include: %w", err)
	}
	return parseYAML(path, data)
}

func readTOMLFragment(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading include: %w", err)
	}

	fragment := map[string]any{}
	if _, err := toml.Decode(expandEnvVars(string(data)), &fragment); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fragment, nil
}
