package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath returns the path of the local override for a config file,
// ex. `sensorlog.json5` -> `sensorlog.local.json5`.
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readFile[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, true, nil
	}
	err = json5.Unmarshal(contents, &out)
	if err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// Read reads a json5 configuration file and merges the local override next to
// it on top of it, non-zero values in the override win. A non-nil pointer
// counts as set even if it points at a zero value.
// It returns os.ErrNotExist if neither file exists.
func Read[T any](name string) (T, error) {
	out, foundDefault, err := readFile[T](name)
	if err != nil {
		return out, err
	}

	override, foundLocal, err := readFile[T](LocalPath(name))
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride, mergo.WithoutDereference)
		if err != nil {
			return out, err
		}
	}

	if !foundDefault && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// Overlay merges src on top of dst, non-zero values in src win.
func Overlay[T any](dst *T, src T) error {
	return mergo.Merge(dst, src, mergo.WithOverride, mergo.WithoutDereference)
}
