// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/stacklok/toolhive-marketplace/marketplace"
)

// Fix validates the tree, applies every fixable finding, writes
// marketplace.json when it changed and validates again. The returned report
// is the second validation with Fixed describing the changes made.
func (v *Validator) Fix(ctx context.Context) (*Report, error) {
	before, st, err := v.run(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return before, nil
	}

	var fixed []string
	dirty := false
	m := st.marketplace
	for _, f := range before.Fixable() {
		switch f.Code {
		case CodeUnsortedPlugins:
			slices.SortStableFunc(m.Plugins, comparePlugins)
			dirty = true
			fixed = append(fixed, "sorted plugin entries by name")
		case CodeVersionDrift:
			if entry, ok := m.Plugin(f.Plugin); ok {
				entry.Version = f.fixValue
				dirty = true
				fixed = append(fixed, fmt.Sprintf("%s: set version to %s", f.Plugin, f.fixValue))
			}
		case CodeDescriptionMissing:
			if entry, ok := m.Plugin(f.Plugin); ok {
				entry.Description = f.fixValue
				dirty = true
				fixed = append(fixed, fmt.Sprintf("%s: copied description from plugin.json", f.Plugin))
			}
		case CodeScriptNotExecutable:
			if err := makeExecutable(filepath.Join(v.opts.Root, filepath.FromSlash(f.Path))); err != nil {
				return nil, err
			}
			fixed = append(fixed, fmt.Sprintf("%s: chmod +x %s", f.Plugin, f.Path))
		}
	}

	if dirty {
		if err := marketplace.Save(v.opts.Root, m); err != nil {
			return nil, err
		}
	}

	after, _, err := v.run(ctx)
	if err != nil {
		return nil, err
	}
	after.Fixed = fixed
	return after, nil
}

// makeExecutable adds execute permission wherever read permission is set.
func makeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	mode := info.Mode().Perm()
	mode |= (mode & 0o444) >> 2
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
