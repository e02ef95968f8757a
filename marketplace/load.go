// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package marketplace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ManifestDir is the directory holding marketplace and plugin manifests.
	ManifestDir = ".claude-plugin"
	// MarketplaceFile is the marketplace index file name.
	MarketplaceFile = "marketplace.json"
	// PluginFile is the plugin manifest file name.
	PluginFile = "plugin.json"
)

var (
	// ErrMarketplaceNotFound is returned when root has no marketplace.json.
	ErrMarketplaceNotFound = errors.New("marketplace.json not found")
	// ErrRemoteSource is returned when resolving a directory for a remote plugin source.
	ErrRemoteSource = errors.New("plugin source is not a local directory")
	// ErrPathEscapesRoot is returned when a plugin path points outside the marketplace.
	ErrPathEscapesRoot = errors.New("plugin path escapes the marketplace root")
)

// MarketplacePath returns the path of marketplace.json under root.
func MarketplacePath(root string) string {
	return filepath.Join(root, ManifestDir, MarketplaceFile)
}

// ReadFile returns the raw marketplace.json bytes under root.
func ReadFile(root string) ([]byte, error) {
	data, err := os.ReadFile(MarketplacePath(root)) //#nosec G304 -- path built from the user-selected marketplace root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrMarketplaceNotFound, root)
		}
		return nil, fmt.Errorf("reading marketplace.json: %w", err)
	}
	return data, nil
}

// Parse decodes marketplace.json bytes without schema validation.
func Parse(data []byte) (*Marketplace, error) {
	var m Marketplace
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding marketplace.json: %w", err)
	}
	return &m, nil
}

// Load reads, schema-validates and decodes the marketplace under root.
func Load(root string) (*Marketplace, error) {
	data, err := ReadFile(root)
	if err != nil {
		return nil, err
	}
	if err := ValidateMarketplaceBytes(data); err != nil {
		return nil, err
	}
	return Parse(data)
}

// Marshal encodes m the way Save writes it: two-space indent, unescaped HTML
// characters and a trailing newline.
func Marshal(m *Marketplace) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding marketplace.json: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes m to root's marketplace.json, preserving the file mode when it exists.
func Save(root string, m *Marketplace) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	path := MarketplacePath(root)
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", ManifestDir, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing marketplace.json: %w", err)
	}
	return nil
}

// PluginDir resolves the local directory of entry. Bare relative sources are
// resolved against metadata.pluginRoot when it is set.
func (m *Marketplace) PluginDir(root string, entry *PluginEntry) (string, error) {
	if !entry.Source.IsLocal() {
		return "", fmt.Errorf("%w: %s", ErrRemoteSource, entry.Source)
	}
	rel := filepath.FromSlash(entry.Source.Path)
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, entry.Source.Path)
	}
	if m.Metadata != nil && m.Metadata.PluginRoot != "" && !isExplicitRelative(entry.Source.Path) {
		rel = filepath.Join(filepath.FromSlash(m.Metadata.PluginRoot), rel)
	}
	return resolveWithin(root, rel)
}

func isExplicitRelative(p string) bool {
	return p == "." || p == ".." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../")
}

// resolveWithin joins rel onto base and rejects results outside base, both
// lexically and once symlinks are followed. A path that does not exist yet is
// returned unresolved so callers can report it as missing.
func resolveWithin(base, rel string) (string, error) {
	joined := filepath.Join(base, rel)
	if !within(base, joined) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, rel)
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return joined, nil
	}
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return joined, nil
	}
	if !within(realBase, resolved) {
		return "", fmt.Errorf("%w: %s links to %s", ErrPathEscapesRoot, rel, resolved)
	}
	return joined, nil
}

func within(base, path string) bool {
	r, err := filepath.Rel(base, path)
	return err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}
