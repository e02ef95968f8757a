// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scaffold creates new plugin skeletons inside a marketplace.
package scaffold

import (
	"bytes"
	"cmp"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/stacklok/toolhive-marketplace/marketplace"
	"github.com/stacklok/toolhive-marketplace/validation/name"
)

// DefaultVersion is the version of a new plugin.
const DefaultVersion = "0.1.0"

const defaultPluginsDir = "plugins"

// ErrExists is returned when the plugin or its directory already exists.
var ErrExists = errors.New("plugin already exists")

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"json": toJSON,
}).ParseFS(templateFS, "templates/*.tmpl"))

// Options describes the plugin to create.
type Options struct {
	Name        string
	Description string
	Category    string
	Author      string
	License     string
	Keywords    []string
}

// Result lists what New wrote.
type Result struct {
	// Dir is the new plugin directory
	Dir string
	// Files are the created files, relative to Dir
	Files []string
	// Entry is the entry added to marketplace.json
	Entry marketplace.PluginEntry
}

type data struct {
	Options
	Title   string
	Version string
}

// New creates the plugin skeleton under root and adds its entry to
// marketplace.json, keeping the entries sorted when they already are.
func New(root string, opts Options) (*Result, error) {
	if err := name.ValidatePlugin(opts.Name); err != nil {
		return nil, err
	}
	opts.Description = cmp.Or(strings.TrimSpace(opts.Description), "Templates for "+opts.Name)
	opts.License = cmp.Or(opts.License, "Apache-2.0")
	if len(opts.Keywords) == 0 {
		opts.Keywords = []string{opts.Name}
	}

	m, err := marketplace.Load(root)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Plugin(opts.Name); ok {
		return nil, fmt.Errorf("%w: %s is already in marketplace.json", ErrExists, opts.Name)
	}

	entry := marketplace.PluginEntry{
		Name:        opts.Name,
		Source:      marketplace.LocalSource("./" + path.Join(defaultPluginsDir, opts.Name)),
		Description: opts.Description,
		Version:     DefaultVersion,
		License:     opts.License,
		Keywords:    opts.Keywords,
		Category:    opts.Category,
	}
	if m.Metadata != nil && m.Metadata.PluginRoot != "" {
		entry.Source = marketplace.LocalSource(opts.Name)
	}
	if opts.Author != "" {
		entry.Author = &marketplace.Person{Name: opts.Author}
	}

	dir, err := m.PluginDir(root, &entry)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, dir)
	}

	files, err := render(data{Options: opts, Title: title(opts.Name), Version: DefaultVersion})
	if err != nil {
		return nil, err
	}
	res := &Result{Dir: dir, Entry: entry}
	for _, rel := range slices.Sorted(maps.Keys(files)) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, files[rel], 0o644); err != nil { //#nosec G306 -- plugin content is public
			return nil, fmt.Errorf("writing %s: %w", rel, err)
		}
		res.Files = append(res.Files, rel)
	}

	m.Plugins = insertEntry(m.Plugins, entry)
	if err := marketplace.Save(root, m); err != nil {
		return nil, err
	}
	return res, nil
}

func render(d data) (map[string][]byte, error) {
	targets := map[string]string{
		path.Join(marketplace.ManifestDir, marketplace.PluginFile): "plugin.json.tmpl",
		"README.md":                             "README.md.tmpl",
		path.Join("skills", d.Name, "SKILL.md"): "SKILL.md.tmpl",
		path.Join("commands", d.Name+".md"):     "command.md.tmpl",
		".mcp.json":                             "mcp.json.tmpl",
	}
	out := make(map[string][]byte, len(targets))
	for rel, tmpl := range targets {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, tmpl, d); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", rel, err)
		}
		out[rel] = buf.Bytes()
	}
	return out, nil
}

// insertEntry inserts e before the first entry that sorts after it when the
// list is sorted, and appends it otherwise.
func insertEntry(entries []marketplace.PluginEntry, e marketplace.PluginEntry) []marketplace.PluginEntry {
	byName := func(a, b marketplace.PluginEntry) int { return cmp.Compare(a.Name, b.Name) }
	if !slices.IsSortedFunc(entries, byName) {
		return append(entries, e)
	}
	i, _ := slices.BinarySearchFunc(entries, e, byName)
	return slices.Insert(entries, i, e)
}

func title(s string) string {
	words := strings.Split(s, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}
