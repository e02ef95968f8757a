// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/stacklok/toolhive-marketplace/env"
	"github.com/stacklok/toolhive-marketplace/marketplace"
)

// hiddenAllowed are the hidden entries that belong to a plugin.
var hiddenAllowed = map[string]bool{
	marketplace.ManifestDir: true,
	".mcp.json":             true,
}

// Packager creates reproducible OCI artifacts from plugin directories.
type Packager struct {
	store *Store
}

var _ PluginPackager = (*Packager)(nil)

// NewPackager creates a packager writing into store. Panics if store is nil.
func NewPackager(store *Store) *Packager {
	if store == nil {
		panic("plugins: NewPackager called with nil store")
	}
	return &Packager{store: store}
}

// DefaultPackageOptions returns packaging options with the epoch taken from
// SOURCE_DATE_EPOCH, or the Unix epoch when unset or invalid.
func DefaultPackageOptions(reader env.Reader) PackageOptions {
	epoch := time.Unix(0, 0).UTC()
	if sde := reader.Getenv("SOURCE_DATE_EPOCH"); sde != "" {
		if ts, err := strconv.ParseInt(sde, 10, 64); err == nil {
			epoch = time.Unix(ts, 0).UTC()
		}
	}
	return PackageOptions{Epoch: epoch}
}

// Package packages a plugin directory into an OCI artifact in the local store.
func (p *Packager) Package(ctx context.Context, pluginDir string, opts PackageOptions) (*PackageResult, error) {
	if opts.Epoch.IsZero() {
		opts.Epoch = time.Unix(0, 0).UTC()
	}
	opts.Epoch = opts.Epoch.UTC()

	pm, err := marketplace.ReadManifest(pluginDir)
	if err != nil {
		return nil, fmt.Errorf("reading plugin manifest: %w", err)
	}
	files, err := CollectFiles(pluginDir)
	if err != nil {
		return nil, err
	}

	layerBytes, uncompressed, err := CompressTar(files, opts.Epoch)
	if err != nil {
		return nil, fmt.Errorf("creating content layer: %w", err)
	}
	layer, err := p.store.PutBlob(ctx, ocispec.MediaTypeImageLayerGzip, layerBytes)
	if err != nil {
		return nil, fmt.Errorf("storing layer blob: %w", err)
	}

	cfg := pluginConfig(pluginDir, pm, files)
	configBytes, err := json.Marshal(imageConfig(cfg, uncompressed, opts.Epoch))
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	config, err := p.store.PutBlob(ctx, ocispec.MediaTypeImageConfig, configBytes)
	if err != nil {
		return nil, fmt.Errorf("storing config blob: %w", err)
	}

	manifest, err := p.store.PutManifest(ctx, &ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: ArtifactTypePlugin,
		Config:       config,
		Layers:       []ocispec.Descriptor{layer},
		Annotations: map[string]string{
			ocispec.AnnotationCreated:   opts.Epoch.Format(time.RFC3339),
			AnnotationPluginName:        cfg.Name,
			AnnotationPluginDescription: cfg.Description,
			AnnotationPluginVersion:     cfg.Version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storing manifest: %w", err)
	}

	if opts.Tag != "" {
		if err := p.store.Tag(ctx, manifest.Digest, opts.Tag); err != nil {
			return nil, err
		}
	}

	return &PackageResult{
		ManifestDigest: manifest.Digest,
		ConfigDigest:   config.Digest,
		LayerDigest:    layer.Digest,
		Config:         cfg,
	}, nil
}

// CollectFiles reads every regular file of a plugin directory. Hidden entries
// other than the manifest directory and .mcp.json are skipped, and symlinks
// and special files are rejected.
func CollectFiles(dir string) ([]FileEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("accessing plugin directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	var files []FileEntry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("getting relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if base := d.Name(); strings.HasPrefix(base, ".") && !(hiddenAllowed[base] && !strings.Contains(rel, "/")) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("symlinks not allowed in plugin directory: %s", rel)
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("checking file type for %s: %w", rel, err)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("non-regular file not allowed in plugin directory: %s", rel)
		}

		content, err := os.ReadFile(path) //#nosec G304 -- path from WalkDir, symlink-checked
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		files = append(files, FileEntry{Path: rel, Content: content, Mode: int64(fi.Mode().Perm())})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking plugin directory: %w", err)
	}
	return files, nil
}

func pluginConfig(dir string, pm *marketplace.PluginManifest, files []FileEntry) *PluginConfig {
	cfg := &PluginConfig{
		Name:        pm.Name,
		Description: pm.Description,
		Version:     pm.Version,
		License:     pm.License,
		Files:       make([]string, 0, len(files)),
	}
	for _, f := range files {
		cfg.Files = append(cfg.Files, f.Path)
	}
	slices.Sort(cfg.Files)

	if names, err := marketplace.ListSkillDirs(dir); err == nil {
		cfg.Skills = names
	}
	if mcp, err := marketplace.ReadMCPConfig(dir, pm); err == nil && mcp != nil {
		for name := range mcp.Servers {
			cfg.MCPServers = append(cfg.MCPServers, name)
		}
		slices.Sort(cfg.MCPServers)
	}
	return cfg
}

func imageConfig(cfg *PluginConfig, uncompressedTar []byte, epoch time.Time) *ocispec.Image {
	return &ocispec.Image{
		Created:  &epoch,
		Platform: ocispec.Platform{OS: "any", Architecture: "any"},
		Config:   ocispec.ImageConfig{Labels: cfg.Labels()},
		RootFS: ocispec.RootFS{
			Type:    "layers",
			DiffIDs: []digest.Digest{digest.FromBytes(uncompressedTar)},
		},
		History: []ocispec.History{{
			Created:   &epoch,
			CreatedBy: "marketplace package " + cmp.Or(cfg.Name, "plugin"),
		}},
	}
}

// ReadConfig returns the plugin config of a stored manifest.
func ReadConfig(ctx context.Context, store *Store, manifestDigest digest.Digest) (*PluginConfig, error) {
	manifest, err := store.Manifest(ctx, manifestDigest)
	if err != nil {
		return nil, err
	}
	data, err := store.Blob(ctx, manifest.Config)
	if err != nil {
		return nil, err
	}
	var img ocispec.Image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("parsing image config: %w", err)
	}
	return PluginConfigFromImageConfig(&img)
}

// Unpack extracts a stored plugin artifact into dest, which must not exist or
// be empty. It returns the plugin config.
func Unpack(ctx context.Context, store *Store, manifestDigest digest.Digest, dest string) (*PluginConfig, error) {
	cfg, err := ReadConfig(ctx, store, manifestDigest)
	if err != nil {
		return nil, err
	}
	manifest, err := store.Manifest(ctx, manifestDigest)
	if err != nil {
		return nil, err
	}
	layer, err := store.Blob(ctx, manifest.Layers[0])
	if err != nil {
		return nil, err
	}
	files, err := DecompressTar(layer)
	if err != nil {
		return nil, err
	}

	if entries, err := os.ReadDir(dest); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("destination %s is not empty", dest)
	}
	for _, f := range files {
		path := filepath.Join(dest, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", f.Path, err)
		}
		mode := os.FileMode(NormalizeMode(f.Mode))
		if err := os.WriteFile(path, f.Content, mode); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.Path, err)
		}
		if err := os.Chmod(path, mode); err != nil {
			return nil, fmt.Errorf("setting mode of %s: %w", f.Path, err)
		}
	}
	return cfg, nil
}
