// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"context"
	"time"

	"github.com/opencontainers/go-digest"
)

// RegistryClient provides remote OCI registry operations for plugins.
type RegistryClient interface {
	// Push pushes an artifact from the local store to a remote registry.
	Push(ctx context.Context, store *Store, manifestDigest digest.Digest, ref string) error

	// Pull pulls an artifact from a remote registry into the local store.
	Pull(ctx context.Context, store *Store, ref string) (digest.Digest, error)
}

// PluginPackager creates OCI artifacts from plugin directories.
type PluginPackager interface {
	Package(ctx context.Context, pluginDir string, opts PackageOptions) (*PackageResult, error)
}

// PackageOptions configures plugin packaging.
type PackageOptions struct {
	// Epoch is the timestamp of every archive entry and of the config.
	Epoch time.Time
	// Tag optionally tags the manifest in the local store.
	Tag string
}

// PackageResult is the outcome of packaging a plugin.
type PackageResult struct {
	ManifestDigest digest.Digest
	ConfigDigest   digest.Digest
	LayerDigest    digest.Digest
	Config         *PluginConfig
}
