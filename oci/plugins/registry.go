// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

var _ RegistryClient = (*Registry)(nil)

// Registry pushes and pulls plugin artifacts.
type Registry struct {
	credStore credentials.Store
	plainHTTP bool

	// repository opens the remote repository of a reference; tests use memory stores
	repository func(ref registry.Reference) (oras.Target, error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPlainHTTP talks to the registry over HTTP, for local test registries.
func WithPlainHTTP(enabled bool) RegistryOption {
	return func(r *Registry) { r.plainHTTP = enabled }
}

// WithCredentialStore replaces the Docker credential store.
func WithCredentialStore(store credentials.Store) RegistryOption {
	return func(r *Registry) { r.credStore = store }
}

// NewRegistry returns a registry client authenticating with the Docker
// credential store unless another one is given.
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	if r.credStore == nil {
		store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
		if err != nil {
			return nil, fmt.Errorf("opening docker credential store: %w", err)
		}
		r.credStore = store
	}
	if r.repository == nil {
		r.repository = r.remoteRepository
	}
	return r, nil
}

// Push uploads a packaged plugin and tags it with ref's tag or digest.
func (r *Registry) Push(ctx context.Context, store *Store, manifestDigest digest.Digest, ref string) error {
	parsed, err := parseReference(ref)
	if err != nil {
		return err
	}
	if _, err := store.Manifest(ctx, manifestDigest); err != nil {
		return err
	}
	desc, err := store.Describe(ctx, manifestDigest)
	if err != nil {
		return err
	}
	repo, err := r.repository(parsed)
	if err != nil {
		return err
	}

	if err := oras.CopyGraph(ctx, store.Target(), repo, desc, oras.DefaultCopyGraphOptions); err != nil {
		return fmt.Errorf("pushing %s: %w", ref, err)
	}
	if err := repo.Tag(ctx, desc, parsed.Reference); err != nil {
		return fmt.Errorf("tagging %s: %w", ref, err)
	}
	return nil
}

// Pull downloads the plugin at ref into store and tags it locally with ref.
// Anything other than a plugin manifest is rejected with ErrNotPluginArtifact
// before its content is copied.
func (r *Registry) Pull(ctx context.Context, store *Store, ref string) (digest.Digest, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	repo, err := r.repository(parsed)
	if err != nil {
		return "", err
	}

	opts := oras.DefaultCopyOptions
	opts.MaxMetadataBytes = MaxManifestSize
	opts.FindSuccessors = pluginSuccessors
	desc, err := oras.Copy(ctx, repo, parsed.Reference, &pluginTarget{Target: store.Target()}, ref, opts)
	if err != nil {
		return "", fmt.Errorf("pulling %s: %w", ref, err)
	}
	return desc.Digest, nil
}

// pluginSuccessors walks a plugin artifact graph: the root must be a valid
// plugin manifest, whose successors are its config and layer.
func pluginSuccessors(ctx context.Context, fetcher content.Fetcher, desc ocispec.Descriptor) ([]ocispec.Descriptor, error) {
	if desc.MediaType != ocispec.MediaTypeImageManifest {
		return nil, checkSize(desc)
	}
	if desc.Size > MaxManifestSize {
		return nil, fmt.Errorf("manifest %s has size %d, limit is %d bytes", desc.Digest, desc.Size, MaxManifestSize)
	}
	data, err := content.FetchAll(ctx, fetcher, desc)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest %s: %w", desc.Digest, err)
	}
	m, err := parseManifest(data)
	if err != nil {
		return nil, err
	}
	return []ocispec.Descriptor{m.Config, m.Layers[0]}, nil
}

// pluginTarget verifies the size and digest of everything written to the
// local store during a pull.
type pluginTarget struct {
	oras.Target
}

// Push implements content.Pusher.
func (t *pluginTarget) Push(ctx context.Context, desc ocispec.Descriptor, r io.Reader) error {
	if err := checkSize(desc); err != nil {
		return err
	}
	data, err := content.ReadAll(io.LimitReader(r, desc.Size+1), desc)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", desc.Digest, err)
	}
	return t.Target.Push(ctx, desc, bytes.NewReader(data))
}

// parseReference parses a reference that names a tag or digest.
func parseReference(ref string) (registry.Reference, error) {
	parsed, err := registry.ParseReference(ref)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("parsing reference %q: %w", ref, err)
	}
	if parsed.Reference == "" {
		return registry.Reference{}, fmt.Errorf("reference %q must include a tag or digest", ref)
	}
	return parsed, nil
}

func (r *Registry) remoteRepository(ref registry.Reference) (oras.Target, error) {
	repo, err := remote.NewRepository(ref.Registry + "/" + ref.Repository)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s/%s: %w", ref.Registry, ref.Repository, err)
	}
	repo.Client = &auth.Client{Credential: credentials.Credential(r.credStore)}
	repo.PlainHTTP = r.plainHTTP
	return repo, nil
}
