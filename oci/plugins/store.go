// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/errdef"
)

// Store keeps plugin artifacts in a local OCI Image Layout. Manifests are
// validated as plugin artifacts on the way in and out.
type Store struct {
	root   string
	layout *oci.Store
}

// NewStore opens the layout at root, creating it if needed.
func NewStore(root string) (*Store, error) {
	layout, err := oci.New(root)
	if err != nil {
		return nil, fmt.Errorf("opening plugin store at %s: %w", root, err)
	}
	return &Store{root: root, layout: layout}, nil
}

// StoreRoot returns the plugin store under a data home directory.
func StoreRoot(dataHome string) string {
	return filepath.Join(dataHome, "toolhive-marketplace", "plugins")
}

// DefaultStoreRoot returns the plugin store under the XDG data home.
func DefaultStoreRoot() string {
	return StoreRoot(xdg.DataHome)
}

// PutBlob stores a config or layer blob and returns its descriptor.
func (s *Store) PutBlob(ctx context.Context, mediaType string, data []byte) (ocispec.Descriptor, error) {
	desc := content.NewDescriptorFromBytes(mediaType, data)
	if err := checkSize(desc); err != nil {
		return ocispec.Descriptor{}, err
	}
	return desc, s.put(ctx, desc, data)
}

// PutManifest validates and stores a plugin manifest.
func (s *Store) PutManifest(ctx context.Context, m *ocispec.Manifest) (ocispec.Descriptor, error) {
	if err := ValidateManifest(m); err != nil {
		return ocispec.Descriptor{}, err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("marshaling manifest: %w", err)
	}
	desc := content.NewDescriptorFromBytes(ocispec.MediaTypeImageManifest, data)
	desc.ArtifactType = m.ArtifactType
	return desc, s.put(ctx, desc, data)
}

func (s *Store) put(ctx context.Context, desc ocispec.Descriptor, data []byte) error {
	err := s.layout.Push(ctx, desc, bytes.NewReader(data))
	if err != nil && !errors.Is(err, errdef.ErrAlreadyExists) {
		return fmt.Errorf("storing %s: %w", desc.Digest, err)
	}
	return nil
}

// Describe returns the descriptor of a stored manifest.
func (s *Store) Describe(ctx context.Context, d digest.Digest) (ocispec.Descriptor, error) {
	desc, err := s.layout.Resolve(ctx, d.String())
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("manifest %s not found: %w", d, err)
	}
	return desc, nil
}

// Manifest returns a stored plugin manifest. Other manifests fail with
// ErrNotPluginArtifact.
func (s *Store) Manifest(ctx context.Context, d digest.Digest) (*ocispec.Manifest, error) {
	desc, err := s.Describe(ctx, d)
	if err != nil {
		return nil, err
	}
	data, err := content.FetchAll(ctx, s.layout, desc)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", d, err)
	}
	return parseManifest(data)
}

// Blob returns the verified content of a blob referenced by a manifest.
func (s *Store) Blob(ctx context.Context, desc ocispec.Descriptor) ([]byte, error) {
	data, err := content.FetchAll(ctx, s.layout, desc)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", desc.Digest, err)
	}
	return data, nil
}

// Tag points tag at a stored manifest. Pulled artifacts are tagged with their
// full reference.
func (s *Store) Tag(ctx context.Context, d digest.Digest, tag string) error {
	desc, err := s.Describe(ctx, d)
	if err != nil {
		return err
	}
	if err := s.layout.Tag(ctx, desc, tag); err != nil {
		return fmt.Errorf("tagging %s as %s: %w", d, tag, err)
	}
	return nil
}

// Resolve returns the manifest digest a tag points at.
func (s *Store) Resolve(ctx context.Context, tag string) (digest.Digest, error) {
	desc, err := s.layout.Resolve(ctx, tag)
	if err != nil {
		return "", fmt.Errorf("tag %s not found: %w", tag, err)
	}
	return desc.Digest, nil
}

// Root returns the layout directory.
func (s *Store) Root() string {
	return s.root
}

// Target exposes the layout for oras copies.
func (s *Store) Target() oras.Target {
	return s.layout
}
