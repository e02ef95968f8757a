// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

func memoryRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	remote := memory.New()
	reg, err := NewRegistry(WithCredentialStore(credentials.NewMemoryStore()))
	require.NoError(t, err)
	reg.repository = func(registry.Reference) (oras.Target, error) { return remote, nil }
	return reg, remote
}

func TestNewRegistry_WithOptions(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(WithPlainHTTP(true), WithCredentialStore(credentials.NewMemoryStore()))
	require.NoError(t, err)
	assert.True(t, reg.plainHTTP)
	assert.NotNil(t, reg.repository)
}

func TestRegistry_PushPull(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	src := newTestStore(t)
	result, err := NewPackager(src).Package(ctx, celeryDir(t), PackageOptions{})
	require.NoError(t, err)

	reg, remote := memoryRegistry(t)
	const ref = "ghcr.io/stacklok/marketplace/celery-config:1.0.0"
	require.NoError(t, reg.Push(ctx, src, result.ManifestDigest, ref))

	desc, err := remote.Resolve(ctx, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, result.ManifestDigest, desc.Digest)

	dst := newTestStore(t)
	pulled, err := reg.Pull(ctx, dst, ref)
	require.NoError(t, err)
	assert.Equal(t, result.ManifestDigest, pulled)

	local, err := dst.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, pulled, local)

	cfg, err := ReadConfig(ctx, dst, pulled)
	require.NoError(t, err)
	assert.Equal(t, result.Config, cfg)
}

func pushJSON(t *testing.T, target oras.Target, mediaType string, v any) ocispec.Descriptor {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	desc := content.NewDescriptorFromBytes(mediaType, data)
	require.NoError(t, target.Push(t.Context(), desc, bytes.NewReader(data)))
	return desc
}

func TestRegistry_PullRejectsOtherArtifacts(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	reg, remote := memoryRegistry(t)

	configDesc := pushJSON(t, remote, ocispec.MediaTypeImageConfig, map[string]any{})
	skill := pushJSON(t, remote, ocispec.MediaTypeImageManifest, ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: "dev.toolhive.skills.v1",
		Config:       configDesc,
		Layers:       []ocispec.Descriptor{},
	})
	require.NoError(t, remote.Tag(ctx, skill, "skill"))

	index := pushJSON(t, remote, ocispec.MediaTypeImageIndex, ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{skill},
	})
	require.NoError(t, remote.Tag(ctx, index, "index"))

	for _, tag := range []string{"skill", "index"} {
		t.Run(tag, func(t *testing.T) {
			t.Parallel()
			dst := newTestStore(t)
			_, err := reg.Pull(t.Context(), dst, "ghcr.io/acme/artifact:"+tag)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotPluginArtifact), err.Error())

			// Nothing of a rejected artifact reaches the local store.
			ok, err := dst.Target().Exists(t.Context(), configDesc)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestValidateManifest(t *testing.T) {
	t.Parallel()

	config := ocispec.Descriptor{MediaType: ocispec.MediaTypeImageConfig, Digest: digest.FromString("c"), Size: 10}
	layer := ocispec.Descriptor{MediaType: ocispec.MediaTypeImageLayerGzip, Digest: digest.FromString("l"), Size: 10}
	valid := func() *ocispec.Manifest {
		return &ocispec.Manifest{
			MediaType:    ocispec.MediaTypeImageManifest,
			ArtifactType: ArtifactTypePlugin,
			Config:       config,
			Layers:       []ocispec.Descriptor{layer},
		}
	}
	require.NoError(t, ValidateManifest(valid()))

	tests := []struct {
		name          string
		mutate        func(m *ocispec.Manifest)
		notPlugin     bool
		wantSizeError bool
	}{
		{"artifact type", func(m *ocispec.Manifest) { m.ArtifactType = "dev.toolhive.skills.v1" }, true, false},
		{"config media type", func(m *ocispec.Manifest) { m.Config.MediaType = "application/json" }, true, false},
		{"no layers", func(m *ocispec.Manifest) { m.Layers = nil }, true, false},
		{"two layers", func(m *ocispec.Manifest) { m.Layers = append(m.Layers, layer) }, true, false},
		{"tar layer", func(m *ocispec.Manifest) { m.Layers[0].MediaType = ocispec.MediaTypeImageLayer }, true, false},
		{"oversized layer", func(m *ocispec.Manifest) { m.Layers[0].Size = MaxLayerSize + 1 }, false, true},
		{"oversized config", func(m *ocispec.Manifest) { m.Config.Size = MaxConfigSize + 1 }, false, true},
		{"negative size", func(m *ocispec.Manifest) { m.Config.Size = -1 }, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := valid()
			tt.mutate(m)
			err := ValidateManifest(m)
			require.Error(t, err)
			assert.Equal(t, tt.notPlugin, errors.Is(err, ErrNotPluginArtifact))
			if tt.wantSizeError {
				assert.Contains(t, err.Error(), "limit is")
			}
		})
	}
}

func TestParseReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"valid tag", "ghcr.io/stacklok/plugin:v1.0.0", false},
		{"valid digest", "ghcr.io/stacklok/plugin@sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", false},
		{"missing tag or digest", "ghcr.io/stacklok/plugin", true},
		{"invalid reference", ":::invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseReference(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPluginTarget_Push(t *testing.T) {
	t.Parallel()

	oversized := make([]byte, MaxManifestSize+1)
	blob := []byte("layer")

	tests := []struct {
		name    string
		desc    ocispec.Descriptor
		content []byte
		wantIs  error
		wantMsg string
	}{
		{
			name:    "oversized manifest",
			desc:    content.NewDescriptorFromBytes(ocispec.MediaTypeImageManifest, oversized),
			content: oversized,
			wantMsg: "limit is",
		},
		{
			name:    "descriptor smaller than content",
			desc:    ocispec.Descriptor{MediaType: ocispec.MediaTypeImageManifest, Digest: digest.FromBytes(oversized), Size: 10},
			content: oversized,
			wantIs:  content.ErrTrailingData,
		},
		{
			name:    "negative size",
			desc:    ocispec.Descriptor{MediaType: ocispec.MediaTypeImageLayerGzip, Digest: digest.FromString("x"), Size: -1},
			wantMsg: "limit is",
		},
		{
			name:    "digest mismatch",
			desc:    ocispec.Descriptor{MediaType: ocispec.MediaTypeImageLayerGzip, Digest: digest.FromString("other"), Size: int64(len(blob))},
			content: blob,
			wantIs:  content.ErrMismatchedDigest,
		},
		{
			name:    "foreign media type",
			desc:    content.NewDescriptorFromBytes(ocispec.MediaTypeImageIndex, blob),
			content: blob,
			wantIs:  ErrNotPluginArtifact,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inner := memory.New()
			err := (&pluginTarget{Target: inner}).Push(t.Context(), tt.desc, bytes.NewReader(tt.content))
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.True(t, errors.Is(err, tt.wantIs), err.Error())
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestPluginTarget_AcceptsValidBlob(t *testing.T) {
	t.Parallel()

	inner := memory.New()
	data := []byte("layer")
	desc := content.NewDescriptorFromBytes(ocispec.MediaTypeImageLayerGzip, data)
	require.NoError(t, (&pluginTarget{Target: inner}).Push(t.Context(), desc, bytes.NewReader(data)))

	ok, err := inner.Exists(t.Context(), desc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPluginConfigFromImageConfig(t *testing.T) {
	t.Parallel()

	_, err := PluginConfigFromImageConfig(nil)
	require.Error(t, err)

	_, err = PluginConfigFromImageConfig(&ocispec.Image{})
	require.Error(t, err)

	cfg := &PluginConfig{Name: "rag-pipeline", Version: "0.2.0", Files: []string{"a"}}
	img := &ocispec.Image{Config: ocispec.ImageConfig{Labels: cfg.Labels()}}
	got, err := PluginConfigFromImageConfig(img)
	require.NoError(t, err)
	assert.Equal(t, "rag-pipeline", got.Name)
	assert.Equal(t, []string{"a"}, got.Files)
	assert.Empty(t, got.Skills)

	img.Config.Labels[LabelPluginFiles] = "not json"
	_, err = PluginConfigFromImageConfig(img)
	require.Error(t, err)
}
