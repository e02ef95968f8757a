// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"encoding/json"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Size limits for plugin artifact content. Plugins are markdown, JSON and
// small scripts; the config lists every archived path.
const (
	MaxManifestSize int64 = 64 << 10
	MaxConfigSize   int64 = 1 << 20
	MaxLayerSize    int64 = 64 << 20
)

// sizeLimit returns the limit for a media type a plugin artifact may contain.
func sizeLimit(mediaType string) (int64, bool) {
	switch mediaType {
	case ocispec.MediaTypeImageManifest:
		return MaxManifestSize, true
	case ocispec.MediaTypeImageConfig:
		return MaxConfigSize, true
	case ocispec.MediaTypeImageLayerGzip:
		return MaxLayerSize, true
	default:
		return 0, false
	}
}

// ValidateManifest checks that m describes a plugin artifact: the plugin
// artifact type, an image config and exactly one gzip layer, all within the
// size limits.
func ValidateManifest(m *ocispec.Manifest) error {
	if m.MediaType != "" && m.MediaType != ocispec.MediaTypeImageManifest {
		return fmt.Errorf("%w: media type %q", ErrNotPluginArtifact, m.MediaType)
	}
	if m.ArtifactType != ArtifactTypePlugin {
		return fmt.Errorf("%w: artifact type %q", ErrNotPluginArtifact, m.ArtifactType)
	}
	if m.Config.MediaType != ocispec.MediaTypeImageConfig {
		return fmt.Errorf("%w: config media type %q", ErrNotPluginArtifact, m.Config.MediaType)
	}
	if len(m.Layers) != 1 || m.Layers[0].MediaType != ocispec.MediaTypeImageLayerGzip {
		return fmt.Errorf("%w: expected one %s layer", ErrNotPluginArtifact, ocispec.MediaTypeImageLayerGzip)
	}
	for _, d := range []ocispec.Descriptor{m.Config, m.Layers[0]} {
		if err := checkSize(d); err != nil {
			return err
		}
	}
	return nil
}

func checkSize(d ocispec.Descriptor) error {
	limit, ok := sizeLimit(d.MediaType)
	if !ok {
		return fmt.Errorf("%w: unexpected media type %q", ErrNotPluginArtifact, d.MediaType)
	}
	if d.Size < 0 || d.Size > limit {
		return fmt.Errorf("%s %s has size %d, limit is %d bytes", d.MediaType, d.Digest, d.Size, limit)
	}
	return nil
}

func parseManifest(data []byte) (*ocispec.Manifest, error) {
	var m ocispec.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := ValidateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
