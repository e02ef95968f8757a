// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"encoding/json"
	"errors"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ArtifactTypePlugin identifies plugin artifacts in manifests.
const ArtifactTypePlugin = "dev.toolhive.marketplace.plugin.v1"

// Annotation keys for plugin metadata in manifests.
const (
	AnnotationPluginName        = "dev.toolhive.marketplace.plugin.name"
	AnnotationPluginDescription = "dev.toolhive.marketplace.plugin.description"
	AnnotationPluginVersion     = "dev.toolhive.marketplace.plugin.version"
)

// Label keys for plugin metadata in OCI image config.
const (
	LabelPluginName        = "dev.toolhive.marketplace.plugin.name"
	LabelPluginDescription = "dev.toolhive.marketplace.plugin.description"
	LabelPluginVersion     = "dev.toolhive.marketplace.plugin.version"
	LabelPluginLicense     = "dev.toolhive.marketplace.plugin.license"
	// LabelPluginSkills is a JSON array of skill names
	LabelPluginSkills = "dev.toolhive.marketplace.plugin.skills"
	// LabelPluginMCPServers is a JSON array of declared MCP server names
	LabelPluginMCPServers = "dev.toolhive.marketplace.plugin.mcpServers"
	// LabelPluginFiles is a JSON array of archive paths
	LabelPluginFiles = "dev.toolhive.marketplace.plugin.files"
)

// ErrNotPluginArtifact is returned when a manifest is not a plugin artifact.
var ErrNotPluginArtifact = errors.New("not a plugin artifact")

// PluginConfig is the plugin metadata carried in the image config labels.
type PluginConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	License     string   `json:"license,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	MCPServers  []string `json:"mcpServers,omitempty"`
	Files       []string `json:"files"`
}

// Labels encodes the config as image config labels.
func (c *PluginConfig) Labels() map[string]string {
	labels := map[string]string{
		LabelPluginName:        c.Name,
		LabelPluginDescription: c.Description,
		LabelPluginVersion:     c.Version,
		LabelPluginLicense:     c.License,
	}
	setJSONLabel(labels, LabelPluginSkills, c.Skills)
	setJSONLabel(labels, LabelPluginMCPServers, c.MCPServers)
	setJSONLabel(labels, LabelPluginFiles, c.Files)
	return labels
}

func setJSONLabel(labels map[string]string, key string, values []string) {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	labels[key] = string(data)
}

// PluginConfigFromImageConfig extracts PluginConfig from OCI image config labels.
func PluginConfigFromImageConfig(imgConfig *ocispec.Image) (*PluginConfig, error) {
	if imgConfig == nil {
		return nil, fmt.Errorf("image config is nil")
	}

	labels := imgConfig.Config.Labels
	if labels == nil {
		return nil, fmt.Errorf("oci config has no labels")
	}

	config := &PluginConfig{
		Name:        labels[LabelPluginName],
		Description: labels[LabelPluginDescription],
		Version:     labels[LabelPluginVersion],
		License:     labels[LabelPluginLicense],
	}
	if config.Name == "" {
		return nil, fmt.Errorf("plugin name is required in labels")
	}

	for key, dst := range map[string]*[]string{
		LabelPluginSkills:     &config.Skills,
		LabelPluginMCPServers: &config.MCPServers,
		LabelPluginFiles:      &config.Files,
	} {
		raw := labels[key]
		if raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return nil, fmt.Errorf("parsing label %s: %w", key, err)
		}
	}
	return config, nil
}
