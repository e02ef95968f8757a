// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

// SkillPackage is a distribution package of a skill.
type SkillPackage struct {
	// RegistryType is "oci" or "git"
	RegistryType string `json:"registryType"`
	// Identifier is the OCI reference of oci packages
	Identifier string `json:"identifier,omitempty"`
	// Digest is the manifest digest of oci packages
	Digest string `json:"digest,omitempty"`
	// MediaType is the artifact type of oci packages
	MediaType string `json:"mediaType,omitempty"`
	// URL is the clone URL of git packages
	URL string `json:"url,omitempty"`
	// Ref is a branch or tag of git packages
	Ref string `json:"ref,omitempty"`
	// Commit pins git packages to a commit
	Commit string `json:"commit,omitempty"`
	// Subfolder is the skill directory inside a git package
	Subfolder string `json:"subfolder,omitempty"`
}

// SkillRepository is source repository metadata.
type SkillRepository struct {
	URL  string `json:"url,omitempty"`
	Type string `json:"type,omitempty"`
}

// Skill is a single skill entry of the registry.
type Skill struct {
	// Namespace is reverse-DNS, e.g. "io.github.stacklok"
	Namespace string `json:"namespace"`
	// Name is the skill identifier
	Name        string `json:"name"`
	Description string `json:"description"`
	// Version is any non-empty string, ideally a semantic version
	Version string `json:"version"`
	// Status is one of "active", "deprecated" or "archived"
	Status        string `json:"status,omitempty"`
	Title         string `json:"title,omitempty"`
	License       string `json:"license,omitempty"`
	Compatibility string `json:"compatibility,omitempty"`
	// AllowedTools lists the tools the skill may use
	AllowedTools []string         `json:"allowedTools,omitempty"`
	Repository   *SkillRepository `json:"repository,omitempty"`
	Packages     []SkillPackage   `json:"packages,omitempty"`
	// Metadata is the metadata map of the SKILL.md frontmatter
	Metadata map[string]any `json:"metadata,omitempty"`
	// Meta is an opaque payload with publisher-provided details
	Meta map[string]any `json:"_meta,omitempty"`
}
