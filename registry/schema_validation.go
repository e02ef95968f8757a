// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stacklok/toolhive-marketplace/marketplace"
)

//go:embed data/upstream-registry.schema.json data/publisher-provided.schema.json data/skill.schema.json
var embeddedSchemaFS embed.FS

// Validate validates the UpstreamRegistry against the upstream registry schema.
// It also validates the publisher-provided extensions of every server.
func (r *UpstreamRegistry) Validate() error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize upstream registry: %w", err)
	}
	return ValidateUpstreamRegistryBytes(data)
}

// Validate validates the extensions against the publisher-provided schema.
func (e *PluginExtensions) Validate() error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize plugin extensions: %w", err)
	}
	return ValidatePublisherProvidedBytes(data)
}

// Validate validates the Skill against the skill schema.
func (s *Skill) Validate() error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize skill: %w", err)
	}
	return validateAgainstSchema(data, "data/skill.schema.json", "skill schema validation failed")
}

// ValidateUpstreamRegistryBytes validates raw registry JSON against the upstream
// registry schema and the publisher-provided extensions found in its servers.
func ValidateUpstreamRegistryBytes(registryData []byte) error {
	const schemaFile = "data/upstream-registry.schema.json"
	if err := validateAgainstSchema(registryData, schemaFile, "registry schema validation failed"); err != nil {
		return err
	}
	return validateRegistryExtensions(registryData)
}

// ValidatePublisherProvidedBytes validates one raw extensions object.
func ValidatePublisherProvidedBytes(extensionsData []byte) error {
	const schemaFile = "data/publisher-provided.schema.json"
	return validateAgainstSchema(extensionsData, schemaFile, "publisher-provided extensions schema validation failed")
}

func validateAgainstSchema(data []byte, schemaFile, errPrefix string) error {
	schemaData, err := embeddedSchemaFS.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read embedded schema %s: %w", schemaFile, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errPrefix, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return marketplace.FormatNumberedErrors(errPrefix, msgs)
}

func validateRegistryExtensions(registryData []byte) error {
	var doc struct {
		Data struct {
			Servers []map[string]any `json:"servers"`
			Groups  []struct {
				Name    string           `json:"name"`
				Servers []map[string]any `json:"servers"`
			} `json:"groups"`
		} `json:"data"`
	}
	if err := json.Unmarshal(registryData, &doc); err != nil {
		return fmt.Errorf("failed to parse registry JSON: %w", err)
	}

	var errs []string
	errs = append(errs, validateServerList(doc.Data.Servers, "")...)
	for _, g := range doc.Data.Groups {
		errs = append(errs, validateServerList(g.Servers, g.Name)...)
	}
	return marketplace.FormatNumberedErrors("publisher-provided extensions validation failed", errs)
}

func validateServerList(servers []map[string]any, groupName string) []string {
	var errs []string
	for i, server := range servers {
		name, _ := server["name"].(string)
		if name == "" {
			name = fmt.Sprintf("[%d]", i)
		}
		if groupName != "" {
			name = fmt.Sprintf("group[%s].%s", groupName, name)
		}
		errs = append(errs, validateServerExtensions(server, name)...)
	}
	return errs
}

func validateServerExtensions(server map[string]any, serverName string) []string {
	meta, ok := server["_meta"].(map[string]any)
	if !ok {
		return nil
	}
	publisherProvided, ok := meta[PublisherProvidedKey].(map[string]any)
	if !ok {
		return nil
	}

	var errs []string
	for _, ns := range sortedMapKeys(publisherProvided) {
		entries, ok := publisherProvided[ns].(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("server %s: namespace %s must be an object", serverName, ns))
			continue
		}
		for _, id := range sortedMapKeys(entries) {
			data, err := json.Marshal(entries[id])
			if err != nil {
				errs = append(errs, fmt.Sprintf("server %s: failed to serialize extensions: %v", serverName, err))
				continue
			}
			if err := ValidatePublisherProvidedBytes(data); err != nil {
				errs = append(errs, fmt.Sprintf("server %s: %s: %v", serverName, id, err))
			}
		}
	}
	return errs
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
