// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package marketplace

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed data/marketplace.schema.json data/plugin.schema.json data/skill.schema.json data/mcp.schema.json
var embeddedSchemaFS embed.FS

// ValidateMarketplaceBytes validates raw marketplace.json bytes against the marketplace schema.
func ValidateMarketplaceBytes(data []byte) error {
	return validateAgainstSchema(data, "data/marketplace.schema.json", "marketplace schema validation failed")
}

// ValidatePluginManifestBytes validates raw plugin.json bytes against the plugin schema.
func ValidatePluginManifestBytes(data []byte) error {
	return validateAgainstSchema(data, "data/plugin.schema.json", "plugin manifest schema validation failed")
}

// ValidateMCPConfigBytes validates raw .mcp.json bytes against the MCP config schema.
func ValidateMCPConfigBytes(data []byte) error {
	return validateAgainstSchema(data, "data/mcp.schema.json", "MCP config schema validation failed")
}

// Validate validates the frontmatter against the skill schema.
func (s *SkillFrontmatter) Validate() error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize skill frontmatter: %w", err)
	}
	return validateAgainstSchema(data, "data/skill.schema.json", "skill schema validation failed")
}

// validateAgainstSchema validates data against a named embedded schema file.
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
	return FormatNumberedErrors(errPrefix, msgs)
}

// FormatNumberedErrors formats a list of messages as a single error with a numbered list.
func FormatNumberedErrors(prefix string, msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) == 1 {
		return fmt.Errorf("%s: %s", prefix, msgs[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s with %d errors:\n", prefix, len(msgs))
	for i, msg := range msgs {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, msg)
	}
	return errors.New(strings.TrimSuffix(b.String(), "\n"))
}
