// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package marketplace

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxFrontmatterSize limits frontmatter to prevent YAML parsing attacks.
const MaxFrontmatterSize = 64 * 1024

var (
	// ErrNoFrontmatter is returned when a markdown file does not start with ---.
	ErrNoFrontmatter = errors.New("file must start with YAML frontmatter (---)")
	// ErrUnclosedFrontmatter is returned when the closing --- is missing.
	ErrUnclosedFrontmatter = errors.New("frontmatter missing closing delimiter (---)")
)

// SkillFrontmatter is the YAML frontmatter of a SKILL.md file.
type SkillFrontmatter struct {
	Name          string            `yaml:"name" json:"name"`
	Description   string            `yaml:"description" json:"description"`
	Version       string            `yaml:"version,omitempty" json:"version,omitempty"`
	AllowedTools  StringOrSlice     `yaml:"allowed-tools,omitempty" json:"allowed-tools,omitempty"`
	License       string            `yaml:"license,omitempty" json:"license,omitempty"`
	Compatibility string            `yaml:"compatibility,omitempty" json:"compatibility,omitempty"`
	Metadata      map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// CommandFrontmatter is the YAML frontmatter of a command or agent file.
type CommandFrontmatter struct {
	Description  string        `yaml:"description"`
	Name         string        `yaml:"name,omitempty"`
	ArgumentHint string        `yaml:"argument-hint,omitempty"`
	AllowedTools StringOrSlice `yaml:"allowed-tools,omitempty"`
	Tools        StringOrSlice `yaml:"tools,omitempty"`
	Model        string        `yaml:"model,omitempty"`
}

// StringOrSlice is a YAML type that can unmarshal from a string or a sequence.
// Scalar values are split on commas, or on whitespace when there are none.
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		str := value.Value
		if str == "" {
			*s = nil
			return nil
		}
		var parts []string
		if strings.Contains(str, ",") {
			parts = strings.Split(str, ",")
		} else {
			parts = strings.Fields(str)
		}
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		*s = result
		return nil
	case yaml.SequenceNode:
		var arr []string
		if err := value.Decode(&arr); err != nil {
			return fmt.Errorf("decoding list: %w", err)
		}
		*s = arr
		return nil
	case yaml.DocumentNode, yaml.MappingNode, yaml.AliasNode:
		return fmt.Errorf("expected string or array, got unsupported YAML node type")
	}
	return fmt.Errorf("unexpected YAML node kind %d", value.Kind)
}

// ParseFrontmatter decodes the YAML frontmatter at the start of content into
// out and returns the markdown body that follows it.
func ParseFrontmatter(content []byte, out any) ([]byte, error) {
	content = bytes.TrimLeft(content, " \t\r\n\ufeff")

	delimiter := []byte("---")
	if !bytes.HasPrefix(content, delimiter) {
		return nil, ErrNoFrontmatter
	}

	rest := content[len(delimiter):]
	rest = bytes.TrimPrefix(rest, []byte("\r"))
	rest = bytes.TrimPrefix(rest, []byte("\n"))

	fmBytes, body, found := cutDelimiterLine(rest)
	if !found {
		return nil, ErrUnclosedFrontmatter
	}
	if len(fmBytes) > MaxFrontmatterSize {
		return nil, fmt.Errorf("frontmatter exceeds maximum size of %d bytes", MaxFrontmatterSize)
	}

	if err := yaml.Unmarshal(fmBytes, out); err != nil {
		return nil, fmt.Errorf("parsing frontmatter YAML: %w", err)
	}
	return body, nil
}

// cutDelimiterLine splits rest at the first line consisting only of ---.
func cutDelimiterLine(rest []byte) (before, after []byte, found bool) {
	offset := 0
	for offset <= len(rest) {
		line := rest[offset:]
		end := bytes.IndexByte(line, '\n')
		if end >= 0 {
			line = line[:end]
		}
		if string(bytes.TrimRight(line, " \t\r")) == "---" {
			if end < 0 {
				return rest[:offset], nil, true
			}
			return rest[:offset], rest[offset+end+1:], true
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return nil, nil, false
}

// ParseSkill parses a SKILL.md file.
func ParseSkill(content []byte) (*SkillFrontmatter, []byte, error) {
	var fm SkillFrontmatter
	body, err := ParseFrontmatter(content, &fm)
	if err != nil {
		return nil, nil, err
	}
	return &fm, body, nil
}
