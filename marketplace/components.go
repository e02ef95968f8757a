// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package marketplace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

const (
	// PluginRootVar is expanded to the plugin directory at runtime.
	PluginRootVar = "${CLAUDE_PLUGIN_ROOT}"

	skillsDir    = "skills"
	commandsDir  = "commands"
	agentsDir    = "agents"
	scriptsDir   = "scripts"
	skillFile    = "SKILL.md"
	mcpFile      = ".mcp.json"
	defaultHooks = "hooks/hooks.json"
)

var (
	// ErrManifestNotFound is returned when a plugin has no plugin.json.
	ErrManifestNotFound = errors.New("plugin.json not found")
	// ErrSkillNotFound is returned when a skill directory has no SKILL.md.
	ErrSkillNotFound = errors.New("SKILL.md not found")

	pluginRootRefPattern = regexp.MustCompile(`\$\{CLAUDE_PLUGIN_ROOT\}/([^\s"'` + "`" + `;|&]+)`)
)

// ManifestPath returns the plugin.json path of a plugin directory.
func ManifestPath(pluginDir string) string {
	return filepath.Join(pluginDir, ManifestDir, PluginFile)
}

// ReadManifestBytes returns the raw plugin.json of a plugin directory.
func ReadManifestBytes(pluginDir string) ([]byte, error) {
	data, err := os.ReadFile(ManifestPath(pluginDir)) //#nosec G304 -- path resolved inside the marketplace root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("reading plugin.json: %w", err)
	}
	return data, nil
}

// ReadManifest reads, schema-validates and decodes a plugin's plugin.json.
func ReadManifest(pluginDir string) (*PluginManifest, error) {
	data, err := ReadManifestBytes(pluginDir)
	if err != nil {
		return nil, err
	}
	if err := ValidatePluginManifestBytes(data); err != nil {
		return nil, err
	}
	var pm PluginManifest
	if err := json.Unmarshal(data, &pm); err != nil {
		return nil, fmt.Errorf("decoding plugin.json: %w", err)
	}
	return &pm, nil
}

// Skill is a parsed skill directory.
type Skill struct {
	// DirName is the directory name under skills/
	DirName string
	// Dir is the absolute skill directory
	Dir string
	// Frontmatter is the parsed SKILL.md frontmatter
	Frontmatter *SkillFrontmatter
	// Body is the markdown after the frontmatter
	Body []byte
}

// ListSkillDirs returns the sorted directory names under the plugin's skills/.
func ListSkillDirs(pluginDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(pluginDir, skillsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading skills directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ReadSkill parses skills/<name>/SKILL.md of a plugin.
func ReadSkill(pluginDir, name string) (*Skill, error) {
	dir := filepath.Join(pluginDir, skillsDir, name)
	content, err := os.ReadFile(filepath.Join(dir, skillFile)) //#nosec G304 -- path built from a listed skill directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSkillNotFound
		}
		return nil, fmt.Errorf("reading SKILL.md: %w", err)
	}
	fm, body, err := ParseSkill(content)
	if err != nil {
		return nil, err
	}
	return &Skill{DirName: name, Dir: dir, Frontmatter: fm, Body: body}, nil
}

// ReadSkills parses every skill of a plugin, skipping directories without SKILL.md.
func ReadSkills(pluginDir string) ([]*Skill, error) {
	names, err := ListSkillDirs(pluginDir)
	if err != nil {
		return nil, err
	}
	skills := make([]*Skill, 0, len(names))
	for _, name := range names {
		s, err := ReadSkill(pluginDir, name)
		if errors.Is(err, ErrSkillNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("skill %s: %w", name, err)
		}
		skills = append(skills, s)
	}
	return skills, nil
}

// MarkdownComponent is a command or agent definition.
type MarkdownComponent struct {
	// Name is the file name without the .md extension
	Name string
	// Path is relative to the plugin directory, slash-separated
	Path string
	// Frontmatter is nil when the file has none
	Frontmatter *CommandFrontmatter
}

// ListCommands returns the plugin's command files: commands/*.md plus any
// paths listed in plugin.json.
func ListCommands(pluginDir string, pm *PluginManifest) ([]string, error) {
	var extra PathList
	if pm != nil {
		extra = pm.Commands
	}
	return listMarkdown(pluginDir, commandsDir, extra)
}

// ListAgents returns the plugin's agent files: agents/*.md plus any paths
// listed in plugin.json.
func ListAgents(pluginDir string, pm *PluginManifest) ([]string, error) {
	var extra PathList
	if pm != nil {
		extra = pm.Agents
	}
	return listMarkdown(pluginDir, agentsDir, extra)
}

func listMarkdown(pluginDir, defaultDir string, extra PathList) ([]string, error) {
	var out []string
	for _, p := range append([]string{defaultDir}, extra...) {
		abs, err := ResolvePluginPath(pluginDir, p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("accessing %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, relSlash(pluginDir, abs))
			continue
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") && !strings.EqualFold(e.Name(), "README.md") {
				out = append(out, relSlash(pluginDir, filepath.Join(abs, e.Name())))
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ReadMarkdownComponent parses a command or agent file at rel.
func ReadMarkdownComponent(pluginDir, rel string) (*MarkdownComponent, error) {
	content, err := os.ReadFile(filepath.Join(pluginDir, filepath.FromSlash(rel))) //#nosec G304 -- path listed inside the plugin
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	mc := &MarkdownComponent{
		Name: strings.TrimSuffix(filepath.Base(rel), ".md"),
		Path: rel,
	}
	var fm CommandFrontmatter
	if _, err := ParseFrontmatter(content, &fm); err != nil {
		if errors.Is(err, ErrNoFrontmatter) {
			return mc, nil
		}
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	mc.Frontmatter = &fm
	return mc, nil
}

// ReadMCPConfig returns the plugin's MCP server declarations from the
// mcpServers field of plugin.json (a path or an inline object) or from
// .mcp.json. It returns nil when the plugin declares none.
func ReadMCPConfig(pluginDir string, pm *PluginManifest) (*MCPConfig, error) {
	data, err := mcpConfigBytes(pluginDir, pm)
	if err != nil || data == nil {
		return nil, err
	}
	if err := ValidateMCPConfigBytes(data); err != nil {
		return nil, err
	}
	var cfg MCPConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding MCP config: %w", err)
	}
	return &cfg, nil
}

func mcpConfigBytes(pluginDir string, pm *PluginManifest) ([]byte, error) {
	if pm != nil && len(pm.MCPServers) > 0 {
		var path string
		if err := json.Unmarshal(pm.MCPServers, &path); err == nil {
			return readPluginFile(pluginDir, path)
		}
		var inline map[string]json.RawMessage
		if err := json.Unmarshal(pm.MCPServers, &inline); err != nil {
			return nil, fmt.Errorf("decoding inline mcpServers: %w", err)
		}
		if servers, ok := inline["mcpServers"]; ok {
			return wrapMCPServers(servers)
		}
		return wrapMCPServers(pm.MCPServers)
	}
	data, err := readPluginFile(pluginDir, mcpFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func wrapMCPServers(servers json.RawMessage) ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage{"mcpServers": servers})
}

// ReadHooks returns the plugin's hook configuration from the hooks field of
// plugin.json or from hooks/hooks.json. It returns nil when there is none.
func ReadHooks(pluginDir string, pm *PluginManifest) (*HooksConfig, error) {
	var data []byte
	if pm != nil && len(pm.Hooks) > 0 {
		var path string
		if err := json.Unmarshal(pm.Hooks, &path); err == nil {
			if data, err = readPluginFile(pluginDir, path); err != nil {
				return nil, err
			}
		} else {
			data = pm.Hooks
		}
	} else {
		var err error
		data, err = readPluginFile(pluginDir, defaultHooks)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var cfg HooksConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding hooks: %w", err)
	}
	return &cfg, nil
}

// PluginRootRefs returns the plugin-relative paths a hook or server command
// references through ${CLAUDE_PLUGIN_ROOT}.
func PluginRootRefs(command string) []string {
	matches := pluginRootRefPattern.FindAllStringSubmatch(command, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// ListScripts returns the slash-separated paths of files inside any scripts/
// directory of the plugin, hidden entries excluded.
func ListScripts(pluginDir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(pluginDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == pluginDir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel := relSlash(pluginDir, path)
		if slices.Contains(strings.Split(rel, "/")[:strings.Count(rel, "/")], scriptsDir) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking plugin directory: %w", err)
	}
	return out, nil
}

// ResolvePluginPath resolves a path from plugin.json or a hook command
// against the plugin directory. A leading ${CLAUDE_PLUGIN_ROOT} is accepted.
func ResolvePluginPath(pluginDir, p string) (string, error) {
	p = strings.TrimPrefix(p, PluginRootVar)
	p = strings.TrimPrefix(p, "/")
	return resolveWithin(pluginDir, filepath.FromSlash(p))
}

func readPluginFile(pluginDir, p string) ([]byte, error) {
	abs, err := ResolvePluginPath(pluginDir, p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs) //#nosec G304 -- path checked to stay inside the plugin
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, nil
}

func relSlash(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
