// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/stacklok/toolhive-marketplace/marketplace"
	"github.com/stacklok/toolhive-marketplace/policy"
	httpval "github.com/stacklok/toolhive-marketplace/validation/http"
	"github.com/stacklok/toolhive-marketplace/validation/name"
)

// pluginCheck runs the per-plugin checks for one marketplace entry.
type pluginCheck struct {
	root  string
	m     *marketplace.Marketplace
	entry *marketplace.PluginEntry
	rules *policy.RuleSet

	dir      string
	manifest *marketplace.PluginManifest
	facts    policy.Plugin
	findings []Finding
}

func (c *pluginCheck) report(code string, sev Severity, path, msg string) {
	c.findings = append(c.findings, Finding{
		Code:     code,
		Severity: sev,
		Plugin:   c.entry.Name,
		Path:     path,
		Message:  msg,
	})
}

func (c *pluginCheck) reportFix(code string, path, msg, value string) {
	c.findings = append(c.findings, Finding{
		Code:     code,
		Severity: SeverityWarning,
		Plugin:   c.entry.Name,
		Path:     path,
		Message:  msg,
		Fixable:  true,
		fixValue: value,
	})
}

func (c *pluginCheck) rel(path string) string {
	return relPath(c.root, path)
}

func (c *pluginCheck) run() []Finding {
	if !c.entry.Source.IsLocal() {
		return nil
	}

	dir, err := c.m.PluginDir(c.root, c.entry)
	if err != nil {
		c.report(CodeSourceMissing, SeverityError, marketplacePath, err.Error())
		return c.findings
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		c.report(CodeSourceMissing, SeverityError, marketplacePath,
			fmt.Sprintf("plugin source directory %s does not exist", c.entry.Source.Path))
		return c.findings
	}
	c.dir = dir

	c.facts = policy.Plugin{
		Name:        c.entry.Name,
		Version:     c.entry.Version,
		Description: c.entry.Description,
		Category:    c.entry.Category,
		License:     c.entry.License,
		Keywords:    c.entry.Keywords,
		Tags:        c.entry.Tags,
	}
	if c.entry.Author != nil {
		c.facts.Author = c.entry.Author.Name
	}

	c.checkManifest()
	c.checkSkills()
	c.checkMarkdown()
	c.checkScripts()
	c.checkHooks()
	c.checkMCP()
	c.checkPolicy()
	return c.findings
}

func (c *pluginCheck) checkManifest() {
	path := c.rel(marketplace.ManifestPath(c.dir))
	raw, err := marketplace.ReadManifestBytes(c.dir)
	if err != nil {
		if errors.Is(err, marketplace.ErrManifestNotFound) {
			if c.entry.IsStrict() {
				c.report(CodeManifestMissing, SeverityError, path, "plugin.json is missing")
			}
			c.checkVersion(c.entry.Version, marketplacePath)
			return
		}
		c.report(CodeManifestMissing, SeverityError, path, err.Error())
		return
	}

	if err := marketplace.ValidatePluginManifestBytes(raw); err != nil {
		c.report(CodeManifestSchema, SeverityError, path, err.Error())
	}
	var pm marketplace.PluginManifest
	if err := json.Unmarshal(raw, &pm); err != nil {
		c.report(CodeManifestSchema, SeverityError, path, fmt.Sprintf("decoding plugin.json: %v", err))
		return
	}
	c.manifest = &pm

	if pm.Name != "" && pm.Name != c.entry.Name {
		c.report(CodeManifestName, SeverityError, path,
			fmt.Sprintf("plugin.json name %q does not match marketplace entry %q", pm.Name, c.entry.Name))
	}

	c.checkVersion(pm.Version, path)
	if c.entry.Version != pm.Version {
		c.checkVersion(c.entry.Version, marketplacePath)
	}
	if pm.Version != "" && c.entry.Version != pm.Version {
		c.reportFix(CodeVersionDrift, marketplacePath,
			fmt.Sprintf("marketplace version %q differs from plugin.json version %q", c.entry.Version, pm.Version),
			pm.Version)
	}
	if c.entry.Description == "" && pm.Description != "" {
		c.reportFix(CodeDescriptionMissing, marketplacePath,
			"marketplace entry has no description but plugin.json does", pm.Description)
	}

	if c.facts.Version == "" {
		c.facts.Version = pm.Version
	}
	if c.facts.Description == "" {
		c.facts.Description = pm.Description
	}
	if c.facts.License == "" {
		c.facts.License = pm.License
	}
	if c.facts.Author == "" && pm.Author != nil {
		c.facts.Author = pm.Author.Name
	}
}

func (c *pluginCheck) checkVersion(version, path string) {
	if version == "" {
		return
	}
	if !isSemanticVersion(version) {
		c.report(CodeInvalidVersion, SeverityError, path,
			fmt.Sprintf("version %q is not a semantic version (MAJOR.MINOR.PATCH)", version))
	}
}

// isSemanticVersion reports whether version is a full MAJOR.MINOR.PATCH
// version, with optional pre-release and build suffixes. semver.IsValid alone
// accepts the "v1" and "v1.2" shorthands.
func isSemanticVersion(version string) bool {
	v := "v" + version
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	return semver.IsValid("v"+version) && semver.Canonical(v) == v
}

func (c *pluginCheck) checkSkills() {
	dirs, err := marketplace.ListSkillDirs(c.dir)
	if err != nil {
		c.report(CodeSkillFileMissing, SeverityError, c.rel(filepath.Join(c.dir, "skills")), err.Error())
		return
	}
	for _, d := range dirs {
		skillPath := c.rel(filepath.Join(c.dir, "skills", d, "SKILL.md"))
		skill, err := marketplace.ReadSkill(c.dir, d)
		if errors.Is(err, marketplace.ErrSkillNotFound) {
			c.report(CodeSkillFileMissing, SeverityError, skillPath, "skill directory has no SKILL.md")
			continue
		}
		if err != nil {
			c.report(CodeSkillFrontmatter, SeverityError, skillPath, err.Error())
			continue
		}
		fm := skill.Frontmatter
		if err := fm.Validate(); err != nil {
			c.report(CodeSkillFrontmatter, SeverityError, skillPath, err.Error())
		} else if err := name.ValidateSkill(fm.Name); err != nil {
			c.report(CodeSkillFrontmatter, SeverityError, skillPath, err.Error())
		}
		if fm.Name != "" && fm.Name != d {
			c.report(CodeSkillName, SeverityError, skillPath,
				fmt.Sprintf("skill name %q does not match directory %q", fm.Name, d))
		}
		c.facts.Skills = append(c.facts.Skills, d)
	}
}

func (c *pluginCheck) checkMarkdown() {
	for _, kind := range []string{"command", "agent"} {
		list := marketplace.ListCommands
		if kind == "agent" {
			list = marketplace.ListAgents
		}
		files, err := list(c.dir, c.manifest)
		if err != nil {
			c.report(CodeComponentNoDesc, SeverityWarning, c.rel(c.dir), err.Error())
			continue
		}
		for _, rel := range files {
			path := c.rel(filepath.Join(c.dir, filepath.FromSlash(rel)))
			mc, err := marketplace.ReadMarkdownComponent(c.dir, rel)
			if err != nil {
				c.report(CodeComponentNoDesc, SeverityWarning, path, err.Error())
				continue
			}
			if mc.Frontmatter == nil || mc.Frontmatter.Description == "" {
				c.report(CodeComponentNoDesc, SeverityWarning, path,
					fmt.Sprintf("%s %q has no frontmatter description", kind, mc.Name))
			}
			if kind == "command" {
				c.facts.Commands = append(c.facts.Commands, mc.Name)
			} else {
				c.facts.Agents = append(c.facts.Agents, mc.Name)
			}
		}
	}
}

func (c *pluginCheck) checkScripts() {
	scripts, err := marketplace.ListScripts(c.dir)
	if err != nil {
		c.report(CodeScriptNotExecutable, SeverityError, c.rel(c.dir), err.Error())
		return
	}
	for _, rel := range scripts {
		abs := filepath.Join(c.dir, filepath.FromSlash(rel))
		info, err := os.Lstat(abs)
		if err != nil || info.Mode()&0o111 != 0 {
			continue
		}
		if !hasShebang(abs) {
			continue
		}
		c.reportFix(CodeScriptNotExecutable, c.rel(abs), "script has a shebang but is not executable", "")
	}
}

func hasShebang(path string) bool {
	f, err := os.Open(path) //#nosec G304 -- path listed inside the plugin
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 2)
	n, _ := f.Read(buf)
	return bytes.Equal(buf[:n], []byte("#!"))
}

func (c *pluginCheck) checkHooks() {
	hooksPath := c.rel(filepath.Join(c.dir, "hooks", "hooks.json"))
	hooks, err := marketplace.ReadHooks(c.dir, c.manifest)
	if err != nil {
		c.report(CodeHooksInvalid, SeverityError, hooksPath, err.Error())
		return
	}
	if hooks == nil {
		return
	}
	c.facts.HasHooks = len(hooks.Hooks) > 0
	for _, cmd := range hooks.Commands() {
		for _, ref := range marketplace.PluginRootRefs(cmd.Command) {
			target, err := marketplace.ResolvePluginPath(c.dir, ref)
			if err != nil {
				c.report(CodeHookScriptMissing, SeverityError, hooksPath, err.Error())
				continue
			}
			if _, err := os.Stat(target); err != nil {
				c.report(CodeHookScriptMissing, SeverityError, hooksPath,
					fmt.Sprintf("hook command references missing file %s", ref))
			}
		}
	}
}

func (c *pluginCheck) checkMCP() {
	mcpPath := c.rel(filepath.Join(c.dir, ".mcp.json"))
	cfg, err := marketplace.ReadMCPConfig(c.dir, c.manifest)
	if err != nil {
		c.report(CodeMCPConfigInvalid, SeverityError, mcpPath, err.Error())
		return
	}
	if cfg == nil {
		return
	}

	names := make([]string, 0, len(cfg.Servers))
	for n := range cfg.Servers {
		names = append(names, n)
	}
	slices.Sort(names)

	c.facts.MCPServers = make(map[string]policy.MCPServer, len(names))
	for _, n := range names {
		s := cfg.Servers[n]
		if s == nil {
			c.report(CodeMCPConfigInvalid, SeverityError, mcpPath, fmt.Sprintf("server %q is null", n))
			continue
		}
		if s.IsRemote() {
			if err := httpval.ValidateRemoteURL(s.URL); err != nil {
				c.report(CodeRemoteURL, SeverityError, mcpPath, fmt.Sprintf("server %q: %v", n, err))
			}
			c.checkHeaders(mcpPath, n, s.Headers)
		} else if s.Command == "" {
			c.report(CodeStdioNoCommand, SeverityError, mcpPath, fmt.Sprintf("stdio server %q has no command", n))
		}

		env := make([]string, 0, len(s.Env))
		for k := range s.Env {
			env = append(env, k)
		}
		slices.Sort(env)
		c.facts.MCPServers[n] = policy.MCPServer{
			Transport: string(s.Transport()),
			Command:   s.Command,
			URL:       s.URL,
			Env:       env,
		}
	}
}

func (c *pluginCheck) checkHeaders(path, server string, headers map[string]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := httpval.ValidateHeaderName(k); err != nil {
			c.report(CodeHeader, SeverityError, path, fmt.Sprintf("server %q: %v", server, err))
			continue
		}
		if err := httpval.ValidateHeaderValue(headers[k]); err != nil {
			c.report(CodeHeader, SeverityError, path, fmt.Sprintf("server %q header %s: %v", server, k, err))
		}
	}
}

func (c *pluginCheck) checkPolicy() {
	for _, v := range c.rules.Evaluate(c.facts) {
		sev := SeverityError
		if v.Rule.Severity == policy.SeverityWarning {
			sev = SeverityWarning
		}
		c.report(v.Rule.ID, sev, marketplacePath, v.Message)
	}
}
