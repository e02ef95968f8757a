// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	upstream "github.com/modelcontextprotocol/registry/pkg/api/v0"
	"github.com/modelcontextprotocol/registry/pkg/model"

	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/oci/plugins"
)

// Registry types that have no constant in the upstream model package.
const (
	RegistryTypeNPM     = "npm"
	RegistryTypePyPI    = "pypi"
	RegistryTypeCommand = "command"
)

// DefaultVersion is used for plugins and skills without a version.
const DefaultVersion = "0.0.0"

const maxDescriptionLength = 100

// Options tune an export.
type Options struct {
	// Namespace is the reverse-DNS publisher namespace; DefaultNamespace when empty
	Namespace string
	// Root is the marketplace root, used to derive skill subfolders
	Root string
	// OCIRepository adds an oci package to every skill when set
	// (e.g. "ghcr.io/stacklok/marketplace")
	OCIRepository string
	// GroupByCategory adds one group per plugin category
	GroupByCategory bool
	// Now overrides the export timestamp
	Now time.Time
}

// Export converts a catalog into an upstream registry document and validates it.
func Export(c *catalog.Catalog, opts Options) (*UpstreamRegistry, error) {
	ns := cmp.Or(opts.Namespace, DefaultNamespace)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	reg := &UpstreamRegistry{
		Schema:  SchemaURL,
		Version: FormatVersion,
		Meta: UpstreamMeta{
			LastUpdated: now.UTC().Format(time.RFC3339),
			Marketplace: c.Name,
		},
		Data: UpstreamData{Servers: []upstream.ServerJSON{}},
	}

	byCategory := map[string][]upstream.ServerJSON{}
	for i := range c.Plugins {
		p := &c.Plugins[i]
		for _, s := range p.MCPServers {
			server := ServerToServerJSON(c.Name, ns, p, s)
			reg.Data.Servers = append(reg.Data.Servers, server)
			if p.Category != "" {
				byCategory[p.Category] = append(byCategory[p.Category], server)
			}
		}
		for _, s := range p.Skills {
			reg.Data.Skills = append(reg.Data.Skills, SkillToRegistrySkill(ns, opts, p, s))
		}
	}
	slices.SortFunc(reg.Data.Servers, func(a, b upstream.ServerJSON) int { return cmp.Compare(a.Name, b.Name) })

	if opts.GroupByCategory {
		for _, category := range slices.Sorted(maps.Keys(byCategory)) {
			reg.Data.Groups = append(reg.Data.Groups, UpstreamGroup{
				Name:        category,
				Description: fmt.Sprintf("MCP servers of %s plugins", category),
				Servers:     byCategory[category],
			})
		}
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// ServerName returns the upstream name of a plugin's server. A server named
// after its plugin keeps the plugin name.
func ServerName(namespace, plugin, server string) string {
	if server == plugin {
		return namespace + "/" + plugin
	}
	return namespace + "/" + plugin + "-" + server
}

// ServerToServerJSON converts one declared MCP server into upstream format.
func ServerToServerJSON(marketplaceName, namespace string, p *catalog.Plugin, s catalog.MCPServer) upstream.ServerJSON {
	server := upstream.ServerJSON{
		Schema:      model.CurrentSchemaURL,
		Name:        ServerName(namespace, p.Name, s.Name),
		Title:       s.Name,
		Description: truncate(cmp.Or(p.Description, p.Name+" MCP server"), maxDescriptionLength),
		Version:     cmp.Or(p.Version, DefaultVersion),
		Repository:  repository(p.Repository),
	}

	ext := PluginExtensions{
		Status:      StatusActive,
		Plugin:      p.Name,
		Marketplace: marketplaceName,
		Category:    p.Category,
		Tags:        tags(p),
		Transport:   s.Transport,
		Skills:      skillNames(p.Skills),
		Commands:    componentNames(p.Commands),
		Agents:      componentNames(p.Agents),
	}

	var key string
	switch s.Transport {
	case "sse", "http":
		remote := model.Transport{
			Type:    remoteTransportType(s.Transport),
			URL:     s.URL,
			Headers: keyValueInputs(s.Headers, "HTTP header"),
		}
		server.Remotes = []model.Transport{remote}
		key = s.URL
	default:
		pkg := stdioPackage(s)
		server.Packages = []model.Package{pkg}
		if pkg.RegistryType == RegistryTypeCommand {
			ext.Command = append([]string{s.Command}, s.Args...)
		}
		key = pkg.Identifier
	}

	server.Meta = &upstream.ServerMeta{
		PublisherProvided: map[string]interface{}{
			namespace: map[string]interface{}{
				key: extensionsToMap(ext),
			},
		},
	}
	return server
}

// SkillToRegistrySkill converts a plugin skill into a registry skill.
func SkillToRegistrySkill(namespace string, opts Options, p *catalog.Plugin, s catalog.Skill) Skill {
	version := cmp.Or(s.Version, p.Version, DefaultVersion)
	skill := Skill{
		Namespace:    namespace,
		Name:         s.Name,
		Description:  s.Description,
		Version:      version,
		Status:       StatusActive,
		License:      cmp.Or(s.License, p.License),
		AllowedTools: s.AllowedTools,
	}
	if len(s.Metadata) > 0 {
		skill.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			skill.Metadata[k] = v
		}
	}
	if p.Repository != "" {
		skill.Repository = &SkillRepository{URL: p.Repository, Type: "git"}
		pkg := SkillPackage{RegistryType: "git", URL: p.Repository}
		if opts.Root != "" && s.Dir != "" {
			if rel, err := filepath.Rel(opts.Root, s.Dir); err == nil && !strings.HasPrefix(rel, "..") {
				pkg.Subfolder = filepath.ToSlash(rel)
			}
		}
		skill.Packages = append(skill.Packages, pkg)
	}
	if opts.OCIRepository != "" {
		skill.Packages = append(skill.Packages, SkillPackage{
			RegistryType: "oci",
			Identifier:   fmt.Sprintf("%s/%s:%s", strings.TrimSuffix(opts.OCIRepository, "/"), p.Name, cmp.Or(p.Version, DefaultVersion)),
			MediaType:    plugins.ArtifactTypePlugin,
		})
	}
	skill.Meta = map[string]any{
		PublisherProvidedKey: map[string]any{
			namespace: map[string]any{
				s.Name: extensionsToMap(PluginExtensions{
					Status:   StatusActive,
					Plugin:   p.Name,
					Category: p.Category,
					Tags:     tags(p),
				}),
			},
		},
	}
	return skill
}

func stdioPackage(s catalog.MCPServer) model.Package {
	pkg := model.Package{
		Transport:            model.Transport{Type: model.TransportTypeStdio},
		EnvironmentVariables: keyValueInputs(s.Env, "Environment variable"),
	}

	var rest []string
	switch path.Base(filepath.ToSlash(s.Command)) {
	case "npx":
		spec, after := firstOperand(s.Args, npxValueFlags)
		if spec != "" {
			pkg.RegistryType = RegistryTypeNPM
			pkg.Identifier, pkg.Version = splitNPMSpec(spec)
			rest = after
		}
	case "uvx":
		spec, after := firstOperand(s.Args, uvxValueFlags)
		if spec != "" {
			pkg.RegistryType = RegistryTypePyPI
			pkg.Identifier, pkg.Version = splitPyPISpec(spec)
			rest = after
		}
	case "pipx":
		if len(s.Args) > 0 && s.Args[0] == "run" {
			spec, after := firstOperand(s.Args[1:], pipxValueFlags)
			if spec != "" {
				pkg.RegistryType = RegistryTypePyPI
				pkg.Identifier, pkg.Version = splitPyPISpec(spec)
				rest = after
			}
		}
	case "docker", "podman":
		if len(s.Args) > 0 && s.Args[0] == "run" {
			image, after, env := dockerRun(s.Args[1:])
			if image != "" {
				pkg.RegistryType = model.RegistryTypeOCI
				pkg.Identifier = image
				rest = after
				pkg.EnvironmentVariables = mergeInputs(pkg.EnvironmentVariables, keyValueInputs(env, "Environment variable"))
			}
		}
	}

	if pkg.RegistryType == "" {
		pkg.RegistryType = RegistryTypeCommand
		pkg.Identifier = s.Command
		rest = s.Args
	}
	pkg.PackageArguments = positionalArguments(rest)
	return pkg
}

// Flags of each launcher that consume the following argument.
var (
	npxValueFlags  = map[string]bool{"-p": true, "--package": true, "-c": true, "--call": true}
	uvxValueFlags  = map[string]bool{"--from": true, "--with": true, "-p": true, "--python": true, "--index-url": true, "--index": true}
	pipxValueFlags = map[string]bool{"--spec": true, "--python": true, "--index-url": true, "--pip-args": true}
	dockerValue    = map[string]bool{
		"-e": true, "--env": true, "--env-file": true, "-v": true, "--volume": true, "-p": true,
		"--publish": true, "--name": true, "--network": true, "-w": true, "--workdir": true,
		"--entrypoint": true, "-u": true, "--user": true, "--platform": true, "--mount": true,
	}
)

// firstOperand returns the first argument that is neither a flag nor a flag
// value, and the arguments following it.
func firstOperand(args []string, valueFlags map[string]bool) (string, []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") {
			if valueFlags[a] {
				i++
			}
			continue
		}
		return a, args[i+1:]
	}
	return "", nil
}

// dockerRun parses the arguments after "docker run", returning the image, the
// container arguments and the names of variables passed with -e.
func dockerRun(args []string) (string, []string, []string) {
	var env []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			return a, args[i+1:], env
		}
		name, value, hasValue := strings.Cut(a, "=")
		if (name == "-e" || name == "--env") && hasValue {
			env = append(env, envName(value))
			continue
		}
		if dockerValue[a] {
			if i+1 < len(args) && (a == "-e" || a == "--env") {
				env = append(env, envName(args[i+1]))
			}
			i++
		}
	}
	return "", nil, env
}

func envName(assignment string) string {
	name, _, _ := strings.Cut(assignment, "=")
	return name
}

// splitNPMSpec splits "pkg@1.2.3" and "@scope/pkg@1.2.3".
func splitNPMSpec(spec string) (string, string) {
	if i := strings.LastIndex(spec, "@"); i > 0 {
		return spec[:i], spec[i+1:]
	}
	return spec, ""
}

// splitPyPISpec splits "pkg==1.2.3" and "pkg@1.2.3", dropping extras.
func splitPyPISpec(spec string) (string, string) {
	name, version := spec, ""
	if n, v, ok := strings.Cut(spec, "=="); ok {
		name, version = n, v
	} else if n, v, ok := strings.Cut(spec, "@"); ok {
		name, version = n, v
	}
	if i := strings.Index(name, "["); i > 0 {
		name = name[:i]
	}
	return name, version
}

func positionalArguments(args []string) []model.Argument {
	if len(args) == 0 {
		return nil
	}
	out := make([]model.Argument, 0, len(args))
	for _, a := range args {
		out = append(out, model.Argument{
			Type: model.ArgumentTypePositional,
			InputWithVariables: model.InputWithVariables{
				Input: model.Input{Value: a},
			},
		})
	}
	return out
}

func keyValueInputs(names []string, what string) []model.KeyValueInput {
	if len(names) == 0 {
		return nil
	}
	out := make([]model.KeyValueInput, 0, len(names))
	for _, name := range names {
		out = append(out, model.KeyValueInput{
			Name: name,
			InputWithVariables: model.InputWithVariables{
				Input: model.Input{
					Description: fmt.Sprintf("%s %s", what, name),
					IsRequired:  true,
					IsSecret:    isSecretName(name),
				},
			},
		})
	}
	return out
}

func mergeInputs(a, b []model.KeyValueInput) []model.KeyValueInput {
	for _, in := range b {
		if !slices.ContainsFunc(a, func(x model.KeyValueInput) bool { return x.Name == in.Name }) {
			a = append(a, in)
		}
	}
	return a
}

var secretMarkers = []string{"KEY", "TOKEN", "SECRET", "PASSWORD", "CREDENTIAL", "AUTHORIZATION"}

func isSecretName(name string) bool {
	upper := strings.ToUpper(name)
	return slices.ContainsFunc(secretMarkers, func(m string) bool { return strings.Contains(upper, m) })
}

func remoteTransportType(transport string) string {
	if transport == "sse" {
		return model.TransportTypeSSE
	}
	return model.TransportTypeStreamableHTTP
}

func repository(raw string) *model.Repository {
	if raw == "" {
		return nil
	}
	repo := &model.Repository{URL: raw}
	if u, err := url.Parse(raw); err == nil {
		switch strings.ToLower(u.Hostname()) {
		case "github.com":
			repo.Source = "github"
		case "gitlab.com":
			repo.Source = "gitlab"
		}
	}
	return repo
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func tags(p *catalog.Plugin) []string {
	var out []string
	for _, t := range slices.Concat(p.Tags, p.Keywords) {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func skillNames(skills []catalog.Skill) []string {
	var out []string
	for _, s := range skills {
		out = append(out, s.Name)
	}
	return out
}

func componentNames(cs []catalog.Component) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

// extensionsToMap converts extensions into the generic map stored in _meta.
func extensionsToMap(ext PluginExtensions) map[string]interface{} {
	data, err := json.Marshal(ext)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
