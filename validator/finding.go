// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// Severity of a finding.
type Severity string

const (
	// SeverityError makes validation fail.
	SeverityError Severity = "error"
	// SeverityWarning is reported but does not fail validation.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational.
	SeverityInfo Severity = "info"
)

// Finding codes.
const (
	CodeMarketplaceSchema   = "M001"
	CodeDuplicatePlugin     = "M002"
	CodeInvalidPluginName   = "M003"
	CodeUnsortedPlugins     = "M004"
	CodeSourceMissing       = "P001"
	CodeManifestMissing     = "P002"
	CodeManifestSchema      = "P003"
	CodeManifestName        = "P004"
	CodeInvalidVersion      = "P005"
	CodeVersionDrift        = "P006"
	CodeDescriptionMissing  = "P007"
	CodeSkillFileMissing    = "S001"
	CodeSkillFrontmatter    = "S002"
	CodeSkillName           = "S003"
	CodeComponentNoDesc     = "C001"
	CodeScriptNotExecutable = "X001"
	CodeHooksInvalid        = "H001"
	CodeHookScriptMissing   = "H002"
	CodeMCPConfigInvalid    = "E001"
	CodeStdioNoCommand      = "E002"
	CodeRemoteURL           = "E003"
	CodeHeader              = "E004"
	CodeExternalScript      = "Z001"
)

// Finding is a single problem found in the marketplace.
type Finding struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	// Plugin is empty for marketplace-wide findings
	Plugin string `json:"plugin,omitempty"`
	// Path is relative to the marketplace root, slash-separated
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Fixable bool   `json:"fixable,omitempty"`

	// fixValue is the replacement value applied by Fix
	fixValue string
}

// String formats the finding for terminal output.
func (f Finding) String() string {
	loc := f.Path
	if f.Plugin != "" {
		loc = "[" + f.Plugin + "] " + loc
	}
	fixable := ""
	if f.Fixable {
		fixable = " (fixable)"
	}
	return fmt.Sprintf("%-7s %s %s: %s%s", f.Severity, f.Code, loc, f.Message, fixable)
}

// Report is the outcome of a validation or fix run.
type Report struct {
	Findings []Finding `json:"findings"`
	// Fixed describes the changes Fix applied
	Fixed []string `json:"fixed,omitempty"`
	// Plugins is the number of plugins checked
	Plugins int `json:"plugins"`
}

// Count returns the number of findings with severity s.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// HasErrors reports whether any finding has error severity.
func (r *Report) HasErrors() bool {
	return r.Count(SeverityError) > 0
}

// Fixable returns the findings Fix can repair.
func (r *Report) Fixable() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Fixable {
			out = append(out, f)
		}
	}
	return out
}

// ByCode returns the findings with the given code.
func (r *Report) ByCode(code string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Code == code {
			out = append(out, f)
		}
	}
	return out
}

// Sort orders findings by plugin, code, path and message.
func (r *Report) Sort() {
	slices.SortStableFunc(r.Findings, func(a, b Finding) int {
		return cmp.Or(
			cmp.Compare(a.Plugin, b.Plugin),
			cmp.Compare(a.Code, b.Code),
			cmp.Compare(a.Path, b.Path),
			cmp.Compare(a.Message, b.Message),
		)
	})
}

// WriteText writes one line per finding followed by a summary line.
func (r *Report) WriteText(w io.Writer) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintln(w, f.String()); err != nil {
			return err
		}
	}
	for _, fixed := range r.Fixed {
		if _, err := fmt.Fprintf(w, "fixed   %s\n", fixed); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d plugins checked: %d errors, %d warnings, %d fixable\n",
		r.Plugins, r.Count(SeverityError), r.Count(SeverityWarning), len(r.Fixable()))
	return err
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
