// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultScriptTimeout bounds a single external check.
const DefaultScriptTimeout = time.Minute

// maxScriptOutput is how much combined output is kept in a finding.
const maxScriptOutput = 2048

// Script is an external check run once per plugin. The plugin directory is
// appended as the last argument and the process runs in the marketplace root.
type Script struct {
	Name    string        `mapstructure:"name"`
	Command []string      `mapstructure:"command"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func runScripts(ctx context.Context, root, pluginDir, plugin string, scripts []Script) ([]Finding, error) {
	var findings []Finding
	for _, s := range scripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if msg := runScript(ctx, root, pluginDir, s); msg != "" {
			findings = append(findings, Finding{
				Code:     CodeExternalScript,
				Severity: SeverityError,
				Plugin:   plugin,
				Path:     relPath(root, pluginDir),
				Message:  fmt.Sprintf("check %q failed: %s", s.Name, msg),
			})
		}
	}
	return findings, nil
}

// runScript returns a failure description, or "" when the script succeeded.
func runScript(ctx context.Context, root, pluginDir string, s Script) string {
	if len(s.Command) == 0 {
		return "no command configured"
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	args := append(append([]string{}, s.Command[1:]...), pluginDir)
	cmd := exec.CommandContext(ctx, s.Command[0], args...) //#nosec G204 -- command comes from the operator's configuration
	cmd.Dir = root
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if err == nil {
		return ""
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", s.Timeout)
	}
	detail := strings.TrimSpace(string(out))
	if len(detail) > maxScriptOutput {
		detail = "..." + detail[len(detail)-maxScriptOutput:]
	}
	if detail == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v: %s", err, detail)
}
