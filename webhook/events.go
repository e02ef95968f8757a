// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"strings"

	"github.com/google/go-github/v66/github"
)

// PushBranch returns the branch ev pushed to, or "" for tag pushes.
func PushBranch(ev *github.PushEvent) string {
	b, ok := strings.CutPrefix(ev.GetRef(), "refs/heads/")
	if !ok {
		return ""
	}
	return b
}

// EmailEvent is a Resend webhook event.
type EmailEvent struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		EmailID string   `json:"email_id"`
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
	} `json:"data"`
}
