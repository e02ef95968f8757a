// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/stacklok/toolhive-marketplace/mcpserver"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func runMCP(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "mcp")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}

	vopts, err := a.cfg.ValidatorOptions()
	if err != nil {
		return err
	}
	vopts.ChangedSince = ""

	s := mcpserver.New(mcpserver.Options{
		Root:      a.cfg.Root,
		Version:   version,
		Validator: vopts,
		Logger:    a.componentLogger("mcp"),
	})
	err = s.ServeStdio(ctx, a.stdin, a.stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
