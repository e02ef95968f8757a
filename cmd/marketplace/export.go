// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/logger"
	"github.com/stacklok/toolhive-marketplace/registry"
)

func runExport(_ context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "export")
	output := fs.String("output", "", "write the registry document to this file instead of stdout")
	namespace := fs.String("namespace", "", "publisher namespace (overrides export.namespace)")
	ociRepo := fs.String("oci-repository", "", "repository of packaged plugins (overrides export.oci_repository)")
	noGroups := fs.Bool("no-groups", false, "do not group servers by category")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}

	c, err := catalog.Build(a.cfg.Root)
	if err != nil {
		return err
	}
	reg, err := registry.Export(c, registry.Options{
		Namespace:       cmp.Or(*namespace, a.cfg.Export.Namespace),
		Root:            a.cfg.Root,
		OCIRepository:   cmp.Or(*ociRepo, a.cfg.Export.OCIRepository),
		GroupByCategory: a.cfg.Export.GroupByCategory && !*noGroups,
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	data = append(data, '\n')

	if *output == "" {
		_, err = a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil { //#nosec G306 -- the registry document is public
		return fmt.Errorf("writing %s: %w", *output, err)
	}
	logger.Infow("registry exported",
		"file", *output,
		"servers", len(reg.Data.Servers),
		"skills", len(reg.Data.Skills),
	)
	return nil
}
