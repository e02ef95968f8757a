// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stacklok/toolhive-marketplace/logger"
	"github.com/stacklok/toolhive-marketplace/scaffold"
)

func runNew(_ context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "new")
	description := fs.String("description", "", "one-line plugin description")
	category := fs.String("category", "", "plugin category")
	author := fs.String("author", "", "plugin author")
	license := fs.String("license", "", "SPDX license identifier (default Apache-2.0)")
	keywords := fs.String("keywords", "", "comma-separated keywords")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("new takes exactly one plugin name")
	}

	opts := scaffold.Options{
		Name:        fs.Arg(0),
		Description: *description,
		Category:    *category,
		Author:      *author,
		License:     *license,
	}
	for _, k := range strings.Split(*keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			opts.Keywords = append(opts.Keywords, k)
		}
	}

	res, err := scaffold.New(a.cfg.Root, opts)
	if err != nil {
		return err
	}
	logger.Infow("plugin created", "plugin", res.Entry.Name, "dir", res.Dir)
	for _, f := range res.Files {
		fmt.Fprintln(a.stdout, filepath.Join(res.Dir, filepath.FromSlash(f)))
	}
	return nil
}
