// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"context"
	"fmt"

	"github.com/stacklok/toolhive-marketplace/logger"
	"github.com/stacklok/toolhive-marketplace/marketplace"
	"github.com/stacklok/toolhive-marketplace/oci/plugins"
)

type ociFlags struct {
	plugin string
	store  string
}

func (a *app) openStore(f ociFlags) (*plugins.Store, error) {
	return plugins.NewStore(cmp.Or(f.store, a.cfg.OCI.StoreRoot, plugins.DefaultStoreRoot()))
}

// pluginDir resolves the directory of a plugin listed in the marketplace.
func (a *app) pluginDir(name string) (string, error) {
	if name == "" {
		return "", usageErrorf("--plugin is required")
	}
	m, err := marketplace.Load(a.cfg.Root)
	if err != nil {
		return "", err
	}
	entry, ok := m.Plugin(name)
	if !ok {
		return "", fmt.Errorf("plugin %q is not in the marketplace", name)
	}
	return m.PluginDir(a.cfg.Root, entry)
}

func (a *app) packagePlugin(ctx context.Context, f ociFlags, tag string) (*plugins.Store, *plugins.PackageResult, error) {
	dir, err := a.pluginDir(f.plugin)
	if err != nil {
		return nil, nil, err
	}
	store, err := a.openStore(f)
	if err != nil {
		return nil, nil, err
	}
	opts := plugins.DefaultPackageOptions(a.env)
	opts.Tag = tag
	res, err := plugins.NewPackager(store).Package(ctx, dir, opts)
	if err != nil {
		return nil, nil, err
	}
	return store, res, nil
}

func runPackage(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "package")
	var f ociFlags
	fs.StringVar(&f.plugin, "plugin", "", "plugin to package")
	fs.StringVar(&f.store, "store", "", "local OCI layout (overrides oci.store_root)")
	tag := fs.String("tag", "", "tag the artifact in the local store")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}

	store, res, err := a.packagePlugin(ctx, f, *tag)
	if err != nil {
		return err
	}
	logger.Infow("plugin packaged",
		"plugin", res.Config.Name,
		"version", res.Config.Version,
		"store", store.Root(),
	)
	fmt.Fprintln(a.stdout, res.ManifestDigest)
	return nil
}

func runPush(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "push")
	var f ociFlags
	fs.StringVar(&f.plugin, "plugin", "", "plugin to package and push")
	fs.StringVar(&f.store, "store", "", "local OCI layout (overrides oci.store_root)")
	plainHTTP := fs.Bool("plain-http", false, "use HTTP instead of HTTPS (overrides oci.plain_http)")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("push takes exactly one reference, e.g. ghcr.io/org/plugin:1.0.0")
	}
	ref := fs.Arg(0)

	store, res, err := a.packagePlugin(ctx, f, ref)
	if err != nil {
		return err
	}
	reg, err := plugins.NewRegistry(plugins.WithPlainHTTP(*plainHTTP || a.cfg.OCI.PlainHTTP))
	if err != nil {
		return err
	}
	if err := reg.Push(ctx, store, res.ManifestDigest, ref); err != nil {
		return err
	}
	logger.Infow("plugin pushed", "plugin", res.Config.Name, "ref", ref, "digest", res.ManifestDigest)
	fmt.Fprintf(a.stdout, "%s@%s\n", ref, res.ManifestDigest)
	return nil
}

func runPull(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "pull")
	var f ociFlags
	fs.StringVar(&f.store, "store", "", "local OCI layout (overrides oci.store_root)")
	dest := fs.String("dest", "", "unpack the plugin into this empty directory")
	plainHTTP := fs.Bool("plain-http", false, "use HTTP instead of HTTPS (overrides oci.plain_http)")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErrorf("pull takes exactly one reference")
	}
	ref := fs.Arg(0)

	store, err := a.openStore(f)
	if err != nil {
		return err
	}
	reg, err := plugins.NewRegistry(plugins.WithPlainHTTP(*plainHTTP || a.cfg.OCI.PlainHTTP))
	if err != nil {
		return err
	}
	d, err := reg.Pull(ctx, store, ref)
	if err != nil {
		return err
	}

	cfg, err := plugins.ReadConfig(ctx, store, d)
	if err != nil {
		return err
	}
	if *dest != "" {
		if _, err := plugins.Unpack(ctx, store, d, *dest); err != nil {
			return err
		}
	}
	logger.Infow("plugin pulled", "plugin", cfg.Name, "version", cfg.Version, "digest", d, "dest", *dest)
	fmt.Fprintln(a.stdout, d)
	return nil
}
