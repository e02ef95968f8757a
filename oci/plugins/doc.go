// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package plugins packages marketplace plugins as OCI artifacts.

A plugin artifact is a single-layer image manifest whose layer is a
reproducible tar.gz of the plugin directory. Plugin metadata is carried in the
image config labels and the manifest annotations:

	plugins.ArtifactTypePlugin // "dev.toolhive.marketplace.plugin.v1"
	plugins.LabelPluginName
	plugins.LabelPluginFiles

Artifacts are stored locally in an OCI Image Layout under the XDG data home
and pushed to or pulled from remote registries with oras. Pulls accept only
plugin manifests (see ValidateManifest) and verify the size and digest of every
blob before it reaches the local store. Packaging the same directory twice
with the same epoch yields identical digests.
*/
package plugins
