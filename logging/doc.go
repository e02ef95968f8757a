// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package logging provides the [log/slog.Logger] factory used by the long-running
marketplace components (the webhook service and the catalog MCP server).

The CLI itself logs through the zap singleton in the logger package; server
components take an explicit *slog.Logger so they can be embedded elsewhere.

	logger := logging.New(
		logging.WithFormat(logging.FormatText),
		logging.WithComponent("webhooks"),
	)
	logger.Info("listening", "addr", ":8080")

Tests inject a buffer with [WithOutput] or use [Discard].
*/
package logging
