// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package syncstate persists what the Airtable sync last wrote: one Record per
// plugin and target table, holding the Airtable record id and the content hash
// that was synced, plus a Run row per sync invocation.
//
// State lives in a SQLite database opened through gorm. SQLite allows a single
// writer, so the store keeps exactly one open connection.
package syncstate
