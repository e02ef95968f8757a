// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package syncer reconciles a marketplace catalog with an Airtable table.
//
// Every plugin maps to one row. The content hash of the last row written is
// kept in syncstate, so a sync only touches rows whose plugin changed. Rows
// of plugins removed from the marketplace are deleted only when pruning is
// requested, and only when the sync itself created or adopted them.
package syncer
