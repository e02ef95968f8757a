// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package airtable is a small client for the Airtable REST API, scoped to one
table of one base.

Requests are serialized through a token bucket (5 requests per second by
default, the documented Airtable limit). Writes are sent in batches of at most
10 records. Non-2xx responses become errors carrying the HTTP status, so
callers can use httperr.Code and httperr.IsRetryable. Rate-limited requests
are retried with exponential backoff, as are server-side failures of reads,
updates and deletes. Creates are not idempotent and are never resent after a
5xx or transport error.

	client, err := airtable.NewFromEnv(&env.OSReader{}, "appXXXX", "Plugins")
	records, err := client.List(ctx, airtable.ListOptions{})
*/
package airtable
