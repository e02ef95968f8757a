// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package webhook implements the marketplace webhook service.
//
// GitHub push deliveries to the default branch schedule a validate and sync
// job. Resend email events arrive through Svix and are verified, logged and
// counted. Jobs run one at a time on a single worker; a delivery that arrives
// while a job is already waiting is coalesced into it.
//
// GitHub signatures are checked with go-github and Svix signatures with the
// Svix client library, which also bounds the delivery timestamp.
package webhook
