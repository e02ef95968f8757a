// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package recovery provides HTTP middleware that turns handler panics into 500
responses instead of crashing the webhook service.

	handler := recovery.Middleware(logger)(mux)

[http.ErrAbortHandler] is re-raised so the server can abort the response as usual.
*/
package recovery
