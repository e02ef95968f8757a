// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package httperr provides error types with HTTP status codes.

The Airtable client wraps non-2xx responses with the response status, so the
syncer can decide whether a failure is retryable:

	err := httperr.WithCode(fmt.Errorf("airtable: %s", msg), resp.StatusCode)
	if httperr.IsRetryable(err) { ... }

Webhook handlers return coded errors and render them with [Write]:

	httperr.Write(w, httperr.New("invalid signature", http.StatusUnauthorized))
*/
package httperr
