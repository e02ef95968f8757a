// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
	svix "github.com/svix/svix-webhooks/go"
)

// Svix headers.
const (
	HeaderSvixID        = "svix-id"
	HeaderSvixTimestamp = "svix-timestamp"
	HeaderSvixSignature = "svix-signature"
)

// GitHub headers.
const (
	HeaderGitHubSignature = github.SHA256SignatureHeader
	HeaderGitHubEvent     = github.EventTypeHeader
	HeaderGitHubDelivery  = github.DeliveryIDHeader
)

const svixSecretPrefix = "whsec_"

var (
	// ErrMissingHeaders is returned when a signature header is absent.
	ErrMissingHeaders = errors.New("missing webhook signature headers")
	// ErrInvalidSignature is returned when the signature, or the Svix
	// timestamp it covers, does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// SvixVerifier verifies Svix signed deliveries, as sent by Resend. Svix
// rejects timestamps more than five minutes away from the local clock.
type SvixVerifier struct {
	wh *svix.Webhook
}

// NewSvixVerifier returns a verifier for secret, which is the base64 signing
// secret with or without its "whsec_" prefix.
func NewSvixVerifier(secret string) (*SvixVerifier, error) {
	if strings.TrimPrefix(secret, svixSecretPrefix) == "" {
		return nil, errors.New("svix secret is empty")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("decoding svix secret: %w", err)
	}
	return &SvixVerifier{wh: wh}, nil
}

// Verify checks the Svix headers of a delivery against its raw body.
func (v *SvixVerifier) Verify(h http.Header, body []byte) error {
	if h.Get(HeaderSvixID) == "" || h.Get(HeaderSvixTimestamp) == "" || h.Get(HeaderSvixSignature) == "" {
		return ErrMissingHeaders
	}
	if err := v.wh.Verify(body, h); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// GitHubVerifier verifies X-Hub-Signature-256 headers.
type GitHubVerifier struct {
	secret []byte
}

// NewGitHubVerifier returns a verifier for the webhook secret.
func NewGitHubVerifier(secret string) (*GitHubVerifier, error) {
	if secret == "" {
		return nil, errors.New("github webhook secret is empty")
	}
	return &GitHubVerifier{secret: []byte(secret)}, nil
}

// Verify checks the signature header of a delivery against its raw body.
func (v *GitHubVerifier) Verify(h http.Header, body []byte) error {
	sig := h.Get(HeaderGitHubSignature)
	if sig == "" {
		return ErrMissingHeaders
	}
	if err := github.ValidateSignature(sig, body, v.secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
