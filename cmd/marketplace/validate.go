// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/stacklok/toolhive-marketplace/logger"
	"github.com/stacklok/toolhive-marketplace/validator"
)

func runValidate(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "validate")
	changedSince := fs.String("changed-since", "", "only check plugins changed since this git revision")
	format := fs.String("format", "text", "output format: text or json")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		return usageErrorf("unknown format %q", *format)
	}

	opts, err := a.cfg.ValidatorOptions()
	if err != nil {
		return err
	}
	if *changedSince != "" {
		opts.ChangedSince = *changedSince
	}

	report, err := validator.New(opts).Validate(ctx)
	if err != nil {
		return err
	}
	return a.writeReport(report, *format)
}

func runFix(ctx context.Context, a *app, args []string) error {
	fs, common := newFlagSet(a, "fix")
	format := fs.String("format", "text", "output format: text or json")
	if err := a.parse(fs, common, args); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		return usageErrorf("unknown format %q", *format)
	}

	opts, err := a.cfg.ValidatorOptions()
	if err != nil {
		return err
	}
	// Fixes apply to the whole tree.
	opts.ChangedSince = ""

	report, err := validator.New(opts).Fix(ctx)
	if err != nil {
		return err
	}
	for _, f := range report.Fixed {
		logger.Infow("fixed", "change", f)
	}
	return a.writeReport(report, *format)
}

func (a *app) writeReport(report *validator.Report, format string) error {
	var err error
	if format == "json" {
		err = report.WriteJSON(a.stdout)
	} else {
		err = report.WriteText(a.stdout)
	}
	if err != nil {
		return err
	}
	if report.HasErrors() {
		return errFindings
	}
	return nil
}
