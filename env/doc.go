// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package env provides an interface-based abstraction for environment variable
access, plus the presence checks used by the marketplace tooling.

Templates in a marketplace read API keys and connection URLs from the
environment. The tooling only ever checks that such variables are present;
it never validates their contents.

	values, err := env.Require(&env.OSReader{}, "AIRTABLE_API_KEY")
	if err != nil {
		return err // *env.MissingError naming every unset key
	}

# Testing

A generated mock of Reader lives in the mocks sub-package:

	ctrl := gomock.NewController(t)
	mock := mocks.NewMockReader(ctrl)
	mock.EXPECT().Getenv("AIRTABLE_API_KEY").Return("key")
*/
package env
