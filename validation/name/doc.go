// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package name validates the identifiers used for plugins, skills, commands and
agents in a marketplace.

Identifiers are kebab-case: lowercase ASCII letters and digits separated by
single dashes, starting with a letter, at most 64 characters.

	name.ValidatePlugin("celery-task-queue") // ok
	name.ValidatePlugin("Celery_Task")       // error

[Normalize] turns a free-form title into the closest valid identifier and is
used by the scaffolder.
*/
package name
