// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

//go:generate mockgen -source=env.go -destination=mocks/mock_reader.go -package=mocks Reader

import (
	"fmt"
	"os"
	"strings"
)

// Reader defines an interface for environment variable access
type Reader interface {
	Getenv(key string) string
}

// OSReader implements Reader using the standard os package
type OSReader struct{}

// Getenv returns the value of the environment variable named by the key
func (*OSReader) Getenv(key string) string {
	return os.Getenv(key)
}

// MissingError lists required variables that were unset or blank.
type MissingError struct {
	Keys []string
}

// Error implements the error interface.
func (e *MissingError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("required environment variable %s is not set", e.Keys[0])
	}
	return fmt.Sprintf("required environment variables are not set: %s", strings.Join(e.Keys, ", "))
}

// Require checks that every key has a non-blank value and returns the values in key order.
// Values are never inspected beyond presence.
func Require(reader Reader, keys ...string) ([]string, error) {
	values := make([]string, len(keys))
	var missing []string
	for i, key := range keys {
		v := reader.Getenv(key)
		if strings.TrimSpace(v) == "" {
			missing = append(missing, key)
			continue
		}
		values[i] = v
	}
	if len(missing) > 0 {
		return nil, &MissingError{Keys: missing}
	}
	return values, nil
}

// Lookup returns the value of key, or def when the variable is unset or blank.
func Lookup(reader Reader, key, def string) string {
	if v := strings.TrimSpace(reader.Getenv(key)); v != "" {
		return v
	}
	return def
}
