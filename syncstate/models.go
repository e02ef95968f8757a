// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package syncstate

import "time"

// Record is the last synced state of one plugin in one Airtable table.
type Record struct {
	ID uint `gorm:"primaryKey"`
	// Target identifies the Airtable table as "<baseID>/<table>"
	Target string `gorm:"not null;uniqueIndex:idx_records_target_plugin"`
	// Plugin is the marketplace plugin name
	Plugin string `gorm:"not null;uniqueIndex:idx_records_target_plugin"`
	// RecordID is the Airtable record id
	RecordID string `gorm:"not null"`
	// Hash is the content hash of the row that was written
	Hash     string `gorm:"not null"`
	SyncedAt time.Time
	// RunID is the run that last wrote the record
	RunID     string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run is one sync invocation.
type Run struct {
	ID         string `gorm:"primaryKey"`
	Target     string `gorm:"not null;index"`
	StartedAt  time.Time
	FinishedAt *time.Time
	DryRun     bool
	Created    int
	Updated    int
	Deleted    int
	Skipped    int
	// Error is the failure message of an unsuccessful run
	Error string
}

// Finished reports whether the run has completed.
func (r *Run) Finished() bool {
	return r.FinishedAt != nil
}

// Target returns the state key of an Airtable table.
func Target(baseID, table string) string {
	return baseID + "/" + table
}
