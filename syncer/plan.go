// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package syncer

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/stacklok/toolhive-marketplace/airtable"
	"github.com/stacklok/toolhive-marketplace/catalog"
	"github.com/stacklok/toolhive-marketplace/syncstate"
)

// Action is what a sync does with one row.
type Action string

const (
	// ActionCreate adds a row for a plugin that has none.
	ActionCreate Action = "create"
	// ActionUpdate rewrites a row whose plugin changed.
	ActionUpdate Action = "update"
	// ActionSkip leaves an up-to-date row alone.
	ActionSkip Action = "skip"
	// ActionDelete removes the row of a plugin no longer in the marketplace.
	ActionDelete Action = "delete"
)

// Actions lists every action in plan order.
var Actions = []Action{ActionCreate, ActionUpdate, ActionDelete, ActionSkip}

// Change is the decision for one plugin.
type Change struct {
	Action Action `json:"action"`
	Plugin string `json:"plugin"`
	// RecordID is the existing Airtable record; empty for creates
	RecordID string `json:"recordId,omitempty"`
	// Hash is the content hash the row will carry after the change
	Hash string `json:"hash,omitempty"`
	// Adopted is set when an unsynced plugin matched an existing row by name
	Adopted bool            `json:"adopted,omitempty"`
	Fields  airtable.Fields `json:"-"`
}

// Plan is the ordered list of changes of a sync.
type Plan struct {
	Target  string   `json:"target"`
	Changes []Change `json:"changes"`
}

// Count returns the number of changes with action a.
func (p *Plan) Count(a Action) int {
	n := 0
	for _, c := range p.Changes {
		if c.Action == a {
			n++
		}
	}
	return n
}

// Of returns the changes with action a.
func (p *Plan) Of(a Action) []Change {
	var out []Change
	for _, c := range p.Changes {
		if c.Action == a {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether the plan writes nothing.
func (p *Plan) Empty() bool {
	return p.Count(ActionSkip) == len(p.Changes)
}

// WriteText writes a human-readable summary of the plan.
func (p *Plan) WriteText(w io.Writer) error {
	for _, c := range p.Changes {
		if c.Action == ActionSkip {
			continue
		}
		line := fmt.Sprintf("%-6s %s", c.Action, c.Plugin)
		if c.RecordID != "" {
			line += " (" + c.RecordID + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d to create, %d to update, %d to delete, %d unchanged\n",
		p.Count(ActionCreate), p.Count(ActionUpdate), p.Count(ActionDelete), p.Count(ActionSkip))
	return err
}

// BuildPlan decides the change for every plugin of c given the stored state.
//
// remote is the current content of the table, or nil when it is unknown (dry
// runs do not call the API). When known, rows of unsynced plugins are adopted
// by name and state entries whose row disappeared are recreated.
func BuildPlan(target string, c *catalog.Catalog, state []syncstate.Record, remote []airtable.Record, prune bool) *Plan {
	plan := &Plan{Target: target, Changes: []Change{}}

	stored := make(map[string]syncstate.Record, len(state))
	for _, r := range state {
		stored[r.Plugin] = r
	}
	var remoteIDs map[string]bool
	byName := map[string]string{}
	if remote != nil {
		remoteIDs = make(map[string]bool, len(remote))
		for _, r := range remote {
			remoteIDs[r.ID] = true
			if name, ok := r.Fields[FieldName].(string); ok && name != "" {
				if _, dup := byName[name]; !dup {
					byName[name] = r.ID
				}
			}
		}
	}

	inCatalog := make(map[string]bool, len(c.Plugins))
	for i := range c.Plugins {
		p := &c.Plugins[i]
		inCatalog[p.Name] = true
		fields := Fields(p)
		hash, _ := fields[FieldHash].(string)
		change := Change{Plugin: p.Name, Hash: hash, Fields: fields}

		rec, ok := stored[p.Name]
		if ok && remoteIDs != nil && !remoteIDs[rec.RecordID] {
			ok = false
		}
		switch {
		case ok && rec.Hash == hash:
			change.Action = ActionSkip
			change.RecordID = rec.RecordID
		case ok:
			change.Action = ActionUpdate
			change.RecordID = rec.RecordID
		case byName[p.Name] != "":
			change.Action = ActionUpdate
			change.RecordID = byName[p.Name]
			change.Adopted = true
		default:
			change.Action = ActionCreate
		}
		plan.Changes = append(plan.Changes, change)
	}

	if prune {
		for _, r := range state {
			if inCatalog[r.Plugin] {
				continue
			}
			if remoteIDs != nil && !remoteIDs[r.RecordID] {
				continue
			}
			plan.Changes = append(plan.Changes, Change{Action: ActionDelete, Plugin: r.Plugin, RecordID: r.RecordID})
		}
	}

	slices.SortStableFunc(plan.Changes, func(a, b Change) int {
		return cmp.Or(
			cmp.Compare(slices.Index(Actions, a.Action), slices.Index(Actions, b.Action)),
			cmp.Compare(a.Plugin, b.Plugin),
		)
	})
	return plan
}
