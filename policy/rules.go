// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"regexp"
)

// Severity of a rule violation.
type Severity string

const (
	// SeverityError fails validation.
	SeverityError Severity = "error"
	// SeverityWarning is reported without failing validation.
	SeverityWarning Severity = "warning"
)

var ruleIDPattern = regexp.MustCompile(`^R\d{3}$`)

// Rule is an assertion that must hold for every plugin.
type Rule struct {
	// ID is the finding code, R followed by three digits
	ID string `mapstructure:"id" yaml:"id"`
	// Expr is a CEL expression over plugin that must evaluate to true
	Expr string `mapstructure:"expr" yaml:"expr"`
	// Message is reported when Expr evaluates to false
	Message string `mapstructure:"message" yaml:"message"`
	// Severity defaults to error
	Severity Severity `mapstructure:"severity" yaml:"severity,omitempty"`
}

// Violation is a rule that did not hold for a plugin.
type Violation struct {
	Rule    Rule
	Plugin  string
	Message string
}

// RuleSet is a compiled list of rules.
type RuleSet struct {
	rules    []Rule
	programs []*Program
}

// CompileRules compiles rules with a default engine. Rules without an ID are
// numbered R001, R002, ... in order; all compilation failures are reported together.
func CompileRules(rules []Rule) (*RuleSet, error) {
	return CompileRulesWithEngine(NewEngine(), rules)
}

// CompileRulesWithEngine compiles rules with the given engine.
func CompileRulesWithEngine(engine *Engine, rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{
		rules:    make([]Rule, 0, len(rules)),
		programs: make([]*Program, 0, len(rules)),
	}
	seen := make(map[string]bool, len(rules))
	var errs []error
	for i, r := range rules {
		if r.ID == "" {
			r.ID = fmt.Sprintf("R%03d", i+1)
		}
		if !ruleIDPattern.MatchString(r.ID) {
			errs = append(errs, fmt.Errorf("rule %d: id %q must match R###", i+1, r.ID))
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("rule %s: duplicate id", r.ID))
			continue
		}
		seen[r.ID] = true
		switch r.Severity {
		case "":
			r.Severity = SeverityError
		case SeverityError, SeverityWarning:
		default:
			errs = append(errs, fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity))
			continue
		}
		if r.Message == "" {
			r.Message = fmt.Sprintf("policy %s failed: %s", r.ID, r.Expr)
		}
		prog, err := engine.Compile(r.Expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.ID, err))
			continue
		}
		rs.rules = append(rs.rules, r)
		rs.programs = append(rs.programs, prog)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rs, nil
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Evaluate runs every rule against p. A rule that fails to evaluate counts as
// a violation whose message carries the evaluation error.
func (rs *RuleSet) Evaluate(p Plugin) []Violation {
	if rs == nil {
		return nil
	}
	facts := p.Map()
	var out []Violation
	for i, prog := range rs.programs {
		ok, err := prog.Eval(facts)
		switch {
		case err != nil:
			out = append(out, Violation{Rule: rs.rules[i], Plugin: p.Name, Message: err.Error()})
		case !ok:
			out = append(out, Violation{Rule: rs.rules[i], Plugin: p.Name, Message: rs.rules[i].Message})
		}
	}
	return out
}
