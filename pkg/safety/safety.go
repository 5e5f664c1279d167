// Package safety screens commands against a deny-list of operations that can take a device down or
// destroy its configuration.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// OverrideFlag is the command line switch that disables the filter.
const OverrideFlag = "-X"

type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultRules block reload, write erase and delete. Matching is case-insensitive because IOS accepts
// commands in any case.
var DefaultRules = []Rule{
	{Name: "reload", Pattern: regexp.MustCompile(`(?i)^rel`)},
	{Name: "write erase", Pattern: regexp.MustCompile(`(?i)^wr.* e`)},
	{Name: "delete", Pattern: regexp.MustCompile(`(?i)^del`)},
}

type Verdict struct {
	Command string
	Blocked bool
	Rule    string
	Reason  string
}

func (v Verdict) String() string {
	if !v.Blocked {
		return fmt.Sprintf("%q is safe", v.Command)
	}
	return v.Reason
}

type Filter struct {
	rules    []Rule
	disabled bool
}

func NewFilter(rules ...Rule) *Filter {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Filter{rules: rules}
}

// Disabled returns a filter that lets every command through.
func Disabled() *Filter {
	return &Filter{disabled: true}
}

func (f *Filter) Enabled() bool {
	return f != nil && !f.disabled
}

// Check evaluates every rule independently; the reported rule is the first one that matched.
func (f *Filter) Check(command string) Verdict {
	v := Verdict{Command: command}
	if !f.Enabled() {
		return v
	}
	trimmed := strings.TrimLeft(command, " \t")
	var tripped []string
	for _, r := range f.rules {
		if r.Pattern.MatchString(trimmed) {
			tripped = append(tripped, r.Name)
		}
	}
	if len(tripped) == 0 {
		return v
	}
	v.Blocked = true
	v.Rule = tripped[0]
	v.Reason = fmt.Sprintf("%q tripped the do no harm sensor => %s", command, strings.Join(tripped, ", "))
	return v
}

// Screen returns the verdicts of the blocked commands, in input order.
func (f *Filter) Screen(commands []string) []Verdict {
	var blocked []Verdict
	for _, c := range commands {
		if v := f.Check(c); v.Blocked {
			blocked = append(blocked, v)
		}
	}
	return blocked
}
