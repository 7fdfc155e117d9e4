// Package codecheck statically screens submitted code against a problem's
// header and function policies. The check is textual, not a compile step:
// it exists to reject obviously disallowed constructs before any sandbox
// time is spent.
package codecheck

import (
	"fmt"
	"regexp"
	"strings"

	"courseoj/internal/catalog/model"
)

// Violation names one disallowed construct found in the code.
type Violation struct {
	Kind   string `json:"kind"` // "header" or "function"
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %q: %s", v.Kind, v.Name, v.Reason)
}

var (
	includeRe = regexp.MustCompile(`(?m)^\s*#\s*include\s*[<"]([^>"]+)[>"]`)
	callRe    = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	defRe     = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\([^;{)]*\)\s*\{`)
)

// keywords are control-flow and operator tokens that look like calls to
// the call regex but are not functions.
var keywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true,
	"return": true, "sizeof": true, "catch": true, "main": true,
}

// Validate checks code against the header and function policies and
// returns every violation found. An empty result means the code passes.
func Validate(code string, headerMode model.ListMode, headers []string, functionMode model.ListMode, functions []string) []Violation {
	var violations []Violation
	violations = append(violations, checkHeaders(code, headerMode, headers)...)
	violations = append(violations, checkFunctions(code, functionMode, functions)...)
	return violations
}

func checkHeaders(code string, mode model.ListMode, listed []string) []Violation {
	used := usedHeaders(code)
	listedSet := toSet(listed)

	var violations []Violation
	switch mode {
	case model.ModeAllowed:
		for _, header := range used {
			if !listedSet[header] {
				violations = append(violations, Violation{
					Kind:   "header",
					Name:   header,
					Reason: "header is not in the allowed list",
				})
			}
		}
	case model.ModeDisallowed:
		for _, header := range used {
			if listedSet[header] {
				violations = append(violations, Violation{
					Kind:   "header",
					Name:   header,
					Reason: "header is disallowed",
				})
			}
		}
	}
	return violations
}

func checkFunctions(code string, mode model.ListMode, listed []string) []Violation {
	used := calledFunctions(code)
	listedSet := toSet(listed)

	var violations []Violation
	switch mode {
	case model.ModeAllowed:
		for _, fn := range used {
			if !listedSet[fn] {
				violations = append(violations, Violation{
					Kind:   "function",
					Name:   fn,
					Reason: "function is not in the allowed list",
				})
			}
		}
	case model.ModeDisallowed:
		for _, fn := range used {
			if listedSet[fn] {
				violations = append(violations, Violation{
					Kind:   "function",
					Name:   fn,
					Reason: "function is disallowed",
				})
			}
		}
	}
	return violations
}

// usedHeaders extracts include targets in order of first appearance.
func usedHeaders(code string) []string {
	var headers []string
	seen := map[string]bool{}
	for _, match := range includeRe.FindAllStringSubmatch(code, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		headers = append(headers, name)
	}
	return headers
}

// calledFunctions extracts called identifiers, skipping keywords and
// functions the code defines itself.
func calledFunctions(code string) []string {
	defined := map[string]bool{}
	for _, match := range defRe.FindAllStringSubmatch(code, -1) {
		defined[match[1]] = true
	}

	var calls []string
	seen := map[string]bool{}
	for _, match := range callRe.FindAllStringSubmatch(code, -1) {
		name := match[1]
		if keywords[name] || defined[name] || seen[name] {
			continue
		}
		seen[name] = true
		calls = append(calls, name)
	}
	return calls
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = true
	}
	return set
}
