// Package policy decides when an action needs human approval before it runs.
package policy

import (
	"strings"
	"unicode"
)

// Decision is the outcome of evaluating one proposed action.
type Decision struct {
	RequiresApproval bool
	Reason           string
}

// Intents that always require approval regardless of the resolved method.
var approvalIntents = map[string]bool{
	"maintenance.create":        true,
	"maintenance.update":        true,
	"capacity.parameter_update": true,
	"autonomous.setting":        true,
}

// Verb tokens that mark a method as modifying. Matched against the words of
// the method name, not raw substrings, so "getScheduledMaintenance" does not
// trip on "schedule".
var modifyingTokens = map[string]bool{
	"create": true, "update": true, "delete": true, "remove": true,
	"add": true, "set": true, "schedule": true, "allocate": true,
	"close": true, "open": true, "modify": true, "edit": true,
}

// DecideAction reports whether calling method for intent needs approval.
// overrides maps method names to an explicit answer and wins over both the
// intent set and the token scan.
func DecideAction(intent, method string, overrides map[string]bool) Decision {
	if overrides != nil {
		if required, ok := overrides[method]; ok {
			return Decision{RequiresApproval: required, Reason: "explicit override"}
		}
	}
	if approvalIntents[intent] {
		return Decision{RequiresApproval: true, Reason: "intent requires approval"}
	}
	for _, word := range splitMethodName(method) {
		if modifyingTokens[word] {
			return Decision{RequiresApproval: true, Reason: "modifying method: " + word}
		}
	}
	return Decision{}
}

// IsApprovalIntent reports whether the intent is in the always-approve set.
func IsApprovalIntent(intent string) bool {
	return approvalIntents[intent]
}

// splitMethodName breaks a camelCase or snake_case identifier into lowercase
// words.
func splitMethodName(name string) []string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.':
			flush()
		case unicode.IsUpper(r):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}
