package handler

import (
	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/taxonomy"
)

// RecoveryAction is a suggested remediation attached to a fault for the
// presentation layer. Actions are built fresh per fault and never persisted.
type RecoveryAction struct {
	Label string
	Kind  string
	Run   func()
}

// Recovery action kinds.
const (
	ActionRetry    = "retry"
	ActionRefresh  = "refresh"
	ActionRedirect = "redirect"
	ActionCustom   = "custom"
)

// defaultRecoveryActions derives the standard remediations for a fault.
// The Run thunks are placeholders: re-invoking the operation, reloading the
// view and navigating to sign-in are all owned by the presentation layer.
func defaultRecoveryActions(f *fault.Fault) []RecoveryAction {
	var actions []RecoveryAction

	if f.Retryable {
		actions = append(actions, RecoveryAction{
			Label: "Try again",
			Kind:  ActionRetry,
			Run:   func() {},
		})
	}

	// SYSTEM is included so unclassified failures still carry one remediation.
	switch f.Category {
	case taxonomy.CategoryClient, taxonomy.CategoryNetwork, taxonomy.CategorySystem:
		actions = append(actions, RecoveryAction{
			Label: "Refresh the page",
			Kind:  ActionRefresh,
			Run:   func() {},
		})
	case taxonomy.CategoryAuth:
		actions = append(actions, RecoveryAction{
			Label: "Sign in",
			Kind:  ActionRedirect,
			Run:   func() {},
		})
	}

	return actions
}
