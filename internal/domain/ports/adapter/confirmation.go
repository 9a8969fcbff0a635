package adapter

import (
	"context"

	"payment-reconciliation-engine/internal/domain/model"
)

type ConfirmDecision string

const (
	ConfirmApproved         ConfirmDecision = "approved"          // user interacted; NOT proof of settlement
	ConfirmUserCancelled    ConfirmDecision = "user_cancelled"    // user dismissed the prompt
	ConfirmTechnicalFailure ConfirmDecision = "technical_failure" // host or gateway prompt failed
)

// ConfirmResult is the host's answer to one confirmation prompt.
type ConfirmResult struct {
	Decision ConfirmDecision
	Reason   string // populated for technical failures
}

// ConfirmationPort is the hex port for the host-provided confirmation step.
// PresentConfirmation blocks until the user responds or the host times the
// prompt out; it is the only call in the engine that may take user-scale
// wall-clock time.
type ConfirmationPort interface {
	PresentConfirmation(ctx context.Context, params *model.GatewayParams) (ConfirmResult, error)
}
