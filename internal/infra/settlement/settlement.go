// Package settlement computes how an evaluation vote settles a task.
// It is pure decision logic: given the task's quorum fields and a vote,
// it returns who gets paid and the resulting status. Moving the funds and
// writing the status belong to the ledger, in one indivisible step.
package settlement

import "github.com/judgepay-labs/judgepay/internal/domain"

// Recipient identifies where escrowed funds go on settlement.
type Recipient string

const (
	RecipientNone      Recipient = ""
	RecipientWorker    Recipient = "worker"
	RecipientRequester Recipient = "requester"
)

// Mode is the evaluation mode, dispatched by value rather than by type:
// a single decisive evaluator, or an approval quorum.
type Mode struct {
	Quorum   bool
	Required int
}

// ModeFor derives the mode from a task's requiredApprovals field.
// 0 or 1 means a single evaluator is decisive.
func ModeFor(requiredApprovals int) Mode {
	if requiredApprovals > 1 {
		return Mode{Quorum: true, Required: requiredApprovals}
	}
	return Mode{}
}

// Decision is the outcome of applying one vote.
type Decision struct {
	// Settled is true when the vote reaches a terminal status.
	Settled bool
	// NewStatus is the status after the vote (TaskSubmitted if not settled).
	NewStatus domain.TaskStatus
	// Recipient receives the escrowed amount. RecipientNone when funds
	// stay in custody (pending quorum, or frozen in dispute).
	Recipient Recipient
	// Approvals is the approval count after the vote.
	Approvals int
}

// Decide applies a single vote.
//
// Single mode: one vote is decisive — approve pays the worker, reject
// refunds the requester.
//
// Quorum mode: approvals accumulate until Required is reached, which pays
// the worker. A reject before quorum freezes the task as Disputed; no
// majority rule is invented, funds stay in custody pending manual
// resolution.
func Decide(mode Mode, currentApprovals int, approve bool) Decision {
	if !mode.Quorum {
		if approve {
			return Decision{
				Settled:   true,
				NewStatus: domain.TaskCompleted,
				Recipient: RecipientWorker,
				Approvals: currentApprovals + 1,
			}
		}
		return Decision{
			Settled:   true,
			NewStatus: domain.TaskRefunded,
			Recipient: RecipientRequester,
			Approvals: currentApprovals,
		}
	}

	if !approve {
		return Decision{
			Settled:   true,
			NewStatus: domain.TaskDisputed,
			Recipient: RecipientNone,
			Approvals: currentApprovals,
		}
	}

	approvals := currentApprovals + 1
	if approvals >= mode.Required {
		return Decision{
			Settled:   true,
			NewStatus: domain.TaskCompleted,
			Recipient: RecipientWorker,
			Approvals: approvals,
		}
	}
	return Decision{
		Settled:   false,
		NewStatus: domain.TaskSubmitted,
		Approvals: approvals,
	}
}
