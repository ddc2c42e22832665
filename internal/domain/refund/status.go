package refund

import "github.com/erp/refunds/internal/domain/shared"

// Status represents the status of a refund
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is a known refund status
func (s Status) IsValid() bool {
	return transitions.Known(s)
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return transitions.IsTerminal(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	return transitions.CanTransition(s, target)
}

var transitions = shared.NewStateMachine("refund", map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
})

// Transitions exposes the refund transition table
func Transitions() *shared.StateMachine[Status] {
	return transitions
}

// Type distinguishes full from partial refunds
type Type string

const (
	TypeFull    Type = "full"
	TypePartial Type = "partial"
)

// IsValid checks if the refund type is known
func (t Type) IsValid() bool {
	return t == TypeFull || t == TypePartial
}

// Method is how the customer is paid back
type Method string

const (
	MethodCash     Method = "cash"
	MethodVoucher  Method = "voucher"
	MethodOriginal Method = "original"
)

// IsValid checks if the refund method is known
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodVoucher, MethodOriginal:
		return true
	}
	return false
}

// ReversesLedger reports whether completing a refund with this method posts a ledger reversal
func (m Method) ReversesLedger() bool {
	return m == MethodCash || m == MethodOriginal
}

// Condition is the state a returned item came back in
type Condition string

const (
	ConditionNew       Condition = "novo"
	ConditionUsed      Condition = "usado"
	ConditionDefective Condition = "defeituoso"
)

// IsValid checks if the condition is known
func (c Condition) IsValid() bool {
	switch c {
	case ConditionNew, ConditionUsed, ConditionDefective:
		return true
	}
	return false
}
