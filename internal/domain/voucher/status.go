package voucher

import "github.com/erp/refunds/internal/domain/shared"

// Status represents the status of a voucher
type Status string

const (
	StatusActive    Status = "active"
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is a known voucher status
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

var transitions = shared.NewStateMachine("voucher", map[Status][]Status{
	StatusActive:    {StatusUsed, StatusExpired, StatusCancelled},
	StatusUsed:      {},
	StatusExpired:   {},
	StatusCancelled: {},
})

// Transitions exposes the voucher transition table
func Transitions() *shared.StateMachine[Status] {
	return transitions
}
