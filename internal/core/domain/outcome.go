package domain

// Outcome is the terminal state of one ingestion attempt.
type Outcome string

const (
	OutcomePersisted        Outcome = "persisted"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeProductNotFound  Outcome = "product_not_found"
	OutcomeLockFailed       Outcome = "lock_failed"
	OutcomeFaulted          Outcome = "faulted"
)

// Retriable reports whether redelivering the same event could change the
// outcome. Lock contention and infrastructure faults are transient; the
// other outcomes are final for this event instance.
func (o Outcome) Retriable() bool {
	return o == OutcomeLockFailed || o == OutcomeFaulted
}

// Result is what the orchestrator reports back to the bus adapter.
// Err is set only for OutcomeFaulted.
type Result struct {
	Outcome Outcome
	Detail  string
	Err     error
}

// Notification is the payload sent to the notification sink on every
// terminal state.
type Notification struct {
	Outcome   Outcome `json:"outcome"`
	ProductID int64   `json:"productId"`
	Detail    string  `json:"detail,omitempty"`
}
