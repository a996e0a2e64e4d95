package domain

import (
	"time"
)

type Command string

const (
	CommandStatus Command = "status"
	CommandStop   Command = "stop"
	CommandStart  Command = "start"
)

func (c Command) String() string {
	return string(c)
}

// Mutating reports whether the command may issue mutating remote calls.
func (c Command) Mutating() bool {
	return c == CommandStop || c == CommandStart
}

type Action string

const (
	ActionNoOp         Action = "NO_OP"
	ActionScaled       Action = "SCALED"
	ActionDeleted      Action = "DELETED"
	ActionRecreated    Action = "RECREATED"
	ActionLimitApplied Action = "LIMIT_APPLIED"
	ActionLimitCleared Action = "LIMIT_CLEARED"
)

func (a Action) String() string {
	return string(a)
}

// DriverPhase tracks one resource through a single run:
// Unknown -> Described -> Applying -> Applied | Failed.
type DriverPhase string

const (
	PhaseUnknown   DriverPhase = "UNKNOWN"
	PhaseDescribed DriverPhase = "DESCRIBED"
	PhaseApplying  DriverPhase = "APPLYING"
	PhaseApplied   DriverPhase = "APPLIED"
	PhaseFailed    DriverPhase = "FAILED"
)

type OperationResult struct {
	Kind       ResourceKind
	Identifier string
	Action     Action

	Previous *ResourceSnapshot
	New      *ResourceSnapshot

	PreviousHourlyCost float64
	NewHourlyCost      float64
	CostDeltaPerHour   float64

	Err      error
	Warnings []string

	// LongRunning marks an action that was accepted remotely but completes
	// asynchronously, such as an endpoint recreation.
	LongRunning bool
	Phase       DriverPhase
	Duration    time.Duration
}

func (r OperationResult) Failed() bool {
	return r.Err != nil
}

func (r *OperationResult) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Exit codes for the CLI shell.
const (
	ExitOK             = 0
	ExitFatal          = 1
	ExitPartialFailure = 2
)

type OperationReport struct {
	Command   Command
	DryRun    bool
	RunID     string
	Project   string
	AccountID string

	Results []OperationResult

	TotalCostDeltaPerHour float64
	// TotalHourlyCost is the estimated cost after the run, or the current cost
	// for status.
	TotalHourlyCost float64

	StartedAt      time.Time
	FinishedAt     time.Time
	PartialFailure bool
}

// Failures returns every failed result in report order.
func (r *OperationReport) Failures() []OperationResult {
	var out []OperationResult
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

func (r *OperationReport) ExitCode() int {
	if r.PartialFailure {
		return ExitPartialFailure
	}
	return ExitOK
}

// Summarize recomputes the aggregate fields from Results.
func (r *OperationReport) Summarize() {
	r.TotalCostDeltaPerHour = 0
	r.TotalHourlyCost = 0
	r.PartialFailure = false
	for _, res := range r.Results {
		r.TotalCostDeltaPerHour += res.CostDeltaPerHour
		r.TotalHourlyCost += res.NewHourlyCost
		if res.Failed() {
			r.PartialFailure = true
		}
	}
}

func (r *OperationReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
