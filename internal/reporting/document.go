// Package reporting holds the serializable view of an OperationReport shared
// by the structured reporters.
package reporting

import (
	"time"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/cost"
	"github.com/olusolaa/cost-parker/internal/errors"
)

type Document struct {
	Command         domain.Command `json:"command" yaml:"command"`
	DryRun          bool           `json:"dry_run" yaml:"dry_run"`
	RunID           string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Project         string         `json:"project,omitempty" yaml:"project,omitempty"`
	AccountID       string         `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	StartedAt       string         `json:"started_at" yaml:"started_at"`
	FinishedAt      string         `json:"finished_at" yaml:"finished_at"`
	DurationSeconds float64        `json:"duration_seconds" yaml:"duration_seconds"`
	Summary         Summary        `json:"summary" yaml:"summary"`
	Results         []Result       `json:"results" yaml:"results"`
}

type Summary struct {
	Resources             int     `json:"resources" yaml:"resources"`
	Changed               int     `json:"changed" yaml:"changed"`
	Unchanged             int     `json:"unchanged" yaml:"unchanged"`
	Failed                int     `json:"failed" yaml:"failed"`
	TotalHourlyCost       float64 `json:"total_hourly_cost_usd" yaml:"total_hourly_cost_usd"`
	TotalCostDeltaPerHour float64 `json:"total_cost_delta_usd_per_hour" yaml:"total_cost_delta_usd_per_hour"`
	Savings               Savings `json:"savings" yaml:"savings"`
	PartialFailure        bool    `json:"partial_failure" yaml:"partial_failure"`
	ExitCode              int     `json:"exit_code" yaml:"exit_code"`
}

// Savings is the cost the run removed, projected over billing periods. A run
// that adds cost, such as start, has negative savings.
type Savings struct {
	Hourly  float64 `json:"hourly_usd" yaml:"hourly_usd"`
	Daily   float64 `json:"daily_usd" yaml:"daily_usd"`
	Monthly float64 `json:"monthly_usd" yaml:"monthly_usd"`
	Annual  float64 `json:"annual_usd" yaml:"annual_usd"`
	Percent float64 `json:"percent" yaml:"percent"`
}

type Result struct {
	Kind               domain.ResourceKind `json:"kind" yaml:"kind"`
	Identifier         string              `json:"identifier" yaml:"identifier"`
	Action             domain.Action       `json:"action" yaml:"action"`
	Phase              domain.DriverPhase  `json:"phase" yaml:"phase"`
	LongRunning        bool                `json:"long_running,omitempty" yaml:"long_running,omitempty"`
	Previous           *Snapshot           `json:"previous,omitempty" yaml:"previous,omitempty"`
	New                *Snapshot           `json:"new,omitempty" yaml:"new,omitempty"`
	PreviousHourlyCost float64             `json:"previous_hourly_cost_usd" yaml:"previous_hourly_cost_usd"`
	NewHourlyCost      float64             `json:"new_hourly_cost_usd" yaml:"new_hourly_cost_usd"`
	CostDeltaPerHour   float64             `json:"cost_delta_usd_per_hour" yaml:"cost_delta_usd_per_hour"`
	DurationMillis     int64               `json:"duration_ms" yaml:"duration_ms"`
	Error              *ResultError        `json:"error,omitempty" yaml:"error,omitempty"`
	Warnings           []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type Snapshot struct {
	Present bool           `json:"present" yaml:"present"`
	Fields  map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type ResultError struct {
	Code       errors.Code `json:"code" yaml:"code"`
	Message    string      `json:"message" yaml:"message"`
	Suggestion string      `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// NewDocument converts report. Results keep report order.
func NewDocument(report *domain.OperationReport) Document {
	doc := Document{
		Command:         report.Command,
		DryRun:          report.DryRun,
		RunID:           report.RunID,
		Project:         report.Project,
		AccountID:       report.AccountID,
		StartedAt:       formatTime(report.StartedAt),
		FinishedAt:      formatTime(report.FinishedAt),
		DurationSeconds: report.Elapsed().Seconds(),
		Summary:         Summarize(report),
		Results:         make([]Result, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		doc.Results = append(doc.Results, newResult(res))
	}
	return doc
}

// Summarize counts results by outcome.
func Summarize(report *domain.OperationReport) Summary {
	s := Summary{
		Resources:             len(report.Results),
		TotalHourlyCost:       report.TotalHourlyCost,
		TotalCostDeltaPerHour: report.TotalCostDeltaPerHour,
		Savings:               newSavings(report.TotalHourlyCost-report.TotalCostDeltaPerHour, report.TotalHourlyCost),
		PartialFailure:        report.PartialFailure,
		ExitCode:              report.ExitCode(),
	}
	for _, res := range report.Results {
		switch {
		case res.Failed():
			s.Failed++
		case res.Action == domain.ActionNoOp:
			s.Unchanged++
		default:
			s.Changed++
		}
	}
	return s
}

func newSavings(before, after float64) Savings {
	p := cost.Project(before - after)
	return Savings{
		Hourly:  p.Hourly,
		Daily:   p.Daily,
		Monthly: p.Monthly,
		Annual:  p.Annual,
		Percent: cost.SavingsPercent(before, after),
	}
}

func newResult(res domain.OperationResult) Result {
	out := Result{
		Kind:               res.Kind,
		Identifier:         res.Identifier,
		Action:             res.Action,
		Phase:              res.Phase,
		LongRunning:        res.LongRunning,
		Previous:           newSnapshot(res.Previous),
		New:                newSnapshot(res.New),
		PreviousHourlyCost: res.PreviousHourlyCost,
		NewHourlyCost:      res.NewHourlyCost,
		CostDeltaPerHour:   res.CostDeltaPerHour,
		DurationMillis:     res.Duration.Milliseconds(),
		Warnings:           res.Warnings,
	}
	if res.Err != nil {
		out.Error = newResultError(res.Err)
	}
	return out
}

func newResultError(err error) *ResultError {
	out := &ResultError{Code: errors.GetCode(err), Message: err.Error()}
	if msg, suggestion, ok := errors.GetUserFacingMessage(err); ok {
		out.Message = msg
		out.Suggestion = suggestion
	}
	return out
}

func newSnapshot(s *domain.ResourceSnapshot) *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Present: s.Present}
	if s.Fields == nil {
		return out
	}
	out.Fields = make(map[string]any)
	for _, f := range s.Fields.Pairs() {
		out.Fields[f.Name] = f.Value
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
