package reporting

import (
	"time"

	"github.com/olusolaa/cost-parker/internal/core/domain"
)

type RunStatus string

const (
	RunSucceeded RunStatus = "success"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// HistoryEntry is one line of a project's run history: the run's report plus
// who ran it and how it ended.
type HistoryEntry struct {
	Document `yaml:",inline"`

	RecordedAt string       `json:"recorded_at" yaml:"recorded_at"`
	User       string       `json:"user,omitempty" yaml:"user,omitempty"`
	Hostname   string       `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Status     RunStatus    `json:"status" yaml:"status"`
	Error      *ResultError `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewHistoryEntry records a finished run. report may be nil when the run
// failed before any resource was processed.
func NewHistoryEntry(cmd domain.Command, dryRun bool, report *domain.OperationReport, runErr error, recordedAt time.Time) HistoryEntry {
	if report == nil {
		report = &domain.OperationReport{Command: cmd, DryRun: dryRun}
	}
	entry := HistoryEntry{
		RecordedAt: formatTime(recordedAt),
		Status:     RunSucceeded,
		Document:   NewDocument(report),
	}
	switch {
	case runErr != nil:
		entry.Status = RunFailed
		entry.Error = newResultError(runErr)
	case report.PartialFailure:
		entry.Status = RunPartial
	}
	return entry
}

type Backup struct {
	Stamp        string `json:"stamp" yaml:"stamp"`
	Key          string `json:"key" yaml:"key"`
	SizeBytes    int64  `json:"size_bytes" yaml:"size_bytes"`
	LastModified string `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
}

func NewBackups(backups []domain.Backup) []Backup {
	out := make([]Backup, 0, len(backups))
	for _, b := range backups {
		out = append(out, Backup{
			Stamp:        b.Stamp,
			Key:          b.Key,
			SizeBytes:    b.Size,
			LastModified: formatTime(b.LastModified),
		})
	}
	return out
}
