package domain

import "time"

// CurrentSchemaVersion is the newest state document layout this build writes.
const CurrentSchemaVersion = 1

// LifecycleState is the configuration captured right before the most recent
// stop. It is replaced whole on every successful stop.
type LifecycleState struct {
	SchemaVersion int
	Project       string
	Timestamp     time.Time
	RunID         string
	Snapshots     []ResourceSnapshot
}

// Lookup returns the snapshot stored for kind and identifier.
func (s *LifecycleState) Lookup(kind ResourceKind, identifier string) (ResourceSnapshot, bool) {
	if s == nil {
		return ResourceSnapshot{}, false
	}
	for _, snap := range s.Snapshots {
		if snap.Kind == kind && snap.Identifier == identifier {
			return snap, true
		}
	}
	return ResourceSnapshot{}, false
}

// Backup is one timestamped copy of a saved LifecycleState kept off-host.
type Backup struct {
	// Stamp identifies the backup, e.g. 20260301T183000Z.
	Stamp        string
	Key          string
	Size         int64
	LastModified time.Time
}
