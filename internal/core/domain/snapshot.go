package domain

import (
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const (
	StreamModeProvisioned = "PROVISIONED"
	StreamModeOnDemand    = "ON_DEMAND"
)

// Field is one named attribute of a FieldSet, in schema order.
type Field struct {
	Name  string
	Value any
}

// FieldSet is the kind-specific configuration carried by a ResourceSnapshot.
// The set of implementations is closed; each kind has exactly one.
type FieldSet interface {
	Kind() ResourceKind
	Pairs() []Field
	fieldSet()
}

type ResourceSnapshot struct {
	Kind       ResourceKind
	Identifier string
	Present    bool
	Fields     FieldSet
}

// Key identifies the resource across runs.
func (s ResourceSnapshot) Key() string {
	return SnapshotKey(s.Kind, s.Identifier)
}

func SnapshotKey(kind ResourceKind, identifier string) string {
	return fmt.Sprintf("%s/%s", kind, identifier)
}

type EndpointFields struct {
	EndpointConfigName string `json:"endpoint_config_name"`
	InstanceClass      string `json:"instance_class"`
	InstanceCount      int32  `json:"instance_count"`
}

func (EndpointFields) Kind() ResourceKind { return KindEndpoint }
func (EndpointFields) fieldSet()          {}

func (f EndpointFields) Pairs() []Field {
	return []Field{
		{Name: EndpointConfigNameKey, Value: f.EndpointConfigName},
		{Name: EndpointInstanceClass, Value: f.InstanceClass},
		{Name: EndpointInstanceCount, Value: f.InstanceCount},
	}
}

type StreamFields struct {
	ShardCount     int32  `json:"shard_count"`
	StreamMode     string `json:"stream_mode"`
	RetentionHours int32  `json:"retention_hours"`
}

func (StreamFields) Kind() ResourceKind { return KindStream }
func (StreamFields) fieldSet()          {}

func (f StreamFields) Pairs() []Field {
	return []Field{
		{Name: StreamShardCountKey, Value: f.ShardCount},
		{Name: StreamModeKey, Value: f.StreamMode},
		{Name: StreamRetentionHoursKey, Value: f.RetentionHours},
	}
}

// FunctionLimit is the reserved concurrency of one function. A nil limit means
// the function draws from the unreserved account pool.
type FunctionLimit struct {
	Function         string `json:"function" yaml:"function"`
	ConcurrencyLimit *int32 `json:"concurrency_limit" yaml:"concurrency_limit"`
}

type FunctionGroupFields struct {
	Functions []FunctionLimit `json:"functions"`
}

func (FunctionGroupFields) Kind() ResourceKind { return KindFunctionGroup }
func (FunctionGroupFields) fieldSet()          {}

func (f FunctionGroupFields) Pairs() []Field {
	return []Field{{Name: FunctionGroupFunctionsKey, Value: f.Functions}}
}

// Limit returns the entry for name, if any.
func (f FunctionGroupFields) Limit(name string) (FunctionLimit, bool) {
	for _, fl := range f.Functions {
		if fl.Function == name {
			return fl, true
		}
	}
	return FunctionLimit{}, false
}

type AlarmAction struct {
	Name           string `json:"name" yaml:"name"`
	ActionsEnabled bool   `json:"actions_enabled" yaml:"actions_enabled"`
}

type AlarmGroupFields struct {
	AlarmsEnabled bool          `json:"alarms_enabled"`
	Alarms        []AlarmAction `json:"alarms"`
}

func (AlarmGroupFields) Kind() ResourceKind { return KindAlarmGroup }
func (AlarmGroupFields) fieldSet()          {}

func (f AlarmGroupFields) Pairs() []Field {
	return []Field{
		{Name: AlarmGroupEnabledKey, Value: f.AlarmsEnabled},
		{Name: AlarmGroupAlarmsKey, Value: f.Alarms},
	}
}

// EnabledCount returns the number of alarms whose actions are enabled.
func (f AlarmGroupFields) EnabledCount() int {
	n := 0
	for _, a := range f.Alarms {
		if a.ActionsEnabled {
			n++
		}
	}
	return n
}

// Desired reports the intended actions flag for an alarm. Alarms not listed
// follow the group flag.
func (f AlarmGroupFields) Desired(name string) bool {
	for _, a := range f.Alarms {
		if a.Name == name {
			return a.ActionsEnabled
		}
	}
	return f.AlarmsEnabled
}

// OpaqueFields holds the persisted fields of a kind this build cannot drive.
// It is kept so that the snapshot survives a load/save cycle and can be
// reported as driver-less instead of silently dropped.
type OpaqueFields struct {
	OriginalKind ResourceKind
	Values       map[string]any
}

func (f OpaqueFields) Kind() ResourceKind { return f.OriginalKind }
func (OpaqueFields) fieldSet()            {}

func (f OpaqueFields) Pairs() []Field {
	names := make([]string, 0, len(f.Values))
	for k := range f.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Field{Name: n, Value: f.Values[n]})
	}
	return out
}

// FieldsEqual reports whether two field sets describe the same configuration.
// Nil and empty slices compare equal.
func FieldsEqual(a, b FieldSet) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// FieldsDiff returns a human readable diff, empty when equal.
func FieldsDiff(a, b FieldSet) string {
	return cmp.Diff(a, b, cmpopts.EquateEmpty())
}
