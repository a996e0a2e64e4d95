// Package codec converts a LifecycleState to and from its persisted JSON
// document. The layout is shared by every store so that a document written
// locally can be mirrored or restored byte for byte.
package codec

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type document struct {
	SchemaVersion int           `json:"schema_version"`
	Project       string        `json:"project"`
	Timestamp     time.Time     `json:"timestamp"`
	RunID         string        `json:"run_id,omitempty"`
	Snapshots     []snapshotDoc `json:"snapshots"`
}

type snapshotDoc struct {
	Kind       string              `json:"kind"`
	Identifier string              `json:"identifier"`
	Present    bool                `json:"present"`
	Fields     jsoniter.RawMessage `json:"fields"`
}

// Encode renders state as an indented JSON document.
func Encode(state domain.LifecycleState) ([]byte, error) {
	doc := document{
		SchemaVersion: state.SchemaVersion,
		Project:       state.Project,
		Timestamp:     state.Timestamp.UTC(),
		RunID:         state.RunID,
		Snapshots:     make([]snapshotDoc, 0, len(state.Snapshots)),
	}
	for _, snap := range state.Snapshots {
		fields, err := encodeFields(snap.Fields)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeStateWriteError,
				fmt.Sprintf("encoding fields of %s", snap.Key()))
		}
		doc.Snapshots = append(doc.Snapshots, snapshotDoc{
			Kind:       string(snap.Kind),
			Identifier: snap.Identifier,
			Present:    snap.Present,
			Fields:     fields,
		})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStateWriteError, "encoding lifecycle state")
	}
	return append(out, '\n'), nil
}

func encodeFields(fields domain.FieldSet) (jsoniter.RawMessage, error) {
	switch f := fields.(type) {
	case nil:
		return jsoniter.RawMessage("null"), nil
	case domain.OpaqueFields:
		if f.Values == nil {
			return jsoniter.RawMessage("{}"), nil
		}
		return json.Marshal(f.Values)
	default:
		return json.Marshal(f)
	}
}

// Decode parses a persisted document. Snapshots of kinds this build does not
// know are kept as OpaqueFields. Any parse failure is STATE_CORRUPT.
func Decode(data []byte) (domain.LifecycleState, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.LifecycleState{}, errors.WrapUserFacing(err, errors.CodeStateCorrupt,
			"the lifecycle state file is not valid JSON",
			"Restore the file from the S3 mirror or a backup, or run 'stop' again to capture a new restore point.")
	}

	state := domain.LifecycleState{
		SchemaVersion: doc.SchemaVersion,
		Project:       doc.Project,
		Timestamp:     doc.Timestamp,
		RunID:         doc.RunID,
		Snapshots:     make([]domain.ResourceSnapshot, 0, len(doc.Snapshots)),
	}
	for i, sd := range doc.Snapshots {
		kind := domain.ResourceKind(sd.Kind)
		fields, err := decodeFields(kind, sd.Fields)
		if err != nil {
			return domain.LifecycleState{}, errors.WrapWithCode(err, errors.CodeStateCorrupt,
				fmt.Sprintf("snapshot %d (%s/%s) has malformed fields", i, sd.Kind, sd.Identifier))
		}
		state.Snapshots = append(state.Snapshots, domain.ResourceSnapshot{
			Kind:       kind,
			Identifier: sd.Identifier,
			Present:    sd.Present,
			Fields:     fields,
		})
	}
	return state, nil
}

func decodeFields(kind domain.ResourceKind, raw jsoniter.RawMessage) (domain.FieldSet, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	switch kind {
	case domain.KindEndpoint:
		var f domain.EndpointFields
		err := unmarshalUnlessEmpty(raw, empty, &f)
		return f, err
	case domain.KindStream:
		var f domain.StreamFields
		err := unmarshalUnlessEmpty(raw, empty, &f)
		return f, err
	case domain.KindFunctionGroup:
		var f domain.FunctionGroupFields
		err := unmarshalUnlessEmpty(raw, empty, &f)
		return f, err
	case domain.KindAlarmGroup:
		var f domain.AlarmGroupFields
		err := unmarshalUnlessEmpty(raw, empty, &f)
		return f, err
	default:
		values := map[string]any{}
		if err := unmarshalUnlessEmpty(raw, empty, &values); err != nil {
			return nil, err
		}
		return domain.OpaqueFields{OriginalKind: kind, Values: values}, nil
	}
}

func unmarshalUnlessEmpty(raw []byte, empty bool, v any) error {
	if empty {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// Validate checks a decoded state against the invariants every store
// enforces before the state is used to restore anything.
func Validate(state domain.LifecycleState, project string) error {
	if state.SchemaVersion < 1 || state.SchemaVersion > domain.CurrentSchemaVersion {
		return errors.NewUserFacing(errors.CodeStateCorrupt,
			fmt.Sprintf("unsupported state schema version %d (this build reads 1 to %d)", state.SchemaVersion, domain.CurrentSchemaVersion),
			"Upgrade cost-parker to a release that understands this state file.")
	}
	if project != "" && state.Project != project {
		return errors.NewUserFacing(errors.CodeStateCorrupt,
			fmt.Sprintf("state belongs to project '%s', expected '%s'", state.Project, project),
			"Check the 'project' setting or the state directory.")
	}

	seen := make(map[string]struct{}, len(state.Snapshots))
	for i, snap := range state.Snapshots {
		if snap.Identifier == "" {
			return errors.Newf(errors.CodeStateCorrupt, "snapshot %d (%s) has an empty identifier", i, snap.Kind)
		}
		if snap.Kind == "" {
			return errors.Newf(errors.CodeStateCorrupt, "snapshot %d (%s) has an empty kind", i, snap.Identifier)
		}
		key := snap.Key()
		if _, dup := seen[key]; dup {
			return errors.Newf(errors.CodeStateCorrupt, "duplicate snapshot for %s", key)
		}
		seen[key] = struct{}{}
		if snap.Fields != nil && snap.Fields.Kind() != snap.Kind {
			return errors.New(errors.CodeStateCorrupt,
				fmt.Sprintf("snapshot %s carries %s fields", key, snap.Fields.Kind()))
		}
	}
	return nil
}
