package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/cost-parker/internal/adapters/state/filestore"
	"github.com/olusolaa/cost-parker/internal/config"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/core/ports/mocks"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
	"github.com/olusolaa/cost-parker/internal/metrics"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

type memStream struct {
	mu     sync.Mutex
	id     string
	shards int32
}

func (m *memStream) Kind() domain.ResourceKind { return domain.KindStream }
func (m *memStream) Identifier() string        { return m.id }

func (m *memStream) snapshot() domain.ResourceSnapshot {
	return domain.ResourceSnapshot{Kind: domain.KindStream, Identifier: m.id, Present: true,
		Fields: domain.StreamFields{ShardCount: m.shards, StreamMode: domain.StreamModeProvisioned, RetentionHours: 24}}
}

func (m *memStream) Describe(context.Context) (domain.ResourceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(), nil
}

func (m *memStream) MinimalCostTarget(current domain.ResourceSnapshot) domain.ResourceSnapshot {
	f := current.Fields.(domain.StreamFields)
	f.ShardCount = 1
	current.Fields = f
	return current
}

func (m *memStream) Apply(_ context.Context, target domain.ResourceSnapshot) (domain.OperationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.snapshot()
	res := domain.OperationResult{Kind: domain.KindStream, Identifier: m.id, Previous: &prev,
		Action: domain.PlanAction(prev, target), Phase: domain.PhaseApplied}
	if res.Action != domain.ActionNoOp {
		m.shards = target.Fields.(domain.StreamFields).ShardCount
	}
	next := m.snapshot()
	res.New = &next
	return res, nil
}

type fakePlatform struct {
	drivers    []ports.ResourceDriver
	driversErr error
	accountErr error
}

func (f *fakePlatform) Type() string { return "fake" }

func (f *fakePlatform) Drivers(context.Context) ([]ports.ResourceDriver, error) {
	return f.drivers, f.driversErr
}

func (f *fakePlatform) AccountID(context.Context) (string, error) {
	if f.accountErr != nil {
		return "", f.accountErr
	}
	return "123456789012", nil
}

func (f *fakePlatform) StateStore(local ports.StateStore, _ *s3.MirrorConfig, _ string) ports.StateStore {
	return local
}

func testViper(t *testing.T, output string) (*viper.Viper, string) {
	t.Helper()
	dir := t.TempDir()
	v := config.NewViper()
	v.Set("project", "fraud-demo")
	v.Set("state.directory", dir)
	v.Set("settings.output", output)
	v.Set("settings.log_level", "error")
	v.Set("settings.metrics_textfile", filepath.Join(dir, "parker.prom"))
	return v, dir
}

func decode(t *testing.T, buf *bytes.Buffer) reporting.Document {
	t.Helper()
	var doc reporting.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	buf.Reset()
	return doc
}

func TestBuildApplication_StopStartRoundTrip(t *testing.T) {
	ctx := context.Background()
	v, dir := testViper(t, "json")
	stream := &memStream{id: "clicks", shards: 2}
	var out bytes.Buffer

	application, err := BuildApplicationFromViper(ctx, v,
		WithPlatform(&fakePlatform{drivers: []ports.ResourceDriver{stream}}),
		WithOutput(&out), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	code, err := application.Run(ctx, domain.CommandStop, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitOK, code)
	doc := decode(t, &out)
	assert.Equal(t, "123456789012", doc.AccountID)
	assert.NotEmpty(t, doc.RunID)
	require.Len(t, doc.Results, 1)
	assert.Equal(t, domain.ActionScaled, doc.Results[0].Action)
	assert.Equal(t, int32(1), stream.shards)
	assert.FileExists(t, filepath.Join(dir, "fraud-demo.lifecycle.json"))

	code, err = application.Run(ctx, domain.CommandStart, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitOK, code)
	doc = decode(t, &out)
	assert.Equal(t, domain.ActionScaled, doc.Results[0].Action)
	assert.InDelta(t, 0.015, doc.Summary.TotalCostDeltaPerHour, 1e-9)
	assert.Equal(t, int32(2), stream.shards)

	prom, err := os.ReadFile(filepath.Join(dir, "parker.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `cost_parker_last_run_timestamp_seconds{command="start",project="fraud-demo"}`)
}

func TestBuildApplication_StartWithoutState(t *testing.T) {
	ctx := context.Background()
	v, _ := testViper(t, "yaml")
	var out bytes.Buffer

	application, err := BuildApplicationFromViper(ctx, v,
		WithPlatform(&fakePlatform{drivers: []ports.ResourceDriver{&memStream{id: "clicks", shards: 2}}}),
		WithOutput(&out), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	code, err := application.Run(ctx, domain.CommandStart, false)
	assert.Equal(t, domain.ExitFatal, code)
	assert.True(t, errors.Is(err, errors.CodeStateNotFound))
}

func TestBuildApplication_LockedProject(t *testing.T) {
	ctx := context.Background()
	v, dir := testViper(t, "json")
	stream := &memStream{id: "clicks", shards: 2}

	other, err := filestore.New(filestore.Config{Directory: dir}, "fraud-demo", log.Nop())
	require.NoError(t, err)
	unlock, err := other.Lock(ctx)
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	var out bytes.Buffer
	application, err := BuildApplicationFromViper(ctx, v,
		WithPlatform(&fakePlatform{drivers: []ports.ResourceDriver{stream}}),
		WithOutput(&out), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	code, err := application.Run(ctx, domain.CommandStop, false)
	assert.Equal(t, domain.ExitFatal, code)
	assert.True(t, errors.Is(err, errors.CodeStateLocked))
	assert.Equal(t, int32(2), stream.shards)
	assert.Zero(t, out.Len())

	code, err = application.Run(ctx, domain.CommandStop, true)
	require.NoError(t, err, "dry runs do not take the lock")
	assert.Equal(t, domain.ExitOK, code)
}

func TestBuildApplication_AccountLookupFailureIsNotFatal(t *testing.T) {
	v, _ := testViper(t, "text")
	platform := &fakePlatform{
		drivers:    []ports.ResourceDriver{&memStream{id: "clicks", shards: 2}},
		accountErr: errors.New(errors.CodePlatformAuthError, "ExpiredToken"),
	}

	application, err := BuildApplicationFromViper(context.Background(), v,
		WithPlatform(platform), WithOutput(&bytes.Buffer{}), WithLogOutput(&bytes.Buffer{}))

	require.NoError(t, err)
	assert.NotNil(t, application.Engine)
}

func TestBuildApplication_Failures(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(v *viper.Viper)
		platform *fakePlatform
		code     errors.Code
	}{
		{
			name:     "invalid config",
			mutate:   func(v *viper.Viper) { v.Set("project", "") },
			platform: &fakePlatform{},
			code:     errors.CodeConfigValidation,
		},
		{
			name:     "no drivers",
			platform: &fakePlatform{},
			code:     errors.CodeConfigValidation,
		},
		{
			name:     "driver build failure",
			platform: &fakePlatform{driversErr: errors.New(errors.CodeInventoryReadError, "no state file")},
			code:     errors.CodeInventoryReadError,
		},
		{
			name: "duplicate driver",
			platform: &fakePlatform{drivers: []ports.ResourceDriver{
				&memStream{id: "clicks", shards: 2}, &memStream{id: "clicks", shards: 4},
			}},
			code: errors.CodeConfigValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, _ := testViper(t, "text")
			if tc.mutate != nil {
				tc.mutate(v)
			}
			_, err := BuildApplicationFromViper(context.Background(), v,
				WithPlatform(tc.platform), WithOutput(&bytes.Buffer{}), WithLogOutput(&bytes.Buffer{}))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}
}

type memHistory struct {
	entries []reporting.HistoryEntry
	err     error
}

func (h *memHistory) AppendHistory(_ context.Context, entry reporting.HistoryEntry) error {
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, entry)
	return nil
}

func (h *memHistory) History(context.Context, int) ([]reporting.HistoryEntry, error) {
	return h.entries, h.err
}

type recordingReporter struct {
	reports []*domain.OperationReport
	err     error
}

func (r *recordingReporter) Report(_ context.Context, report *domain.OperationReport) error {
	r.reports = append(r.reports, report)
	return r.err
}

func TestApplicationRun(t *testing.T) {
	ctx := context.Background()
	failed := domain.OperationResult{Kind: domain.KindStream, Identifier: "clicks",
		Err: errors.New(errors.CodeThrottled, "rate exceeded"), Phase: domain.PhaseFailed}

	testCases := []struct {
		name       string
		report     *domain.OperationReport
		err        error
		wantCode   int
		wantRender bool
		wantStatus reporting.RunStatus
	}{
		{"success", &domain.OperationReport{Command: domain.CommandStop}, nil, domain.ExitOK, true, reporting.RunSucceeded},
		{"partial failure", &domain.OperationReport{Command: domain.CommandStop, PartialFailure: true,
			Results: []domain.OperationResult{failed}}, nil, domain.ExitPartialFailure, true, reporting.RunPartial},
		{"fatal with report", &domain.OperationReport{Command: domain.CommandStop},
			errors.New(errors.CodeStateWriteError, "disk full"), domain.ExitFatal, true, reporting.RunFailed},
		{"fatal without report", nil, errors.New(errors.CodeStateNotFound, "no state"), domain.ExitFatal, false, reporting.RunFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := mocks.NewLifecycleEngine(t)
			engine.On("Execute", mock.Anything, domain.CommandStop, true).Return(tc.report, tc.err).Once()
			reporter := &recordingReporter{}
			history := &memHistory{}
			application := NewApplication(engine, reporter, metrics.NewRecorder("fraud-demo"), log.Nop(), config.DefaultConfig())
			application.History = history

			code, err := application.Run(ctx, domain.CommandStop, true)

			assert.Equal(t, tc.wantCode, code)
			assert.Equal(t, tc.err, err)
			assert.Equal(t, tc.wantRender, len(reporter.reports) == 1)
			require.Len(t, history.entries, 1)
			assert.Equal(t, tc.wantStatus, history.entries[0].Status)
			assert.Equal(t, domain.CommandStop, history.entries[0].Command)
			assert.True(t, history.entries[0].DryRun)
		})
	}
}

func TestApplicationRun_ReporterErrorDoesNotChangeExitCode(t *testing.T) {
	engine := mocks.NewLifecycleEngine(t)
	engine.On("Execute", mock.Anything, domain.CommandStatus, false).
		Return(&domain.OperationReport{Command: domain.CommandStatus}, nil).Once()
	application := NewApplication(engine, &recordingReporter{err: errors.New(errors.CodeInternal, "broken pipe")},
		nil, log.Nop(), config.DefaultConfig())

	code, err := application.Run(context.Background(), domain.CommandStatus, false)

	require.NoError(t, err)
	assert.Equal(t, domain.ExitOK, code)
}

func TestApplicationRun_HistoryFailureIsOnlyAWarning(t *testing.T) {
	engine := mocks.NewLifecycleEngine(t)
	engine.On("Execute", mock.Anything, domain.CommandStatus, false).
		Return(&domain.OperationReport{Command: domain.CommandStatus}, nil).Once()
	application := NewApplication(engine, &recordingReporter{}, nil, log.Nop(), config.DefaultConfig())
	application.History = &memHistory{err: errors.New(errors.CodeStateWriteError, "read-only file system")}

	code, err := application.Run(context.Background(), domain.CommandStatus, false)

	require.NoError(t, err)
	assert.Equal(t, domain.ExitOK, code)
}

func TestApplicationRun_CancelledRunIsRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := mocks.NewLifecycleEngine(t)
	engine.On("Execute", mock.Anything, domain.CommandStop, false).Run(func(mock.Arguments) { cancel() }).
		Return(&domain.OperationReport{Command: domain.CommandStop}, errors.Cancelled(context.Canceled, "stop cancelled")).Once()
	dir := t.TempDir()
	store, err := filestore.New(filestore.Config{Directory: dir}, "fraud-demo", log.Nop())
	require.NoError(t, err)
	application := NewApplication(engine, &recordingReporter{}, nil, log.Nop(), config.DefaultConfig())
	application.History = store

	code, _ := application.Run(ctx, domain.CommandStop, false)

	assert.Equal(t, domain.ExitFatal, code)
	entries, err := store.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, reporting.RunFailed, entries[0].Status)
	assert.Equal(t, errors.CodeCancelled, entries[0].Error.Code)
}

func TestBuildApplication_RecordsHistory(t *testing.T) {
	ctx := context.Background()
	v, dir := testViper(t, "json")
	stream := &memStream{id: "clicks", shards: 2}
	var out bytes.Buffer

	application, err := BuildApplicationFromViper(ctx, v,
		WithPlatform(&fakePlatform{drivers: []ports.ResourceDriver{stream}}),
		WithOutput(&out), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	_, err = application.Run(ctx, domain.CommandStop, true)
	require.NoError(t, err)
	_, err = application.Run(ctx, domain.CommandStop, false)
	require.NoError(t, err)
	out.Reset()

	require.NoError(t, application.ShowHistory(ctx, 10))

	var entries []reporting.HistoryEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.False(t, entries[0].DryRun)
	assert.True(t, entries[1].DryRun)
	assert.Equal(t, reporting.RunSucceeded, entries[0].Status)
	assert.Equal(t, domain.ActionScaled, entries[0].Results[0].Action)
	assert.InDelta(t, 0.015*720, entries[0].Summary.Savings.Monthly, 1e-9)
	assert.FileExists(t, filepath.Join(dir, "fraud-demo.history.jsonl"))
}

func TestBuildApplication_HistoryDisabled(t *testing.T) {
	ctx := context.Background()
	v, dir := testViper(t, "json")
	v.Set("state.history", false)

	application, err := BuildApplicationFromViper(ctx, v,
		WithPlatform(&fakePlatform{drivers: []ports.ResourceDriver{&memStream{id: "clicks", shards: 2}}}),
		WithOutput(&bytes.Buffer{}), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	_, err = application.Run(ctx, domain.CommandStatus, false)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "fraud-demo.history.jsonl"))
	assert.True(t, errors.Is(application.ShowHistory(ctx, 10), errors.CodeConfigValidation))
}

func TestBuildApplication_BackupsNeedMirror(t *testing.T) {
	ctx := context.Background()
	v, _ := testViper(t, "text")

	application, err := BuildApplicationFromViper(ctx, v,
		WithPlatform(&fakePlatform{drivers: []ports.ResourceDriver{&memStream{id: "clicks", shards: 2}}}),
		WithOutput(&bytes.Buffer{}), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	assert.Nil(t, application.Backups)
	assert.True(t, errors.Is(application.ListBackups(ctx), errors.CodeConfigValidation))
	_, err = application.RestoreBackup(ctx, "")
	assert.True(t, errors.Is(err, errors.CodeConfigValidation))
}

func TestApplication_Backups(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filestore.Config{Directory: t.TempDir()}, "fraud-demo", log.Nop())
	require.NoError(t, err)
	backups := mocks.NewBackupStore(t)
	var out bytes.Buffer
	reporter, err := newReporter(config.DefaultConfig(), log.Nop(), &out)
	require.NoError(t, err)

	application := NewApplication(mocks.NewLifecycleEngine(t), reporter, nil, log.Nop(), config.DefaultConfig())
	application.Locker = store
	application.Backups = backups

	backups.On("ListBackups", mock.Anything).Return([]domain.Backup{
		{Stamp: "20260301T183000Z", Key: "backups/fraud-demo/20260301T183000Z.lifecycle.json", Size: 512},
	}, nil).Once()
	require.NoError(t, application.ListBackups(ctx))
	assert.Contains(t, out.String(), "20260301T183000Z")

	restored := domain.LifecycleState{SchemaVersion: domain.CurrentSchemaVersion, Project: "fraud-demo",
		Timestamp: time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)}
	backups.On("RestoreBackup", mock.Anything, "20260301T183000Z").Return(restored, nil).Once()
	got, err := application.RestoreBackup(ctx, "20260301T183000Z")
	require.NoError(t, err)
	assert.Equal(t, restored, got)
	assert.NoFileExists(t, store.LockPath(), "lock is released after the restore")
}

func TestApplication_RestoreBackupRespectsRunLock(t *testing.T) {
	ctx := context.Background()
	store, err := filestore.New(filestore.Config{Directory: t.TempDir()}, "fraud-demo", log.Nop())
	require.NoError(t, err)
	unlock, err := store.Lock(ctx)
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	application := NewApplication(mocks.NewLifecycleEngine(t), &recordingReporter{}, nil, log.Nop(), config.DefaultConfig())
	application.Locker = store
	application.Backups = mocks.NewBackupStore(t)

	_, err = application.RestoreBackup(ctx, "")

	assert.True(t, errors.Is(err, errors.CodeStateLocked))
}
