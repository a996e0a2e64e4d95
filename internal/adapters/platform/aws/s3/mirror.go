// s3/mirror.go

package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	aws_errors "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/errors"
	aws_limiter "github.com/olusolaa/cost-parker/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/cost-parker/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/cost-parker/internal/adapters/state/codec"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/log"
	"github.com/olusolaa/cost-parker/internal/retry"
)

const (
	serviceName = "S3"
	stateSuffix = ".lifecycle.json"
	backupDir   = "backups"
	stampLayout = "20060102T150405Z"
)

type MirrorConfig struct {
	Bucket           string `yaml:"bucket" mapstructure:"bucket"`
	Prefix           string `yaml:"prefix" mapstructure:"prefix"`
	RestoreOnMissing bool   `yaml:"restore_on_missing" mapstructure:"restore_on_missing"`
}

// Enabled reports whether a bucket is configured.
func (c MirrorConfig) Enabled() bool { return c.Bucket != "" }

// Mirror wraps a local StateStore and keeps a copy of every saved document in
// S3, plus a timestamped backup per save. The local store stays
// authoritative; the current S3 copy is only read when the local document is
// missing and RestoreOnMissing is set.
type Mirror struct {
	local        ports.StateStore
	cfg          MirrorConfig
	project      string
	s3Client     S3ClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	policy       retry.Policy
	logger       ports.Logger
}

// MirrorOption defines a function signature for configuring the Mirror.
type MirrorOption func(*Mirror)

// WithS3Client provides an option to set a custom S3 client.
func WithS3Client(client S3ClientInterface) MirrorOption {
	return func(m *Mirror) {
		if client != nil {
			m.s3Client = client
		}
	}
}

// WithRateLimiter provides an option to set a custom rate limiter.
func WithRateLimiter(limiter shared.RateLimiter) MirrorOption {
	return func(m *Mirror) {
		if limiter != nil {
			m.limiter = limiter
		}
	}
}

// WithErrorHandler provides an option to set a custom error handler.
func WithErrorHandler(handler shared.ErrorHandler) MirrorOption {
	return func(m *Mirror) {
		if handler != nil {
			m.errorHandler = handler
		}
	}
}

func WithRetryPolicy(policy retry.Policy) MirrorOption {
	return func(m *Mirror) { m.policy = policy }
}

func WithLogger(logger ports.Logger) MirrorOption {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMirror creates a Mirror around local with the given AWS config and optional configurations.
func NewMirror(cfg aws.Config, local ports.StateStore, mcfg MirrorConfig, project string, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		local:        local,
		cfg:          mcfg,
		project:      project,
		errorHandler: &aws_errors.DefaultErrorHandler{},
		policy:       retry.DefaultPolicy(),
		logger:       log.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.s3Client == nil {
		m.s3Client = s3.NewFromConfig(cfg)
	}
	if m.limiter == nil {
		m.limiter = aws_limiter.New(aws_limiter.DefaultRPS, m.logger)
	}
	m.logger = m.logger.WithFields(map[string]any{"component": "state_mirror", "bucket": mcfg.Bucket, "key": m.Key()})
	return m
}

// Key is the object key of the project's current mirrored document.
func (m *Mirror) Key() string {
	return path.Join(m.cfg.Prefix, m.project+stateSuffix)
}

// BackupKey is the object key of the backup taken at stamp.
func (m *Mirror) BackupKey(stamp string) string {
	return m.backupPrefix() + stamp + stateSuffix
}

func (m *Mirror) backupPrefix() string {
	return path.Join(m.cfg.Prefix, backupDir, m.project) + "/"
}

func (m *Mirror) caller(key string) shared.Caller {
	return shared.Caller{
		Service:  serviceName,
		Resource: fmt.Sprintf("s3://%s/%s", m.cfg.Bucket, key),
		Limiter:  m.limiter,
		Errors:   m.errorHandler,
		Policy:   m.policy,
		Logger:   m.logger,
	}
}

// Save writes locally first, then uploads the document as the current copy
// and as a backup named after the state's timestamp. A failed upload is
// logged and does not fail the save, since the local document is already
// durable.
func (m *Mirror) Save(ctx context.Context, state domain.LifecycleState) error {
	if err := m.local.Save(ctx, state); err != nil {
		return err
	}
	data, err := codec.Encode(state)
	if err != nil {
		m.logger.Warnf(ctx, "Skipping S3 mirror, encoding failed: %v", err)
		return nil
	}
	if err := m.put(ctx, m.Key(), data); err != nil {
		m.logger.Warnf(ctx, "Failed to mirror state to s3://%s/%s: %v", m.cfg.Bucket, m.Key(), err)
		return nil
	}
	m.logger.Debugf(ctx, "Mirrored state to s3://%s/%s", m.cfg.Bucket, m.Key())

	backup := m.BackupKey(formatStamp(state.Timestamp))
	if err := m.put(ctx, backup, data); err != nil {
		m.logger.Warnf(ctx, "Failed to back up state to s3://%s/%s: %v", m.cfg.Bucket, backup, err)
		return nil
	}
	m.logger.Debugf(ctx, "Backed up state to s3://%s/%s", m.cfg.Bucket, backup)
	return nil
}

func (m *Mirror) Load(ctx context.Context) (domain.LifecycleState, error) {
	state, err := m.local.Load(ctx)
	if err == nil || !errors.Is(err, errors.CodeStateNotFound) || !m.cfg.RestoreOnMissing {
		return state, err
	}

	m.logger.Infof(ctx, "Local state missing, restoring from s3://%s/%s", m.cfg.Bucket, m.Key())
	data, readErr := m.get(ctx, m.Key())
	if readErr != nil {
		if errors.Is(readErr, errors.CodeResourceNotFound) {
			return domain.LifecycleState{}, err
		}
		return domain.LifecycleState{}, readErr
	}
	return codec.Decode(data)
}

func (m *Mirror) Validate(state domain.LifecycleState) error {
	return m.local.Validate(state)
}

// ListBackups returns the project's backups, newest first. Objects under the
// backup prefix that are not named by a stamp are skipped.
func (m *Mirror) ListBackups(ctx context.Context) ([]domain.Backup, error) {
	var backups []domain.Backup
	paginator := s3.NewListObjectsV2Paginator(m.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.Bucket),
		Prefix: aws.String(m.backupPrefix()),
	})
	for paginator.HasMorePages() {
		var page *s3.ListObjectsV2Output
		err := m.caller(m.backupPrefix()).Read(ctx, "ListObjectsV2", func(ctx context.Context) error {
			var err error
			page, err = paginator.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			stamp, ok := stampFromKey(key)
			if !ok {
				m.logger.Debugf(ctx, "Ignoring unexpected object %s under backup prefix", key)
				continue
			}
			backups = append(backups, domain.Backup{
				Stamp:        stamp,
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Stamp > backups[j].Stamp })
	m.logger.Debugf(ctx, "Found %d backup(s) under s3://%s/%s", len(backups), m.cfg.Bucket, m.backupPrefix())
	return backups, nil
}

// RestoreBackup downloads the backup named by stamp, saves it as the local
// state and re-points the current S3 copy at it. stamp may also be given as
// an RFC 3339 time. An empty stamp restores the newest backup.
func (m *Mirror) RestoreBackup(ctx context.Context, stamp string) (domain.LifecycleState, error) {
	if stamp == "" {
		backups, err := m.ListBackups(ctx)
		if err != nil {
			return domain.LifecycleState{}, err
		}
		if len(backups) == 0 {
			return domain.LifecycleState{}, errors.NewUserFacing(errors.CodeStateNotFound,
				fmt.Sprintf("no backups for project '%s' in s3://%s/%s", m.project, m.cfg.Bucket, m.backupPrefix()),
				"Backups are written by every stop once state.s3 is configured.")
		}
		stamp = backups[0].Stamp
	} else {
		normalized, err := parseStamp(stamp)
		if err != nil {
			return domain.LifecycleState{}, errors.WrapUserFacing(err, errors.CodeConfigValidation,
				fmt.Sprintf("invalid backup timestamp %q", stamp),
				"Use a stamp from 'cost-parker backups list', e.g. 20260301T183000Z.")
		}
		stamp = normalized
	}

	key := m.BackupKey(stamp)
	data, err := m.get(ctx, key)
	if err != nil {
		if errors.Is(err, errors.CodeResourceNotFound) {
			return domain.LifecycleState{}, errors.WrapUserFacing(err, errors.CodeStateNotFound,
				fmt.Sprintf("no backup %s for project '%s'", stamp, m.project),
				"Run 'cost-parker backups list' to see the available backups.")
		}
		return domain.LifecycleState{}, err
	}
	state, err := codec.Decode(data)
	if err != nil {
		return domain.LifecycleState{}, err
	}
	if err := m.local.Save(ctx, state); err != nil {
		return domain.LifecycleState{}, err
	}
	if err := m.put(ctx, m.Key(), data); err != nil {
		m.logger.Warnf(ctx, "Restored backup %s locally but failed to update s3://%s/%s: %v", stamp, m.cfg.Bucket, m.Key(), err)
		return state, nil
	}
	m.logger.Infof(ctx, "Restored backup %s (%d snapshot(s))", stamp, len(state.Snapshots))
	return state, nil
}

func (m *Mirror) put(ctx context.Context, key string, data []byte) error {
	return m.caller(key).Mutate(ctx, "PutObject", func(ctx context.Context) error {
		_, err := m.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		return err
	})
}

func (m *Mirror) get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := m.caller(key).Read(ctx, "GetObject", func(ctx context.Context) error {
		out, err := m.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
		return err
	})
	return data, err
}

func formatStamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

// parseStamp accepts a backup stamp, an RFC 3339 time, or a zone-less
// 2006-01-02T15:04:05 taken as UTC, and returns the stamp form.
func parseStamp(s string) (string, error) {
	for _, layout := range []string{stampLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return formatStamp(t), nil
		}
	}
	_, err := time.Parse(stampLayout, s)
	return "", err
}

func stampFromKey(key string) (string, bool) {
	name := path.Base(key)
	if !strings.HasSuffix(name, stateSuffix) {
		return "", false
	}
	stamp := strings.TrimSuffix(name, stateSuffix)
	if _, err := time.Parse(stampLayout, stamp); err != nil {
		return "", false
	}
	return stamp, true
}
