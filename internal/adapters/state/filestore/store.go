package filestore

import (
	"context"
	stderrs "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/olusolaa/cost-parker/internal/adapters/state/codec"
	"github.com/olusolaa/cost-parker/internal/core/domain"
	"github.com/olusolaa/cost-parker/internal/core/ports"
	"github.com/olusolaa/cost-parker/internal/errors"
)

const (
	StoreType = "file"

	fileSuffix = ".lifecycle.json"
	filePerm   = 0o600
	dirPerm    = 0o755
)

type Config struct {
	Directory string `yaml:"directory" mapstructure:"directory" validate:"required"`
}

// Store keeps one state document per project in a local directory. Saves
// replace the document atomically: a reader sees either the old or the new
// document, never a partial one.
type Store struct {
	dir     string
	project string
	logger  ports.Logger
	now     func() time.Time
}

func New(cfg Config, project string, logger ports.Logger) (*Store, error) {
	if project == "" {
		return nil, errors.New(errors.CodeConfigValidation, "state store requires a project name")
	}
	dir := cfg.Directory
	if dir == "" {
		dir = ".cost-parker"
		logger.Debugf(context.Background(), "No state directory specified, using default: %s", dir)
	}
	return &Store{
		dir:     dir,
		project: project,
		now:     time.Now,
		logger: logger.WithFields(map[string]any{
			"component":  "state_store",
			"state_file": filepath.Join(dir, project+fileSuffix),
		}),
	}, nil
}

func (s *Store) Type() string { return StoreType }

// Path is the location of the project's state document.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.project+fileSuffix)
}

func (s *Store) Save(ctx context.Context, state domain.LifecycleState) error {
	if ctx.Err() != nil {
		return errors.Cancelled(ctx.Err(), "state save cancelled")
	}
	if err := s.Validate(state); err != nil {
		return errors.WrapWithCode(err, errors.CodeStateWriteError, "refusing to save invalid lifecycle state")
	}
	data, err := codec.Encode(state)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(data); err != nil {
		return errors.WrapUserFacing(err, errors.CodeStateWriteError,
			fmt.Sprintf("failed to write state file %s", s.Path()),
			"Check that the state directory exists and is writable.")
	}
	s.logger.Infof(ctx, "Saved %d snapshot(s) to %s", len(state.Snapshots), s.Path())
	return nil
}

func (s *Store) writeAtomic(data []byte) (err error) {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+s.project+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(filePerm); err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), s.Path()); err != nil {
		return err
	}
	return syncDir(s.dir)
}

// syncDir makes the rename durable. Platforms that cannot fsync a directory
// report an error on Sync, which is ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	_ = d.Sync()
	return d.Close()
}

func (s *Store) Load(ctx context.Context) (domain.LifecycleState, error) {
	if ctx.Err() != nil {
		return domain.LifecycleState{}, errors.Cancelled(ctx.Err(), "state load cancelled")
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if stderrs.Is(err, fs.ErrNotExist) {
			return domain.LifecycleState{}, errors.WrapUserFacing(err, errors.CodeStateNotFound,
				fmt.Sprintf("no saved state for project '%s' at %s", s.project, s.Path()),
				"Run 'cost-parker stop' first to capture a restore point.")
		}
		return domain.LifecycleState{}, errors.WrapWithCode(err, errors.CodeStateCorrupt,
			fmt.Sprintf("failed to read state file %s", s.Path()))
	}
	state, err := codec.Decode(data)
	if err != nil {
		return domain.LifecycleState{}, err
	}
	s.logger.Debugf(ctx, "Loaded %d snapshot(s) written at %s", len(state.Snapshots), state.Timestamp)
	return state, nil
}

func (s *Store) Validate(state domain.LifecycleState) error {
	return codec.Validate(state, s.project)
}
