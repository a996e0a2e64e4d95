package filestore

import (
	"context"
	stderrs "errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/cost-parker/internal/errors"
)

const (
	lockSuffix = ".lock"

	// DefaultStaleLockAge is how old a lock may get before another run may
	// take it over regardless of its holder.
	DefaultStaleLockAge = 6 * time.Hour
)

type lockInfo struct {
	PID      int       `json:"pid"`
	Hostname string    `json:"hostname"`
	LockedAt time.Time `json:"locked_at"`
}

func (l lockInfo) String() string {
	return fmt.Sprintf("PID %d on %s since %s", l.PID, l.Hostname, l.LockedAt.UTC().Format(time.RFC3339))
}

// LockPath is the lock file guarding the project's state document.
func (s *Store) LockPath() string {
	return s.Path() + lockSuffix
}

// Lock takes the project's run lock. A second mutating run fails with
// STATE_LOCKED instead of waiting. Locks left by dead processes on this host,
// or older than DefaultStaleLockAge, are taken over with a warning.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	if ctx.Err() != nil {
		return nil, errors.Cancelled(ctx.Err(), "lock cancelled")
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeStateWriteError,
			fmt.Sprintf("failed to create state directory %s", s.dir),
			"Check that the state directory is writable.")
	}

	host, _ := os.Hostname()
	info := lockInfo{PID: os.Getpid(), Hostname: host, LockedAt: s.now()}

	for attempt := 0; attempt < 2; attempt++ {
		err := s.createLock(info)
		if err == nil {
			s.logger.Debugf(ctx, "Acquired run lock %s", s.LockPath())
			return s.unlockFunc(ctx), nil
		}
		if !stderrs.Is(err, fs.ErrExist) {
			return nil, errors.WrapWithCode(err, errors.CodeStateWriteError, "failed to create lock file "+s.LockPath())
		}

		holder, readErr := s.readLock()
		if readErr != nil || !s.stale(holder, host) {
			return nil, s.lockedError(holder, readErr)
		}
		s.logger.Warnf(ctx, "Taking over stale run lock held by %s", holder)
		if err := os.Remove(s.LockPath()); err != nil && !stderrs.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapWithCode(err, errors.CodeStateWriteError, "failed to remove stale lock "+s.LockPath())
		}
	}
	return nil, s.lockedError(lockInfo{}, nil)
}

func (s *Store) createLock(info lockInfo) error {
	f, err := os.OpenFile(s.LockPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return err
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(info)
	if err == nil {
		_, err = f.Write(data)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(s.LockPath())
	}
	return err
}

func (s *Store) readLock() (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(s.LockPath())
	if err != nil {
		return info, err
	}
	err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &info)
	return info, err
}

func (s *Store) stale(holder lockInfo, host string) bool {
	if !holder.LockedAt.IsZero() && s.now().Sub(holder.LockedAt) > DefaultStaleLockAge {
		return true
	}
	return holder.Hostname == host && !processAlive(holder.PID)
}

func (s *Store) lockedError(holder lockInfo, readErr error) error {
	msg := fmt.Sprintf("another run holds the lock for project '%s'", s.project)
	if readErr == nil && holder.PID != 0 {
		msg = fmt.Sprintf("project '%s' is locked by %s", s.project, holder)
	}
	return errors.NewUserFacing(errors.CodeStateLocked, msg,
		fmt.Sprintf("Wait for the other run to finish, or remove %s if no run is in progress.", s.LockPath()))
}

func (s *Store) unlockFunc(ctx context.Context) func() error {
	return func() error {
		if err := os.Remove(s.LockPath()); err != nil && !stderrs.Is(err, fs.ErrNotExist) {
			s.logger.Warnf(ctx, "Failed to release run lock %s: %v", s.LockPath(), err)
			return errors.WrapWithCode(err, errors.CodeStateWriteError, "failed to release lock")
		}
		return nil
	}
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || stderrs.Is(err, syscall.EPERM)
}
