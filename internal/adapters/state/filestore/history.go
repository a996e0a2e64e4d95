package filestore

import (
	"bufio"
	"bytes"
	"context"
	stderrs "errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/cost-parker/internal/errors"
	"github.com/olusolaa/cost-parker/internal/reporting"
)

const (
	historySuffix = ".history.jsonl"

	maxHistoryLine = 16 << 20
)

// HistoryPath is the project's append-only run history, one JSON document
// per line.
func (s *Store) HistoryPath() string {
	return filepath.Join(s.dir, s.project+historySuffix)
}

// AppendHistory adds entry as the last line of the history file. User and
// Hostname are filled in when empty.
func (s *Store) AppendHistory(ctx context.Context, entry reporting.HistoryEntry) error {
	if ctx.Err() != nil {
		return errors.Cancelled(ctx.Err(), "history append cancelled")
	}
	if entry.User == "" {
		entry.User = currentUser()
	}
	if entry.Hostname == "" {
		entry.Hostname, _ = os.Hostname()
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode history entry")
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return errors.WrapWithCode(err, errors.CodeStateWriteError, "failed to create state directory "+s.dir)
	}
	f, err := os.OpenFile(s.HistoryPath(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeStateWriteError, "failed to open history file "+s.HistoryPath())
	}
	// One write per line keeps concurrent appenders from interleaving.
	_, err = f.Write(append(data, '\n'))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeStateWriteError, "failed to append to history file "+s.HistoryPath())
	}
	s.logger.Debugf(ctx, "Recorded %s run %s in %s", entry.Command, entry.RunID, s.HistoryPath())
	return nil
}

// History returns up to limit entries, newest first. A limit of 0 or less
// returns every entry. Lines that do not decode are skipped with a warning.
func (s *Store) History(ctx context.Context, limit int) ([]reporting.HistoryEntry, error) {
	if ctx.Err() != nil {
		return nil, errors.Cancelled(ctx.Err(), "history read cancelled")
	}
	data, err := os.ReadFile(s.HistoryPath())
	if err != nil {
		if stderrs.Is(err, fs.ErrNotExist) {
			return []reporting.HistoryEntry{}, nil
		}
		return nil, errors.WrapWithCode(err, errors.CodeStateCorrupt, "failed to read history file "+s.HistoryPath())
	}

	var entries []reporting.HistoryEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxHistoryLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var entry reporting.HistoryEntry
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &entry); err != nil {
			s.logger.Warnf(ctx, "Skipping unreadable history line %d in %s: %v", line, s.HistoryPath(), err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeStateCorrupt,
			fmt.Sprintf("failed to read history file %s at line %d", s.HistoryPath(), line+1))
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]reporting.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
