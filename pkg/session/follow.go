package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
)

// FollowerConfig configures a Follower.
type FollowerConfig struct {
	Recorder *Recorder
	Path     string

	Actor     permission.Actor
	Scope     memory.Scope
	Namespace string

	// FromStart records the existing contents of the file before following
	// it. By default only lines appended after Run starts are recorded.
	FromStart bool

	Logger *slog.Logger
}

// Follower tails a log file and records every complete line batch appended
// to it.
type Follower struct {
	cfg    FollowerConfig
	logger *slog.Logger
}

// NewFollower builds a Follower.
func NewFollower(c FollowerConfig) (*Follower, error) {
	if c.Recorder == nil {
		return nil, errors.New("recorder is required")
	}
	if c.Path == "" {
		return nil, errors.New("path is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Follower{cfg: c, logger: c.Logger.With("component", "session_follower", "path", c.Path)}, nil
}

// Run follows the file until ctx is cancelled. Record failures are logged
// and do not stop the follower.
func (f *Follower) Run(ctx context.Context) error {
	path := f.cfg.Path

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { file.Close() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating log watcher: %w", err)
	}
	defer watcher.Close()

	if !f.cfg.FromStart {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seek log file: %w", err)
		}
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	var pending []byte
	buf := make([]byte, 4096)

	// reopen switches to a file recreated at path after rotation. The new
	// file is read from its start.
	reopen := func() error {
		next, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			// Gone again before we got to it; a later Create reopens.
			return nil
		}
		if err != nil {
			return fmt.Errorf("reopening log file: %w", err)
		}
		file.Close()
		file = next
		pending = pending[:0]
		f.logger.Debug("log file rotated")
		return nil
	}

	readAvailable := func() error {
		if stat, err := file.Stat(); err == nil {
			if off, err := file.Seek(0, io.SeekCurrent); err == nil && stat.Size() < off {
				// Truncated: start over.
				if _, err := file.Seek(0, io.SeekStart); err != nil {
					return err
				}
				pending = pending[:0]
			}
		}

		for {
			n, err := file.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return err
			}
		}

		idx := bytes.LastIndexByte(pending, '\n')
		if idx < 0 {
			return nil
		}

		lines := splitLines(pending[:idx])
		pending = append(pending[:0], pending[idx+1:]...)

		f.record(ctx, lines)
		return nil
	}

	if err := readAvailable(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// Drain what was appended to the old file before switching.
				if err := readAvailable(); err != nil {
					return err
				}
				if err := reopen(); err != nil {
					return err
				}
			}
			if err := readAvailable(); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("log watcher error: %w", err)
		}
	}
}

func (f *Follower) record(ctx context.Context, lines []string) {
	if len(Clean(lines)) == 0 {
		return
	}

	result, err := f.cfg.Recorder.Record(ctx, f.cfg.Actor, f.cfg.Scope, f.cfg.Namespace, lines)
	if err != nil {
		f.logger.Warn("recording log lines failed", "error", err)
		return
	}

	f.logger.Debug("recorded log lines", "entry", result.Entry.ID, "lines", len(lines))
}

func splitLines(b []byte) []string {
	parts := bytes.Split(b, []byte{'\n'})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, string(bytes.TrimRight(p, "\r")))
	}
	return out
}
