package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"mediaconv/internal/discovery"
	"mediaconv/internal/runstore"
)

const DefaultSettle = 3 * time.Second

type Options struct {
	Extensions []string
	// SkipDirName is the output directory name; files written there are
	// never queued.
	SkipDirName string
	// Settle is how long the watched directories must stay quiet before a
	// batch is flushed.
	Settle time.Duration
	Logger hclog.Logger
}

// BatchFunc converts one batch of settled files. An error stops the watcher.
type BatchFunc func(ctx context.Context, paths []string) error

// Run watches dirs and hands settled media files to onBatch until ctx is
// done. A file is handed out at most once per Run, and only after its size
// has stopped changing.
func Run(ctx context.Context, dirs []string, opts Options, onBatch BatchFunc) error {
	if len(dirs) == 0 {
		return errors.New("watch requires at least one directory")
	}
	if onBatch == nil {
		return errors.New("watch requires a batch handler")
	}
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	exts := discovery.NormalizeExtensions(opts.Extensions)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", d, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("watch %s: %w", abs, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("watch %s: not a directory", abs)
		}
		if err := w.Add(abs); err != nil {
			return fmt.Errorf("watch %s: %w", abs, err)
		}
		log.Info("watching directory", "dir", abs)
	}

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	q := newSettleQueue()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !eligible(ev.Name, exts, opts.SkipDirName) {
				continue
			}
			if q.add(ev.Name) {
				timer.Reset(settle)
			}
		case <-timer.C:
			batch, waiting := q.flush()
			if waiting {
				timer.Reset(settle)
			}
			if len(batch) == 0 {
				continue
			}
			log.Info("batch settled", "files", len(batch))
			if err := onBatch(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// settleQueue holds candidate files until their size is unchanged across
// two consecutive flushes. A file leaves the queue at most once.
type settleQueue struct {
	pending map[string]int64
	seen    map[string]struct{}
}

func newSettleQueue() *settleQueue {
	return &settleQueue{
		pending: make(map[string]int64),
		seen:    make(map[string]struct{}),
	}
}

// add queues path and reports whether it is still a candidate.
func (q *settleQueue) add(path string) bool {
	if _, done := q.seen[path]; done {
		return false
	}
	if _, ok := q.pending[path]; !ok {
		q.pending[path] = -1
	}
	return true
}

// flush returns the sorted files whose size held still since the previous
// flush; waiting reports files that are still growing.
func (q *settleQueue) flush() (batch []string, waiting bool) {
	for p, last := range q.pending {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			delete(q.pending, p)
			continue
		}
		if info.Size() != last {
			q.pending[p] = info.Size()
			waiting = true
			continue
		}
		delete(q.pending, p)
		q.seen[p] = struct{}{}
		batch = append(batch, p)
	}
	sort.Strings(batch)
	return batch, waiting
}

func eligible(path string, exts []string, skipDir string) bool {
	if runstore.IsPartialPath(path) {
		return false
	}
	if skipDir != "" && filepath.Base(filepath.Dir(path)) == skipDir {
		return false
	}
	return discovery.MatchesExtension(path, exts)
}
