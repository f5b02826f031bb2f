package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	batchLockDirName   = ".mediaconv.lock"
	batchLockOwnerFile = "owner.json"
)

// BatchLock guards one output directory for the duration of a session so
// two sessions never write the same converted files.
type BatchLock struct {
	lockDir string
}

type batchLockOwner struct {
	PID       int    `json:"pid"`
	SessionID string `json:"session_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireBatchLock(outputDir, sessionID string) (BatchLock, error) {
	target := strings.TrimSpace(outputDir)
	if target == "" {
		return BatchLock{}, fmt.Errorf("output directory is required")
	}
	if err := Mkdir(target); err != nil {
		return BatchLock{}, err
	}

	lockDir := filepath.Join(target, batchLockDirName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			ownerPath := filepath.Join(lockDir, batchLockOwnerFile)
			var owner batchLockOwner
			if readErr := ReadJSON(ownerPath, &owner); readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
				return BatchLock{}, fmt.Errorf(
					"output directory is in use by another session: %s (pid=%d created_at=%s host=%s)",
					target, owner.PID, owner.CreatedAt, owner.Hostname,
				)
			}
			return BatchLock{}, fmt.Errorf("output directory is in use by another session: %s", target)
		}
		return BatchLock{}, fmt.Errorf("acquire output lock for %s: %w", target, err)
	}

	owner := batchLockOwner{
		PID:       os.Getpid(),
		SessionID: sessionID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	ownerPath := filepath.Join(lockDir, batchLockOwnerFile)
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.Remove(lockDir)
		return BatchLock{}, fmt.Errorf("write output lock owner for %s: %w", target, err)
	}

	return BatchLock{lockDir: lockDir}, nil
}

func (l BatchLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, batchLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release output lock %s: %w", l.lockDir, err)
	}
	return nil
}

// BatchLocks is a set of locks taken together.
type BatchLocks []BatchLock

// AcquireBatchLocks locks every distinct directory in sorted order. On
// failure the locks already taken are released.
func AcquireBatchLocks(outputDirs []string, sessionID string) (BatchLocks, error) {
	uniq := make(map[string]struct{}, len(outputDirs))
	for _, d := range outputDirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		uniq[filepath.Clean(d)] = struct{}{}
	}
	dirs := make([]string, 0, len(uniq))
	for d := range uniq {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	locks := make(BatchLocks, 0, len(dirs))
	for _, d := range dirs {
		l, err := AcquireBatchLock(d, sessionID)
		if err != nil {
			_ = locks.Release()
			return nil, err
		}
		locks = append(locks, l)
	}
	return locks, nil
}

func (ls BatchLocks) Release() error {
	var errs []error
	for i := len(ls) - 1; i >= 0; i-- {
		if err := ls[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
