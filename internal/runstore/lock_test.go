package runstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireBatchLock_BlocksConcurrentAcquire(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "converted")

	lock, err := AcquireBatchLock(outDir, "s1")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	_, err = AcquireBatchLock(outDir, "s2")
	if err == nil {
		t.Fatalf("expected second acquire to fail")
	}
	if !strings.Contains(err.Error(), "in use") {
		t.Fatalf("unexpected lock error: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireBatchLock(outDir, "s2")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireBatchLocks_ReleasesOnPartialFailure(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a", "converted")
	b := filepath.Join(root, "b", "converted")

	held, err := AcquireBatchLock(b, "other")
	if err != nil {
		t.Fatalf("acquire held lock: %v", err)
	}
	defer func() {
		_ = held.Release()
	}()

	if _, err := AcquireBatchLocks([]string{a, b, a}, "s1"); err == nil {
		t.Fatalf("expected failure when one directory is locked")
	}
	if _, err := os.Stat(filepath.Join(a, batchLockDirName)); !os.IsNotExist(err) {
		t.Fatalf("expected lock on %s to be released, stat err=%v", a, err)
	}

	if err := held.Release(); err != nil {
		t.Fatal(err)
	}
	locks, err := AcquireBatchLocks([]string{a, b, a}, "s1")
	if err != nil {
		t.Fatalf("acquire all: %v", err)
	}
	if len(locks) != 2 {
		t.Fatalf("expected 2 distinct locks, got %d", len(locks))
	}
	if err := locks.Release(); err != nil {
		t.Fatalf("release all: %v", err)
	}
}
