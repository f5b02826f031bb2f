package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".mediaconv-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("write file %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// CreatePartial creates a unique hidden sibling of finalPath for an output
// to be written to before it is committed. The extension is kept so tools
// can infer the container, and concurrent writers never share a file.
func CreatePartial(finalPath string) (string, error) {
	dir := filepath.Dir(finalPath)
	base := filepath.Base(finalPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	f, err := os.CreateTemp(dir, "."+stem+".partial.*"+ext)
	if err != nil {
		return "", fmt.Errorf("create partial for %s: %w", finalPath, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		Discard(name)
		return "", fmt.Errorf("create partial for %s: %w", finalPath, err)
	}
	return name, nil
}

func IsPartialPath(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && strings.Contains(base, ".partial.")
}

// CommitFile moves a finished partial file over its final name and returns
// the committed size.
func CommitFile(partialPath, finalPath string) (int64, error) {
	if err := os.Rename(partialPath, finalPath); err != nil {
		Discard(partialPath)
		return 0, fmt.Errorf("commit %s: %w", finalPath, err)
	}
	info, err := os.Stat(finalPath)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", finalPath, err)
	}
	return info.Size(), nil
}

// Discard removes a partial file; a missing file is not an error.
func Discard(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	_ = os.Remove(path)
}

func ReportFileName(startedAt time.Time, sessionID string) string {
	id := sessionID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s.json", startedAt.UTC().Format("20060102T150405Z"), id)
}
