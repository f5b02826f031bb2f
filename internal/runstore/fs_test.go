package runstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreatePartialIsUniqueAndKeepsExtension(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "movie.mp4")

	first, err := CreatePartial(final)
	if err != nil {
		t.Fatalf("create partial: %v", err)
	}
	second, err := CreatePartial(final)
	if err != nil {
		t.Fatalf("create partial: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct partial files, got %q twice", first)
	}
	for _, p := range []string{first, second} {
		if filepath.Dir(p) != dir || filepath.Ext(p) != ".mp4" {
			t.Fatalf("unexpected partial path %q", p)
		}
		if !strings.HasPrefix(filepath.Base(p), ".movie.partial.") {
			t.Fatalf("unexpected partial name %q", p)
		}
		if !IsPartialPath(p) {
			t.Fatalf("expected %q to be recognised as partial", p)
		}
	}
	if IsPartialPath(final) {
		t.Fatalf("final path must not be recognised as partial")
	}
}

func TestCommitFileRenamesAndReportsSize(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "song.mp3")
	partial, err := CreatePartial(final)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(partial, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	size, err := CommitFile(partial, final)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if size != 5 {
		t.Fatalf("expected size 5, got %d", size)
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatalf("partial file should be gone")
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "r.json")
	in := map[string]int{"succeeded": 3}
	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out map[string]int
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out["succeeded"] != 3 {
		t.Fatalf("unexpected content: %v", out)
	}
}

func TestReportFileName(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := ReportFileName(ts, "0123456789abcdef")
	if got != "20260304T050607Z_01234567.json" {
		t.Fatalf("unexpected report name %q", got)
	}
}
