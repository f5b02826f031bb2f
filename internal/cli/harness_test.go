package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/internal/config"
	"mediaconv/internal/ffmpeg"
	"mediaconv/internal/history"
	"mediaconv/internal/model"
	"mediaconv/internal/runstore"
)

const harnessFFmpeg = `#!/usr/bin/env bash
set -euo pipefail
if [ "${2:-}" = "-version" ]; then
  echo "ffmpeg version fake"
  exit 0
fi
out="${@: -1}"
for a in "$@"; do
  case "$a" in
    *broken*)
      printf 'half' > "$out"
      echo "Invalid data found when processing input" >&2
      exit 1
      ;;
    *slow*)
      sleep 0.3
      ;;
  esac
done
echo "out_time_us=1000000"
echo "speed=4.0x"
echo "progress=end"
printf 'converted' > "$out"
`

// installHarness puts fake ffmpeg/ffprobe on PATH and isolates settings
// and history under a temp dir.
func installHarness(t *testing.T) (tmp, cfgPath string) {
	t.Helper()
	tmp = t.TempDir()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "ffmpeg"), []byte(harnessFFmpeg), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "ffprobe"), []byte("#!/usr/bin/env bash\necho 2.0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	t.Setenv(config.EnvConfigPath, "")
	return tmp, filepath.Join(tmp, "config", "config.yaml")
}

func writeMedia(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("source"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHarnessConvertWritesOutputsReportAndHistory(t *testing.T) {
	tmp, cfg := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "a.mkv", "b.avi", "notes.txt")
	reportPath := filepath.Join(tmp, "report.json")

	err := Run([]string{"convert", "--yes", "--workers", "2", "--config", cfg, "--report", reportPath, media})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(media, "converted", "a.mp4"))
	assert.FileExists(t, filepath.Join(media, "converted", "b.mp4"))
	assert.NoDirExists(t, filepath.Join(media, "converted", ".mediaconv.lock"))

	var rep sessionReport
	require.NoError(t, runstore.ReadJSON(reportPath, &rep))
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 0, rep.Failed)
	assert.Equal(t, 2, rep.PoolSize)
	assert.Equal(t, "flag", rep.WorkerSource)
	assert.Equal(t, "video", rep.Format)
	require.NotNil(t, rep.AverageSecondsPerSuccess)
	assert.Len(t, rep.Results, 2)

	store, err := history.Open(filepath.Join(tmp, "data", "mediaconv", "history.db"))
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()
	sessions, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, rep.SessionID, sessions[0].ID)
	assert.Equal(t, 2, sessions[0].Succeeded)
}

func TestHarnessConvertReportsFailedFiles(t *testing.T) {
	tmp, cfg := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "good.mkv", "broken.mkv")
	reportDir := filepath.Join(tmp, "reports")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))

	err := Run([]string{"convert", media, "--yes", "--format", "mp3", "--no-history", "--config", cfg, "--report", reportDir})
	require.Error(t, err)
	assert.ErrorIs(t, err, errJobsFailed)

	assert.FileExists(t, filepath.Join(media, "converted", "good.mp3"))
	assert.NoFileExists(t, filepath.Join(media, "converted", "broken.mp3"))
	assert.NoFileExists(t, filepath.Join(media, "converted", ".broken.partial.mp3"))

	entries, err := os.ReadDir(reportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var rep sessionReport
	require.NoError(t, runstore.ReadJSON(filepath.Join(reportDir, entries[0].Name()), &rep))
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, []string{"broken.mkv"}, rep.FailedFiles)
	assert.NoFileExists(t, filepath.Join(tmp, "data", "mediaconv", "history.db"))
}

func TestHarnessConvertKeepsOutputsForSharedStems(t *testing.T) {
	tmp, cfg := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "clip.mkv", "clip.avi", "other.mkv")

	err := Run([]string{"convert", "--yes", "--workers", "3", "--no-history", "--config", cfg, media})
	require.NoError(t, err)

	out := filepath.Join(media, "converted")
	assert.FileExists(t, filepath.Join(out, "clip.mkv.mp4"))
	assert.FileExists(t, filepath.Join(out, "clip.avi.mp4"))
	assert.FileExists(t, filepath.Join(out, "other.mp4"))
	assert.NoFileExists(t, filepath.Join(out, "clip.mp4"))
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestHarnessInterruptedSessionIsRecorded(t *testing.T) {
	tmp, _ := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "a-slow.mkv", "b.mkv", "c.mkv")
	dbPath := filepath.Join(tmp, "history.db")

	settings := config.Default()
	settings.HistoryPath = dbPath

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// cancel once the first job has created its partial output
		for {
			matches, _ := filepath.Glob(filepath.Join(media, "converted", ".a-slow.partial.*"))
			if len(matches) > 0 {
				cancel()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}()

	out, err := runSession(ctx, sessionRequest{
		Inputs:      []string{media},
		Settings:    settings,
		Format:      model.FormatVideo,
		WorkersFlag: 1,
		AssumeYes:   true,
		JSON:        true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	assert.True(t, out.Summary.Interrupted())
	assert.FileExists(t, filepath.Join(media, "converted", "a-slow.mp4"))
	assert.NoFileExists(t, filepath.Join(media, "converted", "c.mp4"))

	store, err := history.Open(dbPath)
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()
	sessions, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, out.Summary.SessionID, sessions[0].ID)
	assert.Equal(t, 1, sessions[0].Succeeded)
	assert.Equal(t, 2, sessions[0].Cancelled)
}

func TestHarnessConvertAbortsWithoutFFmpeg(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATH", filepath.Join(tmp, "empty"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "a.mkv")

	err := Run([]string{"convert", "--yes", "--config", filepath.Join(tmp, "config.yaml"), media})
	require.Error(t, err)
	assert.ErrorIs(t, err, ffmpeg.ErrToolUnavailable)
	assert.NoDirExists(t, filepath.Join(media, "converted"))
}

func TestHarnessConvertRejectsBusyOutputDirectory(t *testing.T) {
	tmp, cfg := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "a.mkv")

	lock, err := runstore.AcquireBatchLock(filepath.Join(media, "converted"), "other")
	require.NoError(t, err)
	defer func() {
		_ = lock.Release()
	}()

	err = Run([]string{"convert", "--yes", "--no-history", "--config", cfg, media})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use by another session")
	assert.NoFileExists(t, filepath.Join(media, "converted", "a.mp4"))
}

func TestHarnessConvertNoMediaFound(t *testing.T) {
	tmp, cfg := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "readme.txt")

	err := Run([]string{"convert", "--yes", "--no-history", "--config", cfg, media})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no media files found")
}

func TestWatchRejectsReportFile(t *testing.T) {
	tmp, cfg := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "a.mkv")
	reportFile := filepath.Join(tmp, "report.json")
	require.NoError(t, os.WriteFile(reportFile, []byte("{}"), 0o644))

	err := Run([]string{"watch", "--config", cfg, "--report", reportFile, media})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a directory")
}

func TestEnsureReportDirCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "watch")
	require.NoError(t, ensureReportDir(dir))
	assert.DirExists(t, dir)
	require.NoError(t, ensureReportDir(dir))
	require.NoError(t, ensureReportDir(""))
}

func TestRunBarePathsRouteToConvert(t *testing.T) {
	tmp, cfg := installHarness(t)
	t.Setenv(config.EnvConfigPath, cfg)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "a.mkv")

	// Without --yes and without a terminal the confirmation step refuses.
	err := Run([]string{filepath.Join(media, "a.mkv")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation required")
}

func TestRunUnknownCommand(t *testing.T) {
	err := Run([]string{"definitely-not-a-command"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestSettingsSetPersistsYAML(t *testing.T) {
	_, cfg := installHarness(t)

	require.NoError(t, Run([]string{"settings", "set", "--config", cfg, "--workers", "3", "--format", "ac3", "--hw", "--extensions", "mkv,webm"}))
	s, err := config.Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, "ac3", s.Format)
	assert.True(t, s.HardwareAccel)
	assert.Equal(t, []string{".mkv", ".webm"}, s.Extensions)

	require.NoError(t, Run([]string{"settings", "set", "--config", cfg, "--hw=false"}))
	s, err = config.Load(cfg)
	require.NoError(t, err)
	assert.False(t, s.HardwareAccel)
	assert.Equal(t, 3, s.Workers)

	assert.Error(t, Run([]string{"settings", "set", "--config", cfg, "--workers", "12"}))
	assert.Error(t, Run([]string{"settings", "set", "--config", cfg, "--hw-encoder", "h265_magic"}))
	assert.Error(t, Run([]string{"settings", "set", "--config", cfg, "--output-dir-name", "a/b"}))
	require.NoError(t, Run([]string{"settings", "show", "--config", cfg}))
}

func TestHistoryCommandListsSessions(t *testing.T) {
	tmp, cfg := installHarness(t)
	media := filepath.Join(tmp, "media")
	writeMedia(t, media, "a.mkv")
	require.NoError(t, Run([]string{"convert", "--yes", "--config", cfg, media}))

	db := filepath.Join(tmp, "data", "mediaconv", "history.db")
	require.NoError(t, Run([]string{"history", "--db", db}))
	require.NoError(t, Run([]string{"history", "--config", cfg, "--json"}))
	assert.Error(t, Run([]string{"history", "--db", db, "--session", "missing"}))
}
