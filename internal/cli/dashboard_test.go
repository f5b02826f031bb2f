package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mediaconv/internal/dispatch"
	"mediaconv/internal/model"
)

func TestEstimateSessionETA(t *testing.T) {
	// 2 of 6 done in 20 minutes: 40 minutes to go.
	if got := estimateSessionETA(20*time.Minute, 2, 6); got != "40m" {
		t.Fatalf("expected 40m, got %q", got)
	}
	if got := estimateSessionETA(65*time.Minute, 1, 2); got != "1h 5m" {
		t.Fatalf("expected 1h 5m, got %q", got)
	}
	if got := estimateSessionETA(10*time.Second, 1, 2); got != "<1m" {
		t.Fatalf("expected <1m, got %q", got)
	}
	if got := estimateSessionETA(time.Minute, 3, 3); got != "0m" {
		t.Fatalf("expected 0m, got %q", got)
	}
}

func TestEstimateSessionETAInvalidInputs(t *testing.T) {
	if got := estimateSessionETA(time.Minute, 0, 3); got != "" {
		t.Fatalf("expected empty eta before first completion, got %q", got)
	}
	if got := estimateSessionETA(time.Minute, 1, 0); got != "" {
		t.Fatalf("expected empty eta for empty session, got %q", got)
	}
}

func TestFormatETASecondsDays(t *testing.T) {
	if got := formatETASeconds(26 * 3600); got != "1d 2h" {
		t.Fatalf("expected 1d 2h, got %q", got)
	}
	if got := formatETASeconds(48 * 3600); got != "2d" {
		t.Fatalf("expected 2d, got %q", got)
	}
}

func TestDashboardTracksSlotsAndEvents(t *testing.T) {
	var buf bytes.Buffer
	d := newSessionDashboard(&buf, 0)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	d.OnSessionStart(dispatch.SessionInfo{Total: 3, PoolSize: 2, Workers: 2})
	a := model.Job{Index: 0, Slot: 1, Spec: model.JobSpec{InputPath: "/in/a.mkv"}}
	b := model.Job{Index: 1, Slot: 2, Spec: model.JobSpec{InputPath: "/in/b.avi"}}
	d.OnJobStart(a)
	d.OnJobStart(b)
	d.OnJobProgress(a, model.JobProgress{Percent: 42.5, Speed: "3.1x"})

	frame := d.frame()
	if !strings.Contains(frame, "active 2/2") {
		t.Fatalf("expected two active slots, got:\n%s", frame)
	}
	if !strings.Contains(frame, "P1 a.mkv |  42.5% | 3.1x") {
		t.Fatalf("expected slot 1 progress, got:\n%s", frame)
	}
	if !strings.Contains(frame, "P2 b.avi | starting") {
		t.Fatalf("expected slot 2 starting, got:\n%s", frame)
	}

	clock = clock.Add(2 * time.Minute)
	d.OnJobDone(1, 3, model.JobResult{Filename: "b.avi", Slot: 2, Err: "ffmpeg failed: exit status 1\nstderr tail"})
	frame = d.frame()
	if strings.Contains(frame, "P2 b.avi |") {
		t.Fatalf("finished slot still rendered:\n%s", frame)
	}
	if !strings.Contains(frame, "[1/3] P2 failed b.avi: ffmpeg failed: exit status 1") {
		t.Fatalf("expected failure event, got:\n%s", frame)
	}
	if !strings.Contains(frame, "failed 1") || !strings.Contains(frame, "eta ~ 4m") {
		t.Fatalf("expected failure count and eta in header, got:\n%s", frame)
	}

	d.OnSessionEnd(dispatch.Summary{})
	if !strings.Contains(buf.String(), "done 1/3") {
		t.Fatalf("expected final frame written, got:\n%s", buf.String())
	}
}

func TestLineReporterUsesSlotLabels(t *testing.T) {
	var buf bytes.Buffer
	r := newLineReporter(&buf)
	r.OnSessionStart(dispatch.SessionInfo{Total: 2, PoolSize: 4})
	r.OnJobStart(model.Job{Slot: 3, Spec: model.JobSpec{InputPath: "/x/clip.mkv"}})
	r.OnJobDone(1, 2, model.JobResult{Filename: "clip.mkv", Succeeded: true, Elapsed: 1500 * time.Millisecond})
	r.OnJobDone(2, 2, model.JobResult{Filename: "bad.mkv", Err: "boom"})

	out := buf.String()
	for _, want := range []string{
		"converting 2 file(s) with 4 worker(s)",
		"[P3] converting clip.mkv",
		"[1/2] done clip.mkv (1.5s)",
		"[2/2] failed bad.mkv: boom",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
