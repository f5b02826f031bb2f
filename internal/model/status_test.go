package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{"", StatusPending},
		{StatusPending, StatusRunning},
		{StatusRunning, StatusSucceeded},
		{StatusRunning, StatusFailed},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusPending, StatusSucceeded},
		{StatusPending, StatusFailed},
		{StatusSucceeded, StatusRunning},
		{StatusFailed, StatusRunning},
		{StatusFailed, StatusPending},
		{StatusRunning, StatusPending},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionJobStatus_BlocksIllegalTransition(t *testing.T) {
	job := Job{
		Index:  3,
		Spec:   JobSpec{InputPath: "/media/a.mkv", Format: FormatVideo},
		Status: StatusPending,
	}

	if err := TransitionJobStatus(&job, StatusSucceeded, ""); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if job.Status != StatusPending {
		t.Fatalf("status changed on rejected transition: %q", job.Status)
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, from := range []string{StatusSucceeded, StatusFailed} {
		if !IsTerminalStatus(from) {
			t.Fatalf("expected %q to be terminal", from)
		}
		for _, to := range []string{StatusPending, StatusRunning, StatusSucceeded, StatusFailed} {
			if CanTransition(from, to) {
				t.Fatalf("terminal status %q must not transition to %q", from, to)
			}
		}
	}
}
