package dispatch

import (
	"time"

	"mediaconv/internal/model"
)

// Summary is the closed state of a dispatch session.
type Summary struct {
	SessionID  string            `json:"session_id"`
	PoolSize   int               `json:"pool_size"`
	Total      int               `json:"total"`
	Submitted  int               `json:"submitted"`
	Succeeded  []model.JobResult `json:"succeeded"`
	Failed     []model.JobResult `json:"failed"`
	Cancelled  []model.JobSpec   `json:"cancelled,omitempty"`
	Results    []model.JobResult `json:"results"`
	MaxActive  int               `json:"max_active"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Elapsed    time.Duration     `json:"elapsed_ns"`
}

func (s Summary) ElapsedSeconds() float64 {
	return s.Elapsed.Seconds()
}

// Interrupted reports whether cancellation left jobs unexecuted.
func (s Summary) Interrupted() bool {
	return len(s.Cancelled) > 0
}

// AverageSecondsPerSuccess divides the session wall time by the number of
// successes. The second value is false when nothing succeeded.
func (s Summary) AverageSecondsPerSuccess() (float64, bool) {
	if len(s.Succeeded) == 0 {
		return 0, false
	}
	return s.Elapsed.Seconds() / float64(len(s.Succeeded)), true
}

func (s Summary) OutputBytes() int64 {
	var total int64
	for _, r := range s.Succeeded {
		total += r.OutputSize
	}
	return total
}

func (s Summary) FailedFilenames() []string {
	out := make([]string, 0, len(s.Failed))
	for _, r := range s.Failed {
		out = append(out, r.Filename)
	}
	return out
}
