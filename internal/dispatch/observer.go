package dispatch

import "mediaconv/internal/model"

// SessionInfo describes a session at the moment it opens.
type SessionInfo struct {
	ID       string
	Total    int
	PoolSize int
	Workers  int
}

// Observer receives session events. Every method is called from the single
// coordinator goroutine, so implementations need no locking for state they
// only touch from these callbacks.
type Observer interface {
	OnSessionStart(info SessionInfo)
	OnJobStart(job model.Job)
	OnJobProgress(job model.Job, progress model.JobProgress)
	// OnJobDone fires exactly once per completed job with completed
	// strictly increasing from 1 to the number of executed jobs.
	OnJobDone(completed, submitted int, result model.JobResult)
	OnSessionEnd(summary Summary)
}

type NopObserver struct{}

func (NopObserver) OnSessionStart(SessionInfo) {}
func (NopObserver) OnJobStart(model.Job) {}
func (NopObserver) OnJobProgress(model.Job, model.JobProgress) {}
func (NopObserver) OnJobDone(int, int, model.JobResult) {}
func (NopObserver) OnSessionEnd(Summary) {}

// MultiObserver fans events out in order.
type MultiObserver []Observer

func (m MultiObserver) OnSessionStart(info SessionInfo) {
	for _, o := range m {
		o.OnSessionStart(info)
	}
}

func (m MultiObserver) OnJobStart(job model.Job) {
	for _, o := range m {
		o.OnJobStart(job)
	}
}

func (m MultiObserver) OnJobProgress(job model.Job, progress model.JobProgress) {
	for _, o := range m {
		o.OnJobProgress(job, progress)
	}
}

func (m MultiObserver) OnJobDone(completed, submitted int, result model.JobResult) {
	for _, o := range m {
		o.OnJobDone(completed, submitted, result)
	}
}

func (m MultiObserver) OnSessionEnd(summary Summary) {
	for _, o := range m {
		o.OnSessionEnd(summary)
	}
}
