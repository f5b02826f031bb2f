package cli

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"mediaconv/internal/dispatch"
	"mediaconv/internal/model"
)

const dashboardRefresh = 700 * time.Millisecond

var (
	dashTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dashMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dashFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type slotState struct {
	filename string
	started  time.Time
	progress model.JobProgress
}

// sessionDashboard redraws the whole terminal on a ticker. The dispatch
// coordinator feeds it through the Observer methods.
type sessionDashboard struct {
	mu sync.Mutex

	out     io.Writer
	refresh time.Duration
	now     func() time.Time

	slots  map[int]*slotState
	events []string

	total     int
	poolSize  int
	completed int
	failed    int
	started   time.Time

	stop    chan struct{}
	running bool
}

func newSessionDashboard(out io.Writer, refresh time.Duration) *sessionDashboard {
	return &sessionDashboard{
		out:     out,
		refresh: refresh,
		now:     time.Now,
		slots:   make(map[int]*slotState),
		events:  make([]string, 0, 8),
		stop:    make(chan struct{}),
	}
}

func (d *sessionDashboard) OnSessionStart(info dispatch.SessionInfo) {
	d.mu.Lock()
	d.total = info.Total
	d.poolSize = info.PoolSize
	d.started = d.now()
	d.mu.Unlock()
	if d.refresh <= 0 || info.Total == 0 {
		return
	}
	d.running = true
	go func() {
		t := time.NewTicker(d.refresh)
		defer t.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-t.C:
				d.render()
			}
		}
	}()
}

func (d *sessionDashboard) OnJobStart(job model.Job) {
	d.mu.Lock()
	d.slots[job.Slot] = &slotState{filename: job.Spec.Filename(), started: d.now()}
	d.mu.Unlock()
}

func (d *sessionDashboard) OnJobProgress(job model.Job, p model.JobProgress) {
	d.mu.Lock()
	if s, ok := d.slots[job.Slot]; ok {
		s.progress = p
	}
	d.mu.Unlock()
}

func (d *sessionDashboard) OnJobDone(completed, submitted int, r model.JobResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.slots, r.Slot)
	d.completed = completed
	var event string
	if r.Succeeded {
		event = fmt.Sprintf("[%d/%d] P%d done %s (%s)", completed, submitted, r.Slot, r.Filename, formatSeconds(r.ElapsedSeconds()))
	} else {
		d.failed++
		event = dashFailStyle.Render(fmt.Sprintf("[%d/%d] P%d failed %s: %s", completed, submitted, r.Slot, r.Filename, firstLine(r.Err)))
	}
	d.events = append([]string{event}, d.events...)
	if len(d.events) > 8 {
		d.events = d.events[:8]
	}
}

func (d *sessionDashboard) OnSessionEnd(dispatch.Summary) {
	if d.running {
		close(d.stop)
		d.running = false
	}
	d.render()
}

func (d *sessionDashboard) render() {
	d.mu.Lock()
	frame := d.frame()
	d.mu.Unlock()
	fmt.Fprint(d.out, "\033[H\033[2J"+frame)
}

// frame must be called with d.mu held.
func (d *sessionDashboard) frame() string {
	ids := make([]int, 0, len(d.slots))
	for id := range d.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	elapsed := d.now().Sub(d.started)
	etaPart := ""
	if d.completed < d.total {
		if eta := estimateSessionETA(elapsed, d.completed, d.total); eta != "" {
			etaPart = " | eta ~ " + eta
		} else {
			etaPart = " | eta ~ calculating"
		}
	}

	var b strings.Builder
	b.WriteString(dashTitleStyle.Render(fmt.Sprintf("mediaconv live | active %d/%d | done %d/%d | failed %d | elapsed %s%s",
		len(ids), d.poolSize, d.completed, d.total, d.failed, formatSeconds(elapsed.Seconds()), etaPart)))
	b.WriteString("\n" + strings.Repeat("-", 100) + "\n")

	if len(ids) == 0 {
		b.WriteString(dashMutedStyle.Render("(no active workers)") + "\n")
	} else {
		for _, id := range ids {
			b.WriteString(fmt.Sprintf("P%d %s\n", id, renderSlot(d.slots[id], d.now())))
		}
	}

	if len(d.events) > 0 {
		b.WriteString(strings.Repeat("-", 100) + "\n")
		for _, e := range d.events {
			b.WriteString(e + "\n")
		}
	}
	return b.String()
}

func renderSlot(s *slotState, now time.Time) string {
	name := truncateRunes(s.filename, 48)
	p := s.progress
	parts := []string{name}
	switch {
	case p.Percent > 0:
		parts = append(parts, fmt.Sprintf("%5.1f%%", p.Percent))
	case p.OutTime > 0:
		parts = append(parts, formatSeconds(p.OutTime.Seconds())+" encoded")
	default:
		parts = append(parts, "starting")
	}
	if p.Speed != "" {
		parts = append(parts, p.Speed)
	}
	if p.Bitrate != "" {
		parts = append(parts, p.Bitrate)
	}
	parts = append(parts, formatSeconds(now.Sub(s.started).Seconds()))
	return strings.Join(parts, " | ")
}

// estimateSessionETA projects the remaining wall time from the observed
// throughput of the session so far.
func estimateSessionETA(elapsed time.Duration, completed, total int) string {
	if total <= 0 || completed <= 0 {
		return ""
	}
	remaining := total - completed
	if remaining <= 0 {
		return "0m"
	}
	perJob := elapsed.Seconds() / float64(completed)
	return formatETASeconds(perJob * float64(remaining))
}

func formatETASeconds(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	secs := int64(math.Round(seconds))
	if secs < 60 {
		return "<1m"
	}
	minutes := secs / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	remMinutes := minutes % 60
	if hours < 24 {
		if remMinutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh %dm", hours, remMinutes)
	}
	days := hours / 24
	remHours := hours % 24
	if remHours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd %dh", days, remHours)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// lineReporter prints one line per start and completion, in the
// coordinator's order.
type lineReporter struct {
	dispatch.NopObserver
	out io.Writer
}

func newLineReporter(out io.Writer) *lineReporter {
	return &lineReporter{out: out}
}

func (r *lineReporter) OnSessionStart(info dispatch.SessionInfo) {
	fmt.Fprintf(r.out, "converting %d file(s) with %d worker(s)\n", info.Total, info.PoolSize)
}

func (r *lineReporter) OnJobStart(job model.Job) {
	fmt.Fprintf(r.out, "[P%d] converting %s\n", job.Slot, job.Spec.Filename())
}

func (r *lineReporter) OnJobDone(completed, submitted int, res model.JobResult) {
	if res.Succeeded {
		fmt.Fprintf(r.out, "[%d/%d] done %s (%s)\n", completed, submitted, res.Filename, formatSeconds(res.ElapsedSeconds()))
		return
	}
	fmt.Fprintf(r.out, "[%d/%d] failed %s: %s\n", completed, submitted, res.Filename, firstLine(res.Err))
}
