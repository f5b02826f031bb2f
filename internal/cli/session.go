package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"mediaconv/internal/config"
	"mediaconv/internal/discovery"
	"mediaconv/internal/dispatch"
	"mediaconv/internal/ffmpeg"
	"mediaconv/internal/history"
	"mediaconv/internal/model"
	"mediaconv/internal/runstore"
)

var errJobsFailed = errors.New("one or more conversions failed")

type sessionRequest struct {
	Inputs        []string
	Settings      config.Settings
	Format        model.TargetFormat
	HardwareAccel bool
	WorkersFlag   int
	Recursive     bool
	AssumeYes     bool
	Progress      bool
	JSON          bool
	ReportPath    string
	LogDir        string
	NoHistory     bool
	Logger        hclog.Logger
}

type sessionOutcome struct {
	Summary      dispatch.Summary
	Workers      int
	WorkerSource config.WorkerSource
	OutputDirs   []string
	Collected    discovery.CollectResult
}

// runSession performs one full conversion session: preflight, collection,
// confirmation, dispatch, history and reporting.
func runSession(ctx context.Context, req sessionRequest) (sessionOutcome, error) {
	log := req.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	var out sessionOutcome

	if err := ffmpeg.CheckDependencies(ctx); err != nil {
		if errors.Is(err, ffmpeg.ErrToolUnavailable) {
			return out, fmt.Errorf("%w (install ffmpeg and make sure it is on PATH; run 'mediaconv doctor')", err)
		}
		return out, err
	}

	collected, err := discovery.Collect(req.Inputs, discovery.CollectOptions{
		Extensions:  req.Settings.Extensions,
		Recursive:   req.Recursive,
		SkipDirName: req.Settings.OutputDirName,
	})
	if err != nil {
		return out, err
	}
	out.Collected = collected
	for _, p := range collected.Missing {
		log.Warn("input not found", "path", p)
	}
	for _, p := range collected.Ignored {
		log.Info("skipping unsupported file", "path", p)
	}
	if len(collected.Files) == 0 {
		return out, fmt.Errorf("no media files found (extensions: %s)", strings.Join(req.Settings.Extensions, ", "))
	}

	specs := model.BuildJobs(collected.Files, req.Format, req.HardwareAccel)
	workers, source := config.ResolveWorkers(req.WorkersFlag, req.Settings, dispatch.AvailableUnits())
	out.Workers = workers
	out.WorkerSource = source
	out.OutputDirs = outputDirs(specs, req.Settings.OutputDirName)
	outputs := ffmpeg.PlanOutputPaths(specs, req.Settings.OutputDirName)
	for _, s := range specs {
		if p := outputs[s.InputPath]; p != ffmpeg.OutputPath(s.InputPath, req.Settings.OutputDirName, s.Format) {
			log.Info("output renamed to avoid a name clash", "file", s.Filename(), "output", filepath.Base(p))
		}
	}

	if !req.AssumeYes {
		printPlan(specs, workers, source, req)
		ok, err := promptConfirm("start conversion? [y/N]: ")
		if err != nil {
			return out, err
		}
		if !ok {
			return out, errors.New("conversion cancelled")
		}
	}

	sessionID := uuid.NewString()
	locks, err := runstore.AcquireBatchLocks(out.OutputDirs, sessionID)
	if err != nil {
		return out, err
	}
	defer func() {
		if err := locks.Release(); err != nil {
			log.Warn("release output lock", "error", err)
		}
	}()

	var observer dispatch.Observer
	switch {
	case req.Progress && stdoutIsTTY() && !req.JSON:
		observer = newSessionDashboard(os.Stdout, dashboardRefresh)
	case req.JSON:
		observer = dispatch.NopObserver{}
	default:
		observer = newLineReporter(os.Stdout)
	}

	conv := &ffmpeg.Converter{
		Encoding:      req.Settings.Encoding(),
		OutputDirName: req.Settings.OutputDirName,
		Outputs:       outputs,
		LogDir:        strings.TrimSpace(req.LogDir),
		Probe:         req.Progress,
		Logger:        log.Named("ffmpeg"),
	}
	summary, err := dispatch.Run(ctx, specs, conv, dispatch.Options{
		PoolSize:  workers,
		SessionID: sessionID,
		Observer:  observer,
		Logger:    log.Named("dispatch"),
	})
	if err != nil {
		return out, err
	}
	out.Summary = summary

	if !req.NoHistory && !req.Settings.NoHistory {
		// an interrupted session is still recorded
		if err := recordHistory(context.WithoutCancel(ctx), req.Settings.HistoryPath, summary, req.Format); err != nil {
			log.Warn("history not recorded", "error", err)
		}
	}

	report := newSessionReport(out, req)
	if p := strings.TrimSpace(req.ReportPath); p != "" {
		path := reportFilePath(p, summary)
		if err := runstore.WriteJSON(path, report); err != nil {
			return out, err
		}
		log.Info("session report written", "path", path)
	}

	if req.JSON {
		if err := printJSON(report); err != nil {
			return out, err
		}
	} else {
		fmt.Print(renderFinalReport(summary, req.Settings.OutputDirName))
	}

	switch {
	case summary.Interrupted():
		return out, fmt.Errorf("interrupted: %d file(s) not converted", len(summary.Cancelled))
	case len(summary.Failed) > 0:
		return out, fmt.Errorf("%w (%d of %d)", errJobsFailed, len(summary.Failed), summary.Total)
	}
	return out, nil
}

func outputDirs(specs []model.JobSpec, dirName string) []string {
	seen := make(map[string]bool, len(specs))
	dirs := make([]string, 0, 1)
	for _, s := range specs {
		d := filepath.Dir(ffmpeg.OutputPath(s.InputPath, dirName, s.Format))
		if seen[d] {
			continue
		}
		seen[d] = true
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

func printPlan(specs []model.JobSpec, workers int, source config.WorkerSource, req sessionRequest) {
	fmt.Printf("files: %d\n", len(specs))
	fmt.Printf("format: %s\n", req.Format.Label())
	if !req.Format.IsAudio() {
		fmt.Printf("hardware acceleration: %s\n", yesNo(req.HardwareAccel))
	}
	fmt.Printf("workers: %d (%s)\n", workers, source)
	fmt.Printf("output folder: %s\n", req.Settings.OutputDirName)
}

func recordHistory(ctx context.Context, path string, summary dispatch.Summary, format model.TargetFormat) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()
	return store.Record(ctx, summary, format)
}

// reportFilePath writes into p directly unless p names an existing
// directory, in which case a timestamped file is created inside it.
func reportFilePath(p string, summary dispatch.Summary) string {
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return filepath.Join(p, runstore.ReportFileName(summary.StartedAt, summary.SessionID))
	}
	return p
}

type sessionReport struct {
	SessionID                string            `json:"session_id"`
	Format                   string            `json:"format"`
	HardwareAccel            bool              `json:"hardware_accel"`
	PoolSize                 int               `json:"pool_size"`
	WorkerSource             string            `json:"worker_source"`
	Total                    int               `json:"total"`
	Submitted                int               `json:"submitted"`
	Succeeded                int               `json:"succeeded"`
	Failed                   int               `json:"failed"`
	FailedFiles              []string          `json:"failed_files,omitempty"`
	NotStarted               []string          `json:"not_started,omitempty"`
	MaxActive                int               `json:"max_active"`
	ElapsedSeconds           float64           `json:"elapsed_seconds"`
	AverageSecondsPerSuccess *float64          `json:"average_seconds_per_success,omitempty"`
	OutputBytes              int64             `json:"output_bytes"`
	OutputDirName            string            `json:"output_dir_name"`
	MissingInputs            []string          `json:"missing_inputs,omitempty"`
	StartedAt                time.Time         `json:"started_at"`
	FinishedAt               time.Time         `json:"finished_at"`
	Results                  []model.JobResult `json:"results"`
}

func newSessionReport(o sessionOutcome, req sessionRequest) sessionReport {
	s := o.Summary
	r := sessionReport{
		SessionID:      s.SessionID,
		Format:         string(req.Format),
		HardwareAccel:  req.HardwareAccel && !req.Format.IsAudio(),
		PoolSize:       s.PoolSize,
		WorkerSource:   string(o.WorkerSource),
		Total:          s.Total,
		Submitted:      s.Submitted,
		Succeeded:      len(s.Succeeded),
		Failed:         len(s.Failed),
		FailedFiles:    s.FailedFilenames(),
		MaxActive:      s.MaxActive,
		ElapsedSeconds: s.ElapsedSeconds(),
		OutputBytes:    s.OutputBytes(),
		OutputDirName:  req.Settings.OutputDirName,
		MissingInputs:  o.Collected.Missing,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
		Results:        s.Results,
	}
	if avg, ok := s.AverageSecondsPerSuccess(); ok {
		r.AverageSecondsPerSuccess = &avg
	}
	for _, c := range s.Cancelled {
		r.NotStarted = append(r.NotStarted, c.Filename())
	}
	if r.Results == nil {
		r.Results = []model.JobResult{}
	}
	return r
}
