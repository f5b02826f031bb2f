package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"mediaconv/internal/model"
	"mediaconv/internal/runstore"
)

// Converter executes one conversion per call. It satisfies
// dispatch.Executor.
type Converter struct {
	Encoding      Encoding
	OutputDirName string
	// Outputs overrides the output path per input path, as planned by
	// PlanOutputPaths.
	Outputs map[string]string
	// LogDir receives one ffmpeg log per job when set.
	LogDir string
	// Probe enables ffprobe duration lookups for percentage progress.
	Probe  bool
	Logger hclog.Logger
}

// Execute converts spec.InputPath. The output is written under a partial
// name and renamed on success; on failure the partial file is removed so no
// truncated output is left behind. Elapsed is measured in every case.
func (c *Converter) Execute(ctx context.Context, spec model.JobSpec, report func(model.JobProgress)) model.JobResult {
	started := time.Now()
	logger := c.logger().With("file", spec.Filename())

	outPath := c.outputPath(spec)
	res := model.JobResult{
		Filename:   spec.Filename(),
		InputPath:  spec.InputPath,
		OutputPath: outPath,
		Format:     spec.Format,
	}
	fail := func(err error) model.JobResult {
		res.Succeeded = false
		res.Err = err.Error()
		res.Elapsed = time.Since(started)
		logger.Debug("conversion failed", "error", err)
		return res
	}

	if err := runstore.Mkdir(filepath.Dir(outPath)); err != nil {
		return fail(err)
	}
	partial, err := runstore.CreatePartial(outPath)
	if err != nil {
		return fail(err)
	}

	var duration time.Duration
	if c.Probe && report != nil {
		d, err := ProbeDuration(ctx, spec.InputPath)
		if err != nil {
			logger.Debug("duration probe failed", "error", err)
		} else {
			duration = d
		}
	}

	args, err := BuildArgs(spec.InputPath, partial, spec, c.Encoding)
	if err != nil {
		runstore.Discard(partial)
		return fail(err)
	}

	logFile, err := c.openLog(outPath)
	if err != nil {
		runstore.Discard(partial)
		return fail(err)
	}
	if logFile != nil {
		defer func() {
			_ = logFile.Close()
		}()
		_, _ = fmt.Fprintf(logFile, "$ ffmpeg %s\n", strings.Join(args, " "))
	}

	parser := newProgressParser(duration)
	opts := runOptions{
		OnLine: func(stream OutputStream, line string) {
			if stream != StreamStdout || report == nil {
				return
			}
			if snap, ok := parser.Feed(line); ok {
				report(snap)
			}
		},
	}
	if logFile != nil {
		opts.LogWriter = logFile
	}

	logger.Debug("running ffmpeg", "args", args)
	if err := runCommand(ctx, "ffmpeg", args, opts); err != nil {
		runstore.Discard(partial)
		return fail(err)
	}

	size, err := runstore.CommitFile(partial, outPath)
	if err != nil {
		return fail(err)
	}
	res.Succeeded = true
	res.OutputSize = size
	res.Elapsed = time.Since(started)
	return res
}

func (c *Converter) outputPath(spec model.JobSpec) string {
	if p, ok := c.Outputs[spec.InputPath]; ok && p != "" {
		return p
	}
	return OutputPath(spec.InputPath, c.OutputDirName, spec.Format)
}

func (c *Converter) logger() hclog.Logger {
	if c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}

func (c *Converter) openLog(outPath string) (*os.File, error) {
	dir := strings.TrimSpace(c.LogDir)
	if dir == "" {
		return nil, nil
	}
	if err := runstore.Mkdir(dir); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, filepath.Base(outPath)+".log"))
	if err != nil {
		return nil, fmt.Errorf("create job log: %w", err)
	}
	return f, nil
}
