package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"mediaconv/internal/ffmpeg"
	"mediaconv/internal/runstore"
	"mediaconv/internal/watch"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	cf := registerConvertFlags(fs)
	settle := fs.Duration("settle", watch.DefaultSettle, "quiet period before a batch of new files is converted")
	report := fs.String("report", "", "directory receiving one session report JSON per batch")
	fs.SetOutput(flag.CommandLine.Output())
	dirs, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return errors.New("watch requires at least one folder")
	}

	base, err := cf.resolve(fs)
	if err != nil {
		return err
	}
	base.AssumeYes = true
	if err := ensureReportDir(*report); err != nil {
		return err
	}
	base.ReportPath = *report
	log := base.Logger.Named("watch")

	ctx, stop := interruptContext(base.Logger)
	defer stop()

	if err := ffmpeg.CheckDependencies(ctx); err != nil {
		return err
	}

	fmt.Printf("watching %d folder(s); press Ctrl+C to stop\n", len(dirs))
	err = watch.Run(ctx, dirs, watch.Options{
		Extensions:  base.Settings.Extensions,
		SkipDirName: base.Settings.OutputDirName,
		Settle:      *settle,
		Logger:      log,
	}, func(ctx context.Context, paths []string) error {
		req := base
		req.Inputs = paths
		fmt.Printf("\n%s: %d new file(s)\n", time.Now().Format("15:04:05"), len(paths))
		_, err := runSession(ctx, req)
		if err == nil {
			return nil
		}
		if errors.Is(err, ffmpeg.ErrToolUnavailable) {
			return err
		}
		log.Warn("batch finished with errors", "error", err)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println("watch stopped")
	return nil
}

// ensureReportDir creates the watch report directory. A file path would be
// overwritten by every batch, so it is refused.
func ensureReportDir(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil
	}
	info, err := os.Stat(p)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("--report must be a directory in watch mode: %s", p)
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return runstore.Mkdir(p)
	default:
		return err
	}
}
