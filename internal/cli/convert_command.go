package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"mediaconv/internal/config"
	"mediaconv/internal/logging"
	"mediaconv/internal/model"
)

type convertFlags struct {
	config    *string
	format    *string
	hw        *bool
	workers   *int
	recursive *bool
	logDir    *string
	noHistory *bool
	logLevel  *string
	verbose   *bool
}

func registerConvertFlags(fs *flag.FlagSet) convertFlags {
	return convertFlags{
		config:    fs.String("config", "", "settings file (default $MEDIACONV_CONFIG or ~/.config/mediaconv/config.yaml)"),
		format:    fs.String("format", "", "target format: video|mp3|ac3 (empty uses settings)"),
		hw:        fs.Bool("hw", false, "use the configured hardware video encoder"),
		workers:   fs.Int("workers", 0, "parallel conversions, clamped to 1..8 (0 = settings or recommended)"),
		recursive: fs.Bool("recursive", false, "descend into subfolders of folder inputs"),
		logDir:    fs.String("log-dir", "", "write one ffmpeg log per file into this directory"),
		noHistory: fs.Bool("no-history", false, "do not record the session in the history database"),
		logLevel:  fs.String("log-level", "", "log level: trace|debug|info|warn|error"),
		verbose:   fs.Bool("verbose", false, "shorthand for --log-level debug"),
	}
}

// resolve merges explicitly set flags over the loaded settings.
func (f convertFlags) resolve(fs *flag.FlagSet) (sessionRequest, error) {
	settings, err := config.Load(config.ResolvePath(*f.config))
	if err != nil {
		return sessionRequest{}, err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	format := settings.TargetFormat()
	if strings.TrimSpace(*f.format) != "" {
		format, err = model.ParseTargetFormat(*f.format)
		if err != nil {
			return sessionRequest{}, err
		}
	}
	hw := settings.HardwareAccel
	if set["hw"] {
		hw = *f.hw
	}
	recursive := settings.Recursive
	if set["recursive"] {
		recursive = *f.recursive
	}
	if *f.workers < 0 {
		return sessionRequest{}, errors.New("--workers must be >= 0")
	}
	logDir := settings.LogDir
	if strings.TrimSpace(*f.logDir) != "" {
		logDir = strings.TrimSpace(*f.logDir)
	}

	level := settings.LogLevel
	if strings.TrimSpace(*f.logLevel) != "" {
		if !logging.ValidLevel(*f.logLevel) {
			return sessionRequest{}, fmt.Errorf("unknown log level %q", *f.logLevel)
		}
		level = *f.logLevel
	}
	if *f.verbose {
		level = "debug"
	}

	return sessionRequest{
		Settings:      settings,
		Format:        format,
		HardwareAccel: hw,
		WorkersFlag:   *f.workers,
		Recursive:     recursive,
		LogDir:        logDir,
		NoHistory:     *f.noHistory,
		Logger:        logging.New(logging.Options{Level: level}),
	}, nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	cf := registerConvertFlags(fs)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	progress := fs.Bool("progress", false, "live dashboard (terminal only)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	report := fs.String("report", "", "write the session report JSON to this file (or into this directory)")
	fs.SetOutput(flag.CommandLine.Output())
	paths, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("convert requires at least one file or folder")
	}

	req, err := cf.resolve(fs)
	if err != nil {
		return err
	}
	req.Inputs = paths
	req.AssumeYes = *yes || *jsonOut
	req.Progress = *progress
	req.JSON = *jsonOut
	req.ReportPath = strings.TrimSpace(*report)

	ctx, stop := interruptContext(req.Logger)
	defer stop()
	_, err = runSession(ctx, req)
	return err
}

// parseInterspersed lets flags follow positional paths.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// interruptContext is cancelled on the first SIGINT/SIGTERM. Running
// conversions finish; pending ones are not started. A second signal gets
// the default behaviour and terminates the process.
func interruptContext(log hclog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			signal.Stop(sigCh)
			if log != nil {
				log.Warn("interrupt received; waiting for running conversions to finish")
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
