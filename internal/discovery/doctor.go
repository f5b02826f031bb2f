package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"mediaconv/internal/ffmpeg"
	"mediaconv/internal/runstore"
)

type DoctorOptions struct {
	ConfigPath  string
	HistoryPath string
	// HWEncoder is checked against the ffmpeg encoder list when set.
	HWEncoder string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message"`
}

func Doctor(ctx context.Context, opts DoctorOptions) (DoctorResult, error) {
	checks := make([]DoctorCheck, 0, 5)
	dep := ffmpeg.DependencyStatus()
	checks = append(checks, DoctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})
	checks = append(checks, DoctorCheck{
		Name:     "dependency:ffprobe",
		OK:       dep.FFprobeFound,
		Optional: true,
		Message:  dependencyMessage(dep.FFprobeFound, dep.FFprobePath, "ffprobe"),
	})

	if enc := strings.TrimSpace(opts.HWEncoder); enc != "" && dep.FFmpegFound {
		ok, err := ffmpeg.HardwareEncoderAvailable(ctx, enc)
		msg := enc + " listed by ffmpeg"
		if err != nil {
			msg = err.Error()
		} else if !ok {
			msg = enc + " not available in this ffmpeg build"
		}
		checks = append(checks, DoctorCheck{
			Name:     "encoder:" + enc,
			OK:       ok,
			Optional: true,
			Message:  msg,
		})
	}

	if p := strings.TrimSpace(opts.ConfigPath); p != "" {
		cfgOK, cfgMessage := ensureWritableDir(filepath.Dir(p))
		checks = append(checks, DoctorCheck{
			Name:    "directory:config",
			OK:      cfgOK,
			Message: cfgMessage,
		})
	}
	if p := strings.TrimSpace(opts.HistoryPath); p != "" {
		histOK, histMessage := ensureWritableDir(filepath.Dir(p))
		checks = append(checks, DoctorCheck{
			Name:     "directory:history",
			OK:       histOK,
			Optional: true,
			Message:  histMessage,
		})
	}

	ok := true
	for _, c := range checks {
		if !c.OK && !c.Optional {
			ok = false
			break
		}
	}

	return DoctorResult{OK: ok, Checks: checks}, nil
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "mediaconv-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
