package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TargetFormat is the closed set of conversion targets.
type TargetFormat string

const (
	FormatVideo TargetFormat = "video"
	FormatMP3   TargetFormat = "mp3"
	FormatAC3   TargetFormat = "ac3"
)

func AllFormats() []TargetFormat {
	return []TargetFormat{FormatVideo, FormatMP3, FormatAC3}
}

func ParseTargetFormat(raw string) (TargetFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "video", "mp4":
		return FormatVideo, nil
	case "mp3", "audio", "audio_mp3":
		return FormatMP3, nil
	case "ac3", "audio_ac3":
		return FormatAC3, nil
	default:
		return "", fmt.Errorf("invalid format %q (expected video, mp3, or ac3)", strings.TrimSpace(raw))
	}
}

func (f TargetFormat) Extension() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatAC3:
		return "ac3"
	default:
		return "mp4"
	}
}

func (f TargetFormat) IsAudio() bool {
	return f == FormatMP3 || f == FormatAC3
}

func (f TargetFormat) Label() string {
	switch f {
	case FormatMP3:
		return "MP3 (audio only)"
	case FormatAC3:
		return "AC3 (audio only)"
	default:
		return "MP4 (video)"
	}
}

// JobSpec is immutable once submitted.
type JobSpec struct {
	InputPath     string       `json:"input_path"`
	Format        TargetFormat `json:"format"`
	HardwareAccel bool         `json:"hardware_accel,omitempty"`
}

func (s JobSpec) Filename() string {
	return filepath.Base(s.InputPath)
}

// JobResult is the outcome of one job. Elapsed is always measured;
// OutputSize is only meaningful when Succeeded is true.
type JobResult struct {
	Filename   string        `json:"filename"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path,omitempty"`
	Format     TargetFormat  `json:"format"`
	Slot       int           `json:"slot"`
	Succeeded  bool          `json:"succeeded"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	OutputSize int64         `json:"output_size_bytes,omitempty"`
	Err        string        `json:"error,omitempty"`
}

func (r JobResult) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// JobProgress is a best-effort snapshot of a running tool invocation.
type JobProgress struct {
	OutTime  time.Duration `json:"out_time_ns"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Percent  float64       `json:"percent,omitempty"`
	Speed    string        `json:"speed,omitempty"`
	Bitrate  string        `json:"bitrate,omitempty"`
	Done     bool          `json:"done,omitempty"`
}

// Job is the dispatch-side view of a JobSpec.
type Job struct {
	Index  int     `json:"index"`
	Slot   int     `json:"slot"`
	Spec   JobSpec `json:"spec"`
	Status string  `json:"status"`
	Reason string  `json:"reason,omitempty"`
}

// BuildJobs creates one spec per input path. Hardware acceleration only
// applies to video output.
func BuildJobs(paths []string, format TargetFormat, hardwareAccel bool) []JobSpec {
	specs := make([]JobSpec, 0, len(paths))
	for _, p := range paths {
		specs = append(specs, JobSpec{
			InputPath:     p,
			Format:        format,
			HardwareAccel: hardwareAccel && !format.IsAudio(),
		})
	}
	return specs
}
