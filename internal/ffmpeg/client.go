package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// ErrToolUnavailable means the transcoding tool cannot be invoked at all.
// It is fatal for a session and is checked before any job is built.
var ErrToolUnavailable = errors.New("transcoding tool unavailable")

type DependencyReport struct {
	FFmpegFound  bool   `json:"ffmpeg_found"`
	FFmpegPath   string `json:"ffmpeg_path,omitempty"`
	FFprobeFound bool   `json:"ffprobe_found"`
	FFprobePath  string `json:"ffprobe_path,omitempty"`
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	if path, err := exec.LookPath("ffprobe"); err == nil {
		report.FFprobeFound = true
		report.FFprobePath = path
	}
	return report
}

// CheckDependencies verifies ffmpeg is on PATH and answers -version.
// ffprobe is optional; without it progress has no percentage.
func CheckDependencies(ctx context.Context) error {
	report := DependencyStatus()
	if !report.FFmpegFound {
		return fmt.Errorf("%w: ffmpeg is not installed or not on PATH (https://ffmpeg.org/download.html)", ErrToolUnavailable)
	}
	cmd := exec.CommandContext(ctx, report.FFmpegPath, "-hide_banner", "-version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s -version failed: %v: %s", ErrToolUnavailable, report.FFmpegPath, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// HardwareEncoderAvailable reports whether this ffmpeg build lists encoder.
func HardwareEncoderAvailable(ctx context.Context, encoder string) (bool, error) {
	encoder = strings.TrimSpace(encoder)
	if encoder == "" {
		return false, nil
	}
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		return false, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	return encoderListed(string(out), encoder), nil
}

func encoderListed(listing, encoder string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}

type runOptions struct {
	LogWriter io.Writer
	OnLine    func(stream OutputStream, line string)
}

func runCommand(ctx context.Context, binary string, args []string, opts runOptions) error {
	cmd := exec.CommandContext(ctx, binary, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			if stream == StreamStderr {
				appendTail(&errBuf, line)
			}
			if opts.LogWriter != nil {
				_, _ = io.WriteString(opts.LogWriter, line+"\n")
			}
			mu.Unlock()

			if opts.OnLine != nil {
				opts.OnLine(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("%s failed: %w\n%s", binary, err, strings.TrimSpace(errBuf.String()))
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// appendTail keeps only the last maxKeep bytes written.
func appendTail(b *strings.Builder, line string) {
	const maxKeep = 4096
	next := b.String() + line + "\n"
	if len(next) > maxKeep {
		next = next[len(next)-maxKeep:]
	}
	b.Reset()
	b.WriteString(next)
}
