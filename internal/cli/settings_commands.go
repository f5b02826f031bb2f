package cli

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"mediaconv/internal/config"
	"mediaconv/internal/dispatch"
	"mediaconv/internal/ffmpeg"
	"mediaconv/internal/logging"
	"mediaconv/internal/model"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	configFlag := fs.String("config", "", "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := config.ResolvePath(*configFlag)
	s, err := config.Load(path)
	if err != nil {
		return err
	}
	units := dispatch.AvailableUnits()
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path":         path,
			"settings":            s,
			"cpu_threads":         units,
			"recommended_workers": dispatch.RecommendedWorkers(units),
		})
	}
	printSettings(path, s, units)
	return nil
}

func printSettings(path string, s config.Settings, units int) {
	workers := fmt.Sprintf("%d", s.Workers)
	if s.Workers == 0 {
		workers = fmt.Sprintf("auto (%d for %d CPU threads)", dispatch.RecommendedWorkers(units), units)
	}
	fmt.Printf("config: %s\n", path)
	fmt.Printf("workers: %s\n", workers)
	fmt.Printf("format: %s\n", s.TargetFormat().Label())
	fmt.Printf("hardware_accel: %s (%s)\n", yesNo(s.HardwareAccel), s.Video.HWEncoder)
	fmt.Printf("extensions: %s\n", strings.Join(s.Extensions, ", "))
	fmt.Printf("output_dir_name: %s\n", s.OutputDirName)
	fmt.Printf("recursive: %s\n", yesNo(s.Recursive))
	fmt.Printf("video: crf=%d preset=%s audio=%s\n", s.Video.CRF, s.Video.Preset, s.Video.AudioBitrate)
	fmt.Printf("mp3: %s @ %d Hz\n", s.Audio.MP3Bitrate, s.Audio.MP3SampleRate)
	fmt.Printf("ac3: %s @ %d Hz\n", s.Audio.AC3Bitrate, s.Audio.AC3SampleRate)
	fmt.Printf("log_level: %s\n", s.LogLevel)
	fmt.Printf("history: %s\n", s.HistoryPath)
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	configFlag := fs.String("config", "", "settings file path")
	workers := fs.Int("workers", -1, "default workers (0 = recommended, max 8, -1 keeps current)")
	format := fs.String("format", "", "default format: video|mp3|ac3")
	hw := fs.Bool("hw", false, "enable hardware video encoding by default")
	hwEncoder := fs.String("hw-encoder", "", "hardware encoder: "+strings.Join(ffmpeg.HardwareEncoders(), "|"))
	extensions := fs.String("extensions", "", "comma separated input extensions")
	outputDirName := fs.String("output-dir-name", "", "name of the output folder created next to inputs")
	recursive := fs.Bool("recursive", false, "descend into subfolders by default")
	crf := fs.Int("crf", -1, "libx264 CRF 0..51 (-1 keeps current)")
	preset := fs.String("preset", "", "libx264 preset")
	videoAudio := fs.String("video-audio-bitrate", "", "AAC bitrate for video outputs")
	mp3Bitrate := fs.String("mp3-bitrate", "", "MP3 bitrate")
	ac3Bitrate := fs.String("ac3-bitrate", "", "AC3 bitrate")
	logLevel := fs.String("log-level", "", "log level: trace|debug|info|warn|error")
	historyPath := fs.String("history-path", "", "history database path")
	noHistory := fs.Bool("no-history", false, "disable session history")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	path := config.ResolvePath(*configFlag)
	s, err := config.Load(path)
	if err != nil {
		return err
	}

	if *workers != -1 {
		if *workers < 0 || *workers > dispatch.MaxWorkers {
			return fmt.Errorf("--workers must be between 0 and %d", dispatch.MaxWorkers)
		}
		s.Workers = *workers
	}
	if strings.TrimSpace(*format) != "" {
		f, err := model.ParseTargetFormat(*format)
		if err != nil {
			return err
		}
		s.Format = string(f)
	}
	if set["hw"] {
		s.HardwareAccel = *hw
	}
	if v := strings.TrimSpace(*hwEncoder); v != "" {
		if !slices.Contains(ffmpeg.HardwareEncoders(), v) {
			return fmt.Errorf("--hw-encoder must be one of %s", strings.Join(ffmpeg.HardwareEncoders(), ", "))
		}
		s.Video.HWEncoder = v
	}
	if v := strings.TrimSpace(*extensions); v != "" {
		s.Extensions = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(*outputDirName); v != "" {
		if strings.ContainsAny(v, `/\`) {
			return errors.New("--output-dir-name must be a plain folder name")
		}
		s.OutputDirName = v
	}
	if set["recursive"] {
		s.Recursive = *recursive
	}
	if *crf != -1 {
		if *crf < 0 || *crf > 51 {
			return errors.New("--crf must be between 0 and 51")
		}
		s.Video.CRF = *crf
	}
	if v := strings.TrimSpace(*preset); v != "" {
		s.Video.Preset = v
	}
	if v := strings.TrimSpace(*videoAudio); v != "" {
		s.Video.AudioBitrate = v
	}
	if v := strings.TrimSpace(*mp3Bitrate); v != "" {
		s.Audio.MP3Bitrate = v
	}
	if v := strings.TrimSpace(*ac3Bitrate); v != "" {
		s.Audio.AC3Bitrate = v
	}
	if v := strings.TrimSpace(*logLevel); v != "" {
		if !logging.ValidLevel(v) {
			return fmt.Errorf("unknown log level %q", v)
		}
		s.LogLevel = v
	}
	if v := strings.TrimSpace(*historyPath); v != "" {
		s.HistoryPath = v
	}
	if set["no-history"] {
		s.NoHistory = *noHistory
	}

	saved, err := config.Save(path, s)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    saved,
		})
	}
	fmt.Printf("updated settings in %s\n", path)
	printSettings(path, saved, dispatch.AvailableUnits())
	return nil
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show [--json]")
	fmt.Println("  settings set [--workers N] [--format video|mp3|ac3] [--hw] [--hw-encoder NAME]")
	fmt.Println("               [--extensions .mkv,.mp4] [--output-dir-name NAME] [--recursive]")
	fmt.Println("               [--crf N] [--preset NAME] [--video-audio-bitrate R]")
	fmt.Println("               [--mp3-bitrate R] [--ac3-bitrate R] [--log-level LEVEL]")
	fmt.Println("               [--history-path PATH] [--no-history]")
}
