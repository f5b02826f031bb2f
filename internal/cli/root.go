package cli

import (
	"fmt"
	"os"
	"strings"
)

func Run(args []string) error {
	if len(args) == 0 {
		if stdinIsTTY() {
			return runInteractive(nil)
		}
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "convert":
		return runConvert(args[1:])
	case "interactive", "wizard":
		return runInteractive(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "history":
		return runHistory(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	}

	// Dropping files onto the binary passes bare paths.
	if looksLikePaths(args) {
		return runConvert(args)
	}
	printRootUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

func looksLikePaths(args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if _, err := os.Stat(strings.Trim(strings.TrimSpace(a), `"'`)); err == nil {
			return true
		}
	}
	return false
}

func printRootUsage() {
	fmt.Println("mediaconv: parallel batch media converter (ffmpeg)")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  mediaconv                          interactive wizard (on a terminal)")
	fmt.Println("  mediaconv convert ~/Videos/*.mkv")
	fmt.Println("  mediaconv convert --format mp3 --workers 4 ./lectures")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  convert      convert files and folders in parallel")
	fmt.Println("  interactive  guided wizard: paths, workers, format, confirm")
	fmt.Println("  watch        convert new files as they land in watched folders")
	fmt.Println("  doctor       run dependency and filesystem preflight checks")
	fmt.Println("  settings     show/update persistent defaults")
	fmt.Println("  history      list recent conversion sessions")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Bare paths are treated as 'convert <paths>'")
	fmt.Println("  - Outputs are written to a 'converted' folder next to each input")
	fmt.Println("  - Use --json on commands for machine-readable output")
}
