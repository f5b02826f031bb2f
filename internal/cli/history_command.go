package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"mediaconv/internal/config"
	"mediaconv/internal/history"
)

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configFlag := fs.String("config", "", "settings file path")
	dbPath := fs.String("db", "", "history database (default from settings)")
	limit := fs.Int("limit", 10, "number of sessions to list")
	session := fs.String("session", "", "show every job of one session")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		s, err := config.Load(config.ResolvePath(*configFlag))
		if err != nil {
			return err
		}
		path = s.HistoryPath
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	if id := strings.TrimSpace(*session); id != "" {
		s, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(s)
		}
		printHistorySession(s)
		for _, j := range s.Jobs {
			status := "ok"
			if !j.Succeeded {
				status = "fail"
			}
			fmt.Printf("  %3d. [P%d] %-4s %s (%s)\n", j.Position, j.Slot, status, j.Filename, formatSeconds(float64(j.ElapsedMS)/1000))
			if j.Error != "" {
				fmt.Printf("       %s\n", truncateRunes(firstLine(j.Error), 120))
			}
		}
		return nil
	}

	sessions, err := store.Recent(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"history_path": path,
			"sessions":     sessions,
		})
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded yet")
		return nil
	}
	for _, s := range sessions {
		printHistorySession(s)
	}
	return nil
}

func printHistorySession(s history.Session) {
	line := fmt.Sprintf("%s  %s  %-5s  ok %d/%d  failed %d  workers %d  %s",
		s.StartedAt.Local().Format("2006-01-02 15:04"),
		s.ID,
		s.Format,
		s.Succeeded, s.Total,
		s.Failed,
		s.PoolSize,
		formatSeconds(s.Elapsed().Seconds()),
	)
	if s.Cancelled > 0 {
		line += fmt.Sprintf("  not started %d", s.Cancelled)
	}
	if s.OutputSize > 0 {
		line += "  " + formatBytesIEC(s.OutputSize)
	}
	fmt.Println(line)
}
