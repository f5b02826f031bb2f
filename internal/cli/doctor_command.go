package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"mediaconv/internal/config"
	"mediaconv/internal/discovery"
)

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
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
	res, err := discovery.Doctor(context.Background(), discovery.DoctorOptions{
		ConfigPath:  path,
		HistoryPath: s.HistoryPath,
		HWEncoder:   s.Video.HWEncoder,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		if !res.OK {
			return errors.New("doctor checks failed")
		}
		return nil
	}

	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
			if c.Optional {
				status = "warn"
			}
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}
