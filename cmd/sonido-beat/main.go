package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/RyanBlaney/sonido-beat/analysis"
	"github.com/RyanBlaney/sonido-beat/config"
	"github.com/RyanBlaney/sonido-beat/logging"
)

type options struct {
	file       string
	dir        string
	configPath string
	outPath    string
	workers    int
	verbose    bool
	logLevel   logging.Level
	noColor    bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// the report owns stdout unless -out is given
	var logger *logging.DefaultLogger
	switch {
	case opts.outPath == "":
		logger = logging.NewDefaultLoggerWithWriters(os.Stderr, os.Stderr)
	case opts.noColor:
		logger = logging.NewDefaultLoggerNoColor()
	default:
		logger = logging.NewDefaultLogger()
	}
	logger.SetLevel(opts.logLevel)
	if opts.verbose {
		logger.SetLevel(logging.DebugLevel)
	}
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logging.Fatal(err, "sonido-beat failed")
	}
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("sonido-beat", flag.ContinueOnError)
	fs.StringVar(&opts.file, "file", "", "analyze a single WAV or MP3 file")
	fs.StringVar(&opts.dir, "dir", "", "analyze every WAV and MP3 file under a directory")
	fs.StringVar(&opts.configPath, "config", "", "JSON analysis config (defaults when empty)")
	fs.StringVar(&opts.outPath, "out", "", "write the JSON report here instead of stdout")
	fs.IntVar(&opts.workers, "workers", 0, "files analyzed in parallel (0 = config value)")
	fs.BoolVar(&opts.verbose, "verbose", false, "debug logging (same as -log-level debug)")
	levelName := fs.String("log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colored log output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(*levelName)
	if err != nil {
		return nil, err
	}
	opts.logLevel = level
	if (opts.file == "") == (opts.dir == "") {
		return nil, fmt.Errorf("exactly one of -file or -dir is required")
	}
	if opts.workers < 0 {
		return nil, fmt.Errorf("-workers must not be negative")
	}
	return opts, nil
}

func run(ctx context.Context, opts *options) error {
	cfg := config.DefaultAnalysisConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	analyzer, err := analysis.NewAnalyzer(cfg, logging.GetGlobalLogger())
	if err != nil {
		return err
	}

	paths := []string{opts.file}
	if opts.dir != "" {
		if paths, err = analysis.FindAudioFiles(opts.dir); err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no audio files under %s", opts.dir)
		}
	}

	logging.Info("starting analysis", logging.Fields{
		"files":   len(paths),
		"workers": cfg.Workers,
	})

	report := analysis.NewBatchRunner(analyzer, cfg.Workers).Run(ctx, paths)

	out := io.Writer(os.Stdout)
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if report.Summary.Completed == 0 {
		return fmt.Errorf("all %d files failed", report.Summary.Files)
	}
	return nil
}
