package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datecell/internal/config"
	appLog "datecell/internal/log"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	mode       string
	cellID     string
	out        string
	now        string
	feed       string
	cacheDir   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("datecell starting",
		"version", version,
		"mode", flags.mode,
		"timezone", conf.Timezone,
		"cell_count", len(conf.Cells),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	var out io.Writer = os.Stdout
	if flags.out != "" && flags.out != "-" {
		f, err := os.Create(flags.out)
		if err != nil {
			appLog.Error("failed to open output", err, "out", flags.out)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := run(ctx, conf, flags, out); err != nil {
		appLog.Error("run failed", err, "mode", flags.mode)
		cancel()
		os.Exit(1)
	}
	appLog.Info("datecell exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "datecell.yaml", "Path to config file")
	flag.StringVar(&cfg.mode, "mode", modeExpand, "One of expand, progress, ics, watch, merge, import")
	flag.StringVar(&cfg.cellID, "cell", "", "Only use the cell with this id")
	flag.StringVar(&cfg.out, "out", "", "Write output to this file instead of stdout")
	flag.StringVar(&cfg.now, "now", "", "RFC3339 instant used as the current time")
	flag.StringVar(&cfg.feed, "feed", "", "ICS file path or URL read by import mode")
	flag.StringVar(&cfg.cacheDir, "cache", "", "Directory caching fetched ICS feeds")

	flag.Parse()

	return cfg
}

// fixedClock reports the same instant forever.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
