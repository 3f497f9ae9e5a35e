// Command vidframed drives a video source through the buffer-pool
// pipeline for interactive testing: a single mode flag selects between
// a plain sequential read, a looping read, a fully concurrent
// VideoProducer over a memory-mapped or async-ring source, and an RTSP
// source.
//
// Grounded on examples/orion-pipeline/main.go's flag parsing, signal
// handling, and banner/stats layout, retargeted from the RTSP-only
// pipeline demo to the mode-selectable surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/vidframe/videoreader"
)

const version = "v0.1.0"

// mode selects which of the five run paths main dispatches to.
type mode string

const (
	modeLoop       mode = "loop"
	modeSequential mode = "sequential"
	modeProducer   mode = "producer"
	modeIOURing    mode = "iouring"
	modeRTSP       mode = "rtsp"
)

// config collects every flag vidframed accepts. Only a subset applies
// to any one mode; unused fields are simply ignored.
type config struct {
	mode   mode
	source string

	width  int
	height int
	bpp    int

	threads int

	fps          float64
	acceleration string

	statsInterval time.Duration
	debug         bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidframed: %v\n", err)
		usage()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping gracefully")
		cancel()
	}()

	printBanner(cfg)

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("vidframed stopped")
}

func parseFlags(args []string) (config, error) {
	fs := flag.NewFlagSet("vidframed", flag.ContinueOnError)
	fs.Usage = usage

	var cfg config
	var modeStr string
	fs.StringVar(&modeStr, "m", string(modeLoop), "mode: loop | sequential | producer | iouring | rtsp")
	fs.StringVar(&modeStr, "mode", string(modeLoop), "mode: loop | sequential | producer | iouring | rtsp")

	fs.IntVar(&cfg.width, "width", 0, "frame width, required for raw file modes")
	fs.IntVar(&cfg.height, "height", 0, "frame height, required for raw file modes")
	fs.IntVar(&cfg.bpp, "bpp", 24, "bits per pixel, required for raw file modes")
	fs.IntVar(&cfg.threads, "threads", 1, "worker thread count for producer/iouring modes")
	fs.Float64Var(&cfg.fps, "fps", 30, "target FPS for rtsp mode")
	fs.StringVar(&cfg.acceleration, "accel", "auto", "rtsp decode acceleration: auto | vaapi | software")
	var statsIntervalSec int
	fs.IntVar(&statsIntervalSec, "stats-interval", 5, "statistics reporting interval in seconds")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	switch mode(modeStr) {
	case modeLoop, modeSequential, modeProducer, modeIOURing, modeRTSP:
		cfg.mode = mode(modeStr)
	default:
		return config{}, fmt.Errorf("invalid mode %q", modeStr)
	}

	if fs.NArg() != 1 {
		return config{}, fmt.Errorf("expected exactly one <source> argument, got %d", fs.NArg())
	}
	cfg.source = fs.Arg(0)

	if cfg.width <= 0 || cfg.height <= 0 {
		return config{}, fmt.Errorf("--width and --height are required for mode %q", cfg.mode)
	}
	if cfg.threads < 1 {
		return config{}, fmt.Errorf("--threads must be >= 1")
	}

	cfg.statsInterval = time.Duration(statsIntervalSec) * time.Second
	return cfg, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: vidframed [options] <source>

  -h, --help
  -m, --mode {loop | sequential | producer | iouring | rtsp}   default: loop
  <source>: file path for loop/sequential/producer/iouring; RTSP URL for rtsp

Environment variables:
  VIDEO_READER_TYPE  overrides factory auto-selection (mmap, iouring, direct-read)`)
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	switch cfg.mode {
	case modeSequential:
		return runSequential(ctx, cfg, logger)
	case modeLoop:
		return runLoop(ctx, cfg, logger)
	case modeProducer:
		return runProducer(ctx, cfg, logger, videoreader.Auto)
	case modeIOURing:
		return runProducer(ctx, cfg, logger, videoreader.AsyncRing)
	case modeRTSP:
		return runProducer(ctx, cfg, logger, videoreader.RTSP)
	default:
		return fmt.Errorf("unhandled mode %q", cfg.mode)
	}
}

func printBanner(cfg config) {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  vidframed %-53s ║\n", version)
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("  Mode:    %s\n", cfg.mode)
	fmt.Printf("  Source:  %s\n", cfg.source)
	if cfg.mode != modeRTSP {
		fmt.Printf("  Geometry: %dx%d @ %d bpp\n", cfg.width, cfg.height, cfg.bpp)
	}
	if cfg.mode == modeProducer || cfg.mode == modeIOURing {
		fmt.Printf("  Threads: %d\n", cfg.threads)
	}
	fmt.Println("Press Ctrl+C to stop gracefully")
	fmt.Println()
}
