package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/vidframe/videoreader"
)

// runSequential drives a single memory-mapped reader through the file
// once, front to back, with no pool or worker threads involved.
func runSequential(ctx context.Context, cfg config, logger *slog.Logger) error {
	reader, err := openDirectReader(cfg)
	if err != nil {
		return err
	}
	defer reader.Close()

	dest := make([]byte, reader.GetFrameSize())
	var frames uint64
	ticker := time.NewTicker(cfg.statsInterval)
	defer ticker.Stop()
	start := time.Now()

	for !reader.IsAtEnd() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			logger.Info("sequential progress", "frames", frames, "fps", fps(frames, start))
		default:
		}

		if err := reader.ReadFrameToBytes(dest); err != nil {
			return fmt.Errorf("read frame %d: %w", frames, err)
		}
		frames++
	}

	logger.Info("sequential complete", "frames", frames, "fps", fps(frames, start))
	return nil
}

// runLoop behaves like runSequential but wraps to the beginning at end
// of stream and keeps running until cancelled.
func runLoop(ctx context.Context, cfg config, logger *slog.Logger) error {
	reader, err := openDirectReader(cfg)
	if err != nil {
		return err
	}
	defer reader.Close()

	dest := make([]byte, reader.GetFrameSize())
	var frames uint64
	ticker := time.NewTicker(cfg.statsInterval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped", "frames", frames, "fps", fps(frames, start))
			return ctx.Err()
		case <-ticker.C:
			logger.Info("loop progress", "frames", frames, "fps", fps(frames, start))
		default:
		}

		if reader.IsAtEnd() {
			if err := reader.SeekToBegin(); err != nil {
				return fmt.Errorf("seek to begin: %w", err)
			}
		}
		if err := reader.ReadFrameToBytes(dest); err != nil {
			return fmt.Errorf("read frame %d: %w", frames, err)
		}
		frames++
	}
}

func openDirectReader(cfg config) (videoreader.Reader, error) {
	factory := videoreader.NewFactory()
	reader, err := factory.Create(videoreader.Mmap, videoreader.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("create reader: %w", err)
	}
	if err := reader.OpenRaw(cfg.source, cfg.width, cfg.height, cfg.bpp); err != nil {
		return nil, fmt.Errorf("open %q: %w", cfg.source, err)
	}
	return reader, nil
}

func fps(frames uint64, since time.Time) float64 {
	elapsed := time.Since(since).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(frames) / elapsed
}
