package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/vidframe/bufferpool"
	"github.com/e7canasta/vidframe/eventbus"
	"github.com/e7canasta/vidframe/producer"
	"github.com/e7canasta/vidframe/videoreader"
	"github.com/e7canasta/vidframe/videoreader/rtsp"
)

// runProducer drives a full VideoProducer over a pool with readerType
// forced to one of Auto (producer mode picks async-ring via the factory's
// probe), AsyncRing, or RTSP. It consumes filled buffers itself,
// releasing each straight back to free — there is no display attached
// in this command, only pipeline exercise and stats reporting.
func runProducer(ctx context.Context, cfg config, logger *slog.Logger, readerType videoreader.Type) error {
	const poolCapacity = 4

	var pool *bufferpool.Pool
	var err error
	if readerType == videoreader.RTSP {
		pool = bufferpool.NewDynamic("vidframed", "producer", poolCapacity)
	} else {
		frameSize := (cfg.width*cfg.height*cfg.bpp + 7) / 8
		pool, err = bufferpool.NewOwned(poolCapacity, frameSize, false, "vidframed", "producer")
		if err != nil {
			return fmt.Errorf("create buffer pool: %w", err)
		}
	}
	defer pool.Close()

	bus := eventbus.New()
	defer bus.Close()

	errCh := make(chan eventbus.Event, 8)
	if err := bus.Subscribe("cli", errCh); err != nil {
		return fmt.Errorf("subscribe to event bus: %w", err)
	}
	go func() {
		for evt := range errCh {
			logger.Warn("producer event", "kind", evt.Kind, "source", evt.Source, "data", evt.Data)
		}
	}()

	factory := videoreader.NewFactory()
	vp := producer.New(pool, factory, bus)

	pcfg := producer.Config{
		Path:        cfg.source,
		ReaderType:  readerType,
		ThreadCount: cfg.threads,
		Loop:        false,
	}
	if readerType == videoreader.RTSP {
		pcfg.RTSP = videoreader.CreateOptions{RTSP: rtsp.Config{
			Width:        cfg.width,
			Height:       cfg.height,
			BitsPerPixel: cfg.bpp,
			TargetFPS:    cfg.fps,
			Acceleration: parseAcceleration(cfg.acceleration),
		}}
	} else {
		pcfg.Width = cfg.width
		pcfg.Height = cfg.height
		pcfg.BitsPerPixel = cfg.bpp
	}

	if err := vp.Start(pcfg); err != nil {
		return fmt.Errorf("start producer: %w", err)
	}

	ticker := time.NewTicker(cfg.statsInterval)
	defer ticker.Stop()

	consumeCh := make(chan struct{})
	go consumeFilled(pool, consumeCh)
	defer close(consumeCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("producer stopping",
				"produced", vp.FramesProduced(),
				"skipped", vp.FramesSkipped(),
				"fps", vp.AverageFPS())
			return vp.Stop()
		case <-ticker.C:
			logger.Info("producer progress",
				"produced", vp.FramesProduced(),
				"skipped", vp.FramesSkipped(),
				"fps", vp.AverageFPS())
			if err := vp.LastError(); err != nil {
				logger.Error("producer worker error", "error", err)
			}
		}
	}
}

// consumeFilled drains the filled queue and releases each buffer back
// to free, standing in for a real consumer (a display device, an
// encoder) that this command doesn't attach.
func consumeFilled(pool *bufferpool.Pool, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		buf, err := pool.AcquireFilled(bufferpool.BlockingWithTimeout, 100*time.Millisecond)
		if err != nil || buf == nil {
			continue
		}
		pool.ReleaseFilled(buf)
	}
}

func parseAcceleration(s string) rtsp.Acceleration {
	switch s {
	case "vaapi":
		return rtsp.AccelVAAPI
	case "software":
		return rtsp.AccelSoftware
	default:
		return rtsp.AccelAuto
	}
}
