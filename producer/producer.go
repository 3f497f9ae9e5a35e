package producer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/vidframe/buffer"
	"github.com/e7canasta/vidframe/bufferpool"
	"github.com/e7canasta/vidframe/eventbus"
	"github.com/e7canasta/vidframe/videoreader"
)

// consecutiveFailureLimit is how many back-to-back read failures a
// single worker tolerates before it reports an error and stops.
const consecutiveFailureLimit = 10

// acquireTimeout bounds how long a worker waits for a free buffer
// before checking whether the producer has been asked to stop.
const acquireTimeout = 100 * time.Millisecond

var (
	ErrAlreadyRunning = errors.New("producer: already running")
	ErrNotRunning     = errors.New("producer: not running")
	ErrEmptyPath      = errors.New("producer: path is empty")
	ErrInvalidThreads = errors.New("producer: thread count must be >= 1")
	ErrFrameSizeMismatch = errors.New("producer: pool buffer size does not match reader frame size")
)

// Config describes one production run: which source to read, how many
// worker goroutines pull frames concurrently, and whether the frame
// index wraps around once the source is exhausted.
type Config struct {
	Path         string
	ReaderType   videoreader.Type
	ThreadCount  int
	Loop         bool
	Width        int
	Height       int
	BitsPerPixel int
	RTSP         videoreader.CreateOptions
}

// VideoProducer wires a videoreader.Reader to a bufferpool.Pool: it
// owns neither, it only drives frames from one into the other.
//
// Grounded on source/producer/VideoProducer.cpp's worker pool: a
// shared atomic next-frame-index, per-worker consecutive-failure
// tracking, and a single-shot CAS reset of the index once it drifts
// past twice the source's frame count.
type VideoProducer struct {
	pool    *bufferpool.Pool
	factory *videoreader.Factory
	bus     eventbus.Bus

	cfg    Config
	reader videoreader.Reader

	running atomic.Bool
	wg      sync.WaitGroup

	nextFrameIndex atomic.Uint64
	produced       atomic.Uint64
	skipped        atomic.Uint64

	mu        sync.Mutex
	lastError error
	startedAt time.Time
}

// New constructs a producer bound to pool and, when non-nil, publishes
// telemetry events to bus. factory resolves the reader implementation
// for a Start call's requested type.
func New(pool *bufferpool.Pool, factory *videoreader.Factory, bus eventbus.Bus) *VideoProducer {
	return &VideoProducer{pool: pool, factory: factory, bus: bus}
}

// Start opens the configured source, reconciles its frame size against
// the pool, and launches the worker goroutines. It returns once the
// reader is open and workers are running; it does not block until
// production finishes.
func (vp *VideoProducer) Start(cfg Config) error {
	if cfg.Path == "" {
		return ErrEmptyPath
	}
	if cfg.ThreadCount < 1 {
		return ErrInvalidThreads
	}
	if !vp.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	reader, err := vp.factory.Create(cfg.ReaderType, cfg.RTSP)
	if err != nil {
		vp.running.Store(false)
		return fmt.Errorf("producer: create reader: %w", err)
	}

	if cfg.Width > 0 || cfg.Height > 0 {
		err = reader.OpenRaw(cfg.Path, cfg.Width, cfg.Height, cfg.BitsPerPixel)
	} else {
		err = reader.Open(cfg.Path)
	}
	if err != nil {
		vp.running.Store(false)
		return fmt.Errorf("producer: open %q: %w", cfg.Path, err)
	}

	if vp.pool.GetBufferSize() == 0 {
		if err := vp.pool.SetBufferSize(reader.GetFrameSize()); err != nil {
			reader.Close()
			vp.running.Store(false)
			return fmt.Errorf("producer: set buffer size: %w", err)
		}
	} else if vp.pool.GetBufferSize() != reader.GetFrameSize() {
		reader.Close()
		vp.running.Store(false)
		return fmt.Errorf("%w: pool=%d reader=%d", ErrFrameSizeMismatch, vp.pool.GetBufferSize(), reader.GetFrameSize())
	}

	reader.SetBufferPool(vp.pool)

	vp.cfg = cfg
	vp.reader = reader
	vp.nextFrameIndex.Store(0)
	vp.produced.Store(0)
	vp.skipped.Store(0)
	vp.startedAt = time.Now()

	total := reader.GetTotalFrames()
	if total == videoreader.InfiniteFrames {
		// The reader drives its own delivery via SetBufferPool
		// injection (RTSP); no worker loop is needed here.
		return nil
	}

	for i := 0; i < cfg.ThreadCount; i++ {
		vp.wg.Add(1)
		go vp.workerLoop(i, total)
	}
	return nil
}

// Stop signals every worker to exit, waits for them, and closes the
// reader. It is safe to call even if the reader is injection-driven
// and no workers were started.
func (vp *VideoProducer) Stop() error {
	if !vp.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	vp.wg.Wait()
	if vp.reader != nil {
		return vp.reader.Close()
	}
	return nil
}

func (vp *VideoProducer) workerLoop(workerID int, total uint64) {
	defer vp.wg.Done()
	consecutiveFailures := 0

	for vp.running.Load() {
		i := vp.nextFrameIndex.Add(1) - 1
		if i >= total {
			if !vp.cfg.Loop {
				return
			}
			loopIndex := i % total
			if i > 2*total {
				vp.nextFrameIndex.CompareAndSwap(i+1, loopIndex+1)
			}
			i = loopIndex
		}

		buf, err := vp.acquireUntilStopped()
		if buf == nil {
			return // producer stopped while waiting
		}
		if err != nil {
			vp.recordError(workerID, fmt.Errorf("acquire free buffer: %w", err))
			return
		}

		if err := vp.reader.ReadFrameAtThreadSafe(i, buf.VirtualAddress()); err != nil {
			vp.pool.CancelAcquire(buf)
			vp.skipped.Add(1)
			consecutiveFailures++
			if consecutiveFailures > consecutiveFailureLimit {
				vp.recordError(workerID, fmt.Errorf("worker %d: %d consecutive read failures: %w", workerID, consecutiveFailures, err))
				return
			}
			continue
		}
		consecutiveFailures = 0

		if err := vp.pool.SubmitFilled(buf); err != nil {
			vp.recordError(workerID, fmt.Errorf("submit filled buffer: %w", err))
			return
		}
		vp.produced.Add(1)
	}
}

// acquireUntilStopped retries AcquireFree until it gets a buffer or the
// producer is asked to stop, matching the origin worker's spin-with-
// timeout wait for a free slot.
func (vp *VideoProducer) acquireUntilStopped() (*buffer.Buffer, error) {
	for vp.running.Load() {
		buf, err := vp.pool.AcquireFree(bufferpool.BlockingWithTimeout, acquireTimeout)
		if err != nil {
			return nil, err
		}
		if buf != nil {
			return buf, nil
		}
	}
	return nil, nil
}

func (vp *VideoProducer) recordError(workerID int, err error) {
	vp.mu.Lock()
	vp.lastError = err
	vp.mu.Unlock()
	slog.Error("producer worker failed", "worker", workerID, "error", err)
	if vp.bus != nil {
		vp.bus.Publish(eventbus.Event{
			Kind:      "producer.error",
			Source:    fmt.Sprintf("worker-%d", workerID),
			Seq:       vp.produced.Load(),
			Timestamp: time.Now(),
			Data:      err.Error(),
		})
	}
}

// LastError returns the most recent worker error, or nil.
func (vp *VideoProducer) LastError() error {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	return vp.lastError
}

// FramesProduced returns the number of frames successfully submitted.
func (vp *VideoProducer) FramesProduced() uint64 { return vp.produced.Load() }

// FramesSkipped returns the number of frames that failed to read and
// were cancelled back to the pool.
func (vp *VideoProducer) FramesSkipped() uint64 { return vp.skipped.Load() }

// AverageFPS reports the mean submission rate since Start.
func (vp *VideoProducer) AverageFPS() float64 {
	elapsed := time.Since(vp.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(vp.produced.Load()) / elapsed
}
