package rtsp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/vidframe/buffer"
	"github.com/e7canasta/vidframe/bufferpool"
	"github.com/e7canasta/vidframe/videoreader"
)

// DefaultRingCapacity is the buffered-mode ring's frame count when
// Config does not override it.
const DefaultRingCapacity = 4

// DefaultConnectTimeout bounds how long Open waits for a connection
// attempt to succeed (pipeline built and asked to go to PLAYING) before
// reporting a connection failure.
const DefaultConnectTimeout = 10 * time.Second

// Config parameterizes a Reader before Open is called.
type Config struct {
	Width          int
	Height         int
	BitsPerPixel   int // 32 -> BGRA, 24 -> BGR, else falls back to BGR
	TargetFPS      float64
	Acceleration   Acceleration
	RingCapacity   int
	ConnectTimeout time.Duration
}

// Reader implements videoreader.Reader over a live RTSP stream. It has
// two operating modes: buffered (frames queue in an internal
// frameRing until ReadFrameTo drains them) and injection (set via
// SetBufferPool, each decoded frame is pushed straight into a pool).
type Reader struct {
	cfg Config

	mu       sync.Mutex
	elements *PipelineElements
	pool     *bufferpool.Pool
	ring     *frameRing

	url    string
	isOpen atomic.Bool
	eof    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	frameCount        atomic.Uint64
	droppedInjection  atomic.Uint64
	reconnects        atomic.Uint32
	connected         atomic.Bool
	errNetwork        atomic.Uint64
	errCodec          atomic.Uint64
	errAuth           atomic.Uint64
	errUnknown        atomic.Uint64
}

var _ videoreader.Reader = (*Reader)(nil)

// New constructs an unopened RTSP reader.
func New(cfg Config) *Reader {
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = DefaultRingCapacity
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Reader{cfg: cfg, ring: newFrameRing(cfg.RingCapacity)}
}

func pixelFormat(bitsPerPixel int) string {
	switch bitsPerPixel {
	case 32:
		return "BGRA"
	case 24:
		return "BGR"
	default:
		return "BGR"
	}
}

// Open connects to the RTSP URL at path, blocking until the pipeline
// has been built and its switch to PLAYING requested, or until the
// retries fail or cfg.ConnectTimeout elapses, then returns while a
// background goroutine keeps the stream alive with exponential-backoff
// reconnection. It does not wait for the pipeline to actually reach
// PLAYING.
func (r *Reader) Open(path string) error {
	if path == "" {
		return fmt.Errorf("rtsp: empty URL")
	}
	if r.isOpen.Load() {
		return fmt.Errorf("rtsp: already open")
	}

	r.url = path
	r.ctx, r.cancel = context.WithCancel(context.Background())

	pipelineCfg := PipelineConfig{
		RTSPURL:      path,
		Width:        r.cfg.Width,
		Height:       r.cfg.Height,
		TargetFPS:    r.cfg.TargetFPS,
		PixelFormat:  pixelFormat(r.cfg.BitsPerPixel),
		Acceleration: r.cfg.Acceleration,
	}

	connected := make(chan error, 1)
	r.wg.Add(1)
	go r.runLifecycle(r.ctx, pipelineCfg, connected)

	select {
	case err := <-connected:
		if err != nil {
			r.cancel()
			r.wg.Wait()
			return err
		}
	case <-time.After(r.cfg.ConnectTimeout):
		r.cancel()
		r.wg.Wait()
		return fmt.Errorf("rtsp: timed out connecting to %s", path)
	}

	r.isOpen.Store(true)
	return nil
}

// OpenRaw is not meaningful for a live stream: geometry is negotiated
// from the stream itself, not supplied by the caller.
func (r *Reader) OpenRaw(path string, width, height, bppBits int) error {
	return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported)
}

func (r *Reader) runLifecycle(ctx context.Context, cfg PipelineConfig, connected chan<- error) {
	defer r.wg.Done()
	first := true

	for {
		if ctx.Err() != nil {
			return
		}

		err := runWithReconnect(ctx, func(c context.Context) error {
			return r.connect(cfg)
		}, DefaultReconnectConfig(), &r.reconnects)

		if first {
			connected <- err
			first = false
			if err != nil {
				return
			}
		} else if err != nil {
			slog.Error("rtsp: giving up reconnecting", "url", r.url, "error", err)
			r.eof.Store(true)
			return
		}

		r.mu.Lock()
		elements := r.elements
		r.mu.Unlock()

		monErr := r.monitorPipelineBus(ctx, elements.Pipeline)
		DestroyPipeline(elements)
		r.connected.Store(false)

		if monErr == nil {
			return
		}
		slog.Warn("rtsp: reconnecting after pipeline exit", "url", r.url, "error", monErr)
	}
}

// connect builds and starts one pipeline instance and wires its
// callbacks. It returns once the pipeline has been asked to play; the
// caller (runWithReconnect) treats a build/link/state-change failure as
// a connection failure to retry.
func (r *Reader) connect(cfg PipelineConfig) error {
	elements, err := CreatePipeline(cfg)
	if err != nil {
		return err
	}

	var depayElement *gst.Element
	pipelineElements, _ := elements.Pipeline.GetElements()
	for _, elem := range pipelineElements {
		if elem.GetFactory() != nil && elem.GetFactory().GetName() == "rtph264depay" {
			depayElement = elem
			break
		}
	}
	if depayElement != nil {
		elements.RTSPSrc.Connect("pad-added", func(el *gst.Element, pad *gst.Pad) {
			onPadAdded(el, pad, depayElement)
		})
	} else {
		slog.Warn("rtsp: rtph264depay element not found, pad-added callback not connected")
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: newOnNewSample(r.deliver),
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		DestroyPipeline(elements)
		return fmt.Errorf("rtsp: set pipeline to PLAYING: %w", err)
	}

	r.mu.Lock()
	r.elements = elements
	r.mu.Unlock()
	return nil
}

// deliver routes one decoded frame either into the buffered ring or
// into the injected pool, matching the two modes SetBufferPool selects
// between.
func (r *Reader) deliver(frame decodedFrame) {
	r.frameCount.Add(1)

	r.mu.Lock()
	pool := r.pool
	r.mu.Unlock()

	if pool == nil {
		r.ring.push(frame.data)
		return
	}

	handle := buffer.NewHandle(frame.data, 0, func(virt []byte) {})
	if _, err := pool.InjectFilledBuffer(handle); err != nil {
		r.droppedInjection.Add(1)
		slog.Debug("rtsp: dropping decoded frame, injection failed", "error", err, "trace_id", frame.traceID)
	}
}

// Close implements videoreader.Reader.
func (r *Reader) Close() error {
	if !r.isOpen.CompareAndSwap(true, false) {
		return nil
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.ring.close()
	return nil
}

// IsOpen implements videoreader.Reader.
func (r *Reader) IsOpen() bool { return r.isOpen.Load() }

// ReadFrameToBytes implements videoreader.Reader by draining the
// buffered-mode ring. Returns ErrNotSupported in injection mode, per
// the specification's open question decision.
func (r *Reader) ReadFrameToBytes(dest []byte) error {
	r.mu.Lock()
	injecting := r.pool != nil
	r.mu.Unlock()
	if injecting {
		return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported)
	}
	if !r.isOpen.Load() {
		return videoreader.ErrNotOpen
	}

	data, ok := r.ring.pop(500 * time.Millisecond)
	if !ok {
		return fmt.Errorf("rtsp: no frame available")
	}
	if len(dest) < len(data) {
		return fmt.Errorf("rtsp: destination too small: have %d, need %d", len(dest), len(data))
	}
	copy(dest, data)
	return nil
}

// ReadFrameTo implements videoreader.Reader.
func (r *Reader) ReadFrameTo(buf *buffer.Buffer) error {
	return r.ReadFrameToBytes(buf.VirtualAddress())
}

// ReadFrameAt implements videoreader.Reader. RTSP is not seekable.
func (r *Reader) ReadFrameAt(index uint64, dest []byte) error {
	return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported)
}

// ReadFrameAtThreadSafe implements videoreader.Reader. RTSP is not
// seekable.
func (r *Reader) ReadFrameAtThreadSafe(index uint64, dest []byte) error {
	return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported)
}

// Seek implements videoreader.Reader. Not supported for a live stream.
func (r *Reader) Seek(index uint64) error { return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported) }

// SeekToBegin implements videoreader.Reader.
func (r *Reader) SeekToBegin() error { return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported) }

// SeekToEnd implements videoreader.Reader.
func (r *Reader) SeekToEnd() error { return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported) }

// Skip implements videoreader.Reader.
func (r *Reader) Skip(count uint64) error { return fmt.Errorf("rtsp: %w", videoreader.ErrNotSupported) }

// GetTotalFrames implements videoreader.Reader, reporting the "no known
// end" sentinel for a live stream.
func (r *Reader) GetTotalFrames() uint64 { return videoreader.InfiniteFrames }

// GetCurrentFrameIndex implements videoreader.Reader.
func (r *Reader) GetCurrentFrameIndex() uint64 { return r.frameCount.Load() }

// GetFrameSize implements videoreader.Reader.
func (r *Reader) GetFrameSize() int {
	return r.cfg.Width * r.cfg.Height * ((r.cfg.BitsPerPixel + 7) / 8)
}

// GetFileSize implements videoreader.Reader. A live stream has none.
func (r *Reader) GetFileSize() int64 { return -1 }

// GetWidth implements videoreader.Reader.
func (r *Reader) GetWidth() int { return r.cfg.Width }

// GetHeight implements videoreader.Reader.
func (r *Reader) GetHeight() int { return r.cfg.Height }

// GetBytesPerPixel implements videoreader.Reader.
func (r *Reader) GetBytesPerPixel() int { return (r.cfg.BitsPerPixel + 7) / 8 }

// GetPath implements videoreader.Reader.
func (r *Reader) GetPath() string { return r.url }

// HasMoreFrames implements videoreader.Reader: connected and not at EOF.
func (r *Reader) HasMoreFrames() bool { return r.isOpen.Load() && !r.eof.Load() }

// IsAtEnd implements videoreader.Reader.
func (r *Reader) IsAtEnd() bool { return !r.HasMoreFrames() }

// GetReaderType implements videoreader.Reader.
func (r *Reader) GetReaderType() videoreader.Type { return videoreader.RTSP }

// SetBufferPool implements videoreader.Reader, switching this reader
// into injection mode. Passing nil switches back to buffered mode.
func (r *Reader) SetBufferPool(pool *bufferpool.Pool) {
	r.mu.Lock()
	r.pool = pool
	r.mu.Unlock()
}

// DroppedFrames reports frames the buffered ring overwrote before a
// consumer read them (buffered mode) plus frames injection rejected
// (injection mode).
func (r *Reader) DroppedFrames() uint64 {
	return r.ring.droppedCount() + r.droppedInjection.Load()
}

// Reconnects reports how many connection attempts have failed so far
// in the reconnect loop.
func (r *Reader) Reconnects() uint32 { return r.reconnects.Load() }

// ErrorCounts reports pipeline errors observed so far, by category.
func (r *Reader) ErrorCounts() (network, codec, auth, unknown uint64) {
	return r.errNetwork.Load(), r.errCodec.Load(), r.errAuth.Load(), r.errUnknown.Load()
}
