package mmap

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/e7canasta/vidframe/buffer"
	"github.com/e7canasta/vidframe/bufferpool"
	"github.com/e7canasta/vidframe/videoreader"
)

// Reader implements videoreader.Reader over a whole-file read-only
// memory mapping. Random reads are intrinsically thread-safe as long
// as destinations differ, since they are bounds-checked copies out of
// a mapping nobody mutates.
type Reader struct {
	stateMu sync.RWMutex
	file    *os.File
	data    []byte
	isOpen  atomic.Bool

	path      string
	fileSize  int64
	width     int
	height    int
	bppBits   int
	frameSize int
	total     uint64

	cursor atomic.Uint64

	// pool is accepted for interface conformance but unused: a mapped
	// raw file has nothing to decode, so injection mode has no source
	// of frames to push.
	pool *bufferpool.Pool
}

var _ videoreader.Reader = (*Reader)(nil)

// New constructs an unopened mmap reader.
func New() *Reader {
	return &Reader{}
}

// Open auto-detects the source's container from its leading bytes.
// Every container this sniff recognizes today (MP4, AVI, H.264/H.265
// elementary streams) is a compressed format this reader cannot decode,
// so a recognized magic number always yields ErrUnsupportedContainer;
// an unrecognized one means the caller must supply geometry explicitly
// through OpenRaw, since raw pixel data carries no self-describing
// header.
func (r *Reader) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mmap: open %s: %w", path, err)
	}
	defer f.Close()

	var probe [32]byte
	n, _ := f.Read(probe[:])

	if container, ok := sniffContainer(probe[:n]); ok {
		slog.Warn("mmap: recognized but undecodable container", "path", path, "container", container)
		return videoreader.ErrUnsupportedContainer
	}
	return fmt.Errorf("mmap: cannot auto-detect raw frame geometry for %s, use OpenRaw: %w", path, videoreader.ErrUnsupportedContainer)
}

// OpenRaw opens path as a headerless stream of width x height frames at
// bytesPerPixelBits bits per pixel, computing frame_size = ceil(width *
// height * bppBits / 8) and total_frames = file_size / frame_size.
func (r *Reader) OpenRaw(path string, width, height, bppBits int) error {
	if width <= 0 || height <= 0 || bppBits <= 0 {
		return fmt.Errorf("mmap: invalid geometry %dx%d@%dbpp", width, height, bppBits)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mmap: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap: stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return fmt.Errorf("mmap: %s is empty", path)
	}

	frameSize := (width*height*bppBits + 7) / 8
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap: mmap %s: %w", path, err)
	}

	total := uint64(size) / uint64(frameSize)
	if uint64(size)%uint64(frameSize) != 0 {
		slog.Warn("mmap: file size not an even multiple of frame size", "path", path, "file_size", size, "frame_size", frameSize)
	}

	r.stateMu.Lock()
	r.file = f
	r.data = data
	r.path = path
	r.fileSize = size
	r.width = width
	r.height = height
	r.bppBits = bppBits
	r.frameSize = frameSize
	r.total = total
	r.stateMu.Unlock()

	r.cursor.Store(0)
	r.isOpen.Store(true)
	return nil
}

// Close implements videoreader.Reader.
func (r *Reader) Close() error {
	if !r.isOpen.CompareAndSwap(true, false) {
		return nil
	}
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	var err error
	if r.data != nil {
		err = unix.Munmap(r.data)
		r.data = nil
	}
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
		r.file = nil
	}
	return err
}

// IsOpen implements videoreader.Reader.
func (r *Reader) IsOpen() bool { return r.isOpen.Load() }

func (r *Reader) readAt(index uint64, dest []byte) error {
	if !r.isOpen.Load() {
		return videoreader.ErrNotOpen
	}
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	if index >= r.total {
		return videoreader.ErrOutOfRange
	}
	if len(dest) < r.frameSize {
		return fmt.Errorf("mmap: destination too small: have %d, need %d", len(dest), r.frameSize)
	}
	offset := index * uint64(r.frameSize)
	copy(dest, r.data[offset:offset+uint64(r.frameSize)])
	return nil
}

// ReadFrameAtThreadSafe implements videoreader.Reader. It mutates
// nothing, so many VideoProducer workers may call it concurrently on a
// shared Reader.
func (r *Reader) ReadFrameAtThreadSafe(index uint64, dest []byte) error {
	return r.readAt(index, dest)
}

// ReadFrameAt implements videoreader.Reader, additionally moving the
// cursor to index+1. Not safe for concurrent callers.
func (r *Reader) ReadFrameAt(index uint64, dest []byte) error {
	if err := r.readAt(index, dest); err != nil {
		return err
	}
	r.cursor.Store(index + 1)
	return nil
}

// ReadFrameToBytes implements videoreader.Reader.
func (r *Reader) ReadFrameToBytes(dest []byte) error {
	index := r.cursor.Load()
	if err := r.readAt(index, dest); err != nil {
		return err
	}
	r.cursor.Store(index + 1)
	return nil
}

// ReadFrameTo implements videoreader.Reader.
func (r *Reader) ReadFrameTo(buf *buffer.Buffer) error {
	return r.ReadFrameToBytes(buf.VirtualAddress())
}

// Seek implements videoreader.Reader.
func (r *Reader) Seek(index uint64) error {
	r.stateMu.RLock()
	total := r.total
	r.stateMu.RUnlock()
	if index > total {
		return videoreader.ErrOutOfRange
	}
	r.cursor.Store(index)
	return nil
}

// SeekToBegin implements videoreader.Reader.
func (r *Reader) SeekToBegin() error { r.cursor.Store(0); return nil }

// SeekToEnd implements videoreader.Reader.
func (r *Reader) SeekToEnd() error {
	r.stateMu.RLock()
	total := r.total
	r.stateMu.RUnlock()
	r.cursor.Store(total)
	return nil
}

// Skip implements videoreader.Reader.
func (r *Reader) Skip(count uint64) error {
	return r.Seek(r.cursor.Load() + count)
}

// GetTotalFrames implements videoreader.Reader.
func (r *Reader) GetTotalFrames() uint64 {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.total
}

// GetCurrentFrameIndex implements videoreader.Reader.
func (r *Reader) GetCurrentFrameIndex() uint64 { return r.cursor.Load() }

// GetFrameSize implements videoreader.Reader.
func (r *Reader) GetFrameSize() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.frameSize
}

// GetFileSize implements videoreader.Reader.
func (r *Reader) GetFileSize() int64 {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.fileSize
}

// GetWidth implements videoreader.Reader.
func (r *Reader) GetWidth() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.width
}

// GetHeight implements videoreader.Reader.
func (r *Reader) GetHeight() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.height
}

// GetBytesPerPixel implements videoreader.Reader.
func (r *Reader) GetBytesPerPixel() int {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return (r.bppBits + 7) / 8
}

// GetPath implements videoreader.Reader.
func (r *Reader) GetPath() string {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.path
}

// HasMoreFrames implements videoreader.Reader.
func (r *Reader) HasMoreFrames() bool {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.cursor.Load() < r.total
}

// IsAtEnd implements videoreader.Reader.
func (r *Reader) IsAtEnd() bool { return !r.HasMoreFrames() }

// GetReaderType implements videoreader.Reader.
func (r *Reader) GetReaderType() videoreader.Type { return videoreader.Mmap }

// SetBufferPool implements videoreader.Reader. A mapped raw file has no
// decode step producing frames to inject, so this reader records the
// pool for interface conformance but never calls InjectFilledBuffer.
func (r *Reader) SetBufferPool(pool *bufferpool.Pool) { r.pool = pool }
