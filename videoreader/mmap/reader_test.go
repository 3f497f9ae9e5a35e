package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/e7canasta/vidframe/videoreader"
)

func writeRawFile(t *testing.T, frameSize, frameCount int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.raw")
	data := make([]byte, frameSize*frameCount)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test fixture: %v", err)
	}
	return path
}

func TestOpenRawComputesFrameSizeAndTotalFrames(t *testing.T) {
	path := writeRawFile(t, 4*4*3, 5) // 4x4 RGB24 frames
	r := New()
	if err := r.OpenRaw(path, 4, 4, 24); err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	if got, want := r.GetFrameSize(), 48; got != want {
		t.Errorf("frame size = %d, want %d", got, want)
	}
	if got, want := r.GetTotalFrames(), uint64(5); got != want {
		t.Errorf("total frames = %d, want %d", got, want)
	}
	if got, want := r.GetBytesPerPixel(), 3; got != want {
		t.Errorf("bytes per pixel = %d, want %d", got, want)
	}
}

func TestReadFrameAtThreadSafeDoesNotMutateCursor(t *testing.T) {
	path := writeRawFile(t, 8, 3)
	r := New()
	if err := r.OpenRaw(path, 8, 1, 8); err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	dest := make([]byte, 8)
	if err := r.ReadFrameAtThreadSafe(2, dest); err != nil {
		t.Fatalf("ReadFrameAtThreadSafe: %v", err)
	}
	if got := r.GetCurrentFrameIndex(); got != 0 {
		t.Errorf("cursor mutated by thread-safe read: got %d, want 0", got)
	}
}

func TestReadFrameAtOutOfRange(t *testing.T) {
	path := writeRawFile(t, 8, 2)
	r := New()
	if err := r.OpenRaw(path, 8, 1, 8); err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	dest := make([]byte, 8)
	if err := r.ReadFrameAt(5, dest); err != videoreader.ErrOutOfRange {
		t.Fatalf("ReadFrameAt(5) error = %v, want ErrOutOfRange", err)
	}
}

func TestSequentialReadAdvancesCursorAndReportsEnd(t *testing.T) {
	path := writeRawFile(t, 4, 2)
	r := New()
	if err := r.OpenRaw(path, 4, 1, 8); err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	dest := make([]byte, 4)
	if err := r.ReadFrameToBytes(dest); err != nil {
		t.Fatalf("ReadFrameToBytes: %v", err)
	}
	if err := r.ReadFrameToBytes(dest); err != nil {
		t.Fatalf("ReadFrameToBytes: %v", err)
	}
	if !r.IsAtEnd() {
		t.Fatal("expected reader to report IsAtEnd after consuming all frames")
	}
	if err := r.ReadFrameToBytes(dest); err != videoreader.ErrOutOfRange {
		t.Fatalf("read past end error = %v, want ErrOutOfRange", err)
	}
}

func TestOpenReportsUnsupportedContainerForKnownMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	header := make([]byte, 32)
	copy(header[4:8], "ftyp")
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	r := New()
	if err := r.Open(path); err != videoreader.ErrUnsupportedContainer {
		t.Fatalf("Open error = %v, want ErrUnsupportedContainer", err)
	}
}

func TestOpenReportsUnsupportedContainerForUnrecognizedRawData(t *testing.T) {
	path := writeRawFile(t, 8, 1)
	r := New()
	if err := r.Open(path); err == nil {
		t.Fatal("expected Open to fail for headerless raw data")
	}
}
