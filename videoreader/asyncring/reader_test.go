package asyncring

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

func TestOpenReturnsNotSupported(t *testing.T) {
	r := New()
	if err := r.Open("whatever"); err == nil {
		t.Fatal("expected Open to fail for asyncring reader")
	}
}

func TestSequentialReadThroughRing(t *testing.T) {
	path := writeRawFile(t, 8, 3)
	r := New()
	if err := r.OpenRaw(path, 8, 1, 8); err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	dest := make([]byte, 8)
	for i := 0; i < 3; i++ {
		if err := r.ReadFrameToBytes(dest); err != nil {
			t.Fatalf("ReadFrameToBytes(%d): %v", i, err)
		}
	}
	if !r.IsAtEnd() {
		t.Fatal("expected reader to report IsAtEnd")
	}
}

func TestBatchSubmitAndHarvestCoverAllIndices(t *testing.T) {
	path := writeRawFile(t, 4, BatchSize)
	r := New()
	if err := r.OpenRaw(path, 4, 1, 8); err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	indices := make([]uint64, BatchSize)
	dests := make([][]byte, BatchSize)
	for i := range indices {
		indices[i] = uint64(i)
		dests[i] = make([]byte, 4)
	}
	r.BatchSubmit(indices, dests)

	seen := map[uint64]bool{}
	for i := 0; i < BatchSize; i++ {
		c := r.Harvest()
		if c.Err != nil {
			t.Fatalf("completion %d error: %v", c.Index, c.Err)
		}
		seen[c.Index] = true
	}
	if len(seen) != BatchSize {
		t.Fatalf("harvested %d distinct indices, want %d", len(seen), BatchSize)
	}
}

func TestReadFrameAtThreadSafeIndependentOfCursor(t *testing.T) {
	path := writeRawFile(t, 4, 4)
	r := New()
	if err := r.OpenRaw(path, 4, 1, 8); err != nil {
		t.Fatalf("OpenRaw: %v", err)
	}
	defer r.Close()

	dest := make([]byte, 4)
	if err := r.ReadFrameAtThreadSafe(3, dest); err != nil {
		t.Fatalf("ReadFrameAtThreadSafe: %v", err)
	}
	if got := r.GetCurrentFrameIndex(); got != 0 {
		t.Errorf("cursor mutated by thread-safe read: got %d, want 0", got)
	}
	if err := r.ReadFrameAtThreadSafe(4, dest); err != videoreader.ErrOutOfRange {
		t.Fatalf("out-of-range error = %v, want ErrOutOfRange", err)
	}
}
