package rtsp

import (
	"testing"
	"time"
)

func TestFrameRingDropsOldestOnOverflow(t *testing.T) {
	r := newFrameRing(2)
	r.push([]byte{1})
	r.push([]byte{2})
	r.push([]byte{3}) // drops {1}

	if got := r.droppedCount(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}

	first, ok := r.pop(0)
	if !ok || first[0] != 2 {
		t.Fatalf("first pop = %v, ok=%v, want [2], true", first, ok)
	}
	second, ok := r.pop(0)
	if !ok || second[0] != 3 {
		t.Fatalf("second pop = %v, ok=%v, want [3], true", second, ok)
	}
}

func TestFrameRingPopTimesOutWhenEmpty(t *testing.T) {
	r := newFrameRing(2)
	start := time.Now()
	_, ok := r.pop(20 * time.Millisecond)
	if ok {
		t.Fatal("expected pop to time out on an empty ring")
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("pop returned too early: %v", elapsed)
	}
}

func TestFrameRingCloseWakesBlockedPop(t *testing.T) {
	r := newFrameRing(2)
	done := make(chan bool, 1)
	go func() {
		_, ok := r.pop(2 * time.Second)
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	r.close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected pop to report no frame after close")
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up after close")
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	cfg := ReconnectConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second}, // capped
	}
	for _, c := range cases {
		if got := backoffDelay(c.attempt, cfg); got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestClassifyGStreamerErrorNilIsUnknown(t *testing.T) {
	if got := ClassifyGStreamerError(nil); got != ErrCategoryUnknown {
		t.Fatalf("ClassifyGStreamerError(nil) = %v, want Unknown", got)
	}
}

func TestPixelFormatMapsBitsPerPixel(t *testing.T) {
	cases := map[int]string{32: "BGRA", 24: "BGR", 8: "BGR"}
	for bpp, want := range cases {
		if got := pixelFormat(bpp); got != want {
			t.Errorf("pixelFormat(%d) = %s, want %s", bpp, got, want)
		}
	}
}

func TestBuildCapsFractionalFramerate(t *testing.T) {
	got := buildCaps(PipelineConfig{Width: 640, Height: 480, TargetFPS: 0.5, PixelFormat: "BGR"})
	want := "video/x-raw,format=BGR,width=640,height=480,framerate=1/2"
	if got != want {
		t.Fatalf("buildCaps = %q, want %q", got, want)
	}
}

func TestGetFrameSizeAndTypeBeforeOpen(t *testing.T) {
	r := New(Config{Width: 320, Height: 240, BitsPerPixel: 32})
	if got, want := r.GetFrameSize(), 320*240*4; got != want {
		t.Errorf("GetFrameSize() = %d, want %d", got, want)
	}
	if got := r.GetTotalFrames(); got == 0 {
		t.Errorf("GetTotalFrames() = 0, want the infinite sentinel")
	}
	if r.IsOpen() {
		t.Error("reader should not be open before Open is called")
	}
}
