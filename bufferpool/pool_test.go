package bufferpool

import (
	"testing"
	"time"

	"github.com/e7canasta/vidframe/buffer"
)

func TestOwnedAcquireSubmitAcquireReleaseRoundTrip(t *testing.T) {
	p, err := NewOwned(2, 4096, false, "round-trip", "Test")
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	defer p.Close()

	buf, err := p.AcquireFree(NonBlocking, 0)
	if err != nil || buf == nil {
		t.Fatalf("AcquireFree: %v, %v", buf, err)
	}
	if buf.State() != buffer.LockedByProducer {
		t.Fatalf("state after acquire = %v, want LockedByProducer", buf.State())
	}

	if err := p.SubmitFilled(buf); err != nil {
		t.Fatalf("SubmitFilled: %v", err)
	}
	if buf.State() != buffer.ReadyForConsume {
		t.Fatalf("state after submit = %v, want ReadyForConsume", buf.State())
	}

	got, err := p.AcquireFilled(NonBlocking, 0)
	if err != nil || got != buf {
		t.Fatalf("AcquireFilled returned a different buffer: %v, %v", got, err)
	}
	if got.State() != buffer.LockedByConsumer {
		t.Fatalf("state after acquire-filled = %v, want LockedByConsumer", got.State())
	}

	if err := p.ReleaseFilled(got); err != nil {
		t.Fatalf("ReleaseFilled: %v", err)
	}
	if got.State() != buffer.Idle {
		t.Fatalf("state after release = %v, want Idle", got.State())
	}
	if p.GetFreeCount() != 2 {
		t.Fatalf("GetFreeCount = %d, want 2", p.GetFreeCount())
	}
}

func TestAcquireFreeNonBlockingMissOnEmptyQueue(t *testing.T) {
	p, err := NewOwned(1, 64, false, "empty", "Test")
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	defer p.Close()

	buf, _ := p.AcquireFree(NonBlocking, 0)
	if buf == nil {
		t.Fatal("expected first acquire to succeed")
	}

	miss, err := p.AcquireFree(NonBlocking, 0)
	if err != nil || miss != nil {
		t.Fatalf("AcquireFree on empty queue = %v, %v; want nil, nil", miss, err)
	}
}

func TestAcquireFreeBlockingTimesOutWhenStarved(t *testing.T) {
	p, err := NewOwned(1, 64, false, "starved", "Test")
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	defer p.Close()

	buf, _ := p.AcquireFree(NonBlocking, 0)
	if buf == nil {
		t.Fatal("expected first acquire to succeed")
	}

	start := time.Now()
	miss, err := p.AcquireFree(BlockingWithTimeout, 20*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil || miss != nil {
		t.Fatalf("AcquireFree timeout = %v, %v; want nil, nil", miss, err)
	}
	if elapsed < 15*time.Millisecond {
		t.Fatalf("AcquireFree returned after %v, expected to honor the timeout", elapsed)
	}
}

func TestAcquireFreeZeroTimeoutWaitsForever(t *testing.T) {
	p, err := NewOwned(1, 64, false, "wait-forever", "Test")
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	defer p.Close()

	buf, _ := p.AcquireFree(NonBlocking, 0)
	if buf == nil {
		t.Fatal("expected first acquire to succeed")
	}

	resultCh := make(chan *buffer.Buffer, 1)
	go func() {
		got, err := p.AcquireFree(BlockingWithTimeout, 0)
		if err != nil {
			t.Errorf("AcquireFree: %v", err)
		}
		resultCh <- got
	}()

	select {
	case <-resultCh:
		t.Fatal("AcquireFree with timeout 0 returned before a buffer was released")
	case <-time.After(20 * time.Millisecond):
	}

	if err := p.CancelAcquire(buf); err != nil {
		t.Fatalf("CancelAcquire: %v", err)
	}

	select {
	case got := <-resultCh:
		if got != buf {
			t.Fatalf("AcquireFree returned %v, want %v", got, buf)
		}
	case <-time.After(time.Second):
		t.Fatal("AcquireFree with timeout 0 never woke up after a buffer was released")
	}
}

func TestSubmitFilledRejectsForeignBuffer(t *testing.T) {
	a, err := NewOwned(1, 64, false, "pool-a", "Test")
	if err != nil {
		t.Fatalf("NewOwned a: %v", err)
	}
	defer a.Close()
	b, err := NewOwned(1, 64, false, "pool-b", "Test")
	if err != nil {
		t.Fatalf("NewOwned b: %v", err)
	}
	defer b.Close()

	foreign, _ := b.AcquireFree(NonBlocking, 0)
	if err := a.SubmitFilled(foreign); err == nil {
		t.Fatal("expected SubmitFilled to reject a buffer from a different pool")
	}
}

func TestExternalTrackedLivenessViolationOnAcquire(t *testing.T) {
	mem := make([]byte, 128)
	var deleted bool
	h := buffer.NewHandle(mem, 0, func([]byte) { deleted = true })

	p, err := NewExternalTracked([]*buffer.Handle{h}, "tracked", "Test")
	if err != nil {
		t.Fatalf("NewExternalTracked: %v", err)
	}
	defer p.Close()

	h.Close()
	if !deleted {
		t.Fatal("expected deleter to run")
	}

	buf, err := p.AcquireFree(NonBlocking, 0)
	if buf != nil {
		t.Fatal("expected acquire to fail after the external owner released memory")
	}
	if err != nil {
		t.Fatalf("AcquireFree on an empty-after-invalidation queue should be a nil miss, got %v", err)
	}
}

func TestInjectFilledBufferThenEjectRunsDeleterOnce(t *testing.T) {
	p := NewDynamic("dynamic", "Test", 0)
	defer p.Close()

	mem := make([]byte, 256)
	var deletes int
	h := buffer.NewHandle(mem, 0, func([]byte) { deletes++ })

	buf, err := p.InjectFilledBuffer(h)
	if err != nil {
		t.Fatalf("InjectFilledBuffer: %v", err)
	}
	if p.GetTotalCount() != 1 || p.GetFilledCount() != 1 {
		t.Fatalf("pool counts after inject: total=%d filled=%d, want 1,1", p.GetTotalCount(), p.GetFilledCount())
	}

	got, err := p.AcquireFilled(NonBlocking, 0)
	if err != nil || got != buf {
		t.Fatalf("AcquireFilled after inject = %v, %v", got, err)
	}

	if err := p.ReleaseFilled(got); err != nil {
		t.Fatalf("ReleaseFilled on a transient buffer should eject, not error: %v", err)
	}
	if deletes != 1 {
		t.Fatalf("deleter ran %d times, want 1", deletes)
	}
	if p.GetTotalCount() != 0 {
		t.Fatalf("GetTotalCount after eject = %d, want 0", p.GetTotalCount())
	}

	if p.EjectBuffer(got) {
		t.Fatal("ejecting an already-ejected buffer should be a no-op")
	}
	if deletes != 1 {
		t.Fatalf("deleter ran %d times after double-eject, want 1", deletes)
	}
}

func TestInjectFilledBufferRejectsPastMaxCapacity(t *testing.T) {
	p := NewDynamic("bounded", "Test", 1)
	defer p.Close()

	h1 := buffer.NewHandle(make([]byte, 16), 0, nil)
	if _, err := p.InjectFilledBuffer(h1); err != nil {
		t.Fatalf("first inject: %v", err)
	}

	h2 := buffer.NewHandle(make([]byte, 16), 0, nil)
	if _, err := p.InjectFilledBuffer(h2); err != ErrQueueFull {
		t.Fatalf("second inject = %v, want ErrQueueFull", err)
	}
}

func TestCancelAcquireReturnsBufferToFreeQueueWithoutSubmitting(t *testing.T) {
	p, err := NewOwned(1, 64, false, "cancel", "Test")
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	defer p.Close()

	buf, _ := p.AcquireFree(NonBlocking, 0)
	if err := p.CancelAcquire(buf); err != nil {
		t.Fatalf("CancelAcquire: %v", err)
	}
	if buf.State() != buffer.Idle {
		t.Fatalf("state after cancel = %v, want Idle", buf.State())
	}
	if p.GetFilledCount() != 0 {
		t.Fatalf("GetFilledCount after cancel = %d, want 0 (never submitted)", p.GetFilledCount())
	}
	if p.GetFreeCount() != 1 {
		t.Fatalf("GetFreeCount after cancel = %d, want 1", p.GetFreeCount())
	}
}

func TestExportBufferAsDmaBufUnsupportedOnNormalAllocator(t *testing.T) {
	p, err := NewOwned(1, 64, false, "normal", "Test")
	if err != nil {
		t.Fatalf("NewOwned: %v", err)
	}
	defer p.Close()

	buf, _ := p.AcquireFree(NonBlocking, 0)
	if _, err := p.ExportBufferAsDmaBuf(buf); err == nil {
		t.Fatal("expected dma-buf export to fail on a Normal-backed pool")
	}
}
