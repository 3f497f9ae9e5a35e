package eventbus

import (
	"testing"
	"time"
)

func TestPublishDeliversToDropNewSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	ch := make(chan Event, 10)
	if err := b.Subscribe("worker-1", ch); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	b.Publish(Event{Kind: "producer.error", Seq: 1})

	select {
	case got := <-ch:
		if got.Seq != 1 {
			t.Errorf("Seq = %d, want 1", got.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishNeverBlocksOnFullDropNewSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	ch := make(chan Event, 1)
	if err := b.Subscribe("slow", ch); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Seq: 1})
		b.Publish(Event{Seq: 2}) // channel full, must drop not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked on a full DropNew subscriber")
	}

	stats, err := b.Stats("slow")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestDropOldReceiverAlwaysHasLatest(t *testing.T) {
	b := New()
	defer b.Close()

	recv, err := b.SubscribeDropOld("display")
	if err != nil {
		t.Fatalf("SubscribeDropOld: %v", err)
	}

	b.Publish(Event{Seq: 1})
	b.Publish(Event{Seq: 2})
	b.Publish(Event{Seq: 3})

	got, ok := recv.TryReceive()
	if !ok || got.Seq != 3 {
		t.Fatalf("TryReceive = %+v, ok=%v, want seq 3", got, ok)
	}
}

func TestUnsubscribeThenPublishIsNoop(t *testing.T) {
	b := New()
	defer b.Close()

	ch := make(chan Event, 1)
	b.Subscribe("temp", ch)
	if err := b.Unsubscribe("temp"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	b.Publish(Event{Seq: 1})

	select {
	case <-ch:
		t.Fatal("received an event after unsubscribing")
	default:
	}
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	b := New()
	b.Close()

	if err := b.Subscribe("x", make(chan Event, 1)); err != ErrBusClosed {
		t.Fatalf("Subscribe after Close error = %v, want ErrBusClosed", err)
	}
}

func TestDropOldReceiveUnblocksOnClose(t *testing.T) {
	b := New()
	recv, err := b.SubscribeDropOld("display")
	if err != nil {
		t.Fatalf("SubscribeDropOld: %v", err)
	}

	done := make(chan Event, 1)
	go func() { done <- recv.Receive() }()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case got := <-done:
		if got != (Event{}) {
			t.Errorf("Receive after close = %+v, want zero value", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}
