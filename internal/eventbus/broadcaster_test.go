package eventbus

import (
	"testing"
	"time"

	"github.com/forgeline/healer/internal/model"
)

func TestBroadcasterPublishAndSubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch, _, unsub := b.Subscribe()
	defer unsub()

	b.Publish(model.Event{Kind: model.EventNodeEntered, Node: "scanner"})

	select {
	case ev := <-ch:
		if ev.Kind != model.EventNodeEntered || ev.Node != "scanner" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterHistoryReplay(t *testing.T) {
	b := NewBroadcaster()

	b.Publish(model.Event{Kind: model.EventRunStarted})
	b.Publish(model.Event{Kind: model.EventNodeEntered, Node: "runner"})

	ch, _, unsub := b.Subscribe()
	defer unsub()

	var kinds []model.EventKind
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for replayed event")
		}
	}
	if kinds[0] != model.EventRunStarted || kinds[1] != model.EventNodeEntered {
		t.Fatalf("unexpected replay order: %v", kinds)
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()

	ch1, _, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, _, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(model.Event{Kind: model.EventPushed})

	for _, ch := range []<-chan model.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != model.EventPushed {
				t.Fatalf("unexpected event: %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event on subscriber")
		}
	}
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster()

	ch, _, unsub := b.Subscribe()
	defer unsub()

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBroadcasterSubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(model.Event{Kind: model.EventRunComplete})
	b.Close()

	ch, _, _ := b.Subscribe()

	var events []model.Event
	for ev := range ch {
		events = append(events, ev)
	}
	if len(events) != 1 || events[0].Kind != model.EventRunComplete {
		t.Fatalf("expected history replay on post-close subscribe, got: %v", events)
	}
}

func TestBroadcasterHistory(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(model.Event{Seq: 1})
	b.Publish(model.Event{Seq: 2})

	h := b.History()
	if len(h) != 2 {
		t.Fatalf("expected 2 events in history, got %d", len(h))
	}
}

func TestBroadcasterPublishAfterClose(t *testing.T) {
	b := NewBroadcaster()
	b.Close()
	b.Publish(model.Event{Kind: model.EventRunComplete})
	h := b.History()
	if len(h) != 0 {
		t.Fatalf("expected no events after close, got %d", len(h))
	}
}

func TestBroadcasterHistoryReplayOver256(t *testing.T) {
	b := NewBroadcaster()

	for i := 0; i < 300; i++ {
		b.Publish(model.Event{Seq: int64(i)})
	}

	done := make(chan struct{})
	go func() {
		ch, _, unsub := b.Subscribe()
		defer unsub()
		count := 0
		for range ch {
			count++
			if count == 300 {
				break
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe() deadlocked with >256 history events")
	}
}

func TestBroadcasterDoneChRealClose(t *testing.T) {
	b := NewBroadcaster()
	_, doneCh, unsub := b.Subscribe()
	defer unsub()

	select {
	case <-doneCh:
		t.Fatal("doneCh closed before broadcaster.Close()")
	default:
	}

	b.Close()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("doneCh not closed after broadcaster.Close()")
	}
}

func TestBroadcasterSlowClientDropDoesNotCloseDoneCh(t *testing.T) {
	b := NewBroadcaster()

	ch, doneCh, _ := b.Subscribe()

	for i := 0; i < 256; i++ {
		b.Publish(model.Event{Seq: int64(i)})
	}
	b.Publish(model.Event{Seq: 256})

	for range ch {
	}

	select {
	case <-doneCh:
		t.Fatal("doneCh closed on slow-client drop (should only close on broadcaster.Close)")
	default:
	}

	b.Close()
}
