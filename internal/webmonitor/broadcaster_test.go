package webmonitor

import (
	"io"
	"testing"
	"time"

	"github.com/dj-oyu/yolo-live-monitor/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.SILENT, io.Discard, false)
}

func TestFrameBroadcasterFanout(t *testing.T) {
	fb := NewFrameBroadcaster(testLogger())
	defer fb.Close()

	id1, ch1 := fb.Subscribe()
	id2, ch2 := fb.Subscribe()
	if fb.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", fb.ClientCount())
	}

	frame := []byte("jpeg-data")
	fb.Publish(frame)

	for i, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case got := <-ch:
			if string(got) != "jpeg-data" {
				t.Fatalf("client %d got wrong data: %q", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %d did not receive frame", i)
		}
	}

	fb.Unsubscribe(id1)
	fb.Unsubscribe(id2)
	if fb.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsubscribe, got %d", fb.ClientCount())
	}
}

func TestFrameBroadcasterDropsWhenBufferFull(t *testing.T) {
	fb := NewFrameBroadcaster(testLogger())
	defer fb.Close()

	_, ch := fb.Subscribe()

	// Channel buffers 2 frames; further publishes must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			fb.Publish([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow client")
	}

	// The slow client still sees the first buffered frames.
	got := <-ch
	if got[0] != 0 {
		t.Fatalf("expected first frame, got %v", got)
	}
}

func TestFrameBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	fb := NewFrameBroadcaster(testLogger())
	id, ch := fb.Subscribe()
	fb.Unsubscribe(id)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestEventBroadcasterFanout(t *testing.T) {
	eb := NewEventBroadcaster("TestEvents", testLogger())
	defer eb.Close()

	_, ch := eb.Subscribe()
	eb.Publish([]byte(`{"frame_number":1}`))

	select {
	case got := <-ch:
		if string(got) != `{"frame_number":1}` {
			t.Fatalf("wrong event data: %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive event")
	}
}

func TestEventBroadcasterCloseDisconnectsClients(t *testing.T) {
	eb := NewEventBroadcaster("TestEvents", testLogger())
	_, ch := eb.Subscribe()
	eb.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Close")
	}
	if eb.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after Close, got %d", eb.ClientCount())
	}
}
