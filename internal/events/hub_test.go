package events

import (
	"context"
	"testing"
	"time"

	"hearthrealm/internal/db"
)

func TestPublishFiltersByLocation(t *testing.T) {
	h := NewHub(nil)
	all := h.Subscribe(0, 4)
	local := h.Subscribe(7, 4)
	defer h.Unsubscribe(all)
	defer h.Unsubscribe(local)

	h.Publish([]byte(`{"kind":"religion.hq_completed","location_id":3}`))
	h.Publish([]byte(`{"kind":"world.tick"}`))
	h.Publish([]byte(`{"kind":"role.appointed","location_id":7}`))

	if got := len(all.C); got != 3 {
		t.Fatalf("world subscriber got %d events, want 3", got)
	}
	if got := len(local.C); got != 2 {
		t.Fatalf("location subscriber got %d events, want 2", got)
	}
}

func TestPublishDropsForSlowSubscribers(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(0, 1)
	h.Publish([]byte(`{"kind":"a"}`))
	h.Publish([]byte(`{"kind":"b"}`))
	if got := string(<-sub.C); got != `{"kind":"a"}` {
		t.Fatalf("first event = %s", got)
	}
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	if _, ok := <-sub.C; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("subscriber not removed")
	}
}

func TestRunForwardsNotificationsAndResync(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(0, 4)
	in := make(chan db.Notification, 3)
	in <- db.Notification{Channel: db.ChannelActionQueue, Payload: "12"}
	in <- db.Notification{}
	in <- db.Notification{Channel: db.ChannelEvents, Payload: `{"kind":"world.tick"}`}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.Run(ctx, in)

	if got := string(<-sub.C); got != string(Resync) {
		t.Fatalf("expected resync first, got %s", got)
	}
	if got := string(<-sub.C); got != `{"kind":"world.tick"}` {
		t.Fatalf("expected the tick event, got %s", got)
	}
	if len(sub.C) != 0 {
		t.Fatalf("queue notifications must not reach event subscribers")
	}
}
