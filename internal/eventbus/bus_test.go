package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
)

func waitForEvent(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return model.Event{}
	}
}

func TestBusDeliversToMatchingSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := New(ctx, 16, zerolog.Nop())
	ch, unsub := bus.Subscribe(Filter{})
	defer unsub()

	evt := model.NewEvent(model.ServerID(1), time.Now(), model.Meta{}, model.PlayerConnectData{Address: "1.2.3.4:27005"})
	bus.Publish(evt)

	got := waitForEvent(t, ch)
	if got.ID != evt.ID {
		t.Fatalf("want event %s got %s", evt.ID, got.ID)
	}
}

func TestBusFilterByEventType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := New(ctx, 16, zerolog.Nop())
	ch, unsub := bus.Subscribe(Filter{Types: []model.EventType{model.EventPlayerSuicide}})
	defer unsub()

	bus.Publish(model.NewEvent(model.ServerID(1), time.Now(), model.Meta{}, model.PlayerConnectData{Address: "1.2.3.4:27005"}))
	suicide := model.NewEvent(model.ServerID(1), time.Now(), model.Meta{}, model.PlayerSuicideData{Weapon: "hegrenade"})
	bus.Publish(suicide)

	got := waitForEvent(t, ch)
	if got.ID != suicide.ID {
		t.Fatalf("want only the suicide event delivered, got %v", got.Data)
	}
}

func TestBusFilterByServerID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := New(ctx, 16, zerolog.Nop())
	ch, unsub := bus.Subscribe(Filter{ServerIDs: []model.ServerID{2}})
	defer unsub()

	bus.Publish(model.NewEvent(model.ServerID(1), time.Now(), model.Meta{}, model.PlayerConnectData{Address: "1.2.3.4:27005"}))
	want := model.NewEvent(model.ServerID(2), time.Now(), model.Meta{}, model.PlayerConnectData{Address: "5.6.7.8:27005"})
	bus.Publish(want)

	got := waitForEvent(t, ch)
	if got.ID != want.ID {
		t.Fatalf("want server-2 event, got %v", got.ServerID)
	}
}

func TestBusDropsOnFullSubscriberChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := New(ctx, 16, zerolog.Nop())
	ch, unsub := bus.Subscribe(Filter{})
	defer unsub()

	// Don't drain ch; flood past its capacity and confirm the bus
	// doesn't block or panic.
	for i := 0; i < DefaultSubscriberCapacity+10; i++ {
		bus.Publish(model.NewEvent(model.ServerID(1), time.Now(), model.Meta{}, model.PlayerConnectData{Address: "1.2.3.4:27005"}))
	}

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected at least one delivered event")
	}
}
