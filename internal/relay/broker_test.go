package relay

import "testing"

func TestBrokerPublishReachesSubscribers(t *testing.T) {
	b := NewBroker()
	id1, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()
	defer b.Unsubscribe(id1)

	b.Publish(JSONEvent(KindOverlayCreated, map[string]string{"id": "o1"}))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Kind != KindOverlayCreated {
				t.Fatalf("subscriber %d kind = %q", i, evt.Kind)
			}
			if evt.Payload != `{"id":"o1"}` {
				t.Fatalf("subscriber %d payload = %q", i, evt.Payload)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()

	b.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0", b.ClientCount())
	}

	// Publishing with no subscribers must not panic or block.
	b.Publish(Event{Kind: KindAutoSave, Payload: "{}"})
}

func TestNilBrokerPublishIsSafe(t *testing.T) {
	var b *Broker
	b.Publish(Event{Kind: KindAutoSave, Payload: "{}"})
}
