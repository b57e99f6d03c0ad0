package websocket

import (
	"testing"

	"go.uber.org/zap"
)

// TestSubscriptionFiltering tests event routing to subscribed clients
func TestSubscriptionFiltering(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastMaskEvents: true}, zap.NewNop())

	maskEvent := Event{Type: EventTypeMask, Data: MaskEvent{TenantID: "acme"}}
	statusEvent := Event{Type: EventTypeSystemStatus, Data: SystemStatusEvent{Status: "ok"}}

	t.Run("NoSubscriptionGetsEverything", func(t *testing.T) {
		client := &Client{}
		if !hub.shouldSendToClient(client, maskEvent) {
			t.Error("client without subscription should receive all events")
		}
	})

	t.Run("EventTypeFilter", func(t *testing.T) {
		client := &Client{Subscription: &SubscriptionRequest{
			Events: []EventType{EventTypeMask},
		}}
		if !hub.shouldSendToClient(client, maskEvent) {
			t.Error("subscribed event type should be delivered")
		}
		if hub.shouldSendToClient(client, statusEvent) {
			t.Error("unsubscribed event type should be dropped")
		}
	})

	t.Run("TenantFilter", func(t *testing.T) {
		client := &Client{Subscription: &SubscriptionRequest{
			Events: []EventType{EventTypeMask, EventTypeSystemStatus},
			Filter: &EventFilter{TenantIDs: []string{"globex"}},
		}}
		if hub.shouldSendToClient(client, maskEvent) {
			t.Error("event for another tenant should be dropped")
		}
		other := Event{Type: EventTypeMask, Data: MaskEvent{TenantID: "globex"}}
		if !hub.shouldSendToClient(client, other) {
			t.Error("event for the filtered tenant should be delivered")
		}
		if !hub.shouldSendToClient(client, statusEvent) {
			t.Error("tenant filter should not drop tenant-less events")
		}
	})
}

// TestBroadcastGating tests the per-event-type configuration gates
func TestBroadcastGating(t *testing.T) {
	hub := NewHub(&HubConfig{
		BroadcastMaskEvents: true,
		BroadcastSystem:     false,
	}, zap.NewNop())

	if !hub.shouldBroadcastEvent(EventTypeMask) {
		t.Error("mask events enabled in config should broadcast")
	}
	if hub.shouldBroadcastEvent(EventTypeSystemStatus) {
		t.Error("disabled event types should not broadcast")
	}
	if hub.shouldBroadcastEvent("bogus") {
		t.Error("unknown event types should not broadcast")
	}

	var nilConfig *Hub = NewHub(nil, zap.NewNop())
	if nilConfig.shouldBroadcastEvent(EventTypeMask) {
		t.Error("nil config should broadcast nothing")
	}
}
