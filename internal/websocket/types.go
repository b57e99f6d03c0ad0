package websocket

import (
	"time"

	"github.com/whitemask/maskd/internal/mask"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeMask represents a completed masking request
	EventTypeMask EventType = "mask"
	// EventTypeTemplateUpdate represents a tenant template change
	EventTypeTemplateUpdate EventType = "template_update"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// MaskEvent describes one masking request after it completed.
type MaskEvent struct {
	RequestID    string      `json:"request_id"`
	TenantID     string      `json:"tenant_id"`
	ClientIP     string      `json:"client_ip"`
	Lines        int         `json:"lines"`
	CacheHits    int         `json:"cache_hits"`
	Counts       mask.Counts `json:"counts"`
	ProcessingMS float64     `json:"processing_ms"`
}

// TemplateUpdateEvent describes a change to a tenant's template list.
type TemplateUpdateEvent struct {
	TenantID string `json:"tenant_id"`
	Updated  int    `json:"updated"`
	Removed  int    `json:"removed"`
	Errors   int    `json:"errors"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalMaskedWords int64  `json:"total_masked_words"`
	ActiveTenants    int    `json:"active_tenants"`
	ConnectedClients int    `json:"connected_clients"`
	MemoryUsage      string `json:"memory_usage"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows a subscription to specific tenants.
type EventFilter struct {
	TenantIDs []string `json:"tenant_ids,omitempty"`
}
