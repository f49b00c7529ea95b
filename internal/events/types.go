// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	DatasetReloaded EventType = "DATASET_RELOADED"
	DatasetReset    EventType = "DATASET_RESET"
	SnapshotCreated EventType = "SNAPSHOT_CREATED"
	MarketUpdated   EventType = "MARKET_UPDATED"
	SourceDegraded  EventType = "SOURCE_DEGRADED"
	CacheCleaned    EventType = "CACHE_CLEANED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"

	// Stream control messages, never emitted on the bus
	StreamConnected EventType = "CONNECTED"
	StreamHeartbeat EventType = "HEARTBEAT"
)

// AllEventTypes lists every event type a stream client can receive
var AllEventTypes = []EventType{
	DatasetReloaded,
	DatasetReset,
	SnapshotCreated,
	MarketUpdated,
	SourceDegraded,
	CacheCleaned,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Module    string                 `json:"module"`
}
