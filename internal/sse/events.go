// Package sse streams run archive events to HTTP clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/restalign/internal/store"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventRunCompleted is sent when a comparison run finishes.
	EventRunCompleted EventType = "run.completed"
	// EventRunDeleted is sent when a run is removed from the archive.
	EventRunDeleted EventType = "run.deleted"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// Fingerprint limits delivery to clients subscribed to it, or to all
	// clients when empty. Not sent to clients.
	Fingerprint string `json:"-"`
}

// RunDeletedEventData is the data payload for run.deleted.
type RunDeletedEventData struct {
	ID string `json:"id"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewRunCompletedEvent creates a run.completed event.
func NewRunCompletedEvent(run store.RunSummary) Event {
	return Event{
		Type:        EventRunCompleted,
		Timestamp:   time.Now(),
		Data:        run,
		Fingerprint: run.Fingerprint,
	}
}

// NewRunDeletedEvent creates a run.deleted event.
func NewRunDeletedEvent(id, fingerprint string) Event {
	return Event{
		Type:        EventRunDeleted,
		Timestamp:   time.Now(),
		Data:        RunDeletedEventData{ID: id},
		Fingerprint: fingerprint,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}
