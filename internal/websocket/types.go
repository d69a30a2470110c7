package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/isolated-regex/internal/rule"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeCharacterChanged is sent when the host selects another character
	EventTypeCharacterChanged EventType = "character_changed"
	// EventTypeRuleUpdated is sent after a rule is replaced or imported
	EventTypeRuleUpdated EventType = "rule_updated"
	// EventTypePatternError is sent when a stored pattern fails to run
	EventTypePatternError EventType = "pattern_error"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// CharacterChangedEvent carries the newly active character. Active is false
// when the host has no character selected.
type CharacterChangedEvent struct {
	Avatar string `json:"avatar,omitempty"`
	Name   string `json:"name,omitempty"`
	Active bool   `json:"active"`
}

// RuleUpdatedEvent carries the stored rule after a write
type RuleUpdatedEvent struct {
	Avatar string    `json:"avatar"`
	Op     string    `json:"op"` // "set" or "import"
	Rule   rule.Rule `json:"rule"`
}

// PatternErrorEvent describes a rule that could not be applied
type PatternErrorEvent struct {
	Pattern string `json:"pattern"`
	Flags   string `json:"flags"`
	Error   string `json:"error"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type   string      `json:"type"`
	Events []EventType `json:"events,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	// nil means every event
	subscription map[EventType]bool
}
