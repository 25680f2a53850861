package world

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeFieldInit
	EventTypeFieldReset
	EventTypeBrush
	EventTypeWaterWriteBack
	EventTypeCreatureSpawn
	EventTypeCreatureRemove
	EventTypeMovementDenied
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	TickNum   uint64    `json:"tickNum"`   // World tick this occurred in
	SourceID  string    `json:"sourceId"`  // Originating client/creature (for rate limiting)
	Payload   []byte    `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeFieldInit:
		return "field_init"
	case EventTypeFieldReset:
		return "field_reset"
	case EventTypeBrush:
		return "brush"
	case EventTypeWaterWriteBack:
		return "water_writeback"
	case EventTypeCreatureSpawn:
		return "creature_spawn"
	case EventTypeCreatureRemove:
		return "creature_remove"
	case EventTypeMovementDenied:
		return "movement_denied"
	default:
		return "unknown"
	}
}

// Typed payloads for different event types

// FieldInitPayload records a field (re)generation.
type FieldInitPayload struct {
	Resolution  int `json:"resolution"`
	VertexCount int `json:"vertexCount"`
}

// BrushPayload records one terraform edit.
type BrushPayload struct {
	Mode     string  `json:"mode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Radius   float64 `json:"radius"`
	Strength float64 `json:"strength"`
	Erase    bool    `json:"erase,omitempty"`
}

// WaterWriteBackPayload records one authoritative flush into the field.
type WaterWriteBackPayload struct {
	TotalWater float64 `json:"totalWater"`
	Peak       float64 `json:"peak"`
}

// CreatureSpawnPayload records a creature joining the world.
type CreatureSpawnPayload struct {
	CreatureID string  `json:"creatureId"`
	Kind       string  `json:"kind"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
}

// MovementDeniedPayload records a denied displacement for debugging.
type MovementDeniedPayload struct {
	IsWater    bool    `json:"isWater"`
	SlopeAngle float64 `json:"slopeAngle"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, sourceID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		SourceID:  sourceID,
		Payload:   EncodePayload(payload),
	}
}
